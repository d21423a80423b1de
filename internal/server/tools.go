package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

type schemaProps = map[string]interface{}

func prop(typ, description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        typ,
		"description": description,
	}
}

func propDefault(typ, description string, def interface{}) map[string]interface{} {
	p := prop(typ, description)
	p["default"] = def
	return p
}

func regionSchema(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "object",
		"description": description,
		"properties": schemaProps{
			"x1": prop("integer", "Left edge X coordinate (0-based, inclusive)"),
			"y1": prop("integer", "Top edge Y coordinate (0-based, inclusive)"),
			"x2": prop("integer", "Right edge X coordinate (exclusive)"),
			"y2": prop("integer", "Bottom edge Y coordinate (exclusive)"),
		},
		"required": []string{"x1", "y1", "x2", "y2"},
	}
}

// sourceProps are shared by every tool that reads an image.
func sourceProps() schemaProps {
	return schemaProps{
		"path":   prop("string", "Absolute path to the image file"),
		"region": regionSchema("Optional region to search. Results are reported in full-image coordinates."),
		"region_name": map[string]interface{}{
			"type":        "string",
			"description": "Optional named region, used when region is absent",
			"enum": []string{
				"top-left", "top-right", "bottom-left", "bottom-right",
				"top-half", "bottom-half", "left-half", "right-half", "center", "full",
			},
		},
	}
}

func withProps(base schemaProps, extra schemaProps) schemaProps {
	for k, v := range extra {
		base[k] = v
	}
	return base
}

func cannyProps() schemaProps {
	return schemaProps{
		"canny_low":  propDefault("integer", "Low hysteresis threshold of the edge detector", 50),
		"canny_high": propDefault("integer", "High hysteresis threshold of the edge detector", 150),
	}
}

func circleProps() schemaProps {
	return schemaProps{
		"dp":              propDefault("number", "Inverse accumulator resolution (2 = half resolution)", 1.0),
		"min_dist":        propDefault("number", "Minimum distance between circle centers", 20.0),
		"canny_threshold": propDefault("integer", "High edge threshold; the low threshold is half of it", 100),
		"votes_threshold": propDefault("integer", "Minimum votes for centers and radii", 30),
		"min_radius":      propDefault("integer", "Minimum radius in pixels", 5),
		"max_radius":      propDefault("integer", "Maximum radius in pixels", 100),
		"max_circles":     propDefault("integer", "Maximum number of circles returned", 100),
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		{
			Name:        "image_edge_detect",
			Description: "Run Canny edge detection and return the binary edge mask as base64 PNG. Use it to tune the canny thresholds passed to the Hough tools.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": withProps(sourceProps(), schemaProps{
					"threshold_low":  propDefault("integer", "Low hysteresis threshold", 50),
					"threshold_high": propDefault("integer", "High hysteresis threshold", 150),
				}),
				"required": []string{"path"},
			},
		},
		{
			Name:        "hough_lines",
			Description: "Detect infinite straight lines with the standard Hough transform. Returns (rho, theta) pairs with votes and the line endpoints clipped to the image.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": withProps(withProps(sourceProps(), cannyProps()), schemaProps{
					"rho":       propDefault("number", "Distance resolution in pixels", 1.0),
					"theta_deg": propDefault("number", "Angle resolution in degrees", 1.0),
					"threshold": propDefault("integer", "Minimum votes for a line", 100),
					"max_lines": propDefault("integer", "Maximum number of lines returned", 50),
					"sort":      propDefault("boolean", "Order lines by votes before truncating", true),
					"overlay":   propDefault("boolean", "Also return the image with the lines drawn", false),
				}),
				"required": []string{"path"},
			},
		},
		{
			Name:        "hough_line_segments",
			Description: "Detect finite line segments with the progressive probabilistic Hough transform.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": withProps(withProps(sourceProps(), cannyProps()), schemaProps{
					"rho":             propDefault("number", "Distance resolution in pixels", 1.0),
					"theta_deg":       propDefault("number", "Angle resolution in degrees", 1.0),
					"min_line_length": propDefault("integer", "Minimum segment extent and vote threshold", 50),
					"max_line_gap":    propDefault("integer", "Largest gap in pixels bridged inside a segment", 5),
					"max_lines":       propDefault("integer", "Maximum number of segments returned", 200),
					"overlay":         propDefault("boolean", "Also return the image with the segments drawn", false),
				}),
				"required": []string{"path"},
			},
		},
		{
			Name:        "hough_circles",
			Description: "Detect circles with the gradient Hough transform: center voting along edge gradients, then one radius per center.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": withProps(withProps(sourceProps(), circleProps()), schemaProps{
					"overlay": propDefault("boolean", "Also return the image with the circles drawn", false),
				}),
				"required": []string{"path"},
			},
		},
		{
			Name:        "hough_template_match",
			Description: "Find instances of a template shape with the generalized Hough transform (Ballard R-table or Guil pair features). Returns positions of the template center with scale and rotation.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": withProps(sourceProps(), schemaProps{
					"template_path":   prop("string", "Absolute path to the template image"),
					"template_region": regionSchema("Optional region of the template image to use"),
					"template_center": map[string]interface{}{
						"type":        "object",
						"description": "Reference point inside the template. Defaults to the template center.",
						"properties": schemaProps{
							"x": prop("integer", "X coordinate in the template"),
							"y": prop("integer", "Y coordinate in the template"),
						},
					},
					"method": map[string]interface{}{
						"type":        "string",
						"description": "Search space",
						"enum":        []string{"POSITION", "POSITION_SCALE", "POSITION_ROTATION", "POSITION_SCALE_ROTATION"},
						"default":     "POSITION",
					},
					"canny_threshold": propDefault("integer", "High edge threshold for template and image; the low threshold is half of it", 100),
					"params": map[string]interface{}{
						"type":        "object",
						"description": "Detector parameters (min_dist, levels, dp, max_buffer_size, max_size, votes_threshold, min_scale, max_scale, scale_step, min_angle, max_angle, angle_step, xi, angle_epsilon, angle_thresh, scale_thresh, pos_thresh). Unset fields keep the method defaults.",
					},
					"overlay": propDefault("boolean", "Also return the image with the matches drawn", false),
				}),
				"required": []string{"path", "template_path"},
			},
		},
		{
			Name:        "hough_accumulator_plot",
			Description: "Render the vote accumulator of a line or circle-center transform as a heat map PNG. Useful to choose thresholds.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": withProps(withProps(withProps(sourceProps(), cannyProps()), circleProps()), schemaProps{
					"kind": map[string]interface{}{
						"type":        "string",
						"description": "Accumulator to plot",
						"enum":        []string{"lines", "circles"},
						"default":     "lines",
					},
					"rho":       propDefault("number", "Line distance resolution in pixels", 1.0),
					"theta_deg": propDefault("number", "Line angle resolution in degrees", 1.0),
				}),
				"required": []string{"path"},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}

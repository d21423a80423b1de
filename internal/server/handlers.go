package server

import (
	"errors"
	"fmt"
	"image"
	"math"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"

	"github.com/ironsheep/hough-mcp/internal/detection"
	"github.com/ironsheep/hough-mcp/internal/imaging"
	"github.com/ironsheep/hough-mcp/internal/logging"
)

// errInvalidArgs marks tool arguments that could not be decoded or resolved.
var errInvalidArgs = errors.New("invalid arguments")

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "hough_lines", "hough_circles").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments jsoniter.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Argument errors and detector precondition failures return code -32602.
// Any other tool failure returns code -32000. Every call is logged with a
// call_id field.
func (s *Server) handleToolsCall(req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, codeInvalidParams, "Invalid params", err.Error())
	}

	log := s.log.WithFields(logging.Fields{
		"call_id": uuid.NewString(),
		"tool":    params.Name,
	})
	start := time.Now()

	result, err := s.executeTool(log, params.Name, params.Arguments)
	elapsed := time.Since(start)
	if err != nil {
		log.WithError(err).WithField("elapsed", elapsed).Warn("tool call failed")
		if errors.Is(err, errInvalidArgs) || errors.Is(err, detection.ErrPrecondition) {
			return s.errorResponse(req.ID, codeInvalidParams, "Invalid params", err.Error())
		}
		return s.errorResponse(req.ID, codeToolFailed, "Tool execution failed", err.Error())
	}
	log.WithField("elapsed", elapsed).Debug("tool call finished")

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
//
// Each tool handler:
//  1. Unmarshals arguments over a struct pre-filled with defaults
//  2. Loads the image (and optional region) from the cache
//  3. Runs the edge detector where a mask is needed
//  4. Calls the detector and maps results back to image coordinates
//  5. Optionally renders an overlay
func (s *Server) executeTool(log logrus.FieldLogger, name string, args jsoniter.RawMessage) (interface{}, error) {
	switch name {
	case "image_edge_detect":
		return s.handleEdgeDetect(args)
	case "hough_lines":
		return s.handleHoughLines(log, args)
	case "hough_line_segments":
		return s.handleHoughSegments(log, args)
	case "hough_circles":
		return s.handleHoughCircles(log, args)
	case "hough_template_match":
		return s.handleTemplateMatch(log, args)
	case "hough_accumulator_plot":
		return s.handleAccumulatorPlot(log, args)
	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	resp := &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
		},
	}
	if data != "" {
		resp.Error.Data = data
	}
	return resp
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

func decodeArgs(args jsoniter.RawMessage, v interface{}) error {
	if len(args) == 0 {
		return nil
	}
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("%w: %v", errInvalidArgs, err)
	}
	return nil
}

func (s *Server) detectorOptions(log logrus.FieldLogger) []detection.Option {
	return []detection.Option{
		detection.WithLogger(log),
		detection.WithWorkers(s.workers),
		detection.WithEdgeDetector(s.edges),
	}
}

// === Image selection ===

// sourceArgs selects an image and an optional sub-region of it.
type sourceArgs struct {
	Path       string          `json:"path"`
	Region     *imaging.Region `json:"region,omitempty"`
	RegionName string          `json:"region_name,omitempty"`
}

// source is a loaded image restricted to the requested region.
type source struct {
	img    image.Image
	gray   *image.Gray
	origin image.Point
}

func (s *Server) loadSource(a sourceArgs) (*source, error) {
	if a.Path == "" {
		return nil, fmt.Errorf("%w: path is required", errInvalidArgs)
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}

	var region *imaging.Region
	switch {
	case a.Region != nil:
		region = a.Region
	case a.RegionName != "":
		r, err := imaging.NamedRegion(img.Bounds(), a.RegionName)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errInvalidArgs, err)
		}
		region = &r
	}

	if region == nil {
		gray, err := s.cache.LoadGray(a.Path)
		if err != nil {
			return nil, err
		}
		return &source{img: img, gray: gray, origin: img.Bounds().Min}, nil
	}

	gray, err := imaging.CropGray(img, *region)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidArgs, err)
	}
	return &source{img: img, gray: gray, origin: image.Pt(region.X1, region.Y1)}, nil
}

// offset is the translation from detection coordinates to image coordinates
// relative to the image bounds origin.
func (src *source) offset() (float64, float64) {
	b := src.img.Bounds()
	return float64(src.origin.X - b.Min.X), float64(src.origin.Y - b.Min.Y)
}

func (s *Server) edgeMask(src *source, low, high int) (*image.Gray, *detection.GradientField, error) {
	mask, grad, err := s.edges.Detect(src.gray, low, high)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", errInvalidArgs, err)
	}
	return mask, grad, nil
}

func countEdges(mask *image.Gray) int {
	n := 0
	for _, v := range mask.Pix {
		if v != 0 {
			n++
		}
	}
	return n
}

// === Edge detection ===

type edgeDetectArgs struct {
	sourceArgs
	ThresholdLow  int `json:"threshold_low"`
	ThresholdHigh int `json:"threshold_high"`
}

func (s *Server) handleEdgeDetect(args jsoniter.RawMessage) (interface{}, error) {
	a := edgeDetectArgs{ThresholdLow: 50, ThresholdHigh: 150}
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	src, err := s.loadSource(a.sourceArgs)
	if err != nil {
		return nil, err
	}
	res, err := imaging.EdgeDetect(src.gray, a.ThresholdLow, a.ThresholdHigh)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidArgs, err)
	}
	return res, nil
}

// === Lines ===

type houghLinesArgs struct {
	sourceArgs
	Rho       float64 `json:"rho"`
	ThetaDeg  float64 `json:"theta_deg"`
	Threshold int     `json:"threshold"`
	MaxLines  int     `json:"max_lines"`
	Sort      bool    `json:"sort"`
	CannyLow  int     `json:"canny_low"`
	CannyHigh int     `json:"canny_high"`
	Overlay   bool    `json:"overlay"`
}

type lineOut struct {
	Rho      float32 `json:"rho"`
	Theta    float32 `json:"theta"`
	ThetaDeg float32 `json:"theta_deg"`
	Votes    int32   `json:"votes"`
	// Endpoints of the line clipped to the image.
	X1 int32 `json:"x1"`
	Y1 int32 `json:"y1"`
	X2 int32 `json:"x2"`
	Y2 int32 `json:"y2"`
}

type houghLinesResult struct {
	Width      int                    `json:"width"`
	Height     int                    `json:"height"`
	EdgePixels int                    `json:"edge_pixels"`
	Count      int                    `json:"count"`
	Lines      []lineOut              `json:"lines"`
	Overlay    *imaging.OverlayResult `json:"overlay,omitempty"`
}

func (s *Server) handleHoughLines(log logrus.FieldLogger, args jsoniter.RawMessage) (interface{}, error) {
	d := detection.DefaultLineParams()
	a := houghLinesArgs{
		Rho:       d.Rho,
		ThetaDeg:  1,
		Threshold: d.Threshold,
		MaxLines:  50,
		Sort:      true,
		CannyLow:  50,
		CannyHigh: 150,
	}
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	src, err := s.loadSource(a.sourceArgs)
	if err != nil {
		return nil, err
	}
	mask, _, err := s.edgeMask(src, a.CannyLow, a.CannyHigh)
	if err != nil {
		return nil, err
	}

	det := detection.NewLineDetector(s.detectorOptions(log)...)
	defer det.Release()
	res, err := det.Detect(mask, detection.LineParams{
		Rho:       a.Rho,
		Theta:     a.ThetaDeg * math.Pi / 180,
		Threshold: a.Threshold,
		DoSort:    a.Sort,
		MaxLines:  a.MaxLines,
	})
	if err != nil {
		return nil, err
	}

	lines, votes := res.Download()
	ox, oy := src.offset()
	b := src.img.Bounds()
	out := &houghLinesResult{
		Width:      b.Dx(),
		Height:     b.Dy(),
		EdgePixels: countEdges(mask),
		Count:      len(lines),
		Lines:      make([]lineOut, 0, len(lines)),
	}
	shapes := imaging.Shapes{}
	for i, l := range lines {
		l = translateLine(l, ox, oy)
		lo := lineOut{
			Rho:      l.Rho,
			Theta:    l.Theta,
			ThetaDeg: float32(float64(l.Theta) * 180 / math.Pi),
			Votes:    votes[i],
		}
		if seg, ok := l.Clip(b.Dx(), b.Dy()); ok {
			lo.X1, lo.Y1, lo.X2, lo.Y2 = seg.X1, seg.Y1, seg.X2, seg.Y2
		}
		out.Lines = append(out.Lines, lo)
		shapes.Lines = append(shapes.Lines, l)
	}

	if a.Overlay {
		if out.Overlay, err = imaging.Overlay(src.img, shapes, "", true); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// translateLine moves a polar line by (ox, oy).
func translateLine(l detection.PolarLine, ox, oy float64) detection.PolarLine {
	if ox == 0 && oy == 0 {
		return l
	}
	sin, cos := math.Sincos(float64(l.Theta))
	l.Rho += float32(ox*cos + oy*sin)
	return l
}

// === Segments ===

type houghSegmentsArgs struct {
	sourceArgs
	Rho           float64 `json:"rho"`
	ThetaDeg      float64 `json:"theta_deg"`
	MinLineLength int     `json:"min_line_length"`
	MaxLineGap    int     `json:"max_line_gap"`
	MaxLines      int     `json:"max_lines"`
	CannyLow      int     `json:"canny_low"`
	CannyHigh     int     `json:"canny_high"`
	Overlay       bool    `json:"overlay"`
}

type segmentOut struct {
	X1     int32   `json:"x1"`
	Y1     int32   `json:"y1"`
	X2     int32   `json:"x2"`
	Y2     int32   `json:"y2"`
	Length float64 `json:"length"`
	Votes  int32   `json:"votes"`
}

type houghSegmentsResult struct {
	Width      int                    `json:"width"`
	Height     int                    `json:"height"`
	EdgePixels int                    `json:"edge_pixels"`
	Count      int                    `json:"count"`
	Segments   []segmentOut           `json:"segments"`
	Overlay    *imaging.OverlayResult `json:"overlay,omitempty"`
}

func (s *Server) handleHoughSegments(log logrus.FieldLogger, args jsoniter.RawMessage) (interface{}, error) {
	d := detection.DefaultSegmentParams()
	a := houghSegmentsArgs{
		Rho:           d.Rho,
		ThetaDeg:      1,
		MinLineLength: d.MinLineLength,
		MaxLineGap:    d.MaxLineGap,
		MaxLines:      200,
		CannyLow:      50,
		CannyHigh:     150,
	}
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	src, err := s.loadSource(a.sourceArgs)
	if err != nil {
		return nil, err
	}
	mask, _, err := s.edgeMask(src, a.CannyLow, a.CannyHigh)
	if err != nil {
		return nil, err
	}

	det := detection.NewLineDetector(s.detectorOptions(log)...)
	defer det.Release()
	res, err := det.DetectSegments(mask, detection.SegmentParams{
		Rho:           a.Rho,
		Theta:         a.ThetaDeg * math.Pi / 180,
		MinLineLength: a.MinLineLength,
		MaxLineGap:    a.MaxLineGap,
		MaxLines:      a.MaxLines,
	})
	if err != nil {
		return nil, err
	}

	segs, votes := res.Download()
	ox, oy := src.offset()
	b := src.img.Bounds()
	out := &houghSegmentsResult{
		Width:      b.Dx(),
		Height:     b.Dy(),
		EdgePixels: countEdges(mask),
		Count:      len(segs),
		Segments:   make([]segmentOut, 0, len(segs)),
	}
	for i := range segs {
		sg := &segs[i]
		sg.X1 += int32(ox)
		sg.X2 += int32(ox)
		sg.Y1 += int32(oy)
		sg.Y2 += int32(oy)
		out.Segments = append(out.Segments, segmentOut{
			X1: sg.X1, Y1: sg.Y1, X2: sg.X2, Y2: sg.Y2,
			Length: sg.Length(),
			Votes:  votes[i],
		})
	}

	if a.Overlay {
		if out.Overlay, err = imaging.Overlay(src.img, imaging.Shapes{Segments: segs}, "", true); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// === Circles ===

type houghCirclesArgs struct {
	sourceArgs
	detection.CircleParams
	Overlay bool `json:"overlay"`
}

type circleOut struct {
	X      float32 `json:"x"`
	Y      float32 `json:"y"`
	Radius float32 `json:"radius"`
	Votes  int32   `json:"votes"`
}

type houghCirclesResult struct {
	Width   int                    `json:"width"`
	Height  int                    `json:"height"`
	Count   int                    `json:"count"`
	Circles []circleOut            `json:"circles"`
	Overlay *imaging.OverlayResult `json:"overlay,omitempty"`
}

func (s *Server) handleHoughCircles(log logrus.FieldLogger, args jsoniter.RawMessage) (interface{}, error) {
	a := houghCirclesArgs{CircleParams: detection.DefaultCircleParams()}
	a.MaxCircles = 100
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	src, err := s.loadSource(a.sourceArgs)
	if err != nil {
		return nil, err
	}

	det := detection.NewCircleDetector(s.detectorOptions(log)...)
	defer det.Release()
	res, err := det.Detect(src.gray, a.CircleParams)
	if err != nil {
		return nil, err
	}

	circles, votes := res.Download()
	ox, oy := src.offset()
	b := src.img.Bounds()
	out := &houghCirclesResult{
		Width:   b.Dx(),
		Height:  b.Dy(),
		Count:   len(circles),
		Circles: make([]circleOut, 0, len(circles)),
	}
	for i := range circles {
		c := &circles[i]
		c.X += float32(ox)
		c.Y += float32(oy)
		out.Circles = append(out.Circles, circleOut{X: c.X, Y: c.Y, Radius: c.Radius, Votes: votes[i]})
	}

	if a.Overlay {
		if out.Overlay, err = imaging.Overlay(src.img, imaging.Shapes{Circles: circles}, "", true); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// === Template matching ===

type templateMatchArgs struct {
	sourceArgs
	TemplatePath   string                   `json:"template_path"`
	TemplateRegion *imaging.Region          `json:"template_region,omitempty"`
	TemplateCenter *image.Point             `json:"template_center,omitempty"`
	Method         string                   `json:"method"`
	CannyThreshold int                      `json:"canny_threshold"`
	Params         detection.TemplateParams `json:"params"`
	Overlay        bool                     `json:"overlay"`
}

type positionOut struct {
	X             float32 `json:"x"`
	Y             float32 `json:"y"`
	Scale         float32 `json:"scale"`
	Angle         float32 `json:"angle"`
	PositionVotes int32   `json:"position_votes"`
	ScaleVotes    int32   `json:"scale_votes"`
	AngleVotes    int32   `json:"angle_votes"`
}

type templateMatchResult struct {
	Method         string                 `json:"method"`
	Width          int                    `json:"width"`
	Height         int                    `json:"height"`
	TemplateWidth  int                    `json:"template_width"`
	TemplateHeight int                    `json:"template_height"`
	Count          int                    `json:"count"`
	Positions      []positionOut          `json:"positions"`
	Overlay        *imaging.OverlayResult `json:"overlay,omitempty"`
}

func (s *Server) handleTemplateMatch(log logrus.FieldLogger, args jsoniter.RawMessage) (interface{}, error) {
	var head struct {
		Method string `json:"method"`
	}
	if err := decodeArgs(args, &head); err != nil {
		return nil, err
	}
	if head.Method == "" {
		head.Method = detection.MethodPosition.String()
	}
	method, err := detection.ParseMethod(head.Method)
	if err != nil {
		return nil, err
	}

	a := templateMatchArgs{
		CannyThreshold: 100,
		Params:         detection.DefaultTemplateParams(method),
	}
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.TemplatePath == "" {
		return nil, fmt.Errorf("%w: template_path is required", errInvalidArgs)
	}

	src, err := s.loadSource(a.sourceArgs)
	if err != nil {
		return nil, err
	}
	templ, err := s.loadSource(sourceArgs{Path: a.TemplatePath, Region: a.TemplateRegion})
	if err != nil {
		return nil, err
	}

	center := image.Pt(-1, -1)
	if a.TemplateCenter != nil {
		center = *a.TemplateCenter
	}

	engine, err := detection.NewGeneralizedHough(method, a.Params, s.detectorOptions(log)...)
	if err != nil {
		return nil, err
	}
	defer engine.Release()

	if err := engine.SetTemplateImage(templ.gray, a.CannyThreshold, center); err != nil {
		return nil, err
	}
	res, err := engine.DetectImage(src.gray, a.CannyThreshold)
	if err != nil {
		return nil, err
	}

	positions, votes := res.Download()
	ox, oy := src.offset()
	b := src.img.Bounds()
	size := templ.gray.Rect.Size()
	out := &templateMatchResult{
		Method:         method.String(),
		Width:          b.Dx(),
		Height:         b.Dy(),
		TemplateWidth:  size.X,
		TemplateHeight: size.Y,
		Count:          len(positions),
		Positions:      make([]positionOut, 0, len(positions)),
	}
	for i := range positions {
		p := &positions[i]
		p.X += float32(ox)
		p.Y += float32(oy)
		out.Positions = append(out.Positions, positionOut{
			X: p.X, Y: p.Y, Scale: p.Scale, Angle: p.Angle,
			PositionVotes: votes[i].Position,
			ScaleVotes:    votes[i].Scale,
			AngleVotes:    votes[i].Angle,
		})
	}

	if a.Overlay {
		shapes := imaging.Shapes{Positions: positions, TemplateSize: size}
		if out.Overlay, err = imaging.Overlay(src.img, shapes, "", true); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// === Accumulator plot ===

type accumulatorPlotArgs struct {
	sourceArgs
	// Kind is "lines" or "circles".
	Kind      string  `json:"kind"`
	Rho       float64 `json:"rho"`
	ThetaDeg  float64 `json:"theta_deg"`
	CannyLow  int     `json:"canny_low"`
	CannyHigh int     `json:"canny_high"`
	detection.CircleParams
}

func (s *Server) handleAccumulatorPlot(log logrus.FieldLogger, args jsoniter.RawMessage) (interface{}, error) {
	a := accumulatorPlotArgs{
		Kind:         "lines",
		Rho:          1,
		ThetaDeg:     1,
		CannyLow:     50,
		CannyHigh:    150,
		CircleParams: detection.DefaultCircleParams(),
	}
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	src, err := s.loadSource(a.sourceArgs)
	if err != nil {
		return nil, err
	}

	var (
		snap  detection.AccumulatorSnapshot
		axes  imaging.HeatMapAxes
		title string
	)
	switch a.Kind {
	case "lines":
		mask, _, err := s.edgeMask(src, a.CannyLow, a.CannyHigh)
		if err != nil {
			return nil, err
		}
		det := detection.NewLineDetector(s.detectorOptions(log)...)
		defer det.Release()
		_, err = det.Detect(mask, detection.LineParams{
			Rho:       a.Rho,
			Theta:     a.ThetaDeg * math.Pi / 180,
			Threshold: math.MaxInt32,
			MaxLines:  1,
		})
		if err != nil {
			return nil, err
		}
		snap = det.Accumulator()
		axes = imaging.HeatMapAxes{
			XLabel: "rho (px)",
			YLabel: "theta (deg)",
			X0:     -float64(snap.Cols-1) / 2 * a.Rho,
			XStep:  a.Rho,
			YStep:  a.ThetaDeg,
		}
		title = "Line accumulator"
	case "circles":
		p := a.CircleParams
		p.VotesThreshold = math.MaxInt32
		det := detection.NewCircleDetector(s.detectorOptions(log)...)
		defer det.Release()
		if _, err := det.Detect(src.gray, p); err != nil {
			return nil, err
		}
		snap = det.Accumulator()
		axes = imaging.HeatMapAxes{
			XLabel: "x (px)",
			YLabel: "y (px)",
			X0:     p.Dp / 2,
			XStep:  p.Dp,
			Y0:     p.Dp / 2,
			YStep:  p.Dp,
		}
		title = "Circle centre accumulator"
	default:
		return nil, fmt.Errorf("%w: unknown accumulator kind %q", errInvalidArgs, a.Kind)
	}

	return imaging.AccumulatorHeatMap(snap, title, axes, 0, 0)
}

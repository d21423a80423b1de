// Package server implements the MCP (Model Context Protocol) server for the
// Hough transform detectors.
//
// This package provides a JSON-RPC 2.0 server that exposes line, circle and
// template detection through the MCP protocol. Every tool reads an image from
// disk, optionally restricted to a region, and reports shapes in full-image
// pixel coordinates.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Edge Detection:
//   - image_edge_detect: Canny edge mask, for tuning thresholds
//
// Lines:
//   - hough_lines: Standard Hough transform, (rho, theta) lines
//   - hough_line_segments: Progressive probabilistic Hough, finite segments
//
// Circles:
//   - hough_circles: Two-stage gradient Hough transform
//
// Arbitrary Shapes:
//   - hough_template_match: Generalized Hough (Ballard or Guil) against a
//     template image
//
// Diagnostics:
//   - hough_accumulator_plot: Heat map of a line or circle-center accumulator
//
// Detection tools accept overlay=true to also return the image with the
// results drawn on it.
//
// # Image Caching
//
// Images and their grayscale conversions are cached by path and reused across
// tool calls. Images with a side above the configured limit are rejected at
// load time.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32602 for undecodable arguments and detector precondition
//     failures, -32000 for any other tool failure, -32700 for malformed
//     request lines and -32601 for unknown methods
//   - message: Human-readable error description
//   - data: Additional error details (typically the Go error string)
//
// # Logging
//
// Each tools/call is logged with a call_id field (a random UUID) and the tool
// name. The same fields flow into the detector loggers, so detector stage logs
// can be joined to the call that produced them.
//
// # Usage
//
// The server is typically started by an MCP client:
//
//	srv := server.New(server.WithLogger(log), server.WithWorkers(4))
//	if err := srv.Run(); err != nil {
//	    log.Fatal(err)
//	}
package server

// Package imaging provides the image-side collaborators of the Hough detectors.
//
// This package loads and caches images, converts them to the 8-bit grayscale
// form the detectors consume, runs Canny edge detection with Sobel gradients,
// and renders detection results back onto images or as accumulator heat maps.
// All operations use a coordinate system where (0,0) is at the top-left corner,
// X increases rightward, and Y increases downward.
//
// # Coordinate System
//
// All pixel coordinates in this package are 0-based:
//   - X: horizontal position (0 = leftmost pixel)
//   - Y: vertical position (0 = topmost pixel)
//   - For regions, (x1,y1) is inclusive (top-left), (x2,y2) is exclusive (bottom-right)
//
// Cropped and grayscale images are re-anchored at (0,0), so detection results
// on a crop must be offset by the crop origin to map back to the source.
//
// # Edge Detection
//
// Canny implements detection.EdgeDetector. Besides the binary mask it returns
// the integer Sobel derivatives of the blurred image, which the circle and
// generalized Hough detectors use for gradient-directed voting.
//
// # Rendering
//
// Overlay draws lines, segments, circles and template positions on a copy of
// the source. AccumulatorHeatMap plots a two-dimensional vote accumulator.
// Both return base64 PNG payloads ready for an MCP image content block.
//
// # Thread Safety
//
// The ImageCache type is safe for concurrent use. Canny and the rendering
// functions are stateless and can be called concurrently.
//
// # Error Handling
//
// Functions return errors for invalid inputs such as:
//   - Regions outside image bounds or with x1 >= x2 or y1 >= y2
//   - Images above the configured side limit
//   - Inconsistent Canny thresholds
//   - File I/O errors during image loading
//   - Encoding errors during image output
package imaging

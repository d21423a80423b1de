package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"math"

	"github.com/anthonynsimon/bild/blur"
	"github.com/disintegration/imaging"

	"github.com/ironsheep/hough-mcp/internal/detection"
)

// DefaultBlurRadius is the Gaussian radius applied before gradients are taken.
const DefaultBlurRadius = 1.4

// EdgeDetectResult contains an edge-detected image encoded as base64 PNG.
//
// The result is a grayscale image where white pixels (255) represent detected
// edges and black pixels (0) represent non-edges.
type EdgeDetectResult struct {
	// Width of the output image in pixels (same as input).
	Width int `json:"width"`

	// Height of the output image in pixels (same as input).
	Height int `json:"height"`

	// EdgePixels is the number of pixels marked as edges.
	EdgePixels int `json:"edge_pixels"`

	// ImageBase64 is the edge image encoded as base64 PNG.
	ImageBase64 string `json:"image_base64"`

	// MimeType is always "image/png" for edge detection results.
	MimeType string `json:"mime_type"`
}

// Canny is the edge detector used by the Hough detectors. It implements
// detection.EdgeDetector and returns the Sobel derivatives alongside the mask
// so that orientation-aware voting can reuse them.
//
// The zero value blurs with DefaultBlurRadius. A negative BlurRadius disables
// the blur.
type Canny struct {
	BlurRadius float64
}

var _ detection.EdgeDetector = Canny{}

// Detect runs Canny edge detection on gray.
//
// Parameters:
//   - gray: Source image. Only its bounds-relative content is used; the
//     returned mask and gradient field always start at (0,0).
//   - low: Hysteresis low threshold on the Sobel magnitude (8-bit units).
//   - high: Hysteresis high threshold. Must be >= low.
//
// Returns:
//   - *image.Gray: Binary mask, 255 on edges and 0 elsewhere.
//   - *detection.GradientField: Sobel x/y derivatives of the blurred image.
//   - error: Non-nil if the thresholds are inconsistent or the image is empty.
//
// # Algorithm
//
//  1. Gaussian blur (bild) with BlurRadius to reduce noise
//
//  2. Gradient computation: 3x3 Sobel operators on the blurred luminance,
//     magnitude = sqrt(Gx² + Gy²)
//
//  3. Non-maximum suppression: keep only pixels that are local maxima along
//     the gradient direction, quantised to four sectors
//
//  4. Hysteresis thresholding: pixels above high seed edges, which then grow
//     through 8-connected pixels above low
func (c Canny) Detect(gray *image.Gray, low, high int) (*image.Gray, *detection.GradientField, error) {
	if gray == nil || gray.Rect.Empty() {
		return nil, nil, fmt.Errorf("edge detection requires a non-empty image")
	}
	if low < 0 || high < low {
		return nil, nil, fmt.Errorf("invalid thresholds: low=%d high=%d", low, high)
	}

	width := gray.Rect.Dx()
	height := gray.Rect.Dy()
	lum := c.blurred(gray)

	grad := detection.NewGradientField(width, height)
	magnitude := make([]float64, width*height)
	for y := 0; y < height; y++ {
		ym := clamp(y-1, 0, height-1)
		yp := clamp(y+1, 0, height-1)
		for x := 0; x < width; x++ {
			xm := clamp(x-1, 0, width-1)
			xp := clamp(x+1, 0, width-1)

			gx := -lum[ym*width+xm] + lum[ym*width+xp] +
				-2*lum[y*width+xm] + 2*lum[y*width+xp] +
				-lum[yp*width+xm] + lum[yp*width+xp]
			gy := -lum[ym*width+xm] - 2*lum[ym*width+x] - lum[ym*width+xp] +
				lum[yp*width+xm] + 2*lum[yp*width+x] + lum[yp*width+xp]

			grad.Set(x, y, gx, gy)
			magnitude[y*width+x] = math.Hypot(float64(gx), float64(gy))
		}
	}

	suppressed := suppress(magnitude, grad, width, height)
	mask := hysteresis(suppressed, width, height, float64(low), float64(high))
	return mask, grad, nil
}

// blurred returns the Gaussian-smoothed luminance of gray as a row-major
// slice of 8-bit values.
func (c Canny) blurred(gray *image.Gray) []int32 {
	width := gray.Rect.Dx()
	height := gray.Rect.Dy()
	lum := make([]int32, width*height)

	radius := c.BlurRadius
	if radius == 0 {
		radius = DefaultBlurRadius
	}
	if radius < 0 {
		for y := 0; y < height; y++ {
			row := gray.Pix[y*gray.Stride : y*gray.Stride+width]
			for x, v := range row {
				lum[y*width+x] = int32(v)
			}
		}
		return lum
	}

	smoothed := blur.Gaussian(gray, radius)
	b := smoothed.Bounds()
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			off := smoothed.PixOffset(b.Min.X+x, b.Min.Y+y)
			lum[y*width+x] = int32(smoothed.Pix[off])
		}
	}
	return lum
}

// suppress thins the magnitude map to one-pixel-wide ridges. Border pixels
// are always dropped.
func suppress(magnitude []float64, grad *detection.GradientField, width, height int) []float64 {
	out := make([]float64, width*height)
	for y := 1; y < height-1; y++ {
		for x := 1; x < width-1; x++ {
			mag := magnitude[y*width+x]
			if mag == 0 {
				continue
			}
			dx, dy := grad.At(x, y)
			angle := math.Atan2(float64(dy), float64(dx))

			var n1, n2 float64
			switch {
			case (angle >= -math.Pi/8 && angle < math.Pi/8) || angle >= 7*math.Pi/8 || angle < -7*math.Pi/8:
				n1 = magnitude[y*width+x-1]
				n2 = magnitude[y*width+x+1]
			case (angle >= math.Pi/8 && angle < 3*math.Pi/8) || (angle >= -7*math.Pi/8 && angle < -5*math.Pi/8):
				n1 = magnitude[(y-1)*width+x-1]
				n2 = magnitude[(y+1)*width+x+1]
			case (angle >= 3*math.Pi/8 && angle < 5*math.Pi/8) || (angle >= -5*math.Pi/8 && angle < -3*math.Pi/8):
				n1 = magnitude[(y-1)*width+x]
				n2 = magnitude[(y+1)*width+x]
			default:
				n1 = magnitude[(y-1)*width+x+1]
				n2 = magnitude[(y+1)*width+x-1]
			}

			if mag >= n1 && mag >= n2 {
				out[y*width+x] = mag
			}
		}
	}
	return out
}

// hysteresis marks every pixel >= high and grows the marked set through
// 8-connected pixels >= low.
func hysteresis(suppressed []float64, width, height int, low, high float64) *image.Gray {
	mask := image.NewGray(image.Rect(0, 0, width, height))
	stack := make([]int, 0, 64)
	for i, v := range suppressed {
		if v >= high && v > 0 && mask.Pix[i] == 0 {
			mask.Pix[i] = 255
			stack = append(stack, i)
		}
		for len(stack) > 0 {
			j := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			jx, jy := j%width, j/width
			for ky := -1; ky <= 1; ky++ {
				for kx := -1; kx <= 1; kx++ {
					nx, ny := jx+kx, jy+ky
					if nx < 0 || ny < 0 || nx >= width || ny >= height {
						continue
					}
					k := ny*width + nx
					if mask.Pix[k] == 0 && suppressed[k] >= low && suppressed[k] > 0 {
						mask.Pix[k] = 255
						stack = append(stack, k)
					}
				}
			}
		}
	}
	return mask
}

// ToGray converts any image to an 8-bit grayscale image anchored at (0,0).
func ToGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok && g.Rect.Min == (image.Point{}) {
		return g
	}
	src := imaging.Grayscale(img)
	b := src.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			out.Pix[y*out.Stride+x] = src.Pix[src.PixOffset(b.Min.X+x, b.Min.Y+y)]
		}
	}
	return out
}

// EdgeDetect performs Canny edge detection on an image and returns the mask
// as a base64 PNG.
//
// Parameters:
//   - img: Source image (color or grayscale).
//   - thresholdLow: Low hysteresis threshold. Typical value: 50.
//   - thresholdHigh: High hysteresis threshold. Typical value: 150.
//
// Returns:
//   - *EdgeDetectResult: Edge image as base64 PNG plus the edge pixel count.
//   - error: Non-nil if detection or PNG encoding fails.
//
// # Threshold Selection
//
// Lower thresholds detect more edges but increase noise. Higher thresholds
// produce cleaner results but may miss faint edges.
//
// Recommended starting points:
//   - Clean diagrams: thresholdLow=50, thresholdHigh=150
//   - Photographs: thresholdLow=100, thresholdHigh=200
//   - Noisy images: thresholdLow=75, thresholdHigh=175
func EdgeDetect(img image.Image, thresholdLow, thresholdHigh int) (*EdgeDetectResult, error) {
	mask, _, err := Canny{}.Detect(ToGray(img), thresholdLow, thresholdHigh)
	if err != nil {
		return nil, err
	}

	count := 0
	for _, v := range mask.Pix {
		if v != 0 {
			count++
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, mask); err != nil {
		return nil, fmt.Errorf("failed to encode edge image: %w", err)
	}

	return &EdgeDetectResult{
		Width:       mask.Rect.Dx(),
		Height:      mask.Rect.Dy(),
		EdgePixels:  count,
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    "image/png",
	}, nil
}

// clamp constrains an integer value to the range [lo, hi].
func clamp(val, lo, hi int) int {
	if val < lo {
		return lo
	}
	if val > hi {
		return hi
	}
	return val
}

package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"strconv"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/ironsheep/hough-mcp/internal/detection"
)

// Shapes collects detection results to be drawn over an image.
type Shapes struct {
	Lines     []detection.PolarLine
	Segments  []detection.Segment
	Circles   []detection.Circle
	Positions []detection.Position

	// TemplateSize is the unscaled template extent drawn as a rotated box
	// around each position. A zero size draws a cross instead.
	TemplateSize image.Point
}

// Len returns the total number of shapes.
func (s Shapes) Len() int {
	return len(s.Lines) + len(s.Segments) + len(s.Circles) + len(s.Positions)
}

// OverlayResult contains the annotated image
type OverlayResult struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Shapes      int    `json:"shapes"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// Overlay draws detected shapes on a copy of img and returns it as base64 PNG.
//
// Parameters:
//   - img: Background image. Detection coordinates are taken relative to its
//     bounds origin.
//   - shapes: Lines, segments, circles and template positions to draw.
//   - colorHex: "#RRGGBB" or "#RRGGBBAA" used for every shape. When empty or
//     invalid each shape gets its own colour from a generated palette.
//   - labels: Draw the index of each shape next to it.
//
// Returns:
//   - *OverlayResult: The annotated image as base64 PNG.
//   - error: Non-nil if PNG encoding fails.
func Overlay(img image.Image, shapes Shapes, colorHex string, labels bool) (*OverlayResult, error) {
	bounds := img.Bounds()
	result := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(result, result.Rect, img, bounds.Min, draw.Src)

	colors := shapeColors(shapes.Len(), colorHex)
	labelColor := color.RGBA{255, 255, 255, 255}
	labelBg := color.RGBA{0, 0, 0, 180}

	i := 0
	next := func(x, y int) color.RGBA {
		c := colors[i]
		if labels {
			drawLabel(result, x+2, y+2, strconv.Itoa(i), labelColor, labelBg)
		}
		i++
		return c
	}

	for _, l := range shapes.Lines {
		seg, ok := l.Clip(result.Rect.Dx(), result.Rect.Dy())
		if !ok {
			i++
			continue
		}
		c := next(int((seg.X1+seg.X2)/2), int((seg.Y1+seg.Y2)/2))
		drawLine(result, float64(seg.X1), float64(seg.Y1), float64(seg.X2), float64(seg.Y2), c)
	}
	for _, s := range shapes.Segments {
		c := next(int(s.X1), int(s.Y1))
		drawLine(result, float64(s.X1), float64(s.Y1), float64(s.X2), float64(s.Y2), c)
	}
	for _, ci := range shapes.Circles {
		c := next(int(ci.X+ci.Radius), int(ci.Y))
		drawCircle(result, float64(ci.X), float64(ci.Y), float64(ci.Radius), c)
		drawCross(result, float64(ci.X), float64(ci.Y), 2, c)
	}
	for _, p := range shapes.Positions {
		c := next(int(p.X), int(p.Y))
		drawPosition(result, p, shapes.TemplateSize, c)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, result); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	return &OverlayResult{
		Width:       result.Rect.Dx(),
		Height:      result.Rect.Dy(),
		Shapes:      shapes.Len(),
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    "image/png",
	}, nil
}

// shapeColors returns n colours, either all equal to colorHex or a
// perceptually distinct palette.
func shapeColors(n int, colorHex string) []color.RGBA {
	out := make([]color.RGBA, n)
	if n == 0 {
		return out
	}
	if c, err := parseHexColor(colorHex); err == nil {
		for i := range out {
			out[i] = c
		}
		return out
	}
	for i, c := range colorful.FastHappyPalette(n) {
		r, g, b := c.RGB255()
		out[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return out
}

// parseHexColor parses a hex color string like "#FF0000" or "#FF000080"
func parseHexColor(hex string) (color.RGBA, error) {
	if len(hex) == 0 {
		return color.RGBA{}, fmt.Errorf("empty color string")
	}
	if hex[0] == '#' {
		hex = hex[1:]
	}

	var a uint8 = 255
	switch len(hex) {
	case 6:
	case 8:
		v, err := strconv.ParseUint(hex[6:], 16, 8)
		if err != nil {
			return color.RGBA{}, err
		}
		a = uint8(v)
		hex = hex[:6]
	default:
		return color.RGBA{}, fmt.Errorf("invalid hex color length")
	}

	c, err := colorful.Hex("#" + hex)
	if err != nil {
		return color.RGBA{}, err
	}
	r, g, b := c.RGB255()
	return color.RGBA{R: r, G: g, B: b, A: a}, nil
}

// drawLine rasterises the segment by unit steps along its major axis.
func drawLine(img *image.RGBA, x0, y0, x1, y1 float64, c color.RGBA) {
	dx, dy := x1-x0, y1-y0
	n := int(math.Ceil(math.Max(math.Abs(dx), math.Abs(dy))))
	if n == 0 {
		setPixel(img, int(math.Round(x0)), int(math.Round(y0)), c)
		return
	}
	for k := 0; k <= n; k++ {
		t := float64(k) / float64(n)
		setPixel(img, int(math.Round(x0+t*dx)), int(math.Round(y0+t*dy)), c)
	}
}

func drawCircle(img *image.RGBA, cx, cy, r float64, c color.RGBA) {
	n := int(8*r) + 16
	for k := 0; k < n; k++ {
		a := 2 * math.Pi * float64(k) / float64(n)
		setPixel(img, int(math.Round(cx+r*math.Cos(a))), int(math.Round(cy+r*math.Sin(a))), c)
	}
}

func drawCross(img *image.RGBA, x, y, size float64, c color.RGBA) {
	drawLine(img, x-size, y, x+size, y, c)
	drawLine(img, x, y-size, x, y+size, c)
}

// drawPosition draws the template box scaled and rotated (degrees) about the
// detected reference point.
func drawPosition(img *image.RGBA, p detection.Position, size image.Point, c color.RGBA) {
	if size.X <= 0 || size.Y <= 0 {
		drawCross(img, float64(p.X), float64(p.Y), 5, c)
		return
	}
	scale := float64(p.Scale)
	if scale <= 0 {
		scale = 1
	}
	hw, hh := float64(size.X)*scale/2, float64(size.Y)*scale/2
	sin, cos := math.Sincos(float64(p.Angle) * math.Pi / 180)
	corners := [4][2]float64{{-hw, -hh}, {hw, -hh}, {hw, hh}, {-hw, hh}}
	var pts [4][2]float64
	for k, q := range corners {
		pts[k] = [2]float64{
			float64(p.X) + q[0]*cos - q[1]*sin,
			float64(p.Y) + q[0]*sin + q[1]*cos,
		}
	}
	for k := range pts {
		a, b := pts[k], pts[(k+1)%4]
		drawLine(img, a[0], a[1], b[0], b[1], c)
	}
	drawCross(img, float64(p.X), float64(p.Y), 2, c)
}

func setPixel(img *image.RGBA, x, y int, c color.RGBA) {
	if image.Pt(x, y).In(img.Rect) {
		img.SetRGBA(x, y, c)
	}
}

// drawLabel draws a simple text label at the given position using a 3x5
// pixel digit font. Characters without a glyph are skipped.
func drawLabel(img *image.RGBA, x, y int, text string, fg, bg color.RGBA) {
	glyphs := map[rune][]string{
		'0': {"111", "101", "101", "101", "111"},
		'1': {"010", "110", "010", "010", "111"},
		'2': {"111", "001", "111", "100", "111"},
		'3': {"111", "001", "111", "001", "111"},
		'4': {"101", "101", "111", "001", "001"},
		'5': {"111", "100", "111", "001", "111"},
		'6': {"111", "100", "111", "101", "111"},
		'7': {"111", "001", "001", "001", "001"},
		'8': {"111", "101", "111", "101", "111"},
		'9': {"111", "101", "111", "001", "111"},
		',': {"000", "000", "000", "010", "010"},
	}

	charWidth := 4
	labelWidth := len(text) * charWidth
	labelHeight := 7

	for dy := -1; dy < labelHeight; dy++ {
		for dx := -1; dx < labelWidth; dx++ {
			setPixel(img, x+dx, y+dy, bg)
		}
	}

	cx := x
	for _, ch := range text {
		glyph, ok := glyphs[ch]
		if !ok {
			cx += charWidth
			continue
		}
		for row, line := range glyph {
			for col, pixel := range line {
				if pixel == '1' {
					setPixel(img, cx+col, y+row, fg)
				}
			}
		}
		cx += charWidth
	}
}

package imaging

import (
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/ironsheep/hough-mcp/internal/detection"
)

func TestEdgeDetect(t *testing.T) {
	// Create an image with a clear edge (black rectangle on white background)
	img := createEdgeTestImage(100, 100)

	result, err := EdgeDetect(img, 50, 150)
	if err != nil {
		t.Fatalf("EdgeDetect failed: %v", err)
	}

	if result.Width != 100 || result.Height != 100 {
		t.Errorf("dimensions: got %dx%d, want 100x100", result.Width, result.Height)
	}

	if result.EdgePixels == 0 {
		t.Error("EdgePixels: got 0, want the rectangle outline")
	}

	if result.MimeType != "image/png" {
		t.Errorf("MimeType: got %s, want image/png", result.MimeType)
	}

	// Verify base64 can be decoded
	decoded, err := base64.StdEncoding.DecodeString(result.ImageBase64)
	if err != nil {
		t.Fatalf("failed to decode base64: %v", err)
	}

	// Verify it's a valid PNG
	edgeImg, err := png.Decode(strings.NewReader(string(decoded)))
	if err != nil {
		t.Fatalf("failed to decode PNG: %v", err)
	}

	// Verify the edge image has the same bounds
	if edgeImg.Bounds().Dx() != 100 || edgeImg.Bounds().Dy() != 100 {
		t.Errorf("decoded image dimensions: got %dx%d, want 100x100",
			edgeImg.Bounds().Dx(), edgeImg.Bounds().Dy())
	}
}

func TestEdgeDetect_DifferentThresholds(t *testing.T) {
	img := createEdgeTestImage(50, 50)

	tests := []struct {
		name      string
		low, high int
	}{
		{"low thresholds", 10, 50},
		{"medium thresholds", 50, 150},
		{"high thresholds", 100, 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := EdgeDetect(img, tt.low, tt.high)
			if err != nil {
				t.Fatalf("EdgeDetect failed: %v", err)
			}

			// Just verify it produces valid output
			if result.ImageBase64 == "" {
				t.Error("ImageBase64 is empty")
			}
		})
	}
}

func TestEdgeDetect_UniformImage(t *testing.T) {
	// Uniform image should have no edges
	img := createInMemoryImage(50, 50, color.RGBA{128, 128, 128, 255})

	result, err := EdgeDetect(img, 50, 150)
	if err != nil {
		t.Fatalf("EdgeDetect failed: %v", err)
	}

	// Decode and verify mostly black (no edges)
	decoded, _ := base64.StdEncoding.DecodeString(result.ImageBase64)
	edgeImg, _ := png.Decode(strings.NewReader(string(decoded)))

	// Sample center - should be black (no edge in uniform image)
	r, g, b, _ := edgeImg.At(25, 25).RGBA()
	if r != 0 || g != 0 || b != 0 {
		t.Errorf("uniform image should have no edges at center, got (%d,%d,%d)", r>>8, g>>8, b>>8)
	}
}

func TestEdgeDetect_StrongEdge(t *testing.T) {
	// Create image with strong contrast edge
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			if x < 50 {
				img.Set(x, y, color.Black)
			} else {
				img.Set(x, y, color.White)
			}
		}
	}

	result, err := EdgeDetect(img, 50, 150)
	if err != nil {
		t.Fatalf("EdgeDetect failed: %v", err)
	}

	// Decode result
	decoded, _ := base64.StdEncoding.DecodeString(result.ImageBase64)
	edgeImg, _ := png.Decode(strings.NewReader(string(decoded)))

	// Check near the edge (around x=50)
	// The edge should be detected around x=50
	edgeFound := false
	for x := 48; x <= 52; x++ {
		r, _, _, _ := edgeImg.At(x, 50).RGBA()
		if r > 0 {
			edgeFound = true
			break
		}
	}

	if !edgeFound {
		t.Error("strong vertical edge was not detected")
	}
}

func TestEdgeDetect_SmallImage(t *testing.T) {
	// Very small image (edge cases for convolution)
	img := createInMemoryImage(5, 5, color.RGBA{128, 128, 128, 255})

	result, err := EdgeDetect(img, 50, 150)
	if err != nil {
		t.Fatalf("EdgeDetect failed: %v", err)
	}

	if result.Width != 5 || result.Height != 5 {
		t.Errorf("dimensions: got %dx%d, want 5x5", result.Width, result.Height)
	}
}

func TestCanny_StepGradient(t *testing.T) {
	gray := image.NewGray(image.Rect(0, 0, 40, 20))
	for y := 0; y < 20; y++ {
		for x := 20; x < 40; x++ {
			gray.SetGray(x, y, color.Gray{200})
		}
	}

	mask, grad, err := Canny{BlurRadius: -1}.Detect(gray, 50, 150)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if grad.Width != 40 || grad.Height != 20 {
		t.Fatalf("gradient size: got %dx%d, want 40x20", grad.Width, grad.Height)
	}

	// Rising step to the right: positive x derivative, no y derivative.
	dx, dy := grad.At(20, 10)
	if dx != 800 || dy != 0 {
		t.Errorf("gradient at step: got (%d,%d), want (800,0)", dx, dy)
	}
	dx, dy = grad.At(5, 10)
	if dx != 0 || dy != 0 {
		t.Errorf("gradient in flat region: got (%d,%d), want (0,0)", dx, dy)
	}

	for y := 1; y < 19; y++ {
		if mask.GrayAt(19, y).Y != 255 && mask.GrayAt(20, y).Y != 255 {
			t.Errorf("row %d: step edge not marked", y)
		}
		if mask.GrayAt(5, y).Y != 0 || mask.GrayAt(35, y).Y != 0 {
			t.Errorf("row %d: flat region marked as edge", y)
		}
	}
}

func TestCanny_OffsetBounds(t *testing.T) {
	gray := image.NewGray(image.Rect(10, 10, 30, 30))
	mask, grad, err := Canny{}.Detect(gray, 10, 20)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if mask.Rect != image.Rect(0, 0, 20, 20) {
		t.Errorf("mask bounds: got %v, want (0,0)-(20,20)", mask.Rect)
	}
	if len(grad.Dx) != 400 {
		t.Errorf("gradient length: got %d, want 400", len(grad.Dx))
	}
}

func TestCanny_InvalidInput(t *testing.T) {
	gray := image.NewGray(image.Rect(0, 0, 10, 10))
	tests := []struct {
		name      string
		img       *image.Gray
		low, high int
	}{
		{"nil image", nil, 10, 20},
		{"empty image", image.NewGray(image.Rect(0, 0, 0, 0)), 10, 20},
		{"negative low", gray, -1, 20},
		{"high below low", gray, 30, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := (Canny{}).Detect(tt.img, tt.low, tt.high); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestCanny_FeedsCircleDetector(t *testing.T) {
	img := createDiskImage(100, 100, 50, 50, 20)

	det := detection.NewCircleDetector(detection.WithEdgeDetector(Canny{}))
	res, err := det.Detect(ToGray(img), detection.CircleParams{
		Dp:             1,
		MinDist:        10,
		CannyThreshold: 150,
		VotesThreshold: 20,
		MinRadius:      10,
		MaxRadius:      30,
		MaxCircles:     5,
	})
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}

	circles, _ := res.Download()
	if len(circles) == 0 {
		t.Fatal("no circle detected")
	}
	c := circles[0]
	if absFloat(float64(c.X)-50) > 2 || absFloat(float64(c.Y)-50) > 2 || absFloat(float64(c.Radius)-20) > 2 {
		t.Errorf("circle: got (%.1f,%.1f r=%.1f), want (50,50 r=20)", c.X, c.Y, c.Radius)
	}
}

func TestToGray(t *testing.T) {
	img := image.NewRGBA(image.Rect(5, 5, 15, 10))
	img.Set(5, 5, color.White)

	gray := ToGray(img)
	if gray.Rect != image.Rect(0, 0, 10, 5) {
		t.Fatalf("bounds: got %v, want (0,0)-(10,5)", gray.Rect)
	}
	if gray.GrayAt(0, 0).Y != 255 {
		t.Errorf("origin pixel: got %d, want 255", gray.GrayAt(0, 0).Y)
	}
	if gray.GrayAt(1, 0).Y != 0 {
		t.Errorf("neighbour pixel: got %d, want 0", gray.GrayAt(1, 0).Y)
	}

	same := image.NewGray(image.Rect(0, 0, 3, 3))
	if ToGray(same) != same {
		t.Error("origin-anchored gray image should be returned as is")
	}
}

func TestClamp(t *testing.T) {
	tests := []struct {
		val, lo, hi, want int
	}{
		{5, 0, 10, 5},   // within range
		{-1, 0, 10, 0},  // below min
		{15, 0, 10, 10}, // above max
		{0, 0, 10, 0},   // at min
		{10, 0, 10, 10}, // at max
	}

	for _, tt := range tests {
		got := clamp(tt.val, tt.lo, tt.hi)
		if got != tt.want {
			t.Errorf("clamp(%d, %d, %d): got %d, want %d",
				tt.val, tt.lo, tt.hi, got, tt.want)
		}
	}
}

// Helper functions

// createEdgeTestImage creates an image with a black rectangle on white background
// to create clear edges for testing
func createEdgeTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))

	// White background
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.White)
		}
	}

	// Black rectangle in center (creates 4 edges)
	for y := height/4; y < 3*height/4; y++ {
		for x := width/4; x < 3*width/4; x++ {
			img.Set(x, y, color.Black)
		}
	}

	return img
}

func absFloat(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

package detection

import (
	"image"
	"image/color"
	"math"
)

// newCanvas returns an empty mask and gradient field of the given size.
func newCanvas(w, h int) (*image.Gray, *GradientField) {
	return image.NewGray(image.Rect(0, 0, w, h)), NewGradientField(w, h)
}

func setEdge(mask *image.Gray, grad *GradientField, x, y int, dx, dy int32) {
	if x < 0 || y < 0 || x >= mask.Rect.Dx() || y >= mask.Rect.Dy() {
		return
	}
	mask.SetGray(x, y, color.Gray{Y: 255})
	if grad != nil {
		grad.Set(x, y, dx, dy)
	}
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

// drawRing rasterizes a circle with gradients pointing away from its center.
func drawRing(mask *image.Gray, grad *GradientField, cx, cy, r float64) int {
	for a := 0; a < 1440; a++ {
		t := float64(a) * math.Pi / 720
		x := int(math.Round(cx + r*math.Cos(t)))
		y := int(math.Round(cy + r*math.Sin(t)))
		setEdge(mask, grad, x, y,
			int32(math.Round((float64(x)-cx)*100)),
			int32(math.Round((float64(y)-cy)*100)))
	}
	return countEdges(mask)
}

// drawPolygon rasterizes a closed polygon. Each edge pixel gets the edge's
// unit normal scaled by 1000 as its gradient.
func drawPolygon(mask *image.Gray, grad *GradientField, verts [][2]float64) int {
	for i := range verts {
		a, b := verts[i], verts[(i+1)%len(verts)]
		dx, dy := b[0]-a[0], b[1]-a[1]
		length := math.Hypot(dx, dy)
		nx, ny := dy/length, -dx/length
		steps := int(math.Ceil(math.Max(math.Abs(dx), math.Abs(dy))))
		for s := 0; s <= steps; s++ {
			t := float64(s) / float64(steps)
			setEdge(mask, grad,
				int(math.Round(a[0]+t*dx)), int(math.Round(a[1]+t*dy)),
				int32(math.Round(nx*1000)), int32(math.Round(ny*1000)))
		}
	}
	return countEdges(mask)
}

// transform rotates verts by deg degrees and scales them by s around from,
// then moves the result so that from lands on to.
func transform(verts [][2]float64, from, to [2]float64, deg, s float64) [][2]float64 {
	sin, cos := math.Sincos(deg * math.Pi / 180)
	out := make([][2]float64, len(verts))
	for i, v := range verts {
		x, y := (v[0]-from[0])*s, (v[1]-from[1])*s
		out[i] = [2]float64{to[0] + x*cos - y*sin, to[1] + x*sin + y*cos}
	}
	return out
}

// fakeEdges returns a precomputed mask and gradient field.
type fakeEdges struct {
	mask *image.Gray
	grad *GradientField
	err  error

	low, high int
}

func (f *fakeEdges) Detect(_ *image.Gray, low, high int) (*image.Gray, *GradientField, error) {
	f.low, f.high = low, high
	return f.mask, f.grad, f.err
}

package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/ironsheep/hough-mcp/internal/detection"
)

// HeatMapResult contains a rendered accumulator plot.
type HeatMapResult struct {
	Rows        int    `json:"rows"`
	Cols        int    `json:"cols"`
	MaxVotes    int32  `json:"max_votes"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// HeatMapAxes describes the physical quantity along each accumulator axis.
// Cell (row, col) is drawn at (X0 + col*XStep, Y0 + row*YStep).
type HeatMapAxes struct {
	XLabel string
	YLabel string
	X0     float64
	XStep  float64
	Y0     float64
	YStep  float64
}

// accumulatorGrid adapts a snapshot to plotter.GridXYZ.
type accumulatorGrid struct {
	snap detection.AccumulatorSnapshot
	axes HeatMapAxes
}

func (g accumulatorGrid) Dims() (c, r int) { return g.snap.Cols, g.snap.Rows }

func (g accumulatorGrid) Z(c, r int) float64 { return float64(g.snap.At(r, c)) }

func (g accumulatorGrid) X(c int) float64 { return g.axes.X0 + float64(c)*g.axes.XStep }

func (g accumulatorGrid) Y(r int) float64 { return g.axes.Y0 + float64(r)*g.axes.YStep }

// AccumulatorHeatMap renders a two-dimensional vote accumulator as a PNG heat
// map and returns it base64 encoded.
//
// Parameters:
//   - snap: Accumulator copy, for example LineDetector.Accumulator().
//   - title: Plot title.
//   - axes: Axis labels and cell-to-value mapping. Zero steps default to 1.
//   - width, height: Output size in points. Zero selects 6x4 inches.
//
// Returns:
//   - *HeatMapResult: The rendered plot as base64 PNG.
//   - error: Non-nil if the snapshot is empty or rendering fails.
func AccumulatorHeatMap(snap detection.AccumulatorSnapshot, title string, axes HeatMapAxes, width, height vg.Length) (*HeatMapResult, error) {
	if snap.Rows < 2 || snap.Cols < 2 || len(snap.Votes) != snap.Rows*snap.Cols {
		return nil, fmt.Errorf("accumulator snapshot %dx%d cannot be plotted", snap.Rows, snap.Cols)
	}
	if axes.XStep == 0 {
		axes.XStep = 1
	}
	if axes.YStep == 0 {
		axes.YStep = 1
	}
	if width == 0 {
		width = 6 * vg.Inch
	}
	if height == 0 {
		height = 4 * vg.Inch
	}

	maxVotes := snap.Max()
	cmap := moreland.SmoothBlueRed()
	cmap.SetMin(0)
	cmap.SetMax(float64(maxVotes) + 1)

	hm := plotter.NewHeatMap(accumulatorGrid{snap: snap, axes: axes}, cmap.Palette(255))
	hm.Min = 0
	hm.Max = float64(maxVotes) + 1

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = axes.XLabel
	p.Y.Label.Text = axes.YLabel
	p.Add(hm)

	wt, err := p.WriterTo(width, height, "png")
	if err != nil {
		return nil, fmt.Errorf("failed to render heat map: %w", err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode heat map: %w", err)
	}

	return &HeatMapResult{
		Rows:        snap.Rows,
		Cols:        snap.Cols,
		MaxVotes:    maxVotes,
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    "image/png",
	}, nil
}

package imaging

import (
	"encoding/base64"
	"image/png"
	"strings"
	"testing"

	"github.com/ironsheep/hough-mcp/internal/detection"
)

func TestAccumulatorHeatMap(t *testing.T) {
	snap := detection.AccumulatorSnapshot{Rows: 3, Cols: 4, Votes: []int32{
		0, 1, 2, 3,
		4, 9, 6, 7,
		0, 0, 0, 1,
	}}

	result, err := AccumulatorHeatMap(snap, "lines", HeatMapAxes{XLabel: "rho", YLabel: "theta"}, 0, 0)
	if err != nil {
		t.Fatalf("AccumulatorHeatMap failed: %v", err)
	}
	if result.Rows != 3 || result.Cols != 4 {
		t.Errorf("dimensions: got %dx%d, want 3x4", result.Rows, result.Cols)
	}
	if result.MaxVotes != 9 {
		t.Errorf("MaxVotes: got %d, want 9", result.MaxVotes)
	}
	if result.MimeType != "image/png" {
		t.Errorf("MimeType: got %s, want image/png", result.MimeType)
	}

	decoded, err := base64.StdEncoding.DecodeString(result.ImageBase64)
	if err != nil {
		t.Fatalf("failed to decode base64: %v", err)
	}
	if _, err := png.Decode(strings.NewReader(string(decoded))); err != nil {
		t.Fatalf("failed to decode PNG: %v", err)
	}
}

func TestAccumulatorHeatMap_AllZero(t *testing.T) {
	snap := detection.AccumulatorSnapshot{Rows: 2, Cols: 2, Votes: make([]int32, 4)}
	if _, err := AccumulatorHeatMap(snap, "", HeatMapAxes{}, 0, 0); err != nil {
		t.Fatalf("AccumulatorHeatMap failed on an empty accumulator: %v", err)
	}
}

func TestAccumulatorHeatMap_Invalid(t *testing.T) {
	tests := []struct {
		name string
		snap detection.AccumulatorSnapshot
	}{
		{"empty", detection.AccumulatorSnapshot{}},
		{"single row", detection.AccumulatorSnapshot{Rows: 1, Cols: 5, Votes: make([]int32, 5)}},
		{"short votes", detection.AccumulatorSnapshot{Rows: 3, Cols: 3, Votes: make([]int32, 4)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := AccumulatorHeatMap(tt.snap, "", HeatMapAxes{}, 0, 0); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestAccumulatorGrid(t *testing.T) {
	g := accumulatorGrid{
		snap: detection.AccumulatorSnapshot{Rows: 2, Cols: 3, Votes: []int32{1, 2, 3, 4, 5, 6}},
		axes: HeatMapAxes{X0: -1, XStep: 0.5, Y0: 10, YStep: 2},
	}
	c, r := g.Dims()
	if c != 3 || r != 2 {
		t.Errorf("Dims: got (%d,%d), want (3,2)", c, r)
	}
	if g.Z(2, 1) != 6 {
		t.Errorf("Z(2,1): got %v, want 6", g.Z(2, 1))
	}
	if g.X(2) != 0 || g.Y(1) != 12 {
		t.Errorf("X(2),Y(1): got %v,%v, want 0,12", g.X(2), g.Y(1))
	}
}

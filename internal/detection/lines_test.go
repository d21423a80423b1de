package detection

import (
	"image"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineDetector_SingleLine(t *testing.T) {
	tests := []struct {
		name      string
		points    func(mask *image.Gray) int
		threshold int
		wantRho   float64
		wantTheta float64
	}{
		{
			name: "horizontal",
			points: func(mask *image.Gray) int {
				for x := 10; x < 90; x++ {
					setEdge(mask, nil, x, 20, 0, 0)
				}
				return 80
			},
			threshold: 70,
			wantRho:   20,
			wantTheta: math.Pi / 2,
		},
		{
			name: "vertical",
			points: func(mask *image.Gray) int {
				for y := 5; y < 85; y++ {
					setEdge(mask, nil, 33, y, 0, 0)
				}
				return 80
			},
			threshold: 70,
			wantRho:   33,
			wantTheta: 0,
		},
		{
			name: "diagonal",
			points: func(mask *image.Gray) int {
				for i := 0; i < 60; i++ {
					setEdge(mask, nil, i, i, 0, 0)
				}
				return 60
			},
			threshold: 50,
			wantRho:   0,
			wantTheta: 3 * math.Pi / 4,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mask, _ := newCanvas(100, 100)
			n := tt.points(mask)

			p := DefaultLineParams()
			p.Threshold = tt.threshold
			res, err := NewLineDetector().Detect(mask, p)
			require.NoError(t, err)

			lines, votes := res.Download()
			require.Len(t, lines, 1)
			require.Len(t, votes, 1)
			assert.InDelta(t, tt.wantRho, float64(lines[0].Rho), p.Rho)
			assert.InDelta(t, tt.wantTheta, float64(lines[0].Theta), p.Theta)
			assert.Equal(t, int32(n), votes[0])
		})
	}
}

func TestLineDetector_EmptyMask(t *testing.T) {
	mask, _ := newCanvas(64, 48)
	res, err := NewLineDetector().Detect(mask, DefaultLineParams())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Len())

	lines, votes := res.Download()
	assert.Empty(t, lines)
	assert.Empty(t, votes)
}

func TestLineDetector_SortAndTruncate(t *testing.T) {
	mask, _ := newCanvas(120, 120)
	lengths := []int{40, 90, 60, 75}
	for i, l := range lengths {
		for x := 0; x < l; x++ {
			setEdge(mask, nil, x+10, 15+25*i, 0, 0)
		}
	}

	p := DefaultLineParams()
	p.Threshold = 35
	p.DoSort = true
	p.MaxLines = 2
	res, err := NewLineDetector(WithWorkers(3)).Detect(mask, p)
	require.NoError(t, err)

	lines, votes := res.Download()
	require.Len(t, lines, 2)
	assert.Equal(t, []int32{90, 75}, votes)
	assert.InDelta(t, 40, float64(lines[0].Rho), 1)
	assert.InDelta(t, 90, float64(lines[1].Rho), 1)
}

func TestLineDetector_Preconditions(t *testing.T) {
	mask, _ := newCanvas(10, 10)
	d := NewLineDetector()

	tests := []struct {
		name   string
		mutate func(p *LineParams)
	}{
		{"zero rho", func(p *LineParams) { p.Rho = 0 }},
		{"negative theta", func(p *LineParams) { p.Theta = -0.1 }},
		{"zero threshold", func(p *LineParams) { p.Threshold = 0 }},
		{"zero max lines", func(p *LineParams) { p.MaxLines = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultLineParams()
			tt.mutate(&p)
			_, err := d.Detect(mask, p)
			assert.ErrorIs(t, err, ErrPrecondition)
		})
	}

	_, err := d.Detect(nil, DefaultLineParams())
	assert.ErrorIs(t, err, ErrPrecondition)
}

func TestLineDetector_ReuseAcrossSizes(t *testing.T) {
	d := NewLineDetector()
	p := DefaultLineParams()
	p.Threshold = 100

	big, _ := newCanvas(200, 200)
	for x := 0; x < 150; x++ {
		setEdge(big, nil, x, 100, 0, 0)
	}
	res, err := d.Detect(big, p)
	require.NoError(t, err)
	require.Equal(t, 1, res.Len())

	small, _ := newCanvas(50, 50)
	for y := 0; y < 40; y++ {
		setEdge(small, nil, 7, y, 0, 0)
	}
	p.Threshold = 35
	res, err = d.Detect(small, p)
	require.NoError(t, err)
	lines, votes := res.Download()
	require.Len(t, lines, 1)
	assert.Equal(t, int32(40), votes[0])
	assert.InDelta(t, 7, float64(lines[0].Rho), 1)

	snap := d.Accumulator()
	assert.Equal(t, int32(40), snap.Max())

	d.Release()
	assert.Empty(t, d.Accumulator().Votes)
}

func TestPolarLine_Clip(t *testing.T) {
	tests := []struct {
		name string
		line PolarLine
		want Segment
		ok   bool
	}{
		{"horizontal", PolarLine{Rho: 20, Theta: math.Pi / 2}, Segment{X1: 0, Y1: 20, X2: 99, Y2: 20}, true},
		{"vertical", PolarLine{Rho: 30, Theta: 0}, Segment{X1: 30, Y1: 0, X2: 30, Y2: 99}, true},
		{"outside", PolarLine{Rho: 500, Theta: 0}, Segment{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.line.Clip(100, 100)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

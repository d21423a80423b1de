package detection

import (
	"fmt"
	"math"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

func validateParams(p interface{}, fields ...string) error {
	var err error
	if len(fields) == 0 {
		err = validate.Struct(p)
	} else {
		err = validate.StructPartial(p, fields...)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPrecondition, err)
	}
	return nil
}

// LineParams configures standard line detection.
type LineParams struct {
	// Rho is the distance resolution of the accumulator in pixels.
	Rho float64 `json:"rho" validate:"gt=0"`
	// Theta is the angle resolution of the accumulator in radians.
	Theta float64 `json:"theta" validate:"gt=0,lte=3.141592653589793"`
	// Threshold is the minimum number of votes for a line, inclusive.
	Threshold int `json:"threshold" validate:"gt=0"`
	// DoSort orders lines by votes descending before MaxLines is applied.
	DoSort bool `json:"do_sort"`
	// MaxLines caps the output.
	MaxLines int `json:"max_lines" validate:"gt=0"`
}

// DefaultLineParams returns one pixel, one degree resolution with a
// threshold of 100 votes.
func DefaultLineParams() LineParams {
	return LineParams{
		Rho:       1,
		Theta:     math.Pi / 180,
		Threshold: 100,
		MaxLines:  4096,
	}
}

// SegmentParams configures probabilistic (segment) line detection.
type SegmentParams struct {
	Rho   float64 `json:"rho" validate:"gt=0"`
	Theta float64 `json:"theta" validate:"gt=0,lte=3.141592653589793"`
	// MinLineLength is both the accumulator threshold and the minimum x or y
	// extent of a reported segment.
	MinLineLength int `json:"min_line_length" validate:"gt=0"`
	// MaxLineGap is the largest run of missing pixels bridged inside a segment.
	MaxLineGap int `json:"max_line_gap" validate:"gte=0"`
	MaxLines   int `json:"max_lines" validate:"gt=0"`
}

// DefaultSegmentParams returns settings suited to clean line drawings.
func DefaultSegmentParams() SegmentParams {
	return SegmentParams{
		Rho:           1,
		Theta:         math.Pi / 180,
		MinLineLength: 50,
		MaxLineGap:    5,
		MaxLines:      4096,
	}
}

// CircleParams configures gradient-based circle detection.
type CircleParams struct {
	// Dp is the inverse accumulator resolution: 2 means half the image resolution.
	Dp float64 `json:"dp" validate:"gt=0"`
	// MinDist is the minimum distance between detected centers. Values <= 1
	// disable suppression.
	MinDist float64 `json:"min_dist" validate:"gte=0"`
	// CannyThreshold is the high edge threshold; the low one is half of it.
	CannyThreshold int `json:"canny_threshold" validate:"gt=0"`
	// VotesThreshold applies to both center and radius voting.
	VotesThreshold int `json:"votes_threshold" validate:"gt=0"`
	MinRadius      int `json:"min_radius" validate:"gt=0"`
	MaxRadius      int `json:"max_radius" validate:"gtfield=MinRadius"`
	MaxCircles     int `json:"max_circles" validate:"gt=0"`
}

// DefaultCircleParams returns settings for radii between 5 and 100 pixels.
func DefaultCircleParams() CircleParams {
	return CircleParams{
		Dp:             1,
		MinDist:        20,
		CannyThreshold: 100,
		VotesThreshold: 30,
		MinRadius:      5,
		MaxRadius:      100,
		MaxCircles:     4096,
	}
}

// TemplateParams configures the generalized Hough detectors. Each method
// validates and uses only the fields it needs.
type TemplateParams struct {
	// MinDist is the minimum distance between reported positions. Values <= 1
	// disable suppression.
	MinDist float64 `json:"min_dist" validate:"gte=0"`
	// Levels is the number of gradient angle buckets over a full turn.
	Levels int `json:"levels" validate:"gt=0"`
	// Dp is the inverse position accumulator resolution.
	Dp float64 `json:"dp" validate:"gt=0"`
	// MaxBufferSize caps the number of reported positions.
	MaxBufferSize int `json:"max_buffer_size" validate:"gt=0"`
	// MaxSize caps the entries of one R-table or feature bucket.
	MaxSize int `json:"max_size" validate:"gt=0"`

	// VotesThreshold is the position threshold of the Ballard detectors.
	VotesThreshold int `json:"votes_threshold" validate:"gt=0"`

	MinScale  float64 `json:"min_scale" validate:"gt=0"`
	MaxScale  float64 `json:"max_scale" validate:"gtfield=MinScale"`
	ScaleStep float64 `json:"scale_step" validate:"gt=0"`

	// Angles are in degrees.
	MinAngle  float64 `json:"min_angle" validate:"gte=0"`
	MaxAngle  float64 `json:"max_angle" validate:"gtfield=MinAngle,lte=360"`
	AngleStep float64 `json:"angle_step" validate:"gt=0,lt=360"`

	// Xi is the angle in degrees between the gradients of a feature pair.
	Xi float64 `json:"xi" validate:"gte=0,lte=360"`
	// AngleEpsilon is the tolerance in degrees of every angle comparison.
	AngleEpsilon float64 `json:"angle_epsilon" validate:"gt=0"`
	AngleThresh  int     `json:"angle_thresh" validate:"gt=0"`
	ScaleThresh  int     `json:"scale_thresh" validate:"gt=0"`
	PosThresh    int     `json:"pos_thresh" validate:"gt=0"`
}

// DefaultTemplateParams returns the defaults of the detector selected by method.
func DefaultTemplateParams(method Method) TemplateParams {
	p := TemplateParams{
		MinDist:        1,
		Levels:         360,
		Dp:             1,
		MaxBufferSize:  10000,
		MaxSize:        10000,
		VotesThreshold: 100,
		MinScale:       0.5,
		MaxScale:       2,
		ScaleStep:      0.05,
		MinAngle:       0,
		MaxAngle:       360,
		AngleStep:      1,
		Xi:             90,
		AngleEpsilon:   1,
		AngleThresh:    15000,
		ScaleThresh:    1000,
		PosThresh:      100,
	}
	if method == MethodPositionScaleRotation {
		p.MaxSize = 1000
	}
	return p
}

var (
	commonTemplateFields   = []string{"MinDist", "Levels", "Dp", "MaxBufferSize", "MaxSize"}
	scaleTemplateFields    = []string{"MinScale", "MaxScale", "ScaleStep"}
	rotationTemplateFields = []string{"MinAngle", "MaxAngle", "AngleStep"}
	guilTemplateFields     = []string{"Xi", "AngleEpsilon", "AngleThresh", "ScaleThresh", "PosThresh"}
)

// fieldsFor lists the TemplateParams fields used by method.
func fieldsFor(method Method) []string {
	fields := append([]string(nil), commonTemplateFields...)
	if method != MethodPositionScaleRotation {
		fields = append(fields, "VotesThreshold")
	}
	if method.Has(MethodScale) {
		fields = append(fields, scaleTemplateFields...)
	}
	if method.Has(MethodRotation) {
		fields = append(fields, rotationTemplateFields...)
	}
	if method == MethodPositionScaleRotation {
		fields = append(fields, guilTemplateFields...)
	}
	return fields
}

// binCount is ceil(span/step) with a small tolerance so that exact multiples
// do not gain an extra bin from rounding noise.
func binCount(span, step float64) int {
	return int(math.Ceil(span/step - 1e-9))
}

package detection

import (
	"fmt"
	"image"
	"strings"
)

// Method is the set of transformations a generalized Hough detector searches.
type Method uint8

const (
	// MethodPosition searches translation.
	MethodPosition Method = 1 << iota
	// MethodScale searches uniform scale.
	MethodScale
	// MethodRotation searches rotation.
	MethodRotation
)

// Supported capability sets.
const (
	MethodPositionScale         = MethodPosition | MethodScale
	MethodPositionRotation      = MethodPosition | MethodRotation
	MethodPositionScaleRotation = MethodPosition | MethodScale | MethodRotation
)

// Has reports whether m includes every capability of c.
func (m Method) Has(c Method) bool {
	return m&c == c
}

func (m Method) String() string {
	var parts []string
	if m.Has(MethodPosition) {
		parts = append(parts, "POSITION")
	}
	if m.Has(MethodScale) {
		parts = append(parts, "SCALE")
	}
	if m.Has(MethodRotation) {
		parts = append(parts, "ROTATION")
	}
	if len(parts) == 0 {
		return fmt.Sprintf("Method(%d)", uint8(m))
	}
	return strings.Join(parts, "_")
}

// ParseMethod maps names such as "POSITION", "POSITION_SCALE",
// "position_rotation" or "POSITION_SCALE_ROTATION" to a Method.
func ParseMethod(s string) (Method, error) {
	var m Method
	for _, part := range strings.Split(strings.ToUpper(strings.TrimSpace(s)), "_") {
		switch part {
		case "POSITION":
			m |= MethodPosition
		case "SCALE":
			m |= MethodScale
		case "ROTATION":
			m |= MethodRotation
		default:
			return 0, fmt.Errorf("%w: %q", ErrUnsupportedMethod, s)
		}
	}
	return m, nil
}

// GeneralizedHough detects instances of a template silhouette in edge images.
//
// An engine starts without a template. SetTemplate (or SetTemplateImage)
// makes it ready, after which Detect may be called any number of times.
// Release returns it to the initial state. Engines are not safe for
// concurrent use.
type GeneralizedHough interface {
	// SetTemplate learns the template from its edge mask and gradients.
	// A center of (-1, -1) selects the middle of the template.
	SetTemplate(edges *image.Gray, grad *GradientField, center image.Point) error
	// SetTemplateImage runs the edge detector with thresholds
	// (cannyThreshold/2, cannyThreshold) and learns the result.
	SetTemplateImage(templ *image.Gray, cannyThreshold int, center image.Point) error
	// Detect finds template instances in an edge mask.
	Detect(edges *image.Gray, grad *GradientField) (*PositionResult, error)
	// DetectImage runs the edge detector and finds template instances.
	DetectImage(img *image.Gray, cannyThreshold int) (*PositionResult, error)
	// Method reports the capability set of the engine.
	Method() Method
	// Release drops the template and all buffers.
	Release()
}

// NewGeneralizedHough returns the detector for method:
//
//   - MethodPosition: Ballard, translation only.
//   - MethodPositionScale: Ballard with a scale dimension.
//   - MethodPositionRotation: Ballard with a rotation dimension.
//   - MethodPositionScaleRotation: Guil, pairs of edge points.
//
// p is validated against the fields the selected detector uses.
func NewGeneralizedHough(method Method, p TemplateParams, opts ...Option) (GeneralizedHough, error) {
	switch method {
	case MethodPosition, MethodPositionScale, MethodPositionRotation:
		if err := validateParams(p, fieldsFor(method)...); err != nil {
			return nil, err
		}
		o := newOptions(opts)
		return newEngine(method, p, o, newBallard(method, p, o)), nil
	case MethodPositionScaleRotation:
		if err := validateParams(p, fieldsFor(method)...); err != nil {
			return nil, err
		}
		o := newOptions(opts)
		return newEngine(method, p, o, newGuil(p, o)), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMethod, method)
	}
}

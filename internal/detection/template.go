package detection

import (
	"fmt"
	"image"

	"github.com/sirupsen/logrus"
)

// Position is a detected template instance: the image location of the
// template's reference center, its scale and its rotation in degrees.
type Position struct {
	X     float32 `json:"x"`
	Y     float32 `json:"y"`
	Scale float32 `json:"scale"`
	Angle float32 `json:"angle"`
}

// PositionVotes are the votes behind a Position in the position, scale and
// angle histograms. Dimensions a detector does not search are zero.
type PositionVotes struct {
	Position int32 `json:"position"`
	Scale    int32 `json:"scale"`
	Angle    int32 `json:"angle"`
}

// PositionResult holds detected template instances.
type PositionResult struct {
	positions []Position
	votes     []PositionVotes
}

// Len returns the number of positions.
func (r *PositionResult) Len() int {
	if r == nil {
		return 0
	}
	return len(r.positions)
}

// Download copies the positions and their parallel votes out of the result.
func (r *PositionResult) Download() ([]Position, []PositionVotes) {
	if r.Len() == 0 {
		return []Position{}, []PositionVotes{}
	}
	pos := make([]Position, len(r.positions))
	votes := make([]PositionVotes, len(r.votes))
	copy(pos, r.positions)
	copy(votes, r.votes)
	return pos, votes
}

// outputBuffer collects positions up to a fixed capacity.
type outputBuffer struct {
	pos      []Position
	votes    []PositionVotes
	capacity int
}

func (o *outputBuffer) reset(capacity int) {
	o.pos, o.votes, o.capacity = o.pos[:0], o.votes[:0], capacity
}

func (o *outputBuffer) full() bool {
	return len(o.pos) >= o.capacity
}

func (o *outputBuffer) add(p Position, v PositionVotes) bool {
	if o.full() {
		return false
	}
	o.pos = append(o.pos, p)
	o.votes = append(o.votes, v)
	return true
}

// variant is one generalized Hough algorithm. The engine validates input,
// owns the point lists and the output, and drives the state machine.
type variant interface {
	setTemplate(list EdgePointList, size, center image.Point)
	detect(list EdgePointList, size image.Point, out *outputBuffer)
	release()
}

// engine implements GeneralizedHough on top of a variant.
type engine struct {
	method Method
	p      TemplateParams
	opts   options
	log    logrus.FieldLogger
	v      variant

	ready  bool
	points pointListBuilder
	out    outputBuffer
}

func newEngine(method Method, p TemplateParams, o options, v variant) *engine {
	return &engine{
		method: method,
		p:      p,
		opts:   o,
		log:    o.log.WithField("method", method.String()),
		v:      v,
	}
}

func (e *engine) Method() Method {
	return e.method
}

func (e *engine) SetTemplate(edges *image.Gray, grad *GradientField, center image.Point) error {
	if err := validateMask(edges); err != nil {
		return err
	}
	if err := validateGradient(grad, edges); err != nil {
		return err
	}
	size := edges.Rect.Size()
	if center.X == -1 && center.Y == -1 {
		center = image.Pt(size.X/2, size.Y/2)
	}
	if e.method != MethodPositionScaleRotation {
		if err := checkDisplacementRange(size, center); err != nil {
			return err
		}
	}

	list := e.points.build(edges, grad, e.opts.workers)
	e.v.setTemplate(list, size, center)
	e.ready = true

	e.log.WithFields(logrus.Fields{
		"points": list.Len(),
		"center": center,
	}).Debug("template set")
	return nil
}

func (e *engine) SetTemplateImage(templ *image.Gray, cannyThreshold int, center image.Point) error {
	mask, grad, err := e.runEdges(templ, cannyThreshold)
	if err != nil {
		return err
	}
	return e.SetTemplate(mask, grad, center)
}

func (e *engine) Detect(edges *image.Gray, grad *GradientField) (*PositionResult, error) {
	if !e.ready {
		return nil, ErrTemplateNotSet
	}
	if err := validateMask(edges); err != nil {
		return nil, err
	}
	if err := validateGradient(grad, edges); err != nil {
		return nil, err
	}

	size := edges.Rect.Size()
	e.out.reset(e.p.MaxBufferSize)
	list := e.points.build(edges, grad, e.opts.workers)
	if list.Len() == 0 {
		return &PositionResult{}, nil
	}
	e.v.detect(list, size, &e.out)

	res := &PositionResult{}
	if e.p.MinDist > 1 && len(e.out.pos) > 0 {
		centers := make([]Point2, len(e.out.pos))
		votes := make([]int32, len(e.out.pos))
		for i, p := range e.out.pos {
			centers[i] = Point2{X: p.X, Y: p.Y}
			votes[i] = e.out.votes[i].Position
		}
		kept := FilterMinDist(centers, votes, size.X, size.Y, e.p.MinDist)
		res.positions = make([]Position, len(kept))
		res.votes = make([]PositionVotes, len(kept))
		for k, i := range kept {
			res.positions[k] = e.out.pos[i]
			res.votes[k] = e.out.votes[i]
		}
	} else {
		res.positions = append([]Position(nil), e.out.pos...)
		res.votes = append([]PositionVotes(nil), e.out.votes...)
	}

	e.log.WithFields(logrus.Fields{
		"points":     list.Len(),
		"candidates": len(e.out.pos),
		"positions":  res.Len(),
	}).Debug("template detection finished")
	return res, nil
}

func (e *engine) DetectImage(img *image.Gray, cannyThreshold int) (*PositionResult, error) {
	if !e.ready {
		return nil, ErrTemplateNotSet
	}
	mask, grad, err := e.runEdges(img, cannyThreshold)
	if err != nil {
		return nil, err
	}
	return e.Detect(mask, grad)
}

func (e *engine) Release() {
	e.v.release()
	e.points.release()
	e.out = outputBuffer{}
	e.ready = false
}

func (e *engine) runEdges(img *image.Gray, cannyThreshold int) (*image.Gray, *GradientField, error) {
	if err := validateMask(img); err != nil {
		return nil, nil, err
	}
	if cannyThreshold <= 0 {
		return nil, nil, preconditionf("canny threshold must be positive, got %d", cannyThreshold)
	}
	if e.opts.edges == nil {
		return nil, nil, preconditionf("image input needs an edge detector")
	}
	mask, grad, err := e.opts.edges.Detect(img, max(cannyThreshold/2, 1), cannyThreshold)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to detect edges: %w", err)
	}
	return mask, grad, nil
}

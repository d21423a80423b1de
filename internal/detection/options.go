package detection

import (
	"image"
	"io"
	"runtime"

	"github.com/sirupsen/logrus"
)

// EdgeDetector produces a binary edge mask and the integer x/y gradient
// fields of a grayscale image. Pixels with value >= high start an edge,
// pixels >= low continue one.
type EdgeDetector interface {
	Detect(gray *image.Gray, low, high int) (*image.Gray, *GradientField, error)
}

// Option configures a detector or engine.
type Option func(*options)

type options struct {
	log     logrus.FieldLogger
	workers int
	edges   EdgeDetector
}

// WithLogger routes stage-level debug output to log.
func WithLogger(log logrus.FieldLogger) Option {
	return func(o *options) {
		if log != nil {
			o.log = log
		}
	}
}

// WithWorkers bounds the number of goroutines used by the data-parallel
// phases. Values below one select runtime.GOMAXPROCS(0).
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithEdgeDetector sets the collaborator used by the entry points that take
// a grayscale image instead of an edge mask.
func WithEdgeDetector(ed EdgeDetector) Option {
	return func(o *options) {
		o.edges = ed
	}
}

func newOptions(opts []Option) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		o.log = l
	}
	if o.workers < 1 {
		o.workers = runtime.GOMAXPROCS(0)
	}
	return o
}

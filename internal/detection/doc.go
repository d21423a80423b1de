// Package detection implements Hough transform shape detection on binary
// edge masks.
//
// Every detector follows the same voting pipeline: edge pixels are compacted
// into a point list, each point casts votes into a parameter-space
// accumulator, and accumulator cells that are local maxima above a threshold
// become detections.
//
// # Detectors
//
// The package provides four families of detectors:
//
//   - Lines: LineDetector.Detect votes in (θ, ρ) space and reports lines in
//     normal form.
//   - Segments: LineDetector.DetectSegments traces strong (θ, ρ) cells across
//     the mask to recover bounded segments.
//   - Circles: CircleDetector votes centers along edge gradients, then picks
//     a radius per center from a distance histogram.
//   - Templates: NewGeneralizedHough learns an arbitrary silhouette and finds
//     it again, optionally scaled (MethodPositionScale), rotated
//     (MethodPositionRotation) or both (MethodPositionScaleRotation).
//
// # Pipeline
//
//  1. Point list: non-zero mask pixels, and for oriented detectors the
//     gradient angle atan2(dy, dx) in [0, 2π).
//  2. Voting: data-parallel over points; accumulator increments are atomic.
//  3. Peak extraction: a cell qualifies when it has at least the threshold
//     votes and, along every dimension, beats its previous neighbour and is
//     not beaten by its next one. Results are capped, optionally after
//     sorting by votes.
//  4. Suppression: candidates closer than a minimum distance to a stronger
//     one are dropped (FilterMinDist).
//
// # Coordinate System
//
// Coordinates are relative to the mask origin:
//   - Origin (0, 0) at top-left corner
//   - X increases rightward
//   - Y increases downward
//   - Angles grow from +X towards +Y
//
// # Errors
//
// Invalid input is reported before any work starts with an error wrapping
// ErrPrecondition. A mask without edge pixels is not an error; it produces
// an empty result.
//
// # Concurrency
//
// Detectors and engines reuse internal buffers between calls and must not be
// shared between goroutines. Each call fans out over WithWorkers goroutines
// (GOMAXPROCS by default) and returns only after every phase has joined.
package detection

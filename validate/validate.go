// Package validate checks wire payload fields before they reach the
// registries: vector lengths, finite components, and color ranges. The
// dispatcher rejects a message wholesale when any field fails, so partial
// patches never land.
package validate

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrBadColor     = errors.New("color must be 4 components in [0,1]")
	ErrBadCrosshair = errors.New("crosshair position must be 3 finite components")
	ErrBadClipPlane = errors.New("clip plane must be 4 finite components")
	ErrBadZoom      = errors.New("zoom must be a positive finite number")
)

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Color converts an optional wire color into an RGBA array. A nil or empty
// slice means "not supplied" and yields a nil pointer.
func Color(v []float64) (*[4]float64, error) {
	if len(v) == 0 {
		return nil, nil
	}
	if len(v) != 4 {
		return nil, fmt.Errorf("%w: got %d components", ErrBadColor, len(v))
	}
	var c [4]float64
	for i, comp := range v {
		if !finite(comp) || comp < 0 || comp > 1 {
			return nil, ErrBadColor
		}
		c[i] = comp
	}
	return &c, nil
}

// Crosshair converts a wire crosshair position into a 3-vector.
func Crosshair(v []float64) ([3]float64, error) {
	var pos [3]float64
	if len(v) != 3 {
		return pos, fmt.Errorf("%w: got %d components", ErrBadCrosshair, len(v))
	}
	for i, comp := range v {
		if !finite(comp) {
			return pos, ErrBadCrosshair
		}
		pos[i] = comp
	}
	return pos, nil
}

// ClipPlane converts a wire clip plane into a 4-vector. An empty slice is
// treated as the zero plane.
func ClipPlane(v []float64) ([4]float64, error) {
	var plane [4]float64
	if len(v) == 0 {
		return plane, nil
	}
	if len(v) != 4 {
		return plane, fmt.Errorf("%w: got %d components", ErrBadClipPlane, len(v))
	}
	for i, comp := range v {
		if !finite(comp) {
			return plane, ErrBadClipPlane
		}
		plane[i] = comp
	}
	return plane, nil
}

// Zoom checks the zoom invariant.
func Zoom(v float64) error {
	if !finite(v) || v <= 0 {
		return ErrBadZoom
	}
	return nil
}

// Angle checks that a camera angle is finite.
func Angle(v float64) error {
	if !finite(v) {
		return fmt.Errorf("angle must be finite, got %v", v)
	}
	return nil
}

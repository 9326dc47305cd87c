package validate

import (
	"math"
	"testing"
)

func TestColor(t *testing.T) {
	t.Run("not supplied", func(t *testing.T) {
		c, err := Color(nil)
		if err != nil || c != nil {
			t.Errorf("Expected nil, nil for absent color, got %v, %v", c, err)
		}
	})

	t.Run("valid", func(t *testing.T) {
		c, err := Color([]float64{0.1, 0.5, 1, 1})
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if *c != [4]float64{0.1, 0.5, 1, 1} {
			t.Errorf("Unexpected color: %v", *c)
		}
	})

	t.Run("invalid", func(t *testing.T) {
		cases := [][]float64{
			{1, 0, 0},
			{1, 0, 0, 1, 0},
			{2, 0, 0, 1},
			{-0.1, 0, 0, 1},
			{math.NaN(), 0, 0, 1},
		}
		for _, v := range cases {
			if _, err := Color(v); err == nil {
				t.Errorf("Expected error for %v", v)
			}
		}
	})
}

func TestCrosshair(t *testing.T) {
	pos, err := Crosshair([]float64{0.1, 0.2, 0.3})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if pos != [3]float64{0.1, 0.2, 0.3} {
		t.Errorf("Unexpected position: %v", pos)
	}

	for _, v := range [][]float64{nil, {1, 2}, {1, 2, 3, 4}, {1, math.Inf(1), 3}} {
		if _, err := Crosshair(v); err == nil {
			t.Errorf("Expected error for %v", v)
		}
	}
}

func TestClipPlane(t *testing.T) {
	plane, err := ClipPlane(nil)
	if err != nil || plane != [4]float64{} {
		t.Errorf("Expected zero plane for absent input, got %v, %v", plane, err)
	}

	plane, err = ClipPlane([]float64{0, 0, 1, 0.5})
	if err != nil || plane != [4]float64{0, 0, 1, 0.5} {
		t.Errorf("Unexpected result: %v, %v", plane, err)
	}

	for _, v := range [][]float64{{1}, {1, 2, 3, math.NaN()}} {
		if _, err := ClipPlane(v); err == nil {
			t.Errorf("Expected error for %v", v)
		}
	}
}

func TestZoomAndAngle(t *testing.T) {
	if err := Zoom(1.5); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
	for _, v := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		if err := Zoom(v); err == nil {
			t.Errorf("Expected error for zoom %v", v)
		}
	}

	if err := Angle(-90); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
	if err := Angle(math.NaN()); err == nil {
		t.Error("Expected error for NaN angle")
	}
}

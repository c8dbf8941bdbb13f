/*
Copyright © 2021 the domcmc authors.
This file is part of domcmc.

domcmc is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

domcmc is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with domcmc.  If not, see <http://www.gnu.org/licenses/>.
*/

package domcmc

import (
	"errors"
	"math"
	"testing"

	"github.com/ctessum/sparse"
	"gonum.org/v1/gonum/floats/scalar"
)

func constArray(v float64, shape ...int) *sparse.DenseArray {
	a := sparse.ZerosDense(shape...)
	for i := range a.Elements {
		a.Elements[i] = v
	}
	return a
}

func TestRotateWindsUnrotated(t *testing.T) {
	grid := testGridL([]float64{10}, []float64{45})
	lat := constArray(45, 1, 1)
	lon := constArray(10, 1, 1)

	// A pure northward wind of 1 knot: no zonal component, and the
	// meteorological direction is southerly (180 degrees).
	u := constArray(0, 1, 1, 1)
	v := constArray(1, 1, 1, 1)
	w, err := RotateWinds(u, v, lat, lon, grid)
	if err != nil {
		t.Fatal(err)
	}
	if got := w.UUWE.Get(0, 0, 0); !scalar.EqualWithinAbs(got, 0, 1e-6) {
		t.Errorf("UUWE = %g, want 0", got)
	}
	if got := w.VVSN.Get(0, 0, 0); !scalar.EqualWithinAbsOrRel(got, KnotsToMS, 1e-6, 1e-5) {
		t.Errorf("VVSN = %g, want %g", got, KnotsToMS)
	}
	if got := w.UV.Get(0, 0, 0); !scalar.EqualWithinAbsOrRel(got, 1, 1e-6, 1e-6) {
		t.Errorf("UV = %g, want 1 (modulus stays in knots)", got)
	}
	if got := w.WD.Get(0, 0, 0); !scalar.EqualWithinAbs(got, 180, 1e-3) {
		t.Errorf("WD = %g, want 180", got)
	}

	// A pure eastward wind blows from the west: 270 degrees.
	w, err = RotateWinds(v, u, lat, lon, grid)
	if err != nil {
		t.Fatal(err)
	}
	if got := w.WD.Get(0, 0, 0); !scalar.EqualWithinAbs(got, 270, 1e-3) {
		t.Errorf("WD = %g, want 270", got)
	}

	// The raw components are passed through untouched.
	if w.UU != v || w.VV != u {
		t.Error("raw component arrays are not the inputs")
	}
}

func TestRotateWindsPreservesSpeed(t *testing.T) {
	grid := &GridDescriptor{
		Type: 'Z', NI: 2, NJ: 2,
		XLat1: 57.5, XLon1: 295.5, XLat2: 0, XLon2: 25.5,
		AX: []float64{10, 20}, AY: []float64{30, 40},
	}
	lat, lon, err := grid.LatLon()
	if err != nil {
		t.Fatal(err)
	}
	u := constArray(3, 2, 2, 2)
	v := constArray(4, 2, 2, 2)
	w, err := RotateWinds(u, v, lat, lon, grid)
	if err != nil {
		t.Fatal(err)
	}
	// Rotation is rigid: the geographic speed must equal the
	// model-relative speed (times the unit conversion) everywhere.
	want := 5 * KnotsToMS
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			for k := 0; k < 2; k++ {
				got := math.Hypot(w.UUWE.Get(i, j, k), w.VVSN.Get(i, j, k))
				if !scalar.EqualWithinAbsOrRel(got, want, 1e-4, 1e-4) {
					t.Errorf("speed at (%d,%d,%d) = %g, want %g", i, j, k, got, want)
				}
			}
		}
	}
}

func TestRotateWindsPrecisionPolicy(t *testing.T) {
	grid := testGridL([]float64{10}, []float64{45})
	lat := constArray(45, 1, 1)
	lon := constArray(10, 1, 1)
	u := constArray(1e300, 1, 1, 1)
	v := constArray(1, 1, 1, 1)
	if _, err := RotateWinds(u, v, lat, lon, grid); !errors.Is(err, ErrPrecisionPolicyViolation) {
		t.Errorf("got %v, want ErrPrecisionPolicyViolation", err)
	}
}

func TestRotateWindsShapeChecks(t *testing.T) {
	grid := testGridL([]float64{10}, []float64{45})
	lat := constArray(45, 1, 1)
	lon := constArray(10, 1, 1)

	if _, err := RotateWinds(constArray(0, 1, 1), constArray(0, 1, 1, 1), lat, lon, grid); !errors.Is(err, ErrInconsistentGridShape) {
		t.Errorf("2D component: got %v, want ErrInconsistentGridShape", err)
	}
	if _, err := RotateWinds(constArray(0, 1, 1, 2), constArray(0, 1, 1, 1), lat, lon, grid); !errors.Is(err, ErrInconsistentGridShape) {
		t.Errorf("mismatched components: got %v, want ErrInconsistentGridShape", err)
	}
	if _, err := RotateWinds(constArray(0, 2, 1, 1), constArray(0, 2, 1, 1), lat, lon, grid); !errors.Is(err, ErrInconsistentGridShape) {
		t.Errorf("mismatched lat/lon: got %v, want ErrInconsistentGridShape", err)
	}
}

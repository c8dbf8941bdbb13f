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
	"gonum.org/v1/gonum/mat"
)

func testGridL(ax, ay []float64) *GridDescriptor {
	return &GridDescriptor{Type: 'L', NI: len(ax), NJ: len(ay), AX: ax, AY: ay}
}

func testGridYY(ni, nj int) *GridDescriptor {
	mkAxis := func(n int) []float64 {
		a := make([]float64, n)
		for i := range a {
			a[i] = float64(i) * 10
		}
		return a
	}
	sub := func() *GridDescriptor {
		return &GridDescriptor{
			Type: 'Z', NI: ni / 2, NJ: nj,
			XLat1: 0, XLon1: 180, XLat2: 0, XLon2: 270,
			AX: mkAxis(ni / 2), AY: mkAxis(nj),
		}
	}
	return &GridDescriptor{
		Type: 'U', NI: ni, NJ: nj,
		Subgrids: []*GridDescriptor{sub(), sub()},
	}
}

func TestLatLonUnrotated(t *testing.T) {
	g := testGridL([]float64{10, 20}, []float64{45, 55, 65})
	lat, lon, err := g.LatLon()
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		for j := 0; j < 3; j++ {
			if got := lat.Get(i, j); got != g.AY[j] {
				t.Errorf("lat[%d][%d] = %g, want %g", i, j, got, g.AY[j])
			}
			if got := lon.Get(i, j); got != g.AX[i] {
				t.Errorf("lon[%d][%d] = %g, want %g", i, j, got, g.AX[i])
			}
		}
	}
}

func TestLatLonRotated(t *testing.T) {
	// The first reference point is the origin of the rotated frame, so
	// the grid point at rotated (lon 0, lat 0) must map back to it.
	g := &GridDescriptor{
		Type: 'Z', NI: 1, NJ: 1,
		XLat1: 31.7, XLon1: 87.6, XLat2: 31.62, XLon2: 267.6,
		AX: []float64{0}, AY: []float64{0},
	}
	lat, lon, err := g.LatLon()
	if err != nil {
		t.Fatal(err)
	}
	if !scalar.EqualWithinAbsOrRel(lat.Get(0, 0), 31.7, 1e-9, 1e-9) {
		t.Errorf("lat = %g, want 31.7", lat.Get(0, 0))
	}
	if !scalar.EqualWithinAbsOrRel(lon.Get(0, 0), 87.6, 1e-9, 1e-9) {
		t.Errorf("lon = %g, want 87.6", lon.Get(0, 0))
	}
}

func TestLatLonYinYang(t *testing.T) {
	g := testGridYY(4, 3)
	if _, _, err := g.LatLon(); !errors.Is(err, ErrMalformedYinYangGrid) {
		t.Errorf("got %v, want ErrMalformedYinYangGrid", err)
	}
	// The subgrids have ordinary geometry.
	if _, _, err := g.Subgrids[0].LatLon(); err != nil {
		t.Errorf("subgrid LatLon: %v", err)
	}
}

func TestValidate(t *testing.T) {
	bad := testGridL([]float64{10, 20}, []float64{45})
	bad.NJ = 3
	if err := bad.validate(); err == nil {
		t.Error("mismatched axis lengths not caught")
	}

	odd := testGridYY(6, 3)
	odd.NI = 5
	if err := odd.validate(); !errors.Is(err, ErrMalformedYinYangGrid) {
		t.Errorf("odd first axis: got %v, want ErrMalformedYinYangGrid", err)
	}

	one := testGridYY(4, 3)
	one.Subgrids = one.Subgrids[:1]
	if err := one.validate(); !errors.Is(err, ErrMalformedYinYangGrid) {
		t.Errorf("single subgrid: got %v, want ErrMalformedYinYangGrid", err)
	}
}

func TestGridEqual(t *testing.T) {
	a := testGridL([]float64{10, 20}, []float64{45, 55})
	b := testGridL([]float64{10, 20}, []float64{45, 55})
	if !a.Equal(b) {
		t.Error("identical grids reported unequal")
	}
	b.AY[1] = 56
	if a.Equal(b) {
		t.Error("different grids reported equal")
	}
	if !testGridYY(4, 3).Equal(testGridYY(4, 3)) {
		t.Error("identical combined grids reported unequal")
	}
}

func TestRotationMatrixOrthonormal(t *testing.T) {
	r, err := rotationMatrix(57.5, 295.5, 0, 25.5)
	if err != nil {
		t.Fatal(err)
	}
	var p mat.Dense
	p.Mul(r, r.T())
	want := identityMatrix()
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if math.Abs(p.At(i, j)-want.At(i, j)) > 1e-12 {
				t.Fatalf("R*R^T differs from identity at (%d,%d): %g", i, j, p.At(i, j))
			}
		}
	}
}

func TestRotationMatrixDegenerate(t *testing.T) {
	if _, err := rotationMatrix(45, 100, 45, 100); err == nil {
		t.Error("coincident reference points not caught")
	}
	if _, err := rotationMatrix(45, 100, -45, 280); err == nil {
		t.Error("antipodal reference points not caught")
	}
}

func TestSphericalCartesianRoundTrip(t *testing.T) {
	for _, p := range [][2]float64{{0, 0}, {45, 100}, {-30, 359}, {89, 1}} {
		lat, lon := spherical(cartesian(p[0], p[1]))
		if !scalar.EqualWithinAbsOrRel(lat, p[0], 1e-9, 1e-9) ||
			!scalar.EqualWithinAbsOrRel(lon, p[1], 1e-9, 1e-9) {
			t.Errorf("(%g,%g) round-tripped to (%g,%g)", p[0], p[1], lat, lon)
		}
	}
}

func TestSliceLeading(t *testing.T) {
	a := sparse.ZerosDense(4, 3, 2)
	for i := range a.Elements {
		a.Elements[i] = float64(i)
	}
	v := sliceLeading(a, 2, 4)
	if len(v.Shape) != 3 || v.Shape[0] != 2 || v.Shape[1] != 3 || v.Shape[2] != 2 {
		t.Fatalf("view shape = %v, want [2 3 2]", v.Shape)
	}
	if got := v.Get(0, 0, 0); got != a.Get(2, 0, 0) {
		t.Errorf("view start: got %g, want %g", got, a.Get(2, 0, 0))
	}

	// The view is an alias: writes are visible both ways.
	v.Set(-1, 0, 0, 0)
	if a.Get(2, 0, 0) != -1 {
		t.Error("write through the view is not visible in the original")
	}
	a.Set(-2, 3, 2, 1)
	if v.Get(1, 2, 1) != -2 {
		t.Error("write through the original is not visible in the view")
	}

	// Rank is preserved even for depth-1 stacks.
	one := sparse.ZerosDense(2, 3, 1)
	if got := sliceLeading(one, 0, 1); len(got.Shape) != 3 {
		t.Errorf("depth-1 view shape = %v, want rank 3", got.Shape)
	}
}

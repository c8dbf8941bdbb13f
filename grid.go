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
	"fmt"

	"github.com/ctessum/sparse"
)

// A GridDescriptor identifies a horizontal grid and carries the
// geometry needed to compute geographic coordinates for every point.
// Two records lie on the same grid iff their descriptors are Equal.
type GridDescriptor struct {
	// Type is the grid type tag: 'L' for an unrotated latitude-longitude
	// grid, 'E' or 'Z' for rotated grids, 'U' for combined Yin-Yang
	// storage.
	Type byte

	NI, NJ int

	// Rotation-pole reference points [degrees]. The first point is the
	// origin of the rotated coordinate system, the second a point on the
	// rotated equator. All four are zero for unrotated grids.
	XLat1, XLon1, XLat2, XLon2 float64

	// AX and AY are the point coordinates along each axis in rotated
	// degrees: AX has length NI (longitudes), AY length NJ (latitudes).
	AX, AY []float64

	// Subgrids holds the Yin and Yang descriptors when Type is 'U'.
	Subgrids []*GridDescriptor
}

// YinYang reports whether the descriptor uses combined Yin-Yang storage.
func (g *GridDescriptor) YinYang() bool { return g.Type == 'U' }

// Rotated reports whether the grid's coordinates are rotated relative
// to geographic coordinates.
func (g *GridDescriptor) Rotated() bool {
	return g.XLat1 != 0 || g.XLon1 != 0 || g.XLat2 != 0 || g.XLon2 != 0
}

// Equal reports whether two descriptors identify the same grid.
func (g *GridDescriptor) Equal(o *GridDescriptor) bool {
	if g == nil || o == nil {
		return g == o
	}
	if g.Type != o.Type || g.NI != o.NI || g.NJ != o.NJ ||
		g.XLat1 != o.XLat1 || g.XLon1 != o.XLon1 ||
		g.XLat2 != o.XLat2 || g.XLon2 != o.XLon2 {
		return false
	}
	if len(g.AX) != len(o.AX) || len(g.AY) != len(o.AY) {
		return false
	}
	for i, v := range g.AX {
		if o.AX[i] != v {
			return false
		}
	}
	for j, v := range g.AY {
		if o.AY[j] != v {
			return false
		}
	}
	if len(g.Subgrids) != len(o.Subgrids) {
		return false
	}
	for i, s := range g.Subgrids {
		if !s.Equal(o.Subgrids[i]) {
			return false
		}
	}
	return true
}

// validate checks the internal consistency of the descriptor.
func (g *GridDescriptor) validate() error {
	if g.YinYang() {
		if g.NI%2 != 0 {
			return fmt.Errorf("%w: combined first axis has odd length %d", ErrMalformedYinYangGrid, g.NI)
		}
		if len(g.Subgrids) != 2 {
			return fmt.Errorf("%w: expected 2 subgrids, have %d", ErrMalformedYinYangGrid, len(g.Subgrids))
		}
		for _, s := range g.Subgrids {
			if s.NI != g.NI/2 || s.NJ != g.NJ {
				return fmt.Errorf("%w: subgrid shape (%d,%d) does not match half of (%d,%d)",
					ErrMalformedYinYangGrid, s.NI, s.NJ, g.NI, g.NJ)
			}
			if err := s.validate(); err != nil {
				return err
			}
		}
		return nil
	}
	if len(g.AX) != g.NI || len(g.AY) != g.NJ {
		return fmt.Errorf("domcmc: grid axis lengths (%d,%d) do not match shape (%d,%d)",
			len(g.AX), len(g.AY), g.NI, g.NJ)
	}
	return nil
}

// LatLon computes the 2D geographic latitude and longitude [degrees] of
// every grid point, both with shape [NI][NJ]. Horizontal geometry is
// level-invariant, so one call serves a whole 3D field. Yin-Yang
// descriptors have no single coordinate set; use the Subgrids.
func (g *GridDescriptor) LatLon() (lat, lon *sparse.DenseArray, err error) {
	if g.YinYang() {
		return nil, nil, fmt.Errorf("%w: combined grid has no single lat/lon; use the subgrids", ErrMalformedYinYangGrid)
	}
	if err := g.validate(); err != nil {
		return nil, nil, err
	}
	lat = sparse.ZerosDense(g.NI, g.NJ)
	lon = sparse.ZerosDense(g.NI, g.NJ)
	if !g.Rotated() {
		for i := 0; i < g.NI; i++ {
			for j := 0; j < g.NJ; j++ {
				lat.Set(g.AY[j], i, j)
				lon.Set(g.AX[i], i, j)
			}
		}
		return lat, lon, nil
	}
	rot, err := rotationMatrix(g.XLat1, g.XLon1, g.XLat2, g.XLon2)
	if err != nil {
		return nil, nil, err
	}
	// Grid points are stored in rotated coordinates; the geographic
	// position is the inverse (transpose) rotation.
	inv := rot.T()
	for i := 0; i < g.NI; i++ {
		for j := 0; j < g.NJ; j++ {
			p := apply(inv, cartesian(g.AY[j], g.AX[i]))
			la, lo := spherical(p)
			lat.Set(la, i, j)
			lon.Set(lo, i, j)
		}
	}
	return lat, lon, nil
}

// resolveGrid identifies the horizontal grid shared by a set of records
// and validates its geometry, including Yin-Yang consistency.
func resolveGrid(src Source, recs []RecordMeta) (*GridDescriptor, error) {
	if len(recs) == 0 {
		return nil, ErrNoMatchingRecord
	}
	g, err := src.Grid(recs[0])
	if err != nil {
		return nil, fmt.Errorf("domcmc: resolving grid for %s: %w", recs[0].Nomvar, err)
	}
	if err := g.validate(); err != nil {
		return nil, err
	}
	for _, r := range recs[1:] {
		if r.NI != recs[0].NI || r.NJ != recs[0].NJ {
			return nil, fmt.Errorf("%w: record %s ip1=%d has shape (%d,%d), want (%d,%d)",
				ErrInconsistentGridShape, r.Nomvar, r.IP1, r.NI, r.NJ, recs[0].NI, recs[0].NJ)
		}
	}
	return g, nil
}

// sliceLeading returns a view of rows [from,to) along the array's
// leading axis. The view shares the underlying elements with the input;
// mutating one is observable through the other.
func sliceLeading(a *sparse.DenseArray, from, to int) *sparse.DenseArray {
	shape := append([]int{to - from}, a.Shape[1:]...)
	stride := 1
	for _, d := range a.Shape[1:] {
		stride *= d
	}
	out := sparse.ZerosDense(shape...)
	out.Elements = a.Elements[from*stride : to*stride]
	return out
}

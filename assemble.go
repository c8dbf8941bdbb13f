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
	"sort"

	"github.com/ctessum/sparse"
	"github.com/sirupsen/logrus"
)

// A Field is an assembled, geolocated data cube: same-metadata records
// stacked along the level axis in ascending decoded-value order.
//
// Values always has shape [NI][NJ][NK]; a single-level field has NK 1.
// Lat, Lon, Pressure, Yin, Yang and Wind are only present when the
// query asked for them (or, for Yin/Yang, when the source grid uses
// combined Yin-Yang storage).
//
// For Yin-Yang fields, Values, Lat and Lon are the same objects as the
// Yin sub-field's: the default view is an alias, not a copy, so a
// mutation through either is observable through the other. This is a
// deliberate API contract.
type Field struct {
	Values *sparse.DenseArray

	// Meta is the metadata of the first stacked record, representative
	// of the group except for its level code.
	Meta RecordMeta

	Grid *GridDescriptor

	// IP1s and Levels describe the level axis, in stacking order.
	IP1s   []int
	Levels []float64

	Lat, Lon *sparse.DenseArray

	// Pressure is the pressure [hPa] at every point of Values.
	Pressure *sparse.DenseArray

	Yin, Yang *Field

	Wind *WindFields
}

// NK returns the number of stacked levels.
func (f *Field) NK() int { return f.Values.Shape[2] }

// assemble stacks the given same-group records into a Field. Levels are
// sorted ascending by decoded physical value regardless of the order
// they were requested or stored in; duplicate decoded values collapse to
// the first record, with a warning. When withLatLon is set the
// geographic coordinates are computed once for the whole stack
// (Yin-Yang grids get theirs during the split instead).
func assemble(src Source, recs []RecordMeta, codec *LevelCodec, withLatLon bool, log logrus.FieldLogger) (*Field, error) {
	if len(recs) == 0 {
		return nil, ErrNoMatchingRecord
	}
	grid, err := resolveGrid(src, recs)
	if err != nil {
		return nil, err
	}

	type leveled struct {
		meta RecordMeta
		key  float64
	}
	lv := make([]leveled, len(recs))
	for i, r := range recs {
		key, err := codec.OrderKey(r.IP1)
		if err != nil {
			return nil, err
		}
		lv[i] = leveled{r, key}
	}
	sort.SliceStable(lv, func(i, j int) bool { return lv[i].key < lv[j].key })

	// Collapse records that decode to the same level. More than one
	// entry with the same metadata may or may not be a problem in the
	// source file, so warn rather than fail.
	uniq := lv[:0]
	for i, l := range lv {
		if i > 0 && l.key == uniq[len(uniq)-1].key {
			log.Warnf("%s: several records decode to level %g; keeping the first (ip1 %d, dropping %d)",
				l.meta.Nomvar, l.key, uniq[len(uniq)-1].meta.IP1, l.meta.IP1)
			continue
		}
		uniq = append(uniq, l)
	}

	nk := len(uniq)
	ni, nj := uniq[0].meta.NI, uniq[0].meta.NJ
	f := &Field{
		Values: sparse.ZerosDense(ni, nj, nk),
		Meta:   uniq[0].meta,
		Grid:   grid,
		IP1s:   make([]int, nk),
		Levels: make([]float64, nk),
	}
	for k, l := range uniq {
		f.IP1s[k] = l.meta.IP1
		f.Levels[k] = l.key
		data, err := src.Read(l.meta)
		if err != nil {
			return nil, fmt.Errorf("domcmc: reading %s ip1=%d: %w", l.meta.Nomvar, l.meta.IP1, err)
		}
		if len(data.Shape) != 2 || data.Shape[0] != ni || data.Shape[1] != nj {
			return nil, fmt.Errorf("%w: %s ip1=%d payload is %v, want (%d,%d)",
				ErrInconsistentGridShape, l.meta.Nomvar, l.meta.IP1, data.Shape, ni, nj)
		}
		for i := 0; i < ni; i++ {
			for j := 0; j < nj; j++ {
				f.Values.Set(data.Get(i, j), i, j, k)
			}
		}
	}

	if withLatLon && !grid.YinYang() {
		f.Lat, f.Lon, err = grid.LatLon()
		if err != nil {
			return nil, err
		}
	}
	return f, nil
}

// splitYinYang splits a combined Yin-Yang field along the leading axis
// into two independently valid sub-fields and rebinds the outer field
// to the aliasing default view of the Yin half. Both halves share
// memory with the combined array.
func (f *Field) splitYinYang(withLatLon bool) error {
	g := f.Grid
	if !g.YinYang() {
		return nil
	}
	if err := g.validate(); err != nil {
		return err
	}
	if f.Values.Shape[0]%2 != 0 {
		return fmt.Errorf("%w: combined first axis has odd length %d", ErrMalformedYinYangGrid, f.Values.Shape[0])
	}
	half := f.Values.Shape[0] / 2

	mk := func(sub *GridDescriptor, from, to int) (*Field, error) {
		h := &Field{
			Values: sliceLeading(f.Values, from, to),
			Meta:   f.Meta,
			Grid:   sub,
			IP1s:   f.IP1s,
			Levels: f.Levels,
		}
		if f.Pressure != nil {
			h.Pressure = sliceLeading(f.Pressure, from, to)
		}
		if withLatLon {
			var err error
			h.Lat, h.Lon, err = sub.LatLon()
			if err != nil {
				return nil, err
			}
		}
		return h, nil
	}

	yin, err := mk(g.Subgrids[0], 0, half)
	if err != nil {
		return err
	}
	yang, err := mk(g.Subgrids[1], half, f.Values.Shape[0])
	if err != nil {
		return err
	}

	f.Yin, f.Yang = yin, yang
	f.Values = yin.Values
	f.Pressure = yin.Pressure
	f.Lat, f.Lon = yin.Lat, yin.Lon
	f.Grid = yin.Grid
	return nil
}

// attachPressure computes the pressure [hPa] at every point of the
// field. On pressure levels it is the level value itself; on model
// levels it comes from the collection's vertical coordinate descriptor
// and the surface pressure field on the same grid at the same validity
// time.
func attachPressure(src Source, f *Field, codec *LevelCodec) error {
	allPressure := true
	for _, ip1 := range f.IP1s {
		lv, err := codec.Decode(ip1)
		if err != nil {
			return err
		}
		if lv.Kind != KindPressure {
			allPressure = false
			break
		}
	}

	ni, nj, nk := f.Values.Shape[0], f.Values.Shape[1], f.Values.Shape[2]
	press := sparse.ZerosDense(ni, nj, nk)

	if allPressure {
		for k, lev := range f.Levels {
			for i := 0; i < ni; i++ {
				for j := 0; j < nj; j++ {
					press.Set(lev, i, j, k)
				}
			}
		}
		f.Pressure = press
		return nil
	}

	desc, err := src.VerticalDescriptor(f.Meta.IG1, f.Meta.IG2)
	if err != nil {
		return fmt.Errorf("%w: reading vertical descriptor ig1=%d ig2=%d: %v",
			ErrUnsupportedVerticalCoordinate, f.Meta.IG1, f.Meta.IG2, err)
	}
	crit := anyCriteria()
	crit.Nomvar = surfacePresVar
	crit.Etiket = f.Meta.Etiket
	crit.IG1 = f.Meta.IG1
	crit.IG2 = f.Meta.IG2
	crit.IG3 = f.Meta.IG3
	p0recs, err := locate(src, crit, f.Meta.Datev, nil)
	if err != nil {
		return fmt.Errorf("surface pressure needed to compute level pressures: %w", err)
	}
	p0, err := src.Read(p0recs[0])
	if err != nil {
		return fmt.Errorf("domcmc: reading %s: %w", surfacePresVar, err)
	}
	if p0.Shape[0] != ni || p0.Shape[1] != nj {
		return fmt.Errorf("%w: %s is %v, want (%d,%d)", ErrInconsistentGridShape, surfacePresVar, p0.Shape, ni, nj)
	}
	for k, ip1 := range f.IP1s {
		for i := 0; i < ni; i++ {
			for j := 0; j < nj; j++ {
				p, err := desc.PressureAt(ip1, p0.Get(i, j))
				if err != nil {
					return err
				}
				press.Set(p, i, j, k)
			}
		}
	}
	f.Pressure = press
	return nil
}

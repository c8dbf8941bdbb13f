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
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultFormat is the record-collection format used when a Query does
// not carry its own. Format implementations register themselves here
// from an init function, database/sql driver style.
var DefaultFormat Format

// A Query describes one field request. Construct it with NewQuery,
// which sets the wildcard defaults; a zero Query matches nothing
// useful.
//
// Exactly one of FileName and DirName must be set. In directory mode
// the candidate files are those whose names match Prefix*Suffix, in
// lexical order, and the first file containing a satisfying match set
// wins.
type Query struct {
	// VarName is the record name to read, or WindVectors for the
	// synthetic composite wind query.
	VarName string

	FileName string

	DirName string
	Prefix  string
	Suffix  string

	// Datev, when non-zero, is the requested validity time; it takes
	// precedence over DatevStamp. DatevStamp is the same request in
	// timestamp form, NoStamp meaning "first found". Matching is within
	// DatevTolerance, closest candidate first.
	Datev      time.Time
	DatevStamp Stamp

	// IP1s, when non-empty, restricts the field to exactly these level
	// codes; a code with no record is an error. The assembled order is
	// still ascending decoded value, not list order.
	IP1s []int

	// Optional metadata filters. Negative integers and empty strings
	// match anything.
	IP2, IP3      int
	IG1, IG2, IG3 int
	Typvar        string
	Etiket        string

	// LatLon asks for the geographic coordinates of every grid point.
	LatLon bool

	// PresFromVar asks for the pressure at every point of the field.
	PresFromVar bool

	// PresLevels, when non-empty, asks for the field vertically
	// interpolated to these pressure levels [hPa] by the external tool.
	// The result's levels follow this slice's order exactly.
	PresLevels []float64

	// TmpDir hosts the interpolation workspace; empty means the system
	// temporary directory. Timeout bounds the external tool (zero means
	// DefaultInterpTimeout).
	TmpDir  string
	Timeout time.Duration

	// Format overrides DefaultFormat for this query.
	Format Format

	// Log overrides the package-level standard logger for this query.
	Log logrus.FieldLogger
}

// NewQuery returns a Query for the named variable with every optional
// filter set to its wildcard value.
func NewQuery(varName string) *Query {
	return &Query{
		VarName:    varName,
		DatevStamp: NoStamp,
		IP2:        -1,
		IP3:        -1,
		IG1:        -1,
		IG2:        -1,
		IG3:        -1,
	}
}

// criteria translates the query's metadata filters into a record
// predicate. The validity time is handled separately by the locator.
func (q *Query) criteria() Criteria {
	return Criteria{
		Nomvar: q.VarName,
		Typvar: q.Typvar,
		Etiket: q.Etiket,
		Datev:  NoStamp,
		IP1:    -1,
		IP2:    q.IP2,
		IP3:    q.IP3,
		IG1:    q.IG1,
		IG2:    q.IG2,
		IG3:    q.IG3,
	}
}

// wantStamp resolves the requested validity time to a timestamp.
func (q *Query) wantStamp() Stamp {
	if !q.Datev.IsZero() {
		return TimeToStamp(q.Datev)
	}
	return q.DatevStamp
}

// GetData runs the query and returns the assembled field.
//
// The full pipeline is: resolve the source file, locate the matching
// record group, stack it in ascending level order, then apply the
// requested decorations (lat/lon, pressure, Yin-Yang split, wind
// rotation) in that order. Composite wind queries locate the UU group
// first and join VV on its validity time and level codes.
func GetData(q *Query) (*Field, error) {
	log := q.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	format := q.Format
	if format == nil {
		format = DefaultFormat
	}
	if format == nil {
		return nil, fmt.Errorf("domcmc: no record-collection format configured")
	}
	if q.VarName == "" {
		return nil, fmt.Errorf("domcmc: query has no variable name")
	}
	if (q.FileName == "") == (q.DirName == "") {
		return nil, fmt.Errorf("domcmc: exactly one of FileName and DirName must be set")
	}
	composite := q.VarName == WindVectors
	if composite && len(q.PresLevels) > 0 {
		return nil, fmt.Errorf("domcmc: %s cannot be combined with pressure-level interpolation; query UU and VV separately", WindVectors)
	}

	want := q.wantStamp()

	// One record group per constituent variable, in resolveVarNames
	// order. The probe fills them; in directory mode it also selects
	// the file.
	var groups [][]RecordMeta
	probe := func(s Source) error {
		g, err := locateGroups(s, q, want)
		if err != nil {
			return err
		}
		groups = g
		return nil
	}

	var (
		src  Source
		path string
		err  error
	)
	if q.FileName != "" {
		src, err = format.Open(q.FileName)
		if err != nil {
			return nil, fmt.Errorf("domcmc: opening %s: %w", q.FileName, err)
		}
		path = q.FileName
		if err := probe(src); err != nil {
			src.Close()
			return nil, err
		}
	} else {
		src, path, err = locateInDir(format, q.DirName, q.Prefix, q.Suffix, log, probe)
		if err != nil {
			return nil, err
		}
	}
	defer src.Close()

	if len(q.PresLevels) > 0 {
		return getInterpolated(format, src, path, q, want, log)
	}

	codec := &LevelCodec{}
	withLatLon := q.LatLon || composite

	f, err := assemble(src, groups[0], codec, withLatLon, log)
	if err != nil {
		return nil, err
	}
	if q.PresFromVar {
		if err := attachPressure(src, f, codec); err != nil {
			return nil, err
		}
	}
	if f.Grid.YinYang() {
		if err := f.splitYinYang(withLatLon); err != nil {
			return nil, err
		}
	}

	if composite {
		fv, err := assemble(src, groups[1], codec, false, log)
		if err != nil {
			return nil, err
		}
		if fv.Grid.YinYang() {
			if err := fv.splitYinYang(false); err != nil {
				return nil, err
			}
		}
		if err := attachWind(f, fv); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// locateGroups locates the record group for each constituent variable
// of the query. Constituents after the first are joined on the first
// group's validity time and level codes, so a composite field is
// guaranteed level-by-level consistent.
func locateGroups(src Source, q *Query, want Stamp) ([][]RecordMeta, error) {
	names := resolveVarNames(q.VarName)
	groups := make([][]RecordMeta, len(names))
	joinWant := want
	joinIP1s := q.IP1s
	for i, name := range names {
		crit := q.criteria()
		crit.Nomvar = name
		recs, err := locate(src, crit, joinWant, joinIP1s)
		if err != nil {
			return nil, err
		}
		groups[i] = recs
		if i == 0 && len(names) > 1 {
			joinWant = recs[0].Datev
			joinIP1s = make([]int, len(recs))
			for k, r := range recs {
				joinIP1s[k] = r.IP1
			}
		}
	}
	return groups, nil
}

// getInterpolated handles the pressure-level path: the external tool
// produces the interpolated file, and the decorations that remain
// meaningful (lat/lon, pressure, Yin-Yang split) are applied to its
// output. Interpolated levels are pressure by construction, so the
// pressure cube never needs the source's vertical descriptor.
func getInterpolated(format Format, src Source, path string, q *Query, want Stamp, log logrus.FieldLogger) (*Field, error) {
	f, err := interpolateToPressure(format, src, path, q, want, log)
	if err != nil {
		return nil, err
	}
	if q.PresFromVar {
		if err := attachPressure(src, f, &LevelCodec{}); err != nil {
			return nil, err
		}
	}
	if f.Grid.YinYang() {
		if err := f.splitYinYang(q.LatLon); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// attachWind rotates the composite wind components onto geographic
// axes. For Yin-Yang fields each half is rotated with its own subgrid
// geometry and the combined field adopts the Yin half's result,
// matching the aliasing default view of the data itself.
func attachWind(fu, fv *Field) error {
	if fu.Yin != nil {
		if fv.Yin == nil {
			return fmt.Errorf("%w: %s is Yin-Yang but %s is not", ErrInconsistentGridShape, uComponentVar, vComponentVar)
		}
		for _, pair := range [][2]*Field{{fu.Yin, fv.Yin}, {fu.Yang, fv.Yang}} {
			u, v := pair[0], pair[1]
			w, err := RotateWinds(u.Values, v.Values, u.Lat, u.Lon, u.Grid)
			if err != nil {
				return err
			}
			u.Wind = w
		}
		fu.Wind = fu.Yin.Wind
		return nil
	}
	w, err := RotateWinds(fu.Values, fv.Values, fu.Lat, fu.Lon, fu.Grid)
	if err != nil {
		return err
	}
	fu.Wind = w
	return nil
}

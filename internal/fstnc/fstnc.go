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

// Package fstnc stores standard-file record collections in NetCDF
// classic containers. Each record is one 2D variable with its metadata
// carried as variable attributes; grids and vertical descriptors are
// carried as global attributes keyed by their grid identifiers.
//
// Importing the package registers it as the default domcmc format.
package fstnc

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
	"github.com/sebastiendfortier/domcmc"
)

// containerTag marks a NetCDF file as a record container this package
// understands.
const containerTag = "cmc-standard-records"

const recPrefix = "rec"

// Format implements domcmc.Format over NetCDF classic files.
type Format struct{}

func init() {
	domcmc.DefaultFormat = Format{}
}

// Sniff reports whether the file carries the container tag. Any error
// along the way just means "not ours".
func (Format) Sniff(path string) bool {
	ff, err := os.Open(path)
	if err != nil {
		return false
	}
	defer ff.Close()
	f, err := cdf.Open(ff)
	if err != nil {
		return false
	}
	tag, ok := f.Header.GetAttribute("", "container").(string)
	return ok && tag == containerTag
}

// Open opens a record container for reading.
func (Format) Open(path string) (domcmc.Source, error) {
	ff, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	f, err := cdf.Open(ff)
	if err != nil {
		ff.Close()
		return nil, fmt.Errorf("fstnc: %s: %w", path, err)
	}
	if tag, ok := f.Header.GetAttribute("", "container").(string); !ok || tag != containerTag {
		ff.Close()
		return nil, fmt.Errorf("fstnc: %s is not a record container", path)
	}
	src := &source{ff: ff, f: f, path: path}
	if err := src.scan(); err != nil {
		ff.Close()
		return nil, err
	}
	return src, nil
}

// A source is an open container. Record keys are the indices in the
// container's variable numbering.
type source struct {
	ff   *os.File
	f    *cdf.File
	path string
	recs []domcmc.RecordMeta
}

// scan builds the record index from the container's variables.
func (s *source) scan() error {
	var idx []int
	for _, v := range s.f.Header.Variables() {
		if !strings.HasPrefix(v, recPrefix) {
			continue
		}
		i, err := strconv.Atoi(v[len(recPrefix):])
		if err != nil {
			continue
		}
		idx = append(idx, i)
	}
	sort.Ints(idx)
	s.recs = make([]domcmc.RecordMeta, 0, len(idx))
	for _, i := range idx {
		m, err := s.readMeta(i)
		if err != nil {
			return err
		}
		s.recs = append(s.recs, m)
	}
	return nil
}

func recName(key int) string { return fmt.Sprintf("%s%d", recPrefix, key) }

func (s *source) readMeta(key int) (domcmc.RecordMeta, error) {
	v := recName(key)
	h := s.f.Header
	dims := h.Lengths(v)
	if len(dims) != 2 {
		return domcmc.RecordMeta{}, fmt.Errorf("fstnc: %s: %s has %d dimensions, want 2", s.path, v, len(dims))
	}
	ig, ok := attrInts(h, v, "ig")
	if !ok || len(ig) != 4 {
		return domcmc.RecordMeta{}, fmt.Errorf("fstnc: %s: %s has no grid identifiers", s.path, v)
	}
	ip1, _ := attrInt(h, v, "ip1")
	ip2, _ := attrInt(h, v, "ip2")
	ip3, _ := attrInt(h, v, "ip3")
	datev, _ := attrInt(h, v, "datev")
	nbits, _ := attrInt(h, v, "nbits")
	grtyp, _ := h.GetAttribute(v, "grtyp").(string)
	if grtyp == "" {
		grtyp = "L"
	}
	nomvar, _ := h.GetAttribute(v, "nomvar").(string)
	typvar, _ := h.GetAttribute(v, "typvar").(string)
	etiket, _ := h.GetAttribute(v, "etiket").(string)
	return domcmc.RecordMeta{
		Nomvar: nomvar,
		Typvar: typvar,
		Etiket: etiket,
		Datev:  domcmc.Stamp(datev),
		IP1:    ip1,
		IP2:    ip2,
		IP3:    ip3,
		IG1:    ig[0],
		IG2:    ig[1],
		IG3:    ig[2],
		IG4:    ig[3],
		NI:     dims[0],
		NJ:     dims[1],
		Grtyp:  grtyp[0],
		Nbits:  nbits,
		Key:    key,
	}, nil
}

func (s *source) List() []domcmc.RecordMeta {
	out := make([]domcmc.RecordMeta, len(s.recs))
	copy(out, s.recs)
	return out
}

func (s *source) Read(m domcmc.RecordMeta) (*sparse.DenseArray, error) {
	v := recName(m.Key)
	dims := s.f.Header.Lengths(v)
	if len(dims) != 2 {
		return nil, fmt.Errorf("fstnc: %s: no record with key %d", s.path, m.Key)
	}
	nread := dims[0] * dims[1]
	r := s.f.Reader(v, nil, nil)
	buf := r.Zero(nread)
	if _, err := r.Read(buf); err != nil {
		return nil, fmt.Errorf("fstnc: %s: reading %s: %w", s.path, v, err)
	}
	dat, ok := buf.([]float32)
	if !ok {
		return nil, fmt.Errorf("fstnc: %s: %s is not float data", s.path, v)
	}
	out := sparse.ZerosDense(dims...)
	for i, d := range dat {
		out.Elements[i] = float64(d)
	}
	return out, nil
}

func (s *source) Grid(m domcmc.RecordMeta) (*domcmc.GridDescriptor, error) {
	g, ok := getGrid(s.f.Header, gridPrefix(m.IG1, m.IG2, m.IG3))
	if !ok {
		return nil, fmt.Errorf("fstnc: %s: no grid for ig1=%d ig2=%d ig3=%d", s.path, m.IG1, m.IG2, m.IG3)
	}
	return g, nil
}

func (s *source) VerticalDescriptor(ig1, ig2 int) (*domcmc.VerticalDescriptor, error) {
	h := s.f.Header
	prefix := vdPrefix(ig1, ig2)
	kind, ok := attrInt(h, "", prefix+"kind")
	if !ok {
		return nil, fmt.Errorf("fstnc: %s: no vertical descriptor for ig1=%d ig2=%d", s.path, ig1, ig2)
	}
	ip1s, _ := attrInts(h, "", prefix+"ip1")
	as, _ := attrFloats(h, "", prefix+"a")
	bs, _ := attrFloats(h, "", prefix+"b")
	if len(as) != len(ip1s) || len(bs) != len(ip1s) {
		return nil, fmt.Errorf("fstnc: %s: vertical descriptor for ig1=%d ig2=%d has mismatched coefficient counts", s.path, ig1, ig2)
	}
	d := &domcmc.VerticalDescriptor{
		Kind: domcmc.LevelKind(kind),
		A:    make(map[int]float64, len(ip1s)),
		B:    make(map[int]float64, len(ip1s)),
	}
	for i, ip1 := range ip1s {
		d.A[ip1] = as[i]
		d.B[ip1] = bs[i]
	}
	return d, nil
}

func (s *source) Close() error {
	return s.ff.Close()
}

// Attribute naming for grids and vertical descriptors.

func gridPrefix(ig1, ig2, ig3 int) string {
	return fmt.Sprintf("grid_%d_%d_%d_", ig1, ig2, ig3)
}

func vdPrefix(ig1, ig2 int) string {
	return fmt.Sprintf("vd_%d_%d_", ig1, ig2)
}

// putGrid serializes a grid descriptor as global attributes under the
// prefix; Yin-Yang subgrids nest under sub0_ and sub1_.
func putGrid(h *cdf.Header, prefix string, g *domcmc.GridDescriptor) {
	h.AddAttribute("", prefix+"type", string(rune(g.Type)))
	h.AddAttribute("", prefix+"shape", []int32{int32(g.NI), int32(g.NJ)})
	h.AddAttribute("", prefix+"rot", []float64{g.XLat1, g.XLon1, g.XLat2, g.XLon2})
	if len(g.AX) > 0 {
		h.AddAttribute("", prefix+"ax", append([]float64(nil), g.AX...))
	}
	if len(g.AY) > 0 {
		h.AddAttribute("", prefix+"ay", append([]float64(nil), g.AY...))
	}
	for i, sub := range g.Subgrids {
		putGrid(h, fmt.Sprintf("%ssub%d_", prefix, i), sub)
	}
}

func getGrid(h *cdf.Header, prefix string) (*domcmc.GridDescriptor, bool) {
	typ, ok := h.GetAttribute("", prefix+"type").(string)
	if !ok || typ == "" {
		return nil, false
	}
	g := &domcmc.GridDescriptor{Type: typ[0]}
	if shape, ok := attrInts(h, "", prefix+"shape"); ok && len(shape) == 2 {
		g.NI, g.NJ = shape[0], shape[1]
	}
	if rot, ok := attrFloats(h, "", prefix+"rot"); ok && len(rot) == 4 {
		g.XLat1, g.XLon1, g.XLat2, g.XLon2 = rot[0], rot[1], rot[2], rot[3]
	}
	g.AX, _ = attrFloats(h, "", prefix+"ax")
	g.AY, _ = attrFloats(h, "", prefix+"ay")
	for i := 0; ; i++ {
		sub, ok := getGrid(h, fmt.Sprintf("%ssub%d_", prefix, i))
		if !ok {
			break
		}
		g.Subgrids = append(g.Subgrids, sub)
	}
	return g, true
}

// Attribute readers tolerant of the integer and float widths NetCDF
// classic may store.

func attrInt(h *cdf.Header, v, name string) (int, bool) {
	vals, ok := attrInts(h, v, name)
	if !ok || len(vals) == 0 {
		return 0, false
	}
	return vals[0], true
}

func attrInts(h *cdf.Header, v, name string) ([]int, bool) {
	switch a := h.GetAttribute(v, name).(type) {
	case []int32:
		out := make([]int, len(a))
		for i, x := range a {
			out[i] = int(x)
		}
		return out, true
	case []int16:
		out := make([]int, len(a))
		for i, x := range a {
			out[i] = int(x)
		}
		return out, true
	case []int8:
		out := make([]int, len(a))
		for i, x := range a {
			out[i] = int(x)
		}
		return out, true
	}
	return nil, false
}

func attrFloats(h *cdf.Header, v, name string) ([]float64, bool) {
	switch a := h.GetAttribute(v, name).(type) {
	case []float64:
		return append([]float64(nil), a...), true
	case []float32:
		out := make([]float64, len(a))
		for i, x := range a {
			out[i] = float64(x)
		}
		return out, true
	}
	return nil, false
}

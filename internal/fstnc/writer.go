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

package fstnc

import (
	"fmt"
	"os"
	"sort"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
	"github.com/sebastiendfortier/domcmc"
)

// Create creates a new record container. Nothing hits the disk before
// Close: a NetCDF classic header is immutable once written, so the
// writer buffers everything and serializes in one shot.
func (Format) Create(path string) (domcmc.Writer, error) {
	return &writer{path: path}, nil
}

type bufRec struct {
	meta domcmc.RecordMeta
	data []float32
}

type bufGrid struct {
	prefix string
	g      *domcmc.GridDescriptor
}

type bufVD struct {
	prefix string
	d      *domcmc.VerticalDescriptor
}

type writer struct {
	path  string
	recs  []bufRec
	grids []bufGrid
	vds   []bufVD
}

func (w *writer) WriteRecord(m domcmc.RecordMeta, data *sparse.DenseArray) error {
	if len(data.Shape) != 2 || data.Shape[0] != m.NI || data.Shape[1] != m.NJ {
		return fmt.Errorf("fstnc: %s payload is %v, metadata says (%d,%d)", m.Nomvar, data.Shape, m.NI, m.NJ)
	}
	d32 := make([]float32, len(data.Elements))
	for i, e := range data.Elements {
		d32[i] = float32(e)
	}
	m.Key = len(w.recs)
	w.recs = append(w.recs, bufRec{meta: m, data: d32})
	return nil
}

func (w *writer) WriteGrid(g *domcmc.GridDescriptor, ig1, ig2, ig3 int) error {
	prefix := gridPrefix(ig1, ig2, ig3)
	for _, have := range w.grids {
		if have.prefix == prefix {
			if !have.g.Equal(g) {
				return fmt.Errorf("fstnc: conflicting grids for ig1=%d ig2=%d ig3=%d", ig1, ig2, ig3)
			}
			return nil
		}
	}
	w.grids = append(w.grids, bufGrid{prefix: prefix, g: g})
	return nil
}

func (w *writer) WriteVerticalDescriptor(d *domcmc.VerticalDescriptor, ig1, ig2 int) error {
	prefix := vdPrefix(ig1, ig2)
	for _, have := range w.vds {
		if have.prefix == prefix {
			return nil
		}
	}
	w.vds = append(w.vds, bufVD{prefix: prefix, d: d})
	return nil
}

// Close builds the header from everything buffered and writes the
// container out.
func (w *writer) Close() error {
	dims := make([]string, 0, 2*len(w.recs))
	lens := make([]int, 0, 2*len(w.recs))
	for _, r := range w.recs {
		v := recName(r.meta.Key)
		dims = append(dims, v+"_x", v+"_y")
		lens = append(lens, r.meta.NI, r.meta.NJ)
	}
	h := cdf.NewHeader(dims, lens)
	h.AddAttribute("", "container", containerTag)

	for _, r := range w.recs {
		v := recName(r.meta.Key)
		m := r.meta
		h.AddVariable(v, []string{v + "_x", v + "_y"}, []float32{0})
		h.AddAttribute(v, "nomvar", m.Nomvar)
		h.AddAttribute(v, "typvar", m.Typvar)
		h.AddAttribute(v, "etiket", m.Etiket)
		h.AddAttribute(v, "datev", []int32{int32(m.Datev)})
		h.AddAttribute(v, "ip1", []int32{int32(m.IP1)})
		h.AddAttribute(v, "ip2", []int32{int32(m.IP2)})
		h.AddAttribute(v, "ip3", []int32{int32(m.IP3)})
		h.AddAttribute(v, "ig", []int32{int32(m.IG1), int32(m.IG2), int32(m.IG3), int32(m.IG4)})
		h.AddAttribute(v, "grtyp", string(rune(m.Grtyp)))
		h.AddAttribute(v, "nbits", []int32{int32(m.Nbits)})
	}
	for _, g := range w.grids {
		putGrid(h, g.prefix, g.g)
	}
	for _, vd := range w.vds {
		putVD(h, vd.prefix, vd.d)
	}

	h.Define()
	for _, err := range h.Check() {
		return fmt.Errorf("fstnc: building %s header: %v", w.path, err)
	}

	ff, err := os.Create(w.path)
	if err != nil {
		return fmt.Errorf("fstnc: creating %s: %w", w.path, err)
	}
	defer ff.Close()
	f, err := cdf.Create(ff, h)
	if err != nil {
		return fmt.Errorf("fstnc: writing %s header: %w", w.path, err)
	}
	for _, r := range w.recs {
		v := recName(r.meta.Key)
		end := f.Header.Lengths(v)
		start := make([]int, len(end))
		wr := f.Writer(v, start, end)
		if _, err := wr.Write(r.data); err != nil {
			return fmt.Errorf("fstnc: writing %s to %s: %w", v, w.path, err)
		}
	}
	if err := cdf.UpdateNumRecs(ff); err != nil {
		return fmt.Errorf("fstnc: finalizing %s: %w", w.path, err)
	}
	return nil
}

// putVD serializes a vertical descriptor as global attributes; the
// coefficient maps flatten to parallel slices in ascending ip1 order.
func putVD(h *cdf.Header, prefix string, d *domcmc.VerticalDescriptor) {
	ip1s := make([]int, 0, len(d.A))
	for ip1 := range d.A {
		ip1s = append(ip1s, ip1)
	}
	sort.Ints(ip1s)
	codes := make([]int32, len(ip1s))
	as := make([]float64, len(ip1s))
	bs := make([]float64, len(ip1s))
	for i, ip1 := range ip1s {
		codes[i] = int32(ip1)
		as[i] = d.A[ip1]
		bs[i] = d.B[ip1]
	}
	h.AddAttribute("", prefix+"kind", []int32{int32(d.Kind)})
	h.AddAttribute("", prefix+"ip1", codes)
	h.AddAttribute("", prefix+"a", as)
	h.AddAttribute("", prefix+"b", bs)
}

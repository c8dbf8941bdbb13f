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

package domcmc_test

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/ctessum/sparse"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats/scalar"

	"github.com/sebastiendfortier/domcmc"
	"github.com/sebastiendfortier/domcmc/internal/fstnc"
)

const testDatev = domcmc.Stamp(230000000)

func quietLog() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func e2eMeta(nomvar string, ip1 int, ni, nj int, grtyp byte) domcmc.RecordMeta {
	return domcmc.RecordMeta{
		Nomvar: nomvar,
		Typvar: "P",
		Etiket: "G133K80P",
		Datev:  testDatev,
		IP1:    ip1,
		IP2:    24,
		IG1:    1234,
		IG2:    5678,
		NI:     ni,
		NJ:     nj,
		Grtyp:  grtyp,
		Nbits:  16,
	}
}

func fillPayload(ni, nj int, v float64) *sparse.DenseArray {
	d := sparse.ZerosDense(ni, nj)
	for i := range d.Elements {
		d.Elements[i] = v
	}
	return d
}

type e2eRec struct {
	meta domcmc.RecordMeta
	fill float64
}

// writeContainer builds a record collection on disk for the end-to-end
// tests. The grid and descriptor are registered under the first
// record's grid identifiers.
func writeContainer(t *testing.T, path string, grid *domcmc.GridDescriptor, desc *domcmc.VerticalDescriptor, recs []e2eRec) {
	t.Helper()
	var f fstnc.Format
	w, err := f.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range recs {
		if err := w.WriteRecord(r.meta, fillPayload(r.meta.NI, r.meta.NJ, r.fill)); err != nil {
			t.Fatal(err)
		}
	}
	m := recs[0].meta
	if grid != nil {
		if err := w.WriteGrid(grid, m.IG1, m.IG2, m.IG3); err != nil {
			t.Fatal(err)
		}
	}
	if desc != nil {
		if err := w.WriteVerticalDescriptor(desc, m.IG1, m.IG2); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
}

func gridL() *domcmc.GridDescriptor {
	return &domcmc.GridDescriptor{
		Type: 'L', NI: 2, NJ: 3,
		AX: []float64{10, 20}, AY: []float64{45, 55, 65},
	}
}

// sigmaFile writes TT on three sigma levels plus surface pressure.
func sigmaFile(t *testing.T, path string) (ip1s []int) {
	sigmas := []float64{0.8, 0.2, 0.5} // deliberately unsorted
	desc := &domcmc.VerticalDescriptor{
		Kind: domcmc.KindSigma,
		A:    map[int]float64{},
		B:    map[int]float64{},
	}
	var recs []e2eRec
	for _, s := range sigmas {
		ip1 := domcmc.EncodeIP1(s, domcmc.KindSigma)
		ip1s = append(ip1s, ip1)
		desc.A[ip1] = 0
		desc.B[ip1] = s
		recs = append(recs, e2eRec{e2eMeta("TT", ip1, 2, 3, 'L'), s * 10})
	}
	recs = append(recs, e2eRec{e2eMeta("P0", 0, 2, 3, 'L'), 1000})
	writeContainer(t, path, gridL(), desc, recs)
	return ip1s
}

func TestGetDataFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fcst.std")
	sigmaFile(t, path)

	q := domcmc.NewQuery("TT")
	q.FileName = path
	q.LatLon = true
	q.PresFromVar = true
	q.Log = quietLog()

	f, err := domcmc.GetData(q)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(f.Values.Shape, []int{2, 3, 3}) {
		t.Fatalf("shape = %v, want [2 3 3]", f.Values.Shape)
	}

	want := []float64{0.2, 0.5, 0.8}
	for k, s := range want {
		if !scalar.EqualWithinAbsOrRel(f.Levels[k], s, 1e-9, 1e-6) {
			t.Errorf("Levels[%d] = %g, want %g", k, f.Levels[k], s)
		}
		if got := f.Values.Get(0, 0, k); !scalar.EqualWithinAbsOrRel(got, s*10, 1e-9, 1e-6) {
			t.Errorf("layer %d holds %g, want %g", k, got, s*10)
		}
		if got := f.Pressure.Get(1, 2, k); !scalar.EqualWithinAbsOrRel(got, s*1000, 1e-6, 1e-6) {
			t.Errorf("pressure[%d] = %g, want %g", k, got, s*1000)
		}
	}
	if f.Lat == nil || f.Lat.Get(0, 1) != 55 || f.Lon.Get(1, 0) != 20 {
		t.Error("lat/lon missing or wrong")
	}
	if f.Meta.Nomvar != "TT" || f.Meta.Datev != testDatev {
		t.Errorf("meta = %+v", f.Meta)
	}
}

func TestGetDataExplicitLevels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fcst.std")
	ip1s := sigmaFile(t, path)

	q := domcmc.NewQuery("TT")
	q.FileName = path
	q.IP1s = []int{ip1s[0], ip1s[2]} // sigma 0.8 and 0.5
	q.Log = quietLog()

	f, err := domcmc.GetData(q)
	if err != nil {
		t.Fatal(err)
	}
	// Selection is by the request; order stays ascending.
	want := []float64{0.5, 0.8}
	if f.NK() != 2 {
		t.Fatalf("NK = %d, want 2", f.NK())
	}
	for k, s := range want {
		if !scalar.EqualWithinAbsOrRel(f.Levels[k], s, 1e-9, 1e-6) {
			t.Errorf("Levels[%d] = %g, want %g", k, f.Levels[k], s)
		}
	}

	q.IP1s = []int{99999}
	if _, err := domcmc.GetData(q); !errors.Is(err, domcmc.ErrNoMatchingRecord) {
		t.Errorf("missing code: got %v, want ErrNoMatchingRecord", err)
	}
}

func TestGetDataDatev(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fcst.std")
	later := e2eMeta("TT", domcmc.EncodeIP1(0.5, domcmc.KindSigma), 2, 3, 'L')
	later.Datev = testDatev + 720 // one hour later
	writeContainer(t, path, gridL(), nil, []e2eRec{
		{e2eMeta("TT", domcmc.EncodeIP1(0.5, domcmc.KindSigma), 2, 3, 'L'), 1},
		{later, 2},
	})

	q := domcmc.NewQuery("TT")
	q.FileName = path
	q.Datev = later.Datev.Time()
	q.Log = quietLog()

	f, err := domcmc.GetData(q)
	if err != nil {
		t.Fatal(err)
	}
	if f.Values.Get(0, 0, 0) != 2 {
		t.Errorf("wrong validity time selected: got payload %g", f.Values.Get(0, 0, 0))
	}

	q.Datev = (later.Datev + 100).Time()
	if _, err := domcmc.GetData(q); !errors.Is(err, domcmc.ErrNoMatchingRecord) {
		t.Errorf("out of window: got %v, want ErrNoMatchingRecord", err)
	}
}

func TestGetDataDirectorySearch(t *testing.T) {
	dir := t.TempDir()

	if err := os.WriteFile(filepath.Join(dir, "pred_000"), []byte("foreign file\n"), 0644); err != nil {
		t.Fatal(err)
	}
	writeContainer(t, filepath.Join(dir, "pred_012"), gridL(), nil, []e2eRec{
		{e2eMeta("GZ", 0, 2, 3, 'L'), 1},
	})
	sigmaFile(t, filepath.Join(dir, "pred_024"))
	if err := os.WriteFile(filepath.Join(dir, "skipped_036"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	q := domcmc.NewQuery("TT")
	q.DirName = dir
	q.Prefix = "pred_"
	q.Log = quietLog()

	f, err := domcmc.GetData(q)
	if err != nil {
		t.Fatal(err)
	}
	if f.NK() != 3 {
		t.Errorf("NK = %d, want 3", f.NK())
	}

	q2 := domcmc.NewQuery("HU")
	q2.DirName = dir
	q2.Prefix = "pred_"
	q2.Log = quietLog()
	if _, err := domcmc.GetData(q2); !errors.Is(err, domcmc.ErrNoMatchingRecord) {
		t.Errorf("absent variable: got %v, want ErrNoMatchingRecord", err)
	}
}

func TestGetDataWindVectors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wind.std")
	ip1 := domcmc.EncodeIP1(0.995, domcmc.KindSigma)
	writeContainer(t, path, gridL(), nil, []e2eRec{
		{e2eMeta("UU", ip1, 2, 3, 'L'), 0},
		{e2eMeta("VV", ip1, 2, 3, 'L'), 1},
	})

	q := domcmc.NewQuery(domcmc.WindVectors)
	q.FileName = path
	q.Log = quietLog()

	f, err := domcmc.GetData(q)
	if err != nil {
		t.Fatal(err)
	}
	if f.Wind == nil {
		t.Fatal("no wind decoration on a wind_vectors query")
	}
	w := f.Wind
	if got := w.WD.Get(0, 0, 0); !scalar.EqualWithinAbs(got, 180, 1e-3) {
		t.Errorf("WD = %g, want 180 for a northward wind", got)
	}
	if got := w.UV.Get(1, 2, 0); !scalar.EqualWithinAbsOrRel(got, 1, 1e-6, 1e-6) {
		t.Errorf("UV = %g, want 1", got)
	}
	if got := w.VVSN.Get(0, 0, 0); !scalar.EqualWithinAbsOrRel(got, domcmc.KnotsToMS, 1e-6, 1e-5) {
		t.Errorf("VVSN = %g, want %g", got, domcmc.KnotsToMS)
	}
	if w.UU.Get(0, 0, 0) != 0 || w.VV.Get(0, 0, 0) != 1 {
		t.Error("raw components not preserved in their original unit")
	}
	// Wind queries imply coordinates even when not asked for.
	if f.Lat == nil {
		t.Error("wind query did not compute lat/lon")
	}
}

func TestGetDataYinYang(t *testing.T) {
	path := filepath.Join(t.TempDir(), "yy.std")
	sub := func() *domcmc.GridDescriptor {
		return &domcmc.GridDescriptor{
			Type: 'Z', NI: 2, NJ: 3,
			XLat1: 0, XLon1: 180, XLat2: 0, XLon2: 270,
			AX: []float64{0, 10}, AY: []float64{-10, 0, 10},
		}
	}
	grid := &domcmc.GridDescriptor{Type: 'U', NI: 4, NJ: 3,
		Subgrids: []*domcmc.GridDescriptor{sub(), sub()}}
	ip1 := domcmc.EncodeIP1(0.5, domcmc.KindSigma)
	writeContainer(t, path, grid, nil, []e2eRec{
		{e2eMeta("TT", ip1, 4, 3, 'U'), 7},
	})

	q := domcmc.NewQuery("TT")
	q.FileName = path
	q.LatLon = true
	q.Log = quietLog()

	f, err := domcmc.GetData(q)
	if err != nil {
		t.Fatal(err)
	}
	if f.Yin == nil || f.Yang == nil {
		t.Fatal("combined field was not split")
	}
	if !reflect.DeepEqual(f.Yin.Values.Shape, []int{2, 3, 1}) {
		t.Errorf("Yin shape = %v, want [2 3 1]", f.Yin.Values.Shape)
	}
	if f.Values != f.Yin.Values {
		t.Error("default view is not an alias of the Yin half")
	}
	f.Yang.Values.Set(-3, 0, 0, 0)
	if f.Yang.Values.Get(0, 0, 0) != -3 {
		t.Error("Yang half is not writable")
	}
	if f.Yin.Lat == nil || f.Yang.Lat == nil {
		t.Error("sub-fields missing lat/lon")
	}
}

func TestGetDataValidation(t *testing.T) {
	q := domcmc.NewQuery("TT")
	q.Log = quietLog()
	if _, err := domcmc.GetData(q); err == nil {
		t.Error("no source location accepted")
	}

	q.FileName = "a"
	q.DirName = "b"
	if _, err := domcmc.GetData(q); err == nil {
		t.Error("both file and dir accepted")
	}

	q2 := domcmc.NewQuery(domcmc.WindVectors)
	q2.FileName = "a"
	q2.PresLevels = []float64{500}
	q2.Log = quietLog()
	if _, err := domcmc.GetData(q2); err == nil {
		t.Error("wind composite with pressure interpolation accepted")
	}
}

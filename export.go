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
	"os"
	"time"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
)

// WriteNetCDF exports the field to a NetCDF classic file for use by
// plotting and analysis tools. The data variable is named after the
// record, with dimensions (x, y, level); latitude, longitude and
// pressure are written alongside when the field carries them, and the
// level axis is described by the level and ip1 coordinate variables.
//
// A Yin-Yang field exports its default view, which is the Yin half;
// export f.Yang separately to keep both halves.
func (f *Field) WriteNetCDF(path string) error {
	ni, nj, nk := f.Values.Shape[0], f.Values.Shape[1], f.NK()

	h := cdf.NewHeader([]string{"x", "y", "level"}, []int{ni, nj, nk})
	h.AddAttribute("", "etiket", f.Meta.Etiket)
	h.AddAttribute("", "typvar", f.Meta.Typvar)
	h.AddAttribute("", "datev", f.Meta.Datev.Time().Format(time.RFC3339))
	h.AddAttribute("", "grtyp", string(rune(f.Grid.Type)))

	h.AddVariable(f.Meta.Nomvar, []string{"x", "y", "level"}, []float32{0})

	h.AddVariable("level", []string{"level"}, []float32{0})
	h.AddAttribute("level", "description", "decoded vertical level value, ascending")
	h.AddVariable("ip1", []string{"level"}, []int32{0})
	h.AddAttribute("ip1", "description", "encoded vertical level identifier")

	if f.Lat != nil {
		h.AddVariable("lat", []string{"x", "y"}, []float32{0})
		h.AddAttribute("lat", "units", "degrees_north")
		h.AddVariable("lon", []string{"x", "y"}, []float32{0})
		h.AddAttribute("lon", "units", "degrees_east")
	}
	if f.Pressure != nil {
		h.AddVariable("pressure", []string{"x", "y", "level"}, []float32{0})
		h.AddAttribute("pressure", "units", "hPa")
	}

	h.Define()
	for _, err := range h.Check() {
		return fmt.Errorf("domcmc: building NetCDF header: %v", err)
	}

	ff, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("domcmc: creating %s: %w", path, err)
	}
	defer ff.Close()
	file, err := cdf.Create(ff, h)
	if err != nil {
		return fmt.Errorf("domcmc: writing NetCDF header: %w", err)
	}

	if err := writeNCF(file, f.Meta.Nomvar, f.Values); err != nil {
		return err
	}

	levels := make([]float32, nk)
	ip1s := make([]int32, nk)
	for k := 0; k < nk; k++ {
		levels[k] = float32(f.Levels[k])
		ip1s[k] = int32(f.IP1s[k])
	}
	if err := writeNCFSlice(file, "level", levels); err != nil {
		return err
	}
	if err := writeNCFSlice(file, "ip1", ip1s); err != nil {
		return err
	}

	if f.Lat != nil {
		if err := writeNCF(file, "lat", f.Lat); err != nil {
			return err
		}
		if err := writeNCF(file, "lon", f.Lon); err != nil {
			return err
		}
	}
	if f.Pressure != nil {
		if err := writeNCF(file, "pressure", f.Pressure); err != nil {
			return err
		}
	}

	if err := cdf.UpdateNumRecs(ff); err != nil {
		return fmt.Errorf("domcmc: finalizing %s: %w", path, err)
	}
	return nil
}

func writeNCF(f *cdf.File, Var string, data *sparse.DenseArray) error {
	n := 1
	for _, v := range data.Shape {
		n *= v
	}
	if len(data.Elements) != n {
		return fmt.Errorf("domcmc: %s dims give %d values but array has %d", Var, n, len(data.Elements))
	}
	data32 := make([]float32, len(data.Elements))
	for i, e := range data.Elements {
		data32[i] = float32(e)
	}
	end := f.Header.Lengths(Var)
	start := make([]int, len(end))
	w := f.Writer(Var, start, end)
	if _, err := w.Write(data32); err != nil {
		return fmt.Errorf("domcmc: writing %s: %w", Var, err)
	}
	return nil
}

func writeNCFSlice(f *cdf.File, Var string, data interface{}) error {
	end := f.Header.Lengths(Var)
	start := make([]int, len(end))
	w := f.Writer(Var, start, end)
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("domcmc: writing %s: %w", Var, err)
	}
	return nil
}

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
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/ctessum/sparse"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats/scalar"
)

// PxsInterpCommand is the command used to invoke the external vertical
// interpolation tool. It is looked up in the system path on each
// invocation.
var PxsInterpCommand = "d.pxs2pxt"

// DefaultInterpTimeout bounds the external tool's run time when the
// query does not set its own timeout.
const DefaultInterpTimeout = 10 * time.Minute

// A workspace is a filesystem scratch area scoped to a single
// interpolation call. It owns every file inside it and removes them all
// on release, on every exit path.
type workspace struct {
	dir string
	log logrus.FieldLogger
}

func newWorkspace(base string, log logrus.FieldLogger) (*workspace, error) {
	if base == "" {
		base = os.TempDir()
	}
	dir, err := os.MkdirTemp(base, "domcmc-pxs-")
	if err != nil {
		return nil, fmt.Errorf("%w: creating workspace in %q: %v", ErrWorkspaceIO, base, err)
	}
	return &workspace{dir: dir, log: log}, nil
}

func (w *workspace) path(name string) string {
	return w.dir + string(os.PathSeparator) + name
}

// release removes the workspace and everything in it. Failure to clean
// up is logged, not returned: by the time release runs the call already
// has its outcome.
func (w *workspace) release() {
	if err := os.RemoveAll(w.dir); err != nil {
		w.log.Warnf("could not remove workspace %s: %v", w.dir, err)
	}
}

// interpolateToPressure re-grids the queried variable onto the given
// pressure levels [hPa] by invoking the external interpolation tool:
// it serializes the surface pressure, grid, and vertical descriptor to
// a workspace file the tool needs, runs the tool against the source
// file, and re-ingests the tool's output. The returned field has
// exactly the requested levels in the requested order, not re-sorted:
// pressure levels here are caller-defined values, not decodable codes.
//
// The workspace is released on every exit path.
func interpolateToPressure(format Format, src Source, srcPath string, q *Query, want Stamp, log logrus.FieldLogger) (*Field, error) {
	ws, err := newWorkspace(q.TmpDir, log)
	if err != nil {
		return nil, err
	}
	defer ws.release()

	// The tool derives target-level pressures from the surface pressure
	// field, which must be present on the same grid as the variable.
	critP0 := q.criteria()
	critP0.Nomvar = surfacePresVar
	p0recs, err := locate(src, critP0, want, nil)
	if err != nil {
		return nil, fmt.Errorf("surface pressure required for vertical interpolation: %w", err)
	}
	p0meta := p0recs[0]

	crit := q.criteria()
	recs, err := locate(src, crit, p0meta.Datev, nil)
	if err != nil {
		return nil, err
	}
	if recs[0].IG1 != p0meta.IG1 || recs[0].IG2 != p0meta.IG2 {
		return nil, fmt.Errorf("domcmc: %s and %s are on different grids; re-gridding the surface pressure is not supported",
			q.VarName, surfacePresVar)
	}

	pxsPath := ws.path("p0.pxs")
	if err := writePxsFile(format, src, p0meta, pxsPath); err != nil {
		return nil, err
	}

	outPath := ws.path("interpolated.out")
	if err := runInterpTool(q, srcPath, pxsPath, outPath, p0meta.Datev, len(recs) == 1, log); err != nil {
		return nil, err
	}

	osrc, err := format.Open(outPath)
	if err != nil {
		return nil, fmt.Errorf("%w: opening interpolation output: %v", ErrInterpolationToolFailed, err)
	}
	defer osrc.Close()

	ocrit := anyCriteria()
	ocrit.Nomvar = q.VarName
	orecs, err := locate(osrc, ocrit, NoStamp, nil)
	if err != nil {
		return nil, fmt.Errorf("interpolation output: %w", err)
	}
	field, err := assemble(osrc, orecs, &LevelCodec{}, q.LatLon, log)
	if err != nil {
		return nil, err
	}
	if err := reorderLevels(field, q.PresLevels); err != nil {
		return nil, err
	}
	return field, nil
}

// writePxsFile serializes the surface pressure record, its grid, and
// the collection's vertical descriptor into the tool input file.
func writePxsFile(format Format, src Source, p0meta RecordMeta, path string) error {
	p0, err := src.Read(p0meta)
	if err != nil {
		return fmt.Errorf("domcmc: reading %s: %w", surfacePresVar, err)
	}
	grid, err := src.Grid(p0meta)
	if err != nil {
		return fmt.Errorf("domcmc: reading %s grid: %w", surfacePresVar, err)
	}
	w, err := format.Create(path)
	if err != nil {
		return fmt.Errorf("%w: creating %s: %v", ErrWorkspaceIO, path, err)
	}
	if err := w.WriteRecord(p0meta, p0); err != nil {
		w.Close()
		return fmt.Errorf("%w: writing %s record: %v", ErrWorkspaceIO, surfacePresVar, err)
	}
	if err := w.WriteGrid(grid, p0meta.IG1, p0meta.IG2, p0meta.IG3); err != nil {
		w.Close()
		return fmt.Errorf("%w: writing grid: %v", ErrWorkspaceIO, err)
	}
	if desc, err := src.VerticalDescriptor(p0meta.IG1, p0meta.IG2); err == nil {
		if err := w.WriteVerticalDescriptor(desc, p0meta.IG1, p0meta.IG2); err != nil {
			w.Close()
			return fmt.Errorf("%w: writing vertical descriptor: %v", ErrWorkspaceIO, err)
		}
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("%w: closing %s: %v", ErrWorkspaceIO, path, err)
	}
	return nil
}

// runInterpTool invokes the external tool as a blocking subprocess.
// A non-zero exit is fatal and carries the tool's diagnostic output;
// exceeding the timeout kills the process.
func runInterpTool(q *Query, srcPath, pxsPath, outPath string, datev Stamp, surfaceOnly bool, log logrus.FieldLogger) error {
	// CUB_ requests cubic interpolation; NOI_ passes single-level
	// (surface) fields through without vertical interpolation.
	varStr := "CUB_" + q.VarName
	if surfaceOnly {
		varStr = "NOI_" + q.VarName
	}
	levelStrs := make([]string, len(q.PresLevels))
	for i, p := range q.PresLevels {
		levelStrs[i] = fmt.Sprintf("%07.2f", p)
	}

	timeout := q.Timeout
	if timeout <= 0 {
		timeout = DefaultInterpTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	args := []string{
		"-s", srcPath,
		"-datev", fmt.Sprintf("%09d", int64(datev)),
		"-d", outPath,
		"-pxs", pxsPath,
		"-plevs", strings.Join(levelStrs, ","),
		"-var", varStr,
	}
	log.WithFields(logrus.Fields{"cmd": PxsInterpCommand, "var": varStr, "plevs": strings.Join(levelStrs, ",")}).
		Info("invoking pressure interpolation tool")

	out, err := exec.CommandContext(ctx, PxsInterpCommand, args...).CombinedOutput()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s did not finish within %v", ErrInterpolationTimeout, PxsInterpCommand, timeout)
	}
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v: %s", ErrInterpolationToolFailed,
			PxsInterpCommand, strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return nil
}

// reorderLevels rearranges the field's level axis to exactly match the
// requested pressure levels, in the caller's order. The interpolation
// tool's output is matched to the request by decoded pressure value.
func reorderLevels(f *Field, want []float64) error {
	ni, nj := f.Values.Shape[0], f.Values.Shape[1]
	vals := sparse.ZerosDense(ni, nj, len(want))
	ip1s := make([]int, len(want))
	for t, p := range want {
		k := -1
		for kk, lv := range f.Levels {
			// The tool's level list is formatted to two decimals, so
			// match loosely.
			if scalar.EqualWithinAbsOrRel(lv, p, 0.005, 1e-6) {
				k = kk
				break
			}
		}
		if k < 0 {
			return fmt.Errorf("%w: interpolation output has no %g hPa level (has %v)", ErrNoMatchingRecord, p, f.Levels)
		}
		ip1s[t] = f.IP1s[k]
		for i := 0; i < ni; i++ {
			for j := 0; j < nj; j++ {
				vals.Set(f.Values.Get(i, j, k), i, j, t)
			}
		}
	}
	f.Values = vals
	f.IP1s = ip1s
	f.Levels = append([]float64(nil), want...)
	return nil
}

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
	"math"

	"github.com/ctessum/sparse"
)

// KnotsToMS converts wind speeds from knots, the unit of raw
// model-relative wind component records, to m/s.
const KnotsToMS = 0.514444

// WindFields holds the wind quantities derived from a pair of
// model-relative component fields.
type WindFields struct {
	// UU and VV are the raw model-relative components along the grid
	// axes, in their original unit (knots).
	UU, VV *sparse.DenseArray

	// UUWE and VVSN are the geographic zonal (west-east) and meridional
	// (south-north) components [m/s].
	UUWE, VVSN *sparse.DenseArray

	// UV is the wind modulus in the raw components' unit (knots).
	UV *sparse.DenseArray

	// WD is the meteorological wind direction [degrees], the direction
	// the wind is coming from: rad2deg(atan2(UUWE, VVSN)) + 180.
	WD *sparse.DenseArray
}

// RotateWinds converts model-relative wind components on a (possibly
// rotated) grid into geographic components and derived quantities. It is
// pure: no I/O, no mutation of its inputs.
//
// u and v have shape [NI][NJ][NK] in knots; lat and lon are the
// geographic coordinates of the grid points, shape [NI][NJ], broadcast
// across levels.
//
// The rotation primitives are only validated for single-precision
// input. Input that does not survive a round trip through float32 fails
// with ErrPrecisionPolicyViolation instead of silently producing wrong
// results; valid input is downcast, rotated in single precision, and the
// results upcast back to the output arrays.
func RotateWinds(u, v, lat, lon *sparse.DenseArray, grid *GridDescriptor) (*WindFields, error) {
	if len(u.Shape) != 3 || len(v.Shape) != 3 {
		return nil, fmt.Errorf("%w: wind components must be 3D, got %v and %v", ErrInconsistentGridShape, u.Shape, v.Shape)
	}
	ni, nj, nk := u.Shape[0], u.Shape[1], u.Shape[2]
	if v.Shape[0] != ni || v.Shape[1] != nj || v.Shape[2] != nk {
		return nil, fmt.Errorf("%w: u is %v but v is %v", ErrInconsistentGridShape, u.Shape, v.Shape)
	}
	if len(lat.Shape) != 2 || lat.Shape[0] != ni || lat.Shape[1] != nj ||
		len(lon.Shape) != 2 || lon.Shape[0] != ni || lon.Shape[1] != nj {
		return nil, fmt.Errorf("%w: lat/lon shapes %v/%v do not match components %v", ErrInconsistentGridShape, lat.Shape, lon.Shape, u.Shape)
	}

	u32, err := singleElements(u, "u component")
	if err != nil {
		return nil, err
	}
	v32, err := singleElements(v, "v component")
	if err != nil {
		return nil, err
	}
	lat32, err := singleElements(lat, "latitude")
	if err != nil {
		return nil, err
	}
	lon32, err := singleElements(lon, "longitude")
	if err != nil {
		return nil, err
	}

	var rot [9]float32
	if grid.Rotated() {
		m, err := rotationMatrix(grid.XLat1, grid.XLon1, grid.XLat2, grid.XLon2)
		if err != nil {
			return nil, err
		}
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				rot[3*i+j] = float32(m.At(i, j))
			}
		}
	} else {
		rot = [9]float32{1, 0, 0, 0, 1, 0, 0, 0, 1}
	}

	w := &WindFields{
		UU:   u,
		VV:   v,
		UUWE: sparse.ZerosDense(ni, nj, nk),
		VVSN: sparse.ZerosDense(ni, nj, nk),
		UV:   sparse.ZerosDense(ni, nj, nk),
		WD:   sparse.ZerosDense(ni, nj, nk),
	}

	for i := 0; i < ni; i++ {
		for j := 0; j < nj; j++ {
			p2 := i*nj + j
			la := lat32[p2] * degToRad32
			lo := lon32[p2] * degToRad32

			// Geographic position and local east/north basis.
			pg := cartesian32(la, lo)
			eg, ng := tangentBasis32(la, lo)

			// The same point in the grid's rotated frame, with its own
			// local basis; the model components are expressed in it.
			pr := mul3(rot, pg)
			lar := asin32(pr[2])
			lor := atan232(pr[1], pr[0])
			er, nr := tangentBasis32(lar, lor)

			for k := 0; k < nk; k++ {
				p3 := (i*nj+j)*nk + k
				uu := u32[p3]
				vv := v32[p3]

				// Cartesian wind vector in rotated space, then back to
				// the geographic frame (the matrix is orthonormal, so
				// the inverse is the transpose).
				wr := [3]float32{
					uu*er[0] + vv*nr[0],
					uu*er[1] + vv*nr[1],
					uu*er[2] + vv*nr[2],
				}
				wg := mul3T(rot, wr)

				uuwe := float64(wg[0]*eg[0]+wg[1]*eg[1]+wg[2]*eg[2]) * KnotsToMS
				vvsn := float64(wg[0]*ng[0]+wg[1]*ng[1]+wg[2]*ng[2]) * KnotsToMS

				w.UUWE.Elements[p3] = uuwe
				w.VVSN.Elements[p3] = vvsn
				w.UV.Elements[p3] = math.Hypot(float64(uu), float64(vv))
				w.WD.Elements[p3] = math.Atan2(uuwe, vvsn)/degToRad + 180
			}
		}
	}
	return w, nil
}

// singleElements downcasts an array to single precision, enforcing the
// precision policy: any element that cannot be represented in float32
// within 1e-6 relative error fails with ErrPrecisionPolicyViolation.
func singleElements(a *sparse.DenseArray, what string) ([]float32, error) {
	out := make([]float32, len(a.Elements))
	for i, v := range a.Elements {
		s := float32(v)
		back := float64(s)
		if math.IsInf(back, 0) || math.IsNaN(back) ||
			(v != back && math.Abs(v-back) > 1e-6*math.Abs(v)) {
			return nil, fmt.Errorf("%w: %s value %g is not representable in single precision",
				ErrPrecisionPolicyViolation, what, v)
		}
		out[i] = s
	}
	return out, nil
}

// Single-precision spherical primitives used by the rotation loop.

const degToRad32 = float32(math.Pi / 180)

func sin32(x float32) float32      { return float32(math.Sin(float64(x))) }
func cos32(x float32) float32      { return float32(math.Cos(float64(x))) }
func asin32(x float32) float32     { return float32(math.Asin(float64(x))) }
func atan232(y, x float32) float32 { return float32(math.Atan2(float64(y), float64(x))) }

// cartesian32 converts latitude/longitude [radians] to a unit vector.
func cartesian32(lat, lon float32) [3]float32 {
	return [3]float32{
		cos32(lat) * cos32(lon),
		cos32(lat) * sin32(lon),
		sin32(lat),
	}
}

// tangentBasis32 returns the local east and north unit vectors at a
// point given by latitude/longitude [radians].
func tangentBasis32(lat, lon float32) (east, north [3]float32) {
	east = [3]float32{-sin32(lon), cos32(lon), 0}
	north = [3]float32{-sin32(lat) * cos32(lon), -sin32(lat) * sin32(lon), cos32(lat)}
	return east, north
}

func mul3(m [9]float32, v [3]float32) [3]float32 {
	return [3]float32{
		m[0]*v[0] + m[1]*v[1] + m[2]*v[2],
		m[3]*v[0] + m[4]*v[1] + m[5]*v[2],
		m[6]*v[0] + m[7]*v[1] + m[8]*v[2],
	}
}

// mul3T multiplies by the matrix transpose.
func mul3T(m [9]float32, v [3]float32) [3]float32 {
	return [3]float32{
		m[0]*v[0] + m[3]*v[1] + m[6]*v[2],
		m[1]*v[0] + m[4]*v[1] + m[7]*v[2],
		m[2]*v[0] + m[5]*v[1] + m[8]*v[2],
	}
}

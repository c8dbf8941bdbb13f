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

	"gonum.org/v1/gonum/mat"
)

const degToRad = math.Pi / 180

// cartesian converts geographic coordinates [degrees] to a unit vector
// on the sphere.
func cartesian(latDeg, lonDeg float64) [3]float64 {
	lat := latDeg * degToRad
	lon := lonDeg * degToRad
	return [3]float64{
		math.Cos(lat) * math.Cos(lon),
		math.Cos(lat) * math.Sin(lon),
		math.Sin(lat),
	}
}

// spherical converts a vector on the sphere back to latitude and
// longitude [degrees], with longitude in [0, 360).
func spherical(v [3]float64) (latDeg, lonDeg float64) {
	latDeg = math.Asin(v[2]/norm(v)) / degToRad
	lonDeg = math.Atan2(v[1], v[0]) / degToRad
	if lonDeg < 0 {
		lonDeg += 360
	}
	return latDeg, lonDeg
}

func cross(a, b [3]float64) [3]float64 {
	return [3]float64{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

func norm(v [3]float64) float64 {
	return math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}

// rotationMatrix builds the matrix mapping geographic Cartesian
// coordinates into the grid's rotated frame from the grid's two
// rotation-pole reference points. The first point becomes the origin of
// the rotated coordinates (rotated latitude and longitude zero); the
// second fixes the rotated equator. The matrix is orthonormal, so its
// inverse is its transpose.
func rotationMatrix(xlat1, xlon1, xlat2, xlon2 float64) (*mat.Dense, error) {
	a := cartesian(xlat1, xlon1)
	b := cartesian(xlat2, xlon2)
	z := cross(a, b)
	n := norm(z)
	if n < 1e-12 {
		return nil, fmt.Errorf("domcmc: degenerate rotation pole reference points (%g,%g) and (%g,%g)",
			xlat1, xlon1, xlat2, xlon2)
	}
	for i := range z {
		z[i] /= n
	}
	y := cross(z, a)
	return mat.NewDense(3, 3, []float64{
		a[0], a[1], a[2],
		y[0], y[1], y[2],
		z[0], z[1], z[2],
	}), nil
}

// identityMatrix is the rotation used for unrotated grids.
func identityMatrix() *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
	})
}

// apply multiplies the matrix with a column vector.
func apply(m mat.Matrix, v [3]float64) [3]float64 {
	var out [3]float64
	for i := 0; i < 3; i++ {
		out[i] = m.At(i, 0)*v[0] + m.At(i, 1)*v[1] + m.At(i, 2)*v[2]
	}
	return out
}

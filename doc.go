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

// Package domcmc assembles meteorological fields from CMC
// standard-file record collections.
//
// A collection stores each field as a set of 2D records discriminated
// by name, validity time, level code and grid identifiers. GetData
// locates a matching record group, stacks it into a 3D cube in
// ascending level order, and optionally decorates the result with
// geographic coordinates, the pressure at every point, a Yin-Yang
// subgrid split, and rotated wind components:
//
//	q := domcmc.NewQuery("TT")
//	q.FileName = "forecast.std"
//	q.LatLon = true
//	field, err := domcmc.GetData(q)
//
// Low-level binary access is behind the Source, Writer and Format
// interfaces; the fstnc subpackage provides a NetCDF-backed
// implementation and registers itself as the default format.
package domcmc

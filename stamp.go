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

import "time"

// A Stamp is a CMC validity timestamp: the number of 5-second intervals
// since 1980-01-01T00:00:00Z. The 5-second resolution means fields valid
// at fractional minutes never collide.
type Stamp int64

// NoStamp marks an unset validity time in queries.
const NoStamp Stamp = -1

// DatevTolerance is the half-width of the window within which a record's
// validity time is considered to match a requested one. It is strict
// (exclusive), so records 2×DatevTolerance apart can never both match.
const DatevTolerance = 15 * time.Second

var stampEpoch = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)

// TimeToStamp converts a calendar time to a CMC timestamp, truncating
// to the 5-second stamp resolution.
func TimeToStamp(t time.Time) Stamp {
	return Stamp(t.Sub(stampEpoch) / (5 * time.Second))
}

// Time returns the calendar time the stamp represents.
func (s Stamp) Time() time.Time {
	return stampEpoch.Add(time.Duration(s) * 5 * time.Second)
}

// distance is the absolute difference between the two stamps' times.
func (s Stamp) distance(o Stamp) time.Duration {
	d := s.Time().Sub(o.Time())
	if d < 0 {
		d = -d
	}
	return d
}

// within reports whether s falls strictly inside the tolerance window
// centered on o.
func (s Stamp) within(o Stamp, tol time.Duration) bool {
	return s.distance(o) < tol
}

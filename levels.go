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
)

// LevelKind identifies the physical meaning of a decoded vertical level.
type LevelKind int

// Vertical coordinate kinds, following the standard-file convention.
const (
	KindHeightSea    LevelKind = 0 // height above sea level [m]
	KindSigma        LevelKind = 1 // sigma [p/p0]
	KindPressure     LevelKind = 2 // pressure [hPa]
	KindArbitrary    LevelKind = 3 // arbitrary code, no physical unit
	KindHeightGround LevelKind = 4 // height above ground [m]
	KindHybrid       LevelKind = 5 // hybrid model coordinate
	KindTheta        LevelKind = 6 // potential temperature [K]
)

func (k LevelKind) String() string {
	switch k {
	case KindHeightSea:
		return "height above sea level [m]"
	case KindSigma:
		return "sigma"
	case KindPressure:
		return "pressure [hPa]"
	case KindArbitrary:
		return "arbitrary"
	case KindHeightGround:
		return "height above ground [m]"
	case KindHybrid:
		return "hybrid"
	case KindTheta:
		return "theta [K]"
	}
	return fmt.Sprintf("unknown kind %d", int(k))
}

// A Level is a decoded vertical level: a physical value whose unit
// depends on the coordinate kind. Levels are ordered by Value; raw IP1
// codes are not monotonic with height or pressure and must never be
// sorted directly.
type Level struct {
	Value float64
	Kind  LevelKind
}

// IP1 bit layout for new-style codes: kind in bits 24-27, decimal
// exponent in bits 20-23 (biased by 5), 20-bit mantissa in bits 0-19.
// The decoded value is mantissa × 10^(exponent-5). Codes below
// oldStyleMax use the legacy encodings handled in decodeOldIP1.
const (
	oldStyleMax  = 32768
	mantissaMax  = 1<<20 - 1
	exponentBias = 5
)

// DecodeIP1 decodes a vertical level identifier into its physical value
// and coordinate kind. Decoding is a pure function of the code; codes
// that use no recognized encoding fail with
// ErrUnsupportedVerticalCoordinate.
func DecodeIP1(ip1 int) (Level, error) {
	if ip1 < 0 {
		return Level{}, fmt.Errorf("%w: negative level code %d", ErrUnsupportedVerticalCoordinate, ip1)
	}
	if ip1 < oldStyleMax {
		return decodeOldIP1(ip1)
	}
	kind := LevelKind(ip1 >> 24 & 0xf)
	exp := ip1 >> 20 & 0xf
	mant := ip1 & mantissaMax
	switch kind {
	case KindHeightSea, KindSigma, KindPressure, KindArbitrary, KindHeightGround, KindHybrid, KindTheta:
	default:
		return Level{}, fmt.Errorf("%w: level code %d has kind %d", ErrUnsupportedVerticalCoordinate, ip1, int(kind))
	}
	return Level{
		Value: float64(mant) * math.Pow(10, float64(exp-exponentBias)),
		Kind:  kind,
	}, nil
}

// decodeOldIP1 handles legacy codes: 0 is the surface, 1-1100 are
// pressure levels in hPa, and 12001-13000 encode sigma in thousandths.
func decodeOldIP1(ip1 int) (Level, error) {
	switch {
	case ip1 == 0:
		return Level{Value: 0, Kind: KindHeightGround}, nil
	case ip1 <= 1100:
		return Level{Value: float64(ip1), Kind: KindPressure}, nil
	case ip1 >= 12001 && ip1 <= 13000:
		return Level{Value: float64(ip1-12000) / 1000, Kind: KindSigma}, nil
	}
	return Level{}, fmt.Errorf("%w: unrecognized old-style level code %d", ErrUnsupportedVerticalCoordinate, ip1)
}

// EncodeIP1 encodes a physical level value as a new-style IP1 code.
// The value is stored with the largest mantissa that fits 20 bits, so
// round-tripping through DecodeIP1 preserves about six significant
// digits.
func EncodeIP1(value float64, kind LevelKind) int {
	exp := 0
	for exp < 15 {
		mant := value * math.Pow(10, float64(exponentBias-exp))
		if mant <= mantissaMax {
			break
		}
		exp++
	}
	mant := int(math.Round(value * math.Pow(10, float64(exponentBias-exp))))
	if mant > mantissaMax {
		mant = mantissaMax
	}
	if mant < 0 {
		mant = 0
	}
	return int(kind)<<24 | exp<<20 | mant
}

// A VerticalDescriptor relates model-level IP1 codes to pressure. It is
// file-specific: the record-access collaborator reads it from the same
// collection as the records it describes. For sigma and hybrid
// coordinates the pressure at a grid point is A + B × P0, with P0 the
// surface pressure in hPa.
type VerticalDescriptor struct {
	Kind LevelKind
	A    map[int]float64 // hPa, keyed by IP1
	B    map[int]float64 // dimensionless, keyed by IP1
}

// PressureAt returns the pressure [hPa] of level ip1 at a point where
// the surface pressure is p0 [hPa].
func (d *VerticalDescriptor) PressureAt(ip1 int, p0 float64) (float64, error) {
	lv, err := DecodeIP1(ip1)
	if err != nil {
		return 0, err
	}
	if lv.Kind == KindPressure {
		return lv.Value, nil
	}
	switch d.Kind {
	case KindSigma, KindHybrid:
		a, okA := d.A[ip1]
		b, okB := d.B[ip1]
		if !okA || !okB {
			return 0, fmt.Errorf("%w: descriptor has no coefficients for level code %d", ErrUnsupportedVerticalCoordinate, ip1)
		}
		return a + b*p0, nil
	}
	return 0, fmt.Errorf("%w: cannot compute pressure on %v coordinate", ErrUnsupportedVerticalCoordinate, d.Kind)
}

// A LevelCodec decodes and orders the vertical levels of one record
// collection. The descriptor may be nil when only decoding and ordering
// are needed; it is required to compute pressures on model levels.
type LevelCodec struct {
	Desc *VerticalDescriptor
}

// Decode decodes an IP1 level code.
func (c *LevelCodec) Decode(ip1 int) (Level, error) {
	return DecodeIP1(ip1)
}

// OrderKey returns the sort key for a level code. Fields are always
// stacked in ascending OrderKey order, which is ascending decoded
// physical value regardless of the raw code order.
func (c *LevelCodec) OrderKey(ip1 int) (float64, error) {
	lv, err := DecodeIP1(ip1)
	if err != nil {
		return 0, err
	}
	return lv.Value, nil
}

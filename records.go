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

import "github.com/ctessum/sparse"

// WindVectors is the synthetic composite variable name. Querying it is
// not a literal lookup: the locator resolves it to the model-relative
// wind component records (UU and VV, joined on identical level and time
// metadata), and the assembled result carries the rotated geographic
// components.
const WindVectors = "wind_vectors"

// Names of the constituent variables a WindVectors query resolves to,
// and of the surface pressure field required for vertical interpolation.
const (
	uComponentVar  = "UU"
	vComponentVar  = "VV"
	surfacePresVar = "P0"
)

// RecordMeta is the metadata of one record in a standard-file
// collection: one named, leveled, timestamped 2D payload. It is
// immutable once read.
type RecordMeta struct {
	Nomvar string // variable name
	Typvar string // variable type tag
	Etiket string // production label

	Datev Stamp // validity timestamp

	IP1 int // encoded vertical level
	IP2 int // usually forecast hour
	IP3 int // user defined

	IG1, IG2, IG3, IG4 int // grid identifiers

	NI, NJ int  // payload shape
	Grtyp  byte // grid type tag; 'U' marks combined Yin-Yang storage
	Nbits  int  // bits per packed value

	// Key is the record's handle within its open Source, used to read
	// the payload back.
	Key int
}

// sameGroup reports whether two records belong to the same field group:
// identical metadata in every discriminator except the level code.
func (m RecordMeta) sameGroup(o RecordMeta) bool {
	return m.Nomvar == o.Nomvar &&
		m.Typvar == o.Typvar &&
		m.Etiket == o.Etiket &&
		m.Datev == o.Datev &&
		m.IP2 == o.IP2 &&
		m.IP3 == o.IP3 &&
		m.IG1 == o.IG1 &&
		m.IG2 == o.IG2 &&
		m.IG3 == o.IG3
}

// Criteria is a record metadata predicate. String fields match anything
// when empty; integer fields match anything when negative. Datev here is
// an exact stamp match; tolerance-window time matching is the locator's
// job.
type Criteria struct {
	Nomvar string
	Typvar string
	Etiket string
	Datev  Stamp
	IP1    int
	IP2    int
	IP3    int
	IG1    int
	IG2    int
	IG3    int
}

// anyCriteria returns a Criteria that matches every record.
func anyCriteria() Criteria {
	return Criteria{Datev: NoStamp, IP1: -1, IP2: -1, IP3: -1, IG1: -1, IG2: -1, IG3: -1}
}

// Match reports whether the record satisfies the criteria.
func (c Criteria) Match(m RecordMeta) bool {
	switch {
	case c.Nomvar != "" && c.Nomvar != m.Nomvar:
		return false
	case c.Typvar != "" && c.Typvar != m.Typvar:
		return false
	case c.Etiket != "" && c.Etiket != m.Etiket:
		return false
	case c.Datev >= 0 && c.Datev != m.Datev:
		return false
	case c.IP1 >= 0 && c.IP1 != m.IP1:
		return false
	case c.IP2 >= 0 && c.IP2 != m.IP2:
		return false
	case c.IP3 >= 0 && c.IP3 != m.IP3:
		return false
	case c.IG1 >= 0 && c.IG1 != m.IG1:
		return false
	case c.IG2 >= 0 && c.IG2 != m.IG2:
		return false
	case c.IG3 >= 0 && c.IG3 != m.IG3:
		return false
	}
	return true
}

// A Source is an open record collection: the read side of the
// record-access collaborator. Implementations own the low-level binary
// decoding; this package only consumes metadata and 2D payloads.
type Source interface {
	// List returns the metadata of every record in the collection, in
	// storage order. A fresh call re-scans the collection.
	List() []RecordMeta

	// Read returns the record's 2D payload with shape [NI][NJ].
	Read(RecordMeta) (*sparse.DenseArray, error)

	// Grid returns the horizontal grid descriptor associated with the
	// record.
	Grid(RecordMeta) (*GridDescriptor, error)

	// VerticalDescriptor returns the vertical coordinate descriptor
	// linked to the given grid identifiers.
	VerticalDescriptor(ig1, ig2 int) (*VerticalDescriptor, error)

	Close() error
}

// A Writer is the write side of the record-access collaborator, used to
// serialize tool input for the pressure interpolation orchestrator.
type Writer interface {
	WriteRecord(RecordMeta, *sparse.DenseArray) error
	WriteGrid(g *GridDescriptor, ig1, ig2, ig3 int) error
	WriteVerticalDescriptor(d *VerticalDescriptor, ig1, ig2 int) error
	Close() error
}

// A Format opens and creates record collections on disk.
type Format interface {
	// Sniff cheaply reports whether the file at path looks like a
	// collection this format can open. Directory scans use it to skip
	// foreign files without failing.
	Sniff(path string) bool

	Open(path string) (Source, error)
	Create(path string) (Writer, error)
}

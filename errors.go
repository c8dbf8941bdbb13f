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

import "errors"

// These are the error conditions that can terminate a query. None of them
// is retried internally; callers that want retries must do so themselves.
// All errors returned by this package can be tested against these values
// with errors.Is.
var (
	// ErrNoMatchingRecord means no record satisfied the search criteria.
	ErrNoMatchingRecord = errors.New("domcmc: no matching record")

	// ErrAmbiguousMatch means two or more records matched the criteria
	// equally well and the tie could not be broken.
	ErrAmbiguousMatch = errors.New("domcmc: ambiguous record match")

	// ErrUnsupportedVerticalCoordinate means a level code or vertical
	// coordinate descriptor could not be decoded.
	ErrUnsupportedVerticalCoordinate = errors.New("domcmc: unsupported vertical coordinate")

	// ErrMalformedYinYangGrid means a combined Yin-Yang record cannot be
	// split into two equal halves.
	ErrMalformedYinYangGrid = errors.New("domcmc: malformed yin-yang grid")

	// ErrInconsistentGridShape means records that should share a grid
	// have payloads of different shapes.
	ErrInconsistentGridShape = errors.New("domcmc: inconsistent grid shape")

	// ErrPrecisionPolicyViolation means data was passed to the wind
	// rotation primitives that does not survive a round trip through
	// single precision. The primitives are only validated for single
	// precision input, so this fails loudly instead of degrading silently.
	ErrPrecisionPolicyViolation = errors.New("domcmc: precision policy violation")

	// ErrInterpolationToolFailed means the external pressure interpolation
	// tool exited with a non-zero status.
	ErrInterpolationToolFailed = errors.New("domcmc: interpolation tool failed")

	// ErrInterpolationTimeout means the external pressure interpolation
	// tool was killed because it exceeded the configured timeout.
	ErrInterpolationTimeout = errors.New("domcmc: interpolation timed out")

	// ErrWorkspaceIO means a temporary workspace could not be created or
	// written to.
	ErrWorkspaceIO = errors.New("domcmc: workspace i/o error")
)

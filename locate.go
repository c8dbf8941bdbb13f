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
	"errors"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/sirupsen/logrus"
)

// resolveVarNames expands a synthetic composite variable into its
// constituent variable names. Plain variables resolve to themselves.
func resolveVarNames(varName string) []string {
	if varName == WindVectors {
		return []string{uComponentVar, vComponentVar}
	}
	return []string{varName}
}

// locate finds the records in src satisfying the criteria, the
// requested validity time (NoStamp for "first found"), and the optional
// explicit level-code list.
//
// Validity times match within DatevTolerance; when several distinct
// validity times fall inside the window, the closest one wins, and an
// exact tie fails with ErrAmbiguousMatch rather than silently picking
// one. Without an explicit level list, the result is every record that
// shares all non-level discriminators with the first match.
func locate(src Source, crit Criteria, want Stamp, ip1s []int) ([]RecordMeta, error) {
	var cands []RecordMeta
	for _, m := range src.List() {
		if crit.Match(m) {
			cands = append(cands, m)
		}
	}
	if len(cands) == 0 {
		return nil, fmt.Errorf("%w: no record named %q", ErrNoMatchingRecord, crit.Nomvar)
	}

	chosen, err := chooseDatev(cands, want)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", crit.Nomvar, err)
	}
	n := 0
	for _, m := range cands {
		if m.Datev == chosen {
			cands[n] = m
			n++
		}
	}
	cands = cands[:n]

	// Pin the remaining discriminators to the first match so the group
	// differs only in level code.
	ref := cands[0]
	var group []RecordMeta
	for _, m := range cands {
		if m.sameGroup(ref) {
			group = append(group, m)
		}
	}

	if len(ip1s) == 0 {
		return group, nil
	}
	out := make([]RecordMeta, 0, len(ip1s))
	for _, ip1 := range ip1s {
		found := false
		for _, m := range group {
			if m.IP1 == ip1 {
				out = append(out, m)
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: %s has no record with level code %d", ErrNoMatchingRecord, crit.Nomvar, ip1)
		}
	}
	return out, nil
}

// chooseDatev picks the validity time to use from the candidate
// records. With a requested time, candidates must fall strictly inside
// the tolerance window and the closest distinct time wins; without one,
// the first candidate's time is adopted.
func chooseDatev(cands []RecordMeta, want Stamp) (Stamp, error) {
	if want < 0 {
		return cands[0].Datev, nil
	}
	best := Stamp(-1)
	bestDist := DatevTolerance
	ambiguous := false
	for _, m := range cands {
		if !m.Datev.within(want, DatevTolerance) {
			continue
		}
		d := m.Datev.distance(want)
		switch {
		case best < 0 || d < bestDist:
			best, bestDist, ambiguous = m.Datev, d, false
		case d == bestDist && m.Datev != best:
			ambiguous = true
		}
	}
	if best < 0 {
		return 0, fmt.Errorf("%w: no record within %v of %v", ErrNoMatchingRecord, DatevTolerance, want.Time())
	}
	if ambiguous {
		return 0, fmt.Errorf("%w: two validity times equally close to %v", ErrAmbiguousMatch, want.Time())
	}
	return best, nil
}

// locateInDir enumerates candidate files in a directory whose names
// match the optional prefix and suffix, skips files the format does not
// recognize, and returns the first file in which the probe finds a
// satisfying match set. Different files are assumed not to need merging,
// so scanning stops at the first hit.
//
// The probe should return ErrNoMatchingRecord (possibly wrapped) to move
// on to the next file; any other error aborts the scan.
func locateInDir(f Format, dir, prefix, suffix string, log logrus.FieldLogger, probe func(Source) error) (Source, string, error) {
	pattern := filepath.Join(dir, prefix+"*"+suffix)
	files, err := filepath.Glob(pattern)
	if err != nil {
		return nil, "", fmt.Errorf("domcmc: bad file pattern %q: %w", pattern, err)
	}
	if len(files) == 0 {
		return nil, "", fmt.Errorf("%w: no files match %q", ErrNoMatchingRecord, pattern)
	}
	sort.Strings(files)
	for _, path := range files {
		if !f.Sniff(path) {
			log.Debugf("skipping %s: not a recognized record collection", path)
			continue
		}
		src, err := f.Open(path)
		if err != nil {
			log.Warnf("skipping %s: %v", path, err)
			continue
		}
		err = probe(src)
		if err == nil {
			return src, path, nil
		}
		src.Close()
		if !errors.Is(err, ErrNoMatchingRecord) {
			return nil, "", err
		}
		log.Debugf("no match in %s", path)
	}
	return nil, "", fmt.Errorf("%w: searched %d files matching %q", ErrNoMatchingRecord, len(files), pattern)
}

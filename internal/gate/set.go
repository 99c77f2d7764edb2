// Package gate tracks which NCBI identifiers have already been ingested.
package gate

import (
	"bufio"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
)

// Set is a set of NCBI UIDs.
type Set map[int64]struct{}

// NewSet returns a set holding ids.
func NewSet(ids ...int64) Set {
	s := make(Set, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}

	return s
}

// Has reports whether id is in the set.
func (s Set) Has(id int64) bool {
	_, ok := s[id]

	return ok
}

// Add inserts id.
func (s Set) Add(id int64) {
	s[id] = struct{}{}
}

// Sorted returns the members in ascending order.
func (s Set) Sorted() []int64 {
	out := make([]int64, 0, len(s))
	for id := range s {
		out = append(out, id)
	}

	slices.Sort(out)

	return out
}

// Clone returns an independent copy.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for id := range s {
		out[id] = struct{}{}
	}

	return out
}

// ReadList parses a plain identifier list: one id per line, blank lines and
// lines starting with '#' are ignored.
func ReadList(r io.Reader) (Set, error) {
	set := NewSet()
	sc := bufio.NewScanner(r)

	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		id, err := strconv.ParseInt(line, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid identifier %q", n, line)
		}

		set.Add(id)
	}

	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read identifier list: %w", err)
	}

	return set, nil
}

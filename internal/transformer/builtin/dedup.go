// Package builtin contains the reusable record steps the warehouse builders
// chain together: strict type coercion, key de-duplication and a
// required-field filter.
//
// DeDup collapses records sharing a business key and picks a winner by
// policy:
//
//   - "keep-first"   : keep the earliest occurrence (default)
//   - "keep-last"    : keep the latest occurrence
//   - "most-complete": keep the record with the most non-empty fields;
//     ties break towards the later record
//
// Run DeDup after Coerce so "7" and "07" collapse to the same integer key.
package builtin

import (
	"fmt"
	"sort"
	"strings"

	"github.com/znumunz/pram2/internal/table"
)

// Dedup policies.
const (
	KeepFirst    = "keep-first"
	KeepLast     = "keep-last"
	MostComplete = "most-complete"
)

// ValidPolicy reports whether p names a known policy. Empty is accepted and
// means KeepFirst.
func ValidPolicy(p string) bool {
	switch strings.ToLower(strings.TrimSpace(p)) {
	case "", KeepFirst, KeepLast, MostComplete:
		return true
	}
	return false
}

// DeDup implements the in-memory de-duplication policy.
type DeDup struct {
	// Keys are the fields forming the business key, e.g. ["product_key"].
	Keys []string

	// Policy selects the winner among duplicates.
	Policy string
}

// Apply returns a new slice holding one winner per key, ordered by the
// winner's input position. Records lacking a key field are appended after the
// winners in input order.
func (d DeDup) Apply(in []table.Record) []table.Record {
	if len(in) == 0 || len(d.Keys) == 0 {
		return in
	}

	policy := strings.ToLower(strings.TrimSpace(d.Policy))
	if policy == "" {
		policy = KeepFirst
	}

	type slot struct {
		index int
		score int
	}
	winners := make(map[string]slot, len(in))

	keyOf := func(r table.Record) (string, bool) {
		var b strings.Builder
		for i, k := range d.Keys {
			v, ok := r[k]
			if !ok {
				return "", false
			}
			if i > 0 {
				b.WriteByte('\x1f')
			}
			switch t := v.(type) {
			case nil:
				b.WriteByte('\x00')
			case string:
				b.WriteString(t)
			default:
				b.WriteString(fmt.Sprint(t))
			}
		}
		return b.String(), true
	}

	var passthrough []int
	for i, r := range in {
		key, ok := keyOf(r)
		if !ok {
			passthrough = append(passthrough, i)
			continue
		}
		prev, exists := winners[key]
		switch policy {
		case KeepLast:
			winners[key] = slot{index: i}
		case MostComplete:
			s := slot{index: i, score: completeness(r)}
			if !exists || s.score >= prev.score {
				winners[key] = s
			}
		default:
			if !exists {
				winners[key] = slot{index: i}
			}
		}
	}

	indexes := make([]int, 0, len(winners))
	for _, s := range winners {
		indexes = append(indexes, s.index)
	}
	sort.Ints(indexes)

	out := make([]table.Record, 0, len(indexes)+len(passthrough))
	for _, i := range indexes {
		out = append(out, in[i])
	}
	for _, i := range passthrough {
		out = append(out, in[i])
	}
	return out
}

func completeness(r table.Record) int {
	n := 0
	for _, v := range r {
		switch t := v.(type) {
		case nil:
			continue
		case string:
			if t == "" {
				continue
			}
		}
		n++
	}
	return n
}

package builtin

import "github.com/znumunz/pram2/internal/table"

// Require removes any record missing a value for one of Fields.
type Require struct {
	Fields []string
}

// Apply returns a new slice with only the records whose required fields are
// present, non-nil and not the empty string, plus the number dropped.
func (r Require) Apply(in []table.Record) ([]table.Record, int) {
	out := make([]table.Record, 0, len(in))
	for _, rec := range in {
		ok := true
		for _, f := range r.Fields {
			v, exists := rec[f]
			if !exists || v == nil || v == "" {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, rec)
		}
	}
	return out, len(in) - len(out)
}

package builtin

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/znumunz/pram2/internal/table"
)

// Target kinds understood by Coerce.
const (
	KindInt      = "int"
	KindDecimal  = "decimal"
	KindString   = "string"
	KindDatetime = "datetime"
	KindBool     = "bool"
)

// Coerce converts fields in place to typed Go values:
//
//	int      -> int64
//	decimal  -> decimal.Decimal
//	string   -> string
//	datetime -> time.Time (UTC, parsed with Layout)
//	bool     -> bool
//
// Nulls stay nil. Empty or blank strings become nil for every kind except
// string. Unlike a lenient cast, a value that does not convert fails the
// whole call with a *table.ParseError naming the row and column.
type Coerce struct {
	Table  string
	Types  map[string]string
	Layout string
}

// Apply coerces every record. Records are modified in place and returned.
func (c Coerce) Apply(in []table.Record) ([]table.Record, error) {
	if len(c.Types) == 0 {
		return in, nil
	}
	fields := make([]string, 0, len(c.Types))
	for f := range c.Types {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	for i, r := range in {
		for _, field := range fields {
			kind := c.Types[field]
			v, ok := r[field]
			if !ok || v == nil {
				continue
			}
			out, err := Convert(v, kind, c.Layout)
			if err != nil {
				return nil, &table.ParseError{Table: c.Table, Column: field, Row: i, Value: v, Err: err}
			}
			r[field] = out
		}
	}
	return in, nil
}

var errUnsupported = errors.New("unsupported value type")

// Convert converts a single cell to kind. It is exported for callers that
// coerce outside of a record chain.
func Convert(v any, kind, layout string) (any, error) {
	if v == nil {
		return nil, nil
	}
	if s, ok := v.(string); ok && kind != KindString {
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, nil
		}
		v = s
	}

	switch kind {
	case KindInt:
		return toInt(v)
	case KindDecimal:
		return toDecimal(v)
	case KindString:
		if s, ok := v.(string); ok {
			return s, nil
		}
		return fmt.Sprint(v), nil
	case KindDatetime:
		return toTime(v, layout)
	case KindBool:
		return toBool(v)
	default:
		return nil, fmt.Errorf("unknown kind %q", kind)
	}
}

func toInt(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("%v is not integral", n)
		}
		if n < math.MinInt64 || n >= math.MaxInt64 {
			return 0, fmt.Errorf("%v is out of int64 range", n)
		}
		return int64(n), nil
	case decimal.Decimal:
		return decimalToInt(n)
	case string:
		if i, err := strconv.ParseInt(n, 10, 64); err == nil {
			return i, nil
		}
		// Spreadsheet exports write integers as "12.0".
		d, err := decimal.NewFromString(n)
		if err != nil {
			return 0, fmt.Errorf("not an integer")
		}
		return decimalToInt(d)
	}
	return 0, errUnsupported
}

func decimalToInt(d decimal.Decimal) (int64, error) {
	if !d.IsInteger() {
		return 0, fmt.Errorf("%s is not integral", d)
	}
	if !d.BigInt().IsInt64() {
		return 0, fmt.Errorf("%s is out of int64 range", d)
	}
	return d.IntPart(), nil
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch n := v.(type) {
	case decimal.Decimal:
		return n, nil
	case int64:
		return decimal.NewFromInt(n), nil
	case int:
		return decimal.NewFromInt(int64(n)), nil
	case float64:
		return decimal.NewFromFloat(n), nil
	case string:
		return decimal.NewFromString(n)
	}
	return decimal.Zero, errUnsupported
}

func toTime(v any, layout string) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), nil
	case string:
		if layout == "" {
			layout = time.RFC3339
		}
		return time.ParseInLocation(layout, t, time.UTC)
	}
	return time.Time{}, errUnsupported
}

func toBool(v any) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		return strconv.ParseBool(b)
	case int64:
		return b != 0, nil
	}
	return false, errUnsupported
}

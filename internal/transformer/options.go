package transformer

import (
	"fmt"
	"time"

	"github.com/znumunz/pram2/internal/transformer/builtin"
)

// DiscountUnit tells the fact builder how to read order line discounts.
type DiscountUnit string

const (
	// DiscountPercent reads 10 as ten percent.
	DiscountPercent DiscountUnit = "percent"
	// DiscountFraction reads 0.1 as ten percent.
	DiscountFraction DiscountUnit = "fraction"
)

// DefaultDatetimeLayout matches order timestamps like "01/15/2024 10:30:00".
const DefaultDatetimeLayout = "01/02/2006 15:04:05"

// Inputs names the raw tables each builder reads.
type Inputs struct {
	Customers    string
	Employees    string
	Products     string
	Suppliers    string
	Orders       string
	OrderDetails string
}

// Options is the immutable configuration of a Transformer.
type Options struct {
	Inputs Inputs

	// DateStart and DateEnd bound dim_date, both inclusive.
	DateStart time.Time
	DateEnd   time.Time

	// FiscalYearStartMonth is the calendar month (1-12) that opens fiscal Q1.
	FiscalYearStartMonth int

	DiscountUnit      DiscountUnit
	DatetimeLayout    string
	DiscontinuedToken string

	// DedupPolicy is one of the builtin policies; empty means keep-first.
	DedupPolicy string

	// Workers bounds the number of builders running at once; <= 0 means no limit.
	Workers int
}

// DefaultOptions returns the stock configuration.
func DefaultOptions() Options {
	return Options{
		Inputs: Inputs{
			Customers:    "customers",
			Employees:    "employees",
			Products:     "products",
			Suppliers:    "suppliers",
			Orders:       "orders",
			OrderDetails: "order_details",
		},
		DateStart:            time.Date(1999, time.January, 1, 0, 0, 0, 0, time.UTC),
		DateEnd:              time.Date(2025, time.December, 31, 0, 0, 0, 0, time.UTC),
		FiscalYearStartMonth: 10,
		DiscountUnit:         DiscountPercent,
		DatetimeLayout:       DefaultDatetimeLayout,
		DiscontinuedToken:    "Yes",
		DedupPolicy:          builtin.KeepFirst,
		Workers:              4,
	}
}

// Validate checks option values that would otherwise fail deep inside a
// builder.
func (o Options) Validate() error {
	if o.FiscalYearStartMonth < 1 || o.FiscalYearStartMonth > 12 {
		return fmt.Errorf("fiscal year start month %d out of range 1-12", o.FiscalYearStartMonth)
	}
	if o.DateEnd.Before(o.DateStart) {
		return fmt.Errorf("date range end %s before start %s",
			o.DateEnd.Format(time.DateOnly), o.DateStart.Format(time.DateOnly))
	}
	switch o.DiscountUnit {
	case DiscountPercent, DiscountFraction:
	default:
		return fmt.Errorf("unknown discount unit %q", o.DiscountUnit)
	}
	if !builtin.ValidPolicy(o.DedupPolicy) {
		return fmt.Errorf("unknown dedup policy %q", o.DedupPolicy)
	}
	return nil
}

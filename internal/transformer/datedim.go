package transformer

import (
	"fmt"
	"slices"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// FiscalQuarter returns the fiscal quarter (1-4) of calendar month m when the
// fiscal year opens in startMonth. With startMonth 10, October through
// December is Q1 and July through September is Q4.
func FiscalQuarter(m, startMonth int) int {
	return ((m-startMonth+12)%12)/3 + 1
}

// ISOWeekday maps time.Weekday onto 1 (Monday) through 7 (Sunday).
func ISOWeekday(d time.Weekday) int {
	if d == time.Sunday {
		return 7
	}
	return int(d)
}

// GenerateDates returns one Date per calendar day from start to end, both
// inclusive. Only the calendar date of start and end is used. The result
// depends on nothing but its arguments.
func GenerateDates(start, end time.Time, fiscalStartMonth int) ([]Date, error) {
	if fiscalStartMonth < 1 || fiscalStartMonth > 12 {
		return nil, fmt.Errorf("fiscal start month %d out of range 1-12", fiscalStartMonth)
	}
	start = dateOnly(start)
	end = dateOnly(end)
	if end.Before(start) {
		return nil, fmt.Errorf("date range end %s before start %s",
			end.Format(time.DateOnly), start.Format(time.DateOnly))
	}

	days := int(end.Sub(start).Hours()/24) + 1
	out := make([]Date, 0, days)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		_, week := d.ISOWeek()
		dow := ISOWeekday(d.Weekday())
		m := int(d.Month())
		out = append(out, Date{
			DateKey:       d,
			Year:          d.Year(),
			Quarter:       (m-1)/3 + 1,
			Month:         m,
			MonthName:     d.Month().String(),
			Day:           d.Day(),
			DayOfWeek:     dow,
			DayName:       d.Weekday().String(),
			WeekOfYear:    week,
			IsWeekend:     dow >= 6,
			FiscalQuarter: FiscalQuarter(m, fiscalStartMonth),
		})
	}
	return out, nil
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type dateCacheKey struct {
	start, end  string
	fiscalStart int
}

// DateCache memoizes generated date dimensions by their parameters. It is
// safe for concurrent use.
type DateCache struct {
	c *lru.Cache[dateCacheKey, []Date]
}

// NewDateCache returns a cache holding up to size distinct ranges.
func NewDateCache(size int) *DateCache {
	if size <= 0 {
		size = 4
	}
	c, err := lru.New[dateCacheKey, []Date](size)
	if err != nil {
		// lru.New only fails on a non-positive size.
		panic(err)
	}
	return &DateCache{c: c}
}

// Dates returns the date rows for the range, generating them on a miss.
// The returned slice is the caller's to keep.
func (dc *DateCache) Dates(start, end time.Time, fiscalStartMonth int) ([]Date, error) {
	k := dateCacheKey{
		start:       dateOnly(start).Format(time.DateOnly),
		end:         dateOnly(end).Format(time.DateOnly),
		fiscalStart: fiscalStartMonth,
	}
	if rows, ok := dc.c.Get(k); ok {
		return slices.Clone(rows), nil
	}
	rows, err := GenerateDates(start, end, fiscalStartMonth)
	if err != nil {
		return nil, err
	}
	dc.c.Add(k, rows)
	return slices.Clone(rows), nil
}

// Len reports how many ranges are cached.
func (dc *DateCache) Len() int { return dc.c.Len() }

// BuildDateDimension builds dim_date for the configured range, going
// through cache when it is non-nil.
func BuildDateDimension(o Options, cache *DateCache) (*Table, BuildStats, error) {
	var (
		dates []Date
		err   error
	)
	if cache != nil {
		dates, err = cache.Dates(o.DateStart, o.DateEnd, o.FiscalYearStartMonth)
	} else {
		dates, err = GenerateDates(o.DateStart, o.DateEnd, o.FiscalYearStartMonth)
	}
	if err != nil {
		return nil, BuildStats{}, err
	}
	rows := make([]Row, len(dates))
	for i, d := range dates {
		rows[i] = d
	}
	return &Table{ID: DimDate, Rows: rows}, BuildStats{}, nil
}

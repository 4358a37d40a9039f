package transformer

import (
	"time"

	"github.com/shopspring/decimal"
)

// Row is one typed warehouse row. Values are returned in the column order of
// the owning table's Definition; nulls are nil.
type Row interface {
	Values() []any
}

// Customer is a dim_customers row.
type Customer struct {
	CustomerID    int64
	CompanyName   *string
	FirstName     *string
	LastName      *string
	EmailAddress  *string
	JobTitle      *string
	BusinessPhone *string
	Address       *string
	City          *string
	StateProvince *string
	CountryRegion *string
	PostalCode    *string
	FullName      *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (c Customer) Values() []any {
	return []any{
		c.CustomerID, ptr(c.CompanyName), ptr(c.FirstName), ptr(c.LastName),
		ptr(c.EmailAddress), ptr(c.JobTitle), ptr(c.BusinessPhone), ptr(c.Address),
		ptr(c.City), ptr(c.StateProvince), ptr(c.CountryRegion), ptr(c.PostalCode),
		ptr(c.FullName), c.CreatedAt, c.UpdatedAt,
	}
}

// Contact is a dim_employees or dim_suppliers row; both share one shape.
type Contact struct {
	Key           int64
	Company       *string
	FirstName     *string
	LastName      *string
	EmailAddress  *string
	JobTitle      *string
	BusinessPhone *string
	City          *string
	StateProvince *string
	CountryRegion *string
	FullName      *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (c Contact) Values() []any {
	return []any{
		c.Key, ptr(c.Company), ptr(c.FirstName), ptr(c.LastName), ptr(c.EmailAddress),
		ptr(c.JobTitle), ptr(c.BusinessPhone), ptr(c.City), ptr(c.StateProvince),
		ptr(c.CountryRegion), ptr(c.FullName), c.CreatedAt, c.UpdatedAt,
	}
}

// Product is a dim_products row.
type Product struct {
	ProductKey             int64
	ProductCode            *string
	ProductName            *string
	Description            *string
	Category               *string
	StandardCost           decimal.NullDecimal
	ListPrice              decimal.NullDecimal
	QuantityPerUnit        *string
	ReorderLevel           *int64
	TargetLevel            *int64
	MinimumReorderQuantity *int64
	IsDiscontinued         *bool
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

func (p Product) Values() []any {
	return []any{
		p.ProductKey, ptr(p.ProductCode), ptr(p.ProductName), ptr(p.Description),
		ptr(p.Category), nullDec(p.StandardCost), nullDec(p.ListPrice),
		ptr(p.QuantityPerUnit), ptr(p.ReorderLevel), ptr(p.TargetLevel),
		ptr(p.MinimumReorderQuantity), ptr(p.IsDiscontinued), p.CreatedAt, p.UpdatedAt,
	}
}

// Date is a dim_date row. DayOfWeek follows ISO 8601: 1 is Monday, 7 Sunday.
type Date struct {
	DateKey       time.Time
	Year          int
	Quarter       int
	Month         int
	MonthName     string
	Day           int
	DayOfWeek     int
	DayName       string
	WeekOfYear    int
	IsWeekend     bool
	FiscalQuarter int
}

func (d Date) Values() []any {
	return []any{
		d.DateKey, d.DateKey, d.Year, d.Quarter, d.Month, d.MonthName, d.Day,
		d.DayOfWeek, d.DayName, d.WeekOfYear, d.IsWeekend, d.FiscalQuarter,
	}
}

// Sale is a fact_sales row: one joined order line item.
type Sale struct {
	SaleID         int64
	OrderID        int64
	LineItemID     *int64
	CustomerKey    *int64
	EmployeeKey    *int64
	ProductKey     *int64
	OrderDateKey   *time.Time
	ShippedDateKey *time.Time
	Quantity       decimal.NullDecimal
	UnitPrice      decimal.NullDecimal
	Discount       decimal.NullDecimal
	GrossAmount    decimal.NullDecimal
	NetAmount      decimal.NullDecimal
	ShippingFee    decimal.NullDecimal
	Taxes          decimal.NullDecimal
	OrderStatusID  *int64
	CreatedAt      time.Time
}

func (s Sale) Values() []any {
	return []any{
		s.SaleID, s.OrderID, ptr(s.LineItemID), ptr(s.CustomerKey), ptr(s.EmployeeKey),
		ptr(s.ProductKey), ptr(s.OrderDateKey), ptr(s.ShippedDateKey),
		nullDec(s.Quantity), nullDec(s.UnitPrice), nullDec(s.Discount),
		nullDec(s.GrossAmount), nullDec(s.NetAmount), nullDec(s.ShippingFee),
		nullDec(s.Taxes), ptr(s.OrderStatusID), s.CreatedAt,
	}
}

func ptr[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullDec(d decimal.NullDecimal) any {
	if !d.Valid {
		return nil
	}
	return d.Decimal
}

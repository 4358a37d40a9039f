package transformer

import (
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/znumunz/pram2/internal/table"
	"github.com/znumunz/pram2/internal/transformer/builtin"
)

// BuildStats carries the row accounting of one builder run.
type BuildStats struct {
	InputRows  int
	Duplicates int
	NullKeys   int
	Join       *JoinStats
}

// dimensionSpec describes one dimension: which normalized columns it reads,
// how they are typed and how a finished record becomes a Row.
type dimensionSpec struct {
	id     TableID
	key    string
	fields []table.Field
	types  map[string]string
	derive func(rec table.Record, o Options)
	row    func(rec table.Record, stamp time.Time) Row
}

var contactFields = []table.Field{
	table.Keep("company"),
	table.Keep("first_name"),
	table.Keep("last_name"),
	table.Keep("email_address"),
	table.Keep("job_title"),
	table.Keep("business_phone"),
	table.Keep("city"),
	table.Keep("state_province"),
	table.Keep("country_region"),
}

var customerSpec = dimensionSpec{
	id:  DimCustomers,
	key: "customer_id",
	fields: []table.Field{
		table.Rename("id", "customer_id"),
		table.Rename("company", "company_name"),
		table.Keep("first_name"),
		table.Keep("last_name"),
		table.Keep("email_address"),
		table.Keep("job_title"),
		table.Keep("business_phone"),
		table.Keep("address"),
		table.Keep("city"),
		table.Keep("state_province"),
		table.Keep("country_region"),
		table.Rename("zip_postal_code", "postal_code"),
	},
	types:  map[string]string{"customer_id": builtin.KindInt},
	derive: deriveFullName,
	row: func(r table.Record, stamp time.Time) Row {
		return Customer{
			CustomerID:    *intField(r, "customer_id"),
			CompanyName:   textField(r, "company_name"),
			FirstName:     textField(r, "first_name"),
			LastName:      textField(r, "last_name"),
			EmailAddress:  textField(r, "email_address"),
			JobTitle:      textField(r, "job_title"),
			BusinessPhone: textField(r, "business_phone"),
			Address:       textField(r, "address"),
			City:          textField(r, "city"),
			StateProvince: textField(r, "state_province"),
			CountryRegion: textField(r, "country_region"),
			PostalCode:    textField(r, "postal_code"),
			FullName:      textField(r, "full_name"),
			CreatedAt:     stamp,
			UpdatedAt:     stamp,
		}
	},
}

func contactSpec(id TableID, keyName string) dimensionSpec {
	fields := append([]table.Field{table.Rename("id", keyName)}, contactFields...)
	return dimensionSpec{
		id:     id,
		key:    keyName,
		fields: fields,
		types:  map[string]string{keyName: builtin.KindInt},
		derive: deriveFullName,
		row: func(r table.Record, stamp time.Time) Row {
			return Contact{
				Key:           *intField(r, keyName),
				Company:       textField(r, "company"),
				FirstName:     textField(r, "first_name"),
				LastName:      textField(r, "last_name"),
				EmailAddress:  textField(r, "email_address"),
				JobTitle:      textField(r, "job_title"),
				BusinessPhone: textField(r, "business_phone"),
				City:          textField(r, "city"),
				StateProvince: textField(r, "state_province"),
				CountryRegion: textField(r, "country_region"),
				FullName:      textField(r, "full_name"),
				CreatedAt:     stamp,
				UpdatedAt:     stamp,
			}
		},
	}
}

var (
	employeeSpec = contactSpec(DimEmployees, "employee_key")
	supplierSpec = contactSpec(DimSuppliers, "supplier_key")
)

var productSpec = dimensionSpec{
	id:  DimProducts,
	key: "product_key",
	fields: []table.Field{
		table.Rename("id", "product_key"),
		table.Keep("product_code"),
		table.Keep("product_name"),
		table.Keep("description"),
		table.Keep("category"),
		table.Keep("standard_cost"),
		table.Keep("list_price"),
		table.Keep("quantity_per_unit"),
		table.Keep("reorder_level"),
		table.Keep("target_level"),
		table.Keep("minimum_reorder_quantity"),
		table.Keep("discontinued"),
	},
	types: map[string]string{
		"product_key":              builtin.KindInt,
		"standard_cost":            builtin.KindDecimal,
		"list_price":               builtin.KindDecimal,
		"reorder_level":            builtin.KindInt,
		"target_level":             builtin.KindInt,
		"minimum_reorder_quantity": builtin.KindInt,
	},
	derive: func(r table.Record, o Options) {
		v := r["discontinued"]
		if v == nil {
			r["is_discontinued"] = nil
			return
		}
		r["is_discontinued"] = fmt.Sprint(v) == o.DiscontinuedToken
	},
	row: func(r table.Record, stamp time.Time) Row {
		return Product{
			ProductKey:             *intField(r, "product_key"),
			ProductCode:            textField(r, "product_code"),
			ProductName:            textField(r, "product_name"),
			Description:            textField(r, "description"),
			Category:               textField(r, "category"),
			StandardCost:           decField(r, "standard_cost"),
			ListPrice:              decField(r, "list_price"),
			QuantityPerUnit:        textField(r, "quantity_per_unit"),
			ReorderLevel:           intField(r, "reorder_level"),
			TargetLevel:            intField(r, "target_level"),
			MinimumReorderQuantity: intField(r, "minimum_reorder_quantity"),
			IsDiscontinued:         boolField(r, "is_discontinued"),
			CreatedAt:              stamp,
			UpdatedAt:              stamp,
		}
	},
}

// buildDimension runs the shared dimension contract over raw:
// normalize, select, derive, coerce, drop null keys, dedup by key, sort.
func buildDimension(spec dimensionSpec, raw *table.Table, o Options, stamp time.Time) (*Table, BuildStats, error) {
	stats := BuildStats{InputRows: raw.Len()}

	t := NormalizeColumns(raw)
	recs, err := t.Select(spec.fields...)
	if err != nil {
		return nil, stats, err
	}

	if spec.derive != nil {
		for _, r := range recs {
			spec.derive(r, o)
		}
	}

	recs, err = builtin.Coerce{Table: raw.Name, Types: spec.types}.Apply(recs)
	if err != nil {
		return nil, stats, err
	}

	recs, stats.NullKeys = builtin.Require{Fields: []string{spec.key}}.Apply(recs)

	before := len(recs)
	recs = builtin.DeDup{Keys: []string{spec.key}, Policy: o.DedupPolicy}.Apply(recs)
	stats.Duplicates = before - len(recs)

	slices.SortStableFunc(recs, func(a, b table.Record) int {
		ka, kb := a[spec.key].(int64), b[spec.key].(int64)
		switch {
		case ka < kb:
			return -1
		case ka > kb:
			return 1
		}
		return 0
	})

	rows := make([]Row, len(recs))
	for i, r := range recs {
		rows[i] = spec.row(r, stamp)
	}
	return &Table{ID: spec.id, Rows: rows}, stats, nil
}

// BuildCustomers builds dim_customers from a raw customers table.
func BuildCustomers(raw *table.Table, o Options, stamp time.Time) (*Table, BuildStats, error) {
	return buildDimension(customerSpec, raw, o, stamp)
}

// BuildEmployees builds dim_employees from a raw employees table.
func BuildEmployees(raw *table.Table, o Options, stamp time.Time) (*Table, BuildStats, error) {
	return buildDimension(employeeSpec, raw, o, stamp)
}

// BuildProducts builds dim_products from a raw products table.
func BuildProducts(raw *table.Table, o Options, stamp time.Time) (*Table, BuildStats, error) {
	return buildDimension(productSpec, raw, o, stamp)
}

// BuildSuppliers builds dim_suppliers from a raw suppliers table.
func BuildSuppliers(raw *table.Table, o Options, stamp time.Time) (*Table, BuildStats, error) {
	return buildDimension(supplierSpec, raw, o, stamp)
}

// deriveFullName joins first and last name with a single space. Either part
// missing makes the full name null.
func deriveFullName(r table.Record, _ Options) {
	first, okF := r["first_name"].(string)
	last, okL := r["last_name"].(string)
	if !okF || !okL {
		r["full_name"] = nil
		return
	}
	r["full_name"] = first + " " + last
}

func textField(r table.Record, k string) *string {
	switch v := r[k].(type) {
	case nil:
		return nil
	case string:
		return &v
	default:
		s := fmt.Sprint(v)
		return &s
	}
}

func intField(r table.Record, k string) *int64 {
	if v, ok := r[k].(int64); ok {
		return &v
	}
	return nil
}

func decField(r table.Record, k string) decimal.NullDecimal {
	if v, ok := r[k].(decimal.Decimal); ok {
		return decimal.NewNullDecimal(v)
	}
	return decimal.NullDecimal{}
}

func boolField(r table.Record, k string) *bool {
	if v, ok := r[k].(bool); ok {
		return &v
	}
	return nil
}

func timeField(r table.Record, k string) *time.Time {
	if v, ok := r[k].(time.Time); ok {
		return &v
	}
	return nil
}

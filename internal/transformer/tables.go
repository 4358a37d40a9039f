package transformer

import "github.com/znumunz/pram2/internal/ddl"

// Kind tells dimension tables from fact tables. Loaders write every
// dimension before any fact.
type Kind int

const (
	KindDimension Kind = iota
	KindFact
)

func (k Kind) String() string {
	if k == KindFact {
		return "fact"
	}
	return "dimension"
}

// TableID enumerates the warehouse tables this package can produce.
type TableID int

const (
	DimCustomers TableID = iota + 1
	DimEmployees
	DimProducts
	DimSuppliers
	DimDate
	FactSales
)

type tableSpec struct {
	name    string
	kind    Kind
	columns []ddl.ColumnDef
}

func key(name string) ddl.ColumnDef {
	return ddl.ColumnDef{Name: name, Type: ddl.TypeInteger, PrimaryKey: true}
}

func col(name string, typ ddl.ColumnType) ddl.ColumnDef {
	return ddl.ColumnDef{Name: name, Type: typ, Nullable: true}
}

func notNull(name string, typ ddl.ColumnType) ddl.ColumnDef {
	return ddl.ColumnDef{Name: name, Type: typ}
}

func textCols(names ...string) []ddl.ColumnDef {
	out := make([]ddl.ColumnDef, len(names))
	for i, n := range names {
		out[i] = col(n, ddl.TypeText)
	}
	return out
}

func withAudit(cols ...[]ddl.ColumnDef) []ddl.ColumnDef {
	var out []ddl.ColumnDef
	for _, c := range cols {
		out = append(out, c...)
	}
	return append(out,
		notNull("created_at", ddl.TypeTimestamp),
		notNull("updated_at", ddl.TypeTimestamp),
	)
}

var contactColumns = textCols(
	"company", "first_name", "last_name", "email_address", "job_title",
	"business_phone", "city", "state_province", "country_region", "full_name",
)

var tableSpecs = map[TableID]tableSpec{
	DimCustomers: {
		name: "dim_customers",
		kind: KindDimension,
		columns: withAudit(
			[]ddl.ColumnDef{key("customer_id")},
			textCols("company_name", "first_name", "last_name", "email_address", "job_title",
				"business_phone", "address", "city", "state_province", "country_region",
				"postal_code", "full_name"),
		),
	},
	DimEmployees: {
		name:    "dim_employees",
		kind:    KindDimension,
		columns: withAudit([]ddl.ColumnDef{key("employee_key")}, contactColumns),
	},
	DimProducts: {
		name: "dim_products",
		kind: KindDimension,
		columns: withAudit(
			[]ddl.ColumnDef{key("product_key")},
			textCols("product_code", "product_name", "description", "category"),
			[]ddl.ColumnDef{
				col("standard_cost", ddl.TypeDecimal),
				col("list_price", ddl.TypeDecimal),
				col("quantity_per_unit", ddl.TypeText),
				col("reorder_level", ddl.TypeInteger),
				col("target_level", ddl.TypeInteger),
				col("minimum_reorder_quantity", ddl.TypeInteger),
				col("is_discontinued", ddl.TypeBool),
			},
		),
	},
	DimSuppliers: {
		name:    "dim_suppliers",
		kind:    KindDimension,
		columns: withAudit([]ddl.ColumnDef{key("supplier_key")}, contactColumns),
	},
	DimDate: {
		name: "dim_date",
		kind: KindDimension,
		columns: []ddl.ColumnDef{
			{Name: "date_key", Type: ddl.TypeDate, PrimaryKey: true},
			notNull("date", ddl.TypeDate),
			notNull("year", ddl.TypeInteger),
			notNull("quarter", ddl.TypeInteger),
			notNull("month", ddl.TypeInteger),
			notNull("month_name", ddl.TypeText),
			notNull("day", ddl.TypeInteger),
			notNull("day_of_week", ddl.TypeInteger),
			notNull("day_name", ddl.TypeText),
			notNull("week_of_year", ddl.TypeInteger),
			notNull("is_weekend", ddl.TypeBool),
			notNull("fiscal_quarter", ddl.TypeInteger),
		},
	},
	FactSales: {
		name: "fact_sales",
		kind: KindFact,
		columns: []ddl.ColumnDef{
			key("sale_id"),
			notNull("order_id", ddl.TypeInteger),
			col("line_item_id", ddl.TypeInteger),
			col("customer_key", ddl.TypeInteger),
			col("employee_key", ddl.TypeInteger),
			col("product_key", ddl.TypeInteger),
			col("order_date_key", ddl.TypeTimestamp),
			col("shipped_date_key", ddl.TypeTimestamp),
			col("quantity", ddl.TypeDecimal),
			col("unit_price", ddl.TypeDecimal),
			col("discount", ddl.TypeDecimal),
			col("gross_amount", ddl.TypeDecimal),
			col("net_amount", ddl.TypeDecimal),
			col("shipping_fee", ddl.TypeDecimal),
			col("taxes", ddl.TypeDecimal),
			col("order_status_id", ddl.TypeInteger),
			notNull("created_at", ddl.TypeTimestamp),
		},
	},
}

// AllTables lists every table in load order: dimensions first, then facts.
func AllTables() []TableID {
	return []TableID{DimCustomers, DimEmployees, DimProducts, DimSuppliers, DimDate, FactSales}
}

// ParseTableID looks a table up by its warehouse name.
func ParseTableID(name string) (TableID, bool) {
	for id, s := range tableSpecs {
		if s.name == name {
			return id, true
		}
	}
	return 0, false
}

// Name returns the warehouse table name, e.g. "dim_products".
func (id TableID) Name() string {
	if s, ok := tableSpecs[id]; ok {
		return s.name
	}
	return "unknown"
}

func (id TableID) String() string { return id.Name() }

// Kind reports whether id is a dimension or a fact table.
func (id TableID) Kind() Kind { return tableSpecs[id].kind }

// Definition returns the typed schema of id. The returned value is a copy.
func (id TableID) Definition() ddl.TableDef {
	s := tableSpecs[id]
	cols := make([]ddl.ColumnDef, len(s.columns))
	copy(cols, s.columns)
	return ddl.TableDef{FQN: s.name, Columns: cols}
}

// Columns returns the ordered column names of id.
func (id TableID) Columns() []string {
	return id.Definition().ColumnNames()
}

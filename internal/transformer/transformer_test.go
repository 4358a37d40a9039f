package transformer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/znumunz/pram2/internal/ddl"
	"github.com/znumunz/pram2/internal/logger"
	"github.com/znumunz/pram2/internal/table"
)

func smallOptions() Options {
	o := DefaultOptions()
	o.DateStart, o.DateEnd = day(2024, 1, 1), day(2024, 1, 31)
	return o
}

func newTestTransformer(o Options) *Transformer {
	return New(o, logger.Discard(), WithClock(func() time.Time { return fixedStamp }))
}

func productsTable(rows ...[]any) *table.Table {
	return table.New("products", []string{
		"id", "product_code", "product_name", "description", "category", "standard_cost",
		"list_price", "quantity_per_unit", "reorder_level", "target_level",
		"minimum_reorder_quantity", "discontinued",
	}, rows)
}

func fullInput() map[string]*table.Table {
	return map[string]*table.Table{
		"customers": customersTable(customerRow("5", "Lee", "Ann")),
		"employees": table.New("employees", contactHeader[:11], [][]any{
			{"2", "NW", "Fuller", "Andrew", "a@nw", "VP", "555", "x", "Tacoma", "WA", "USA"},
		}),
		"suppliers": table.New("suppliers", contactHeader[:11], [][]any{
			{"1", "Exotic", "Cooper", "Liquid", "s@x", "Mgr", "555", "x", "London", "", "UK"},
		}),
		"products": productsTable([]any{"9", "NWTB-1", "Chai", nil, "Bev", "13.5", "18", "10 boxes", "10", "40", "10", "No"}),
		"orders":   ordersTable([]any{"1", "2", "5", "01/15/2024 10:30:00", "", "0", "0", "3"}),
		"order_details": detailsTable(
			[]any{"1", "1", "9", "3", "10.0", "10"},
		),
	}
}

func TestTransformAllTables(t *testing.T) {
	t.Parallel()

	ds, rep := newTestTransformer(smallOptions()).Transform(context.Background(), fullInput())
	require.NoError(t, rep.Err())

	assert.Equal(t,
		[]string{"dim_customers", "dim_employees", "dim_products", "dim_suppliers", "dim_date", "fact_sales"},
		ds.Names())
	assert.ElementsMatch(t, AllTables(), rep.Succeeded())
	assert.Empty(t, rep.Skipped())
	assert.Empty(t, rep.Failed())

	dates, ok := ds.Get(DimDate)
	require.True(t, ok)
	assert.Equal(t, 31, dates.Len())

	fact, ok := ds.Lookup("fact_sales")
	require.True(t, ok)
	s := fact.Rows[0].(Sale)
	assert.True(t, s.GrossAmount.Decimal.Equal(dec("30")))
	assert.True(t, s.NetAmount.Decimal.Equal(dec("27")))
}

func TestTransformMissingProducts(t *testing.T) {
	t.Parallel()

	raw := fullInput()
	delete(raw, "products")

	ds, rep := newTestTransformer(smallOptions()).Transform(context.Background(), raw)
	require.NoError(t, rep.Err())

	_, ok := ds.Get(DimProducts)
	assert.False(t, ok)
	_, ok = ds.Get(DimDate)
	assert.True(t, ok)
	_, ok = ds.Get(FactSales)
	assert.True(t, ok)

	o, ok := rep.Outcome(DimProducts)
	require.True(t, ok)
	assert.Equal(t, StatusSkipped, o.Status)
	assert.ErrorIs(t, o.Err, table.ErrMissingInput)
}

func TestTransformFactNeedsBothInputs(t *testing.T) {
	t.Parallel()

	raw := fullInput()
	delete(raw, "order_details")

	ds, rep := newTestTransformer(smallOptions()).Transform(context.Background(), raw)
	_, ok := ds.Get(FactSales)
	assert.False(t, ok)
	assert.Equal(t, []TableID{FactSales}, rep.Skipped())

	var mi *table.MissingInputError
	o, _ := rep.Outcome(FactSales)
	require.True(t, errors.As(o.Err, &mi))
	assert.Equal(t, []string{"order_details"}, mi.Inputs)
}

func TestTransformEmptyInput(t *testing.T) {
	t.Parallel()

	ds, rep := newTestTransformer(smallOptions()).Transform(context.Background(), nil)
	require.NoError(t, rep.Err())
	assert.Equal(t, []string{"dim_date"}, ds.Names())
	assert.Len(t, rep.Skipped(), 5)
}

func TestTransformFailureIsIsolated(t *testing.T) {
	t.Parallel()

	raw := fullInput()
	raw["customers"] = table.New("customers", []string{"id"}, [][]any{{"1"}})

	ds, rep := newTestTransformer(smallOptions()).Transform(context.Background(), raw)
	assert.Equal(t, []TableID{DimCustomers}, rep.Failed())
	require.Error(t, rep.Err())
	assert.Contains(t, rep.Err().Error(), "dim_customers")

	var mc *table.MissingColumnError
	assert.True(t, errors.As(rep.Err(), &mc))

	assert.Equal(t, 5, ds.Len())
}

func TestTransformNullCustomerKeyExcluded(t *testing.T) {
	t.Parallel()

	raw := map[string]*table.Table{
		"customers": customersTable(
			customerRow(nil, "Ghost", "G"),
			customerRow("1", "Lee", "Ann"),
		),
	}
	ds, _ := newTestTransformer(smallOptions()).Transform(context.Background(), raw)
	tbl, ok := ds.Get(DimCustomers)
	require.True(t, ok)
	require.Equal(t, 1, tbl.Len())
	assert.EqualValues(t, 1, tbl.Rows[0].(Customer).CustomerID)
}

func TestTransformIsIdempotent(t *testing.T) {
	t.Parallel()

	o := smallOptions()
	first, _ := New(o, nil, WithClock(func() time.Time { return fixedStamp })).Transform(context.Background(), fullInput())
	second, _ := New(o, nil, WithClock(func() time.Time { return fixedStamp.Add(time.Hour) })).Transform(context.Background(), fullInput())

	for _, a := range first.Tables() {
		b, ok := second.Get(a.ID)
		require.True(t, ok)
		assert.Equal(t, a.Checksum(), b.Checksum(), a.Name())
	}
}

func TestTransformCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ds, rep := newTestTransformer(smallOptions()).Transform(ctx, fullInput())
	assert.Zero(t, ds.Len())
	assert.ErrorIs(t, rep.Err(), context.Canceled)
}

func TestTableIDs(t *testing.T) {
	t.Parallel()

	for _, id := range AllTables() {
		def := id.Definition()
		assert.Equal(t, id.Name(), def.FQN)
		got, ok := ParseTableID(id.Name())
		require.True(t, ok)
		assert.Equal(t, id, got)

		pks := 0
		for _, c := range def.Columns {
			if c.PrimaryKey {
				pks++
			}
			assert.NotEmpty(t, c.Type, "%s.%s", id, c.Name)
		}
		assert.Equal(t, 1, pks, id.Name())
	}

	assert.Equal(t, KindFact, FactSales.Kind())
	assert.Equal(t, KindDimension, DimDate.Kind())
	assert.Equal(t, ddl.TypeDate, DimDate.Definition().Columns[0].Type)

	_, ok := ParseTableID("Airplanes")
	assert.False(t, ok)
}

func TestOptionsValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, DefaultOptions().Validate())

	bad := []func(*Options){
		func(o *Options) { o.FiscalYearStartMonth = 0 },
		func(o *Options) { o.DateEnd = o.DateStart.AddDate(0, 0, -1) },
		func(o *Options) { o.DiscountUnit = "basis-points" },
		func(o *Options) { o.DedupPolicy = "random" },
	}
	for i, mutate := range bad {
		o := DefaultOptions()
		mutate(&o)
		assert.Error(t, o.Validate(), "case %d", i)
	}
}

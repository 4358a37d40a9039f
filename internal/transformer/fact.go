package transformer

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/znumunz/pram2/internal/table"
	"github.com/znumunz/pram2/internal/transformer/builtin"
)

// JoinStats counts the rows an inner join between orders and line items
// left behind. They are reported, not treated as errors.
type JoinStats struct {
	// UnmatchedOrders are orders no line item refers to.
	UnmatchedOrders int
	// OrphanLineItems are line items whose order id is null or unknown.
	OrphanLineItems int
}

// Any reports whether the join dropped anything.
func (j JoinStats) Any() bool { return j.UnmatchedOrders > 0 || j.OrphanLineItems > 0 }

var hundred = decimal.NewFromInt(100)

// BuildSales builds fact_sales by inner-joining line items to orders on
// order_details.order_id = orders.id. Output rows are ordered by order id,
// then by line item input position, and numbered from 1 in that order.
func BuildSales(orders, details *table.Table, o Options, stamp time.Time) (*Table, BuildStats, error) {
	stats := BuildStats{InputRows: orders.Len() + details.Len()}

	layout := o.DatetimeLayout
	if layout == "" {
		layout = DefaultDatetimeLayout
	}

	ot := NormalizeColumns(orders)
	orderRecs, err := ot.Select(
		table.Rename("id", "order_id"),
		table.Keep("customer_id"),
		table.Keep("employee_id"),
		table.Keep("order_date"),
		table.Keep("shipped_date"),
		table.Keep("shipping_fee"),
		table.Keep("taxes"),
		table.Rename("status_id", "order_status_id"),
	)
	if err != nil {
		return nil, stats, err
	}
	orderRecs, err = builtin.Coerce{
		Table:  orders.Name,
		Layout: layout,
		Types: map[string]string{
			"order_id":        builtin.KindInt,
			"customer_id":     builtin.KindInt,
			"employee_id":     builtin.KindInt,
			"order_date":      builtin.KindDatetime,
			"shipped_date":    builtin.KindDatetime,
			"shipping_fee":    builtin.KindDecimal,
			"taxes":           builtin.KindDecimal,
			"order_status_id": builtin.KindInt,
		},
	}.Apply(orderRecs)
	if err != nil {
		return nil, stats, err
	}

	dt := NormalizeColumns(details)
	fields := []table.Field{
		table.Keep("order_id"),
		table.Keep("product_id"),
		table.Keep("quantity"),
		table.Keep("unit_price"),
		table.Keep("discount"),
	}
	if dt.Has("id") {
		fields = append(fields, table.Rename("id", "line_item_id"))
	}
	itemRecs, err := dt.Select(fields...)
	if err != nil {
		return nil, stats, err
	}
	itemRecs, err = builtin.Coerce{
		Table: details.Name,
		Types: map[string]string{
			"order_id":     builtin.KindInt,
			"product_id":   builtin.KindInt,
			"quantity":     builtin.KindDecimal,
			"unit_price":   builtin.KindDecimal,
			"discount":     builtin.KindDecimal,
			"line_item_id": builtin.KindInt,
		},
	}.Apply(itemRecs)
	if err != nil {
		return nil, stats, err
	}

	byID := make(map[int64][]int, len(orderRecs))
	for i, r := range orderRecs {
		if id, ok := r["order_id"].(int64); ok {
			byID[id] = append(byID[id], i)
		}
	}

	type pair struct {
		order, item int
		orderID     int64
	}
	matched := make(map[int]bool, len(orderRecs))
	var pairs []pair
	var join JoinStats
	for j, it := range itemRecs {
		id, ok := it["order_id"].(int64)
		if !ok || len(byID[id]) == 0 {
			join.OrphanLineItems++
			continue
		}
		for _, i := range byID[id] {
			matched[i] = true
			pairs = append(pairs, pair{order: i, item: j, orderID: id})
		}
	}
	join.UnmatchedOrders = len(orderRecs) - len(matched)
	stats.Join = &join

	slices.SortStableFunc(pairs, func(a, b pair) int {
		switch {
		case a.orderID < b.orderID:
			return -1
		case a.orderID > b.orderID:
			return 1
		}
		return 0
	})

	rows := make([]Row, len(pairs))
	for n, p := range pairs {
		ord, it := orderRecs[p.order], itemRecs[p.item]
		qty := decField(it, "quantity")
		price := decField(it, "unit_price")
		disc := decField(it, "discount")
		gross := mulNull(qty, price)

		rows[n] = Sale{
			SaleID:         int64(n + 1),
			OrderID:        p.orderID,
			LineItemID:     intField(it, "line_item_id"),
			CustomerKey:    intField(ord, "customer_id"),
			EmployeeKey:    intField(ord, "employee_id"),
			ProductKey:     intField(it, "product_id"),
			OrderDateKey:   timeField(ord, "order_date"),
			ShippedDateKey: timeField(ord, "shipped_date"),
			Quantity:       qty,
			UnitPrice:      price,
			Discount:       disc,
			GrossAmount:    gross,
			NetAmount:      netAmount(gross, disc, o.DiscountUnit),
			ShippingFee:    decField(ord, "shipping_fee"),
			Taxes:          decField(ord, "taxes"),
			OrderStatusID:  intField(ord, "order_status_id"),
			CreatedAt:      stamp,
		}
	}
	return &Table{ID: FactSales, Rows: rows}, stats, nil
}

func mulNull(a, b decimal.NullDecimal) decimal.NullDecimal {
	if !a.Valid || !b.Valid {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(a.Decimal.Mul(b.Decimal))
}

// netAmount applies the discount to gross. A null on either side yields null.
func netAmount(gross, discount decimal.NullDecimal, unit DiscountUnit) decimal.NullDecimal {
	if !gross.Valid || !discount.Valid {
		return decimal.NullDecimal{}
	}
	rate := discount.Decimal
	if unit != DiscountFraction {
		rate = rate.Div(hundred)
	}
	return decimal.NewNullDecimal(gross.Decimal.Mul(decimal.NewFromInt(1).Sub(rate)))
}

package transformer

import (
	"strings"

	"github.com/znumunz/pram2/internal/table"
)

var columnReplacer = strings.NewReplacer(" ", "_", "-", "_")

// NormalizeColumnName lowercases s and turns spaces and hyphens into
// underscores. Nothing else is touched, so "Zip/Postal Code" becomes
// "zip/postal_code".
func NormalizeColumnName(s string) string {
	return columnReplacer.Replace(strings.ToLower(s))
}

// NormalizeColumns returns t with every column name normalized. The input
// table is not modified; row storage is shared.
func NormalizeColumns(t *table.Table) *table.Table {
	return t.RenameColumns(NormalizeColumnName)
}

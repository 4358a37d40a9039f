package xlsx

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/znumunz/pram2/internal/parser"
)

func workbook(t *testing.T, sheets map[string][][]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for name, rows := range sheets {
		if name != "Sheet1" {
			_, err := f.NewSheet(name)
			require.NoError(t, err)
		}
		for i, r := range rows {
			cell, err := excelize.CoordinatesToCellName(1, i+1)
			require.NoError(t, err)
			row := r
			require.NoError(t, f.SetSheetRow(name, cell, &row))
		}
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func TestParseFirstSheet(t *testing.T) {
	t.Parallel()

	buf := workbook(t, map[string][][]any{
		"Sheet1": {
			{"ID", "Product Name", "Discontinued"},
			{1, " Chai ", "No"},
			{2, "Chang"},
			{},
			{3, "NULL", "Yes"},
		},
	})

	got, skipped, err := NewParser(Options{TrimSpace: true, NullValues: []string{"NULL"}}).Parse(buf)
	require.NoError(t, err)
	assert.Equal(t, 0, skipped)
	assert.Equal(t, []string{"ID", "Product Name", "Discontinued"}, got.Columns)
	assert.Equal(t, [][]any{
		{"1", "Chai", "No"},
		{"2", "Chang", nil},
		{"3", nil, "Yes"},
	}, got.Rows)
}

func TestParseNamedSheet(t *testing.T) {
	t.Parallel()

	buf := workbook(t, map[string][][]any{
		"Sheet1":   {{"ignored"}},
		"Products": {{"ID"}, {7}, {8, "overflow"}},
	})

	got, skipped, err := NewParser(Options{Sheet: "Products"}).Parse(buf)
	require.NoError(t, err)
	assert.Equal(t, 1, skipped)
	assert.Equal(t, [][]any{{"7"}}, got.Rows)
}

func TestParseErrors(t *testing.T) {
	t.Parallel()

	_, _, err := NewParser(Options{}).Parse(strings.NewReader("not a zip"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, parser.ErrEmpty)

	buf := workbook(t, map[string][][]any{"Sheet1": nil})
	_, _, err = NewParser(Options{}).Parse(buf)
	assert.ErrorIs(t, err, parser.ErrEmpty)

	buf = workbook(t, map[string][][]any{"Sheet1": {{"a"}}})
	_, _, err = NewParser(Options{Sheet: "Missing"}).Parse(buf)
	assert.Error(t, err)
}

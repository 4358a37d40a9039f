// Package xlsx reads one worksheet of an Excel workbook as a table. The first
// row is the header.
package xlsx

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/znumunz/pram2/internal/parser"
	"github.com/znumunz/pram2/internal/table"
)

// Options configures the workbook parser.
type Options struct {
	// Sheet names the worksheet. Empty selects the first sheet.
	Sheet string

	TrimSpace  bool
	NullValues []string
}

// Parser reads workbooks according to Options.
type Parser struct {
	opt   Options
	nulls parser.Nulls
}

var _ parser.Parser = (*Parser)(nil)

// NewParser constructs a Parser with the provided Options.
func NewParser(opt Options) *Parser {
	return &Parser{opt: opt, nulls: parser.NewNulls(opt.NullValues)}
}

// Parse reads the configured sheet. Excel drops trailing empty cells, so short
// rows are padded with nulls; rows wider than the header are skipped. Fully
// blank rows are ignored.
func (p *Parser) Parse(r io.Reader) (*table.Table, int, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, 0, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheet := p.opt.Sheet
	if sheet == "" {
		list := f.GetSheetList()
		if len(list) == 0 {
			return nil, 0, parser.ErrEmpty
		}
		sheet = list[0]
	}

	rows, err := f.Rows(sheet)
	if err != nil {
		return nil, 0, fmt.Errorf("open sheet %q: %w", sheet, err)
	}
	defer rows.Close()

	var t *table.Table
	skipped := 0
	for rows.Next() {
		cells, err := rows.Columns()
		if err != nil {
			return nil, skipped, fmt.Errorf("read sheet %q: %w", sheet, err)
		}
		if p.opt.TrimSpace {
			for i := range cells {
				cells[i] = strings.TrimSpace(cells[i])
			}
		}
		if t == nil {
			if len(cells) == 0 {
				continue
			}
			t = table.New("", cells, nil)
			continue
		}
		if blank(cells) {
			continue
		}
		if len(cells) > len(t.Columns) {
			skipped++
			continue
		}
		row := make([]any, len(t.Columns))
		for i := range row {
			if i < len(cells) {
				row[i] = p.nulls.Value(cells[i])
			}
		}
		t.Rows = append(t.Rows, row)
	}
	if err := rows.Error(); err != nil {
		return nil, skipped, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if t == nil {
		return nil, 0, parser.ErrEmpty
	}
	return t, skipped, nil
}

func blank(cells []string) bool {
	for _, c := range cells {
		if c != "" {
			return false
		}
	}
	return true
}

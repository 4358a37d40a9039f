// Package csv implements a streaming CSV parser. Input is transcoded to UTF-8
// on the fly, a byte order mark is dropped, and optional scrub rules rewrite
// known bad byte sequences before they reach encoding/csv.
package csv

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/znumunz/pram2/internal/parser"
	"github.com/znumunz/pram2/internal/table"
)

// Options configures the CSV parser. All fields are optional.
type Options struct {
	// Comma is the field delimiter. When zero, ',' is used.
	Comma rune

	// TrimSpace trims leading/trailing spaces from headers and values.
	TrimSpace bool

	// LazyQuotes relaxes quote handling in encoding/csv.
	LazyQuotes bool

	// NullValues are read as null in addition to the empty string.
	NullValues []string

	// Encoding is a WHATWG encoding label ("utf-8", "windows-1252", ...).
	// Empty means UTF-8.
	Encoding string

	// Scrub lists byte sequences rewritten before parsing.
	Scrub []Replacement

	// OnSkip, when set, is called for every skipped row with its 1-based
	// data line number.
	OnSkip func(line int, err error)
}

// Replacement rewrites Old to New in the raw byte stream.
type Replacement struct {
	Old, New string
}

// Parser parses CSV input according to Options. It is safe to reuse across
// inputs but not for concurrent use.
type Parser struct {
	opt   Options
	nulls parser.Nulls
}

var _ parser.Parser = (*Parser)(nil)

// NewParser constructs a Parser with the provided Options.
func NewParser(opt Options) *Parser {
	return &Parser{opt: opt, nulls: parser.NewNulls(opt.NullValues)}
}

// ErrRaggedRow marks a data row whose width differs from the header.
var ErrRaggedRow = errors.New("csv: row width differs from header")

// Parse reads a header row and all data rows from r. Rows that fail to parse
// or whose width differs from the header are skipped and counted.
func (p *Parser) Parse(r io.Reader) (*table.Table, int, error) {
	dec, err := decoder(p.opt.Encoding)
	if err != nil {
		return nil, 0, err
	}
	r = transform.NewReader(r, dec)
	for _, s := range p.opt.Scrub {
		if s.Old != "" {
			r = newStreamingRewriter(r, []byte(s.Old), []byte(s.New))
		}
	}

	cr := csv.NewReader(r)
	if p.opt.Comma != 0 {
		cr.Comma = p.opt.Comma
	}
	cr.LazyQuotes = p.opt.LazyQuotes
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = false

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, 0, parser.ErrEmpty
	}
	if err != nil {
		return nil, 0, fmt.Errorf("read csv header: %w", err)
	}
	for i := range header {
		if p.opt.TrimSpace {
			header[i] = strings.TrimSpace(header[i])
		}
	}

	t := table.New("", header, nil)
	skipped := 0
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if !errors.As(err, &perr) {
				return nil, skipped, fmt.Errorf("read csv: %w", err)
			}
			skipped++
			p.skip(line, err)
			continue
		}
		if len(rec) != len(header) {
			skipped++
			p.skip(line, fmt.Errorf("%w: expected %d fields, got %d", ErrRaggedRow, len(header), len(rec)))
			continue
		}
		row := make([]any, len(rec))
		for i, v := range rec {
			if p.opt.TrimSpace {
				v = strings.TrimSpace(v)
			}
			row[i] = p.nulls.Value(v)
		}
		t.Rows = append(t.Rows, row)
	}
	return t, skipped, nil
}

func (p *Parser) skip(line int, err error) {
	if p.opt.OnSkip != nil {
		p.opt.OnSkip(line, err)
	}
}

// decoder returns a transformer that drops any byte order mark and decodes
// the named encoding to UTF-8. A UTF-16 BOM wins over the label.
func decoder(label string) (transform.Transformer, error) {
	if label == "" {
		label = "utf-8"
	}
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("csv: unknown encoding %q: %w", label, err)
	}
	return unicode.BOMOverride(enc.NewDecoder()), nil
}

// streamingRewriter is an io.Reader that replaces all occurrences of pat with
// repl without buffering the whole stream. The last len(pat)-1 bytes of each
// block are carried into the next one so matches spanning reads are found.
type streamingRewriter struct {
	br    *bufio.Reader
	pat   []byte
	repl  []byte
	carry []byte
	buf   bytes.Buffer
	eof   bool
}

func newStreamingRewriter(r io.Reader, pat, repl []byte) *streamingRewriter {
	return &streamingRewriter{
		br:    bufio.NewReaderSize(r, 64*1024),
		pat:   pat,
		repl:  repl,
		carry: make([]byte, 0, max(len(pat)-1, 0)),
	}
}

func (sr *streamingRewriter) Read(p []byte) (int, error) {
	for {
		if sr.buf.Len() > 0 {
			return sr.buf.Read(p)
		}
		if sr.eof {
			return 0, io.EOF
		}

		tmp := make([]byte, 64*1024)
		n, rerr := sr.br.Read(tmp)
		if n > 0 {
			block := append(sr.carry[:len(sr.carry):len(sr.carry)], tmp[:n]...)
			block = bytes.ReplaceAll(block, sr.pat, sr.repl)

			k := max(len(sr.pat)-1, 0)
			if len(block) > k {
				sr.buf.Write(block[:len(block)-k])
				sr.carry = append(sr.carry[:0], block[len(block)-k:]...)
			} else {
				sr.carry = append(sr.carry[:0], block...)
			}
		}

		switch {
		case errors.Is(rerr, io.EOF):
			sr.buf.Write(sr.carry)
			sr.carry = sr.carry[:0]
			sr.eof = true
		case rerr != nil:
			return 0, rerr
		}
	}
}

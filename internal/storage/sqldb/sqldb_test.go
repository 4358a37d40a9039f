package sqldb

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/znumunz/pram2/internal/ddl"
)

func TestInsertSQL(t *testing.T) {
	t.Parallel()

	quoted := ddl.Dialect{QuoteOpen: "`", QuoteClose: "`"}
	tests := []struct {
		name string
		opt  Options
		n    int
		want string
	}{
		{
			name: "question marks",
			opt:  Options{Dialect: quoted},
			n:    2,
			want: "INSERT INTO `dw`.`t` (`a`, `b`) VALUES (?, ?), (?, ?)",
		},
		{
			name: "numbered",
			opt: Options{
				Dialect:     ddl.Dialect{QuoteOpen: `"`, QuoteClose: `"`},
				Placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
			},
			n:    2,
			want: `INSERT INTO "dw"."t" ("a", "b") VALUES ($1, $2), ($3, $4)`,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := &Repository{opt: tt.opt}
			assert.Equal(t, tt.want, r.insertSQL("dw.t", []string{"a", "b"}, tt.n))
		})
	}
}

func TestPlainValue(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "12.5", PlainValue(decimal.RequireFromString("12.50")))
	assert.Equal(t, int64(3), PlainValue(3))
	assert.Nil(t, PlainValue(nil))
	assert.Equal(t, true, PlainValue(true))
}

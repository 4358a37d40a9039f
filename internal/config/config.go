// Package config defines the configuration model of the sales warehouse
// pipeline, how it is loaded and how it is checked.
//
// A Pipeline is assembled once per process (defaults, then an optional
// YAML/JSON file, then the environment) and handed by value to every
// component. Nothing in this package keeps global state.
//
// Example (trimmed YAML):
//
//	job: northwind
//	extract:
//	  data_dir: data/raw
//	sources:
//	  orders: { kind: file, path: orders.csv, format: csv }
//	transform:
//	  discount_unit: percent
//	  date_dimension: { start: "2015-01-01", end: "2025-12-31" }
//	storage:
//	  kind: postgres
//	  db: { dsn: "postgresql://etl@localhost/dw", schema: public }
package config

import (
	"encoding/json"
	"path/filepath"
	"time"
)

// Pipeline is the top-level configuration object.
type Pipeline struct {
	// Job names the pipeline for logs and metrics.
	Job string `koanf:"job" json:"job" yaml:"job" validate:"required"`

	// Sources maps a source name (as referenced by transform.inputs) to where
	// and how it is read.
	Sources map[string]Source `koanf:"sources" json:"sources" yaml:"sources" validate:"required,min=1,dive"`

	Extract   Extract       `koanf:"extract" json:"extract" yaml:"extract"`
	Transform Transform     `koanf:"transform" json:"transform" yaml:"transform"`
	Storage   Storage       `koanf:"storage" json:"storage" yaml:"storage"`
	Runtime   RuntimeConfig `koanf:"runtime" json:"runtime" yaml:"runtime"`
	Log       Log           `koanf:"log" json:"log" yaml:"log"`
	Metrics   Metrics       `koanf:"metrics" json:"metrics" yaml:"metrics"`
}

// Source identifies one input table.
type Source struct {
	// Kind selects the datasource: "file" or "http".
	Kind string `koanf:"kind" json:"kind" yaml:"kind" validate:"oneof=file http"`

	// Path is the local file path; relative paths resolve against
	// extract.data_dir.
	Path string `koanf:"path" json:"path" yaml:"path"`

	// URL is fetched when Kind is "http".
	URL string `koanf:"url" json:"url" yaml:"url" validate:"omitempty,url"`

	// Format selects the parser: "csv" or "xlsx".
	Format string `koanf:"format" json:"format" yaml:"format" validate:"oneof=csv xlsx"`

	// Options is interpreted by the parser. CSV: comma, trim_space, encoding,
	// null_values. XLSX: sheet.
	Options Options `koanf:"options" json:"options" yaml:"options"`
}

// Extract holds settings shared by every source.
type Extract struct {
	DataDir string `koanf:"data_dir" json:"data_dir" yaml:"data_dir"`

	// Strict aborts the run when any source is missing or unreadable.
	// Otherwise such sources are logged and their outputs skipped.
	Strict bool `koanf:"strict" json:"strict" yaml:"strict"`

	// NullValues are the cell texts read as null.
	NullValues []string `koanf:"null_values" json:"null_values" yaml:"null_values"`

	// Encoding is the default text encoding of sources (WHATWG label).
	Encoding string `koanf:"encoding" json:"encoding" yaml:"encoding"`

	HTTPTimeout time.Duration `koanf:"http_timeout" json:"http_timeout" yaml:"http_timeout"`
}

// Transform configures the warehouse builders.
type Transform struct {
	Inputs        Inputs        `koanf:"inputs" json:"inputs" yaml:"inputs"`
	DateDimension DateDimension `koanf:"date_dimension" json:"date_dimension" yaml:"date_dimension"`

	DiscountUnit      string `koanf:"discount_unit" json:"discount_unit" yaml:"discount_unit" validate:"oneof=percent fraction"`
	DatetimeLayout    string `koanf:"datetime_layout" json:"datetime_layout" yaml:"datetime_layout" validate:"required"`
	DiscontinuedToken string `koanf:"discontinued_token" json:"discontinued_token" yaml:"discontinued_token" validate:"required"`
	DedupPolicy       string `koanf:"dedup_policy" json:"dedup_policy" yaml:"dedup_policy" validate:"oneof=keep-first keep-last most-complete"`
}

// Inputs names the source each builder reads.
type Inputs struct {
	Customers    string `koanf:"customers" json:"customers" yaml:"customers" validate:"required"`
	Employees    string `koanf:"employees" json:"employees" yaml:"employees" validate:"required"`
	Products     string `koanf:"products" json:"products" yaml:"products" validate:"required"`
	Suppliers    string `koanf:"suppliers" json:"suppliers" yaml:"suppliers" validate:"required"`
	Orders       string `koanf:"orders" json:"orders" yaml:"orders" validate:"required"`
	OrderDetails string `koanf:"order_details" json:"order_details" yaml:"order_details" validate:"required"`
}

// DateDimension bounds the generated calendar.
type DateDimension struct {
	Start                string `koanf:"start" json:"start" yaml:"start" validate:"required,datetime=2006-01-02"`
	End                  string `koanf:"end" json:"end" yaml:"end" validate:"required,datetime=2006-01-02"`
	FiscalYearStartMonth int    `koanf:"fiscal_year_start_month" json:"fiscal_year_start_month" yaml:"fiscal_year_start_month" validate:"min=1,max=12"`
}

// Range parses Start and End.
func (d DateDimension) Range() (start, end time.Time, err error) {
	if start, err = time.Parse(time.DateOnly, d.Start); err != nil {
		return
	}
	end, err = time.Parse(time.DateOnly, d.End)
	return
}

// Storage selects the warehouse backend.
type Storage struct {
	// Kind is one of sqlite, postgres, mssql, mysql, duckdb.
	Kind string   `koanf:"kind" json:"kind" yaml:"kind" validate:"oneof=sqlite postgres mssql mysql duckdb"`
	DB   DBConfig `koanf:"db" json:"db" yaml:"db"`
}

// DBConfig configures the database connection.
type DBConfig struct {
	// DSN is passed to the driver unchanged.
	DSN string `koanf:"dsn" json:"dsn" yaml:"dsn" validate:"required"`

	// Schema optionally qualifies every warehouse table ("dw.dim_date").
	Schema string `koanf:"schema" json:"schema" yaml:"schema"`
}

// RuntimeConfig controls concurrency and batching.
type RuntimeConfig struct {
	TransformWorkers int `koanf:"transform_workers" json:"transform_workers" yaml:"transform_workers" validate:"min=0"`
	BatchSize        int `koanf:"batch_size" json:"batch_size" yaml:"batch_size" validate:"min=1"`

	// AllowPartial loads the successfully built tables even when another
	// table failed to build.
	AllowPartial bool `koanf:"allow_partial" json:"allow_partial" yaml:"allow_partial"`
}

// Log configures the process logger.
type Log struct {
	Level string `koanf:"level" json:"level" yaml:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `koanf:"json" json:"json" yaml:"json"`
}

// Metrics selects where run metrics go.
type Metrics struct {
	Backend        string `koanf:"backend" json:"backend" yaml:"backend" validate:"oneof=none pushgateway datadog"`
	PushgatewayURL string `koanf:"pushgateway_url" json:"pushgateway_url" yaml:"pushgateway_url"`
	DatadogAddr    string `koanf:"datadog_addr" json:"datadog_addr" yaml:"datadog_addr"`
	Namespace      string `koanf:"namespace" json:"namespace" yaml:"namespace"`
}

// DefaultNullValues are the cell texts read as null when nothing else is
// configured.
var DefaultNullValues = []string{"", "NULL", "null", "N/A", "n/a", `\N`}

// SourceNames are the stock source names, one per raw table.
var SourceNames = []string{"customers", "employees", "products", "suppliers", "orders", "order_details"}

// Default returns the stock configuration: CSV files named after each source
// under data/raw, a local SQLite warehouse, no metrics.
func Default() Pipeline {
	p := defaults()
	p.fillSourceDefaults()
	return p
}

// defaults leaves source kind and format empty so that a file overriding
// only a path gets them guessed again.
func defaults() Pipeline {
	sources := make(map[string]Source, len(SourceNames))
	for _, n := range SourceNames {
		sources[n] = Source{Path: n + ".csv", Options: Options{}}
	}
	return Pipeline{
		Job:     "salesdw",
		Sources: sources,
		Extract: Extract{
			DataDir:     "data/raw",
			NullValues:  append([]string(nil), DefaultNullValues...),
			Encoding:    "utf-8",
			HTTPTimeout: 30 * time.Second,
		},
		Transform: Transform{
			Inputs: Inputs{
				Customers:    "customers",
				Employees:    "employees",
				Products:     "products",
				Suppliers:    "suppliers",
				Orders:       "orders",
				OrderDetails: "order_details",
			},
			DateDimension: DateDimension{
				Start:                "1999-01-01",
				End:                  "2025-12-31",
				FiscalYearStartMonth: 10,
			},
			DiscountUnit:      "percent",
			DatetimeLayout:    "01/02/2006 15:04:05",
			DiscontinuedToken: "Yes",
			DedupPolicy:       "keep-first",
		},
		Storage: Storage{
			Kind: "sqlite",
			DB:   DBConfig{DSN: "data/warehouse.db"},
		},
		Runtime: RuntimeConfig{
			TransformWorkers: 4,
			BatchSize:        1000,
			AllowPartial:     true,
		},
		Log:     Log{Level: "info"},
		Metrics: Metrics{Backend: "none"},
	}
}

// SourcePath resolves the local path of source s against extract.data_dir.
func (p Pipeline) SourcePath(s Source) string {
	if s.Path == "" || filepath.IsAbs(s.Path) || p.Extract.DataDir == "" {
		return s.Path
	}
	return filepath.Join(p.Extract.DataDir, s.Path)
}

// Options is a small helper to fetch typed values from free-form option maps.
// It performs minimal coercion and returns the provided default when a key is
// absent or of an unexpected type.
type Options map[string]any

// String returns the string value for key or def.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Bool returns the bool value for key or def. The strings "true" and "false"
// are accepted since environment overrides arrive as text.
func (o Options) Bool(key string, def bool) bool {
	switch v := o[key].(type) {
	case bool:
		return v
	case string:
		switch v {
		case "true":
			return true
		case "false":
			return false
		}
	}
	return def
}

// Int returns the int value for key or def. JSON numbers arrive as float64,
// YAML numbers as int.
func (o Options) Int(key string, def int) int {
	switch n := o[key].(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	}
	return def
}

// Rune returns the first rune of a string value for key, or def. Used for
// single-character parser settings such as a CSV delimiter.
func (o Options) Rune(key string, def rune) rune {
	if s, ok := o[key].(string); ok && len(s) > 0 {
		return []rune(s)[0]
	}
	return def
}

// StringSlice returns a []string for key when the value is an array of
// strings. Returns nil when the key is missing or not an array.
func (o Options) StringSlice(key string) []string {
	switch vv := o[key].(type) {
	case []any:
		out := make([]string, 0, len(vv))
		for _, x := range vv {
			if s, ok := x.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return vv
	}
	return nil
}

// UnmarshalJSON decodes a missing or null options object to an empty map.
func (o *Options) UnmarshalJSON(b []byte) error {
	if len(b) == 0 || string(b) == "null" {
		*o = Options{}
		return nil
	}
	var tmp map[string]any
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	*o = Options(tmp)
	return nil
}

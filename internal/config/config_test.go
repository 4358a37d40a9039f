package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestDefaultIsValid(t *testing.T) {
	t.Parallel()

	issues := ValidatePipeline(Default())
	assert.Empty(t, issues)
}

func TestLoadDefaultsOnly(t *testing.T) {
	t.Parallel()

	p, err := Load("", LoadOptions{SkipEnv: true})
	require.NoError(t, err)

	assert.Equal(t, "salesdw", p.Job)
	assert.Len(t, p.Sources, 6)
	assert.Equal(t, "order_details.csv", p.Sources["order_details"].Path)
	assert.Equal(t, 10, p.Transform.DateDimension.FiscalYearStartMonth)
	assert.Equal(t, "sqlite", p.Storage.Kind)
	assert.Equal(t, DefaultNullValues, p.Extract.NullValues)
	assert.Equal(t, 30*time.Second, p.Extract.HTTPTimeout)
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "pipeline.yaml", `
job: northwind
extract:
  data_dir: /srv/raw
sources:
  products:
    path: products.xlsx
    options:
      sheet: Products
  shippers:
    url: https://example.com/shippers.csv
    kind: http
transform:
  discount_unit: fraction
  date_dimension:
    start: "2015-01-01"
    end: "2015-12-31"
storage:
  kind: postgres
  db:
    dsn: postgresql://etl@localhost/dw
    schema: dw
runtime:
  batch_size: 250
`)

	p, err := Load(path, LoadOptions{SkipEnv: true})
	require.NoError(t, err)

	assert.Equal(t, "northwind", p.Job)
	assert.Equal(t, "fraction", p.Transform.DiscountUnit)
	assert.Equal(t, "keep-first", p.Transform.DedupPolicy, "untouched keys keep defaults")
	assert.Equal(t, "postgres", p.Storage.Kind)
	assert.Equal(t, "dw", p.Storage.DB.Schema)
	assert.Equal(t, 250, p.Runtime.BatchSize)

	prod := p.Sources["products"]
	assert.Equal(t, "xlsx", prod.Format)
	assert.Equal(t, "file", prod.Kind)
	assert.Equal(t, "Products", prod.Options.String("sheet", ""))
	assert.Equal(t, filepath.Join("/srv/raw", "products.xlsx"), p.SourcePath(prod))

	ship := p.Sources["shippers"]
	assert.Equal(t, "http", ship.Kind)
	assert.Equal(t, "csv", ship.Format)

	start, end, err := p.Transform.DateDimension.Range()
	require.NoError(t, err)
	assert.Equal(t, 364, int(end.Sub(start).Hours()/24))
}

func TestLoadJSON(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "pipeline.json", `{"job":"json-job","log":{"level":"debug","json":true}}`)
	p, err := Load(path, LoadOptions{SkipEnv: true})
	require.NoError(t, err)
	assert.Equal(t, "json-job", p.Job)
	assert.Equal(t, "debug", p.Log.Level)
	assert.True(t, p.Log.JSON)
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), LoadOptions{SkipEnv: true})
	require.Error(t, err)
}

// Environment tests mutate process state and cannot run in parallel.
func TestLoadEnvironmentOverrides(t *testing.T) {
	path := writeFile(t, "pipeline.yaml", "storage:\n  db:\n    dsn: from-file.db\nruntime:\n  batch_size: 10\n")

	t.Setenv("ETL_STORAGE__DB__DSN", "from-env.db")
	t.Setenv("ETL_TRANSFORM__DEDUP_POLICY", "keep-last")
	t.Setenv("ETL_EXTRACT__NULL_VALUES", "NA,-")
	t.Setenv("BATCH_SIZE", "77")
	t.Setenv("RAW_DATA_DIR", "/legacy/raw")

	p, err := Load(path, LoadOptions{EnvFile: filepath.Join(t.TempDir(), "absent.env")})
	require.NoError(t, err)

	assert.Equal(t, "from-env.db", p.Storage.DB.DSN)
	assert.Equal(t, "keep-last", p.Transform.DedupPolicy)
	assert.Equal(t, []string{"NA", "-"}, p.Extract.NullValues)
	assert.Equal(t, 77, p.Runtime.BatchSize)
	assert.Equal(t, "/legacy/raw", p.Extract.DataDir)
}

func TestLoadDotEnv(t *testing.T) {
	envFile := writeFile(t, "test.env", "ETL_JOB=from-dotenv\n")
	t.Setenv("ETL_JOB", "") // registers cleanup; godotenv keeps set values
	require.NoError(t, os.Unsetenv("ETL_JOB"))

	p, err := Load("", LoadOptions{EnvFile: envFile})
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", p.Job)
}

func TestTransformEnv(t *testing.T) {
	t.Parallel()

	k, v := transformEnv("ETL_RUNTIME__TRANSFORM_WORKERS", "8")
	assert.Equal(t, "runtime.transform_workers", k)
	assert.Equal(t, "8", v)

	k, _ = transformEnv("DATABASE_PATH", "x.db")
	assert.Equal(t, "storage.db.dsn", k)

	k, _ = transformEnv("HOME", "/root")
	assert.Empty(t, k)
}

func TestOptions(t *testing.T) {
	t.Parallel()

	var o Options
	require.NoError(t, json.Unmarshal([]byte(`{"comma":";","trim_space":true,"skip":2,"nulls":["-","NA"]}`), &o))

	assert.Equal(t, ';', o.Rune("comma", ','))
	assert.True(t, o.Bool("trim_space", false))
	assert.Equal(t, 2, o.Int("skip", 0))
	assert.Equal(t, []string{"-", "NA"}, o.StringSlice("nulls"))
	assert.Equal(t, "x", o.String("missing", "x"))
	assert.True(t, Options{"flag": "true"}.Bool("flag", false))

	var empty Options
	require.NoError(t, json.Unmarshal([]byte(`null`), &empty))
	assert.NotNil(t, empty)
}

func TestSampleConfigIsValid(t *testing.T) {
	t.Parallel()

	p, err := Load(filepath.Join("..", "..", "configs", "pipeline.sample.yaml"), LoadOptions{SkipEnv: true})
	require.NoError(t, err)
	assert.False(t, HasErrors(ValidatePipeline(p)), "%v", ValidatePipeline(p))
	assert.Equal(t, "xlsx", p.Sources["products"].Format)
	assert.Equal(t, ';', p.Sources["suppliers"].Options.Rune("comma", ','))
}

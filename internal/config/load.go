package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment overrides. Nesting uses a double
// underscore: ETL_STORAGE__DB__DSN sets storage.db.dsn.
const EnvPrefix = "ETL_"

// legacyEnv maps the unprefixed variable names older deployments use.
var legacyEnv = map[string]string{
	"RAW_DATA_DIR":    "extract.data_dir",
	"DATABASE_PATH":   "storage.db.dsn",
	"LOG_LEVEL":       "log.level",
	"BATCH_SIZE":      "runtime.batch_size",
	"METRICS_BACKEND": "metrics.backend",
	"PUSHGATEWAY_URL": "metrics.pushgateway_url",
}

// LoadOptions tunes Load.
type LoadOptions struct {
	// EnvFile is a dotenv file read before the environment is applied.
	// Missing files are ignored. Empty means ".env".
	EnvFile string

	// SkipEnv disables environment overrides entirely.
	SkipEnv bool
}

// Load builds a Pipeline from defaults, the optional config file at path
// (YAML, or JSON when the extension is .json) and the environment, in that
// order of precedence. It does not validate; see ValidatePipeline.
func Load(path string, opts LoadOptions) (Pipeline, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaults(), "koanf"), nil); err != nil {
		return Pipeline{}, fmt.Errorf("config: load defaults: %w", err)
	}

	if path != "" {
		data, err := readFile(path)
		if err != nil {
			return Pipeline{}, err
		}
		if err := k.Load(rawMap(data), nil); err != nil {
			return Pipeline{}, fmt.Errorf("config: merge %s: %w", path, err)
		}
	}

	if !opts.SkipEnv {
		envFile := opts.EnvFile
		if envFile == "" {
			envFile = ".env"
		}
		// godotenv never overrides variables that are already set.
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Pipeline{}, fmt.Errorf("config: read %s: %w", envFile, err)
		}
		if err := k.Load(env.Provider(".", env.Opt{
			Prefix:        "",
			TransformFunc: transformEnv,
		}), nil); err != nil {
			return Pipeline{}, fmt.Errorf("config: load environment: %w", err)
		}
	}

	var p Pipeline
	if err := k.UnmarshalWithConf("", &p, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &p,
			TagName:          "koanf",
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
		},
	}); err != nil {
		return Pipeline{}, fmt.Errorf("config: decode: %w", err)
	}

	p.fillSourceDefaults()
	return p, nil
}

// transformEnv maps an environment variable onto a koanf key. Returning an
// empty key makes the provider skip the variable.
func transformEnv(key, value string) (string, any) {
	if path, ok := legacyEnv[key]; ok {
		return path, value
	}
	if !strings.HasPrefix(key, EnvPrefix) {
		return "", nil
	}
	k := strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	return strings.ReplaceAll(k, "__", "."), value
}

func readFile(path string) (map[string]any, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	out := map[string]any{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(b, &out); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal(b, &out); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	return out, nil
}

// fillSourceDefaults gives sources declared without kind or format the
// file kind and a format guessed from the extension.
func (p *Pipeline) fillSourceDefaults() {
	for name, s := range p.Sources {
		if s.Kind == "" {
			s.Kind = "file"
		}
		if s.Format == "" {
			ref := s.Path
			if ref == "" {
				ref = s.URL
			}
			s.Format = "csv"
			if strings.EqualFold(filepath.Ext(ref), ".xlsx") {
				s.Format = "xlsx"
			}
		}
		if s.Options == nil {
			s.Options = Options{}
		}
		p.Sources[name] = s
	}
}

// rawMap adapts an already-parsed map to koanf.Provider.
type rawMap map[string]any

func (r rawMap) Read() (map[string]any, error) { return r, nil }

func (r rawMap) ReadBytes() ([]byte, error) {
	return nil, errors.New("rawMap: ReadBytes not supported")
}

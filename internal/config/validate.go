package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError blocks execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is surfaced but does not block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding.
//
// Path is a dotted path into the config (e.g. "storage.db.dsn",
// "sources[orders].format").
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("koanf"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidatePipeline checks p and returns every finding. It does not mutate p.
// Struct rules come from the validate tags; cross-field rules are checked
// here.
func ValidatePipeline(p Pipeline) []Issue {
	var issues []Issue

	if err := validate.Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				issues = append(issues, Issue{
					Severity: SeverityError,
					Path:     fieldPath(fe.Namespace()),
					Message:  ruleMessage(fe),
				})
			}
		} else {
			issues = append(issues, Issue{Severity: SeverityError, Path: "", Message: err.Error()})
		}
	}

	issues = append(issues, validateSources(p)...)
	issues = append(issues, validateInputs(p)...)
	issues = append(issues, validateDateDimension(p.Transform.DateDimension)...)
	issues = append(issues, validateMetrics(p.Metrics)...)
	issues = append(issues, validateStorage(p.Storage)...)

	return issues
}

// fieldPath strips the root type name: "Pipeline.storage.db.dsn" becomes
// "storage.db.dsn".
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func ruleMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return fmt.Sprintf("must be one of [%s], got %q", fe.Param(), fmt.Sprint(fe.Value()))
	case "min":
		return fmt.Sprintf("must be >= %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be <= %s", fe.Param())
	case "datetime":
		return fmt.Sprintf("must be a date in layout %s", fe.Param())
	case "url":
		return "must be a valid URL"
	default:
		return fmt.Sprintf("failed %q rule", fe.Tag())
	}
}

func validateSources(p Pipeline) []Issue {
	var issues []Issue
	names := make([]string, 0, len(p.Sources))
	for n := range p.Sources {
		names = append(names, n)
	}
	sort.Strings(names)

	for _, n := range names {
		s := p.Sources[n]
		path := fmt.Sprintf("sources[%s]", n)
		switch s.Kind {
		case "file":
			if strings.TrimSpace(s.Path) == "" {
				issues = append(issues, Issue{SeverityError, path + ".path", "file source requires a path"})
			}
		case "http":
			if strings.TrimSpace(s.URL) == "" {
				issues = append(issues, Issue{SeverityError, path + ".url", "http source requires a url"})
			}
		}
		if c := s.Options.String("comma", ","); len([]rune(c)) != 1 {
			issues = append(issues, Issue{SeverityError, path + ".options.comma", "delimiter must be a single character"})
		}
	}
	return issues
}

func validateInputs(p Pipeline) []Issue {
	in := p.Transform.Inputs
	refs := []struct{ field, name string }{
		{"customers", in.Customers},
		{"employees", in.Employees},
		{"products", in.Products},
		{"suppliers", in.Suppliers},
		{"orders", in.Orders},
		{"order_details", in.OrderDetails},
	}
	var issues []Issue
	for _, r := range refs {
		if r.name == "" {
			continue
		}
		if _, ok := p.Sources[r.name]; !ok {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     "transform.inputs." + r.field,
				Message:  fmt.Sprintf("source %q is not declared; its tables will be skipped", r.name),
			})
		}
	}
	return issues
}

func validateDateDimension(d DateDimension) []Issue {
	start, end, err := d.Range()
	if err != nil {
		// Already reported by the datetime rule.
		return nil
	}
	if end.Before(start) {
		return []Issue{{SeverityError, "transform.date_dimension.end", "end must not be before start"}}
	}
	if end.Sub(start) > 200*365*24*time.Hour {
		return []Issue{{SeverityWarning, "transform.date_dimension", "date range spans more than 200 years"}}
	}
	return nil
}

func validateMetrics(m Metrics) []Issue {
	switch m.Backend {
	case "pushgateway":
		if m.PushgatewayURL == "" {
			return []Issue{{SeverityError, "metrics.pushgateway_url", "pushgateway backend requires a URL"}}
		}
	case "datadog":
		if m.DatadogAddr == "" {
			return []Issue{{SeverityError, "metrics.datadog_addr", "datadog backend requires an address"}}
		}
	}
	return nil
}

func validateStorage(s Storage) []Issue {
	if s.Kind != "duckdb" || s.DB.Schema == "" {
		return nil
	}
	// DuckDB names the catalog after the database file, and a schema of the
	// same name makes "schema.table" ambiguous.
	path, _, _ := strings.Cut(s.DB.DSN, "?")
	catalog := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if path == "" || path == ":memory:" {
		catalog = "memory"
	}
	if strings.EqualFold(s.DB.Schema, catalog) {
		return []Issue{{SeverityError, "storage.db.schema",
			fmt.Sprintf("duckdb schema %q collides with the catalog named after %s; pick another schema", s.DB.Schema, s.DB.DSN)}}
	}
	return nil
}

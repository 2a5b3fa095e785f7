package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// LookupFunc reads an environment variable.
type LookupFunc func(key string) (string, bool)

// Load reads the configuration at path (optional) and the process
// environment.
func Load(path string) (*Config, error) {
	return LoadWithEnv(path, os.LookupEnv)
}

// LoadWithEnv is Load with an explicit environment.
func LoadWithEnv(path string, lookup LookupFunc) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}
	if lookup != nil {
		if err := applyEnv(cfg, lookup); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := decodeYAML(data, cfg); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	case ".json":
		if err := decodeJSON(data, cfg); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	case ".cue":
		if err := decodeCUE(path, data, cfg); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		return fmt.Errorf("unsupported config format %q (want .yaml, .yml, .json or .cue)", ext)
	}
	return nil
}

func decodeYAML(data []byte, cfg *Config) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec.Decode(cfg)
}

func decodeJSON(data []byte, cfg *Config) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(cfg)
}

// decodeCUE evaluates a CUE file and decodes its concrete value through
// JSON so the same field names and duration strings apply.
func decodeCUE(path string, data []byte, cfg *Config) error {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cuecontext.Filename(path))
	if err := v.Err(); err != nil {
		return err
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return err
	}
	js, err := v.MarshalJSON()
	if err != nil {
		return err
	}
	return decodeJSON(js, cfg)
}

func applyEnv(cfg *Config, lookup LookupFunc) error {
	if v, ok := lookup("SNC_DATABASE"); ok && v != "" {
		cfg.Database = v
	}
	if v, ok := lookup("SNC_WORKERS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SNC_WORKERS: %w", err)
		}
		cfg.Workers = n
	}
	if v, ok := lookup("SNC_PARALLEL"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("SNC_PARALLEL: %w", err)
		}
		cfg.Parallel = b
	}
	if v, ok := lookup("SNC_LOG_LEVEL"); ok && v != "" {
		cfg.Log.Level = strings.ToLower(v)
	}
	if v, ok := lookup("SNC_ENDPOINT"); ok && v != "" {
		cfg.Collaborator.Endpoint = v
		cfg.Collaborator.Mode = ModeHTTP
	}
	if v, ok := lookup("SNC_METRICS_FILE"); ok {
		cfg.MetricsFile = v
	}
	return nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their configuration key rather than the Go name.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// Validate checks the configuration's struct tags and cross-field rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return formatValidationError(err)
	}
	if ep := c.Collaborator.Endpoint; ep != "" {
		u, err := url.ParseRequestURI(ep)
		if err != nil || u.Host == "" {
			return fmt.Errorf("invalid config: collaborator.endpoint must be an absolute URL, got %q", ep)
		}
	}
	return nil
}

func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("invalid config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, formatFieldError(e))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

func formatFieldError(e validator.FieldError) string {
	// Namespace is "Config.collaborator.mode"; drop the root type.
	field := e.Namespace()
	if i := strings.IndexByte(field, '.'); i >= 0 {
		field = field[i+1:]
	}
	switch e.Tag() {
	case "required", "required_if":
		return fmt.Sprintf("%s is required", field)
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", field, e.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "gtefield":
		return fmt.Sprintf("%s must not be less than %s", field, e.Param())
	default:
		return fmt.Sprintf("%s is invalid (%s)", field, e.Tag())
	}
}

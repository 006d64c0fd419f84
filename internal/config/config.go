// Package config loads ffquery settings.
//
// Settings are described by an embedded CUE schema (schema.cue) carrying
// every constraint and default. A user file, in CUE, JSON or YAML, is
// unified with the schema, so an unknown key or an out-of-range value fails
// with the position of the offending line.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"cuelang.org/go/encoding/yaml"
)

//go:embed schema.cue
var schemaCUE []byte

// Config is the decoded configuration.
type Config struct {
	Database Database `json:"database"`
	Query    Query    `json:"query"`
	HTTP     HTTP     `json:"http"`
	Log      Log      `json:"log"`
}

// Database configures the SQLite store.
type Database struct {
	Path          string `json:"path"`
	MaxOpenConns  int    `json:"max_open_conns"`
	BusyTimeoutMS int    `json:"busy_timeout_ms"`
}

// BusyTimeout returns the busy timeout as a duration.
func (d Database) BusyTimeout() time.Duration {
	return time.Duration(d.BusyTimeoutMS) * time.Millisecond
}

// Query configures engine defaults.
type Query struct {
	MaxLimit           int    `json:"max_limit"`
	DefaultLimit       int    `json:"default_limit"`
	TextCombinator     string `json:"text_combinator"`
	DescriptorStrategy string `json:"descriptor_strategy"`
	IncludeDescendants bool   `json:"include_descendants"`
	StrictPlans        bool   `json:"strict_plans"`
}

// HTTP configures the serve command.
type HTTP struct {
	Addr                string `json:"addr"`
	ReadTimeoutSeconds  int    `json:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `json:"write_timeout_seconds"`
}

// ReadTimeout returns the read timeout as a duration.
func (h HTTP) ReadTimeout() time.Duration {
	return time.Duration(h.ReadTimeoutSeconds) * time.Second
}

// WriteTimeout returns the write timeout as a duration.
func (h HTTP) WriteTimeout() time.Duration {
	return time.Duration(h.WriteTimeoutSeconds) * time.Second
}

// Log configures the slog handler.
type Log struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// Error reports an invalid configuration.
type Error struct {
	Message string
	Pos     token.Pos
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Message)
	}
	return e.Message
}

// Default returns the schema defaults.
func Default() *Config {
	cfg, err := Parse("", nil)
	if err != nil {
		panic(fmt.Sprintf("config schema: %v", err))
	}
	return cfg
}

// Load reads and validates the file at path. An empty path yields the
// defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return Parse("", nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(path, data)
}

// Parse validates data against the schema and decodes the result. The
// format follows the extension of filename: .yaml and .yml are YAML,
// anything else is CUE (which includes JSON).
func Parse(filename string, data []byte) (*Config, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileBytes(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	v := schema.LookupPath(cue.ParsePath("#Config"))

	if len(data) > 0 {
		user, err := compileUser(ctx, filename, data)
		if err != nil {
			return nil, err
		}
		v = v.Unify(user)
	}

	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	var cfg Config
	if err := v.Decode(&cfg); err != nil {
		return nil, formatCUEError(err)
	}
	return &cfg, nil
}

func compileUser(ctx *cue.Context, filename string, data []byte) (cue.Value, error) {
	switch filepath.Ext(filename) {
	case ".yaml", ".yml":
		f, err := yaml.Extract(filename, data)
		if err != nil {
			return cue.Value{}, formatCUEError(err)
		}
		v := ctx.BuildFile(f)
		if err := v.Err(); err != nil {
			return cue.Value{}, formatCUEError(err)
		}
		return v, nil
	default:
		v := ctx.CompileBytes(data, cue.Filename(filename))
		if err := v.Err(); err != nil {
			return cue.Value{}, formatCUEError(err)
		}
		return v, nil
	}
}

// formatCUEError keeps the first CUE error with its position.
func formatCUEError(err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &Error{Message: err.Error()}
	}
	first := errs[0]
	out := &Error{Message: first.Error()}
	if positions := errors.Positions(first); len(positions) > 0 {
		out.Pos = positions[0]
	}
	return out
}

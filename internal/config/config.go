// Package config loads the optional CUE configuration for a batch run.
//
// Configuration is found through the CSVRUNNER_CONFIG environment variable,
// or as .csvrunner.cue next to the input table. Every field is optional;
// the embedded #Config definition supplies defaults and rejects unknown
// fields.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// EnvVar names the environment variable pointing at a configuration file.
const EnvVar = "CSVRUNNER_CONFIG"

// FileName is the configuration file looked up beside the input table.
const FileName = ".csvrunner.cue"

//go:embed schema.cue
var schemaSource string

// Config is the decoded configuration.
type Config struct {
	CommandColumn string   `json:"commandColumn"`
	TimeoutMs     int      `json:"timeoutMs"`
	Shell         string   `json:"shell"`
	ShellArgs     []string `json:"shellArgs"`
	Ledger        string   `json:"ledger"`
	Verbose       bool     `json:"verbose"`

	// Source is the file the configuration came from; empty for defaults.
	Source string `json:"-"`
}

// Error reports an unreadable or invalid configuration file.
type Error struct {
	Path    string
	Message string
	Pos     token.Pos
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Message)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// Timeout returns the per-command timeout.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// LedgerPath resolves the ledger path against dir.
// Returns "" when no ledger is configured.
func (c Config) LedgerPath(dir string) string {
	if c.Ledger == "" || filepath.IsAbs(c.Ledger) {
		return c.Ledger
	}
	return filepath.Join(dir, c.Ledger)
}

// Default returns the configuration used when no file is present.
func Default() Config {
	cfg, err := Parse("", nil)
	if err != nil {
		panic(fmt.Sprintf("config: embedded schema: %v", err))
	}
	return cfg
}

// Locate returns the configuration file for an input table.
// CSVRUNNER_CONFIG wins when set; otherwise .csvrunner.cue beside the input
// is used if it exists. found is false when there is no file to load.
func Locate(inputPath string) (path string, found bool) {
	if p := os.Getenv(EnvVar); p != "" {
		return p, true
	}
	p := filepath.Join(filepath.Dir(inputPath), FileName)
	if info, err := os.Stat(p); err == nil && !info.IsDir() {
		return p, true
	}
	return "", false
}

// ForInput locates and loads the configuration for an input table,
// falling back to defaults when there is no file.
func ForInput(inputPath string) (Config, error) {
	path, found := Locate(inputPath)
	if !found {
		return Default(), nil
	}
	return Load(path)
}

// Load reads and validates the configuration file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, &Error{Path: path, Message: fmt.Sprintf("read config: %v", err)}
	}
	return Parse(path, data)
}

// Parse validates src against the schema and decodes it.
// filename is only used in error positions.
func Parse(filename string, src []byte) (Config, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return Config{}, formatCUEError(filename, err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	user := ctx.CompileBytes(src, cue.Filename(filename))
	if err := user.Err(); err != nil {
		return Config{}, formatCUEError(filename, err)
	}

	v := def.Unify(user)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return Config{}, formatCUEError(filename, err)
	}

	var cfg Config
	if err := v.Decode(&cfg); err != nil {
		return Config{}, formatCUEError(filename, err)
	}
	cfg.Source = filename
	return cfg, nil
}

// formatCUEError keeps the first CUE error, positioned in the user's file
// when CUE reports a position there.
func formatCUEError(path string, err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &Error{Path: path, Message: err.Error()}
	}
	first := errs[0]
	e := &Error{Path: path, Message: first.Error()}
	for _, pos := range cueerrors.Positions(first) {
		if path != "" && pos.Filename() == path {
			e.Pos = pos
			break
		}
	}
	return e
}

// IsConfigError reports whether err came from loading configuration.
func IsConfigError(err error) bool {
	var ce *Error
	return errors.As(err, &ce)
}

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/roach88/tagtime/internal/engine"
	"github.com/roach88/tagtime/internal/route"
	"github.com/roach88/tagtime/internal/schedule"
	"github.com/roach88/tagtime/internal/submit"
)

// Defaults.
const (
	DefaultUser          = "default"
	DefaultDataDir       = "./data"
	DefaultAverageGap    = 45 * time.Minute
	DefaultTimeout       = 60 * time.Second
	DefaultLateThreshold = 60 * time.Second
	DefaultSubmitEvery   = 5 * time.Minute
	DefaultSubmissionURL = "https://www.beeminder.com"
)

// ErrUnsupportedFormat is returned for config files that are neither YAML nor CUE.
var ErrUnsupportedFormat = errors.New("unsupported config format")

// Config holds every tagtime setting.
type Config struct {
	// User names the session; it prefixes the ledger and state files.
	User string `yaml:"user" json:"user" validate:"required,alphanum,lowercase"`
	// DataDir holds <user>.log, <user>.db and the outbox.
	DataDir string `yaml:"data_dir" json:"data_dir" validate:"required"`
	// AverageGap is the mean time between pings.
	AverageGap Duration `yaml:"average_gap" json:"average_gap" validate:"min=1s,wholeseconds"`
	// Timeout is how long a prompt stays open.
	Timeout Duration `yaml:"timeout" json:"timeout" validate:"min=1s"`
	// LateThreshold is how late a ping may fire before it is also logged as Retro.
	LateThreshold Duration `yaml:"late_threshold" json:"late_threshold" validate:"gte=0s"`
	// Anchor is the RFC 3339 origin of the ping chain.
	Anchor string `yaml:"anchor" json:"anchor" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
	// Graphs are routing rules in "graph|tag -excluded" form.
	Graphs []string `yaml:"graphs" json:"graphs" validate:"dive,required,contains=0x7C"`
	// Submission configures the submission queue.
	Submission Submission `yaml:"submission" json:"submission"`
}

// Submission configures where and how entries are submitted.
type Submission struct {
	// URL is the destination base, recorded with each outbox batch.
	URL string `yaml:"url" json:"url" validate:"omitempty,url"`
	// OverwriteAll sends every routed entry on every flush for all graphs.
	OverwriteAll bool `yaml:"overwrite_all" json:"overwrite_all"`
	// FullGraphs lists graphs submitted in full mode regardless of OverwriteAll.
	FullGraphs []string `yaml:"full_graphs" json:"full_graphs" validate:"dive,required"`
	// Interval paces the background flush in "tagtime run".
	Interval Duration `yaml:"interval" json:"interval" validate:"min=1s"`
	// OutboxDir overrides <data_dir>/outbox.
	OutboxDir string `yaml:"outbox_dir" json:"outbox_dir"`
	// Concurrency bounds graphs submitted in parallel.
	Concurrency int `yaml:"concurrency" json:"concurrency" validate:"gte=1,lte=16"`
}

// configValidate is the validator instance for configuration values.
var configValidate *validator.Validate

func init() {
	configValidate = validator.New()
	configValidate.RegisterCustomTypeFunc(func(v reflect.Value) interface{} {
		return time.Duration(v.Interface().(Duration))
	}, Duration(0))
	if err := configValidate.RegisterValidation("wholeseconds", validateWholeSeconds); err != nil {
		panic(fmt.Sprintf("config: register wholeseconds validation: %v", err))
	}
}

// validateWholeSeconds rejects durations with a sub-second part.
func validateWholeSeconds(fl validator.FieldLevel) bool {
	d, ok := fl.Field().Interface().(time.Duration)
	if !ok {
		return false
	}
	return d%time.Second == 0
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		User:          DefaultUser,
		DataDir:       DefaultDataDir,
		AverageGap:    Duration(DefaultAverageGap),
		Timeout:       Duration(DefaultTimeout),
		LateThreshold: Duration(DefaultLateThreshold),
		Anchor:        schedule.DefaultAnchor.Format(time.RFC3339),
		Graphs:        []string{},
		Submission: Submission{
			URL:         DefaultSubmissionURL,
			FullGraphs:  []string{},
			Interval:    Duration(DefaultSubmitEvery),
			Concurrency: 1,
		},
	}
}

// Load reads the config file at path over the defaults and validates it.
// An empty path, or a path that does not exist, yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, cfg.Validate()
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = decodeYAML(data, &cfg)
	case ".cue":
		err = decodeCUE(data, path, &cfg)
	default:
		return Config{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	if err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// decodeYAML decodes with strict field checking (catches typos like "timout:").
func decodeYAML(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// decodeCUE evaluates the CUE source, then decodes its JSON form strictly.
func decodeCUE(data []byte, filename string, cfg *Config) error {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return fmt.Errorf("building CUE value: %w", err)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("CUE value not concrete: %w", err)
	}
	raw, err := v.MarshalJSON()
	if err != nil {
		return fmt.Errorf("exporting CUE value: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(cfg)
}

// Validate checks field constraints and that every routing rule parses.
func (c Config) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := c.Rules(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Rules parses the routing rules.
func (c Config) Rules() ([]route.Rule, error) {
	return route.ParseRules(c.Graphs)
}

// AnchorTime returns the parsed chain anchor.
func (c Config) AnchorTime() (time.Time, error) {
	t, err := time.Parse(time.RFC3339, c.Anchor)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse anchor: %w", err)
	}
	return t.UTC(), nil
}

// Scheduler returns the scheduler's configuration.
func (c Config) Scheduler() (engine.Config, error) {
	anchor, err := c.AnchorTime()
	if err != nil {
		return engine.Config{}, err
	}
	return engine.Config{
		AverageGap:    c.AverageGap.Std(),
		Timeout:       c.Timeout.Std(),
		LateThreshold: c.LateThreshold.Std(),
		Anchor:        anchor,
	}, nil
}

// SubmitModes returns the default mode and per-graph overrides.
func (c Config) SubmitModes() (submit.Mode, map[string]submit.Mode) {
	def := submit.ModeIncremental
	if c.Submission.OverwriteAll {
		def = submit.ModeFull
	}
	modes := make(map[string]submit.Mode, len(c.Submission.FullGraphs))
	for _, g := range c.Submission.FullGraphs {
		modes[g] = submit.ModeFull
	}
	return def, modes
}

// LedgerPath is <data_dir>/<user>.log.
func (c Config) LedgerPath() string {
	return filepath.Join(c.DataDir, c.User+".log")
}

// StorePath is <data_dir>/<user>.db.
func (c Config) StorePath() string {
	return filepath.Join(c.DataDir, c.User+".db")
}

// OutboxPath is the submission outbox directory.
func (c Config) OutboxPath() string {
	if c.Submission.OutboxDir != "" {
		return c.Submission.OutboxDir
	}
	return filepath.Join(c.DataDir, "outbox")
}

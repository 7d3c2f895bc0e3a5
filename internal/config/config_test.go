package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tagtime/internal/schedule"
	"github.com/roach88/tagtime/internal/submit"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func assertAliceConfig(t *testing.T, cfg Config) {
	t.Helper()
	assert.Equal(t, "alice", cfg.User)
	assert.Equal(t, "/var/lib/tagtime", cfg.DataDir)
	assert.Equal(t, 30*time.Minute, cfg.AverageGap.Std())
	assert.Equal(t, 90*time.Second, cfg.Timeout.Std())
	assert.Equal(t, 2*time.Minute, cfg.LateThreshold.Std())
	assert.ElementsMatch(t, []string{"work|job", "nafk|-afk", "computeridle|afk -off"}, cfg.Graphs)
	assert.Equal(t, []string{"nafk"}, cfg.Submission.FullGraphs)
	assert.Equal(t, 10*time.Minute, cfg.Submission.Interval.Std())
	assert.Equal(t, 2, cfg.Submission.Concurrency)

	// Unset fields keep their defaults.
	assert.Equal(t, schedule.DefaultAnchor.Format(time.RFC3339), cfg.Anchor)
	assert.False(t, cfg.Submission.OverwriteAll)
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	anchor, err := cfg.AnchorTime()
	require.NoError(t, err)
	assert.True(t, anchor.Equal(schedule.DefaultAnchor))
	assert.Equal(t, "2007-07-10T19:56:33Z", cfg.Anchor)
}

func TestLoad_EmptyPathAndMissingFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	cfg, err = Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_YAML(t *testing.T) {
	cfg, err := Load("testdata/alice.yaml")
	require.NoError(t, err)
	assertAliceConfig(t, cfg)
}

func TestLoad_CUE(t *testing.T) {
	cfg, err := Load("testdata/alice.cue")
	require.NoError(t, err)
	assertAliceConfig(t, cfg)
}

func TestLoad_EmptyYAMLFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, "empty.yml", ""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_RejectsUnknownFields(t *testing.T) {
	_, err := Load(writeConfig(t, "typo.yaml", "user: alice\ntimout: 30s\n"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "typo.cue", "user: \"alice\"\ntimout: \"30s\"\n"))
	assert.Error(t, err)
}

func TestLoad_UnsupportedFormat(t *testing.T) {
	_, err := Load(writeConfig(t, "config.toml", "user = 'alice'"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestLoad_InvalidCUE(t *testing.T) {
	_, err := Load(writeConfig(t, "bad.cue", "user: \"alice\"\nuser: \"bob\"\n"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"uppercase user", func(c *Config) { c.User = "Alice" }},
		{"user with punctuation", func(c *Config) { c.User = "alice.b" }},
		{"empty user", func(c *Config) { c.User = "" }},
		{"empty data dir", func(c *Config) { c.DataDir = "" }},
		{"sub-second gap", func(c *Config) { c.AverageGap = Duration(500 * time.Millisecond) }},
		{"fractional gap", func(c *Config) { c.AverageGap = Duration(90*time.Second + 500*time.Millisecond) }},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }},
		{"negative late threshold", func(c *Config) { c.LateThreshold = Duration(-time.Second) }},
		{"bad anchor", func(c *Config) { c.Anchor = "July 2007" }},
		{"rule without pipe", func(c *Config) { c.Graphs = []string{"work job"} }},
		{"rule without tags", func(c *Config) { c.Graphs = []string{"work|"} }},
		{"bad url", func(c *Config) { c.Submission.URL = "not a url" }},
		{"zero concurrency", func(c *Config) { c.Submission.Concurrency = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidate_WholeSecondsRuleRegistered(t *testing.T) {
	cfg := Default()
	cfg.AverageGap = Duration(90*time.Second + 500*time.Millisecond)

	var verrs validator.ValidationErrors
	require.ErrorAs(t, cfg.Validate(), &verrs)
	require.Len(t, verrs, 1)
	assert.Equal(t, "wholeseconds", verrs[0].Tag())
	assert.Equal(t, "AverageGap", verrs[0].Field())
}

func TestValidate_ZeroLateThresholdAllowed(t *testing.T) {
	cfg := Default()
	cfg.LateThreshold = 0
	assert.NoError(t, cfg.Validate())
}

func TestLoad_BadDuration(t *testing.T) {
	_, err := Load(writeConfig(t, "bad.yaml", "average_gap: soon\n"))
	assert.Error(t, err)
}

func TestDerivedPaths(t *testing.T) {
	cfg := Default()
	cfg.User = "alice"
	cfg.DataDir = "/data"

	assert.Equal(t, filepath.Join("/data", "alice.log"), cfg.LedgerPath())
	assert.Equal(t, filepath.Join("/data", "alice.db"), cfg.StorePath())
	assert.Equal(t, filepath.Join("/data", "outbox"), cfg.OutboxPath())

	cfg.Submission.OutboxDir = "/spool"
	assert.Equal(t, "/spool", cfg.OutboxPath())
}

func TestScheduler(t *testing.T) {
	cfg, err := Load("testdata/alice.yaml")
	require.NoError(t, err)

	sc, err := cfg.Scheduler()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, sc.AverageGap)
	assert.Equal(t, 90*time.Second, sc.Timeout)
	assert.Equal(t, 2*time.Minute, sc.LateThreshold)
	assert.True(t, sc.Anchor.Equal(schedule.DefaultAnchor))
	assert.NoError(t, sc.Validate())
}

func TestSubmitModes(t *testing.T) {
	cfg := Default()
	cfg.Submission.FullGraphs = []string{"nafk"}

	def, modes := cfg.SubmitModes()
	assert.Equal(t, submit.ModeIncremental, def)
	assert.Equal(t, map[string]submit.Mode{"nafk": submit.ModeFull}, modes)

	cfg.Submission.OverwriteAll = true
	def, _ = cfg.SubmitModes()
	assert.Equal(t, submit.ModeFull, def)
}

func TestRules(t *testing.T) {
	cfg, err := Load("testdata/alice.yaml")
	require.NoError(t, err)

	rules, err := cfg.Rules()
	require.NoError(t, err)
	require.Len(t, rules, 3)
	assert.Equal(t, "work", rules[0].Graph)
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "test"}
	BindFlags(cmd)
	return cmd
}

func TestBindFlags_RegistersAllKeysWithDefaults(t *testing.T) {
	cmd := newTestCmd()
	flags := cmd.PersistentFlags()

	for _, k := range keys {
		f := flags.Lookup(k.flagName)
		require.NotNil(t, f, "flag %q should be registered", k.flagName)
	}

	assert.Equal(t, "openai/gpt-4o-mini", mustDefault(t, flags, "model"))
	assert.Equal(t, "4096", mustDefault(t, flags, "max-tokens"))
	assert.Equal(t, "false", mustDefault(t, flags, "use-bedrock"))
	assert.Equal(t, "info", mustDefault(t, flags, "log-level"))
}

func mustDefault(t *testing.T, flags *pflag.FlagSet, name string) string {
	t.Helper()
	f := flags.Lookup(name)
	require.NotNil(t, f)
	return f.DefValue
}

func TestLoad_DefaultsWithNoOverrides(t *testing.T) {
	t.Setenv("CLAUDE_C_CONFIG", filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	cmd := newTestCmd()
	require.NoError(t, cmd.ParseFlags(nil))

	cfg, err := Load(cmd)
	require.NoError(t, err)

	assert.Equal(t, "openai/gpt-4o-mini", cfg.Model)
	assert.Equal(t, 4096, cfg.MaxTokens)
	assert.False(t, cfg.UseBedrock)
	assert.Equal(t, "us-west-2", cfg.AWSRegion)
	assert.Equal(t, "default", cfg.AWSProfile)
	assert.True(t, cfg.DBAutoRotate)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_FlagOverridesDefault(t *testing.T) {
	t.Setenv("CLAUDE_C_CONFIG", filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	cmd := newTestCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--model", "bedrock/anthropic.claude-3-5-sonnet-20241022-v2:0"}))

	cfg, err := Load(cmd)
	require.NoError(t, err)
	assert.Equal(t, "bedrock/anthropic.claude-3-5-sonnet-20241022-v2:0", cfg.Model)
}

func TestLoad_EnvOverridesDefaultButNotFlag(t *testing.T) {
	t.Setenv("CLAUDE_C_CONFIG", filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	t.Setenv("AWS_REGION", "eu-west-1")

	cmd := newTestCmd()
	require.NoError(t, cmd.ParseFlags(nil))
	cfg, err := Load(cmd)
	require.NoError(t, err)
	assert.Equal(t, "eu-west-1", cfg.AWSRegion)

	cmd2 := newTestCmd()
	require.NoError(t, cmd2.ParseFlags([]string{"--aws-region", "ap-south-1"}))
	cfg2, err := Load(cmd2)
	require.NoError(t, err)
	assert.Equal(t, "ap-south-1", cfg2.AWSRegion)
}

func TestLoad_ConfigFileAppliesWhenNothingElseSet(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("db_max_days: 14\nlog_level: debug\n"), 0o644))
	t.Setenv("CLAUDE_C_CONFIG", path)

	cmd := newTestCmd()
	require.NoError(t, cmd.ParseFlags(nil))
	cfg, err := Load(cmd)
	require.NoError(t, err)

	assert.Equal(t, 14, cfg.DBMaxDays)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_MissingConfigFileIsNotAnError(t *testing.T) {
	t.Setenv("CLAUDE_C_CONFIG", filepath.Join(t.TempDir(), "nope.yaml"))
	cmd := newTestCmd()
	require.NoError(t, cmd.ParseFlags(nil))

	_, err := Load(cmd)
	assert.NoError(t, err)
}

func TestDefaultConfigPath_EndsInExpectedSuffix(t *testing.T) {
	p := DefaultConfigPath()
	if p == "" {
		t.Skip("no home directory resolvable in this environment")
	}
	assert.Contains(t, p, filepath.Join(".config", "claude-c", "config.yaml"))
}

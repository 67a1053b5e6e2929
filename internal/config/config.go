// Package config resolves the CLI's settings (C14) with cobra's flag
// parsing and viper's layered lookup, per SPEC_FULL.md §4.B: CLI flag >
// environment variable > config file (~/.config/claude-c/config.yaml) >
// built-in default. Every environment variable spec.md §6 and §9 name is
// bound through viper under its own key so a config file can set the same
// values.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Config is the fully-resolved set of settings a running claude-c process
// needs, independent of how each value was supplied.
type Config struct {
	Model     string
	MaxTokens int

	UseBedrock     bool
	AWSRegion      string
	AWSProfile     string
	AWSAuthCommand string

	OpenAIAPIKey  string
	OpenAIBaseURL string

	DBPath         string
	DBAutoRotate   bool
	DBMaxDays      int
	DBMaxRecords   int
	DBMaxSizeMB    int

	DisablePromptCaching bool
	BashTimeoutSeconds   int

	LogLevel string
}

// key is one resolvable setting: its viper key, the flag it's bound to, the
// env var name spec.md documents for it, and its built-in default.
type key struct {
	viperKey string
	flagName string
	flagDesc string
	envVar   string
	def      any
}

// keys lists every setting in one place so BindFlags and Load can't drift
// apart — the env var names here are exactly spec.md §6/§9's list.
var keys = []key{
	{"model", "model", "provider/model reference, e.g. openai/gpt-4o", "", "openai/gpt-4o-mini"},
	{"max_tokens", "max-tokens", "max output tokens per call", "", 4096},
	{"use_bedrock", "use-bedrock", "route calls through AWS Bedrock", "CLAUDE_CODE_USE_BEDROCK", false},
	{"aws_region", "aws-region", "AWS region for Bedrock", "AWS_REGION", "us-west-2"},
	{"aws_profile", "aws-profile", "AWS CLI profile for Bedrock credentials", "AWS_PROFILE", "default"},
	{"aws_auth_command", "aws-auth-command", "override for `aws sso login` re-authentication", "AWS_AUTH_COMMAND", ""},
	{"openai_api_key", "openai-api-key", "OpenAI-compatible API key", "OPENAI_API_KEY", ""},
	{"openai_base_url", "openai-base-url", "OpenAI-compatible base URL", "OPENAI_BASE_URL", "https://api.openai.com"},
	{"db_path", "db-path", "call log sqlite path override", "CLAUDE_C_DB_PATH", ""},
	{"db_auto_rotate", "db-auto-rotate", "run rotation automatically on open", "CLAUDE_C_DB_AUTO_ROTATE", true},
	{"db_max_days", "db-max-days", "rotation: max age in days (0 disables)", "CLAUDE_C_DB_MAX_DAYS", 30},
	{"db_max_records", "db-max-records", "rotation: max row count (0 disables)", "CLAUDE_C_DB_MAX_RECORDS", 1000},
	{"db_max_size_mb", "db-max-size-mb", "rotation: max file size in MB (0 disables)", "CLAUDE_C_DB_MAX_SIZE_MB", 100},
	{"disable_prompt_caching", "disable-prompt-caching", "omit cache-control markers from outgoing requests", "DISABLE_PROMPT_CACHING", false},
	{"bash_timeout_seconds", "bash-timeout", "default per-call tool timeout in seconds (0 or less falls back to the dispatcher's 60s default; there is no unlimited setting)", "CLAUDE_C_BASH_TIMEOUT", 60},
	{"log_level", "log-level", "logrus level name", "CLAUDE_C_LOG_LEVEL", "info"},
}

// BindFlags registers every setting as a persistent flag on cmd, with its
// built-in default as the flag's default value.
func BindFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	for _, k := range keys {
		switch def := k.def.(type) {
		case string:
			flags.String(k.flagName, def, k.flagDesc)
		case int:
			flags.Int(k.flagName, def, k.flagDesc)
		case bool:
			flags.Bool(k.flagName, def, k.flagDesc)
		default:
			panic(fmt.Sprintf("config: unsupported default type for %q", k.flagName))
		}
	}
}

// DefaultConfigPath returns ~/.config/claude-c/config.yaml, or the empty
// string if the home directory can't be resolved (Load then just skips the
// config-file layer).
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "claude-c", "config.yaml")
}

// configPath resolves CLAUDE_C_CONFIG (per spec.md §9), falling back to
// DefaultConfigPath.
func configPath() string {
	if p := os.Getenv("CLAUDE_C_CONFIG"); p != "" {
		return p
	}
	return DefaultConfigPath()
}

// Load resolves every key's value with viper's precedence (flag > env >
// config file > default) and decodes the result into a Config. cmd must
// already have had BindFlags(cmd) called and Flags parsed (i.e. called
// from a cobra RunE, not before Execute()).
func Load(cmd *cobra.Command) (Config, error) {
	v := viper.New()

	for _, k := range keys {
		v.SetDefault(k.viperKey, k.def)
		if k.envVar != "" {
			if err := v.BindEnv(k.viperKey, k.envVar); err != nil {
				return Config{}, fmt.Errorf("config: bind env %q: %w", k.envVar, err)
			}
		}
		if err := v.BindPFlag(k.viperKey, cmd.PersistentFlags().Lookup(k.flagName)); err != nil {
			return Config{}, fmt.Errorf("config: bind flag %q: %w", k.flagName, err)
		}
	}

	if path := configPath(); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			_, notFound := err.(viper.ConfigFileNotFoundError)
			if !notFound && !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("config: read %q: %w", path, err)
			}
		}
	}

	return Config{
		Model:                v.GetString("model"),
		MaxTokens:            v.GetInt("max_tokens"),
		UseBedrock:           v.GetBool("use_bedrock"),
		AWSRegion:            v.GetString("aws_region"),
		AWSProfile:           v.GetString("aws_profile"),
		AWSAuthCommand:       v.GetString("aws_auth_command"),
		OpenAIAPIKey:         v.GetString("openai_api_key"),
		OpenAIBaseURL:        v.GetString("openai_base_url"),
		DBPath:               v.GetString("db_path"),
		DBAutoRotate:         v.GetBool("db_auto_rotate"),
		DBMaxDays:            v.GetInt("db_max_days"),
		DBMaxRecords:         v.GetInt("db_max_records"),
		DBMaxSizeMB:          v.GetInt("db_max_size_mb"),
		DisablePromptCaching: v.GetBool("disable_prompt_caching"),
		BashTimeoutSeconds:   v.GetInt("bash_timeout_seconds"),
		LogLevel:             v.GetString("log_level"),
	}, nil
}

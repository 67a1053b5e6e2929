// Package calllog is the embedded SQL call-log store (C6): it records every
// API call, extracts provider-heterogeneous token-usage metrics, and
// enforces age/count/size retention with vacuum and schema migration,
// per spec.md §4.5.
package calllog

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// ApiCall is one row of api_calls.
type ApiCall struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"`
	Timestamp    string `gorm:"index"`
	SessionID    string `gorm:"index"`
	ApiBaseURL   string
	RequestJSON  string
	HeadersJSON  string
	ResponseJSON string
	Model        string
	Status       string `gorm:"check:status in ('success','error')"`
	HTTPStatus   int
	ErrorMessage string
	DurationMS   int64
	ToolCount    int `gorm:"default:0"`
	CreatedAt    int64
}

func (ApiCall) TableName() string { return "api_calls" }

// TokenUsage is one row of token_usage, 1:1 with an ApiCall on success.
// ApiCallID's cascade (D2) is enforced in application code by
// deleteApiCallsWhere, not by a declared FK constraint.
type TokenUsage struct {
	ID                    uint   `gorm:"primaryKey;autoIncrement"`
	ApiCallID             uint   `gorm:"index"`
	SessionID             string `gorm:"index"`
	PromptTokens          int
	CompletionTokens      int
	TotalTokens           int
	CachedTokens          int
	PromptCacheHitTokens  int
	PromptCacheMissTokens int
	CreatedAt             int64
}

func (TokenUsage) TableName() string { return "token_usage" }

// SchemaVersion tracks applied migrations.
type SchemaVersion struct {
	Version     int `gorm:"primaryKey"`
	Description string
	AppliedAt   int64
}

func (SchemaVersion) TableName() string { return "schema_version" }

const currentSchemaVersion = 1

// Record is the insert-time view of a completed API call: everything
// needed to populate an ApiCall row and, on success, a TokenUsage row.
type Record struct {
	SessionID    string
	ApiBaseURL   string
	RequestJSON  string
	HeadersJSON  string
	ResponseJSON string
	Model        string
	Status       string // "success" or "error"
	HTTPStatus   int
	ErrorMessage string
	DurationMS   int64
	ToolCount    int
}

// Store wraps a gorm.DB bound to one sqlite file.
type Store struct {
	db     *gorm.DB
	path   string
	policy RotationPolicy
	log    *logrus.Entry
}

// Option configures a Store.
type Option func(*Store)

// WithRotationPolicy overrides the default rotation policy (env-derived by
// default via RotationPolicyFromEnv).
func WithRotationPolicy(p RotationPolicy) Option {
	return func(s *Store) { s.policy = p }
}

// WithLogger attaches a structured logger.
func WithLogger(l *logrus.Entry) Option {
	return func(s *Store) { s.log = l }
}

// Open resolves the storage path (ResolvePath), creates its parent
// directory, opens the sqlite file in WAL mode with a 5-second busy
// timeout, applies schema migrations, and runs rotation once.
func Open(explicitPath string, opts ...Option) (*Store, error) {
	path := ResolvePath(explicitPath)
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("calllog: create db dir %q: %w", dir, err)
		}
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("calllog: open %q: %w", path, err)
	}

	s := &Store{db: db, path: path, policy: RotationPolicyFromEnv(), log: logrus.NewEntry(logrus.StandardLogger())}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.migrate(); err != nil {
		return nil, err
	}

	if s.policy.AutoRotate {
		if _, err := s.Rotate(time.Now()); err != nil {
			s.log.WithError(err).Warn("calllog: rotation on open failed")
		}
	}

	return s, nil
}

// Close releases the underlying sqlite connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Path returns the resolved database file path.
func (s *Store) Path() string { return s.path }

func (s *Store) migrate() error {
	if err := s.db.AutoMigrate(&ApiCall{}, &TokenUsage{}, &SchemaVersion{}); err != nil {
		return fmt.Errorf("calllog: automigrate: %w", err)
	}

	var applied SchemaVersion
	err := s.db.Order("version desc").First(&applied).Error
	if err == nil && applied.Version >= currentSchemaVersion {
		return nil
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		return tx.Create(&SchemaVersion{
			Version:     currentSchemaVersion,
			Description: "initial api_calls/token_usage/schema_version schema",
			AppliedAt:   time.Now().Unix(),
		}).Error
	})
}

// ResolvePath implements spec.md §4.5's default storage path resolution
// order: CLAUDE_C_DB_PATH; ./.claude-c/api_calls.db; $XDG_DATA_HOME/
// claude-c/api_calls.db; ~/.local/share/claude-c/api_calls.db;
// ./api_calls.db. explicitPath, when non-empty, short-circuits all of it
// (an explicit caller override, e.g. from --db-path).
func ResolvePath(explicitPath string) string {
	if explicitPath != "" {
		return explicitPath
	}
	if p := os.Getenv("CLAUDE_C_DB_PATH"); p != "" {
		return p
	}
	if dirWritable(".claude-c") {
		return filepath.Join(".claude-c", "api_calls.db")
	}
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "claude-c", "api_calls.db")
	}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return filepath.Join(home, ".local", "share", "claude-c", "api_calls.db")
	}
	return "api_calls.db"
}

func dirWritable(dir string) bool {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false
	}
	return true
}

func boolEnv(name string, def bool) bool {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func intEnv(name string, def int) int {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

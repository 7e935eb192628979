package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/caarlos0/env/v11"

	"chatd/internal/domain"
)

type Config struct {
	AppName string `env:"APP_NAME" envDefault:"chatd"`
	Env     string `env:"APP_ENV" envDefault:"development"`

	Host     string `env:"CHAT_HOST" envDefault:"0.0.0.0"`
	Port     int    `env:"CHAT_PORT" envDefault:"9870"`
	HTTPHost string `env:"HTTP_HOST" envDefault:"0.0.0.0"`
	HTTPPort int    `env:"HTTP_PORT" envDefault:"8000"`

	DataDir         string `env:"DATA_DIR" envDefault:"data"`
	AccountsFile    string `env:"ACCOUNTS_FILE" envDefault:"Users.txt"`
	GroupsFile      string `env:"GROUPS_FILE" envDefault:"Group1.txt"`
	GroupRolesFile  string `env:"GROUP_ROLES_FILE" envDefault:"Group2.txt"`
	RequestsFile    string `env:"REQUESTS_FILE" envDefault:"Request.txt"`
	GroupRecordDir  string `env:"GROUP_RECORD_DIR" envDefault:"GroupRecord"`
	FriendRecordDir string `env:"FRIEND_RECORD_DIR" envDefault:"FriendRecord"`
	AuditDB         string `env:"AUDIT_DB" envDefault:"audit.db"`

	DefaultGroup     string `env:"DEFAULT_GROUP" envDefault:"Lobby"`
	GroupMemberLimit int    `env:"GROUP_MEMBER_LIMIT" envDefault:"100"`
	HistoryLimit     int    `env:"HISTORY_LIMIT" envDefault:"0"`
	MaxConnections   int64  `env:"MAX_CONNECTIONS" envDefault:"0"`
	MaxLineBytes     int    `env:"MAX_LINE_BYTES" envDefault:"65536"`
	LegacyLogin      bool   `env:"LEGACY_LOGIN" envDefault:"false"`
	LegacyPassword   string `env:"LEGACY_PASSWORD" envDefault:"123456"`
	BcryptCost       int    `env:"BCRYPT_COST" envDefault:"0"`

	JWTSecret          string   `env:"JWT_SECRET"`
	AccessTokenMinutes int      `env:"ACCESS_TOKEN_EXPIRE_MINUTES" envDefault:"1440"`
	CORSOrigins        []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000,http://localhost:5173"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load reads the configuration from the environment and prepares the data
// directory layout.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	for i := range cfg.CORSOrigins {
		cfg.CORSOrigins[i] = strings.TrimSpace(cfg.CORSOrigins[i])
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	for _, dir := range []string{cfg.DataDir, cfg.Path(cfg.GroupRecordDir), cfg.Path(cfg.FriendRecordDir)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data dir: %w", err)
		}
	}
	return cfg, nil
}

// Validate checks settings that have no usable default.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("CHAT_PORT out of range: %d", c.Port)
	}
	if c.HTTPPort < 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("HTTP_PORT out of range: %d", c.HTTPPort)
	}
	if c.HTTPEnabled() && c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required when HTTP_PORT is set")
	}
	if c.GroupMemberLimit <= 0 {
		return fmt.Errorf("GROUP_MEMBER_LIMIT must be positive")
	}
	if !domain.ValidGroupName(c.DefaultGroup) {
		return fmt.Errorf("DEFAULT_GROUP %q is not a valid group name", c.DefaultGroup)
	}
	return nil
}

func (c *Config) ChatAddr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c *Config) HTTPAddr() string {
	return net.JoinHostPort(c.HTTPHost, strconv.Itoa(c.HTTPPort))
}

func (c *Config) HTTPEnabled() bool {
	return c.HTTPPort != 0
}

// Path resolves a file name relative to the data directory.
func (c *Config) Path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.DataDir, name)
}

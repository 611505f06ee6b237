package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	DefaultMaxSenders         = 50
	DefaultLabel              = "CATEGORY_PROMOTIONS"
	DefaultPageSize           = 500
	DefaultBatchSize          = 1000
	DefaultUnsubscribeTimeout = 10 * time.Second

	// Gmail rejects list pages above 500 and batchModify above 1000 IDs.
	maxPageSize  = 500
	maxBatchSize = 1000
)

// DefaultScopes covers modify/trash, filter creation and sending the
// unsubscribe email.
var DefaultScopes = []string{
	"https://www.googleapis.com/auth/gmail.modify",
	"https://www.googleapis.com/auth/gmail.settings.basic",
	"https://www.googleapis.com/auth/gmail.send",
}

type Config struct {
	MaxSenders         int           `yaml:"max_senders"`
	Scopes             []string      `yaml:"scopes"`
	CredentialsFile    string        `yaml:"credentials_file"`
	TokenFile          string        `yaml:"token_file"`
	JournalDB          string        `yaml:"journal_db"`
	LogFile            string        `yaml:"log_file"`
	Label              string        `yaml:"label"`
	PageSize           int64         `yaml:"page_size"`
	BatchSize          int           `yaml:"batch_size"`
	UnsubscribeTimeout time.Duration `yaml:"unsubscribe_timeout"`
	AbortOnFetchError  bool          `yaml:"abort_on_fetch_error"`
}

// Dir returns the promosweep config directory.
// Respects PROMOSWEEP_CONFIG_DIR if set.
func Dir() (string, error) {
	if dir := os.Getenv("PROMOSWEEP_CONFIG_DIR"); dir != "" {
		return dir, nil
	}
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "promosweep"), nil
}

// Path returns the default config file path (<dir>/config.yaml).
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"max-senders":      "max_senders",
	"credentials-file": "credentials_file",
	"token-file":       "token_file",
	"label":            "label",
	"page-size":        "page_size",
	"batch-size":       "batch_size",
}

// envAliases are the bare variable names accepted alongside PROMOSWEEP_<KEY>.
var envAliases = map[string]string{
	"max_senders":      "MAX_SENDERS",
	"scopes":           "SCOPES",
	"credentials_file": "CREDENTIALS_FILE",
	"token_file":       "TOKEN_FILE",
}

// Load builds the effective configuration with priority:
// flag > env (PROMOSWEEP_<KEY> or alias) > config file > default.
// A missing config file is fine; .env in the working directory is loaded first.
func Load(configPath string, flags *pflag.FlagSet) (*Config, error) {
	_ = godotenv.Load()

	dir, err := Dir()
	if err != nil {
		return nil, fmt.Errorf("resolve config dir: %w", err)
	}
	if configPath == "" {
		configPath = filepath.Join(dir, "config.yaml")
	}

	v := viper.New()
	setDefaults(v, dir)

	for key := range defaultsFor(dir) {
		names := []string{key, "PROMOSWEEP_" + strings.ToUpper(key)}
		if alias, ok := envAliases[key]; ok {
			names = append(names, alias)
		}
		if err := v.BindEnv(names...); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config %s: %w", configPath, err)
		}
	}

	cfg := &Config{
		MaxSenders:         v.GetInt("max_senders"),
		Scopes:             scopesFrom(v),
		CredentialsFile:    v.GetString("credentials_file"),
		TokenFile:          v.GetString("token_file"),
		JournalDB:          v.GetString("journal_db"),
		LogFile:            v.GetString("log_file"),
		Label:              v.GetString("label"),
		PageSize:           v.GetInt64("page_size"),
		BatchSize:          v.GetInt("batch_size"),
		UnsubscribeTimeout: v.GetDuration("unsubscribe_timeout"),
		AbortOnFetchError:  v.GetBool("abort_on_fetch_error"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Defaults returns the configuration used when nothing is overridden.
func Defaults() (*Config, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	d := defaultsFor(dir)
	return &Config{
		MaxSenders:         DefaultMaxSenders,
		Scopes:             append([]string(nil), DefaultScopes...),
		CredentialsFile:    d["credentials_file"].(string),
		TokenFile:          d["token_file"].(string),
		JournalDB:          d["journal_db"].(string),
		LogFile:            d["log_file"].(string),
		Label:              DefaultLabel,
		PageSize:           DefaultPageSize,
		BatchSize:          DefaultBatchSize,
		UnsubscribeTimeout: DefaultUnsubscribeTimeout,
	}, nil
}

func defaultsFor(dir string) map[string]any {
	return map[string]any{
		"max_senders":          DefaultMaxSenders,
		"scopes":               strings.Join(DefaultScopes, " "),
		"credentials_file":     filepath.Join(dir, "client_secret.json"),
		"token_file":           filepath.Join(dir, "token.json"),
		"journal_db":           filepath.Join(dir, "promosweep.db"),
		"log_file":             filepath.Join(dir, "promosweep.log"),
		"label":                DefaultLabel,
		"page_size":            DefaultPageSize,
		"batch_size":           DefaultBatchSize,
		"unsubscribe_timeout":  DefaultUnsubscribeTimeout,
		"abort_on_fetch_error": false,
	}
}

func setDefaults(v *viper.Viper, dir string) {
	for key, val := range defaultsFor(dir) {
		v.SetDefault(key, val)
	}
}

// scopesFrom accepts either a space-separated string (env, .env) or a YAML list.
func scopesFrom(v *viper.Viper) []string {
	raw := v.Get("scopes")
	if list, ok := raw.([]any); ok {
		var out []string
		for _, s := range list {
			out = append(out, strings.Fields(fmt.Sprint(s))...)
		}
		return out
	}
	return strings.Fields(v.GetString("scopes"))
}

func (c *Config) Validate() error {
	if c.MaxSenders < 1 {
		return fmt.Errorf("max_senders must be at least 1, got %d", c.MaxSenders)
	}
	if len(c.Scopes) == 0 {
		return fmt.Errorf("scopes must not be empty")
	}
	if c.CredentialsFile == "" {
		return fmt.Errorf("credentials_file is required")
	}
	if c.TokenFile == "" {
		return fmt.Errorf("token_file is required")
	}
	if c.PageSize < 1 || c.PageSize > maxPageSize {
		return fmt.Errorf("page_size must be between 1 and %d, got %d", maxPageSize, c.PageSize)
	}
	if c.BatchSize < 1 || c.BatchSize > maxBatchSize {
		return fmt.Errorf("batch_size must be between 1 and %d, got %d", maxBatchSize, c.BatchSize)
	}
	if c.UnsubscribeTimeout <= 0 {
		return fmt.Errorf("unsubscribe_timeout must be positive, got %s", c.UnsubscribeTimeout)
	}
	return nil
}

// YAML renders the config as a YAML document.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}

// WriteDefault writes the default configuration to path unless a file
// already exists there. It reports whether a file was written.
func WriteDefault(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}
	cfg, err := Defaults()
	if err != nil {
		return false, err
	}
	data, err := cfg.YAML()
	if err != nil {
		return false, fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return false, fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return false, fmt.Errorf("write config: %w", err)
	}
	return true, nil
}

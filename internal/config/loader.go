package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	envPrefix            = "LINECHAT"
	envConfigDefaultPath = "LINECHAT_CONFIG_DEFAULT_PATH"
	defaultConfigName    = "config.yaml"
)

// Load resolves configuration and returns it with the config file path it used.
// Precedence: defaults < config file < LINECHAT_* env vars. A missing file is created
// from the defaults so operators have something to edit.
func Load(logger *zerolog.Logger, explicitPath string) (Config, string, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	cfg := Default()
	path := resolveConfigPath(explicitPath)

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(path)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, cfg)

	if err := readConfigFile(v, path, cfg, logger); err != nil {
		return cfg, path, err
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, path, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, path, nil
}

// readConfigFile reads path into v, writing defaults first when the file does not exist.
// Failing to create the default file is not fatal: defaults and env still apply.
func readConfigFile(v *viper.Viper, path string, defaults Config, logger *zerolog.Logger) error {
	err := v.ReadInConfig()
	if err == nil {
		return nil
	}

	var notFound viper.ConfigFileNotFoundError
	if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	if err := writeDefaultConfig(path, defaults); err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("failed to write default config")
		return nil
	}
	logger.Info().Str("path", path).Msg("created default config")

	if err := v.ReadInConfig(); err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("failed to read freshly written config")
	}
	return nil
}

// setDefaults registers every key so AutomaticEnv can resolve nested values during Unmarshal.
func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("tcp_addr", cfg.TCPAddr)
	v.SetDefault("http_addr", cfg.HTTPAddr)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("read_header_timeout", cfg.ReadHeaderTimeout)
	v.SetDefault("shutdown_timeout", cfg.ShutdownTimeout)
	v.SetDefault("jwt_secret", cfg.JWTSecret)
	v.SetDefault("jwt_issuer", cfg.JWTIssuer)
	v.SetDefault("jwt_audience", cfg.JWTAudience)

	v.SetDefault("store.driver", cfg.Store.Driver)
	v.SetDefault("store.sqlite_path", cfg.Store.SQLitePath)
	v.SetDefault("store.postgres_dsn", cfg.Store.PostgresDSN)

	v.SetDefault("session.idle_timeout", cfg.Session.IdleTimeout)
	v.SetDefault("session.max_line_bytes", cfg.Session.MaxLineBytes)
	v.SetDefault("session.outbound_buffer", cfg.Session.OutboundBuffer)
	v.SetDefault("session.history_limit", cfg.Session.HistoryLimit)
	v.SetDefault("session.duplicate_login", cfg.Session.DuplicateLogin)
	v.SetDefault("session.rate_limit_per_minute", cfg.Session.RateLimitPerMinute)
}

func resolveConfigPath(explicitPath string) string {
	if explicitPath != "" {
		return explicitPath
	}

	if base := os.Getenv(envConfigDefaultPath); base != "" {
		if err := os.MkdirAll(base, 0o755); err == nil {
			return filepath.Join(base, defaultConfigName)
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return defaultConfigName
	}
	return filepath.Join(cwd, defaultConfigName)
}

func writeDefaultConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

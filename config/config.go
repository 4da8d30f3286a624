package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

//go:embed config.yml
var embeddedConfig []byte

type Config struct {
	Mode   string `mapstructure:"mode"`
	Server struct {
		HTTPPort string        `mapstructure:"HTTPPort"`
		Timeout  time.Duration `mapstructure:"HTTPTimeout"`
	} `mapstructure:"server"`
	Repositories struct {
		Postgres struct {
			Host     string `mapstructure:"host"`
			Password string `mapstructure:"password"`
			Port     string `mapstructure:"port"`
			Username string `mapstructure:"username"`
			DB       string `mapstructure:"db"`
			SSLMode  string `mapstructure:"sslmode"`
		} `mapstructure:"postgres"`
		// UpstreamURL points at the API service database that owns the
		// authoritative profile records. Read-only.
		UpstreamURL string `mapstructure:"upstreamURL"`
	} `mapstructure:"repositories"`
	JWT   JWTConfig   `mapstructure:"jwt"`
	SMTP  SMTPConfig  `mapstructure:"smtp"`
	Admin AdminConfig `mapstructure:"admin"`
	Links LinksConfig `mapstructure:"links"`
}

type JWTConfig struct {
	AccessSecret    string        `mapstructure:"accessSecret"`
	RefreshSecret   string        `mapstructure:"refreshSecret"`
	Issuer          string        `mapstructure:"issuer"`
	AccessTokenTTL  time.Duration `mapstructure:"accessTokenTTL"`
	RefreshTokenTTL time.Duration `mapstructure:"refreshTokenTTL"`
	ActionTokenTTL  time.Duration `mapstructure:"actionTokenTTL"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	FromName string `mapstructure:"fromName"`
	UseTLS   bool   `mapstructure:"useTLS"`
}

type AdminConfig struct {
	// Emails is the admin allow-list, matched case-insensitively against
	// the caller's token email claim.
	Emails []string `mapstructure:"emails"`
}

type LinksConfig struct {
	ResetBaseURL  string `mapstructure:"resetBaseURL"`
	VerifyBaseURL string `mapstructure:"verifyBaseURL"`
	QueryName     string `mapstructure:"queryName"`
}

func InitConfig() (Config, error) {
	var config Config
	v := viper.New()

	v.AddConfigPath(".")
	v.AddConfigPath("config")
	v.AddConfigPath("/app/config")

	v.SetConfigName("config")
	v.SetConfigType("yml")

	// Environment variables win over file values. Secrets normally only
	// exist in the environment.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("jwt.accessSecret", "JWT_ACCESS_SECRET")
	_ = v.BindEnv("jwt.refreshSecret", "JWT_REFRESH_SECRET")
	_ = v.BindEnv("repositories.upstreamURL", "API_DATABASE_URL")
	_ = v.BindEnv("repositories.postgres.host", "POSTGRES_HOST")
	_ = v.BindEnv("repositories.postgres.port", "POSTGRES_PORT")
	_ = v.BindEnv("repositories.postgres.username", "POSTGRES_USER")
	_ = v.BindEnv("repositories.postgres.password", "POSTGRES_PASSWORD")
	_ = v.BindEnv("repositories.postgres.db", "POSTGRES_DB")
	_ = v.BindEnv("smtp.host", "SMTP_HOST")
	_ = v.BindEnv("smtp.port", "SMTP_PORT")
	_ = v.BindEnv("smtp.username", "SMTP_USER")
	_ = v.BindEnv("smtp.password", "SMTP_PASS")
	_ = v.BindEnv("smtp.from", "EMAIL_FROM")
	_ = v.BindEnv("smtp.fromName", "EMAIL_FROM_NAME")
	_ = v.BindEnv("admin.emails", "ADMIN_EMAILS")

	err := v.ReadInConfig()
	if err != nil {
		fmt.Printf("Warning: Failed to find file-based config: %s. Falling back to embedded config.\n", err)
		if err = v.ReadConfig(bytes.NewReader(embeddedConfig)); err != nil {
			return Config{}, fmt.Errorf("failed to read embedded config: %s", err)
		}
	}

	if err = v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %s", err)
	}

	// ADMIN_EMAILS arrives comma-separated from the environment.
	if len(config.Admin.Emails) == 1 && strings.Contains(config.Admin.Emails[0], ",") {
		config.Admin.Emails = strings.Split(config.Admin.Emails[0], ",")
	}
	for i, e := range config.Admin.Emails {
		config.Admin.Emails[i] = strings.ToLower(strings.TrimSpace(e))
	}

	if err = config.validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

// validate enforces the startup-fatal keys. A missing signing secret is a
// deployment mistake, never a per-request condition.
func (c *Config) validate() error {
	if c.JWT.AccessSecret == "" {
		return fmt.Errorf("missing required config: jwt.accessSecret (JWT_ACCESS_SECRET)")
	}
	if c.JWT.RefreshSecret == "" {
		return fmt.Errorf("missing required config: jwt.refreshSecret (JWT_REFRESH_SECRET)")
	}
	if c.Repositories.Postgres.Host == "" {
		return fmt.Errorf("missing required config: repositories.postgres.host")
	}
	return nil
}

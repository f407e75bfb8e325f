package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

const EnvPrefix = "OTPBOARD"

type Config struct {
	Port            int           `mapstructure:"port"`
	DatabaseURL     string        `mapstructure:"database_url"`
	OTPTTL          time.Duration `mapstructure:"otp_ttl"`
	OTPReapInterval time.Duration `mapstructure:"otp_reap_interval"`
	BcryptCost      int           `mapstructure:"bcrypt_cost"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// Boards lists "id:title" pairs created at startup when missing.
	Boards []string `mapstructure:"boards"`

	SMTP SMTPConfig `mapstructure:"smtp"`
	Mail MailConfig `mapstructure:"mail"`
	Log  LogConfig  `mapstructure:"log"`
}

type BoardSeed struct {
	ID    string
	Title string
}

type SMTPConfig struct {
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	From     string        `mapstructure:"from"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type MailConfig struct {
	Workers   int    `mapstructure:"workers"`
	Queue     int    `mapstructure:"queue"`
	ContactTo string `mapstructure:"contact_to"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// New returns a viper instance with defaults and environment bindings.
// Callers may bind command-line flags onto it before calling Load.
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault("port", 3000)
	v.SetDefault("database_url", "")
	v.SetDefault("otp_ttl", 10*time.Minute)
	v.SetDefault("otp_reap_interval", time.Minute)
	v.SetDefault("bcrypt_cost", bcrypt.DefaultCost)
	v.SetDefault("request_timeout", 15*time.Second)
	v.SetDefault("shutdown_timeout", 10*time.Second)
	v.SetDefault("boards", []string{})

	v.SetDefault("smtp.host", "smtp-mail.outlook.com")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.username", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("smtp.from", "")
	v.SetDefault("smtp.timeout", 10*time.Second)

	v.SetDefault("mail.workers", 2)
	v.SetDefault("mail.queue", 64)
	v.SetDefault("mail.contact_to", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unprefixed names kept for existing deployments.
	_ = v.BindEnv("database_url", EnvPrefix+"_DATABASE_URL", "DATABASE_URL")
	_ = v.BindEnv("smtp.username", EnvPrefix+"_SMTP_USERNAME", "EMAIL_ADDRESS")
	_ = v.BindEnv("smtp.password", EnvPrefix+"_SMTP_PASSWORD", "EMAIL_PASSWORD")

	return v
}

// LoadDotEnv loads .env files into the process environment. Missing files are
// not an error; variables already set are not overridden.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	cfg.DatabaseURL = strings.TrimSpace(cfg.DatabaseURL)
	if cfg.SMTP.From == "" {
		cfg.SMTP.From = cfg.SMTP.Username
	}
	if cfg.Mail.ContactTo == "" {
		cfg.Mail.ContactTo = cfg.SMTP.From
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Port <= 0 || c.Port >= 65536 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.OTPTTL <= 0 {
		return errors.New("otp_ttl must be positive")
	}
	if c.OTPReapInterval <= 0 {
		return errors.New("otp_reap_interval must be positive")
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("bcrypt_cost %d out of range [%d, %d]", c.BcryptCost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	if c.Mail.Workers < 1 {
		return errors.New("mail.workers must be at least 1")
	}
	if c.Mail.Queue < 0 {
		return errors.New("mail.queue must not be negative")
	}
	if _, err := c.SeedBoards(); err != nil {
		return err
	}
	return nil
}

// SeedBoards parses Boards. A pair without a title uses the id as title.
func (c Config) SeedBoards() ([]BoardSeed, error) {
	out := make([]BoardSeed, 0, len(c.Boards))
	for _, raw := range c.Boards {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		id, title, _ := strings.Cut(raw, ":")
		id = strings.TrimSpace(id)
		title = strings.TrimSpace(title)
		if id == "" {
			return nil, fmt.Errorf("boards: %q has no id", raw)
		}
		if title == "" {
			title = id
		}
		out = append(out, BoardSeed{ID: id, Title: title})
	}
	return out, nil
}

func (c Config) ListenAddr() string {
	return ":" + strconv.Itoa(c.Port)
}

// MailEnabled reports whether SMTP credentials are configured. Without them
// mail is logged instead of sent.
func (c Config) MailEnabled() bool {
	return c.SMTP.Username != ""
}

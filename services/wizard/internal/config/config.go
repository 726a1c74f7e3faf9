package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPath is read when Load is given an empty path.
const ConfigPath = "config.yaml"

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port                        string           `yaml:"port"`
	LogLevel                    string           `yaml:"logLevel"`
	LogsDir                     string           `yaml:"logsDir"`
	RedisAddr                   string           `yaml:"redisAddr"`
	RedisPassword               string           `yaml:"redisPassword"`
	SessionTTL                  string           `yaml:"sessionTTL"`
	RepairAPIURL                string           `yaml:"repairApiURL"`
	AllowedOrigins              []string         `yaml:"allowedOrigins"`
	TrustedProxyCIDRs           []string         `yaml:"trustedProxyCidrs"`
	SignatureRateLimitPerMinute int              `yaml:"signatureRateLimitPerMinute"`
	MaxUploadBytes              int64            `yaml:"maxUploadBytes"`
	Upload                      UploadConfig     `yaml:"upload"`
	Cloudinary                  CloudinaryConfig `yaml:"cloudinary"`
	Minio                       MinioConfig      `yaml:"minio"`
	Calendly                    CalendlyConfig   `yaml:"calendly"`
	Payment                     PaymentConfig    `yaml:"payment"`
}

type UploadConfig struct {
	Backend string   `yaml:"backend"`
	Folder  string   `yaml:"folder"`
	Tags    []string `yaml:"tags"`
}

type CloudinaryConfig struct {
	BaseURL            string `yaml:"baseURL"`
	CloudName          string `yaml:"cloudName"`
	APIKey             string `yaml:"apiKey"`
	APISecret          string `yaml:"apiSecret"`
	SignatureAlgorithm string `yaml:"signatureAlgorithm"`
}

type MinioConfig struct {
	Endpoint      string `yaml:"endpoint"`
	AccessKey     string `yaml:"accessKey"`
	SecretKey     string `yaml:"secretKey"`
	Bucket        string `yaml:"bucket"`
	UseSSL        bool   `yaml:"useSSL"`
	PresignExpiry string `yaml:"presignExpiry"`
}

type CalendlyConfig struct {
	APIURL    string `yaml:"apiURL"`
	Token     string `yaml:"token"`
	WidgetURL string `yaml:"widgetURL"`
}

type PaymentConfig struct {
	APIURL    string `yaml:"apiURL"`
	SecretKey string `yaml:"secretKey"`
}

// Load reads config from path (defaults to config.yaml).
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	applyEnv(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *FileConfig) {
	setString(&cfg.Port, "WIZARD_PORT")
	setString(&cfg.LogLevel, "WIZARD_LOG_LEVEL")
	setString(&cfg.LogsDir, "LOGS_DIR")
	setString(&cfg.SessionTTL, "WIZARD_SESSION_TTL")
	setString(&cfg.RepairAPIURL, "WIZARD_REPAIR_API_URL")
	if v := os.Getenv("WIZARD_ALLOWED_ORIGINS"); v != "" {
		cfg.AllowedOrigins = splitCSV(v)
	}
	if v := os.Getenv("WIZARD_TRUSTED_PROXY_CIDRS"); v != "" {
		cfg.TrustedProxyCIDRs = splitCSV(v)
	}
	if v := os.Getenv("WIZARD_SIGNATURE_RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			cfg.SignatureRateLimitPerMinute = n
		}
	}
	if v := os.Getenv("WIZARD_MAX_UPLOAD_BYTES"); v != "" {
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			cfg.MaxUploadBytes = n
		}
	}
	setString(&cfg.Upload.Backend, "WIZARD_UPLOAD_BACKEND")
	setString(&cfg.Upload.Folder, "WIZARD_UPLOAD_FOLDER")

	setString(&cfg.RedisAddr, "REDIS_ADDR")
	setString(&cfg.RedisPassword, "REDIS_PASSWORD")

	setString(&cfg.Cloudinary.CloudName, "CLOUDINARY_CLOUD_NAME")
	setString(&cfg.Cloudinary.APIKey, "CLOUDINARY_API_KEY")
	setString(&cfg.Cloudinary.APISecret, "CLOUDINARY_API_SECRET")

	setString(&cfg.Minio.Endpoint, "MINIO_ENDPOINT")
	setString(&cfg.Minio.AccessKey, "MINIO_ACCESS_KEY")
	setString(&cfg.Minio.SecretKey, "MINIO_SECRET_KEY")
	setString(&cfg.Minio.Bucket, "MINIO_BUCKET")
	if v := os.Getenv("MINIO_USE_SSL"); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			cfg.Minio.UseSSL = b
		}
	}

	setString(&cfg.Calendly.Token, "CALENDLY_TOKEN")
	setString(&cfg.Calendly.WidgetURL, "CALENDLY_WIDGET_URL")
	setString(&cfg.Payment.SecretKey, "PAYMENT_SECRET_KEY")
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml or WIZARD_PORT)")
	}
	if strings.TrimSpace(cfg.RedisAddr) == "" {
		return errors.New("config: redisAddr is required for sessions and rate limiting")
	}
	if strings.TrimSpace(cfg.RepairAPIURL) == "" {
		return errors.New("config: repairApiURL is required (set in config.yaml or WIZARD_REPAIR_API_URL)")
	}
	if _, err := ParseDuration(cfg.SessionTTL, 0); err != nil {
		return fmt.Errorf("config: sessionTTL: %w", err)
	}
	if cfg.SignatureRateLimitPerMinute < 0 {
		return errors.New("config: signatureRateLimitPerMinute must be >= 0")
	}
	switch strings.ToLower(cfg.Upload.Backend) {
	case "", "cloudinary":
		if cfg.Cloudinary.CloudName == "" || cfg.Cloudinary.APIKey == "" || cfg.Cloudinary.APISecret == "" {
			return errors.New("config: cloudinary cloudName, apiKey and apiSecret are required")
		}
		switch strings.ToLower(cfg.Cloudinary.SignatureAlgorithm) {
		case "", "sha1", "sha256":
		default:
			return fmt.Errorf("config: unsupported cloudinary signatureAlgorithm %q", cfg.Cloudinary.SignatureAlgorithm)
		}
	case "minio":
		if cfg.Minio.Endpoint == "" || cfg.Minio.Bucket == "" {
			return errors.New("config: minio endpoint and bucket are required")
		}
		if _, err := ParseDuration(cfg.Minio.PresignExpiry, 0); err != nil {
			return fmt.Errorf("config: minio presignExpiry: %w", err)
		}
	default:
		return fmt.Errorf("config: unknown upload backend %q", cfg.Upload.Backend)
	}
	if strings.TrimSpace(cfg.Calendly.WidgetURL) == "" {
		return errors.New("config: calendly widgetURL is required")
	}
	return nil
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

// ParseDuration parses an optional duration string, returning fallback when
// it is empty.
func ParseDuration(value string, fallback time.Duration) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", value, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("duration %q must not be negative", value)
	}
	return d, nil
}

package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database    DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	CORS        CORSConfig
	Log         LogConfig
	Bills       BillsConfig
	OTP         OTPConfig
	Mail        MailConfig
	Renderer    RendererConfig
	Institution InstitutionConfig
	Media       MediaConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// BillsConfig governs bill caching and total verification.
type BillsConfig struct {
	CacheEnabled    bool
	CacheTTL        time.Duration
	StrictTotals    bool
	TotalsTolerance float64
}

// OTPConfig sets the lifetime of one-time passcodes per flow.
type OTPConfig struct {
	LoginTTL time.Duration
	ResetTTL time.Duration
}

// MailConfig holds SMTP credentials for outbound mail.
type MailConfig struct {
	Host        string
	Port        int
	Username    string
	Password    string
	FromName    string
	FromAddress string
}

// RendererConfig tunes PDF page layout.
type RendererConfig struct {
	PageSize        string
	MarginMM        float64
	FontFamily      string
	IncludeBankForm bool
}

// InstitutionConfig describes the letterhead printed on every document.
type InstitutionConfig struct {
	Society        string
	College        string
	Address        string
	LogoPath       string
	CurrencySymbol string
	Timezone       string
}

// MediaConfig controls where profile images are stored.
type MediaConfig struct {
	CloudinaryCloudName string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string
	CloudinaryFolder    string
	StorageDir          string
	SignedURLSecret     string
	SignedURLTTL        time.Duration
	MaxFileSizeBytes    int64
}

// CloudinaryEnabled reports whether remote image hosting is configured.
func (m MediaConfig) CloudinaryEnabled() bool {
	return m.CloudinaryCloudName != "" && m.CloudinaryAPIKey != "" && m.CloudinaryAPISecret != ""
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Bills = BillsConfig{
		CacheEnabled:    v.GetBool("BILLS_CACHE_ENABLED"),
		CacheTTL:        parseDuration(v.GetString("BILLS_CACHE_TTL"), 5*time.Minute),
		StrictTotals:    v.GetBool("BILLS_STRICT_TOTALS"),
		TotalsTolerance: v.GetFloat64("BILLS_TOTALS_TOLERANCE"),
	}

	cfg.OTP = OTPConfig{
		LoginTTL: parseDuration(v.GetString("OTP_LOGIN_TTL"), 5*time.Minute),
		ResetTTL: parseDuration(v.GetString("OTP_RESET_TTL"), 10*time.Minute),
	}

	cfg.Mail = MailConfig{
		Host:        v.GetString("SMTP_HOST"),
		Port:        v.GetInt("SMTP_PORT"),
		Username:    v.GetString("SMTP_USERNAME"),
		Password:    v.GetString("SMTP_PASSWORD"),
		FromName:    v.GetString("MAIL_FROM_NAME"),
		FromAddress: v.GetString("MAIL_FROM_ADDRESS"),
	}
	if cfg.Mail.FromAddress == "" {
		cfg.Mail.FromAddress = cfg.Mail.Username
	}

	cfg.Renderer = RendererConfig{
		PageSize:        v.GetString("PDF_PAGE_SIZE"),
		MarginMM:        v.GetFloat64("PDF_MARGIN_MM"),
		FontFamily:      v.GetString("PDF_FONT_FAMILY"),
		IncludeBankForm: v.GetBool("PERSONAL_BILL_INCLUDE_BANK_FORM"),
	}

	cfg.Institution = InstitutionConfig{
		Society:        v.GetString("INSTITUTION_SOCIETY"),
		College:        v.GetString("INSTITUTION_COLLEGE"),
		Address:        v.GetString("INSTITUTION_ADDRESS"),
		LogoPath:       v.GetString("INSTITUTION_LOGO_PATH"),
		CurrencySymbol: v.GetString("INSTITUTION_CURRENCY_SYMBOL"),
		Timezone:       v.GetString("INSTITUTION_TIMEZONE"),
	}

	maxImageSize := v.GetInt64("MEDIA_MAX_FILE_SIZE")
	if maxImageSize <= 0 {
		maxImageSize = 5 * 1024 * 1024
	}
	cfg.Media = MediaConfig{
		CloudinaryCloudName: v.GetString("CLOUDINARY_CLOUD_NAME"),
		CloudinaryAPIKey:    v.GetString("CLOUDINARY_API_KEY"),
		CloudinaryAPISecret: v.GetString("CLOUDINARY_API_SECRET"),
		CloudinaryFolder:    v.GetString("CLOUDINARY_FOLDER"),
		StorageDir:          v.GetString("MEDIA_STORAGE_DIR"),
		SignedURLSecret:     v.GetString("MEDIA_SIGNED_URL_SECRET"),
		SignedURLTTL:        parseDuration(v.GetString("MEDIA_SIGNED_URL_TTL"), 365*24*time.Hour),
		MaxFileSizeBytes:    maxImageSize,
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 5000)
	v.SetDefault("API_PREFIX", "/api")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "staff_remuneration")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("JWT_ISSUER", "staff-remuneration-api")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("BILLS_CACHE_ENABLED", false)
	v.SetDefault("BILLS_CACHE_TTL", "5m")
	v.SetDefault("BILLS_STRICT_TOTALS", false)
	v.SetDefault("BILLS_TOTALS_TOLERANCE", 0.5)

	v.SetDefault("OTP_LOGIN_TTL", "5m")
	v.SetDefault("OTP_RESET_TTL", "10m")

	v.SetDefault("SMTP_HOST", "smtp.gmail.com")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_USERNAME", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("MAIL_FROM_NAME", "Staff Remuneration")
	v.SetDefault("MAIL_FROM_ADDRESS", "")

	v.SetDefault("PDF_PAGE_SIZE", "A4")
	v.SetDefault("PDF_MARGIN_MM", 10)
	v.SetDefault("PDF_FONT_FAMILY", "Times")
	v.SetDefault("PERSONAL_BILL_INCLUDE_BANK_FORM", true)

	v.SetDefault("INSTITUTION_SOCIETY", "Progressive Education Society")
	v.SetDefault("INSTITUTION_COLLEGE", "Modern College of Arts, Science and Commerce (Autonomous)")
	v.SetDefault("INSTITUTION_ADDRESS", "Ganeshkhind, Pune - 411016")
	v.SetDefault("INSTITUTION_LOGO_PATH", "")
	v.SetDefault("INSTITUTION_CURRENCY_SYMBOL", "Rs.")
	v.SetDefault("INSTITUTION_TIMEZONE", "Asia/Kolkata")

	v.SetDefault("CLOUDINARY_FOLDER", "profiles")
	v.SetDefault("MEDIA_STORAGE_DIR", "./media")
	v.SetDefault("MEDIA_SIGNED_URL_SECRET", "dev_media_secret")
	v.SetDefault("MEDIA_SIGNED_URL_TTL", "8760h")
	v.SetDefault("MEDIA_MAX_FILE_SIZE", 5*1024*1024)
}

// isMissingFile treats an absent .env as optional; viper reports it as a
// path error when SetConfigFile is used.
func isMissingFile(err error) bool {
	return strings.Contains(err.Error(), "no such file or directory") ||
		strings.Contains(err.Error(), "cannot find the file")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

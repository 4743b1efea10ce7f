package config

import (
	"errors"
	"fmt"
	"io/fs"
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
	Env           string
	Port          int
	APIPrefix     string
	PublicBaseURL string

	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	CORS       CORSConfig
	Log        LogConfig
	Attendance AttendanceConfig
	Notify     NotifyConfig
	SMTP       SMTPConfig
	SMS        SMSConfig
	Badges     BadgesConfig
	Summary    SummaryConfig
	Bootstrap  BootstrapConfig
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
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// AttendanceConfig holds the time-of-day windows used by the policy engine.
// Window bounds are expressed as offsets from local midnight.
type AttendanceConfig struct {
	Location          *time.Location
	OnTimeStart       time.Duration
	OnTimeEnd         time.Duration
	LateEnd           time.Duration
	CheckOutStart     time.Duration
	CheckOutEnd       time.Duration
	AllowTimeOverride bool
}

// NotifyConfig controls how notifications are dispatched.
type NotifyConfig struct {
	Async     bool
	Workers   int
	QueueSize int
	Timeout   time.Duration
}

// SMTPConfig configures the email channel. Port 465 uses implicit TLS.
type SMTPConfig struct {
	Server    string
	Port      int
	User      string
	Password  string
	FromEmail string
	FromName  string
}

// Configured reports whether credentials were supplied.
func (c SMTPConfig) Configured() bool {
	return c.User != "" && c.Password != ""
}

// SMSConfig configures the RapidAPI backed SMS channel.
type SMSConfig struct {
	Enabled     bool
	RapidAPIKey string
	Host        string
	Sender      string
}

// BadgesConfig configures QR badge storage and public download links.
type BadgesConfig struct {
	StorageDir      string
	SignedURLSecret string
	SignedURLTTL    time.Duration
}

// SummaryConfig governs caching of attendance summaries.
type SummaryConfig struct {
	CacheEnabled bool
	CacheTTL     time.Duration
}

type BootstrapConfig struct {
	SuperAdminUsername string
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
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")
	cfg.PublicBaseURL = strings.TrimRight(v.GetString("PUBLIC_BASE_URL"), "/")

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
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	attendance, err := loadAttendance(v)
	if err != nil {
		return nil, err
	}
	// Time overrides exist for station testing only.
	if cfg.Env == EnvProduction {
		attendance.AllowTimeOverride = false
	}
	cfg.Attendance = attendance

	workers := v.GetInt("NOTIFY_WORKERS")
	if workers <= 0 {
		workers = 1
	}
	cfg.Notify = NotifyConfig{
		Async:     v.GetBool("NOTIFY_ASYNC"),
		Workers:   workers,
		QueueSize: v.GetInt("NOTIFY_QUEUE_SIZE"),
		Timeout:   parseDuration(v.GetString("NOTIFY_TIMEOUT"), 30*time.Second),
	}

	cfg.SMTP = SMTPConfig{
		Server:    v.GetString("SMTP_SERVER"),
		Port:      v.GetInt("SMTP_PORT"),
		User:      v.GetString("SMTP_USER"),
		Password:  v.GetString("SMTP_PASS"),
		FromEmail: v.GetString("FROM_EMAIL"),
		FromName:  v.GetString("FROM_NAME"),
	}
	if cfg.SMTP.FromEmail == "" {
		cfg.SMTP.FromEmail = cfg.SMTP.User
	}

	cfg.SMS = SMSConfig{
		Enabled:     v.GetBool("SMS_ENABLED"),
		RapidAPIKey: v.GetString("RAPIDAPI_KEY"),
		Host:        v.GetString("RAPIDAPI_SMS_HOST"),
		Sender:      v.GetString("SMS_SENDER"),
	}

	cfg.Badges = BadgesConfig{
		StorageDir:      v.GetString("BADGES_STORAGE_DIR"),
		SignedURLSecret: v.GetString("BADGES_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("BADGES_SIGNED_URL_TTL"), 24*time.Hour),
	}

	cfg.Summary = SummaryConfig{
		CacheEnabled: v.GetBool("ENABLE_SUMMARY_CACHE"),
		CacheTTL:     parseDuration(v.GetString("SUMMARY_CACHE_TTL"), 2*time.Minute),
	}

	cfg.Bootstrap = BootstrapConfig{
		SuperAdminUsername: strings.TrimSpace(v.GetString("BOOTSTRAP_SUPERADMIN_USERNAME")),
	}

	return cfg, nil
}

func loadAttendance(v *viper.Viper) (AttendanceConfig, error) {
	loc := time.Local
	if name := strings.TrimSpace(v.GetString("ATTENDANCE_TIMEZONE")); name != "" {
		parsed, err := time.LoadLocation(name)
		if err != nil {
			return AttendanceConfig{}, fmt.Errorf("load attendance timezone %q: %w", name, err)
		}
		loc = parsed
	}

	cfg := AttendanceConfig{Location: loc, AllowTimeOverride: v.GetBool("ATTENDANCE_ALLOW_TIME_OVERRIDE")}
	fields := []struct {
		key    string
		target *time.Duration
	}{
		{"ATTENDANCE_ON_TIME_START", &cfg.OnTimeStart},
		{"ATTENDANCE_ON_TIME_END", &cfg.OnTimeEnd},
		{"ATTENDANCE_LATE_END", &cfg.LateEnd},
		{"ATTENDANCE_CHECKOUT_START", &cfg.CheckOutStart},
		{"ATTENDANCE_CHECKOUT_END", &cfg.CheckOutEnd},
	}
	for _, f := range fields {
		d, err := ParseTimeOfDay(v.GetString(f.key))
		if err != nil {
			return AttendanceConfig{}, fmt.Errorf("%s: %w", f.key, err)
		}
		*f.target = d
	}

	if cfg.OnTimeStart > cfg.OnTimeEnd || cfg.OnTimeEnd > cfg.LateEnd {
		return AttendanceConfig{}, errors.New("attendance windows must satisfy on_time_start <= on_time_end <= late_end")
	}
	if cfg.CheckOutStart > cfg.CheckOutEnd {
		return AttendanceConfig{}, errors.New("attendance checkout window start must not be after its end")
	}
	return cfg, nil
}

// ParseTimeOfDay converts "15:04" or "15:04:05" into an offset from midnight.
func ParseTimeOfDay(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range []string{"15:04:05", "15:04"} {
		t, err := time.Parse(layout, raw)
		if err == nil {
			return time.Duration(t.Hour())*time.Hour +
				time.Duration(t.Minute())*time.Minute +
				time.Duration(t.Second())*time.Second, nil
		}
	}
	return 0, fmt.Errorf("invalid time of day %q", raw)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")
	v.SetDefault("PUBLIC_BASE_URL", "http://localhost:8080")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "teacher_attendance")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ATTENDANCE_TIMEZONE", "")
	v.SetDefault("ATTENDANCE_ON_TIME_START", "06:00")
	v.SetDefault("ATTENDANCE_ON_TIME_END", "07:00")
	v.SetDefault("ATTENDANCE_LATE_END", "10:00")
	v.SetDefault("ATTENDANCE_CHECKOUT_START", "14:00")
	v.SetDefault("ATTENDANCE_CHECKOUT_END", "18:00")
	v.SetDefault("ATTENDANCE_ALLOW_TIME_OVERRIDE", false)

	v.SetDefault("NOTIFY_ASYNC", false)
	v.SetDefault("NOTIFY_WORKERS", 2)
	v.SetDefault("NOTIFY_QUEUE_SIZE", 100)
	v.SetDefault("NOTIFY_TIMEOUT", "30s")

	v.SetDefault("SMTP_SERVER", "smtp.gmail.com")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_USER", "")
	v.SetDefault("SMTP_PASS", "")
	v.SetDefault("FROM_EMAIL", "")
	v.SetDefault("FROM_NAME", "Teachers Attendance System")

	v.SetDefault("SMS_ENABLED", false)
	v.SetDefault("RAPIDAPI_KEY", "")
	v.SetDefault("RAPIDAPI_SMS_HOST", "sms-service.p.rapidapi.com")
	v.SetDefault("SMS_SENDER", "Attendance")

	v.SetDefault("BADGES_STORAGE_DIR", "./static/qr_codes")
	v.SetDefault("BADGES_SIGNED_URL_SECRET", "dev_badges_secret")
	v.SetDefault("BADGES_SIGNED_URL_TTL", "24h")

	v.SetDefault("ENABLE_SUMMARY_CACHE", true)
	v.SetDefault("SUMMARY_CACHE_TTL", "2m")

	v.SetDefault("BOOTSTRAP_SUPERADMIN_USERNAME", "")
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

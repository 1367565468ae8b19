package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort string
	AppEnv  string

	// StorageBackend selects "dynamo" or "memory". Memory is for local dev
	// and single-process test deployments only.
	StorageBackend string

	// DevFixturesPath points at a JSON file with activities and staff
	// users. The memory backend serves them directly; the dynamo backend
	// seeds its tables from them at startup. Empty disables both.
	DevFixturesPath string

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables
	S3BucketName   string

	ActivityTokenPrivateKeyPath string // empty when this instance only verifies
	ActivityTokenPublicKeyPath  string

	CodeTTL          time.Duration
	CodeResendWindow time.Duration
	CodeMaxAttempts  int
	SessionTTL       time.Duration
	AppTokenTTL      time.Duration
	ReservationTTL   time.Duration
	DesktopTokenTTL  time.Duration

	RequestCodePerHour     int
	StaffLoginPerHour      int
	DesktopValidatePerHour int
	SweepInterval          time.Duration

	SMTPHost     string
	SMTPPort     string
	SMTPFrom     string
	SMTPUsername string
	SMTPPassword string

	AllowedOrigins []string // CORS allowed origins
}

// DynamoTables holds the DynamoDB table name for each record collection.
type DynamoTables struct {
	StaffUsers        string
	Activities        string
	Sessions          string
	VerificationCodes string
	Reservations      string
	AppTokens         string
	DesktopTokens     string
	DesktopTokenIndex string
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort: getEnv("APP_PORT", "3000"),
		AppEnv:  getEnv("APP_ENV", "development"),

		StorageBackend:  getEnv("STORAGE_BACKEND", "dynamo"),
		DevFixturesPath: getEnv("DEV_FIXTURES_PATH", ""),

		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			StaffUsers:        getEnv("DYNAMO_TABLE_STAFF_USERS", "staff_users"),
			Activities:        getEnv("DYNAMO_TABLE_ACTIVITIES", "activities"),
			Sessions:          getEnv("DYNAMO_TABLE_SESSIONS", "sessions"),
			VerificationCodes: getEnv("DYNAMO_TABLE_VERIFICATION_CODES", "verification_codes"),
			Reservations:      getEnv("DYNAMO_TABLE_RESERVATIONS", "upload_reservations"),
			AppTokens:         getEnv("DYNAMO_TABLE_APP_TOKENS", "app_tokens"),
			DesktopTokens:     getEnv("DYNAMO_TABLE_DESKTOP_TOKENS", "desktop_tokens"),
			DesktopTokenIndex: getEnv("DYNAMO_TABLE_DESKTOP_TOKEN_INDEX", "desktop_token_subjects"),
		},
		S3BucketName: getEnv("S3_BUCKET_NAME", "lab-activity-uploads"),

		ActivityTokenPrivateKeyPath: getEnv("ACTIVITY_TOKEN_PRIVATE_KEY_PATH", ""),
		ActivityTokenPublicKeyPath:  getEnv("ACTIVITY_TOKEN_PUBLIC_KEY_PATH", "./activity_token_public.pem"),

		CodeTTL:          getEnvSeconds("CODE_TTL_SECONDS", 1200),
		CodeResendWindow: getEnvSeconds("CODE_RESEND_WINDOW_SECONDS", 60),
		CodeMaxAttempts:  getEnvInt("CODE_MAX_ATTEMPTS", 5),
		SessionTTL:       getEnvSeconds("SESSION_TTL_SECONDS", 7200),
		AppTokenTTL:      getEnvSeconds("APP_TOKEN_TTL_SECONDS", 14400),
		ReservationTTL:   getEnvSeconds("RESERVATION_TTL_SECONDS", 300),
		DesktopTokenTTL:  getEnvSeconds("DESKTOP_TOKEN_TTL_SECONDS", int(365*24*time.Hour/time.Second)),

		RequestCodePerHour:     getEnvInt("REQUEST_CODE_PER_HOUR", 10),
		StaffLoginPerHour:      getEnvInt("STAFF_LOGIN_PER_HOUR", 10),
		DesktopValidatePerHour: getEnvInt("DESKTOP_VALIDATE_PER_HOUR", 20),
		SweepInterval:          getEnvSeconds("SWEEP_INTERVAL_SECONDS", 60),

		SMTPHost:     getEnv("SMTP_HOST", "localhost"),
		SMTPPort:     getEnv("SMTP_PORT", "1025"),
		SMTPFrom:     getEnv("SMTP_FROM", "noreply@example.com"),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),

		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvSeconds(key string, fallback int) time.Duration {
	return time.Duration(getEnvInt(key, fallback)) * time.Second
}

package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Environments in which the raw OTP may be echoed back to the caller or logged.
// Anything else, including an unset APP_ENV, is treated as production.
var nonProductionEnvs = map[string]bool{
	"development": true,
	"local":       true,
	"test":        true,
}

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort string
	AppEnv  string

	OTPTTL         time.Duration
	OTPMaxAttempts int
	OTPStore       string // "memory" | "redis" | "dynamo"
	OTPDelivery    string // "smtp" | "sns" | "log"

	ProfileStore string // "dynamo" | "postgres" | "memory"
	AccountStore string // "dynamo" | "memory"

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	DatabaseURL string

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables
	S3BucketName   string
	SNSTopicARN    string

	JWTPrivateKeyPath string
	JWTPublicKeyPath  string
	JWTExpiry         time.Duration

	SMTPHost     string
	SMTPPort     string
	SMTPFrom     string
	SMTPUsername string
	SMTPPassword string

	AllowedOrigins []string // CORS allowed origins
	// TrustProxy takes the client address from X-Forwarded-For/X-Real-IP.
	// Only enable behind a proxy that overwrites those headers.
	TrustProxy bool
	Routes         Routes
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Profiles      string
	ProfileEmails string
	Accounts      string
	OTPCodes      string
}

// Routes are the frontend paths the redirect decision points clients to.
type Routes struct {
	Proof    string
	Complete string
	Home     string
}

// IsProduction reports whether secrets such as OTP codes must stay hidden.
func (c *Config) IsProduction() bool {
	return !nonProductionEnvs[strings.ToLower(c.AppEnv)]
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort: getEnv("APP_PORT", "3000"),
		AppEnv:  getEnv("APP_ENV", "production"),

		OTPTTL:         getEnvDuration("OTP_TTL", 10*time.Minute),
		OTPMaxAttempts: getEnvInt("OTP_MAX_ATTEMPTS", 5),
		OTPStore:       getEnv("OTP_STORE", "memory"),
		OTPDelivery:    getEnv("OTP_DELIVERY", "smtp"),

		ProfileStore: getEnv("PROFILE_STORE", "dynamo"),
		AccountStore: getEnv("ACCOUNT_STORE", "dynamo"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Profiles:      getEnv("DYNAMO_TABLE_PROFILES", "profiles"),
			ProfileEmails: getEnv("DYNAMO_TABLE_PROFILE_EMAILS", "profile_emails"),
			Accounts:      getEnv("DYNAMO_TABLE_ACCOUNTS", "accounts"),
			OTPCodes:      getEnv("DYNAMO_TABLE_OTP_CODES", "otp_codes"),
		},
		S3BucketName: getEnv("S3_BUCKET_NAME", "alumni-avatars"),
		SNSTopicARN:  getEnv("SNS_TOPIC_ARN", ""),

		JWTPrivateKeyPath: getEnv("JWT_PRIVATE_KEY_PATH", "./private_key.pem"),
		JWTPublicKeyPath:  getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		JWTExpiry:         getEnvDuration("JWT_EXPIRY", 7*24*time.Hour),

		SMTPHost:     getEnv("SMTP_HOST", "localhost"),
		SMTPPort:     getEnv("SMTP_PORT", "1025"),
		SMTPFrom:     getEnv("SMTP_FROM", "noreply@example.com"),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),

		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
		TrustProxy:     getEnvBool("TRUST_PROXY", false),
		Routes: Routes{
			Proof:    getEnv("PROOF_PATH", "/login"),
			Complete: getEnv("COMPLETE_PATH", "/complete-profile"),
			Home:     getEnv("HOME_PATH", "/dashboard"),
		},
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

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

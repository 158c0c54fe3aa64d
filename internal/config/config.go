package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port               string
	Env                string
	LogLevel           string
	ClinicName         string
	ClinicTZ           string
	CORSAllowedOrigins []string

	// Local document store (appointments, contacts, rules, triage)
	DatabaseURL string

	// Legacy practice-management database (read-only system of record)
	LegacyDatabaseURL string
	SyncInterval      time.Duration
	SyncBatchSize     int
	SyncRecordDelay   time.Duration

	// Google Sheets ledger
	SheetsSpreadsheetID   string
	SheetsCredentialsJSON string
	SheetsTabName         string
	SheetsTimeout         time.Duration
	SheetsMaxRetries      int
	SheetsRetryBackoff    time.Duration

	// Messaging gateway (outbound patient texts)
	GatewayBaseURL     string
	GatewayAPIKey      string
	GatewayFromNumber  string
	GatewayTimeout     time.Duration
	GatewayMaxRetries  int
	GatewayRetryDelay  time.Duration
	UseMemoryQueue     bool
	OutboundQueueURL   string
	DispatchBatchSize  int

	// Send journal (DynamoDB audit of every outbound attempt)
	SendJournalTable string

	// AWS
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// Staff alert email
	EmailProvider     string
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	SESFromEmail      string
	SESFromName       string
	AlertRecipients   []string

	// Urgency dashboard cache
	RedisAddr     string
	RedisPassword string

	// Optional LLM assist for specialty detection
	GeminiAPIKey   string
	GeminiModelID  string
	BedrockModelID string
	LLMTimeout     time.Duration
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:       getEnv("PORT", "8080"),
		Env:        getEnv("ENV", "development"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		ClinicName: getEnv("CLINIC_NAME", "Clínica Dental"),
		ClinicTZ:   getEnv("CLINIC_TIMEZONE", "Europe/Madrid"),

		CORSAllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		LegacyDatabaseURL: getEnv("LEGACY_DATABASE_URL", ""),
		SyncInterval:      getEnvAsDuration("SYNC_INTERVAL", 5*time.Minute),
		SyncBatchSize:     getEnvAsInt("SYNC_BATCH_SIZE", 20),
		SyncRecordDelay:   getEnvAsDuration("SYNC_RECORD_DELAY", 200*time.Millisecond),

		SheetsSpreadsheetID:   getEnv("SHEETS_SPREADSHEET_ID", ""),
		SheetsCredentialsJSON: getEnv("SHEETS_CREDENTIALS_JSON", ""),
		SheetsTabName:         getEnv("SHEETS_TAB_NAME", "Citas"),
		SheetsTimeout:         getEnvAsDuration("SHEETS_TIMEOUT", 15*time.Second),
		SheetsMaxRetries:      getEnvAsInt("SHEETS_MAX_RETRIES", 3),
		SheetsRetryBackoff:    getEnvAsDuration("SHEETS_RETRY_BACKOFF", 500*time.Millisecond),

		GatewayBaseURL:    getEnv("GATEWAY_BASE_URL", ""),
		GatewayAPIKey:     getEnv("GATEWAY_API_KEY", ""),
		GatewayFromNumber: getEnv("GATEWAY_FROM_NUMBER", ""),
		GatewayTimeout:    getEnvAsDuration("GATEWAY_TIMEOUT", 10*time.Second),
		GatewayMaxRetries: getEnvAsInt("GATEWAY_MAX_RETRIES", 3),
		GatewayRetryDelay: getEnvAsDuration("GATEWAY_RETRY_DELAY", 250*time.Millisecond),
		UseMemoryQueue:    getEnvAsBool("USE_MEMORY_QUEUE", false),
		OutboundQueueURL:  getEnv("OUTBOUND_QUEUE_URL", ""),
		DispatchBatchSize: getEnvAsInt("DISPATCH_BATCH_SIZE", 10),

		SendJournalTable: getEnv("SEND_JOURNAL_TABLE", ""),

		AWSRegion:           getEnv("AWS_REGION", "eu-west-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		EmailProvider:     strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", "sendgrid"))),
		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "Clínica Dental"),
		SESFromEmail:      getEnv("SES_FROM_EMAIL", ""),
		SESFromName:       getEnv("SES_FROM_NAME", "Clínica Dental"),
		AlertRecipients:   getEnvAsSlice("ALERT_RECIPIENTS"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		GeminiAPIKey:   getEnv("GEMINI_API_KEY", ""),
		GeminiModelID:  getEnv("GEMINI_MODEL_ID", "gemini-2.5-flash"),
		BedrockModelID: getEnv("BEDROCK_MODEL_ID", ""),
		LLMTimeout:     getEnvAsDuration("LLM_TIMEOUT", 8*time.Second),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsSlice(key string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Server
	ServerPort        string
	ServerHost        string
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	MaxRequestBody    int64
	InboundReqsPerMin int

	// Per-service ports
	MatchingServicePort   string
	ExtractionServicePort string

	// Database
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Kafka
	KafkaBrokers    []string
	KafkaGroupID    string
	MatchEventTopic string

	// Trial registry
	RegistryBaseURL        string
	RegistryRequestTimeout time.Duration
	RegistryRequestsPerMin int
	RegistryBurstLimit     int
	RegistryCacheTTL       time.Duration
	RegistryMaxRetries     int
	RegistryRetryBaseDelay time.Duration

	// AI providers. Each key is validated at the call site that needs it,
	// so a missing key fails that operation rather than the process.
	TranscriptionAPIKey  string
	TranscriptionBaseURL string
	ExtractionAPIKey     string
	ExtractionModel      string
	ReportAPIKey         string
	ReportModel          string

	// Extraction
	ConditionRulesPath string
}

func Load() *Config {
	return &Config{
		ServerPort:        getEnv("SERVER_PORT", "8080"),
		ServerHost:        getEnv("SERVER_HOST", "0.0.0.0"),
		ReadTimeout:       getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:      getDuration("WRITE_TIMEOUT", 30*time.Second),
		MaxRequestBody:    int64(getIntEnv("MAX_REQUEST_BODY_BYTES", 4*1024*1024)),
		InboundReqsPerMin: getIntEnv("INBOUND_REQUESTS_PER_MINUTE", 600),

		MatchingServicePort:   getEnv("MATCHING_SERVICE_PORT", "8081"),
		ExtractionServicePort: getEnv("EXTRACTION_SERVICE_PORT", "8082"),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "trialscout"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "trialscout123"),
		PostgresDB:       getEnv("POSTGRES_DB", "trialscout"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),

		KafkaBrokers:    getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
		KafkaGroupID:    getEnv("KAFKA_GROUP_ID", "trialscout-platform"),
		MatchEventTopic: getEnv("MATCH_EVENT_TOPIC", "trial-match-events"),

		RegistryBaseURL:        getEnv("REGISTRY_BASE_URL", "https://clinicaltrials.gov/api/v2"),
		RegistryRequestTimeout: getDuration("REGISTRY_REQUEST_TIMEOUT", 15*time.Second),
		RegistryRequestsPerMin: getIntEnv("REGISTRY_REQUESTS_PER_MINUTE", 100),
		RegistryBurstLimit:     getIntEnv("REGISTRY_BURST_LIMIT", 20),
		RegistryCacheTTL:       getDuration("REGISTRY_CACHE_TTL", 10*time.Minute),
		RegistryMaxRetries:     getIntEnv("REGISTRY_MAX_RETRIES", 3),
		RegistryRetryBaseDelay: getDuration("REGISTRY_RETRY_BASE_DELAY", time.Second),

		TranscriptionAPIKey:  getEnv("TRANSCRIPTION_API_KEY", ""),
		TranscriptionBaseURL: getEnv("TRANSCRIPTION_BASE_URL", "https://api.assemblyai.com/v2"),
		ExtractionAPIKey:     getEnv("EXTRACTION_API_KEY", ""),
		ExtractionModel:      getEnv("EXTRACTION_MODEL", "claude-sonnet-4-20250514"),
		ReportAPIKey:         getEnv("REPORT_API_KEY", ""),
		ReportModel:          getEnv("REPORT_MODEL", "claude-sonnet-4-20250514"),

		ConditionRulesPath: getEnv("CONDITION_RULES_PATH", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getStringSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return []string{value}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

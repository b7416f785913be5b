package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Server
	ServerPort        string
	ServerHost        string
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	MaxRequestBody    int64
	CORSAllowedOrigin string

	// Models
	ModelDir       string
	PanelsFile     string
	OnnxRuntimeLib string

	// Voice
	WhisperURL         string
	WhisperAPI         string
	WhisperAPIKey      string
	WhisperModelPath   string
	WhisperLanguage    string
	WhisperTimeout     time.Duration
	VoiceListenTimeout time.Duration
	VoicePhraseLimit   time.Duration
	VoiceRateLimit     int
	VoiceRateBurst     int

	// Sessions
	SessionBackend   string
	SessionTTL       time.Duration
	SessionKeyPrefix string
	SessionSecure    bool

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Audit trail
	AuditEnabled     bool
	RecordTimeout    time.Duration
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Kafka
	KafkaBrokers         []string
	KafkaPredictionTopic string
	KafkaGroupID         string
}

func Load() *Config {
	return &Config{
		ServerPort:        getEnv("SERVER_PORT", "8080"),
		ServerHost:        getEnv("SERVER_HOST", "0.0.0.0"),
		ReadTimeout:       getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:      getDuration("WRITE_TIMEOUT", 60*time.Second),
		MaxRequestBody:    int64(getIntEnv("MAX_REQUEST_BODY_BYTES", 10*1024*1024)),
		CORSAllowedOrigin: getEnv("CORS_ALLOWED_ORIGIN", "*"),

		ModelDir:       getEnv("MODEL_DIR", defaultModelDir()),
		PanelsFile:     getEnv("PANELS_FILE", ""),
		OnnxRuntimeLib: getEnv("ONNXRUNTIME_LIB", ""),

		WhisperURL:         getEnv("WHISPER_URL", "http://localhost:8178"),
		WhisperAPI:         getEnv("WHISPER_API", "whispercpp"),
		WhisperAPIKey:      getEnv("WHISPER_API_KEY", ""),
		WhisperModelPath:   getEnv("WHISPER_MODEL_PATH", ""),
		WhisperLanguage:    getEnv("WHISPER_LANGUAGE", "en"),
		WhisperTimeout:     getDuration("WHISPER_TIMEOUT", 30*time.Second),
		VoiceListenTimeout: getDuration("VOICE_LISTEN_TIMEOUT", 5*time.Second),
		VoicePhraseLimit:   getDuration("VOICE_PHRASE_LIMIT", 15*time.Second),
		VoiceRateLimit:     getIntEnv("VOICE_RATE_LIMIT", 5),
		VoiceRateBurst:     getIntEnv("VOICE_RATE_BURST", 10),

		SessionBackend:   getEnv("SESSION_BACKEND", "memory"),
		SessionTTL:       getDuration("SESSION_TTL", 12*time.Hour),
		SessionKeyPrefix: getEnv("SESSION_KEY_PREFIX", "predictform:"),
		SessionSecure:    getBoolEnv("SESSION_COOKIE_SECURE", false),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),

		AuditEnabled:     getBoolEnv("AUDIT_ENABLED", false),
		RecordTimeout:    getDuration("RECORD_TIMEOUT", 2*time.Second),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "predictform"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", ""),
		PostgresDB:       getEnv("POSTGRES_DB", "predictform"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		KafkaBrokers:         getStringSliceEnv("KAFKA_BROKERS", nil),
		KafkaPredictionTopic: getEnv("KAFKA_PREDICTION_TOPIC", "predictions.completed"),
		KafkaGroupID:         getEnv("KAFKA_GROUP_ID", "prediction-audit"),
	}
}

// defaultModelDir resolves saved_models/ next to the running executable.
func defaultModelDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "saved_models"
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Join(filepath.Dir(exe), "saved_models")
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

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getStringSliceEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr  string
	JWTSecret string
	LogLevel  string

	// HealMe backend
	BackendBaseURL        string
	BackendToken          string
	PollInterval          time.Duration
	RequestTimeout        time.Duration
	ConversationPath      string
	ConversationAltPath   string
	LegacyMessagesPath    string
	SendMessagePath       string
	LegacySendMessagePath string
	TherapistsPath        string
	PatientsPath          string
	TherapistInboxPath    string

	// local echo ledger, disabled when empty
	DBDSN string

	// view events, disabled when RedisAddr is empty
	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	RedisChannelPrefix string

	// echo outbox, disabled when RabbitURL is empty
	RabbitURL   string
	RabbitQueue string
}

// Load reads the environment. A .env file in the working directory is loaded
// first when present; real environment variables win.
func Load() Config {
	_ = godotenv.Load(".env")

	httpAddr := os.Getenv("HTTP_ADDR")
	if httpAddr == "" {
		httpAddr = ":8080"
	}

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "dev-secret-change-me"
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}

	baseURL := os.Getenv("BACKEND_BASE_URL")
	if baseURL == "" {
		baseURL = "http://127.0.0.1:8000"
	}

	redisDB := 0
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			redisDB = n
		}
	}
	redisPrefix := os.Getenv("REDIS_CHANNEL_PREFIX")
	if redisPrefix == "" {
		redisPrefix = "healme:chat"
	}

	rabbitQueue := os.Getenv("RABBIT_QUEUE")
	if rabbitQueue == "" {
		rabbitQueue = "chat_local_echoes"
	}

	return Config{
		HTTPAddr:  httpAddr,
		JWTSecret: secret,
		LogLevel:  logLevel,

		BackendBaseURL:        baseURL,
		BackendToken:          os.Getenv("BACKEND_TOKEN"),
		PollInterval:          millis("POLL_INTERVAL_MS", 3000),
		RequestTimeout:        millis("REQUEST_TIMEOUT_MS", 10000),
		ConversationPath:      os.Getenv("BACKEND_CONVERSATION_PATH"),
		ConversationAltPath:   os.Getenv("BACKEND_CONVERSATION_ALT_PATH"),
		LegacyMessagesPath:    os.Getenv("BACKEND_LEGACY_MESSAGES_PATH"),
		SendMessagePath:       os.Getenv("BACKEND_SEND_MESSAGE_PATH"),
		LegacySendMessagePath: os.Getenv("BACKEND_LEGACY_SEND_PATH"),
		TherapistsPath:        os.Getenv("BACKEND_THERAPISTS_PATH"),
		PatientsPath:          os.Getenv("BACKEND_PATIENTS_PATH"),
		TherapistInboxPath:    os.Getenv("BACKEND_THERAPIST_INBOX_PATH"),

		DBDSN: os.Getenv("DB_DSN"),

		RedisAddr:          os.Getenv("REDIS_ADDR"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		RedisDB:            redisDB,
		RedisChannelPrefix: redisPrefix,

		RabbitURL:   os.Getenv("RABBIT_URL"),
		RabbitQueue: rabbitQueue,
	}
}

func millis(key string, def int) time.Duration {
	n := def
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			n = parsed
		}
	}
	return time.Duration(n) * time.Millisecond
}

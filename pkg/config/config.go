package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Auth providers accepted in AUTH_PROVIDER
const (
	AuthProviderJWT      = "jwt"
	AuthProviderFirebase = "firebase"
)

type Config struct {
	Port                    string
	Env                     string
	PostgresConnStr         string
	MongoURI                string
	MongoDatabase           string
	AuthProvider            string
	JWTSecret               string
	FirebaseCredentialsPath string

	WSPingInterval     time.Duration
	WSSendBuffer       int
	WSEventsPerSecond  float64
	RateLimitPerMinute int64
}

// Load reads the configuration from the environment, loading .env first if present
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, assuming environment variables are set.")
	}

	return &Config{
		Port:                    getEnv("PORT", "8080"),
		Env:                     getEnv("ENV", "development"),
		PostgresConnStr:         getEnv("POSTGRES_CONN_STR", ""),
		MongoURI:                getEnv("MONGO_URI", ""),
		MongoDatabase:           getEnv("MONGO_DATABASE", "stackit"),
		AuthProvider:            getEnv("AUTH_PROVIDER", AuthProviderJWT),
		JWTSecret:               getEnv("JWT_SECRET", ""),
		FirebaseCredentialsPath: getEnv("FIREBASE_CREDENTIALS_PATH", "./firebase_credentials.json"),
		WSPingInterval:          getEnvDuration("WS_PING_INTERVAL", 25*time.Second),
		WSSendBuffer:            getEnvInt("WS_SEND_BUFFER", 64),
		WSEventsPerSecond:       getEnvFloat("WS_EVENTS_PER_SECOND", 20),
		RateLimitPerMinute:      int64(getEnvInt("RATE_LIMIT_PER_MINUTE", 60)),
	}
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil && v > 0 {
		return v
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil && v > 0 {
		return v
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil && v > 0 {
		return v
	}
	return defaultValue
}

package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	// Application
	Version     string
	Environment string
	StationID   string
	Port        int
	LogLevel    string

	// Directories
	DataDir   string
	ModelsDir string
	ConfigDir string
	LogsDir   string
	PublicDir string

	// Logdy (lightweight web log viewer)
	LogdyEnabled bool
	LogdyHost    string
	LogdyPort    int

	// Inference service (TorchServe)
	PredictionServiceURL string
	PredictTimeout       time.Duration
	PingTimeout          time.Duration

	// Camera
	CameraIndex  int
	CameraWidth  int
	CameraHeight int
	CameraFPS    int

	// Collection scheduler
	CollectionTickInterval time.Duration

	// NATS event publishing (optional)
	NatsEnabled        bool
	NatsURL            string
	NatsConnectTimeout time.Duration
	NatsReconnectWait  time.Duration
	NatsMaxReconnects  int

	// Graceful Shutdown
	ShutdownTimeout time.Duration
}

func Load() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("No .env file found, using environment variables and defaults")
	} else {
		log.Info().Msg("Loaded configuration from .env file")
	}

	dataDir := getEnv("DATA_DIR", "./data")

	return &Config{
		// Application
		Version:     getEnv("VERSION", "1.0.0"),
		Environment: getEnv("ENVIRONMENT", "development"),
		StationID:   getEnv("STATION_ID", "station-1"),
		Port:        getEnvInt("PORT", 8082),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		// Directories
		DataDir:   dataDir,
		ModelsDir: getEnv("MODELS_DIR", filepath.Join(dataDir, "models")),
		ConfigDir: getEnv("CONFIG_DIR", filepath.Join(dataDir, "config")),
		LogsDir:   getEnv("LOGS_DIR", filepath.Join(dataDir, "logs")),
		PublicDir: getEnv("PUBLIC_DIR", "./public"),

		// Logdy
		LogdyEnabled: getEnvBool("LOGDY_ENABLED", false),
		LogdyHost:    getEnv("LOGDY_HOST", "localhost"),
		LogdyPort:    getEnvInt("LOGDY_PORT", 8080),

		// Inference service
		PredictionServiceURL: getEnv("PREDICTION_SERVICE_URL", "http://localhost:8080"),
		PredictTimeout:       getEnvDuration("PREDICT_TIMEOUT", 120*time.Second),
		PingTimeout:          getEnvDuration("PING_TIMEOUT", 5*time.Second),

		// Camera
		CameraIndex:  getEnvInt("CAMERA_INDEX", 0),
		CameraWidth:  getEnvInt("CAMERA_WIDTH", 1280),
		CameraHeight: getEnvInt("CAMERA_HEIGHT", 720),
		CameraFPS:    getEnvInt("CAMERA_FPS", 15),

		// Collection scheduler
		CollectionTickInterval: getEnvDuration("COLLECTION_TICK_INTERVAL", 60*time.Second),

		// NATS
		NatsEnabled:        getEnvBool("NATS_ENABLED", false),
		NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
		NatsConnectTimeout: getEnvDuration("NATS_CONNECT_TIMEOUT", 10*time.Second),
		NatsReconnectWait:  getEnvDuration("NATS_RECONNECT_WAIT", 2*time.Second),
		NatsMaxReconnects:  getEnvInt("NATS_MAX_RECONNECTS", -1), // -1 = unlimited

		// Graceful Shutdown
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Load reads the .env file specified by MASTERY_ENV (or .env by default),
// then loads the corresponding .secret file if it exists.
// All config is flat env vars read via os.Getenv after loading.
func Load() error {
	envFile := os.Getenv("MASTERY_ENV")
	if envFile == "" {
		envFile = ".env"
	}

	// Load main env file (ignore error if file doesn't exist)
	_ = godotenv.Load(envFile)

	// Load secret sidecar if it exists
	_ = godotenv.Load(envFile + ".secret")

	return nil
}

// MemoryRoot returns the directory holding the per-topic markdown files.
// Defaults to "memory" if not set.
func MemoryRoot() string {
	root := os.Getenv("MEMORY_ROOT")
	if root == "" {
		return "memory"
	}
	return root
}

func ServerPort() int {
	port, err := strconv.Atoi(os.Getenv("SERVER_PORT"))
	if err != nil {
		return 8080
	}
	return port
}

func ServerAddr() string {
	return fmt.Sprintf(":%d", ServerPort())
}

// DatabaseURL returns the optional Postgres archive connection string.
// Empty means file-only operation.
func DatabaseURL() string {
	return os.Getenv("DATABASE_URL")
}

// LockTimeout returns how long an ingestion waits for a topic's write
// slot. Defaults to 5s if not set.
func LockTimeout() time.Duration {
	ms, err := strconv.Atoi(os.Getenv("LOCK_TIMEOUT_MS"))
	if err != nil || ms <= 0 {
		return 5 * time.Second
	}
	return time.Duration(ms) * time.Millisecond
}

// PairingCap returns how many highest-confidence claims take part in
// contradiction pairing. Defaults to 25 if not set.
func PairingCap() int {
	n, err := strconv.Atoi(os.Getenv("PAIRING_CAP"))
	if err != nil || n <= 0 {
		return 25
	}
	return n
}

// APIToken returns the optional static bearer token for the HTTP API.
// Empty disables auth.
func APIToken() string {
	return os.Getenv("API_TOKEN")
}

// RateLimitRPS returns requests per second limit.
// Defaults to 100 if not set.
func RateLimitRPS() float64 {
	rps, err := strconv.ParseFloat(os.Getenv("RATE_LIMIT_RPS"), 64)
	if err != nil || rps <= 0 {
		return 100
	}
	return rps
}

// RateLimitBurst returns the burst size for rate limiting.
// Defaults to 20 if not set.
func RateLimitBurst() int {
	burst, err := strconv.Atoi(os.Getenv("RATE_LIMIT_BURST"))
	if err != nil || burst <= 0 {
		return 20
	}
	return burst
}

// LogLevel returns the log level (debug, info, warn, error).
// Defaults to "info" if not set.
func LogLevel() string {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		return "info"
	}
	return level
}

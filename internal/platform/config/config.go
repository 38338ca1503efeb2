package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// InsecureDefaultSecret is used for the embed codec when EMBED_SECRET is unset
// outside production. Tokens minted with it are not confidential.
const InsecureDefaultSecret = "insecure-development-secret-do-not-deploy"

// ErrMissingSecret is returned by EmbedSecret in production when no secret is set.
var ErrMissingSecret = errors.New("config: EMBED_SECRET must be set in production")

// Load reads the .env file from the current working directory and sets
// environment variables. If .env does not exist, Load returns an error but
// callers can ignore it and use system env or defaults. Pass one or more paths
// to load from specific files (e.g. ".env"); with no paths, ".env" is used.
func Load(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	return godotenv.Load(paths...)
}

// GetEnv returns the value of the environment variable named by key, or fallback
// if the variable is unset or empty.
func GetEnv(key, fallback string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return fallback
}

// GetEnvInt returns the integer value of the environment variable named by key,
// or fallback if the variable is unset, empty, or not a valid integer.
func GetEnvInt(key string, fallback int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return fallback
}

// GetEnvDuration parses values like "90s" or "10m", falling back on absence or error.
func GetEnvDuration(key string, fallback time.Duration) time.Duration {
	if s := os.Getenv(key); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			return d
		}
	}
	return fallback
}

// GetEnvBool parses strconv-style booleans ("1", "true", "false", ...).
func GetEnvBool(key string, fallback bool) bool {
	if s := os.Getenv(key); s != "" {
		if b, err := strconv.ParseBool(s); err == nil {
			return b
		}
	}
	return fallback
}

// IsProduction reports whether env names a deployed environment.
func IsProduction(env string) bool {
	switch strings.ToLower(env) {
	case "prod", "production":
		return true
	}
	return false
}

// EmbedSecret returns the shared secret for the embed codec. Outside production a
// missing secret falls back to InsecureDefaultSecret and insecure is true so the
// caller can log it loudly; in production it is an error.
func EmbedSecret(env string) (secret string, insecure bool, err error) {
	if s := os.Getenv("EMBED_SECRET"); s != "" {
		return s, false, nil
	}
	if IsProduction(env) {
		return "", false, ErrMissingSecret
	}
	return InsecureDefaultSecret, true, nil
}

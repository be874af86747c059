package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	HTTPAddr  string
	PublicURL string

	DBDriver string
	DBDSN    string

	// Issuer the platform presents in 1.3 launches. Defaults to PublicURL.
	Issuer string

	PlatformName         string
	PlatformFamilyCode   string
	PlatformVersion      string
	PlatformGUID         string
	PlatformContactEmail string

	// Rate limit for the OAuth2 token endpoint, requests per second per IP.
	TokenRateLimit float64
	TokenRateBurst int

	EnableMetrics bool

	CORSOrigins []string

	LogLevel string
}

func FromEnv() Config {
	pub := strings.TrimSuffix(os.Getenv("PUBLIC_URL"), "/")
	if pub == "" {
		pub = "http://localhost:8080"
	}
	return Config{
		HTTPAddr:  envOr("HTTP_ADDR", ":8080"),
		PublicURL: pub,

		DBDriver: envOr("DB_DRIVER", "sqlite"),
		DBDSN:    envOr("DB_DSN", ""),

		Issuer: envOr("LTI_ISSUER", pub),

		PlatformName:         envOr("PLATFORM_NAME", "CampusHQ"),
		PlatformFamilyCode:   envOr("PLATFORM_FAMILY_CODE", "campushq"),
		PlatformVersion:      envOr("PLATFORM_VERSION", "1.0"),
		PlatformGUID:         os.Getenv("PLATFORM_GUID"),
		PlatformContactEmail: os.Getenv("PLATFORM_CONTACT_EMAIL"),

		TokenRateLimit: envFloat("TOKEN_RATE_LIMIT", 5),
		TokenRateBurst: envInt("TOKEN_RATE_BURST", 10),

		EnableMetrics: envBool("ENABLE_METRICS", true),

		CORSOrigins: csvOr("CORS_ORIGINS", "*"),

		LogLevel: envOr("LOG_LEVEL", "info"),
	}
}
func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}
func envBool(k string, def bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return def
	}
}
func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
func envFloat(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
func csvOr(k, def string) []string {
	v := envOr(k, def)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

package config

import (
	"flag"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"edgejury/internal/gateway/repository/archive"
)

type Config struct {
	Port string
	Env  string

	// Persistence. DatabaseURL wins; otherwise SQLitePath; otherwise memory.
	DatabaseURL string
	SQLitePath  string

	Council CouncilConfig
	Cache   CacheConfig
	Archive archive.Config
}

type CouncilConfig struct {
	Size            int
	MaxTokensStage1 int
	MaxTokensStage2 int
	MaxTokensStage3 int
	MaxTokensStage4 int
	ChairmanModel   string
	VerifierModel   string
	RPS             float64
	Burst           int
}

type CacheConfig struct {
	MaxEntries int
	TTL        time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	port := flag.String("port", ":8080", "server port")
	flag.Parse()

	if envPort := os.Getenv("PORT"); envPort != "" {
		if strings.HasPrefix(envPort, ":") {
			*port = envPort
		} else {
			*port = ":" + envPort
		}
	}

	env := strings.TrimSpace(os.Getenv("APP_ENV"))
	if env == "" {
		env = "local"
	}

	return &Config{
		Port:        *port,
		Env:         env,
		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		SQLitePath:  strings.TrimSpace(os.Getenv("SQLITE_PATH")),
		Council:     loadCouncilConfig(),
		Cache:       loadCacheConfig(),
		Archive:     loadArchiveConfig(env),
	}, nil
}

func loadCouncilConfig() CouncilConfig {
	return CouncilConfig{
		Size:            envInt("COUNCIL_SIZE", 3),
		MaxTokensStage1: envInt("MAX_TOKENS_STAGE1", 400),
		MaxTokensStage2: envInt("MAX_TOKENS_STAGE2", 300),
		MaxTokensStage3: envInt("MAX_TOKENS_STAGE3", 600),
		MaxTokensStage4: envInt("MAX_TOKENS_STAGE4", 400),
		ChairmanModel:   strings.TrimSpace(os.Getenv("CHAIRMAN_MODEL")),
		VerifierModel:   strings.TrimSpace(os.Getenv("VERIFIER_MODEL")),
		RPS:             envFloat("LLM_RPS", 0),
		Burst:           envInt("LLM_BURST", 1),
	}
}

func loadCacheConfig() CacheConfig {
	return CacheConfig{
		MaxEntries: envInt("ANSWER_CACHE_ENTRIES", 512),
		TTL:        envDuration("ANSWER_CACHE_TTL", 10*time.Minute),
	}
}

func loadArchiveConfig(env string) archive.Config {
	endpoint := resolveArchiveEndpoint(env)
	return archive.Config{
		Endpoint:  endpoint,
		Region:    firstNonEmpty(strings.TrimSpace(os.Getenv("ARCHIVE_S3_REGION")), "us-east-1"),
		AccessKey: firstNonEmpty(strings.TrimSpace(os.Getenv("ARCHIVE_S3_ACCESS_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_USER"))),
		SecretKey: firstNonEmpty(strings.TrimSpace(os.Getenv("ARCHIVE_S3_SECRET_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_PASSWORD"))),
		Bucket:    strings.TrimSpace(os.Getenv("ARCHIVE_S3_BUCKET")),
		UseSSL:    resolveArchiveUseSSL(env),
	}
}

func resolveArchiveEndpoint(env string) string {
	if strings.EqualFold(strings.TrimSpace(env), "local") {
		return strings.TrimSpace(os.Getenv("ARCHIVE_MINIO_ENDPOINT"))
	}
	return strings.TrimSpace(os.Getenv("ARCHIVE_S3_ENDPOINT"))
}

func resolveArchiveUseSSL(env string) bool {
	if strings.EqualFold(strings.TrimSpace(env), "local") {
		return false
	}
	raw := strings.TrimSpace(os.Getenv("ARCHIVE_S3_USE_SSL"))
	if raw == "" {
		return true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return true
	}
	return v
}

func envInt(name string, def int) int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func envFloat(name string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def
	}
	return v
}

func envDuration(name string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

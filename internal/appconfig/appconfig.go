// Package appconfig loads runtime configuration from the environment
// (and an optional .env file) for every command in this module. A
// missing required variable is a configuration error — callers are
// expected to exit with a distinct, non-zero status for it rather than
// retrying, per the fail-fast contract in spec.md §6-7.
package appconfig

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// MissingEnvError lists every required environment variable that was
// unset, so the caller can report all of them in one message instead of
// failing on the first.
type MissingEnvError struct {
	Names []string
}

func (e *MissingEnvError) Error() string {
	return fmt.Sprintf("missing required environment variables: %s", strings.Join(e.Names, ", "))
}

// Config holds every setting shared across cmd/ingest, cmd/worker, and
// cmd/statusd. Each command reads the subset it needs.
type Config struct {
	DatabaseDSN string
	HTTPAddr    string

	FinnhubToken string

	IntakeLatestPerRunPerTicker int
	IntakeDailyMaxPerTicker     int

	LLMProvider       string
	LLMTimeoutSeconds int
	LLMMaxRetries     int
	OpenAIAPIKey      string
	OpenAIModel       string
	GoogleAPIKey      string
	GeminiModel       string

	WorkerPollSeconds              int
	WorkerVisibilityTimeoutSeconds int
	WorkerMaxAttempts              int
}

// Load reads configuration from the environment, loading a .env file
// from the working directory first if one is present. It returns
// *MissingEnvError when a required database variable is unset — the
// database connection is needed by every command in this module, so
// that check happens here rather than being duplicated per command.
func Load() (Config, error) {
	_ = godotenv.Load()

	var missing []string
	host := requireEnv("POSTGRES_HOST", &missing)
	db := requireEnv("POSTGRES_DB", &missing)
	user := requireEnv("POSTGRES_USER", &missing)
	password := requireEnv("POSTGRES_PASSWORD", &missing)
	if len(missing) > 0 {
		return Config{}, &MissingEnvError{Names: missing}
	}
	port := getEnv("POSTGRES_PORT", "5432")

	cfg := Config{
		DatabaseDSN: buildDSN(host, port, db, user, password),
		HTTPAddr:    getEnv("PIPELINE_HTTP_ADDR", ":8080"),

		FinnhubToken: getEnv("FINNHUB_TOKEN", ""),

		IntakeLatestPerRunPerTicker: getEnvInt("INTAKE_LATEST_PER_RUN_PER_TICKER", 10),
		IntakeDailyMaxPerTicker:     getEnvInt("INTAKE_DAILY_MAX_PER_TICKER", 100),

		LLMProvider:       resolveLLMProvider(getEnv("LLM_PROVIDER", "openai")),
		LLMTimeoutSeconds: getEnvIntAllowingZero("LLM_TIMEOUT_SECONDS", 20),
		LLMMaxRetries:     getEnvInt("LLM_MAX_RETRIES", 2),
		OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		GoogleAPIKey:      getEnv("GOOGLE_API_KEY", ""),
		GeminiModel:       getEnv("GEMINI_MODEL", "gemini-3-flash-preview"),

		WorkerPollSeconds:              getEnvInt("WORKER_POLL_SECONDS", 10),
		WorkerVisibilityTimeoutSeconds: getEnvInt("WORKER_VISIBILITY_TIMEOUT_SECONDS", 300),
		WorkerMaxAttempts:              getEnvInt("WORKER_MAX_ATTEMPTS", 3),
	}
	if cfg.LLMTimeoutSeconds <= 0 {
		cfg.LLMTimeoutSeconds = 20
	}
	return cfg, nil
}

// resolveLLMProvider implements spec.md §6's coercion rule: any value
// other than "openai" is treated as "gemini".
func resolveLLMProvider(name string) string {
	if name == "openai" {
		return "openai"
	}
	return "gemini"
}

func buildDSN(host, port, db, user, password string) string {
	u := &url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(user, password),
		Host:   host + ":" + port,
		Path:   "/" + db,
	}
	q := url.Values{}
	q.Set("sslmode", "disable")
	u.RawQuery = q.Encode()
	return u.String()
}

func requireEnv(key string, missing *[]string) string {
	v := os.Getenv(key)
	if v == "" {
		*missing = append(*missing, key)
	}
	return v
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

// getEnvIntAllowingZero is getEnvInt but lets a caller apply its own
// non-positive fallback rule — LLM_TIMEOUT_SECONDS's "non-positive ⇒ 20"
// contract is expressed by the caller, not buried in this helper.
func getEnvIntAllowingZero(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

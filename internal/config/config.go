package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/efreitasn/alertbridge/internal/domain"
)

// Exchange backends selectable through EXCHANGE.
const (
	ExchangeGateIO = "gateio"
	ExchangePaper  = "paper"
)

// Config holds all runtime configuration for the alert bridge.
type Config struct {
	Port     int
	LogLevel string

	Exchange        string
	GateAPIKey      string
	GateAPISecret   string
	GateSandbox     bool
	GateBaseURL     string
	GateRateLimit   float64
	ExchangeTimeout time.Duration
	PaperPrices     map[string]float64

	MaxRetries int
	RetryDelay time.Duration

	CSVPath              string
	NotifyURL            string
	NotifyTimeout        time.Duration
	GoogleServiceAccount string
	GoogleSheetID        string
	GoogleSheetRange     string
	SinkWorkers          int
	SinkQueueSize        int

	CORSAllowedOrigins []string

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// LoadDotEnv loads variables from path into the environment without
// overriding variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load reads configuration from environment variables, applies defaults,
// and validates values. It returns an error for any invalid value.
func Load() (*Config, error) {
	port, err := getInt("PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}

	logLevel := getStr("LOG_LEVEL", "info")
	if !isValidLogLevel(logLevel) {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %q, must be one of: debug, info, warn, error", logLevel)
	}

	exchange := strings.ToLower(getStr("EXCHANGE", ExchangeGateIO))
	if exchange != ExchangeGateIO && exchange != ExchangePaper {
		return nil, fmt.Errorf("invalid EXCHANGE: %q, must be one of: gateio, paper", exchange)
	}

	apiKey := getStr("GATEIO_API_KEY", "")
	apiSecret := getStr("GATEIO_API_SECRET", "")
	if exchange == ExchangeGateIO && (apiKey == "" || apiSecret == "") {
		return nil, errors.New("GATEIO_API_KEY and GATEIO_API_SECRET are required when EXCHANGE=gateio")
	}

	sandbox, err := getBool("GATEIO_SANDBOX", false)
	if err != nil {
		return nil, fmt.Errorf("invalid GATEIO_SANDBOX: %w", err)
	}

	rateLimit, err := getFloat("GATEIO_RATE_LIMIT", 10)
	if err != nil {
		return nil, fmt.Errorf("invalid GATEIO_RATE_LIMIT: %w", err)
	}
	if rateLimit <= 0 {
		return nil, fmt.Errorf("invalid GATEIO_RATE_LIMIT: %v, must be > 0", rateLimit)
	}

	exchangeTimeout, err := getDuration("EXCHANGE_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid EXCHANGE_TIMEOUT: %w", err)
	}

	paperPrices, err := parsePrices(getStr("PAPER_PRICES", ""))
	if err != nil {
		return nil, fmt.Errorf("invalid PAPER_PRICES: %w", err)
	}

	maxRetries, err := getInt("MAX_RETRIES", 3)
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_RETRIES: %w", err)
	}
	if maxRetries < 1 {
		return nil, fmt.Errorf("invalid MAX_RETRIES: %d, must be >= 1", maxRetries)
	}

	retryDelay, err := getSeconds("RETRY_DELAY", 2*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid RETRY_DELAY: %w", err)
	}
	if retryDelay < 0 {
		return nil, fmt.Errorf("invalid RETRY_DELAY: %v, must be >= 0", retryDelay)
	}

	notifyTimeout, err := getDuration("NOTIFY_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid NOTIFY_TIMEOUT: %w", err)
	}

	sinkWorkers, err := getInt("SINK_WORKERS", 4)
	if err != nil {
		return nil, fmt.Errorf("invalid SINK_WORKERS: %w", err)
	}
	if sinkWorkers < 1 {
		return nil, fmt.Errorf("invalid SINK_WORKERS: %d, must be >= 1", sinkWorkers)
	}

	sinkQueueSize, err := getInt("SINK_QUEUE_SIZE", 256)
	if err != nil {
		return nil, fmt.Errorf("invalid SINK_QUEUE_SIZE: %w", err)
	}
	if sinkQueueSize < 1 {
		return nil, fmt.Errorf("invalid SINK_QUEUE_SIZE: %d, must be >= 1", sinkQueueSize)
	}

	readTimeout, err := getDuration("READ_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid READ_TIMEOUT: %w", err)
	}

	// Retries run inside the request, so the write timeout is generous.
	writeTimeout, err := getDuration("WRITE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid WRITE_TIMEOUT: %w", err)
	}

	idleTimeout, err := getDuration("IDLE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid IDLE_TIMEOUT: %w", err)
	}

	shutdownTimeout, err := getDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid SHUTDOWN_TIMEOUT: %w", err)
	}

	return &Config{
		Port:                 port,
		LogLevel:             logLevel,
		Exchange:             exchange,
		GateAPIKey:           apiKey,
		GateAPISecret:        apiSecret,
		GateSandbox:          sandbox,
		GateBaseURL:          getStr("GATEIO_BASE_URL", ""),
		GateRateLimit:        rateLimit,
		ExchangeTimeout:      exchangeTimeout,
		PaperPrices:          paperPrices,
		MaxRetries:           maxRetries,
		RetryDelay:           retryDelay,
		CSVPath:              getStr("CSV_PATH", "orders.csv"),
		NotifyURL:            getStr("REMOTE_NOTIFY_URL", ""),
		NotifyTimeout:        notifyTimeout,
		GoogleServiceAccount: getStr("GOOGLE_SERVICE_ACCOUNT", "/app/credentials/service_account.json"),
		GoogleSheetID:        getStr("GOOGLE_SHEET_ID", ""),
		GoogleSheetRange:     getStr("GOOGLE_SHEET_RANGE", "A1"),
		SinkWorkers:          sinkWorkers,
		SinkQueueSize:        sinkQueueSize,
		CORSAllowedOrigins:   getList("CORS_ALLOWED_ORIGINS"),
		ReadTimeout:          readTimeout,
		WriteTimeout:         writeTimeout,
		IdleTimeout:          idleTimeout,
		ShutdownTimeout:      shutdownTimeout,
	}, nil
}

func getStr(key, defaultVal string) string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	return v
}

func getInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.Atoi(v)
}

func getFloat(key string, defaultVal float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.ParseFloat(v, 64)
}

func getBool(key string, defaultVal bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.ParseBool(v)
}

func getDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return time.ParseDuration(v)
}

// getSeconds is getDuration that also accepts a bare integer of seconds.
func getSeconds(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(v)
}

func getList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// parsePrices parses "BTC/USDT=65000,ETH_USDT=3200" into mark prices keyed
// by normalized symbol.
func parsePrices(raw string) (map[string]float64, error) {
	prices := make(map[string]float64)
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		sym, priceStr, ok := strings.Cut(item, "=")
		sym = strings.TrimSpace(sym)
		if !ok || sym == "" {
			return nil, fmt.Errorf("%q must be SYMBOL=price", item)
		}
		price, err := strconv.ParseFloat(strings.TrimSpace(priceStr), 64)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", item, err)
		}
		if price <= 0 {
			return nil, fmt.Errorf("%q: price must be > 0", item)
		}
		prices[domain.NormalizeSymbol(sym)] = price
	}
	return prices, nil
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}

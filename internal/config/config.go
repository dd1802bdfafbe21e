package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"tradehook/pkg/utils"
)

// Config содержит всю конфигурацию приложения
type Config struct {
	Server   ServerConfig
	Exchange ExchangeConfig
	Trading  TradingConfig
	Telegram TelegramConfig
	Logging  LoggingConfig
}

// ServerConfig - настройки HTTP сервера
type ServerConfig struct {
	Port int
	Host string

	// WriteTimeout должен закрывать синхронную обработку входного
	// сигнала (ожидание замены позиции до ReplaceWaitTimeout)
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// ExchangeConfig - ключи и режим Binance USDT-M Futures
type ExchangeConfig struct {
	UseTestnet bool

	TestnetAPIKey    string
	TestnetSecretKey string
	LiveAPIKey       string
	LiveSecretKey    string
}

// APIKey возвращает ключ для активного режима
func (e ExchangeConfig) APIKey() string {
	if e.UseTestnet {
		return e.TestnetAPIKey
	}
	return e.LiveAPIKey
}

// SecretKey возвращает секрет для активного режима
func (e ExchangeConfig) SecretKey() string {
	if e.UseTestnet {
		return e.TestnetSecretKey
	}
	return e.LiveSecretKey
}

// Политики принудительного выхода по таймеру
const (
	ForceExitAlways   = "always"    // закрывать через 2 бара безусловно
	ForceExitLossOnly = "loss_only" // закрывать только убыточную позицию
)

// TradingConfig - торговые параметры
type TradingConfig struct {
	TradeAmount     float64 // маржа на сделку в USDT
	Leverage        int
	MarginType      string // "ISOLATED" или "CROSSED"
	MaxActiveTrades int    // лимит одновременных позиций на аккаунте

	// Вход
	ReplaceWaitTimeout time.Duration // ожидание закрытия старой позиции при замене
	FillPollInterval   time.Duration // период опроса статуса входного ордера

	// Выход
	UseBarExtremesForExit bool          // лимитный выход по экстремуму бара
	BarExitTimeout        time.Duration // ожидание лимитного выхода до market fallback
	ExitMarketDelay       time.Duration // пауза перед выходом (0 = без паузы)
	ForceExitPolicy       string        // always | loss_only
	OppositeCloseDelay    time.Duration // пауза после закрытия по противоположному сигналу
}

// TelegramConfig - уведомления
type TelegramConfig struct {
	BotToken string
	ChatID   int64

	// Смещение "торговой полуночи" для дневного отчёта относительно UTC
	SummaryUTCOffset time.Duration
}

// Enabled возвращает true если Telegram настроен
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.ChatID != 0
}

// LoggingConfig - настройки логирования
type LoggingConfig struct {
	Level  string
	Format string
}

// Load загружает конфигурацию из переменных окружения
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnvAsInt("SERVER_PORT", 8080),
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:  getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getEnvAsDuration("SERVER_WRITE_TIMEOUT", 45*time.Second),
			IdleTimeout:  getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Exchange: ExchangeConfig{
			UseTestnet:       getEnvAsBool("USE_TESTNET", true),
			TestnetAPIKey:    getEnv("TESTNET_API_KEY", ""),
			TestnetSecretKey: getEnv("TESTNET_SECRET_KEY", ""),
			LiveAPIKey:       getEnv("BINANCE_API_KEY", ""),
			LiveSecretKey:    getEnv("BINANCE_SECRET_KEY", ""),
		},
		Trading: TradingConfig{
			TradeAmount:     getEnvAsFloat("TRADE_AMOUNT", 50),
			Leverage:        getEnvAsInt("LEVERAGE", 20),
			MarginType:      strings.ToUpper(getEnv("MARGIN_TYPE", "ISOLATED")),
			MaxActiveTrades: getEnvAsInt("MAX_ACTIVE_TRADES", 5),

			ReplaceWaitTimeout: getEnvAsDuration("REPLACE_WAIT_TIMEOUT", 30*time.Second),
			FillPollInterval:   getEnvAsDuration("FILL_POLL_INTERVAL", 1*time.Second),

			UseBarExtremesForExit: getEnvAsBool("USE_BAR_HIGH_LOW_FOR_EXIT", true),
			BarExitTimeout:        getEnvAsDuration("BAR_EXIT_TIMEOUT", 5*time.Second),
			ExitMarketDelay:       exitMarketDelay(),
			ForceExitPolicy:       getEnv("FORCE_EXIT_POLICY", ForceExitAlways),
			OppositeCloseDelay:    getEnvAsDuration("OPPOSITE_CLOSE_DELAY", 3*time.Second),
		},
		Telegram: TelegramConfig{
			BotToken:         getEnv("TELEGRAM_BOT_TOKEN", ""),
			ChatID:           getEnvAsInt64("TELEGRAM_CHAT_ID", 0),
			SummaryUTCOffset: getEnvAsDuration("SUMMARY_UTC_OFFSET", 5*time.Hour+30*time.Minute),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.validateRanges(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// exitMarketDelay собирает паузу перед выходом из пары переменных:
// флаг включения и длительность
func exitMarketDelay() time.Duration {
	if !getEnvAsBool("EXIT_MARKET_DELAY_ENABLED", true) {
		return 0
	}
	return getEnvAsDuration("EXIT_MARKET_DELAY", 2*time.Second)
}

// validateRanges проверяет числовые диапазоны параметров
func (c *Config) validateRanges() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Trading.TradeAmount <= 0 {
		return fmt.Errorf("TRADE_AMOUNT must be positive, got %v", c.Trading.TradeAmount)
	}

	if err := utils.ValidateLeverage(c.Trading.Leverage); err != nil {
		return fmt.Errorf("LEVERAGE: %w", err)
	}

	if c.Trading.MarginType != "ISOLATED" && c.Trading.MarginType != "CROSSED" {
		return fmt.Errorf("MARGIN_TYPE must be ISOLATED or CROSSED, got %s", c.Trading.MarginType)
	}

	if c.Trading.MaxActiveTrades < 1 {
		return fmt.Errorf("MAX_ACTIVE_TRADES must be at least 1, got %d", c.Trading.MaxActiveTrades)
	}

	if c.Trading.ForceExitPolicy != ForceExitAlways && c.Trading.ForceExitPolicy != ForceExitLossOnly {
		return fmt.Errorf("FORCE_EXIT_POLICY must be %q or %q, got %q",
			ForceExitAlways, ForceExitLossOnly, c.Trading.ForceExitPolicy)
	}

	if c.Trading.FillPollInterval <= 0 {
		return fmt.Errorf("FILL_POLL_INTERVAL must be positive, got %v", c.Trading.FillPollInterval)
	}

	if c.Trading.ReplaceWaitTimeout <= 0 {
		return fmt.Errorf("REPLACE_WAIT_TIMEOUT must be positive, got %v", c.Trading.ReplaceWaitTimeout)
	}

	// WriteTimeout должен перекрывать синхронное ожидание замены позиции
	if c.Server.WriteTimeout <= c.Trading.ReplaceWaitTimeout {
		return fmt.Errorf("SERVER_WRITE_TIMEOUT (%v) must exceed REPLACE_WAIT_TIMEOUT (%v)",
			c.Server.WriteTimeout, c.Trading.ReplaceWaitTimeout)
	}

	return nil
}

// Вспомогательные функции для чтения переменных окружения

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	// Принимаем и "5s", и голые секунды ("5")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	if secs, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

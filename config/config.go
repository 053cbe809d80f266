package config

import (
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/vadiminshakov/riskwatch/internal/domain"
)

const (
	defaultRefreshInterval = 60 * time.Second
	defaultListenAddr      = ":8080"
	defaultWALDir          = "./wal/equity"
	defaultCertCacheDir    = "./certs"
	defaultLogLevel        = "info"
)

// Network selects the Hyperliquid deployment.
type Network string

const (
	NetworkMainnet Network = "mainnet"
	NetworkTestnet Network = "testnet"
)

// APIURL returns the REST endpoint of the network.
func (n Network) APIURL() string {
	if n == NetworkTestnet {
		return "https://api.hyperliquid-testnet.xyz"
	}
	return "https://api.hyperliquid.xyz"
}

// String returns the string representation.
func (n Network) String() string {
	return string(n)
}

// Config runtime settings of the monitor.
type Config struct {
	WalletAddress    string        `validate:"required,eth_addr"`
	PrivateKey       string        `validate:"required,hexadecimal,len=64"`
	Network          Network       `validate:"oneof=mainnet testnet"`
	TradeHistoryDays int           `validate:"min=1,max=7"`
	RefreshInterval  time.Duration `validate:"min=5s"`
	ListenAddr       string        `validate:"required"`
	WALDir           string        `validate:"required"`
	TLSDomains       []string      `validate:"dive,fqdn"`
	CertCacheDir     string
	LogFile          string
	LogLevel         string `validate:"oneof=debug info warn error"`
	Symbols          []string
}

// ConfigTmp raw yaml representation of Config.
type ConfigTmp struct {
	WalletAddress       string        `yaml:"wallet_address"`
	PrivateKey          string        `yaml:"private_key,omitempty"`
	Testnet             bool          `yaml:"testnet"`
	TradeHistoryDaysStr string        `yaml:"trade_history_days,omitempty"`
	RefreshInterval     time.Duration `yaml:"refresh_interval,omitempty"`
	ListenAddr          string        `yaml:"listen_addr,omitempty"`
	WALDir              string        `yaml:"wal_dir,omitempty"`
	TLSDomains          []string      `yaml:"tls_domains,omitempty"`
	CertCacheDir        string        `yaml:"cert_cache_dir,omitempty"`
	LogFile             string        `yaml:"log_file,omitempty"`
	LogLevel            string        `yaml:"log_level,omitempty"`
	Symbols             []string      `yaml:"symbols,omitempty"`
}

// Get loads the configuration from the yaml file at path, or from the environment
// when path is empty. A .env file in the working directory is applied first.
func Get(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, errors.Wrap(err, "load .env")
	}

	var (
		tmp ConfigTmp
		err error
	)
	if path != "" {
		tmp, err = getYaml(path)
	} else {
		tmp, err = getFromEnv()
	}
	if err != nil {
		return Config{}, err
	}

	// secrets from the environment win over the file
	if key := os.Getenv("PRIVATE_KEY"); key != "" {
		tmp.PrivateKey = key
	}
	if tmp.WalletAddress == "" {
		tmp.WalletAddress = os.Getenv("WALLET_ADDRESS")
	}

	return FromTmp(tmp)
}

func getYaml(path string) (ConfigTmp, error) {
	var tmp ConfigTmp

	f, err := os.ReadFile(path)
	if err != nil {
		return ConfigTmp{}, errors.Wrapf(err, "read config %s", path)
	}
	if err := yaml.Unmarshal(f, &tmp); err != nil {
		return ConfigTmp{}, errors.Wrapf(err, "parse config %s", path)
	}
	return tmp, nil
}

func getFromEnv() (ConfigTmp, error) {
	tmp := ConfigTmp{
		WalletAddress:       os.Getenv("WALLET_ADDRESS"),
		PrivateKey:          os.Getenv("PRIVATE_KEY"),
		TradeHistoryDaysStr: os.Getenv("TRADE_HISTORY_DAYS"),
		ListenAddr:          os.Getenv("LISTEN_ADDR"),
		WALDir:              os.Getenv("WAL_DIR"),
		CertCacheDir:        os.Getenv("CERT_CACHE_DIR"),
		LogFile:             os.Getenv("LOG_FILE"),
		LogLevel:            os.Getenv("LOG_LEVEL"),
		TLSDomains:          splitList(os.Getenv("TLS_DOMAINS")),
		Symbols:             splitList(os.Getenv("SYMBOLS")),
	}

	if v := os.Getenv("TESTNET"); v != "" {
		testnet, err := strconv.ParseBool(v)
		if err != nil {
			return ConfigTmp{}, errors.Errorf("incorrect TESTNET env (must be true or false): %s", v)
		}
		tmp.Testnet = testnet
	}

	if v := os.Getenv("REFRESH_INTERVAL"); v != "" {
		interval, err := parseInterval(v)
		if err != nil {
			return ConfigTmp{}, errors.Wrapf(err, "incorrect REFRESH_INTERVAL env %q", v)
		}
		tmp.RefreshInterval = interval
	}

	return tmp, nil
}

// FromTmp converts and validates raw settings, filling defaults.
func FromTmp(c ConfigTmp) (Config, error) {
	cfg := Config{
		WalletAddress:    strings.TrimSpace(c.WalletAddress),
		PrivateKey:       strings.TrimPrefix(strings.TrimSpace(c.PrivateKey), "0x"),
		Network:          NetworkMainnet,
		TradeHistoryDays: domain.DefaultTradeHistoryDays,
		RefreshInterval:  c.RefreshInterval,
		ListenAddr:       c.ListenAddr,
		WALDir:           c.WALDir,
		TLSDomains:       c.TLSDomains,
		CertCacheDir:     c.CertCacheDir,
		LogFile:          c.LogFile,
		LogLevel:         strings.ToLower(c.LogLevel),
		Symbols:          c.Symbols,
	}
	if c.Testnet {
		cfg.Network = NetworkTestnet
	}

	if c.TradeHistoryDaysStr != "" {
		days, err := strconv.Atoi(strings.TrimSpace(c.TradeHistoryDaysStr))
		if err != nil {
			return Config{}, errors.Errorf("incorrect 'trade_history_days' param (must be an integer 1-7): %s", c.TradeHistoryDaysStr)
		}
		cfg.TradeHistoryDays = days
	}
	if cfg.RefreshInterval == 0 {
		cfg.RefreshInterval = defaultRefreshInterval
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = defaultListenAddr
	}
	if cfg.WALDir == "" {
		cfg.WALDir = defaultWALDir
	}
	if cfg.CertCacheDir == "" {
		cfg.CertCacheDir = defaultCertCacheDir
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaultLogLevel
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var fieldHints = map[string]string{
	"WalletAddress.required": "wallet address is missing: set WALLET_ADDRESS or 'wallet_address' in the config file",
	"WalletAddress.eth_addr": "wallet address must be a 0x-prefixed 20-byte hex address",
	"PrivateKey.required":    "private key is missing: set PRIVATE_KEY or 'private_key' in the config file",
	"PrivateKey.hexadecimal": "private key must be hex encoded",
	"PrivateKey.len":         "private key must be 32 bytes (64 hex characters)",
	"TradeHistoryDays.min":   "trade history window must be between 1 and 7 days",
	"TradeHistoryDays.max":   "trade history window must be between 1 and 7 days",
	"RefreshInterval.min":    "refresh interval must be at least 5s",
	"LogLevel.oneof":         "log level must be one of debug, info, warn, error",
	"TLSDomains[0].fqdn":     "tls domains must be fully qualified domain names",
	"Network.oneof":          "network must be mainnet or testnet",
}

// Validate checks the settings and returns the first problem in a readable form.
func (c Config) Validate() error {
	err := validator.New().Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return errors.Wrap(err, "validate config")
	}

	first := verrs[0]
	if hint, ok := fieldHints[first.Field()+"."+first.Tag()]; ok {
		return errors.New("invalid configuration: " + hint)
	}
	if strings.HasPrefix(first.Field(), "TLSDomains") {
		return errors.New("invalid configuration: " + fieldHints["TLSDomains[0].fqdn"])
	}
	return errors.Errorf("invalid configuration: field %s failed on %s", first.Field(), first.Tag())
}

// ToTmp converts the settings back into their yaml form.
func (c Config) ToTmp() ConfigTmp {
	return ConfigTmp{
		WalletAddress:       c.WalletAddress,
		PrivateKey:          c.PrivateKey,
		Testnet:             c.Network == NetworkTestnet,
		TradeHistoryDaysStr: strconv.Itoa(c.TradeHistoryDays),
		RefreshInterval:     c.RefreshInterval,
		ListenAddr:          c.ListenAddr,
		WALDir:              c.WALDir,
		TLSDomains:          c.TLSDomains,
		CertCacheDir:        c.CertCacheDir,
		LogFile:             c.LogFile,
		LogLevel:            c.LogLevel,
		Symbols:             c.Symbols,
	}
}

// parseInterval accepts a duration string or a plain number of seconds.
func parseInterval(v string) (time.Duration, error) {
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(v)
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

package modbot

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultRedisPrefix      = "modrelay"
	DefaultAlbumTimeout     = 800 * time.Millisecond
	DefaultPollRetryBackoff = time.Second
	DefaultLockFile         = "./modrelay.lock"
)

const (
	EnvToken            = "TELEGRAM_BOT_TOKEN"
	EnvOwnerChatId      = "OWNER_CHAT_ID"
	EnvChannelId        = "CHANNEL_ID"
	EnvRedisAddress     = "REDIS_ADDRESS"
	EnvRedisPrefix      = "REDIS_PREFIX"
	EnvRedisDatabase    = "REDIS_DB"
	EnvAlbumTimeout     = "ALBUM_TIMEOUT"
	EnvPollRetryBackoff = "POLL_RETRY_BACKOFF"
	EnvLockFile         = "LOCK_FILE"
)

// values shipped in the .env template, treated the same as a missing key
var placeholders = map[string]string{
	EnvToken:       "YOUR_BOT_TOKEN_HERE",
	EnvChannelId:   "your_channel_id_here",
	EnvOwnerChatId: "owner_chat_id",
}

type Config struct {
	Token       string
	OwnerChatId int64
	// numeric id or @username of the public channel
	ChannelId string

	// empty address keeps approvals in process memory
	RedisAddress        string
	RedisPrefix         string
	RedisDatabaseNumber int

	AlbumTimeout     time.Duration
	PollRetryBackoff time.Duration
	LockFile         string
}

// ConfigError lists every required key that is missing or still holds a placeholder.
type ConfigError struct {
	Missing []string
	Invalid []string
}

func (err *ConfigError) Error() string {
	parts := make([]string, 0, 2)
	if len(err.Missing) > 0 {
		parts = append(parts, fmt.Sprintf("missing or placeholder configuration for: %s", strings.Join(err.Missing, ", ")))
	}
	if len(err.Invalid) > 0 {
		parts = append(parts, fmt.Sprintf("invalid configuration for: %s", strings.Join(err.Invalid, ", ")))
	}
	return strings.Join(parts, "; ")
}

func (cfg Config) FillDefaults() Config {
	if cfg.RedisPrefix == "" {
		cfg.RedisPrefix = DefaultRedisPrefix
	}
	if cfg.AlbumTimeout <= 0 {
		cfg.AlbumTimeout = DefaultAlbumTimeout
	}
	if cfg.PollRetryBackoff <= 0 {
		cfg.PollRetryBackoff = DefaultPollRetryBackoff
	}
	if cfg.LockFile == "" {
		cfg.LockFile = DefaultLockFile
	}
	return cfg
}

// LoadConfig reads the given .env files (or ./.env when none are given) into the
// environment and builds a validated Config from it. A missing .env file is not
// an error, the process environment is used as is.
func LoadConfig(envFiles ...string) (Config, error) {
	if err := godotenv.Load(envFiles...); err != nil {
		log.Printf("config: no .env file loaded (%s), using environment variables", err.Error())
	}
	return ConfigFromEnv(os.Getenv)
}

// ConfigFromEnv builds a Config using lookup for every key.
func ConfigFromEnv(lookup func(string) string) (Config, error) {
	var cfg Config
	cfgErr := &ConfigError{}

	required := func(key string) string {
		value := strings.TrimSpace(lookup(key))
		if value == "" || value == placeholders[key] {
			cfgErr.Missing = append(cfgErr.Missing, key)
			return ""
		}
		return value
	}

	cfg.Token = required(EnvToken)
	if owner := required(EnvOwnerChatId); owner != "" {
		id, err := strconv.ParseInt(owner, 10, 64)
		if err != nil {
			cfgErr.Invalid = append(cfgErr.Invalid, EnvOwnerChatId)
		}
		cfg.OwnerChatId = id
	}
	cfg.ChannelId = required(EnvChannelId)

	cfg.RedisAddress = strings.TrimSpace(lookup(EnvRedisAddress))
	cfg.RedisPrefix = strings.TrimSpace(lookup(EnvRedisPrefix))
	if raw := strings.TrimSpace(lookup(EnvRedisDatabase)); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			cfgErr.Invalid = append(cfgErr.Invalid, EnvRedisDatabase)
		}
		cfg.RedisDatabaseNumber = n
	}
	cfg.AlbumTimeout = parseDuration(lookup, EnvAlbumTimeout, cfgErr)
	cfg.PollRetryBackoff = parseDuration(lookup, EnvPollRetryBackoff, cfgErr)
	cfg.LockFile = strings.TrimSpace(lookup(EnvLockFile))

	if len(cfgErr.Missing) > 0 || len(cfgErr.Invalid) > 0 {
		return cfg, cfgErr
	}
	return cfg.FillDefaults(), nil
}

func parseDuration(lookup func(string) string, key string, cfgErr *ConfigError) time.Duration {
	raw := strings.TrimSpace(lookup(key))
	if raw == "" {
		return 0
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		cfgErr.Invalid = append(cfgErr.Invalid, key)
		return 0
	}
	return d
}

package config

import (
	"errors"
	"io/fs"
	"time"

	"github.com/dmitrijs2005/minitwit/internal/timex"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// EnvConfig lists the environment variables understood by the server.
// Durations accept Go duration strings or whole minutes; they are kept as
// strings here and parsed with timex.Duration.
type EnvConfig struct {
	EndpointAddrGRPC             string `env:"MINITWIT_GRPC_ADDR"`
	EndpointAddrHTTP             string `env:"MINITWIT_HTTP_ADDR"`
	StorageBackend               string `env:"MINITWIT_STORAGE"`
	DatabaseDSN                  string `env:"MINITWIT_DATABASE_DSN"`
	RedisAddr                    string `env:"MINITWIT_REDIS_ADDR"`
	RedisPassword                string `env:"MINITWIT_REDIS_PASSWORD"`
	RedisDB                      int    `env:"MINITWIT_REDIS_DB"`
	SecretKey                    string `env:"MINITWIT_JWT_KEY"`
	Issuer                       string `env:"MINITWIT_JWT_ISSUER"`
	Audience                     string `env:"MINITWIT_JWT_AUDIENCE"`
	AccessTokenValidityDuration  string `env:"MINITWIT_ACCESS_TOKEN_TTL"`
	RefreshTokenValidityDuration string `env:"MINITWIT_REFRESH_TOKEN_TTL"`
	Argon2Iterations             uint32 `env:"MINITWIT_ARGON2_ITERATIONS"`
	Argon2MemoryKiB              uint32 `env:"MINITWIT_ARGON2_MEMORY_KIB"`
	Argon2Parallelism            uint8  `env:"MINITWIT_ARGON2_PARALLELISM"`
	Argon2MaxConcurrent          int64  `env:"MINITWIT_ARGON2_MAX_CONCURRENT"`
	LogFormat                    string `env:"MINITWIT_LOG_FORMAT"`
	LogLevel                     string `env:"MINITWIT_LOG_LEVEL"`
	SeedDemoUsers                bool   `env:"MINITWIT_SEED_DEMO_USERS"`
}

// parseEnv loads dotenvPath into the process environment when it exists
// (already set variables win) and overlays every non-empty variable onto
// config. Malformed values panic, like a broken JSON file does.
func parseEnv(config *Config, dotenvPath string) {
	if dotenvPath != "" {
		if err := godotenv.Load(dotenvPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			panic(err)
		}
	}

	c := &EnvConfig{}
	if err := cleanenv.ReadEnv(c); err != nil {
		panic(err)
	}

	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.StorageBackend, c.StorageBackend)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.RedisPassword, c.RedisPassword)
	if c.RedisDB != 0 {
		config.RedisDB = c.RedisDB
	}
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.Issuer, c.Issuer)
	setString(&config.Audience, c.Audience)
	setDuration(&config.AccessTokenValidityDuration, c.AccessTokenValidityDuration)
	setDuration(&config.RefreshTokenValidityDuration, c.RefreshTokenValidityDuration)
	if c.Argon2Iterations != 0 {
		config.Argon2.Iterations = c.Argon2Iterations
	}
	if c.Argon2MemoryKiB != 0 {
		config.Argon2.MemoryKiB = c.Argon2MemoryKiB
	}
	if c.Argon2Parallelism != 0 {
		config.Argon2.Parallelism = c.Argon2Parallelism
	}
	if c.Argon2MaxConcurrent != 0 {
		config.Argon2.MaxConcurrent = c.Argon2MaxConcurrent
	}
	setString(&config.LogFormat, c.LogFormat)
	setString(&config.LogLevel, c.LogLevel)
	if c.SeedDemoUsers {
		config.SeedDemoUsers = true
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v string) {
	if v == "" {
		return
	}
	var d timex.Duration
	if err := d.SetValue(v); err != nil {
		panic(err)
	}
	*dst = d.Duration
}

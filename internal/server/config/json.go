package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/minitwit/internal/flagx"
	"github.com/dmitrijs2005/minitwit/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON unmarshalling.
// It uses timex.Duration for lifetimes, which allows parsing both string
// values such as "90s" and plain numbers of minutes.
//
// This struct is an intermediate DTO used only for reading JSON configuration
// files. After unmarshalling, the fields present in the file are copied into
// the runtime Config struct.
type JsonConfig struct {
	EndpointAddrGRPC             string         `json:"endpoint_addr_grpc"`
	EndpointAddrHTTP             string         `json:"endpoint_addr_http"`
	StorageBackend               string         `json:"storage_backend"`
	DatabaseDSN                  string         `json:"database_dsn"`
	RedisAddr                    string         `json:"redis_addr"`
	RedisPassword                string         `json:"redis_password"`
	RedisDB                      int            `json:"redis_db"`
	SecretKey                    string         `json:"secret_key"`
	Issuer                       string         `json:"issuer"`
	Audience                     string         `json:"audience"`
	AccessTokenValidityDuration  timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration timex.Duration `json:"refresh_token_validity_duration"`
	Argon2Iterations             uint32         `json:"argon2_iterations"`
	Argon2MemoryKiB              uint32         `json:"argon2_memory_kib"`
	Argon2Parallelism            uint8          `json:"argon2_parallelism"`
	Argon2MaxConcurrent          int64          `json:"argon2_max_concurrent"`
	LogFormat                    string         `json:"log_format"`
	LogLevel                     string         `json:"log_level"`
	SeedDemoUsers                *bool          `json:"seed_demo_users"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance.
//
// The JSON file path comes from the -c or -config command-line flags. If it
// is not set, no JSON file is loaded.
//
// Only keys present in the file override the current values. If the file
// cannot be read or contains invalid JSON, the function panics.
func parseJson(config *Config) {

	// try flags
	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, c)
	if err != nil {
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
	if c.AccessTokenValidityDuration.Duration != 0 {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	if c.RefreshTokenValidityDuration.Duration != 0 {
		config.RefreshTokenValidityDuration = c.RefreshTokenValidityDuration.Duration
	}
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
	if c.SeedDemoUsers != nil {
		config.SeedDemoUsers = *c.SeedDemoUsers
	}
}

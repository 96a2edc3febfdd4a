package app

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"chatcore/internal/crypto"
	"chatcore/internal/domain"
	"chatcore/internal/kdf"
)

// Config holds runtime options for the CLI and the relay.
type Config struct {
	Home          string       `yaml:"home"`
	StoragePrefix string       `yaml:"storagePrefix"`
	Relay         RelayConfig  `yaml:"relay"`
	Log           LogConfig    `yaml:"log"`
	KDF           KDFConfig    `yaml:"kdf"`
	Server        ServerConfig `yaml:"server"`
}

// RelayConfig configures the relay client.
type RelayConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// KDFConfig holds the Argon2id parameters. Salt is hex.
type KDFConfig struct {
	Argon2 Argon2Config `yaml:"argon2"`
}

// Argon2Config mirrors kdf.Argon2id.
type Argon2Config struct {
	Time      uint32 `yaml:"time"`
	MemoryKiB uint32 `yaml:"memoryKiB"`
	Threads   uint8  `yaml:"threads"`
	Salt      string `yaml:"salt"`
}

// ServerConfig configures cmd/relay.
type ServerConfig struct {
	Listen  string      `yaml:"listen"`
	Backend string      `yaml:"backend"`
	Redis   RedisConfig `yaml:"redis"`
}

// RedisConfig addresses the Redis backend.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Backends accepted in server.backend.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config {
	home := ".chatcore"
	if dir, err := os.UserHomeDir(); err == nil {
		home = filepath.Join(dir, ".chatcore")
	}
	return Config{
		Home:          home,
		StoragePrefix: "chatcore",
		Relay:         RelayConfig{URL: "http://127.0.0.1:8080", Timeout: 15 * time.Second},
		Log:           LogConfig{Level: "info", Format: "text"},
		KDF: KDFConfig{Argon2: Argon2Config{
			Time:      kdf.DefaultArgon2Time,
			MemoryKiB: kdf.DefaultArgon2MemoryKiB,
			Threads:   kdf.DefaultArgon2Threads,
		}},
		Server: ServerConfig{
			Listen:  ":8080",
			Backend: BackendMemory,
			Redis:   RedisConfig{Addr: "localhost:6379"},
		},
	}
}

// LoadFromPath reads configPath, or the first of the default locations
// that exists when configPath is empty, and applies environment overrides.
// A missing default file is not an error.
func LoadFromPath(configPath string) (Config, error) {
	cfg := DefaultConfig()

	candidates := make([]string, 0, 2)
	if configPath != "" {
		candidates = append(candidates, configPath)
	} else {
		candidates = append(candidates,
			"chatcore.yaml",
			filepath.Join(cfg.Home, "config.yaml"),
		)
	}

	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if err != nil {
			if configPath != "" {
				return Config{}, domain.Misconfigured("config %s: %v", path, err)
			}
			continue
		}
		var parsed Config
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			return Config{}, domain.Misconfigured("config %s: %v", path, err)
		}
		Merge(&cfg, parsed)
		break
	}

	ApplyEnvOverrides(&cfg)
	return cfg, nil
}

// Merge copies the non-zero fields of src into dst.
func Merge(dst *Config, src Config) {
	if src.Home != "" {
		dst.Home = src.Home
	}
	if src.StoragePrefix != "" {
		dst.StoragePrefix = src.StoragePrefix
	}
	if src.Relay.URL != "" {
		dst.Relay.URL = src.Relay.URL
	}
	if src.Relay.Timeout != 0 {
		dst.Relay.Timeout = src.Relay.Timeout
	}
	if src.Log.Level != "" {
		dst.Log.Level = src.Log.Level
	}
	if src.Log.Format != "" {
		dst.Log.Format = src.Log.Format
	}
	if src.KDF.Argon2.Time != 0 {
		dst.KDF.Argon2.Time = src.KDF.Argon2.Time
	}
	if src.KDF.Argon2.MemoryKiB != 0 {
		dst.KDF.Argon2.MemoryKiB = src.KDF.Argon2.MemoryKiB
	}
	if src.KDF.Argon2.Threads != 0 {
		dst.KDF.Argon2.Threads = src.KDF.Argon2.Threads
	}
	if src.KDF.Argon2.Salt != "" {
		dst.KDF.Argon2.Salt = src.KDF.Argon2.Salt
	}
	if src.Server.Listen != "" {
		dst.Server.Listen = src.Server.Listen
	}
	if src.Server.Backend != "" {
		dst.Server.Backend = src.Server.Backend
	}
	if src.Server.Redis.Addr != "" {
		dst.Server.Redis.Addr = src.Server.Redis.Addr
	}
	if src.Server.Redis.Password != "" {
		dst.Server.Redis.Password = src.Server.Redis.Password
	}
	if src.Server.Redis.DB != 0 {
		dst.Server.Redis.DB = src.Server.Redis.DB
	}
}

// ApplyEnvOverrides applies CHATCORE_* environment variables to cfg.
func ApplyEnvOverrides(cfg *Config) {
	if home := strings.TrimSpace(os.Getenv("CHATCORE_HOME")); home != "" {
		cfg.Home = home
	}
	if url := strings.TrimSpace(os.Getenv("CHATCORE_RELAY_URL")); url != "" {
		cfg.Relay.URL = url
	}
	if level := strings.TrimSpace(os.Getenv("CHATCORE_LOG_LEVEL")); level != "" {
		cfg.Log.Level = level
	}
	if prefix := strings.TrimSpace(os.Getenv("CHATCORE_STORAGE_PREFIX")); prefix != "" {
		cfg.StoragePrefix = prefix
	}
}

// Hardener returns the Argon2id hardener described by c.
func (c KDFConfig) Hardener() (kdf.Argon2id, error) {
	h := kdf.Argon2id{
		Time:      c.Argon2.Time,
		MemoryKiB: c.Argon2.MemoryKiB,
		Threads:   c.Argon2.Threads,
	}
	if c.Argon2.Salt != "" {
		salt, err := crypto.DecodeHex(c.Argon2.Salt)
		if err != nil {
			return kdf.Argon2id{}, err
		}
		if len(salt) != kdf.SaltBytes {
			return kdf.Argon2id{}, domain.Misconfigured("kdf: salt must be %d bytes, got %d", kdf.SaltBytes, len(salt))
		}
		copy(h.Salt[:], salt)
	}
	return h, nil
}

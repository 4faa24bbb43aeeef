package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	platformstrings "vcon/pkg/platform/strings"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

// Server captures gateway configuration.
type Server struct {
	Addr              string
	Store             string
	UUIDDomain        string
	SigningKeyFile    string
	SigningAlg        string
	MimetypesFile     string
	VerifyConcurrency int

	Redis    RedisConfig
	Database DatabaseConfig
	Kafka    KafkaConfig
}

// RedisConfig configures the Redis client.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	TTL          time.Duration
}

// DatabaseConfig configures the PostgreSQL pool.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// KafkaConfig configures the event publisher. Publishing is disabled when no
// brokers are set.
type KafkaConfig struct {
	Brokers  []string
	Topic    string
	ClientID string
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	return Server{
		Addr:              getEnv("VCON_ADDR", ":8080"),
		Store:             strings.ToLower(getEnv("VCON_STORE", StoreMemory)),
		UUIDDomain:        getEnv("VCON_UUID_DOMAIN", "vcon.dev"),
		SigningKeyFile:    os.Getenv("VCON_SIGNING_KEY_FILE"),
		SigningAlg:        getEnv("VCON_SIGNING_ALG", "ES256"),
		MimetypesFile:     os.Getenv("VCON_MIMETYPES_FILE"),
		VerifyConcurrency: getInt("VCON_VERIFY_CONCURRENCY", 8),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
			TTL:          getDuration("REDIS_VCON_TTL", 0),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    getInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Kafka: KafkaConfig{
			Brokers:  platformstrings.SplitList(os.Getenv("KAFKA_BROKERS")),
			Topic:    getEnv("KAFKA_TOPIC", "vcon.events"),
			ClientID: getEnv("KAFKA_CLIENT_ID", "vcon-gateway"),
		},
	}
}

// Validate checks that the selected store has what it needs.
func (s Server) Validate() error {
	switch s.Store {
	case StoreMemory:
	case StoreRedis:
		if s.Redis.URL == "" {
			return fmt.Errorf("VCON_STORE=redis requires REDIS_URL")
		}
	case StorePostgres:
		if s.Database.URL == "" {
			return fmt.Errorf("VCON_STORE=postgres requires DATABASE_URL")
		}
	default:
		return fmt.Errorf("unknown VCON_STORE %q", s.Store)
	}
	if s.VerifyConcurrency < 1 {
		return fmt.Errorf("VCON_VERIFY_CONCURRENCY must be positive")
	}
	return nil
}

type mimetypesFile struct {
	Mimetypes []string `toml:"mimetypes"`
}

// LoadMimetypes reads the dialog mimetype allow-list from a TOML file of the
// form `mimetypes = ["audio/wav", ...]`. ok is false when the key is absent.
func LoadMimetypes(path string) (types []string, ok bool, err error) {
	var raw mimetypesFile
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return nil, false, fmt.Errorf("load mimetypes: %w", err)
	}
	if !meta.IsDefined("mimetypes") {
		return nil, false, nil
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, false, fmt.Errorf("load mimetypes: unknown key %q", undecoded[0].String())
	}
	return platformstrings.DedupeAndTrim(raw.Mimetypes), true, nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

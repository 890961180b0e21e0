package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"
)

var ErrMissingField = errors.New("missing required field")

// Largest fingerprint_max_age that still fits in a time.Duration.
const maxAgeSeconds = math.MaxInt64 / int64(time.Second)

type Config struct {
	Police PoliceConfig `yaml:"police"`
	Ledger LedgerConfig `yaml:"ledger"`
	Server ServerConfig `yaml:"server"`
	Kafka  KafkaConfig  `yaml:"kafka"`
}

type PoliceConfig struct {
	// Seconds; lookups never reach further back than this.
	FingerprintMaxAge int64 `yaml:"fingerprint_max_age"`
	SearchMaxRange    int   `yaml:"search_max_range"`
}

type LedgerConfig struct {
	PageSize int `yaml:"page_size"`
}

type ServerConfig struct {
	DefaultWorld string   `yaml:"default_world"`
	Operators    []string `yaml:"operators"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

func (p PoliceConfig) MaxAge() time.Duration {
	return time.Duration(p.FingerprintMaxAge) * time.Second
}

func (c Config) IsOperator(name string) bool {
	for _, op := range c.Server.Operators {
		if op == name {
			return true
		}
	}
	return false
}

func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return Parse(raw)
}

func Parse(raw []byte) (Config, error) {
	var c Config
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if c.Police.FingerprintMaxAge <= 0 {
		return Config{}, fmt.Errorf("config: police.fingerprint_max_age: %w", ErrMissingField)
	}
	if c.Police.FingerprintMaxAge > maxAgeSeconds {
		return Config{}, fmt.Errorf("config: police.fingerprint_max_age: %d exceeds %d seconds", c.Police.FingerprintMaxAge, int64(maxAgeSeconds))
	}
	if c.Police.SearchMaxRange <= 0 {
		return Config{}, fmt.Errorf("config: police.search_max_range: %w", ErrMissingField)
	}
	if c.Ledger.PageSize <= 0 {
		c.Ledger.PageSize = 8
	}
	if c.Server.DefaultWorld == "" {
		c.Server.DefaultWorld = "minecraft:overworld"
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "ledger.police.lookups"
	}
	return c, nil
}

// Live holds the current configuration and is safe for concurrent use.
type Live struct {
	v atomic.Pointer[Config]
}

func NewLive(c Config) *Live {
	l := &Live{}
	l.Store(c)
	return l
}

func (l *Live) Load() Config {
	if p := l.v.Load(); p != nil {
		return *p
	}
	return Config{}
}

func (l *Live) Store(c Config) { l.v.Store(&c) }

package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sample = `
police:
  fingerprint_max_age: 3600
  search_max_range: 16
server:
  operators: [alice]
`

func TestParse_DefaultsAndRequired(t *testing.T) {
	c, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if c.Police.MaxAge() != time.Hour {
		t.Fatalf("MaxAge=%v", c.Police.MaxAge())
	}
	if c.Ledger.PageSize != 8 || c.Server.DefaultWorld != "minecraft:overworld" || c.Kafka.Topic == "" {
		t.Fatalf("defaults not applied: %+v", c)
	}
	if !c.IsOperator("alice") || c.IsOperator("bob") {
		t.Fatalf("operators: %v", c.Server.Operators)
	}

	_, err = Parse([]byte("police:\n  search_max_range: 4\n"))
	if !errors.Is(err, ErrMissingField) {
		t.Fatalf("missing fingerprint_max_age err=%v", err)
	}
	_, err = Parse([]byte("police:\n  fingerprint_max_age: 4\n"))
	if !errors.Is(err, ErrMissingField) {
		t.Fatalf("missing search_max_range err=%v", err)
	}
	if _, err := Parse([]byte("police:\n  fingerprint_max_age: 9300000000\n  search_max_range: 4\n")); err == nil {
		t.Fatalf("fingerprint_max_age past the duration range must be rejected")
	}
	c, err = Parse([]byte(fmt.Sprintf("police:\n  fingerprint_max_age: %d\n  search_max_range: 4\n", maxAgeSeconds)))
	if err != nil || c.Police.MaxAge() <= 0 {
		t.Fatalf("largest max age: MaxAge=%v err=%v", c.Police.MaxAge(), err)
	}
}

func TestLive_StoreLoad(t *testing.T) {
	var l Live
	if l.Load().Police.FingerprintMaxAge != 0 {
		t.Fatalf("zero Live must load zero config")
	}
	l.Store(Config{Police: PoliceConfig{FingerprintMaxAge: 5}})
	if l.Load().Police.FingerprintMaxAge != 5 {
		t.Fatalf("Load after Store")
	}
}

func TestReloader_SwapsOnWriteAndKeepsOldOnError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "police.yaml")
	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	live := NewLive(c)

	r, err := NewReloader(path, live, nil)
	if err != nil {
		t.Fatalf("NewReloader: %v", err)
	}
	r.debounce = 10 * time.Millisecond
	reloaded := make(chan Config, 4)
	r.OnReload = func(c Config) { reloaded <- c }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	// An invalid write must not replace the live config.
	if err := os.WriteFile(path, []byte("police: {}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)
	if got := live.Load().Police.FingerprintMaxAge; got != 3600 {
		t.Fatalf("config replaced by invalid file: %d", got)
	}

	if err := os.WriteFile(path, []byte("police:\n  fingerprint_max_age: 60\n  search_max_range: 8\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case c := <-reloaded:
		if c.Police.FingerprintMaxAge != 60 {
			t.Fatalf("reloaded max age=%d", c.Police.FingerprintMaxAge)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for reload")
	}
	if live.Load().Police.SearchMaxRange != 8 {
		t.Fatalf("live not swapped")
	}
}

func TestLoad_ShippedConfig(t *testing.T) {
	c, err := Load(filepath.Join("..", "..", "configs", "ledgerpolice.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Police.MaxAge() != 7*24*time.Hour || c.Police.SearchMaxRange != 64 {
		t.Fatalf("police=%+v", c.Police)
	}
	if len(c.Kafka.Brokers) != 0 {
		t.Fatalf("kafka should be off by default: %+v", c.Kafka)
	}
}

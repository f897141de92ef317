package node

import (
	"path/filepath"
	"strings"
	"testing"
)

func validConfig() Config {
	cfg := DefaultConfig()
	cfg.LocalDomain = 2
	cfg.MailboxStateAddress = strings.Repeat("ab", 32)
	cfg.MailboxIdentityPolicy = strings.Repeat("cd", 28)
	cfg.ProofPolicy = strings.Repeat("ef", 28)
	return cfg
}

func TestValidateConfigOK(t *testing.T) {
	if err := ValidateConfig(validConfig()); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestValidateConfigRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty network", func(c *Config) { c.Network = " " }},
		{"empty datadir", func(c *Config) { c.DataDir = "" }},
		{"endpoint without port", func(c *Config) { c.LedgerEndpoint = "localhost" }},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }},
		{"zero local domain", func(c *Config) { c.LocalDomain = 0 }},
		{"short mailbox address", func(c *Config) { c.MailboxStateAddress = "abcd" }},
		{"non-hex proof policy", func(c *Config) { c.ProofPolicy = strings.Repeat("zz", 28) }},
		{"short paymaster policy", func(c *Config) { c.PaymasterIdentityPolicy = "00" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			if err := ValidateConfig(cfg); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestValidateConfigAllowsOmittedDeployment(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LocalDomain = 2
	if err := ValidateConfig(cfg); err != nil {
		t.Fatalf("query-only config must validate, got %v", err)
	}
}

func TestSaveLoadConfigRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := ConfigPath(dir)

	cfg := validConfig()
	cfg.DataDir = dir
	cfg.LogLevel = "debug"
	if err := SaveConfig(path, cfg); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != cfg {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, cfg)
	}
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := writeFileAtomic(path, []byte(`{"local_domain": 7}`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.LocalDomain != 7 {
		t.Fatalf("explicit field lost: %+v", got)
	}
	if got.Network != "preview" || got.LogLevel != "info" {
		t.Fatalf("defaults not applied: %+v", got)
	}
}

func TestParseAddressAndPolicy(t *testing.T) {
	addr, err := ParseAddress("0x" + strings.Repeat("11", 32))
	if err != nil {
		t.Fatalf("parse address: %v", err)
	}
	if addr[0] != 0x11 || addr[31] != 0x11 {
		t.Fatalf("address bytes wrong: %x", addr)
	}
	if _, err := ParseAddress(strings.Repeat("11", 31)); err == nil {
		t.Fatalf("expected length error")
	}

	pol, err := ParsePolicy(strings.Repeat("22", 28))
	if err != nil {
		t.Fatalf("parse policy: %v", err)
	}
	if pol[27] != 0x22 {
		t.Fatalf("policy bytes wrong: %x", pol)
	}
	if _, err := ParsePolicy("xyz"); err == nil {
		t.Fatalf("expected hex error")
	}
}

package node

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/eigerco/hyperlane-utxo/ledger"
)

// Config carries everything the node needs to find one deployment: where the
// ledger backend lives and the addresses/policies minted at genesis.
type Config struct {
	Network        string `json:"network"`
	DataDir        string `json:"data_dir"`
	LedgerEndpoint string `json:"ledger_endpoint"`
	LogLevel       string `json:"log_level"`

	LocalDomain uint32 `json:"local_domain"`

	MailboxStateAddress   string `json:"mailbox_state_address"`
	MailboxIdentityPolicy string `json:"mailbox_identity_policy"`
	ProofPolicy           string `json:"proof_policy"`

	PaymasterStateAddress   string `json:"paymaster_state_address"`
	PaymasterIdentityPolicy string `json:"paymaster_identity_policy"`

	RecipientIdentityPolicy string `json:"recipient_identity_policy"`
}

var allowedLogLevels = map[string]struct{}{
	"debug": {},
	"info":  {},
	"warn":  {},
	"error": {},
}

func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".hyperlane-utxo"
	}
	return filepath.Join(home, ".hyperlane-utxo")
}

func DefaultConfig() Config {
	return Config{
		Network:        "preview",
		DataDir:        DefaultDataDir(),
		LedgerEndpoint: "localhost:9090",
		LogLevel:       "info",
	}
}

// ConfigPath is where the effective config gets persisted under a data dir.
func ConfigPath(dataDir string) string {
	return filepath.Join(dataDir, "config.json")
}

// SaveConfig writes the effective config next to the data it governs.
func SaveConfig(path string, cfg Config) error {
	raw, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	raw = append(raw, '\n')
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	return writeFileAtomic(path, raw, 0o600)
}

func LoadConfig(path string) (Config, error) {
	raw, err := readFileByPath(path)
	if err != nil {
		return Config{}, err
	}
	cfg := DefaultConfig()
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

func ValidateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.Network) == "" {
		return errors.New("network is required")
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		return errors.New("data_dir is required")
	}
	if err := validateAddr(cfg.LedgerEndpoint); err != nil {
		return fmt.Errorf("invalid ledger_endpoint: %w", err)
	}
	logLevel := strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	if _, ok := allowedLogLevels[logLevel]; !ok {
		return fmt.Errorf("invalid log_level %q", cfg.LogLevel)
	}
	if cfg.LocalDomain == 0 {
		return errors.New("local_domain is required")
	}
	for name, field := range map[string]string{
		"mailbox_state_address":   cfg.MailboxStateAddress,
		"paymaster_state_address": cfg.PaymasterStateAddress,
	} {
		if field == "" {
			continue // query-only usage may omit deployment params
		}
		if _, err := ParseAddress(field); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}
	for name, field := range map[string]string{
		"mailbox_identity_policy":   cfg.MailboxIdentityPolicy,
		"proof_policy":              cfg.ProofPolicy,
		"paymaster_identity_policy": cfg.PaymasterIdentityPolicy,
		"recipient_identity_policy": cfg.RecipientIdentityPolicy,
	} {
		if field == "" {
			continue
		}
		if _, err := ParsePolicy(field); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}
	return nil
}

// ParseAddress decodes a hex-encoded 32-byte address.
func ParseAddress(s string) (ledger.Address, error) {
	var out ledger.Address
	raw, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return out, err
	}
	if len(raw) != 32 {
		return out, fmt.Errorf("address must be 32 bytes, got %d", len(raw))
	}
	copy(out[:], raw)
	return out, nil
}

// ParsePolicy decodes a hex-encoded 28-byte policy id.
func ParsePolicy(s string) (ledger.PolicyID, error) {
	var out ledger.PolicyID
	raw, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return out, err
	}
	if len(raw) != 28 {
		return out, fmt.Errorf("policy must be 28 bytes, got %d", len(raw))
	}
	copy(out[:], raw)
	return out, nil
}

func validateAddr(addr string) error {
	if strings.TrimSpace(addr) == "" {
		return errors.New("empty address")
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	if strings.TrimSpace(port) == "" {
		return errors.New("missing port")
	}
	if strings.Contains(host, " ") {
		return errors.New("invalid host")
	}
	return nil
}

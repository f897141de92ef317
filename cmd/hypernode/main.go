package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/eigerco/hyperlane-utxo/igp"
	"github.com/eigerco/hyperlane-utxo/indexer"
	"github.com/eigerco/hyperlane-utxo/node"
)

func main() {
	defaults := node.DefaultConfig()

	cfg := defaults
	configPath := flag.String("config", "", "path to JSON config file")
	flag.StringVar(&cfg.Network, "network", defaults.Network, "network name (preview/preprod/mainnet)")
	flag.StringVar(&cfg.DataDir, "datadir", defaults.DataDir, "node data directory")
	flag.StringVar(&cfg.LedgerEndpoint, "ledger", defaults.LedgerEndpoint, "ledger backend host:port")
	flag.StringVar(&cfg.LogLevel, "log-level", defaults.LogLevel, "log level: debug|info|warn|error")
	localDomain := flag.Uint("local-domain", 0, "protocol domain id of this chain")

	deliveredID := flag.String("delivered", "", "query: was this message id (hex) delivered")
	showLatest := flag.Bool("show-latest", false, "query: print the latest dispatched message id")
	paymentsID := flag.String("payments", "", "query: list gas payments for a message id (hex)")
	quoteGas := flag.Uint64("quote-gas", 0, "quote: destination gas amount")
	quotePrice := flag.Uint64("quote-gas-price", 0, "quote: oracle gas price")
	quoteRate := flag.Uint64("quote-exchange-rate", 0, "quote: oracle exchange rate")
	dryRun := flag.Bool("dry-run", false, "print effective config and exit")
	flag.Parse()

	if *configPath != "" {
		loaded, err := node.LoadConfig(*configPath)
		if err != nil {
			fatalf("config load failed: %v", err)
		}
		cfg = loaded
	}
	if *localDomain != 0 {
		cfg.LocalDomain = uint32(*localDomain)
	}
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	if err := node.ValidateConfig(cfg); err != nil {
		fatalf("invalid config: %v", err)
	}

	level, _ := zerolog.ParseLevel(cfg.LogLevel)
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()

	if *dryRun {
		if err := node.SaveConfig(node.ConfigPath(cfg.DataDir), cfg); err != nil {
			fatalf("config save failed: %v", err)
		}
		fmt.Printf("network=%s datadir=%s ledger=%s local_domain=%d\n",
			cfg.Network, cfg.DataDir, cfg.LedgerEndpoint, cfg.LocalDomain)
		return
	}

	if *quoteGas > 0 {
		required, err := igp.QuoteWith(igp.GasOracleConfig{
			Domain:       cfg.LocalDomain,
			GasPrice:     *quotePrice,
			ExchangeRate: *quoteRate,
		}, *quoteGas)
		if err != nil {
			fatalf("quote failed: %v", err)
		}
		fmt.Printf("%d\n", required)
		return
	}

	db, err := indexer.Open(cfg.DataDir)
	if err != nil {
		fatalf("index open failed: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error().Err(err).Msg("index close failed")
		}
	}()

	switch {
	case *deliveredID != "":
		id, err := parseID(*deliveredID)
		if err != nil {
			fatalf("bad message id: %v", err)
		}
		ok, err := db.Delivered(id)
		if err != nil {
			fatalf("query failed: %v", err)
		}
		fmt.Printf("%v\n", ok)

	case *paymentsID != "":
		id, err := parseID(*paymentsID)
		if err != nil {
			fatalf("bad message id: %v", err)
		}
		recs, err := db.PaymentsByMessage(id)
		if err != nil {
			fatalf("query failed: %v", err)
		}
		for _, r := range recs {
			fmt.Printf("tx=%x destination=%d payment=%d gas=%d\n",
				r.TxID, r.Destination, r.Payment, r.GasAmount)
		}

	case *showLatest:
		id, ok, err := db.LatestDispatchedID()
		if err != nil {
			fatalf("query failed: %v", err)
		}
		if !ok {
			fmt.Println("no dispatches indexed")
			return
		}
		fmt.Printf("%x\n", id)

	default:
		log.Info().
			Str("network", cfg.Network).
			Str("ledger", cfg.LedgerEndpoint).
			Uint32("local_domain", cfg.LocalDomain).
			Msg("no query requested; see -h for the query surface")
	}
}

func parseID(s string) ([32]byte, error) {
	var id [32]byte
	raw, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return id, err
	}
	if len(raw) != 32 {
		return id, fmt.Errorf("message id must be 32 bytes, got %d", len(raw))
	}
	copy(id[:], raw)
	return id, nil
}

func fatalf(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(2)
}

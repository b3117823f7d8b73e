package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"crashvault/config"
	"crashvault/core/events"
	"crashvault/core/state"
	"crashvault/crypto"
	"crashvault/native/crash"
	"crashvault/observability/logging"
	"crashvault/rpc"
	"crashvault/storage"
)

// logEmitter forwards settlement events into the structured log stream.
type logEmitter struct {
	log *slog.Logger
}

func (l logEmitter) Emit(evt events.Event) {
	attrs := []any{"event", evt.EventType()}
	if rec, ok := evt.(interface{ Event() *events.Record }); ok {
		for key, value := range rec.Event().Attributes {
			attrs = append(attrs, key, value)
		}
	}
	l.log.Info("settlement event", attrs...)
}

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	var logOpts *logging.Options
	if cfg.LogFile != "" {
		logOpts = &logging.Options{FilePath: cfg.LogFile}
	}
	logger := logging.Setup("crashvaultd", cfg.ServiceEnv, logOpts)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		logger.Error("failed to create data dir", "err", err)
		os.Exit(1)
	}
	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "state"))
	if err != nil {
		logger.Error("failed to open state database", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	manager := state.NewManager(db)
	engine := crash.NewEngine()
	engine.SetState(manager)
	engine.SetEmitter(logEmitter{log: logger})

	if err := ensureGenesis(engine, manager, cfg, logger); err != nil {
		logger.Error("genesis initialization failed", "err", err)
		os.Exit(1)
	}

	server := rpc.NewServer(engine, logger, cfg.AdminToken(), cfg.RequestsPerMin)
	if err := server.Start(cfg.ListenAddress); err != nil {
		logger.Error("rpc server stopped", "err", err)
		os.Exit(1)
	}
}

// ensureGenesis applies the one-shot ledger initialization when the state
// is empty. The vault and treasury default to addresses derived from their
// namespace tags when the config leaves them unset.
func ensureGenesis(engine *crash.Engine, manager *state.Manager, cfg *config.Config, logger *slog.Logger) error {
	if _, err := engine.GetConfig(); err == nil {
		return nil
	} else if !errors.Is(err, crash.ErrNotInitialized) {
		return err
	}

	if strings.TrimSpace(cfg.Genesis.Admin) == "" {
		return fmt.Errorf("empty state and no Genesis.Admin configured")
	}
	admin, err := crypto.DecodeAddress(cfg.Genesis.Admin)
	if err != nil {
		return fmt.Errorf("bad Genesis.Admin: %w", err)
	}
	vault, err := genesisAddress(cfg.Genesis.Vault, "vault")
	if err != nil {
		return fmt.Errorf("bad Genesis.Vault: %w", err)
	}
	treasury, err := genesisAddress(cfg.Genesis.Treasury, "treasury")
	if err != nil {
		return fmt.Errorf("bad Genesis.Treasury: %w", err)
	}

	if err := engine.Initialize(admin.Raw(), vault, treasury, cfg.Genesis.TaxBps); err != nil {
		return err
	}
	if cfg.Genesis.AdminFunds > 0 {
		if err := manager.FundsMint(admin.Raw(), cfg.Genesis.AdminFunds); err != nil {
			return err
		}
	}
	logger.Info("ledger initialized",
		"admin", admin.String(),
		"taxBps", cfg.Genesis.TaxBps,
		"adminFunds", cfg.Genesis.AdminFunds,
	)
	return nil
}

func genesisAddress(raw, namespace string) (crash.Address, error) {
	if strings.TrimSpace(raw) != "" {
		addr, err := crypto.DecodeAddress(raw)
		if err != nil {
			return crash.Address{}, err
		}
		return addr.Raw(), nil
	}
	id, _ := crash.DeriveID(namespace)
	var addr crash.Address
	copy(addr[:], id[:20])
	return addr, nil
}

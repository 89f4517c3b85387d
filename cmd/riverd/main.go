// Command riverd runs the blind salary negotiation service.
//
// It wires the configured store, an optional enclave and the negotiation
// ledger behind an HTTP server. With the enclave enabled, parties must seal
// their figures to the attested enclave key and the store never holds them in
// plaintext.
//
// # Usage
//
//	go run ./cmd/riverd --config=river.yaml
//	go run ./cmd/riverd --addr=:8080 --store=sqlite --db=river.db
//	go run ./cmd/riverd --enclave=false --variant=breakdown
//
// See package cmd/common for the configuration file format.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/flashbots/river/api/httpserver"
	"github.com/flashbots/river/cmd/common"
	"github.com/flashbots/river/negotiation"
	"github.com/flashbots/river/protocol"
	"github.com/flashbots/river/services"
	"github.com/flashbots/river/tee"
	"github.com/go-chi/cors"
)

func main() {
	var (
		configPath   = flag.String("config", "", "Path to YAML config file")
		addr         = flag.String("addr", "", "HTTP listen address")
		storeDriver  = flag.String("store", "", "Store driver: memory, sqlite or postgres")
		dbPath       = flag.String("db", "", "SQLite database path")
		enclave      = flag.Bool("enclave", true, "Hold confidential inputs in the enclave")
		useTDX       = flag.Bool("tdx", false, "Use real TDX attestation")
		remoteTDXURL = flag.String("tdx-url", "", "Remote TDX attestation service URL")
		variant      = flag.String("variant", "", "Default protocol variant: single or breakdown")
		logJSON      = flag.Bool("log-json", false, "Log in JSON")
		logLevel     = flag.String("log-level", "", "Log level: debug, info, warn or error")
		pprof        = flag.Bool("pprof", false, "Serve pprof under /debug")
	)
	flag.Parse()

	isFlagSet := func(name string) bool {
		found := false
		flag.Visit(func(f *flag.Flag) {
			if f.Name == name {
				found = true
			}
		})
		return found
	}

	cfg := common.DefaultConfig()
	if *configPath != "" {
		var err error
		cfg, err = common.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
	}

	if *addr != "" {
		cfg.HTTPAddr = *addr
	}
	if *storeDriver != "" {
		cfg.Store.Driver = *storeDriver
	}
	if *dbPath != "" {
		cfg.Store.Path = *dbPath
	}
	if isFlagSet("enclave") {
		cfg.Enclave.Enabled = *enclave
	}
	if *useTDX {
		cfg.Enclave.Attestation.UseTDX = true
	}
	if *remoteTDXURL != "" {
		cfg.Enclave.Attestation.TDXURL = *remoteTDXURL
	}
	if *variant != "" {
		if err := cfg.Protocol.Variant.UnmarshalText([]byte(*variant)); err != nil {
			fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
			os.Exit(1)
		}
	}
	if *logJSON {
		cfg.Log.JSON = true
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	log, err := common.NewLogger(cfg.Log, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *pprof, log); err != nil {
		log.Error("riverd failed", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *common.Config, enablePprof bool, log *slog.Logger) error {
	store, closeStore, err := common.NewStore(cfg.Store)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer func() {
		if err := closeStore(); err != nil {
			log.Error("closing store", "err", err)
		}
	}()

	ledgerConfig := &negotiation.LedgerConfig{Store: store, Log: log}
	serviceConfig := &services.ServiceConfig{
		Protocol: protocol.Config{DefaultTerms: cfg.Protocol},
		Log:      log,
	}

	if cfg.Enclave.Enabled {
		e, err := tee.New(&tee.Config{
			Attester: common.NewAttestationProvider(cfg.Enclave.Attestation),
			Log:      log,
		})
		if err != nil {
			return fmt.Errorf("starting enclave: %w", err)
		}
		ledgerConfig.Enclave = e
		serviceConfig.Enclave = e
		log.Info("Enclave started", "exchangeKey", e.ExchangeKey().String())
	}

	ledger, err := negotiation.NewLedger(ledgerConfig)
	if err != nil {
		return err
	}
	serviceConfig.Ledger = ledger

	service, err := services.NewNegotiationService(serviceConfig)
	if err != nil {
		return err
	}

	var middlewares []func(http.Handler) http.Handler
	if len(cfg.CORS.AllowedOrigins) > 0 {
		middlewares = append(middlewares, cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORS.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	srv, err := httpserver.New(&httpserver.HTTPServerConfig{
		ListenAddr:               cfg.HTTPAddr,
		EnablePprof:              enablePprof,
		Log:                      log,
		Middlewares:              middlewares,
		DrainDuration:            cfg.Timeouts.Drain,
		GracefulShutdownDuration: cfg.Timeouts.Shutdown,
		ReadTimeout:              cfg.Timeouts.Read,
		WriteTimeout:             cfg.Timeouts.Write,
	}, service)
	if err != nil {
		return err
	}

	log.Info("riverd starting",
		"store", cfg.Store.Driver,
		"enclave", cfg.Enclave.Enabled,
		"variant", cfg.Protocol.Variant.String(),
		"markers", cfg.Protocol.Markers)
	srv.RunInBackground()

	<-ctx.Done()
	log.Info("Shutting down")
	srv.Shutdown()
	return nil
}

package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/flashbots/river/cmd/common"
	"github.com/flashbots/river/services"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Server          string
	Key             string
	Format          string
	Timeout         time.Duration
	UseTDX          bool
	TDXURL          string
	MeasurementsURL string

	// httpClient overrides the default client in tests.
	httpClient *http.Client
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the river CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "river",
		Short:         "Blind salary negotiation client",
		Long:          "Create, join and settle blind salary negotiations on a riverd service.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.Server, "server", "s", envOr("RIVER_SERVER", "http://localhost:8080"), "riverd base URL (env RIVER_SERVER)")
	cmd.PersistentFlags().StringVarP(&opts.Key, "key", "k", os.Getenv("RIVER_KEY"), "hex Ed25519 key or seed (env RIVER_KEY)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", 30*time.Second, "request timeout")
	cmd.PersistentFlags().BoolVar(&opts.UseTDX, "tdx", false, "verify real TDX attestations")
	cmd.PersistentFlags().StringVar(&opts.TDXURL, "tdx-url", "", "remote TDX attestation service URL")
	cmd.PersistentFlags().StringVar(&opts.MeasurementsURL, "measurements-url", "", "URL of allowed enclave measurements")

	cmd.AddCommand(newKeygenCommand(opts))
	cmd.AddCommand(newCreateCommand(opts))
	cmd.AddCommand(newJoinCommand(opts))
	cmd.AddCommand(newSubmitCommand(opts))
	cmd.AddCommand(newFinalizeCommand(opts))
	cmd.AddCommand(newGetCommand(opts))

	return cmd
}

// client builds a service client. Commands that sign require --key; read
// only commands use a throwaway key.
func (o *RootOptions) client(requireKey bool) (*services.Client, error) {
	if requireKey && o.Key == "" {
		return nil, fmt.Errorf("--key is required (or set RIVER_KEY)")
	}
	key, err := common.LoadOrGenerateSigningKey(o.Key)
	if err != nil {
		return nil, fmt.Errorf("loading key: %w", err)
	}

	hc := o.httpClient
	if hc == nil {
		hc = &http.Client{Timeout: o.Timeout}
	}
	return services.NewClient(&services.ClientConfig{
		BaseURL:      o.Server,
		SigningKey:   key,
		Attester:     common.NewAttestationProvider(common.AttestationConfig{UseTDX: o.UseTDX, TDXURL: o.TDXURL}),
		Measurements: common.NewMeasurementSource(o.MeasurementsURL),
		HTTPClient:   hc,
	})
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

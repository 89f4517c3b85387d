package main

import (
	"encoding/hex"
	"fmt"

	"github.com/flashbots/river/crypto"
	"github.com/flashbots/river/negotiation"
	"github.com/flashbots/river/protocol"
	"github.com/spf13/cobra"
)

func newKeygenCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generate a party key",
		Long: `Generate a new Ed25519 party key.

The seed is secret; pass it with --key or RIVER_KEY. The identity is what the
other party sees.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pub, priv, err := crypto.GenerateKeyPair()
			if err != nil {
				return err
			}
			out := keyOutput{
				Seed:     hex.EncodeToString(priv.Bytes()[:32]),
				Identity: pub.String(),
			}
			return printKey(cmd, opts.Format, out)
		},
	}
}

func newCreateCommand(opts *RootOptions) *cobra.Command {
	var (
		id      uint64
		variant string
		markers bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Open a negotiation as the employer",
		Long: `Open a negotiation as the employer.

Without --id a fresh id is generated. Without --variant and --markers the
service default terms apply.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client(true)
			if err != nil {
				return err
			}

			nid := negotiation.ID(id)
			if !cmd.Flags().Changed("id") {
				if nid, err = protocol.NewNegotiationID(); err != nil {
					return err
				}
			}

			var terms *negotiation.Terms
			if cmd.Flags().Changed("variant") || cmd.Flags().Changed("markers") {
				cfg, err := c.Config(cmd.Context())
				if err != nil {
					return err
				}
				t := cfg.DefaultTerms
				if cmd.Flags().Changed("variant") {
					if err := t.Variant.UnmarshalText([]byte(variant)); err != nil {
						return err
					}
				}
				if cmd.Flags().Changed("markers") {
					t.Markers = markers
				}
				terms = &t
			}

			v, err := c.Create(cmd.Context(), nid, terms)
			if err != nil {
				return err
			}
			return printView(cmd, opts.Format, v)
		},
	}

	cmd.Flags().Uint64Var(&id, "id", 0, "negotiation id (generated if unset)")
	cmd.Flags().StringVar(&variant, "variant", "", "input shape: single or breakdown")
	cmd.Flags().BoolVar(&markers, "markers", false, "report which party has submitted")

	return cmd
}

func newJoinCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "join <id>",
		Short: "Join a negotiation as the candidate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := negotiation.ParseID(args[0])
			if err != nil {
				return err
			}
			c, err := opts.client(true)
			if err != nil {
				return err
			}
			v, err := c.Join(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printView(cmd, opts.Format, v)
		},
	}
}

func newSubmitCommand(opts *RootOptions) *cobra.Command {
	var (
		role                string
		base, bonus, equity uint64
	)

	cmd := &cobra.Command{
		Use:   "submit <id>",
		Short: "Submit your figures",
		Long: `Submit your figures for a negotiation.

The employer submits the maximum they will pay, the candidate the minimum
they will accept. Bonus and equity are only allowed in the breakdown variant.
Figures are write-once.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := negotiation.ParseID(args[0])
			if err != nil {
				return err
			}
			r, err := parseRole(role)
			if err != nil {
				return err
			}
			c, err := opts.client(true)
			if err != nil {
				return err
			}

			input := negotiation.Compensation{Base: base, Bonus: bonus, Equity: equity}
			v, err := c.Submit(cmd.Context(), id, r, input)
			if err != nil {
				return err
			}
			return printView(cmd, opts.Format, v)
		},
	}

	cmd.Flags().StringVar(&role, "role", "", "employer or candidate")
	cmd.Flags().Uint64Var(&base, "base", 0, "base salary")
	cmd.Flags().Uint64Var(&bonus, "bonus", 0, "bonus (breakdown only)")
	cmd.Flags().Uint64Var(&equity, "equity", 0, "equity (breakdown only)")
	cmd.MarkFlagRequired("role")
	cmd.MarkFlagRequired("base")

	return cmd
}

func newFinalizeCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "finalize <id>",
		Short: "Discard the figures of a completed negotiation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := negotiation.ParseID(args[0])
			if err != nil {
				return err
			}
			c, err := opts.client(true)
			if err != nil {
				return err
			}
			v, err := c.Finalize(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printView(cmd, opts.Format, v)
		},
	}
}

func newGetCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show the public state of a negotiation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := negotiation.ParseID(args[0])
			if err != nil {
				return err
			}
			c, err := opts.client(false)
			if err != nil {
				return err
			}
			v, err := c.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printView(cmd, opts.Format, v)
		},
	}
}

func parseRole(s string) (negotiation.Role, error) {
	switch s {
	case "employer":
		return negotiation.RoleEmployer, nil
	case "candidate":
		return negotiation.RoleCandidate, nil
	}
	return 0, fmt.Errorf("invalid role %q: must be employer or candidate", s)
}

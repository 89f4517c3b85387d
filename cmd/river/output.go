package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/flashbots/river/negotiation"
	"github.com/spf13/cobra"
)

type keyOutput struct {
	Seed     string `json:"seed"`
	Identity string `json:"identity"`
}

func printKey(cmd *cobra.Command, format string, k keyOutput) error {
	w := cmd.OutOrStdout()
	if format == "json" {
		return writeJSON(w, k)
	}
	fmt.Fprintf(w, "seed:     %s\n", k.Seed)
	fmt.Fprintf(w, "identity: %s\n", k.Identity)
	return nil
}

func printView(cmd *cobra.Command, format string, v *negotiation.View) error {
	w := cmd.OutOrStdout()
	if format == "json" {
		return writeJSON(w, v)
	}

	fmt.Fprintf(w, "negotiation %s\n", v.ID)
	fmt.Fprintf(w, "  address:   %s\n", v.Address)
	fmt.Fprintf(w, "  employer:  %s\n", v.Employer)
	if v.Candidate != nil {
		fmt.Fprintf(w, "  candidate: %s\n", v.Candidate)
	}
	fmt.Fprintf(w, "  variant:   %s\n", v.Variant)
	fmt.Fprintf(w, "  status:    %s\n", v.Status)
	fmt.Fprintf(w, "  result:    %s\n", v.Result)
	if v.Markers {
		fmt.Fprintf(w, "  submitted: employer=%t candidate=%t\n", v.EmployerSubmitted, v.CandidateSubmitted)
	}
	if d := v.MatchDetails; d != nil {
		fmt.Fprintf(w, "  details:   base=%t bonus=%t equity=%t total=%t\n",
			d.BaseMatch, d.BonusMatch, d.EquityMatch, d.TotalMatch)
	}
	if v.Delegated {
		fmt.Fprintln(w, "  held by enclave")
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

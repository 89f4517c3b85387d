// Command river is the command-line client for a riverd service.
//
// Each party keeps an Ed25519 key; the key signs every request and is the
// party's identity in the negotiation. Against a service with an enclave,
// figures are sealed to the enclave key after its attestation is verified.
//
// # Usage
//
//	river keygen
//	river create --key=$EMPLOYER_KEY --variant=breakdown
//	river join 1718000000123 --key=$CANDIDATE_KEY
//	river submit 1718000000123 --key=$EMPLOYER_KEY --role=employer --base=150000 --bonus=20000
//	river submit 1718000000123 --key=$CANDIDATE_KEY --role=candidate --base=140000 --bonus=25000
//	river finalize 1718000000123 --key=$EMPLOYER_KEY
//	river get 1718000000123 --format=json
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

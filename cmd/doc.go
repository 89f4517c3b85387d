// Package cmd provides the river binaries.
//
// # Commands
//
// riverd: The negotiation service. Serves the negotiation API over HTTP,
// persists sessions in memory, SQLite or PostgreSQL and, with the enclave
// enabled, keeps both parties' figures sealed inside it.
//
//	go run ./cmd/riverd --config=river.yaml
//	go run ./cmd/riverd --store=sqlite --db=river.db --variant=breakdown
//
// river: CLI client. Signs requests with the party key, verifies the
// enclave attestation and seals figures before submitting them.
//
//	go run ./cmd/river keygen
//	go run ./cmd/river create --key=$KEY --variant=breakdown --markers
//	go run ./cmd/river get 1718000000123
//
// # Configuration
//
// riverd reads YAML via --config; command-line flags override the file. See
// package cmd/common for the format.
package cmd

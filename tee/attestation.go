package tee

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/flashbots/river/crypto"
)

// Attester produces and checks attestation evidence. Implementations live
// in package tdx.
type Attester interface {
	AttestationType() string
	Attest(reportData [64]byte) ([]byte, error)
	Verify(report []byte, expectedReportData [64]byte) (map[int][]byte, error)
}

// Attestation binds the enclave's exchange key to attestation evidence.
type Attestation struct {
	Type        string             `json:"type"`
	ExchangeKey crypto.ExchangeKey `json:"exchange_key"`
	Report      []byte             `json:"report"`
}

// ReportData is the 64 byte value the attester signs over: SHA-256 of a
// domain tag and the exchange key, zero padded.
func ReportData(key crypto.ExchangeKey) [64]byte {
	h := sha256.New()
	h.Write([]byte("river-enclave-exchange-key-v1"))
	h.Write(key[:])

	var rd [64]byte
	copy(rd[:], h.Sum(nil))
	return rd
}

// VerifyAttestation checks that a binds its exchange key and returns the
// attested measurements.
func VerifyAttestation(attester Attester, a *Attestation) (map[int][]byte, error) {
	if attester == nil {
		return nil, errors.New("no attester configured")
	}
	if a == nil || len(a.Report) == 0 {
		return nil, errors.New("no attestation data")
	}
	if a.Type != attester.AttestationType() {
		return nil, fmt.Errorf("attestation type %q, expected %q", a.Type, attester.AttestationType())
	}

	measurements, err := attester.Verify(a.Report, ReportData(a.ExchangeKey))
	if err != nil {
		return nil, fmt.Errorf("could not verify attestation: %w", err)
	}
	return measurements, nil
}

package protocol

import (
	"crypto/rand"
	"math/big"
	"time"

	"github.com/flashbots/river/negotiation"
)

// Config is the protocol configuration a service publishes to its clients.
type Config struct {
	// DefaultTerms apply to create requests that carry no terms.
	DefaultTerms negotiation.Terms `json:"default_terms" yaml:"default_terms"`

	// SealedInputs is set when an enclave is configured; clients must then
	// seal their inputs to the attested exchange key.
	SealedInputs bool `json:"sealed_inputs" yaml:"-"`
}

// idJitter bounds the random part of a generated negotiation id.
const idJitter = 1_000_000

// NewNegotiationID returns the current unix time in milliseconds plus a
// random offset below one million.
func NewNegotiationID() (negotiation.ID, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(idJitter))
	if err != nil {
		return 0, err
	}
	return negotiation.ID(uint64(time.Now().UnixMilli()) + n.Uint64()), nil
}

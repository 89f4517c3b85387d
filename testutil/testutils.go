package testutil

import (
	"crypto/rand"
	"encoding/binary"
	"testing"

	"github.com/flashbots/river/crypto"
	"github.com/flashbots/river/negotiation"
	"github.com/stretchr/testify/require"
)

// Party is a signing identity used by tests.
type Party struct {
	PublicKey  crypto.PublicKey
	PrivateKey crypto.PrivateKey
	Identity   negotiation.Identity
}

// NewParty generates a fresh party.
func NewParty(t testing.TB) *Party {
	t.Helper()
	pub, priv, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	id, err := negotiation.IdentityFromPublicKey(pub)
	require.NoError(t, err)
	return &Party{PublicKey: pub, PrivateKey: priv, Identity: id}
}

// PartyFromSeed derives a deterministic party, for golden files.
func PartyFromSeed(t testing.TB, seed byte) *Party {
	t.Helper()
	raw := make([]byte, 32)
	for i := range raw {
		raw[i] = seed
	}
	priv, err := crypto.NewPrivateKeyFromSeed(raw)
	require.NoError(t, err)
	pub, err := priv.PublicKey()
	require.NoError(t, err)
	id, err := negotiation.IdentityFromPublicKey(pub)
	require.NoError(t, err)
	return &Party{PublicKey: pub, PrivateKey: priv, Identity: id}
}

// RandomID returns a random negotiation id.
func RandomID(t testing.TB) negotiation.ID {
	t.Helper()
	var b [8]byte
	_, err := rand.Read(b[:])
	require.NoError(t, err)
	return negotiation.ID(binary.LittleEndian.Uint64(b[:]))
}

type sessionOptions struct {
	id        *negotiation.ID
	terms     negotiation.Terms
	candidate *Party
	employer  *negotiation.Compensation
	cand      *negotiation.Compensation
	finalize  bool
}

// SessionOption customizes NewSession.
type SessionOption func(*sessionOptions)

// WithID fixes the session id.
func WithID(id negotiation.ID) SessionOption {
	return func(o *sessionOptions) { o.id = &id }
}

// WithVariant selects the input shape.
func WithVariant(v negotiation.Variant) SessionOption {
	return func(o *sessionOptions) { o.terms.Variant = v }
}

// WithMarkers enables the per-party submitted statuses.
func WithMarkers() SessionOption {
	return func(o *sessionOptions) { o.terms.Markers = true }
}

// WithCandidate joins p as the candidate.
func WithCandidate(p *Party) SessionOption {
	return func(o *sessionOptions) { o.candidate = p }
}

// WithEmployerInput submits the employer's offer.
func WithEmployerInput(c negotiation.Compensation) SessionOption {
	return func(o *sessionOptions) { o.employer = &c }
}

// WithCandidateInput submits the candidate's requirement. Requires
// WithCandidate.
func WithCandidateInput(c negotiation.Compensation) SessionOption {
	return func(o *sessionOptions) { o.cand = &c }
}

// Finalized finalizes the session after the inputs are in.
func Finalized() SessionOption {
	return func(o *sessionOptions) { o.finalize = true }
}

// NewSession builds a session owned by employer and drives it through the
// operations the options ask for.
func NewSession(t testing.TB, employer *Party, options ...SessionOption) *negotiation.Session {
	t.Helper()

	o := &sessionOptions{}
	for _, opt := range options {
		opt(o)
	}
	id := RandomID(t)
	if o.id != nil {
		id = *o.id
	}

	s, err := negotiation.NewSession(id, employer.Identity, o.terms)
	require.NoError(t, err)

	if o.candidate != nil {
		require.NoError(t, s.Join(o.candidate.Identity))
	}
	if o.employer != nil {
		require.NoError(t, s.SubmitEmployer(employer.Identity, *o.employer))
	}
	if o.cand != nil {
		require.NotNil(t, o.candidate, "candidate input requires a candidate")
		require.NoError(t, s.SubmitCandidate(o.candidate.Identity, *o.cand))
	}
	if o.finalize {
		require.NoError(t, s.Finalize(employer.Identity))
	}
	return s
}

// SealInput encrypts c to the enclave key for the given negotiation and role.
func SealInput(t testing.TB, key crypto.ExchangeKey, id negotiation.ID, role negotiation.Role, c negotiation.Compensation) []byte {
	t.Helper()
	plaintext, err := c.MarshalBinary()
	require.NoError(t, err)
	sealed, err := crypto.Seal(key, plaintext, negotiation.SealingContext(id, role))
	require.NoError(t, err)
	return sealed
}

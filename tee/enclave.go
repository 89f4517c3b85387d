package tee

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/flashbots/river/crypto"
	"github.com/flashbots/river/negotiation"
	"github.com/google/uuid"
)

// ErrNotDelegated is returned for operations on a session the enclave does
// not hold.
var ErrNotDelegated = errors.New("negotiation is not delegated to the enclave")

// Config configures an Enclave.
type Config struct {
	// Attester produces evidence for the exchange key. Optional; without
	// it Attest fails.
	Attester Attester

	Log *slog.Logger
}

// Lease describes one delegated session.
type Lease struct {
	ID          uuid.UUID      `json:"id"`
	Negotiation negotiation.ID `json:"negotiation"`
	Since       time.Time      `json:"since"`
}

type custody struct {
	lease  Lease
	sealed []byte
}

// Enclave is an in-memory confidential-compute environment.
type Enclave struct {
	attester Attester
	log      *slog.Logger

	exchangePub  crypto.ExchangeKey
	exchangePriv crypto.ExchangePrivateKey
	sealing      cipher.AEAD

	mu       sync.Mutex
	sessions map[negotiation.ID]*custody
}

// New creates an enclave with fresh exchange and sealing keys.
func New(cfg *Config) (*Enclave, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	log := cfg.Log
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	pub, priv, err := crypto.GenerateExchangeKeyPair()
	if err != nil {
		return nil, fmt.Errorf("failed to generate exchange key: %w", err)
	}

	rootSecret := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, rootSecret); err != nil {
		return nil, fmt.Errorf("failed to generate sealing secret: %w", err)
	}
	instanceID := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, instanceID); err != nil {
		return nil, fmt.Errorf("failed to generate instance ID: %w", err)
	}
	sealingKey, err := crypto.DeriveKey(rootSecret, instanceID, []byte("river-enclave-sealing-v1"))
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(sealingKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &Enclave{
		attester:     cfg.Attester,
		log:          log,
		exchangePub:  pub,
		exchangePriv: priv,
		sealing:      gcm,
		sessions:     make(map[negotiation.ID]*custody),
	}, nil
}

// ExchangeKey is the key parties seal their figures to.
func (e *Enclave) ExchangeKey() crypto.ExchangeKey {
	return e.exchangePub
}

// Attest returns evidence binding the exchange key.
func (e *Enclave) Attest() (*Attestation, error) {
	if e.attester == nil {
		return nil, errors.New("no attester configured")
	}
	report, err := e.attester.Attest(ReportData(e.exchangePub))
	if err != nil {
		return nil, fmt.Errorf("attesting exchange key: %w", err)
	}
	return &Attestation{
		Type:        e.attester.AttestationType(),
		ExchangeKey: e.exchangePub,
		Report:      report,
	}, nil
}

// Delegate takes custody of s.
func (e *Enclave) Delegate(ctx context.Context, s *negotiation.Session) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.sessions[s.ID]; ok {
		return fmt.Errorf("negotiation %d already delegated", s.ID)
	}

	sealed, err := e.seal(s)
	if err != nil {
		return err
	}
	c := &custody{
		lease: Lease{
			ID:          uuid.New(),
			Negotiation: s.ID,
			Since:       time.Now().UTC(),
		},
		sealed: sealed,
	}
	e.sessions[s.ID] = c

	e.log.Info("session delegated", "negotiation", s.ID, "lease", c.lease.ID.String())
	return nil
}

// Delegated reports whether the enclave holds id.
func (e *Enclave) Delegated(id negotiation.ID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.sessions[id]
	return ok
}

// Leases lists the sessions currently held.
func (e *Enclave) Leases() []Lease {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Lease, 0, len(e.sessions))
	for _, c := range e.sessions {
		out = append(out, c.lease)
	}
	return out
}

// Execute applies fn to the delegated session and reseals it if fn succeeds.
func (e *Enclave) Execute(ctx context.Context, id negotiation.ID, fn func(*negotiation.Session, negotiation.Opener) error) (*negotiation.View, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, s, err := e.unsealLocked(id)
	if err != nil {
		return nil, err
	}

	if err := fn(s, e.open); err != nil {
		return nil, err
	}

	sealed, err := e.seal(s)
	if err != nil {
		return nil, err
	}
	c.sealed = sealed

	v := s.PublicView()
	v.Delegated = true
	return v, nil
}

// Undelegate applies fn and releases the session if fn succeeds and the
// confidential inputs are gone. On any failure the enclave keeps custody.
func (e *Enclave) Undelegate(ctx context.Context, id negotiation.ID, fn func(*negotiation.Session) error) (*negotiation.Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, s, err := e.unsealLocked(id)
	if err != nil {
		return nil, err
	}

	if err := fn(s); err != nil {
		return nil, err
	}
	if s.HasConfidentialInputs() {
		return nil, errors.New("refusing to release a session that still holds confidential inputs")
	}

	delete(e.sessions, id)
	e.log.Info("session undelegated", "negotiation", id, "lease", c.lease.ID.String(),
		"held", time.Since(c.lease.Since).String())
	return s, nil
}

// Peek returns the public view of a delegated session.
func (e *Enclave) Peek(ctx context.Context, id negotiation.ID) (*negotiation.View, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, s, err := e.unsealLocked(id)
	if err != nil {
		return nil, err
	}
	v := s.PublicView()
	v.Delegated = true
	return v, nil
}

// open decrypts a sealed submission with the exchange key.
func (e *Enclave) open(sealed, aad []byte) (negotiation.Compensation, error) {
	var c negotiation.Compensation
	plaintext, err := crypto.Open(e.exchangePriv, sealed, aad)
	if err != nil {
		return c, err
	}
	if err := c.UnmarshalBinary(plaintext); err != nil {
		return c, err
	}
	return c, nil
}

func (e *Enclave) unsealLocked(id negotiation.ID) (*custody, *negotiation.Session, error) {
	c, ok := e.sessions[id]
	if !ok {
		return nil, nil, ErrNotDelegated
	}
	s, err := e.unseal(id, c.sealed)
	if err != nil {
		return nil, nil, err
	}
	return c, s, nil
}

// seal encrypts the record with the instance sealing key, bound to its id.
// Output is nonce || ciphertext+tag.
func (e *Enclave) seal(s *negotiation.Session) ([]byte, error) {
	rec, err := s.MarshalBinary()
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, e.sealing.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return e.sealing.Seal(nonce, nonce, rec, idBytes(s.ID)), nil
}

func (e *Enclave) unseal(id negotiation.ID, sealed []byte) (*negotiation.Session, error) {
	ns := e.sealing.NonceSize()
	if len(sealed) < ns {
		return nil, errors.New("sealed data too short")
	}

	rec, err := e.sealing.Open(nil, sealed[:ns], sealed[ns:], idBytes(id))
	if err != nil {
		return nil, fmt.Errorf("failed to unseal: %w", err)
	}

	s := &negotiation.Session{}
	if err := s.UnmarshalBinary(rec); err != nil {
		return nil, err
	}
	return s, nil
}

func idBytes(id negotiation.ID) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(id))
	return b[:]
}

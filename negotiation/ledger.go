package negotiation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// Opener decrypts a sealed submission inside the enclave. aad is the
// SealingContext the submitter bound into the box.
type Opener func(sealed, aad []byte) (Compensation, error)

// Enclave is the confidential-compute environment. While a session is
// delegated the enclave holds its authoritative copy and every operation on
// it runs inside the enclave; the public store keeps the pre-delegation
// record until Undelegate hands the finalized record back.
type Enclave interface {
	// Delegate takes custody of s.
	Delegate(ctx context.Context, s *Session) error

	// Delegated reports whether the enclave holds id.
	Delegated(id ID) bool

	// Execute applies fn to the delegated session. The change is kept only
	// if fn returns nil. Only the public view leaves the enclave.
	Execute(ctx context.Context, id ID, fn func(s *Session, open Opener) error) (*View, error)

	// Undelegate applies fn and, if it succeeds and no confidential input
	// remains, releases custody and returns the session for the public store.
	Undelegate(ctx context.Context, id ID, fn func(s *Session) error) (*Session, error)

	// Peek returns the public view of a delegated session.
	Peek(ctx context.Context, id ID) (*View, error)
}

// Submission carries one party's input, either in plaintext (no enclave) or
// sealed to the enclave's exchange key.
type Submission struct {
	Plain  *Compensation
	Sealed []byte
}

// LedgerConfig wires a Ledger.
type LedgerConfig struct {
	Store Store

	// Enclave is optional. Without it submissions are plaintext and the
	// store holds the inputs until finalize.
	Enclave Enclave

	Log *slog.Logger
}

// Ledger is the session store the outer layers talk to. It serializes
// operations per negotiation id; operations on different ids run in parallel.
type Ledger struct {
	store   Store
	enclave Enclave
	log     *slog.Logger
	locks   *keyedMutex
}

// NewLedger creates a Ledger from cfg.
func NewLedger(cfg *LedgerConfig) (*Ledger, error) {
	if cfg == nil || cfg.Store == nil {
		return nil, errors.New("ledger requires a store")
	}
	log := cfg.Log
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Ledger{
		store:   cfg.Store,
		enclave: cfg.Enclave,
		log:     log,
		locks:   newKeyedMutex(),
	}, nil
}

// HasEnclave reports whether submissions must be sealed.
func (l *Ledger) HasEnclave() bool {
	return l.enclave != nil
}

// Create opens a new negotiation owned by employer.
func (l *Ledger) Create(ctx context.Context, id ID, employer Identity, terms Terms) (*View, error) {
	unlock := l.locks.lock(id)
	defer unlock()

	s, err := NewSession(id, employer, terms)
	if err != nil {
		return nil, opError("create", id, err)
	}
	if err := l.store.Create(ctx, s); err != nil {
		return nil, opError("create", id, err)
	}

	l.log.Info("negotiation created", "id", id, "employer", employer.String(),
		"variant", terms.Variant.String(), "markers", terms.Markers)
	return s.PublicView(), nil
}

// Get returns the public view of a negotiation.
func (l *Ledger) Get(ctx context.Context, id ID) (*View, error) {
	unlock := l.locks.lock(id)
	defer unlock()

	if l.enclave != nil && l.enclave.Delegated(id) {
		v, err := l.enclave.Peek(ctx, id)
		return v, opError("get", id, err)
	}

	s, err := l.load(ctx, id)
	if err != nil {
		return nil, opError("get", id, err)
	}
	return s.PublicView(), nil
}

// Join records caller as the candidate.
func (l *Ledger) Join(ctx context.Context, id ID, caller Identity) (*View, error) {
	unlock := l.locks.lock(id)
	defer unlock()

	v, err := l.apply(ctx, id, func(s *Session, _ Opener) error {
		return s.Join(caller)
	})
	if err != nil {
		return nil, opError("join", id, err)
	}
	l.logTransition("join", v)
	return v, nil
}

// SubmitEmployer stores the employer's offer.
func (l *Ledger) SubmitEmployer(ctx context.Context, id ID, caller Identity, sub Submission) (*View, error) {
	return l.submit(ctx, "submit_employer", id, RoleEmployer, caller, sub)
}

// SubmitCandidate stores the candidate's requirement.
func (l *Ledger) SubmitCandidate(ctx context.Context, id ID, caller Identity, sub Submission) (*View, error) {
	return l.submit(ctx, "submit_candidate", id, RoleCandidate, caller, sub)
}

// Finalize purges the confidential inputs once the result is known. With an
// enclave this is also where the record returns to the public store.
func (l *Ledger) Finalize(ctx context.Context, id ID, caller Identity) (*View, error) {
	unlock := l.locks.lock(id)
	defer unlock()

	var (
		v   *View
		err error
	)
	if l.enclave != nil && l.enclave.Delegated(id) {
		v, err = l.finalizeDelegated(ctx, id, caller)
	} else {
		v, err = l.apply(ctx, id, func(s *Session, _ Opener) error {
			return s.Finalize(caller)
		})
	}
	if err != nil {
		return nil, opError("finalize", id, err)
	}
	l.logTransition("finalize", v)
	return v, nil
}

func (l *Ledger) submit(ctx context.Context, op string, id ID, role Role, caller Identity, sub Submission) (*View, error) {
	unlock := l.locks.lock(id)
	defer unlock()

	if err := l.checkSubmissionMode(sub); err != nil {
		return nil, opError(op, id, err)
	}

	if l.enclave != nil && !l.enclave.Delegated(id) {
		s, err := l.load(ctx, id)
		if err != nil {
			return nil, opError(op, id, err)
		}
		if err := s.CheckSubmit(role, caller); err != nil {
			return nil, opError(op, id, err)
		}
		if err := l.delegate(ctx, s); err != nil {
			return nil, opError(op, id, err)
		}
	}

	v, err := l.apply(ctx, id, func(s *Session, open Opener) error {
		if err := s.CheckSubmit(role, caller); err != nil {
			return err
		}
		input, err := resolveSubmission(sub, open, SealingContext(id, role))
		if err != nil {
			return err
		}
		return s.Submit(role, caller, input)
	})
	if err != nil {
		return nil, opError(op, id, err)
	}
	l.logTransition(op, v)
	return v, nil
}

// apply runs fn on the authoritative copy of the session, wherever it lives.
// Store-held sessions are mutated on a clone that is saved only on success.
func (l *Ledger) apply(ctx context.Context, id ID, fn func(*Session, Opener) error) (*View, error) {
	if l.enclave != nil && l.enclave.Delegated(id) {
		return l.enclave.Execute(ctx, id, fn)
	}

	s, err := l.load(ctx, id)
	if err != nil {
		return nil, err
	}
	work := s.Clone()
	if err := fn(work, nil); err != nil {
		return nil, err
	}
	if err := l.store.Save(ctx, work); err != nil {
		return nil, err
	}
	return work.PublicView(), nil
}

func (l *Ledger) finalizeDelegated(ctx context.Context, id ID, caller Identity) (*View, error) {
	s, err := l.enclave.Undelegate(ctx, id, func(s *Session) error {
		return s.Finalize(caller)
	})
	if err != nil {
		return nil, err
	}
	if s.HasConfidentialInputs() {
		return nil, fmt.Errorf("%w: enclave returned confidential inputs", ErrCorruptRecord)
	}
	s.Delegated = false
	if err := l.store.Save(ctx, s); err != nil {
		return nil, fmt.Errorf("committing finalized record: %w", err)
	}
	l.log.Info("negotiation undelegated", "id", id)
	return s.PublicView(), nil
}

// load reads the stored record for a session the enclave does not hold. A
// record still marked delegated means the enclave lost custody, for example
// across a restart; its stored state predates the delegated operations and
// must not be acted on.
func (l *Ledger) load(ctx context.Context, id ID) (*Session, error) {
	s, err := l.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.Delegated {
		return nil, ErrCustodyLost
	}
	return s, nil
}

// delegate marks the stored record before the enclave takes custody, so a
// crash in between leaves a record that refuses service rather than one
// that accepts inputs again. If the enclave refuses, the mark is removed.
func (l *Ledger) delegate(ctx context.Context, s *Session) error {
	marked := s.Clone()
	marked.Delegated = true
	if err := l.store.Save(ctx, marked); err != nil {
		return fmt.Errorf("marking record delegated: %w", err)
	}
	if err := l.enclave.Delegate(ctx, marked); err != nil {
		if rerr := l.store.Save(ctx, s); rerr != nil {
			l.log.Error("restoring record after failed delegation", "id", s.ID, "err", rerr)
		}
		return fmt.Errorf("delegating to enclave: %w", err)
	}
	l.log.Info("negotiation delegated", "id", s.ID)
	return nil
}

func (l *Ledger) checkSubmissionMode(sub Submission) error {
	switch {
	case sub.Plain == nil && len(sub.Sealed) == 0:
		return fmt.Errorf("%w: empty submission", ErrInvalidInput)
	case sub.Plain != nil && len(sub.Sealed) != 0:
		return fmt.Errorf("%w: submission is both plain and sealed", ErrInvalidInput)
	case sub.Plain != nil && l.enclave != nil:
		return ErrPlaintextSubmission
	case len(sub.Sealed) != 0 && l.enclave == nil:
		return ErrEnclaveRequired
	}
	return nil
}

func resolveSubmission(sub Submission, open Opener, aad []byte) (Compensation, error) {
	if sub.Plain != nil {
		return *sub.Plain, nil
	}
	if open == nil {
		return Compensation{}, ErrEnclaveRequired
	}
	in, err := open(sub.Sealed, aad)
	if err != nil {
		return Compensation{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return in, nil
}

func (l *Ledger) logTransition(op string, v *View) {
	l.log.Info("negotiation updated", "id", v.ID, "op", op,
		"status", v.Status.String(), "result", v.Result.String())
}

// keyedMutex hands out one mutex per negotiation id and drops it once no
// goroutine holds or waits for it.
type keyedMutex struct {
	mu      sync.Mutex
	entries map[ID]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{entries: make(map[ID]*keyedEntry)}
}

func (k *keyedMutex) lock(id ID) func() {
	k.mu.Lock()
	e, ok := k.entries[id]
	if !ok {
		e = &keyedEntry{}
		k.entries[id] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.entries, id)
		}
		k.mu.Unlock()
	}
}

package tee_test

import (
	"context"
	"errors"
	"testing"

	"github.com/flashbots/river/negotiation"
	"github.com/flashbots/river/tdx"
	"github.com/flashbots/river/tee"
	"github.com/flashbots/river/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEnclave(t *testing.T) *tee.Enclave {
	t.Helper()
	e, err := tee.New(&tee.Config{Attester: &tdx.DummyProvider{}})
	require.NoError(t, err)
	return e
}

func submitSealed(e *tee.Enclave, role negotiation.Role, caller negotiation.Identity, sealed []byte) func(*negotiation.Session, negotiation.Opener) error {
	return func(s *negotiation.Session, open negotiation.Opener) error {
		in, err := open(sealed, negotiation.SealingContext(s.ID, role))
		if err != nil {
			return err
		}
		return s.Submit(role, caller, in)
	}
}

func TestEnclaveLifecycle(t *testing.T) {
	ctx := context.Background()
	e := newEnclave(t)
	employer := testutil.NewParty(t)
	candidate := testutil.NewParty(t)
	s := testutil.NewSession(t, employer, testutil.WithCandidate(candidate))

	require.False(t, e.Delegated(s.ID))
	require.NoError(t, e.Delegate(ctx, s))
	require.True(t, e.Delegated(s.ID))
	require.Len(t, e.Leases(), 1)
	assert.Equal(t, s.ID, e.Leases()[0].Negotiation)

	// A second delegation of the same id is refused.
	require.Error(t, e.Delegate(ctx, s))

	offer := testutil.SealInput(t, e.ExchangeKey(), s.ID, negotiation.RoleEmployer, negotiation.Single(120))
	v, err := e.Execute(ctx, s.ID, submitSealed(e, negotiation.RoleEmployer, employer.Identity, offer))
	require.NoError(t, err)
	assert.True(t, v.Delegated)
	assert.True(t, v.EmployerSubmitted)
	assert.Equal(t, negotiation.ResultPending, v.Result)

	ask := testutil.SealInput(t, e.ExchangeKey(), s.ID, negotiation.RoleCandidate, negotiation.Single(100))
	v, err = e.Execute(ctx, s.ID, submitSealed(e, negotiation.RoleCandidate, candidate.Identity, ask))
	require.NoError(t, err)
	assert.Equal(t, negotiation.StatusComplete, v.Status)
	assert.Equal(t, negotiation.ResultMatch, v.Result)

	peek, err := e.Peek(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, v, peek)

	out, err := e.Undelegate(ctx, s.ID, func(s *negotiation.Session) error {
		return s.Finalize(employer.Identity)
	})
	require.NoError(t, err)
	assert.False(t, out.HasConfidentialInputs())
	assert.Equal(t, negotiation.StatusFinalized, out.Status)
	assert.False(t, e.Delegated(s.ID))
	assert.Empty(t, e.Leases())
}

func TestEnclaveExecuteKeepsStateOnError(t *testing.T) {
	ctx := context.Background()
	e := newEnclave(t)
	employer := testutil.NewParty(t)
	candidate := testutil.NewParty(t)
	s := testutil.NewSession(t, employer, testutil.WithCandidate(candidate))
	require.NoError(t, e.Delegate(ctx, s))

	boom := errors.New("boom")
	_, err := e.Execute(ctx, s.ID, func(s *negotiation.Session, _ negotiation.Opener) error {
		s.EmployerInput = &negotiation.Compensation{Base: 1}
		return boom
	})
	require.ErrorIs(t, err, boom)

	v, err := e.Peek(ctx, s.ID)
	require.NoError(t, err)
	assert.False(t, v.EmployerSubmitted)
}

func TestEnclaveRejectsMisboundInput(t *testing.T) {
	ctx := context.Background()
	e := newEnclave(t)
	employer := testutil.NewParty(t)
	candidate := testutil.NewParty(t)
	s := testutil.NewSession(t, employer, testutil.WithCandidate(candidate))
	require.NoError(t, e.Delegate(ctx, s))

	// Sealed for the candidate role, submitted as the employer.
	sealed := testutil.SealInput(t, e.ExchangeKey(), s.ID, negotiation.RoleCandidate, negotiation.Single(10))
	_, err := e.Execute(ctx, s.ID, submitSealed(e, negotiation.RoleEmployer, employer.Identity, sealed))
	require.Error(t, err)

	// Sealed for another negotiation.
	sealed = testutil.SealInput(t, e.ExchangeKey(), s.ID+1, negotiation.RoleEmployer, negotiation.Single(10))
	_, err = e.Execute(ctx, s.ID, submitSealed(e, negotiation.RoleEmployer, employer.Identity, sealed))
	require.Error(t, err)
}

func TestEnclaveUndelegateRefusesInputs(t *testing.T) {
	ctx := context.Background()
	e := newEnclave(t)
	employer := testutil.NewParty(t)
	s := testutil.NewSession(t, employer, testutil.WithEmployerInput(negotiation.Single(5)))
	require.NoError(t, e.Delegate(ctx, s))

	_, err := e.Undelegate(ctx, s.ID, func(*negotiation.Session) error { return nil })
	require.Error(t, err)
	assert.True(t, e.Delegated(s.ID))

	_, err = e.Undelegate(ctx, s.ID, func(s *negotiation.Session) error { return s.Finalize(employer.Identity) })
	require.ErrorIs(t, err, negotiation.ErrNotComplete)
	assert.True(t, e.Delegated(s.ID))
}

func TestEnclaveUnknownSession(t *testing.T) {
	ctx := context.Background()
	e := newEnclave(t)

	_, err := e.Peek(ctx, 42)
	require.ErrorIs(t, err, tee.ErrNotDelegated)
	_, err = e.Execute(ctx, 42, func(*negotiation.Session, negotiation.Opener) error { return nil })
	require.ErrorIs(t, err, tee.ErrNotDelegated)
	_, err = e.Undelegate(ctx, 42, func(*negotiation.Session) error { return nil })
	require.ErrorIs(t, err, tee.ErrNotDelegated)
}

func TestAttestation(t *testing.T) {
	e := newEnclave(t)

	a, err := e.Attest()
	require.NoError(t, err)
	assert.Equal(t, tdx.DummyType, a.Type)
	assert.Equal(t, e.ExchangeKey(), a.ExchangeKey)

	measurements, err := tee.VerifyAttestation(&tdx.DummyProvider{}, a)
	require.NoError(t, err)
	assert.Equal(t, tdx.DummyMeasurements(), measurements)

	// Swapping the key breaks the binding.
	other := newEnclave(t)
	forged := *a
	forged.ExchangeKey = other.ExchangeKey()
	_, err = tee.VerifyAttestation(&tdx.DummyProvider{}, &forged)
	require.Error(t, err)

	forged = *a
	forged.Type = tdx.QuoteType
	_, err = tee.VerifyAttestation(&tdx.DummyProvider{}, &forged)
	require.Error(t, err)

	noAttester, err := tee.New(nil)
	require.NoError(t, err)
	_, err = noAttester.Attest()
	require.Error(t, err)
}

package negotiation_test

import (
	"testing"

	"github.com/flashbots/river/negotiation"
	"github.com/flashbots/river/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionFullLifecycle(t *testing.T) {
	for _, employerFirst := range []bool{true, false} {
		employer := testutil.NewParty(t)
		candidate := testutil.NewParty(t)

		s, err := negotiation.NewSession(1, employer.Identity, negotiation.Terms{})
		require.NoError(t, err)
		require.Equal(t, negotiation.StatusCreated, s.Status)
		require.Equal(t, negotiation.ResultPending, s.Result)

		require.NoError(t, s.Join(candidate.Identity))
		require.Equal(t, negotiation.StatusReady, s.Status)

		if employerFirst {
			require.NoError(t, s.SubmitEmployer(employer.Identity, negotiation.Single(100)))
			require.Equal(t, negotiation.StatusReady, s.Status)
			require.NoError(t, s.SubmitCandidate(candidate.Identity, negotiation.Single(90)))
		} else {
			require.NoError(t, s.SubmitCandidate(candidate.Identity, negotiation.Single(90)))
			require.NoError(t, s.SubmitEmployer(employer.Identity, negotiation.Single(100)))
		}
		require.Equal(t, negotiation.StatusComplete, s.Status)
		require.Equal(t, negotiation.ResultMatch, s.Result)

		require.NoError(t, s.Finalize(candidate.Identity))
		assert.Equal(t, negotiation.StatusFinalized, s.Status)
		assert.Nil(t, s.EmployerInput)
		assert.Nil(t, s.CandidateInput)
		assert.Equal(t, negotiation.ResultMatch, s.Result)
	}
}

func TestSessionOrderInvariance(t *testing.T) {
	inputs := []struct {
		employer, candidate negotiation.Compensation
	}{
		{negotiation.Compensation{Base: 100, Bonus: 20, Equity: 10}, negotiation.Compensation{Base: 90, Bonus: 25, Equity: 5}},
		{negotiation.Compensation{Base: 100}, negotiation.Compensation{Base: 101}},
		{negotiation.Compensation{Base: 1, Bonus: 2, Equity: 3}, negotiation.Compensation{Base: 3, Bonus: 2, Equity: 1}},
	}

	employer := testutil.NewParty(t)
	candidate := testutil.NewParty(t)
	for _, in := range inputs {
		s1, err := negotiation.NewSession(1, employer.Identity, negotiation.Terms{Variant: negotiation.VariantBreakdown})
		require.NoError(t, err)
		s2 := s1.Clone()

		require.NoError(t, s1.Join(candidate.Identity))
		require.NoError(t, s1.SubmitEmployer(employer.Identity, in.employer))
		require.NoError(t, s1.SubmitCandidate(candidate.Identity, in.candidate))

		require.NoError(t, s2.Join(candidate.Identity))
		require.NoError(t, s2.SubmitCandidate(candidate.Identity, in.candidate))
		require.NoError(t, s2.SubmitEmployer(employer.Identity, in.employer))

		require.Equal(t, s1.Result, s2.Result)
		require.Equal(t, s1.Details, s2.Details)
		require.Equal(t, s1, s2)
	}
}

func TestSessionWriteOnce(t *testing.T) {
	employer := testutil.NewParty(t)
	candidate := testutil.NewParty(t)

	// Before the counterpart submitted.
	s := testutil.NewSession(t, employer, testutil.WithCandidate(candidate),
		testutil.WithEmployerInput(negotiation.Single(100)))
	before := s.Clone()
	require.ErrorIs(t, s.SubmitEmployer(employer.Identity, negotiation.Single(1)), negotiation.ErrAlreadySubmitted)
	require.Equal(t, before, s)

	// After matching.
	require.NoError(t, s.SubmitCandidate(candidate.Identity, negotiation.Single(50)))
	require.ErrorIs(t, s.SubmitEmployer(employer.Identity, negotiation.Single(1)), negotiation.ErrAlreadySubmitted)
	require.ErrorIs(t, s.SubmitCandidate(candidate.Identity, negotiation.Single(1)), negotiation.ErrAlreadySubmitted)

	// After finalize the inputs are gone but the result still blocks.
	require.NoError(t, s.Finalize(employer.Identity))
	require.ErrorIs(t, s.SubmitEmployer(employer.Identity, negotiation.Single(1)), negotiation.ErrAlreadySubmitted)
	require.ErrorIs(t, s.SubmitCandidate(candidate.Identity, negotiation.Single(1)), negotiation.ErrAlreadySubmitted)
	require.Equal(t, negotiation.StatusFinalized, s.Status)
}

func TestSessionJoin(t *testing.T) {
	employer := testutil.NewParty(t)
	candidate := testutil.NewParty(t)
	other := testutil.NewParty(t)

	s := testutil.NewSession(t, employer)
	require.ErrorIs(t, s.Join(employer.Identity), negotiation.ErrCannotJoinSelf)
	require.Nil(t, s.Candidate)

	require.NoError(t, s.Join(candidate.Identity))
	require.ErrorIs(t, s.Join(candidate.Identity), negotiation.ErrNegotiationFull)
	require.ErrorIs(t, s.Join(other.Identity), negotiation.ErrNegotiationFull)
	require.ErrorIs(t, s.Join(employer.Identity), negotiation.ErrNegotiationFull)
	require.Equal(t, candidate.Identity, *s.Candidate)
}

func TestSessionUnauthorized(t *testing.T) {
	employer := testutil.NewParty(t)
	candidate := testutil.NewParty(t)
	other := testutil.NewParty(t)

	s := testutil.NewSession(t, employer)
	// No candidate yet: nobody may submit as candidate.
	require.ErrorIs(t, s.SubmitCandidate(candidate.Identity, negotiation.Single(1)), negotiation.ErrUnauthorized)
	require.ErrorIs(t, s.SubmitCandidate(employer.Identity, negotiation.Single(1)), negotiation.ErrUnauthorized)

	require.NoError(t, s.Join(candidate.Identity))
	require.ErrorIs(t, s.SubmitEmployer(candidate.Identity, negotiation.Single(1)), negotiation.ErrUnauthorized)
	require.ErrorIs(t, s.SubmitEmployer(other.Identity, negotiation.Single(1)), negotiation.ErrUnauthorized)
	require.ErrorIs(t, s.SubmitCandidate(employer.Identity, negotiation.Single(1)), negotiation.ErrUnauthorized)
	require.ErrorIs(t, s.SubmitCandidate(other.Identity, negotiation.Single(1)), negotiation.ErrUnauthorized)
	require.Nil(t, s.EmployerInput)
	require.Nil(t, s.CandidateInput)
}

func TestSessionFinalizeNotComplete(t *testing.T) {
	employer := testutil.NewParty(t)
	candidate := testutil.NewParty(t)

	sessions := []*negotiation.Session{
		testutil.NewSession(t, employer),
		testutil.NewSession(t, employer, testutil.WithCandidate(candidate)),
		testutil.NewSession(t, employer, testutil.WithCandidate(candidate), testutil.WithEmployerInput(negotiation.Single(1))),
		testutil.NewSession(t, employer, testutil.WithCandidate(candidate), testutil.WithCandidateInput(negotiation.Single(1))),
	}
	for _, s := range sessions {
		before := s.Clone()
		require.ErrorIs(t, s.Finalize(employer.Identity), negotiation.ErrNotComplete)
		require.Equal(t, before, s)
	}

	done := testutil.NewSession(t, employer, testutil.WithCandidate(candidate),
		testutil.WithEmployerInput(negotiation.Single(1)),
		testutil.WithCandidateInput(negotiation.Single(1)),
		testutil.Finalized())
	require.ErrorIs(t, done.Finalize(employer.Identity), negotiation.ErrNotComplete)
}

func TestSessionMinimalVariant(t *testing.T) {
	employer := testutil.NewParty(t)
	candidate := testutil.NewParty(t)

	match := testutil.NewSession(t, employer, testutil.WithCandidate(candidate),
		testutil.WithEmployerInput(negotiation.Single(100)),
		testutil.WithCandidateInput(negotiation.Single(100)))
	require.Equal(t, negotiation.ResultMatch, match.Result)
	require.Nil(t, match.Details)

	noMatch := testutil.NewSession(t, employer, testutil.WithCandidate(candidate),
		testutil.WithEmployerInput(negotiation.Single(100)),
		testutil.WithCandidateInput(negotiation.Single(101)))
	require.Equal(t, negotiation.ResultNoMatch, noMatch.Result)

	s := testutil.NewSession(t, employer, testutil.WithCandidate(candidate))
	err := s.SubmitEmployer(employer.Identity, negotiation.Compensation{Base: 1, Bonus: 1})
	require.ErrorIs(t, err, negotiation.ErrInvalidInput)
	require.Nil(t, s.EmployerInput)
}

func TestSessionRicherVariant(t *testing.T) {
	employer := testutil.NewParty(t)
	candidate := testutil.NewParty(t)

	s := testutil.NewSession(t, employer,
		testutil.WithVariant(negotiation.VariantBreakdown),
		testutil.WithCandidate(candidate),
		testutil.WithEmployerInput(negotiation.Compensation{Base: 100, Bonus: 20, Equity: 10}),
		testutil.WithCandidateInput(negotiation.Compensation{Base: 90, Bonus: 25, Equity: 5}))

	require.Equal(t, negotiation.ResultMatch, s.Result)
	require.NotNil(t, s.Details)
	require.False(t, s.Details.BonusMatch)
	require.True(t, s.Details.TotalMatch)

	require.NoError(t, s.Finalize(employer.Identity))
	require.NotNil(t, s.Details)
}

func TestSessionFinalizeByOutsider(t *testing.T) {
	employer := testutil.NewParty(t)
	candidate := testutil.NewParty(t)
	outsider := testutil.NewParty(t)

	s := testutil.NewSession(t, employer,
		testutil.WithCandidate(candidate),
		testutil.WithEmployerInput(negotiation.Single(100)),
		testutil.WithCandidateInput(negotiation.Single(120)))

	require.NoError(t, s.Finalize(outsider.Identity))
	require.Equal(t, negotiation.StatusFinalized, s.Status)
	require.Equal(t, negotiation.ResultNoMatch, s.Result)
	require.Nil(t, s.EmployerInput)
	require.Nil(t, s.CandidateInput)
}

func TestSessionMarkers(t *testing.T) {
	employer := testutil.NewParty(t)
	candidate := testutil.NewParty(t)

	s := testutil.NewSession(t, employer, testutil.WithMarkers(),
		testutil.WithEmployerInput(negotiation.Single(10)))
	// Employer may submit before the join; the session stays Created.
	require.Equal(t, negotiation.StatusCreated, s.Status)

	require.NoError(t, s.Join(candidate.Identity))
	require.Equal(t, negotiation.StatusEmployerSubmitted, s.Status)

	s = testutil.NewSession(t, employer, testutil.WithMarkers(), testutil.WithCandidate(candidate),
		testutil.WithCandidateInput(negotiation.Single(10)))
	require.Equal(t, negotiation.StatusCandidateSubmitted, s.Status)

	require.NoError(t, s.SubmitEmployer(employer.Identity, negotiation.Single(10)))
	require.Equal(t, negotiation.StatusComplete, s.Status)
}

func TestNewSessionRejectsUnknownVariant(t *testing.T) {
	employer := testutil.NewParty(t)
	_, err := negotiation.NewSession(1, employer.Identity, negotiation.Terms{Variant: 9})
	require.ErrorIs(t, err, negotiation.ErrInvalidInput)
}

package negotiation

import "fmt"

// Session is the record of one negotiation.
//
// Fields are exported for stores and codecs; callers mutate a Session only
// through its operations, which check every guard before touching any
// field so a rejected operation leaves the record unchanged.
type Session struct {
	ID        ID
	Employer  Identity
	Candidate *Identity
	Terms     Terms

	EmployerInput  *Compensation
	CandidateInput *Compensation

	Status  Status
	Result  Result
	Details *MatchDetails

	// Delegated marks a record whose authoritative copy is held by the
	// enclave. A stored record with the mark set is stale until the enclave
	// hands the session back.
	Delegated bool
}

// NewSession returns a freshly created session owned by employer.
func NewSession(id ID, employer Identity, terms Terms) (*Session, error) {
	if !terms.Variant.Valid() {
		return nil, fmt.Errorf("%w: unknown variant %d", ErrInvalidInput, terms.Variant)
	}
	return &Session{
		ID:       id,
		Employer: employer,
		Terms:    terms,
		Status:   StatusCreated,
		Result:   ResultPending,
	}, nil
}

// Join records caller as the candidate.
func (s *Session) Join(caller Identity) error {
	if s.Candidate != nil {
		return ErrNegotiationFull
	}
	if caller == s.Employer {
		return ErrCannotJoinSelf
	}

	candidate := caller
	s.Candidate = &candidate
	s.Status = s.deriveStatus()
	return nil
}

// CheckSubmit reports whether caller may submit as role right now, without
// looking at the input itself.
func (s *Session) CheckSubmit(role Role, caller Identity) error {
	switch role {
	case RoleEmployer:
		if caller != s.Employer {
			return ErrUnauthorized
		}
		if s.EmployerInput != nil || s.Result != ResultPending {
			return ErrAlreadySubmitted
		}
	case RoleCandidate:
		if s.Candidate == nil || caller != *s.Candidate {
			return ErrUnauthorized
		}
		if s.CandidateInput != nil || s.Result != ResultPending {
			return ErrAlreadySubmitted
		}
	default:
		return fmt.Errorf("%w: unknown role %d", ErrInvalidInput, role)
	}
	return nil
}

// Submit stores the confidential input of role and, if the counterpart has
// already submitted, computes and freezes the result.
func (s *Session) Submit(role Role, caller Identity, input Compensation) error {
	if err := s.CheckSubmit(role, caller); err != nil {
		return err
	}
	if err := s.validateInput(input); err != nil {
		return err
	}

	in := input
	if role == RoleEmployer {
		s.EmployerInput = &in
	} else {
		s.CandidateInput = &in
	}

	s.evaluate()
	s.Status = s.deriveStatus()
	return nil
}

// SubmitEmployer stores the employer's offer.
func (s *Session) SubmitEmployer(caller Identity, input Compensation) error {
	return s.Submit(RoleEmployer, caller, input)
}

// SubmitCandidate stores the candidate's requirement.
func (s *Session) SubmitCandidate(caller Identity, input Compensation) error {
	return s.Submit(RoleCandidate, caller, input)
}

// Finalize purges both confidential inputs and moves the session to its
// terminal status. Only the result and match details survive. Finalize is
// permissionless: any caller may settle a complete session, so caller is
// not checked.
func (s *Session) Finalize(caller Identity) error {
	if s.Status != StatusComplete {
		return ErrNotComplete
	}

	s.EmployerInput = nil
	s.CandidateInput = nil
	s.Status = StatusFinalized
	return nil
}

// HasConfidentialInputs reports whether any input is still held.
func (s *Session) HasConfidentialInputs() bool {
	return s.EmployerInput != nil || s.CandidateInput != nil
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	c := *s
	if s.Candidate != nil {
		v := *s.Candidate
		c.Candidate = &v
	}
	if s.EmployerInput != nil {
		v := *s.EmployerInput
		c.EmployerInput = &v
	}
	if s.CandidateInput != nil {
		v := *s.CandidateInput
		c.CandidateInput = &v
	}
	if s.Details != nil {
		v := *s.Details
		c.Details = &v
	}
	return &c
}

func (s *Session) validateInput(in Compensation) error {
	if s.Terms.Variant == VariantSingle && (in.Bonus != 0 || in.Equity != 0) {
		return fmt.Errorf("%w: single-figure negotiation takes only a base amount", ErrInvalidInput)
	}
	return nil
}

// evaluate runs the matching engine once both inputs are present. The result
// is computed exactly once.
func (s *Session) evaluate() {
	if s.Result != ResultPending || s.EmployerInput == nil || s.CandidateInput == nil {
		return
	}
	s.Result, s.Details = Evaluate(s.Terms.Variant, *s.EmployerInput, *s.CandidateInput)
}

func (s *Session) deriveStatus() Status {
	switch {
	case s.Status == StatusFinalized:
		return StatusFinalized
	case s.Result != ResultPending:
		return StatusComplete
	case s.Candidate == nil:
		return StatusCreated
	case s.Terms.Markers && s.EmployerInput != nil:
		return StatusEmployerSubmitted
	case s.Terms.Markers && s.CandidateInput != nil:
		return StatusCandidateSubmitted
	}
	return StatusReady
}

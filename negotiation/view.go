package negotiation

// View is the publicly readable projection of a session. It never carries
// compensation figures.
type View struct {
	ID                 ID            `json:"id"`
	Address            string        `json:"address"`
	Employer           Identity      `json:"employer"`
	Candidate          *Identity     `json:"candidate,omitempty"`
	Variant            Variant       `json:"variant"`
	Markers            bool          `json:"markers"`
	Status             Status        `json:"status"`
	Result             Result        `json:"result"`
	MatchDetails       *MatchDetails `json:"match_details,omitempty"`
	EmployerSubmitted  bool          `json:"employer_submitted"`
	CandidateSubmitted bool          `json:"candidate_submitted"`
	Delegated          bool          `json:"delegated"`
}

// PublicView projects s for public consumption.
func (s *Session) PublicView() *View {
	v := &View{
		ID:                 s.ID,
		Address:            s.ID.Address().String(),
		Employer:           s.Employer,
		Variant:            s.Terms.Variant,
		Markers:            s.Terms.Markers,
		Status:             s.Status,
		Result:             s.Result,
		EmployerSubmitted:  s.EmployerInput != nil || s.Result != ResultPending,
		CandidateSubmitted: s.CandidateInput != nil || s.Result != ResultPending,
		Delegated:          s.Delegated,
	}
	if s.Candidate != nil {
		c := *s.Candidate
		v.Candidate = &c
	}
	if s.Details != nil {
		d := *s.Details
		v.MatchDetails = &d
	}
	return v
}

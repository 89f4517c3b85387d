package protocol

import (
	"fmt"

	"github.com/flashbots/river/negotiation"
)

// Operation names the call a signed request is meant for.
type Operation string

const (
	OpCreate          Operation = "create"
	OpJoin            Operation = "join"
	OpSubmitEmployer  Operation = "submit_employer"
	OpSubmitCandidate Operation = "submit_candidate"
	OpFinalize        Operation = "finalize"
)

// Role returns the submitting role for the two submit operations.
func (o Operation) Role() (negotiation.Role, bool) {
	switch o {
	case OpSubmitEmployer:
		return negotiation.RoleEmployer, true
	case OpSubmitCandidate:
		return negotiation.RoleCandidate, true
	}
	return 0, false
}

// SubmitOperation returns the submit operation for role.
func SubmitOperation(role negotiation.Role) Operation {
	if role == negotiation.RoleCandidate {
		return OpSubmitCandidate
	}
	return OpSubmitEmployer
}

// Header binds a request to one operation on one negotiation.
type Header struct {
	Operation     Operation      `json:"operation"`
	NegotiationID negotiation.ID `json:"negotiation_id"`
}

// Expect checks that the header targets op on id.
func (h Header) Expect(op Operation, id negotiation.ID) error {
	if h.Operation != op {
		return fmt.Errorf("request signed for %q, not %q", h.Operation, op)
	}
	if h.NegotiationID != id {
		return fmt.Errorf("request signed for negotiation %d, not %d", h.NegotiationID, id)
	}
	return nil
}

// CreateRequest opens a negotiation. Terms default to the server's
// protocol configuration when omitted.
type CreateRequest struct {
	Header
	Terms *negotiation.Terms `json:"terms,omitempty"`
}

// NewCreateRequest builds a create request.
func NewCreateRequest(id negotiation.ID, terms *negotiation.Terms) *CreateRequest {
	return &CreateRequest{Header: Header{Operation: OpCreate, NegotiationID: id}, Terms: terms}
}

// JoinRequest registers the signer as candidate.
type JoinRequest struct {
	Header
}

// NewJoinRequest builds a join request.
func NewJoinRequest(id negotiation.ID) *JoinRequest {
	return &JoinRequest{Header: Header{Operation: OpJoin, NegotiationID: id}}
}

// SubmitRequest carries one party's input. Exactly one of Plain and Sealed
// is set.
type SubmitRequest struct {
	Header
	Plain  *negotiation.Compensation `json:"plain,omitempty"`
	Sealed []byte                    `json:"sealed,omitempty"`
}

// NewPlainSubmitRequest builds a plaintext submission.
func NewPlainSubmitRequest(id negotiation.ID, role negotiation.Role, input negotiation.Compensation) *SubmitRequest {
	return &SubmitRequest{
		Header: Header{Operation: SubmitOperation(role), NegotiationID: id},
		Plain:  &input,
	}
}

// NewSealedSubmitRequest builds a submission sealed to the enclave.
func NewSealedSubmitRequest(id negotiation.ID, role negotiation.Role, sealed []byte) *SubmitRequest {
	return &SubmitRequest{
		Header: Header{Operation: SubmitOperation(role), NegotiationID: id},
		Sealed: sealed,
	}
}

// Submission converts the request for the ledger.
func (r *SubmitRequest) Submission() negotiation.Submission {
	return negotiation.Submission{Plain: r.Plain, Sealed: r.Sealed}
}

// FinalizeRequest purges the inputs of a completed negotiation.
type FinalizeRequest struct {
	Header
}

// NewFinalizeRequest builds a finalize request.
func NewFinalizeRequest(id negotiation.ID) *FinalizeRequest {
	return &FinalizeRequest{Header: Header{Operation: OpFinalize, NegotiationID: id}}
}

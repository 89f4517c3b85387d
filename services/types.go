package services

import (
	"net/http"

	"github.com/flashbots/river/negotiation"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// Kinds produced by the HTTP layer itself, in addition to negotiation.Kind.
const (
	KindMalformed         = "Malformed"
	KindInvalidSignature  = "InvalidSignature"
	KindOperationMismatch = "OperationMismatch"
)

// statusForKind maps an error kind to its HTTP status.
func statusForKind(kind string) int {
	switch kind {
	case "NotFound":
		return http.StatusNotFound
	case "DuplicateId", "NegotiationFull", "AlreadySubmitted":
		return http.StatusConflict
	case "Unauthorized", "CannotJoinSelf", KindInvalidSignature, KindOperationMismatch:
		return http.StatusForbidden
	case "NotComplete":
		return http.StatusPreconditionFailed
	case "InvalidInput", "PlaintextSubmission", "EnclaveRequired", KindMalformed:
		return http.StatusBadRequest
	case "CustodyLost":
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// kindErrors lets clients map a response back to the negotiation sentinel.
var kindErrors = map[string]error{
	"DuplicateId":         negotiation.ErrDuplicateID,
	"NotFound":            negotiation.ErrNotFound,
	"NegotiationFull":     negotiation.ErrNegotiationFull,
	"CannotJoinSelf":      negotiation.ErrCannotJoinSelf,
	"Unauthorized":        negotiation.ErrUnauthorized,
	"AlreadySubmitted":    negotiation.ErrAlreadySubmitted,
	"NotComplete":         negotiation.ErrNotComplete,
	"InvalidInput":        negotiation.ErrInvalidInput,
	"EnclaveRequired":     negotiation.ErrEnclaveRequired,
	"PlaintextSubmission": negotiation.ErrPlaintextSubmission,
	"CorruptRecord":       negotiation.ErrCorruptRecord,
	"CustodyLost":         negotiation.ErrCustodyLost,
}

// APIError is a failed response as seen by Client. It matches the
// negotiation sentinel of its kind under errors.Is.
type APIError struct {
	StatusCode int
	Kind       string
	Message    string
}

func (e *APIError) Error() string {
	return e.Kind + ": " + e.Message
}

func (e *APIError) Unwrap() error {
	return kindErrors[e.Kind]
}

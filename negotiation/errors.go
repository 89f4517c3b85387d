package negotiation

import (
	"errors"
	"fmt"
)

// Business rule violations. Each guard surfaces exactly one of these.
var (
	ErrDuplicateID      = errors.New("negotiation id already in use")
	ErrNotFound         = errors.New("negotiation not found")
	ErrNegotiationFull  = errors.New("negotiation is already full")
	ErrCannotJoinSelf   = errors.New("cannot join your own negotiation")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrAlreadySubmitted = errors.New("already submitted")
	ErrNotComplete      = errors.New("negotiation not complete")
)

// Request and infrastructure errors.
var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrEnclaveRequired     = errors.New("sealed submission requires an enclave")
	ErrPlaintextSubmission = errors.New("plaintext submission rejected while an enclave is configured")
	ErrCorruptRecord       = errors.New("corrupt negotiation record")
	ErrCustodyLost         = errors.New("negotiation is delegated but the enclave does not hold it")
)

var errorKinds = []struct {
	err  error
	kind string
}{
	{ErrDuplicateID, "DuplicateId"},
	{ErrNotFound, "NotFound"},
	{ErrNegotiationFull, "NegotiationFull"},
	{ErrCannotJoinSelf, "CannotJoinSelf"},
	{ErrUnauthorized, "Unauthorized"},
	{ErrAlreadySubmitted, "AlreadySubmitted"},
	{ErrNotComplete, "NotComplete"},
	{ErrInvalidInput, "InvalidInput"},
	{ErrEnclaveRequired, "EnclaveRequired"},
	{ErrPlaintextSubmission, "PlaintextSubmission"},
	{ErrCorruptRecord, "CorruptRecord"},
	{ErrCustodyLost, "CustodyLost"},
}

// Kind returns the stable name of the error kind wrapped by err, or
// "Internal" when err carries none of the package errors.
func Kind(err error) string {
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return "Internal"
}

// OpError records the operation and negotiation an error occurred in.
type OpError struct {
	Op  string
	ID  ID
	Err error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s negotiation %d: %v", e.Op, e.ID, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

func opError(op string, id ID, err error) error {
	if err == nil {
		return nil
	}
	var existing *OpError
	if errors.As(err, &existing) {
		return err
	}
	return &OpError{Op: op, ID: id, Err: err}
}

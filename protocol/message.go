package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/flashbots/river/crypto"
	"github.com/flashbots/river/negotiation"
)

// signingDomain prefixes every signed payload so a request signature cannot
// be replayed as a signature over anything else the key signs.
const signingDomain = "river-request-v1"

var (
	// ErrInvalidSignature is returned by Verify when the signature does not
	// match the object and key.
	ErrInvalidSignature = errors.New("signature not valid")

	errNoObject = errors.New("signed message has no object")
)

// Signed is a request together with the key that signed it. The signer is
// the caller: services act on behalf of Signer and nobody else.
//
// The signature covers signingDomain, the JSON encoding of Object and the
// public key, in that order.
type Signed[T any] struct {
	PublicKey crypto.PublicKey `json:"public_key"`
	Signature crypto.Signature `json:"signature"`
	Object    *T               `json:"object"`
}

// NewSigned signs obj with privkey.
func NewSigned[T any](privkey crypto.PrivateKey, obj *T) (*Signed[T], error) {
	if obj == nil {
		return nil, errNoObject
	}
	pubkey, err := privkey.PublicKey()
	if err != nil {
		return nil, err
	}

	payload, err := signingPayload(obj, pubkey)
	if err != nil {
		return nil, err
	}
	signature, err := crypto.Sign(privkey, payload)
	if err != nil {
		return nil, fmt.Errorf("signing request: %w", err)
	}

	return &Signed[T]{
		PublicKey: pubkey,
		Signature: signature,
		Object:    obj,
	}, nil
}

// Verify checks the signature and returns the object with the identity of
// its signer.
func (s *Signed[T]) Verify() (*T, negotiation.Identity, error) {
	var caller negotiation.Identity
	if s.Object == nil {
		return nil, caller, errNoObject
	}

	caller, err := negotiation.IdentityFromPublicKey(s.PublicKey)
	if err != nil {
		return nil, caller, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	payload, err := signingPayload(s.Object, s.PublicKey)
	if err != nil {
		return nil, caller, err
	}
	if !s.Signature.Verify(s.PublicKey, payload) {
		return nil, caller, ErrInvalidSignature
	}
	return s.Object, caller, nil
}

func signingPayload[T any](obj *T, pubkey crypto.PublicKey) ([]byte, error) {
	data, err := SerializeMessage(obj)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(signingDomain)+len(data)+len(pubkey))
	out = append(out, signingDomain...)
	out = append(out, data...)
	return append(out, pubkey...), nil
}

// DecodeSigned reads one signed request of at most limit bytes. Unknown
// fields are rejected so that nothing unsigned rides along with the object.
func DecodeSigned[T any](r io.Reader, limit int64) (*Signed[T], error) {
	dec := json.NewDecoder(io.LimitReader(r, limit))
	dec.DisallowUnknownFields()

	var msg Signed[T]
	if err := dec.Decode(&msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// SerializeMessage serializes a message to JSON bytes.
func SerializeMessage[T any](msg *T) ([]byte, error) {
	return json.Marshal(msg)
}

package negotiation

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"

	"github.com/flashbots/river/crypto"
)

// AddressSeed is mixed into the storage address of every negotiation record.
const AddressSeed = "negotiation"

// ID is the caller-chosen identifier of a negotiation.
type ID uint64

func (id ID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// ParseID parses a decimal negotiation identifier.
func ParseID(s string) (ID, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid negotiation id %q: %w", s, err)
	}
	return ID(v), nil
}

// Address returns the deterministic storage address of the record.
func (id ID) Address() crypto.Address {
	return crypto.RecordAddress(AddressSeed, uint64(id))
}

// Identity is an already authenticated party, the Ed25519 public key that
// signed the request.
type Identity [crypto.PublicKeySize]byte

// IdentityFromPublicKey converts a verified signer key into an Identity.
func IdentityFromPublicKey(pk crypto.PublicKey) (Identity, error) {
	var id Identity
	if len(pk) != len(id) {
		return id, errors.New("invalid identity key size")
	}
	copy(id[:], pk)
	return id, nil
}

// PublicKey returns the identity as a crypto.PublicKey.
func (i Identity) PublicKey() crypto.PublicKey {
	return crypto.NewPublicKeyFromBytes(i[:])
}

func (i Identity) String() string {
	return hex.EncodeToString(i[:])
}

func (i Identity) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

func (i *Identity) UnmarshalText(text []byte) error {
	pk, err := crypto.NewPublicKeyFromString(string(text))
	if err != nil {
		return err
	}
	copy(i[:], pk)
	return nil
}

// Role names the two sides of a negotiation.
type Role uint8

const (
	RoleEmployer Role = iota
	RoleCandidate
)

func (r Role) String() string {
	switch r {
	case RoleEmployer:
		return "employer"
	case RoleCandidate:
		return "candidate"
	}
	return "unknown"
}

// Variant selects the shape of the confidential inputs.
type Variant uint8

const (
	// VariantSingle compares one figure per party.
	VariantSingle Variant = iota
	// VariantBreakdown compares {base, bonus, equity} per party.
	VariantBreakdown
)

var variantNames = []string{"single", "breakdown"}

func (v Variant) Valid() bool {
	return int(v) < len(variantNames)
}

func (v Variant) String() string {
	if !v.Valid() {
		return "unknown"
	}
	return variantNames[v]
}

func (v Variant) MarshalText() ([]byte, error) {
	if !v.Valid() {
		return nil, fmt.Errorf("invalid variant %d", v)
	}
	return []byte(v.String()), nil
}

func (v *Variant) UnmarshalText(text []byte) error {
	for i, name := range variantNames {
		if name == string(text) {
			*v = Variant(i)
			return nil
		}
	}
	return fmt.Errorf("unknown variant %q", text)
}

// Status is the lifecycle position of a session.
type Status uint8

const (
	StatusCreated Status = iota
	StatusReady
	StatusEmployerSubmitted
	StatusCandidateSubmitted
	StatusComplete
	StatusFinalized
)

var statusNames = []string{
	"created",
	"ready",
	"employer_submitted",
	"candidate_submitted",
	"complete",
	"finalized",
}

func (s Status) Valid() bool {
	return int(s) < len(statusNames)
}

func (s Status) String() string {
	if !s.Valid() {
		return "unknown"
	}
	return statusNames[s]
}

func (s Status) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid status %d", s)
	}
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	for i, name := range statusNames {
		if name == string(text) {
			*s = Status(i)
			return nil
		}
	}
	return fmt.Errorf("unknown status %q", text)
}

// Result is the outcome of a negotiation.
type Result uint8

const (
	ResultPending Result = iota
	ResultMatch
	ResultNoMatch
)

var resultNames = []string{"pending", "match", "no_match"}

func (r Result) Valid() bool {
	return int(r) < len(resultNames)
}

func (r Result) String() string {
	if !r.Valid() {
		return "unknown"
	}
	return resultNames[r]
}

func (r Result) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("invalid result %d", r)
	}
	return []byte(r.String()), nil
}

func (r *Result) UnmarshalText(text []byte) error {
	for i, name := range resultNames {
		if name == string(text) {
			*r = Result(i)
			return nil
		}
	}
	return fmt.Errorf("unknown result %q", text)
}

// Terms are fixed when a negotiation is created.
type Terms struct {
	Variant Variant `json:"variant" yaml:"variant"`

	// Markers enables the EmployerSubmitted and CandidateSubmitted statuses.
	Markers bool `json:"markers" yaml:"markers"`
}

// Compensation is one party's confidential input. In the single variant
// only Base is used and Bonus and Equity must be zero.
type Compensation struct {
	Base   uint64 `json:"base"`
	Bonus  uint64 `json:"bonus"`
	Equity uint64 `json:"equity"`
}

// CompensationSize is the encoded length of a Compensation.
const CompensationSize = 24

// Single returns the input for the single-figure variant.
func Single(amount uint64) Compensation {
	return Compensation{Base: amount}
}

// Total sums the components, clamping at the maximum uint64.
func (c Compensation) Total() uint64 {
	return SaturatingAdd(SaturatingAdd(c.Base, c.Bonus), c.Equity)
}

// MarshalBinary encodes the three components little-endian.
func (c Compensation) MarshalBinary() ([]byte, error) {
	buf := make([]byte, CompensationSize)
	c.put(buf)
	return buf, nil
}

// UnmarshalBinary decodes a value written by MarshalBinary.
func (c *Compensation) UnmarshalBinary(data []byte) error {
	if len(data) != CompensationSize {
		return fmt.Errorf("compensation: want %d bytes, got %d", CompensationSize, len(data))
	}
	c.get(data)
	return nil
}

func (c Compensation) put(buf []byte) {
	binary.LittleEndian.PutUint64(buf[0:8], c.Base)
	binary.LittleEndian.PutUint64(buf[8:16], c.Bonus)
	binary.LittleEndian.PutUint64(buf[16:24], c.Equity)
}

func (c *Compensation) get(buf []byte) {
	c.Base = binary.LittleEndian.Uint64(buf[0:8])
	c.Bonus = binary.LittleEndian.Uint64(buf[8:16])
	c.Equity = binary.LittleEndian.Uint64(buf[16:24])
}

// MatchDetails is the per-component breakdown of the breakdown variant.
type MatchDetails struct {
	BaseMatch   bool `json:"base_match"`
	BonusMatch  bool `json:"bonus_match"`
	EquityMatch bool `json:"equity_match"`
	TotalMatch  bool `json:"total_match"`
}

// SealingContext is the associated data a party must bind into a sealed
// submission for negotiation id and role.
func SealingContext(id ID, role Role) []byte {
	return []byte("river/negotiation/" + id.String() + "/" + role.String())
}

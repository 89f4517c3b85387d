package negotiation

import (
	"encoding/binary"
	"fmt"
)

// recordVersion is the first byte of every encoded record.
const recordVersion = 2

const identitySize = len(Identity{})

// Record layout. Every optional field is a presence byte followed by its
// payload, and the payload space is reserved even when the field is absent,
// so a record never changes size once allocated.
const (
	offVersion        = 0
	offID             = offVersion + 1
	offEmployer       = offID + 8
	offCandidate      = offEmployer + identitySize
	offEmployerInput  = offCandidate + 1 + identitySize
	offCandidateInput = offEmployerInput + 1 + CompensationSize
	offVariant        = offCandidateInput + 1 + CompensationSize
	offMarkers        = offVariant + 1
	offStatus         = offMarkers + 1
	offResult         = offStatus + 1
	offDetails        = offResult + 1
	detailsSize       = 4
	offDelegated      = offDetails + 1 + detailsSize

	// RecordSize is the fixed encoded size of a Session.
	RecordSize = offDelegated + 1
)

// MarshalBinary encodes the session into its fixed-size layout.
func (s *Session) MarshalBinary() ([]byte, error) {
	if !s.Terms.Variant.Valid() || !s.Status.Valid() || !s.Result.Valid() {
		return nil, fmt.Errorf("%w: enum out of range", ErrCorruptRecord)
	}

	buf := make([]byte, RecordSize)
	buf[offVersion] = recordVersion
	binary.LittleEndian.PutUint64(buf[offID:], uint64(s.ID))
	copy(buf[offEmployer:], s.Employer[:])

	if s.Candidate != nil {
		buf[offCandidate] = 1
		copy(buf[offCandidate+1:], s.Candidate[:])
	}
	if s.EmployerInput != nil {
		buf[offEmployerInput] = 1
		s.EmployerInput.put(buf[offEmployerInput+1:])
	}
	if s.CandidateInput != nil {
		buf[offCandidateInput] = 1
		s.CandidateInput.put(buf[offCandidateInput+1:])
	}

	buf[offVariant] = byte(s.Terms.Variant)
	buf[offMarkers] = boolByte(s.Terms.Markers)
	buf[offStatus] = byte(s.Status)
	buf[offResult] = byte(s.Result)

	if s.Details != nil {
		buf[offDetails] = 1
		d := buf[offDetails+1:]
		d[0] = boolByte(s.Details.BaseMatch)
		d[1] = boolByte(s.Details.BonusMatch)
		d[2] = boolByte(s.Details.EquityMatch)
		d[3] = boolByte(s.Details.TotalMatch)
	}
	buf[offDelegated] = boolByte(s.Delegated)

	return buf, nil
}

// UnmarshalBinary decodes a record written by MarshalBinary.
func (s *Session) UnmarshalBinary(data []byte) error {
	if len(data) != RecordSize {
		return fmt.Errorf("%w: want %d bytes, got %d", ErrCorruptRecord, RecordSize, len(data))
	}
	if data[offVersion] != recordVersion {
		return fmt.Errorf("%w: unknown version %d", ErrCorruptRecord, data[offVersion])
	}

	var out Session
	out.ID = ID(binary.LittleEndian.Uint64(data[offID:]))
	copy(out.Employer[:], data[offEmployer:])

	present, err := optional(data, offCandidate, identitySize)
	if err != nil {
		return err
	}
	if present {
		var c Identity
		copy(c[:], data[offCandidate+1:])
		out.Candidate = &c
	}

	if out.EmployerInput, err = decodeInput(data, offEmployerInput); err != nil {
		return err
	}
	if out.CandidateInput, err = decodeInput(data, offCandidateInput); err != nil {
		return err
	}

	out.Terms.Variant = Variant(data[offVariant])
	out.Status = Status(data[offStatus])
	out.Result = Result(data[offResult])
	if !out.Terms.Variant.Valid() || !out.Status.Valid() || !out.Result.Valid() {
		return fmt.Errorf("%w: enum out of range", ErrCorruptRecord)
	}
	if out.Terms.Markers, err = flag(data, offMarkers); err != nil {
		return err
	}

	present, err = optional(data, offDetails, detailsSize)
	if err != nil {
		return err
	}
	if present {
		var bs [detailsSize]bool
		for i := range bs {
			if bs[i], err = flag(data, offDetails+1+i); err != nil {
				return err
			}
		}
		out.Details = &MatchDetails{
			BaseMatch:   bs[0],
			BonusMatch:  bs[1],
			EquityMatch: bs[2],
			TotalMatch:  bs[3],
		}
	}
	if out.Delegated, err = flag(data, offDelegated); err != nil {
		return err
	}

	*s = out
	return nil
}

func decodeInput(data []byte, off int) (*Compensation, error) {
	present, err := optional(data, off, CompensationSize)
	if err != nil || !present {
		return nil, err
	}
	var c Compensation
	c.get(data[off+1:])
	return &c, nil
}

// optional reads the presence flag at off. The n payload bytes after it
// must be zero when the field is absent.
func optional(data []byte, off, n int) (bool, error) {
	present, err := flag(data, off)
	if err != nil || present {
		return present, err
	}
	for _, b := range data[off+1 : off+1+n] {
		if b != 0 {
			return false, fmt.Errorf("%w: data in reserved field at offset %d", ErrCorruptRecord, off)
		}
	}
	return false, nil
}

func flag(data []byte, off int) (bool, error) {
	switch data[off] {
	case 0:
		return false, nil
	case 1:
		return true, nil
	}
	return false, fmt.Errorf("%w: invalid flag byte %d at offset %d", ErrCorruptRecord, data[off], off)
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

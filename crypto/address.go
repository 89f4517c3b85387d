package crypto

import (
	"encoding/binary"
	"encoding/hex"

	"golang.org/x/crypto/sha3"
)

// Address is the deterministic storage address of a record.
type Address [32]byte

// RecordAddress derives the address of the record identified by seed and id,
// SHA3-256(seed || le64(id)).
func RecordAddress(seed string, id uint64) Address {
	var idBytes [8]byte
	binary.LittleEndian.PutUint64(idBytes[:], id)

	h := sha3.New256()
	h.Write([]byte(seed))
	h.Write(idBytes[:])

	var addr Address
	copy(addr[:], h.Sum(nil))
	return addr
}

func (a Address) String() string {
	return hex.EncodeToString(a[:])
}

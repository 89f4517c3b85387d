// Package crypto provides the cryptographic primitives used by River.
//
//   - Ed25519 keys and signatures identify the employer and the candidate.
//     Every operation is signed and the recovered key is the caller identity.
//   - X25519 sealed boxes (HKDF-SHA256 + AES-256-GCM) carry compensation
//     figures from a party to the enclave so that nothing outside the
//     enclave sees them in plaintext.
//   - SHA3-256 derives the deterministic storage address of a negotiation
//     record from its numeric identifier.
//
// The package has no notion of negotiations; it only moves bytes around.
package crypto

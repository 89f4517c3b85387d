// Package tee provides the confidential-compute side of River.
//
// Enclave implements negotiation.Enclave. It keeps delegated negotiation
// records sealed at rest with an instance-local key, opens sealed
// submissions with its X25519 exchange key and only ever returns public
// views, except from Undelegate, which hands back a record whose
// confidential inputs have already been purged.
//
// The in-process Enclave does not provide hardware isolation. In a real
// deployment the same code runs inside a TDX guest and Attest produces a
// quote binding the exchange key; parties verify that quote before sealing
// their figures to the key.
package tee

// Package protocol defines the messages parties exchange with a negotiation
// service.
//
// Every state-changing request is wrapped in a Signed envelope. The envelope's
// public key is the caller identity: the server never trusts an identity
// field inside the request body. Each request also names its Operation and
// target negotiation so a signature produced for one call cannot be replayed
// against another.
//
// Confidential inputs travel in SubmitRequest either sealed to the enclave's
// exchange key (see crypto.Seal and negotiation.SealingContext) or, on
// deployments without an enclave, in plaintext.
package protocol

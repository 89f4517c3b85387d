// Package services exposes negotiations over HTTP and persists them.
//
// NegotiationService mounts the operations on a chi router:
//
//	POST /negotiations                 create (Signed[protocol.CreateRequest])
//	POST /negotiations/{id}/join       join
//	POST /negotiations/{id}/employer   submit the employer's offer
//	POST /negotiations/{id}/candidate  submit the candidate's requirement
//	POST /negotiations/{id}/finalize   purge the inputs
//	GET  /negotiations/{id}            public view
//	GET  /attestation                  enclave exchange key and attestation
//	GET  /config                       protocol configuration
//
// The signer of each envelope is the caller. Failures are returned as
// ErrorResponse with a stable kind; Client turns them back into APIError
// values that match the negotiation sentinels under errors.Is.
//
// PostgresStore and SQLiteStore implement negotiation.Store over the fixed
// size record encoding.
package services

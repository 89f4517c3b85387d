// Package negotiation implements the blind salary negotiation protocol.
//
// An employer and a candidate each submit a private compensation figure and
// the protocol decides whether the employer's offer covers the candidate's
// requirement. Neither party, nor anyone reading the public record, ever
// learns the other party's number; only the outcome is kept.
//
// # Session lifecycle
//
//	Created --join--> Ready --submit_employer / submit_candidate--> Complete --finalize--> Finalized
//
// With status markers enabled (Terms.Markers) the first submission moves the
// session to EmployerSubmitted or CandidateSubmitted before the second one
// completes it. The two submissions may arrive in either order and produce
// the same result. Status is always derived from the record's fields, so an
// employer may submit before a candidate has joined.
//
// # Matching
//
// Variant single compares one figure: Match iff candidate <= employer.
// Variant breakdown compares {base, bonus, equity}: totals are summed with
// saturating addition and the overall result is keyed on the totals only.
// The per-component booleans in MatchDetails are advisory and never gate the
// result.
//
// # Components
//
//   - Session holds one record and applies the operations and their guards.
//   - Evaluate is the matching engine.
//   - Store is the durable public storage contract; MemoryStore is the
//     in-process implementation. Records are persisted in a fixed-size
//     binary layout (RecordSize bytes).
//   - Ledger is the session store used by callers: it serializes operations
//     per session and routes confidential operations through an Enclave
//     when one is configured.
package negotiation

/*
Package testutil provides fixtures for negotiation tests.

It generates signing parties, prebuilt sessions at each lifecycle stage, and
signed or sealed requests, so tests can start from a known state:

	employer := testutil.NewParty(t)
	candidate := testutil.NewParty(t)

	// A breakdown session both parties have joined
	s := testutil.NewSession(t, employer, testutil.WithCandidate(candidate),
	    testutil.WithVariant(negotiation.VariantBreakdown))

	// A sealed submission for the enclave
	sealed := testutil.SealInput(t, enclaveKey, s.ID, negotiation.RoleCandidate,
	    negotiation.Compensation{Base: 100})

This package is intended for testing purposes only and should not be used in
production code.
*/
package testutil

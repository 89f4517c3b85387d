package main

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/flashbots/river/negotiation"
	"github.com/flashbots/river/protocol"
	"github.com/flashbots/river/services"
	"github.com/flashbots/river/tdx"
	"github.com/flashbots/river/tee"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, withEnclave bool) *httptest.Server {
	t.Helper()

	ledgerConfig := &negotiation.LedgerConfig{Store: negotiation.NewMemoryStore()}
	serviceConfig := &services.ServiceConfig{
		Protocol: protocol.Config{DefaultTerms: negotiation.Terms{Variant: negotiation.VariantSingle}},
	}
	if withEnclave {
		e, err := tee.New(&tee.Config{Attester: &tdx.DummyProvider{}})
		require.NoError(t, err)
		ledgerConfig.Enclave = e
		serviceConfig.Enclave = e
	}

	ledger, err := negotiation.NewLedger(ledgerConfig)
	require.NoError(t, err)
	serviceConfig.Ledger = ledger
	svc, err := services.NewNegotiationService(serviceConfig)
	require.NoError(t, err)

	r := chi.NewRouter()
	svc.RegisterRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func seedHex(b byte) string {
	return hex.EncodeToString(bytes.Repeat([]byte{b}, 32))
}

func runCLI(t *testing.T, srv *httptest.Server, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := newRootCommand(&RootOptions{httpClient: srv.Client()})
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(append([]string{"--server", srv.URL}, args...))
	err := cmd.Execute()
	return buf.String(), err
}

func runView(t *testing.T, srv *httptest.Server, args ...string) *negotiation.View {
	t.Helper()
	out, err := runCLI(t, srv, append(args, "--format", "json")...)
	require.NoError(t, err, out)
	var v negotiation.View
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	return &v
}

func TestNegotiationFlow(t *testing.T) {
	for _, withEnclave := range []bool{false, true} {
		name := "plain"
		if withEnclave {
			name = "enclave"
		}
		t.Run(name, func(t *testing.T) {
			srv := newTestServer(t, withEnclave)
			employer, candidate := seedHex(1), seedHex(2)

			v := runView(t, srv, "create", "--key", employer, "--id", "42", "--variant", "breakdown", "--markers")
			require.Equal(t, negotiation.ID(42), v.ID)
			require.Equal(t, negotiation.VariantBreakdown, v.Variant)
			require.True(t, v.Markers)
			require.Equal(t, negotiation.StatusCreated, v.Status)

			v = runView(t, srv, "join", "42", "--key", candidate)
			require.Equal(t, negotiation.StatusReady, v.Status)

			v = runView(t, srv, "submit", "42", "--key", employer, "--role", "employer",
				"--base", "150000", "--bonus", "20000", "--equity", "10000")
			require.Equal(t, negotiation.StatusEmployerSubmitted, v.Status)

			v = runView(t, srv, "submit", "42", "--key", candidate, "--role", "candidate",
				"--base", "160000", "--bonus", "10000")
			require.Equal(t, negotiation.StatusComplete, v.Status)
			require.Equal(t, negotiation.ResultMatch, v.Result)
			require.NotNil(t, v.MatchDetails)
			require.False(t, v.MatchDetails.BaseMatch)
			require.True(t, v.MatchDetails.TotalMatch)

			v = runView(t, srv, "finalize", "42", "--key", employer)
			require.Equal(t, negotiation.StatusFinalized, v.Status)

			v = runView(t, srv, "get", "42")
			require.Equal(t, negotiation.StatusFinalized, v.Status)
			require.Equal(t, negotiation.ResultMatch, v.Result)
		})
	}
}

func TestCreateGeneratesID(t *testing.T) {
	srv := newTestServer(t, false)
	v := runView(t, srv, "create", "--key", seedHex(3))
	require.NotZero(t, v.ID)
	// Service defaults apply when no terms are given.
	require.Equal(t, negotiation.VariantSingle, v.Variant)
	require.False(t, v.Markers)
}

func TestTextOutput(t *testing.T) {
	srv := newTestServer(t, false)
	out, err := runCLI(t, srv, "create", "--key", seedHex(1), "--id", "7", "--markers")
	require.NoError(t, err)
	assert.Contains(t, out, "negotiation 7")
	assert.Contains(t, out, "status:    created")
	assert.Contains(t, out, "submitted: employer=false candidate=false")
}

func TestCommandErrors(t *testing.T) {
	srv := newTestServer(t, false)
	_, err := runCLI(t, srv, "create", "--key", seedHex(1), "--id", "9")
	require.NoError(t, err)

	_, err = runCLI(t, srv, "join", "9", "--key", seedHex(1))
	var apiErr *services.APIError
	require.ErrorAs(t, err, &apiErr)
	require.ErrorIs(t, err, negotiation.ErrCannotJoinSelf)

	_, err = runCLI(t, srv, "get", "10")
	require.ErrorIs(t, err, negotiation.ErrNotFound)

	_, err = runCLI(t, srv, "join", "9")
	require.ErrorContains(t, err, "--key is required")

	_, err = runCLI(t, srv, "submit", "9", "--key", seedHex(1), "--role", "boss", "--base", "1")
	require.ErrorContains(t, err, "invalid role")

	_, err = runCLI(t, srv, "get", "not-a-number")
	require.Error(t, err)

	_, err = runCLI(t, srv, "get", "9", "--format", "yaml")
	require.ErrorContains(t, err, "invalid format")
}

func TestKeygen(t *testing.T) {
	srv := newTestServer(t, false)
	out, err := runCLI(t, srv, "keygen", "--format", "json")
	require.NoError(t, err)

	var k keyOutput
	require.NoError(t, json.Unmarshal([]byte(out), &k))
	require.Len(t, k.Seed, 64)
	require.Len(t, k.Identity, 64)

	// The printed seed works as a --key and signs as the printed identity.
	v := runView(t, srv, "create", "--key", k.Seed, "--id", "11")
	require.Equal(t, k.Identity, strings.ToLower(v.Employer.String()))
}

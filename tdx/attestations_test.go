package tdx

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDummyProvider(t *testing.T) {
	p := &DummyProvider{}

	var rd [64]byte
	copy(rd[:], "report data")

	report, err := p.Attest(rd)
	require.NoError(t, err)

	measurements, err := p.Verify(report, rd)
	require.NoError(t, err)
	require.Equal(t, DummyMeasurements(), measurements)

	rd[0] ^= 1
	_, err = p.Verify(report, rd)
	require.Error(t, err)
}

func TestVerifyQuoteRejectsGarbage(t *testing.T) {
	_, err := VerifyQuote([]byte("not a quote"), make([]byte, 64), nil)
	require.Error(t, err)
}

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	require.Len(t, p.QeVendorID, 16)
	require.Len(t, p.TdAttributes, 8)
	require.False(t, p.SkipCollateral)
}

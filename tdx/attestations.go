package tdx

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/go-tdx-guest/abi"
	"github.com/google/go-tdx-guest/client"
	proto_checkconfig "github.com/google/go-tdx-guest/proto/checkconfig"
	proto "github.com/google/go-tdx-guest/proto/tdx"
	"github.com/google/go-tdx-guest/validate"
	"github.com/google/go-tdx-guest/verify"
)

const (
	// QuoteType is reported by providers backed by real TDX quotes.
	QuoteType = "dcap-tdx"
	// DummyType is reported by DummyProvider.
	DummyType = "dummy-tdx"
)

// Measurement register indices in the map returned by Verify.
const (
	MRTD = iota
	RTMR0
	RTMR1
	RTMR2
	RTMR3
)

// Policy constrains which quotes are accepted.
type Policy struct {
	QeVendorID    []byte
	TdAttributes  []byte
	MinimumQeSvn  uint32
	MinimumPceSvn uint32

	// SkipCollateral disables fetching PCS collateral and CRL checks. Only
	// for air-gapped testing.
	SkipCollateral bool
}

// DefaultPolicy accepts Intel-signed quotes from debug-disabled TDs.
func DefaultPolicy() *Policy {
	return &Policy{
		QeVendorID:   mustDecodeHex("939a7233f79c4ca9940a0db3957f0607"),
		TdAttributes: mustDecodeHex("0000001000000000"),
	}
}

// TDXProvider generates and verifies attestations using the local TDX device.
type TDXProvider struct {
	Policy *Policy
}

func (p *TDXProvider) AttestationType() string {
	return QuoteType
}

// Attest generates a TDX quote binding the report data.
func (p *TDXProvider) Attest(reportData [64]byte) ([]byte, error) {
	qp := &client.LinuxConfigFsQuoteProvider{}
	return qp.GetRawQuote(reportData)
}

// Verify validates a TDX quote and returns measurements if valid.
func (p *TDXProvider) Verify(report []byte, expectedReportData [64]byte) (map[int][]byte, error) {
	return VerifyQuote(report, expectedReportData[:], p.Policy)
}

// RemoteDCAPProvider fetches quotes from a remote attestation service and
// verifies them locally.
type RemoteDCAPProvider struct {
	URL     string
	Timeout time.Duration
	Policy  *Policy
}

func (p *RemoteDCAPProvider) AttestationType() string {
	return QuoteType
}

// Attest requests a TDX quote from the remote attestation service.
func (p *RemoteDCAPProvider) Attest(reportData [64]byte) ([]byte, error) {
	url := fmt.Sprintf("%s/attest/%s", p.URL, hex.EncodeToString(reportData[:]))

	timeout := p.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating HTTP request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling remote quote provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("remote quote provider returned status %d: %s", resp.StatusCode, string(body))
	}

	rawQuote, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading quote from response: %w", err)
	}
	return rawQuote, nil
}

// Verify validates a TDX quote and returns measurements if valid.
func (p *RemoteDCAPProvider) Verify(report []byte, expectedReportData [64]byte) (map[int][]byte, error) {
	return VerifyQuote(report, expectedReportData[:], p.Policy)
}

// VerifyQuote checks a raw DCAP quote against the Intel root of trust and
// policy, and that it carries expectedReportData. A nil policy means
// DefaultPolicy.
func VerifyQuote(report []byte, expectedReportData []byte, policy *Policy) (map[int][]byte, error) {
	if policy == nil {
		policy = DefaultPolicy()
	}

	anyQuote, err := abi.QuoteToProto(report)
	if err != nil {
		return nil, fmt.Errorf("could not convert raw bytes to QuoteV4: %w", err)
	}
	quote, ok := anyQuote.(*proto.QuoteV4)
	if !ok {
		return nil, errors.New("quote is not a QuoteV4")
	}

	config := &proto_checkconfig.Config{
		RootOfTrust: &proto_checkconfig.RootOfTrust{
			CheckCrl:      !policy.SkipCollateral,
			GetCollateral: !policy.SkipCollateral,
		},
		Policy: &proto_checkconfig.Policy{
			HeaderPolicy: &proto_checkconfig.HeaderPolicy{
				MinimumQeSvn:  policy.MinimumQeSvn,
				MinimumPceSvn: policy.MinimumPceSvn,
				QeVendorId:    policy.QeVendorID,
			},
			TdQuoteBodyPolicy: &proto_checkconfig.TDQuoteBodyPolicy{
				TdAttributes: policy.TdAttributes,
				ReportData:   expectedReportData,
			},
		},
	}

	options, err := verify.RootOfTrustToOptions(config.RootOfTrust)
	if err != nil {
		return nil, fmt.Errorf("converting root of trust to options: %w", err)
	}
	if err := verify.TdxQuote(quote, options); err != nil {
		return nil, fmt.Errorf("verifying TDX quote: %w", err)
	}

	opts, err := validate.PolicyToOptions(config.Policy)
	if err != nil {
		return nil, fmt.Errorf("converting policy to options: %w", err)
	}
	if err := validate.TdxQuote(quote, opts); err != nil {
		return nil, fmt.Errorf("validating TDX quote: %w", err)
	}

	body := quote.GetTdQuoteBody()
	return map[int][]byte{
		MRTD:  body.MrTd,
		RTMR0: body.Rtmrs[0],
		RTMR1: body.Rtmrs[1],
		RTMR2: body.Rtmrs[2],
		RTMR3: body.Rtmrs[3],
	}, nil
}

// DummyProvider provides mock attestation for testing without TEE hardware.
type DummyProvider struct{}

func (p *DummyProvider) AttestationType() string {
	return DummyType
}

// Attest returns the report data as a mock attestation.
func (p *DummyProvider) Attest(reportData [64]byte) ([]byte, error) {
	ret := make([]byte, len(reportData))
	copy(ret, reportData[:])
	return ret, nil
}

// Verify checks that the attestation equals the expected report data.
func (p *DummyProvider) Verify(report []byte, expectedReportData [64]byte) (map[int][]byte, error) {
	if !bytes.Equal(report, expectedReportData[:]) {
		return nil, errors.New("attestation mismatch")
	}

	return DummyMeasurements(), nil
}

// DummyMeasurements are the registers DummyProvider reports.
func DummyMeasurements() map[int][]byte {
	return map[int][]byte{
		MRTD:  {0},
		RTMR0: {1},
		RTMR1: {2},
		RTMR2: {3},
		RTMR3: {4},
	}
}

func mustDecodeHex(data string) []byte {
	decoded, err := hex.DecodeString(data)
	if err != nil {
		panic(err.Error())
	}
	return decoded
}

package services

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/flashbots/river/tdx"
	"github.com/flashbots/river/tee"
)

// Measurements maps register index to measured value, as returned by
// tee.VerifyAttestation.
type Measurements map[int][]byte

// PublishedMeasurements lists the enclave builds a client accepts.
//
// JSON format:
//
//	[
//	  {
//	    "measurement_id": "river-v0.1.0-tdx",
//	    "measurements": {
//	      "0": {"expected": "hex-encoded-mrtd"},
//	      "1": {"expected": "hex-encoded-rtmr0"}
//	    }
//	  }
//	]
//
// An enclave is accepted if its attested registers match every register
// listed by any one entry.
type PublishedMeasurements []MeasurementEntry

// MeasurementEntry is one acceptable build.
type MeasurementEntry struct {
	MeasurementID string                   `json:"measurement_id"`
	Measurements  map[int]MeasurementValue `json:"measurements"`
}

// MeasurementValue holds an expected register value, hex encoded.
type MeasurementValue struct {
	Expected string `json:"expected"`
}

// ToMeasurements decodes the entry.
func (e *MeasurementEntry) ToMeasurements() (Measurements, error) {
	result := make(Measurements, len(e.Measurements))
	for idx, mv := range e.Measurements {
		val, err := hex.DecodeString(mv.Expected)
		if err != nil {
			return nil, fmt.Errorf("invalid hex for index %d: %w", idx, err)
		}
		result[idx] = val
	}
	return result, nil
}

// MeasurementSource provides expected measurements for attestation verification.
type MeasurementSource interface {
	AllowedMeasurements(ctx context.Context) (PublishedMeasurements, error)
}

// StaticMeasurementSource serves a fixed list.
type StaticMeasurementSource struct {
	Measurements PublishedMeasurements
}

// NewStaticMeasurementSource creates a source with predefined measurements.
func NewStaticMeasurementSource(measurements PublishedMeasurements) *StaticMeasurementSource {
	return &StaticMeasurementSource{Measurements: measurements}
}

// DummyMeasurementSource accepts the registers tdx.DummyProvider reports.
// Only for local deployments without TEE hardware.
func DummyMeasurementSource() *StaticMeasurementSource {
	values := make(map[int]MeasurementValue)
	for idx, v := range tdx.DummyMeasurements() {
		values[idx] = MeasurementValue{Expected: hex.EncodeToString(v)}
	}
	return NewStaticMeasurementSource(PublishedMeasurements{
		{MeasurementID: "river-dummy-attestation", Measurements: values},
	})
}

func (s *StaticMeasurementSource) AllowedMeasurements(context.Context) (PublishedMeasurements, error) {
	return s.Measurements, nil
}

// RemoteMeasurementSource fetches the published list from a URL and caches
// it for CacheTTL.
type RemoteMeasurementSource struct {
	URL        string
	HTTPClient *http.Client
	CacheTTL   time.Duration

	mu        sync.Mutex
	expiresAt time.Time
	cached    PublishedMeasurements
}

// NewRemoteMeasurementSource creates a source that fetches from url.
func NewRemoteMeasurementSource(url string) *RemoteMeasurementSource {
	return &RemoteMeasurementSource{
		URL:        url,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		CacheTTL:   time.Hour,
	}
}

func (r *RemoteMeasurementSource) AllowedMeasurements(ctx context.Context) (PublishedMeasurements, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cached != nil && time.Now().Before(r.expiresAt) {
		return r.cached, nil
	}

	published, err := r.fetch(ctx)
	if err != nil {
		return nil, err
	}
	r.cached = published
	r.expiresAt = time.Now().Add(r.CacheTTL)
	return published, nil
}

func (r *RemoteMeasurementSource) fetch(ctx context.Context) (PublishedMeasurements, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.URL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching measurements: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("measurements returned %d: %s", resp.StatusCode, body)
	}

	var pub PublishedMeasurements
	if err := json.NewDecoder(resp.Body).Decode(&pub); err != nil {
		return nil, fmt.Errorf("decoding measurements: %w", err)
	}
	return pub, nil
}

// ErrMeasurementMismatch is returned when an enclave runs an unlisted build.
var ErrMeasurementMismatch = errors.New("measurements do not match any allowed set")

// VerifyMeasurementsMatch returns the first allowed entry that actual
// satisfies.
func VerifyMeasurementsMatch(allowed PublishedMeasurements, actual Measurements) (MeasurementEntry, error) {
	for _, entry := range allowed {
		if entryMatches(entry, actual) {
			return entry, nil
		}
	}
	return MeasurementEntry{}, ErrMeasurementMismatch
}

func entryMatches(entry MeasurementEntry, actual Measurements) bool {
	for idx, expected := range entry.Measurements {
		got, ok := actual[idx]
		if !ok || expected.Expected != hex.EncodeToString(got) {
			return false
		}
	}
	return true
}

// VerifyEnclave checks that a binds its exchange key under attester and,
// when source is set, that the enclave runs an allowed build.
func VerifyEnclave(ctx context.Context, attester tee.Attester, source MeasurementSource, a *tee.Attestation) error {
	measured, err := tee.VerifyAttestation(attester, a)
	if err != nil {
		return err
	}
	if source == nil {
		return nil
	}

	allowed, err := source.AllowedMeasurements(ctx)
	if err != nil {
		return fmt.Errorf("loading allowed measurements: %w", err)
	}
	_, err = VerifyMeasurementsMatch(allowed, measured)
	return err
}

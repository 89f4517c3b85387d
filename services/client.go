package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/flashbots/river/crypto"
	"github.com/flashbots/river/negotiation"
	"github.com/flashbots/river/protocol"
	"github.com/flashbots/river/tee"
)

// ClientConfig configures a Client.
type ClientConfig struct {
	BaseURL    string
	SigningKey crypto.PrivateKey

	// Attester verifies the enclave attestation before any input is sealed
	// to it. Required against services with an enclave.
	Attester tee.Attester

	// Measurements, when set, restricts the enclave builds the client
	// accepts.
	Measurements MeasurementSource

	HTTPClient *http.Client
}

// Client signs and sends negotiation operations.
type Client struct {
	baseURL      string
	key          crypto.PrivateKey
	attester     tee.Attester
	measurements MeasurementSource
	http         *http.Client

	mu          sync.Mutex
	config      *protocol.Config
	exchangeKey *crypto.ExchangeKey
}

// NewClient creates a client for the service at cfg.BaseURL.
func NewClient(cfg *ClientConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("client requires a base URL")
	}
	if cfg.SigningKey == nil {
		return nil, errors.New("client requires a signing key")
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		key:          cfg.SigningKey,
		attester:     cfg.Attester,
		measurements: cfg.Measurements,
		http:         hc,
	}, nil
}

// Identity returns the identity the client signs as.
func (c *Client) Identity() (negotiation.Identity, error) {
	pub, err := c.key.PublicKey()
	if err != nil {
		return negotiation.Identity{}, err
	}
	return negotiation.IdentityFromPublicKey(pub)
}

// Create opens negotiation id. Nil terms take the service default.
func (c *Client) Create(ctx context.Context, id negotiation.ID, terms *negotiation.Terms) (*negotiation.View, error) {
	return sendSigned(ctx, c, "/negotiations", protocol.NewCreateRequest(id, terms))
}

// Join joins negotiation id as the candidate.
func (c *Client) Join(ctx context.Context, id negotiation.ID) (*negotiation.View, error) {
	return sendSigned(ctx, c, fmt.Sprintf("/negotiations/%d/join", id), protocol.NewJoinRequest(id))
}

// Submit sends the input for role. Against a service with an enclave the
// input is sealed to the verified enclave key; otherwise it is sent in
// plaintext.
func (c *Client) Submit(ctx context.Context, id negotiation.ID, role negotiation.Role, input negotiation.Compensation) (*negotiation.View, error) {
	cfg, err := c.Config(ctx)
	if err != nil {
		return nil, err
	}

	var req *protocol.SubmitRequest
	if cfg.SealedInputs {
		key, err := c.EnclaveKey(ctx)
		if err != nil {
			return nil, err
		}
		plaintext, err := input.MarshalBinary()
		if err != nil {
			return nil, err
		}
		sealed, err := crypto.Seal(key, plaintext, negotiation.SealingContext(id, role))
		if err != nil {
			return nil, fmt.Errorf("sealing input: %w", err)
		}
		req = protocol.NewSealedSubmitRequest(id, role, sealed)
	} else {
		req = protocol.NewPlainSubmitRequest(id, role, input)
	}

	return sendSigned(ctx, c, fmt.Sprintf("/negotiations/%d/%s", id, role), req)
}

// Finalize purges the inputs of a completed negotiation.
func (c *Client) Finalize(ctx context.Context, id negotiation.ID) (*negotiation.View, error) {
	return sendSigned(ctx, c, fmt.Sprintf("/negotiations/%d/finalize", id), protocol.NewFinalizeRequest(id))
}

// Get fetches the public view of negotiation id.
func (c *Client) Get(ctx context.Context, id negotiation.ID) (*negotiation.View, error) {
	var v negotiation.View
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/negotiations/%d", id), nil, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// Config fetches, and caches, the service's protocol configuration.
func (c *Client) Config(ctx context.Context) (*protocol.Config, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.config != nil {
		return c.config, nil
	}

	var cfg protocol.Config
	if err := c.do(ctx, http.MethodGet, "/config", nil, &cfg); err != nil {
		return nil, fmt.Errorf("fetching protocol config: %w", err)
	}
	c.config = &cfg
	return c.config, nil
}

// EnclaveKey fetches the enclave attestation, verifies it and returns the
// attested exchange key. The key is cached after the first verification.
func (c *Client) EnclaveKey(ctx context.Context) (crypto.ExchangeKey, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.exchangeKey != nil {
		return *c.exchangeKey, nil
	}

	if c.attester == nil {
		return crypto.ExchangeKey{}, errors.New("service requires sealed inputs but no attester is configured")
	}

	var a tee.Attestation
	if err := c.do(ctx, http.MethodGet, "/attestation", nil, &a); err != nil {
		return crypto.ExchangeKey{}, fmt.Errorf("fetching attestation: %w", err)
	}
	if err := VerifyEnclave(ctx, c.attester, c.measurements, &a); err != nil {
		return crypto.ExchangeKey{}, fmt.Errorf("enclave verification failed: %w", err)
	}

	key := a.ExchangeKey
	c.exchangeKey = &key
	return key, nil
}

func sendSigned[T any](ctx context.Context, c *Client, path string, obj *T) (*negotiation.View, error) {
	signed, err := protocol.NewSigned(c.key, obj)
	if err != nil {
		return nil, fmt.Errorf("signing request: %w", err)
	}

	var v negotiation.View
	if err := c.do(ctx, http.MethodPost, path, signed, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Kind: "Internal", Message: strings.TrimSpace(string(data))}
		var er ErrorResponse
		if json.Unmarshal(data, &er) == nil && er.Kind != "" {
			apiErr.Kind = er.Kind
			apiErr.Message = er.Error
		}
		return apiErr
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

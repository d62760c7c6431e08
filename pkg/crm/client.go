// Package crm provides REST access to the remote CRM's contact store:
// search by email, batched create, and batched update.
package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadsync/internal/resilience"
)

// MaxBatchSize is the CRM batch-API limit per request.
const MaxBatchSize = 100

// ErrNotFound indicates the referenced remote contact no longer exists.
// Callers treat a not-found update as "the mapping is stale".
var ErrNotFound = errors.New("crm: contact not found")

// Client defines the CRM operations used by the reconciler.
type Client interface {
	// SearchByEmails returns a map of email to remote contact id for every
	// email in the list that already has a contact. Absent emails have no key.
	SearchByEmails(ctx context.Context, emails []string) (map[string]string, error)
	// BatchCreate creates up to MaxBatchSize contacts in one call.
	BatchCreate(ctx context.Context, contacts []Contact) ([]BatchResult, error)
	// BatchUpdate updates up to MaxBatchSize contacts in one call.
	BatchUpdate(ctx context.Context, updates []Update) ([]BatchResult, error)
	// CreateOne creates a single contact and returns its remote id.
	CreateOne(ctx context.Context, contact Contact) (string, error)
	// UpdateOne updates a single contact. Returns ErrNotFound if the remote
	// contact was deleted.
	UpdateOne(ctx context.Context, id string, contact Contact) error
}

// Contact is the property set sent to the CRM for a contact.
type Contact struct {
	Email      string            `json:"email"`
	Properties map[string]string `json:"properties,omitempty"`
}

// Update pairs a remote contact id with the properties to set.
type Update struct {
	ID      string  `json:"id"`
	Contact Contact `json:"contact"`
}

// BatchResult is the per-item outcome of a batch operation, in input order.
type BatchResult struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Gate is the throttle every outbound call waits on before being issued.
type Gate interface {
	Wait(ctx context.Context) error
}

// Option configures the CRM client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithGate routes every call through the given rate-limit gate.
func WithGate(g Gate) Option {
	return func(c *httpClient) {
		c.gate = g
	}
}

// WithRetryPolicy overrides the default transient-error retry policy.
func WithRetryPolicy(p resilience.Policy) Option {
	return func(c *httpClient) {
		c.retry = p
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	gate    Gate
	retry   resilience.Policy
}

// NewClient creates a CRM API client.
func NewClient(apiKey, baseURL string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		retry:   resilience.DefaultPolicy("crm"),
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type searchRequest struct {
	Emails []string `json:"emails"`
}

type searchResponse struct {
	Results []struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"results"`
}

func (c *httpClient) SearchByEmails(ctx context.Context, emails []string) (map[string]string, error) {
	if len(emails) == 0 {
		return map[string]string{}, nil
	}

	var resp searchResponse
	err := c.post(ctx, "/contacts/search", searchRequest{Emails: emails}, &resp)
	if err != nil {
		return nil, eris.Wrap(err, "crm: search contacts")
	}

	found := make(map[string]string, len(resp.Results))
	for _, r := range resp.Results {
		found[r.Email] = r.ID
	}
	return found, nil
}

type batchCreateRequest struct {
	Inputs []Contact `json:"inputs"`
}

type batchUpdateRequest struct {
	Inputs []Update `json:"inputs"`
}

type batchResponse struct {
	Results []BatchResult `json:"results"`
}

func (c *httpClient) BatchCreate(ctx context.Context, contacts []Contact) ([]BatchResult, error) {
	if len(contacts) > MaxBatchSize {
		return nil, eris.Errorf("crm: batch create of %d exceeds limit %d", len(contacts), MaxBatchSize)
	}
	var resp batchResponse
	if err := c.post(ctx, "/contacts/batch/create", batchCreateRequest{Inputs: contacts}, &resp); err != nil {
		return nil, eris.Wrap(err, "crm: batch create")
	}
	return resp.Results, nil
}

func (c *httpClient) BatchUpdate(ctx context.Context, updates []Update) ([]BatchResult, error) {
	if len(updates) > MaxBatchSize {
		return nil, eris.Errorf("crm: batch update of %d exceeds limit %d", len(updates), MaxBatchSize)
	}
	var resp batchResponse
	if err := c.post(ctx, "/contacts/batch/update", batchUpdateRequest{Inputs: updates}, &resp); err != nil {
		return nil, eris.Wrap(err, "crm: batch update")
	}
	return resp.Results, nil
}

type createResponse struct {
	ID string `json:"id"`
}

func (c *httpClient) CreateOne(ctx context.Context, contact Contact) (string, error) {
	var resp createResponse
	if err := c.post(ctx, "/contacts", contact, &resp); err != nil {
		return "", eris.Wrap(err, "crm: create contact")
	}
	return resp.ID, nil
}

func (c *httpClient) UpdateOne(ctx context.Context, id string, contact Contact) error {
	err := c.post(ctx, "/contacts/"+id, contact, nil)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return eris.Wrapf(err, "crm: update contact %s", id)
	}
	return nil
}

// post issues one rate-gated, retried JSON request.
func (c *httpClient) post(ctx context.Context, path string, reqBody, out any) error {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return eris.Wrap(err, "marshal request")
	}

	return resilience.Do(ctx, c.retry, func(ctx context.Context) error {
		if c.gate != nil {
			if err := c.gate.Wait(ctx); err != nil {
				return eris.Wrap(err, "rate gate")
			}
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return eris.Wrap(err, "create request")
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.http.Do(httpReq)
		if err != nil {
			return eris.Wrap(err, "send request")
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return eris.Wrap(err, "read response")
		}

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return ErrNotFound
		case resilience.IsTransientHTTPStatus(resp.StatusCode):
			return resilience.NewTransientError(
				fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody)),
				resp.StatusCode,
			)
		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			return eris.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
		}

		if out == nil {
			return nil
		}
		if err := json.Unmarshal(respBody, out); err != nil {
			return eris.Wrap(err, "unmarshal response")
		}
		return nil
	})
}

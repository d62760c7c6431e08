// Package anymail provides access to the AnyMail Finder email-discovery API.
package anymail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadsync/internal/resilience"
)

const defaultBaseURL = "https://api.anymailfinder.com/v5.0"

// Client performs email lookups against the AnyMail API.
type Client interface {
	// FindEmail returns the best-guess email for a person, or nil when the
	// service has no answer.
	FindEmail(ctx context.Context, req FindRequest) (*FindResult, error)
	// BatchFindEmails looks up several people in one call. Results come back
	// in input order; entries with no answer are nil.
	BatchFindEmails(ctx context.Context, reqs []FindRequest) ([]*FindResult, error)
}

// FindRequest identifies the person to look up.
type FindRequest struct {
	Domain      string `json:"domain,omitempty"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	CompanyName string `json:"company_name,omitempty"`
}

// FindResult is the provider's answer for one person.
type FindResult struct {
	Email      string   `json:"email"`
	Confidence int      `json:"confidence"`
	Sources    []string `json:"sources,omitempty"`
}

// Option configures the client.
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

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	retry   resilience.Policy
}

// NewClient creates an AnyMail API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		retry:   resilience.DefaultPolicy("anymail"),
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type findResponse struct {
	Results *struct {
		Email      string   `json:"email"`
		Validation string   `json:"validation"`
		Confidence int      `json:"confidence"`
		Sources    []string `json:"sources"`
	} `json:"results"`
}

func (c *httpClient) FindEmail(ctx context.Context, req FindRequest) (*FindResult, error) {
	var resp findResponse
	if err := c.post(ctx, "/search/person.json", req, &resp); err != nil {
		return nil, eris.Wrap(err, "anymail: find email")
	}
	if resp.Results == nil || resp.Results.Email == "" {
		return nil, nil
	}
	return &FindResult{
		Email:      resp.Results.Email,
		Confidence: resp.Results.Confidence,
		Sources:    resp.Results.Sources,
	}, nil
}

type batchFindRequest struct {
	People []FindRequest `json:"people"`
}

type batchFindResponse struct {
	Results []*struct {
		Email      string   `json:"email"`
		Confidence int      `json:"confidence"`
		Sources    []string `json:"sources"`
	} `json:"results"`
}

func (c *httpClient) BatchFindEmails(ctx context.Context, reqs []FindRequest) ([]*FindResult, error) {
	if len(reqs) == 0 {
		return nil, nil
	}

	var resp batchFindResponse
	if err := c.post(ctx, "/search/batch.json", batchFindRequest{People: reqs}, &resp); err != nil {
		return nil, eris.Wrap(err, "anymail: batch find")
	}
	if len(resp.Results) != len(reqs) {
		return nil, eris.Errorf("anymail: batch returned %d results for %d requests", len(resp.Results), len(reqs))
	}

	out := make([]*FindResult, len(resp.Results))
	for i, r := range resp.Results {
		if r == nil || r.Email == "" {
			continue
		}
		out[i] = &FindResult{
			Email:      r.Email,
			Confidence: r.Confidence,
			Sources:    r.Sources,
		}
	}
	return out, nil
}

func (c *httpClient) post(ctx context.Context, path string, reqBody, out any) error {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return eris.Wrap(err, "marshal request")
	}

	return resilience.Do(ctx, c.retry, func(ctx context.Context) error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return eris.Wrap(err, "create request")
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("X-Api-Key", c.apiKey)

		resp, err := c.http.Do(httpReq)
		if err != nil {
			return eris.Wrap(err, "send request")
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return eris.Wrap(err, "read response")
		}

		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return resilience.NewTransientError(
				fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody)),
				resp.StatusCode,
			)
		}
		if resp.StatusCode != http.StatusOK {
			return eris.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
		}

		if err := json.Unmarshal(respBody, out); err != nil {
			return eris.Wrap(err, "unmarshal response")
		}
		return nil
	})
}

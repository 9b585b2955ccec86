// Package processor wraps the external payment processor's HTTP API: identity
// registration, account registration, payment creation and payment listing.
// Every successful call yields a processor-assigned id, the only id usable for
// money movement.
package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
)

// APIError is a non-2xx response from the processor, carrying the
// human-readable message from its error envelope.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("processor returned status %d: %s", e.StatusCode, e.Message)
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message *string         `json:"message"`
}

type errorDetails struct {
	Error struct {
		Type    string `json:"type"`
		SubType string `json:"sub_type"`
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	log     zerolog.Logger
}

func NewClient(baseURL, apiKey string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 30 * time.Second},
		log:     log,
	}
}

func (c *Client) CreateEntity(ctx context.Context, entity Entity) (*EntityResponse, error) {
	var response EntityResponse
	if err := c.do(ctx, http.MethodPost, "entities", entity, nil, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

func (c *Client) ListEntities(ctx context.Context, filter map[string]string) ([]EntityResponse, error) {
	var response []EntityResponse
	if err := c.do(ctx, http.MethodGet, "entities", nil, filter, &response); err != nil {
		return nil, err
	}
	return response, nil
}

func (c *Client) CreateSourceAccount(ctx context.Context, account SourceAccount) (*AccountResponse, error) {
	var response AccountResponse
	if err := c.do(ctx, http.MethodPost, "accounts", account, nil, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

func (c *Client) CreateDestAccount(ctx context.Context, account DestAccount) (*AccountResponse, error) {
	var response AccountResponse
	if err := c.do(ctx, http.MethodPost, "accounts", account, nil, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

func (c *Client) CreatePayment(ctx context.Context, payment Payment) (*PaymentResponse, error) {
	var response PaymentResponse
	if err := c.do(ctx, http.MethodPost, "payments", payment, nil, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

func (c *Client) ListPayments(ctx context.Context, filter map[string]string) ([]PaymentResponse, error) {
	var response []PaymentResponse
	if err := c.do(ctx, http.MethodGet, "payments", nil, filter, &response); err != nil {
		return nil, err
	}
	return response, nil
}

// do sends one request and decodes the enveloped response into out. Non-2xx
// responses are returned as *APIError with the envelope's error message.
func (c *Client) do(ctx context.Context, method, endpoint string, body any, params map[string]string, out any) error {
	uri := fmt.Sprintf("%s/%s", c.baseURL, endpoint)
	if len(params) > 0 {
		values := url.Values{}
		for k, v := range params {
			values.Set(k, v)
		}
		uri = uri + "?" + values.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("error serializing %s request body: %w", endpoint, err)
		}
		reqBody = bytes.NewReader(payload)
	}

	c.log.Debug().Str("method", method).Str("uri", uri).Msg("sending processor request")

	req, err := http.NewRequestWithContext(ctx, method, uri, reqBody)
	if err != nil {
		return fmt.Errorf("error building %s request: %w", endpoint, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("error sending request to %s: %w", uri, err)
	}
	defer res.Body.Close()

	buf, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("error reading %s response body: %w", endpoint, err)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		apiErr := &APIError{StatusCode: res.StatusCode}
		var failure envelope
		if err := json.Unmarshal(buf, &failure); err == nil && failure.Data != nil {
			var details errorDetails
			if err := json.Unmarshal(failure.Data, &details); err == nil {
				apiErr.Message = details.Error.Message
			}
		}
		c.log.Error().Int("status", res.StatusCode).Str("uri", uri).Str("message", apiErr.Message).
			Msg("processor request failed")
		return apiErr
	}

	var success envelope
	if err := json.Unmarshal(buf, &success); err != nil {
		return fmt.Errorf("error deserializing %s response: %w", endpoint, err)
	}
	if err := json.Unmarshal(success.Data, out); err != nil {
		return fmt.Errorf("error deserializing %s response data: %w", endpoint, err)
	}

	return nil
}

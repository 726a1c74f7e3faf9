package repairclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"marinehub/pkg/domain"
)

const basePath = "/api/boat-repairs"

// Client calls the boat repair API over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// APIError carries the server's message for a failed call.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// NewClient constructs a repair API client.
func NewClient(baseURL string) *Client {
	return NewClientWithHTTP(baseURL, &http.Client{Timeout: 15 * time.Second})
}

// NewClientWithHTTP constructs a client on a caller-supplied http.Client.
func NewClientWithHTTP(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// CreatePayload is the body sent when a new request is submitted.
type CreatePayload struct {
	ServiceType        domain.ServiceType      `json:"serviceType"`
	BoatDetails        domain.BoatDetails      `json:"boatDetails"`
	ProblemDescription string                  `json:"problemDescription"`
	Photos             []domain.UploadedFile   `json:"photos"`
	ServiceLocation    domain.LocationEnvelope `json:"serviceLocation"`
	Scheduling         domain.Scheduling       `json:"scheduling"`
	Payment            domain.Payment          `json:"payment"`
}

// UpdatePayload is the body of a customer edit. It has no scheduling or
// payment fields; those are immutable once an appointment exists.
type UpdatePayload struct {
	ServiceType        domain.ServiceType      `json:"serviceType"`
	BoatDetails        domain.BoatDetails      `json:"boatDetails"`
	ProblemDescription string                  `json:"problemDescription"`
	Photos             []domain.UploadedFile   `json:"photos"`
	ServiceLocation    domain.LocationEnvelope `json:"serviceLocation"`
}

func (c *Client) Create(ctx context.Context, token string, payload CreatePayload) (domain.RepairRequest, error) {
	var out domain.RepairRequest
	if err := c.doJSON(ctx, http.MethodPost, basePath, token, payload, &out); err != nil {
		return domain.RepairRequest{}, err
	}
	return out, nil
}

func (c *Client) Get(ctx context.Context, token, id string) (domain.RepairRequest, error) {
	var out domain.RepairRequest
	if err := c.doJSON(ctx, http.MethodGet, basePath+"/"+url.PathEscape(id), token, nil, &out); err != nil {
		return domain.RepairRequest{}, err
	}
	return out, nil
}

func (c *Client) GetByBookingID(ctx context.Context, token, bookingID string) (domain.RepairRequest, error) {
	var out domain.RepairRequest
	if err := c.doJSON(ctx, http.MethodGet, basePath+"/booking/"+url.PathEscape(bookingID), token, nil, &out); err != nil {
		return domain.RepairRequest{}, err
	}
	return out, nil
}

func (c *Client) ListMine(ctx context.Context, token string) ([]domain.RepairRequest, error) {
	var out []domain.RepairRequest
	if err := c.doJSON(ctx, http.MethodGet, basePath+"/my-repairs", token, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CustomerUpdate(ctx context.Context, token, id string, payload UpdatePayload) (domain.RepairRequest, error) {
	var out domain.RepairRequest
	path := fmt.Sprintf("%s/%s/customer-edit", basePath, url.PathEscape(id))
	if err := c.doJSON(ctx, http.MethodPut, path, token, payload, &out); err != nil {
		return domain.RepairRequest{}, err
	}
	return out, nil
}

func (c *Client) CustomerCancel(ctx context.Context, token, id string) (domain.RepairRequest, error) {
	var out domain.RepairRequest
	path := fmt.Sprintf("%s/%s/cancel", basePath, url.PathEscape(id))
	if err := c.doJSON(ctx, http.MethodPatch, path, token, nil, &out); err != nil {
		return domain.RepairRequest{}, err
	}
	return out, nil
}

// CustomerDelete issues the delete call without the appointment guard.
// Callers holding the request should prefer DeleteGuarded.
func (c *Client) CustomerDelete(ctx context.Context, token, id string) error {
	path := fmt.Sprintf("%s/%s/customer-delete", basePath, url.PathEscape(id))
	return c.doJSON(ctx, http.MethodDelete, path, token, nil, nil)
}

// DeleteGuarded refuses requests whose appointment is too close and only
// then calls CustomerDelete.
func (c *Client) DeleteGuarded(ctx context.Context, token string, req domain.RepairRequest, now time.Time) error {
	if err := GuardDelete(req, now); err != nil {
		return err
	}
	return c.CustomerDelete(ctx, token, req.ID)
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func (c *Client) newRequest(ctx context.Context, method, path, token string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	addAuthHeader(req, token)
	return req, nil
}

func (c *Client) doJSON(ctx context.Context, method, path, token string, body, out any) error {
	req, err := c.newRequest(ctx, method, path, token, body)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env envelope
	decodeErr := json.NewDecoder(io.LimitReader(resp.Body, 8<<20)).Decode(&env)
	if resp.StatusCode >= 300 {
		return apiErrorFrom(resp, env)
	}
	if decodeErr != nil {
		return fmt.Errorf("decode response: %w", decodeErr)
	}
	if !env.Success {
		return apiErrorFrom(resp, env)
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}

func apiErrorFrom(resp *http.Response, env envelope) *APIError {
	msg := strings.TrimSpace(env.Message)
	if msg == "" {
		msg = resp.Status
	}
	return &APIError{Status: resp.StatusCode, Message: msg}
}

func addAuthHeader(req *http.Request, token string) {
	if strings.TrimSpace(token) == "" {
		return
	}
	req.Header.Set("Authorization", "Bearer "+token)
}

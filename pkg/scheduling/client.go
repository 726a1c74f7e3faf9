package scheduling

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

const defaultAPIURL = "https://api.calendly.com"

// Event is the vendor's canonical view of a booked slot.
type Event struct {
	URI       string    `json:"uri"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// EventSource fetches scheduled events by UUID.
type EventSource interface {
	ScheduledEvent(ctx context.Context, id uuid.UUID) (Event, error)
}

// Client calls the scheduling vendor's REST API with a bearer token.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewClient(baseURL, token string) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultAPIURL
	}
	return &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type eventResponse struct {
	Resource struct {
		URI       string `json:"uri"`
		Name      string `json:"name"`
		Status    string `json:"status"`
		StartTime string `json:"start_time"`
		EndTime   string `json:"end_time"`
	} `json:"resource"`
	Message string `json:"message"`
}

// ScheduledEvent returns the event; a missing or unparseable start time is
// an error.
func (c *Client) ScheduledEvent(ctx context.Context, id uuid.UUID) (Event, error) {
	endpoint := fmt.Sprintf("%s/scheduled_events/%s", c.baseURL, url.PathEscape(id.String()))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Event{}, err
	}
	req.Header.Set("Accept", "application/json")
	if strings.TrimSpace(c.token) != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Event{}, err
	}
	defer resp.Body.Close()
	var out eventResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&out)
	if resp.StatusCode >= 400 {
		msg := out.Message
		if msg == "" {
			msg = resp.Status
		}
		return Event{}, fmt.Errorf("scheduling api error: %s", msg)
	}
	if decodeErr != nil {
		return Event{}, fmt.Errorf("decode event: %w", decodeErr)
	}
	if strings.TrimSpace(out.Resource.StartTime) == "" {
		return Event{}, fmt.Errorf("event %s has no start_time", id)
	}
	start, err := time.Parse(time.RFC3339, out.Resource.StartTime)
	if err != nil {
		return Event{}, fmt.Errorf("parse start_time: %w", err)
	}
	event := Event{
		URI:       out.Resource.URI,
		Name:      out.Resource.Name,
		Status:    out.Resource.Status,
		StartTime: start.UTC(),
	}
	if end, err := time.Parse(time.RFC3339, out.Resource.EndTime); err == nil {
		event.EndTime = end.UTC()
	}
	return event, nil
}

package alfcoachsdk

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
)

// Client is a minimal ALF Coach HTTP API client.
type Client struct {
	BaseURL     string
	BearerToken string
	ActorID     string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Session is the API session model.
type Session struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Step         string   `json:"step"`
	Stage        string   `json:"stage"`
	Status       string   `json:"status"`
	DurationHint string   `json:"duration_hint"`
	Captured     Captured `json:"captured"`
	CreatedAt    string   `json:"created_at"`
	UpdatedAt    string   `json:"updated_at"`
}

// Captured mirrors the blueprint record.
type Captured struct {
	Ideation struct {
		BigIdea           string `json:"big_idea"`
		EssentialQuestion string `json:"essential_question"`
		Challenge         string `json:"challenge"`
	} `json:"ideation"`
	Journey struct {
		Phases []Phase `json:"phases"`
	} `json:"journey"`
	Deliverables struct {
		Milestones []Milestone `json:"milestones"`
		Artifacts  []Artifact  `json:"artifacts"`
		Rubric     Rubric      `json:"rubric"`
	} `json:"deliverables"`
}

type Phase struct {
	Name       string   `json:"name"`
	Activities []string `json:"activities"`
}

type Milestone struct {
	Name string `json:"name"`
}

type Artifact struct {
	Name string `json:"name"`
}

type Rubric struct {
	Criteria []string `json:"criteria"`
}

// Turn is the outcome of one submitted chat message.
type Turn struct {
	ID              string `json:"id"`
	Seq             int    `json:"seq"`
	Step            string `json:"step"`
	Text            string `json:"text"`
	Outcome         string `json:"outcome"`
	Reason          string `json:"reason"`
	DidAdvance      bool   `json:"did_advance"`
	ExtractionEmpty bool   `json:"extraction_empty"`
	NextStep        string `json:"next_step"`
	CreatedAt       string `json:"created_at"`
}

// Status is the progress summary.
type Status struct {
	SessionID     string `json:"session_id"`
	Step          string `json:"step"`
	Stage         string `json:"stage"`
	SessionStatus string `json:"status"`
	Gate          struct {
		OK      bool     `json:"ok"`
		Missing []string `json:"missing"`
	} `json:"gate"`
	SuggestedPhases     int `json:"suggested_phases"`
	SuggestedMilestones int `json:"suggested_milestones"`
	Turns               int `json:"turns"`
}

// Event is a log entry.
type Event struct {
	ID        int64  `json:"id"`
	TS        string `json:"ts"`
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	ActorID   string `json:"actor_id"`
	Payload   string `json:"payload"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// StartSession creates a new blueprint session.
func (c *Client) StartSession(ctx context.Context, title, durationHint string) (Session, error) {
	body := map[string]any{"title": title}
	if durationHint != "" {
		body["duration_hint"] = durationHint
	}
	var resp Session
	err := c.do(ctx, http.MethodPost, "v0/sessions", body, &resp)
	return resp, err
}

// Say submits one chat turn and returns its outcome.
func (c *Client) Say(ctx context.Context, sessionID, text string) (Turn, error) {
	var resp Turn
	endpoint := fmt.Sprintf("v0/sessions/%s/turns", url.PathEscape(sessionID))
	err := c.do(ctx, http.MethodPost, endpoint, map[string]any{"text": text}, &resp)
	return resp, err
}

// Back re-enters an earlier step. An empty target means the previous step.
func (c *Client) Back(ctx context.Context, sessionID, target string) (Session, error) {
	body := map[string]any{}
	if target != "" {
		body["target"] = target
	}
	var resp Session
	endpoint := fmt.Sprintf("v0/sessions/%s/back", url.PathEscape(sessionID))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// GetSession fetches a session snapshot.
func (c *Client) GetSession(ctx context.Context, sessionID string) (Session, error) {
	var resp Session
	endpoint := fmt.Sprintf("v0/sessions/%s", url.PathEscape(sessionID))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// Status fetches the progress summary.
func (c *Client) Status(ctx context.Context, sessionID string) (Status, error) {
	var resp Status
	endpoint := fmt.Sprintf("v0/sessions/%s/status", url.PathEscape(sessionID))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// Transcript lists the session's turns in order.
func (c *Client) Transcript(ctx context.Context, sessionID string) ([]Turn, error) {
	var resp []Turn
	endpoint := fmt.Sprintf("v0/sessions/%s/turns", url.PathEscape(sessionID))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// Blueprint fetches the captured record alone.
func (c *Client) Blueprint(ctx context.Context, sessionID string) (Captured, error) {
	var resp Captured
	endpoint := fmt.Sprintf("v0/sessions/%s/blueprint", url.PathEscape(sessionID))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// Events returns recent events, optionally scoped to a session.
func (c *Client) Events(ctx context.Context, n int, sessionID string) ([]Event, error) {
	endpoint := "v0/events"
	params := url.Values{}
	if n > 0 {
		params.Set("n", fmt.Sprintf("%d", n))
	}
	if sessionID != "" {
		params.Set("session_id", sessionID)
	}
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	var resp []Event
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	} else if c.ActorID != "" {
		req.Header.Set("X-Actor-Id", c.ActorID)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}

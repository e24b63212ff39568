package remora

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tazhate/remora/internal/api"
)

// ErrNotFound is returned for 404 replies.
var ErrNotFound = errors.New("not found")

// Client talks to a running remora daemon over its REST API.
type Client struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
}

func NewClient(baseURL, username, password string) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		password: password,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// IsConfigured returns true if the client has credentials
func (c *Client) IsConfigured() bool {
	return c.username != "" && c.password != ""
}

// doRequest performs an authenticated request and decodes the envelope's data
// into out when out is not nil.
func (c *Client) doRequest(ctx context.Context, method, path string, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.SetBasicAuth(c.username, c.password)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   string          `json:"error"`
	}
	_ = json.Unmarshal(respBody, &envelope)

	if resp.StatusCode == http.StatusNotFound {
		if envelope.Error != "" {
			return fmt.Errorf("%w: %s", ErrNotFound, envelope.Error)
		}
		return ErrNotFound
	}
	if resp.StatusCode >= 400 {
		msg := envelope.Error
		if msg == "" {
			msg = strings.TrimSpace(string(respBody))
		}
		return fmt.Errorf("API error %d: %s", resp.StatusCode, msg)
	}

	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// List returns all reminders, or only those on date (YYYY-MM-DD) when set.
func (c *Client) List(ctx context.Context, date string) ([]api.ReminderResponse, error) {
	path := "/api/reminders"
	if date != "" {
		path += "?date=" + url.QueryEscape(date)
	}
	var out []api.ReminderResponse
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Get(ctx context.Context, id int64) (*api.ReminderResponse, error) {
	var out api.ReminderResponse
	if err := c.doRequest(ctx, http.MethodGet, reminderPath(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Create(ctx context.Context, req api.ReminderRequest) (*api.ReminderResponse, error) {
	var out api.ReminderResponse
	if err := c.doRequest(ctx, http.MethodPost, "/api/reminders", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Update patches a reminder. With reschedule false the alarm is left as is.
func (c *Client) Update(ctx context.Context, id int64, req api.ReminderRequest, reschedule bool) (*api.ReminderResponse, error) {
	path := reminderPath(id)
	if !reschedule {
		path += "?reschedule=false"
	}
	var out api.ReminderResponse
	if err := c.doRequest(ctx, http.MethodPut, path, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Toggle(ctx context.Context, id int64) (*api.ReminderResponse, error) {
	var out api.ReminderResponse
	if err := c.doRequest(ctx, http.MethodPost, reminderPath(id)+"/toggle", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Delete(ctx context.Context, id int64) error {
	return c.doRequest(ctx, http.MethodDelete, reminderPath(id), nil, nil)
}

// StopAlarm silences whatever is ringing on the daemon.
func (c *Client) StopAlarm(ctx context.Context) error {
	return c.doRequest(ctx, http.MethodPost, "/api/alarm/stop", nil, nil)
}

func (c *Client) Alarms(ctx context.Context) ([]api.AlarmResponse, error) {
	var out []api.AlarmResponse
	if err := c.doRequest(ctx, http.MethodGet, "/api/alarms", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func reminderPath(id int64) string {
	return "/api/reminders/" + strconv.FormatInt(id, 10)
}

package calendar

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-webdav/caldav"

	"github.com/tazhate/remora/internal/domain"
)

const (
	// Apple iCloud CalDAV endpoint
	DefaultiCloudURL = "https://caldav.icloud.com"
)

// Mirror keeps one calendar object per reminder on a CalDAV server.
type Mirror struct {
	baseURL  string
	username string
	password string
	calendar string // calendar collection path
	location *time.Location

	mu     sync.Mutex
	client *caldav.Client
}

func NewMirror(baseURL, username, password, calendarPath string, loc *time.Location) *Mirror {
	if baseURL == "" {
		baseURL = DefaultiCloudURL
	}
	if loc == nil {
		loc = time.Local
	}
	return &Mirror{
		baseURL:  baseURL,
		username: username,
		password: password,
		calendar: calendarPath,
		location: loc,
	}
}

// IsConfigured returns true if the mirror has credentials and a calendar
func (m *Mirror) IsConfigured() bool {
	return m.username != "" && m.password != "" && m.calendar != ""
}

// connect establishes connection to CalDAV server
func (m *Mirror) connect() (*caldav.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client != nil {
		return m.client, nil
	}

	httpClient := &http.Client{
		Transport: &basicAuthTransport{
			username: m.username,
			password: m.password,
		},
		Timeout: 30 * time.Second,
	}

	client, err := caldav.NewClient(httpClient, m.baseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to CalDAV: %w", err)
	}

	m.client = client
	return client, nil
}

// basicAuthTransport adds Basic Auth to HTTP requests
type basicAuthTransport struct {
	username string
	password string
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.SetBasicAuth(t.username, t.password)
	return http.DefaultTransport.RoundTrip(req)
}

// Put creates or replaces the calendar object for r.
func (m *Mirror) Put(ctx context.Context, r *domain.Reminder) error {
	client, err := m.connect()
	if err != nil {
		return err
	}

	// For CalDAV, update is the same as create (PUT replaces)
	if _, err := client.PutCalendarObject(ctx, m.objectPath(r.ID), ToICS(m.location, r)); err != nil {
		return fmt.Errorf("put reminder %d: %w", r.ID, err)
	}
	return nil
}

// Remove deletes the calendar object for id.
func (m *Mirror) Remove(ctx context.Context, id int64) error {
	client, err := m.connect()
	if err != nil {
		return err
	}

	if err := client.RemoveAll(ctx, m.objectPath(id)); err != nil {
		if isNotFound(err) {
			return nil
		}
		return fmt.Errorf("remove reminder %d: %w", id, err)
	}
	return nil
}

func (m *Mirror) objectPath(id int64) string {
	p := m.calendar
	if !strings.HasSuffix(p, "/") {
		p += "/"
	}
	return p + UID(id) + ".ics"
}

func isNotFound(err error) bool {
	return strings.Contains(err.Error(), "404")
}

package mcpserver

import (
	"context"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tazhate/remora/internal/api"
)

type mockBackend struct {
	created    *api.ReminderRequest
	updatedID  int64
	updated    *api.ReminderRequest
	reschedule bool
	deleted    int64
	stopped    bool
	list       []api.ReminderResponse
	err        error
}

func (m *mockBackend) List(_ context.Context, _ string) ([]api.ReminderResponse, error) {
	return m.list, m.err
}

func (m *mockBackend) Create(_ context.Context, req api.ReminderRequest) (*api.ReminderResponse, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.created = &req
	return &api.ReminderResponse{ID: 1, Title: *req.Title, DueDateTime: *req.DueDateTime, Priority: "MEDIUM"}, nil
}

func (m *mockBackend) Update(_ context.Context, id int64, req api.ReminderRequest, reschedule bool) (*api.ReminderResponse, error) {
	m.updatedID, m.updated, m.reschedule = id, &req, reschedule
	return &api.ReminderResponse{ID: id}, m.err
}

func (m *mockBackend) Toggle(_ context.Context, id int64) (*api.ReminderResponse, error) {
	return &api.ReminderResponse{ID: id, IsCompleted: true}, m.err
}

func (m *mockBackend) Delete(_ context.Context, id int64) error {
	m.deleted = id
	return m.err
}

func (m *mockBackend) StopAlarm(_ context.Context) error {
	m.stopped = true
	return m.err
}

func (m *mockBackend) Alarms(_ context.Context) ([]api.AlarmResponse, error) {
	return nil, m.err
}

func call(args map[string]interface{}) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestAddReminder(t *testing.T) {
	b := &mockBackend{}
	s := NewServer(b)

	res, err := s.handleAdd(context.Background(), call(map[string]interface{}{
		"title":         "Buy milk",
		"due_date_time": "2030-01-02T09:00",
		"priority":      "HIGH",
	}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Contains(t, text(t, res), "Buy milk")

	require.NotNil(t, b.created)
	assert.Equal(t, "HIGH", *b.created.Priority)
	assert.Nil(t, b.created.Description)
}

func TestAddReminder_MissingFields(t *testing.T) {
	s := NewServer(&mockBackend{})

	res, err := s.handleAdd(context.Background(), call(map[string]interface{}{"title": "x"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "due_date_time")
}

func TestUpdateReminder(t *testing.T) {
	b := &mockBackend{}
	s := NewServer(b)

	res, err := s.handleUpdate(context.Background(), call(map[string]interface{}{
		"id":    float64(7),
		"title": "New",
	}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, int64(7), b.updatedID)
	assert.True(t, b.reschedule)
	assert.Equal(t, "New", *b.updated.Title)
	assert.Nil(t, b.updated.DueDateTime)

	res, _ = s.handleUpdate(context.Background(), call(map[string]interface{}{"id": float64(7)}))
	assert.True(t, res.IsError)
}

func TestIDValidation(t *testing.T) {
	s := NewServer(&mockBackend{})
	for _, args := range []map[string]interface{}{{}, {"id": float64(0)}, {"id": float64(-2)}} {
		res, err := s.handleDelete(context.Background(), call(args))
		require.NoError(t, err)
		assert.True(t, res.IsError)
	}
}

func TestToggleDeleteStop(t *testing.T) {
	b := &mockBackend{}
	s := NewServer(b)
	ctx := context.Background()

	res, _ := s.handleToggle(ctx, call(map[string]interface{}{"id": float64(3)}))
	assert.Equal(t, "Reminder 3 is now completed.", text(t, res))

	res, _ = s.handleDelete(ctx, call(map[string]interface{}{"id": float64(3)}))
	assert.Equal(t, int64(3), b.deleted)
	assert.False(t, res.IsError)

	res, _ = s.handleStop(ctx, call(nil))
	assert.True(t, b.stopped)
	assert.Equal(t, "Alarm stopped.", text(t, res))
}

func TestBackendErrors(t *testing.T) {
	s := NewServer(&mockBackend{err: errors.New("API error 500: boom")})
	ctx := context.Background()

	res, err := s.handleList(ctx, call(nil))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "boom")

	res, _ = s.handleAlarms(ctx, call(nil))
	assert.True(t, res.IsError)
}

func TestListEmpty(t *testing.T) {
	s := NewServer(&mockBackend{})
	res, err := s.handleList(context.Background(), call(map[string]interface{}{"date": "2030-01-02"}))
	require.NoError(t, err)
	assert.Equal(t, "No reminders found.", text(t, res))
}

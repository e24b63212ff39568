// Package mcpserver exposes the reminder API as MCP tools.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/tazhate/remora/internal/api"
)

const (
	serverName    = "remora"
	serverVersion = "1.0.0"
)

// Backend is the subset of the daemon client the tools call.
type Backend interface {
	List(ctx context.Context, date string) ([]api.ReminderResponse, error)
	Create(ctx context.Context, req api.ReminderRequest) (*api.ReminderResponse, error)
	Update(ctx context.Context, id int64, req api.ReminderRequest, reschedule bool) (*api.ReminderResponse, error)
	Toggle(ctx context.Context, id int64) (*api.ReminderResponse, error)
	Delete(ctx context.Context, id int64) error
	StopAlarm(ctx context.Context) error
	Alarms(ctx context.Context) ([]api.AlarmResponse, error)
}

type Server struct {
	mcpServer *server.MCPServer
	backend   Backend
}

func NewServer(backend Backend) *Server {
	s := &Server{backend: backend}
	s.mcpServer = server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithToolCapabilities(false),
	)
	s.registerTools()
	return s
}

// MCPServer returns the underlying MCP server for serving.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool("add_reminder",
			mcp.WithDescription("Create a reminder. An alarm fires at the due time."),
			mcp.WithString("title", mcp.Required(), mcp.Description("Reminder title")),
			mcp.WithString("due_date_time", mcp.Required(), mcp.Description("Local due time, YYYY-MM-DDTHH:MM (e.g. 2030-01-15T09:00)")),
			mcp.WithString("description", mcp.Description("Optional description")),
			mcp.WithString("priority", mcp.Description("LOW, MEDIUM or HIGH (default LOW)")),
		),
		s.handleAdd,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("list_reminders",
			mcp.WithDescription("List reminders ordered by due time"),
			mcp.WithString("date", mcp.Description("Only reminders due on this day, YYYY-MM-DD")),
		),
		s.handleList,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("update_reminder",
			mcp.WithDescription("Change reminder fields. The alarm is moved to the new due time."),
			mcp.WithNumber("id", mcp.Required(), mcp.Description("Reminder ID")),
			mcp.WithString("title", mcp.Description("New title")),
			mcp.WithString("description", mcp.Description("New description")),
			mcp.WithString("due_date_time", mcp.Description("New due time, YYYY-MM-DDTHH:MM")),
			mcp.WithString("priority", mcp.Description("New priority: LOW, MEDIUM, HIGH")),
		),
		s.handleUpdate,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("toggle_reminder",
			mcp.WithDescription("Flip a reminder between open and completed"),
			mcp.WithNumber("id", mcp.Required(), mcp.Description("Reminder ID")),
		),
		s.handleToggle,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("delete_reminder",
			mcp.WithDescription("Delete a reminder and cancel its alarm"),
			mcp.WithNumber("id", mcp.Required(), mcp.Description("Reminder ID")),
		),
		s.handleDelete,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("stop_alarm",
			mcp.WithDescription("Silence the alarm that is ringing right now"),
		),
		s.handleStop,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("list_alarms",
			mcp.WithDescription("List pending alarm registrations"),
		),
		s.handleAlarms,
	)
}

func (s *Server) handleAdd(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title := req.GetString("title", "")
	due := req.GetString("due_date_time", "")
	if title == "" {
		return mcp.NewToolResultError("title is required"), nil
	}
	if due == "" {
		return mcp.NewToolResultError("due_date_time is required"), nil
	}

	body := api.ReminderRequest{Title: &title, DueDateTime: &due}
	if d := req.GetString("description", ""); d != "" {
		body.Description = &d
	}
	if p := req.GetString("priority", ""); p != "" {
		body.Priority = &p
	}

	created, err := s.backend.Create(ctx, body)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to add reminder: %v", err)), nil
	}
	return jsonResult(created)
}

func (s *Server) handleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list, err := s.backend.List(ctx, req.GetString("date", ""))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list reminders: %v", err)), nil
	}
	if len(list) == 0 {
		return mcp.NewToolResultText("No reminders found."), nil
	}
	return jsonResult(list)
}

func (s *Server) handleUpdate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, errResult := requireID(req)
	if errResult != nil {
		return errResult, nil
	}

	var body api.ReminderRequest
	set := false
	for key, dst := range map[string]**string{
		"title":         &body.Title,
		"description":   &body.Description,
		"due_date_time": &body.DueDateTime,
		"priority":      &body.Priority,
	} {
		if v := req.GetString(key, ""); v != "" {
			*dst = &v
			set = true
		}
	}
	if !set {
		return mcp.NewToolResultError("nothing to update"), nil
	}

	updated, err := s.backend.Update(ctx, id, body, true)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to update reminder: %v", err)), nil
	}
	return jsonResult(updated)
}

func (s *Server) handleToggle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, errResult := requireID(req)
	if errResult != nil {
		return errResult, nil
	}
	r, err := s.backend.Toggle(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to toggle reminder: %v", err)), nil
	}
	state := "open"
	if r.IsCompleted {
		state = "completed"
	}
	return mcp.NewToolResultText(fmt.Sprintf("Reminder %d is now %s.", id, state)), nil
}

func (s *Server) handleDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, errResult := requireID(req)
	if errResult != nil {
		return errResult, nil
	}
	if err := s.backend.Delete(ctx, id); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to delete reminder: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Reminder %d deleted.", id)), nil
}

func (s *Server) handleStop(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.backend.StopAlarm(ctx); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to stop alarm: %v", err)), nil
	}
	return mcp.NewToolResultText("Alarm stopped."), nil
}

func (s *Server) handleAlarms(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	alarms, err := s.backend.Alarms(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list alarms: %v", err)), nil
	}
	if len(alarms) == 0 {
		return mcp.NewToolResultText("No pending alarms."), nil
	}
	return jsonResult(alarms)
}

func requireID(req mcp.CallToolRequest) (int64, *mcp.CallToolResult) {
	idFloat := req.GetFloat("id", -1)
	if idFloat <= 0 {
		return 0, mcp.NewToolResultError("id is required and must be a positive number")
	}
	return int64(idFloat), nil
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(output)), nil
}

package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tazhate/remora/internal/calendar"
	"github.com/tazhate/remora/internal/domain"
	"github.com/tazhate/remora/internal/scheduler"
	"github.com/tazhate/remora/internal/service"
	"github.com/tazhate/remora/internal/storage"
)

const (
	realm        = "Remora API"
	writeTimeout = 10 * time.Second
)

// Reminders is what the API needs from the view coordinator.
type Reminders interface {
	Insert(r *domain.Reminder) <-chan service.Result
	Update(r *domain.Reminder, reschedule bool) <-chan service.Result
	Delete(r *domain.Reminder) <-chan service.Result
	ToggleCompleted(id int64) <-chan service.Result
	Get(id int64) (*domain.Reminder, error)
	List() ([]*domain.Reminder, error)
	ListForDate(date time.Time) ([]*domain.Reminder, error)
	SetCurrent(r *domain.Reminder)
	Current() *domain.Reminder
	ClearCurrent()
	AllReminders() *service.LiveReminders
}

// Alarms lists pending registrations.
type Alarms interface {
	Registrations() []scheduler.Registration
}

// Stopper broadcasts the stop-alert signal.
type Stopper interface {
	StopAlert()
}

type Config struct {
	Port     string
	Username string
	Password string
	Location *time.Location
}

type Server struct {
	cfg        Config
	reminders  Reminders
	alarms     Alarms
	stopper    Stopper
	engine     *gin.Engine
	httpServer *http.Server
	upgrader   websocket.Upgrader
}

func NewServer(cfg Config, reminders Reminders, alarms Alarms, stopper Stopper) *Server {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	corsConfig.AllowWebSockets = true
	engine.Use(cors.New(corsConfig))

	s := &Server{
		cfg:       cfg,
		reminders: reminders,
		alarms:    alarms,
		stopper:   stopper,
		engine:    engine,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	s.routes()
	s.httpServer = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() {
	s.engine.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if s.cfg.Username == "" || s.cfg.Password == "" {
		log.Println("[api] API_USERNAME/API_PASSWORD not set, REST API disabled")
		return // API disabled if no credentials
	}

	api := s.engine.Group("/api", gin.BasicAuthForRealm(gin.Accounts{s.cfg.Username: s.cfg.Password}, realm))

	api.GET("/reminders", s.listReminders)
	api.POST("/reminders", s.createReminder)
	api.GET("/reminders.ics", s.exportCalendar)
	api.GET("/reminders/stream", s.streamReminders)
	api.GET("/reminders/:id", s.getReminder)
	api.PUT("/reminders/:id", s.updateReminder)
	api.DELETE("/reminders/:id", s.deleteReminder)
	api.POST("/reminders/:id/toggle", s.toggleReminder)

	api.GET("/current", s.getCurrent)
	api.PUT("/current", s.setCurrent)
	api.DELETE("/current", s.clearCurrent)

	api.GET("/alarms", s.listAlarms)
	api.POST("/alarm/stop", s.stopAlarm)
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	log.Printf("[api] Listening on :%s", s.cfg.Port)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) listReminders(c *gin.Context) {
	var (
		list []*domain.Reminder
		err  error
	)
	if date := c.Query("date"); date != "" {
		day, perr := time.Parse(domain.DateLayout, date)
		if perr != nil {
			jsonError(c, http.StatusBadRequest, "invalid date, use YYYY-MM-DD")
			return
		}
		list, err = s.reminders.ListForDate(day)
	} else {
		list, err = s.reminders.List()
	}
	if err != nil {
		jsonError(c, http.StatusInternalServerError, err.Error())
		return
	}
	jsonResponse(c, http.StatusOK, ToResponses(list))
}

func (s *Server) createReminder(c *gin.Context) {
	var req ReminderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		jsonError(c, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}
	if req.DueDateTime == nil {
		jsonError(c, http.StatusBadRequest, "due_date_time is required")
		return
	}

	r := &domain.Reminder{}
	if err := req.Apply(r); err != nil {
		jsonError(c, http.StatusBadRequest, err.Error())
		return
	}

	s.respondResult(c, http.StatusCreated, s.reminders.Insert(r))
}

func (s *Server) getReminder(c *gin.Context) {
	r, ok := s.loadReminder(c)
	if !ok {
		return
	}
	jsonResponse(c, http.StatusOK, ToResponse(r))
}

// updateReminder applies a partial edit. Edits reschedule unless
// ?reschedule=false is given.
func (s *Server) updateReminder(c *gin.Context) {
	r, ok := s.loadReminder(c)
	if !ok {
		return
	}

	var req ReminderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		jsonError(c, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}
	if err := req.Apply(r); err != nil {
		jsonError(c, http.StatusBadRequest, err.Error())
		return
	}

	reschedule := c.DefaultQuery("reschedule", "true") != "false"
	s.respondResult(c, http.StatusOK, s.reminders.Update(r, reschedule))
}

func (s *Server) deleteReminder(c *gin.Context) {
	r, ok := s.loadReminder(c)
	if !ok {
		return
	}
	s.respondResult(c, http.StatusOK, s.reminders.Delete(r))
}

func (s *Server) toggleReminder(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	s.respondResult(c, http.StatusOK, s.reminders.ToggleCompleted(id))
}

func (s *Server) getCurrent(c *gin.Context) {
	r := s.reminders.Current()
	if r == nil {
		jsonError(c, http.StatusNotFound, "no reminder selected")
		return
	}
	jsonResponse(c, http.StatusOK, ToResponse(r))
}

func (s *Server) setCurrent(c *gin.Context) {
	var req CurrentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		jsonError(c, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}
	r, err := s.reminders.Get(req.ID)
	if err != nil {
		jsonError(c, http.StatusInternalServerError, err.Error())
		return
	}
	if r == nil {
		jsonError(c, http.StatusNotFound, "reminder not found")
		return
	}
	s.reminders.SetCurrent(r)
	jsonResponse(c, http.StatusOK, ToResponse(r))
}

func (s *Server) clearCurrent(c *gin.Context) {
	s.reminders.ClearCurrent()
	jsonResponse(c, http.StatusOK, nil)
}

func (s *Server) listAlarms(c *gin.Context) {
	regs := s.alarms.Registrations()
	out := make([]AlarmResponse, 0, len(regs))
	for _, reg := range regs {
		out = append(out, AlarmResponse{
			ID:   reg.ID,
			At:   reg.At.In(s.cfg.Location).Format(time.RFC3339),
			Mode: reg.Mode,
		})
	}
	jsonResponse(c, http.StatusOK, out)
}

func (s *Server) stopAlarm(c *gin.Context) {
	s.stopper.StopAlert()
	jsonResponse(c, http.StatusOK, StopResponse{Stopped: true})
}

func (s *Server) exportCalendar(c *gin.Context) {
	list, err := s.reminders.List()
	if err != nil {
		jsonError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.Header("Content-Type", "text/calendar; charset=utf-8")
	c.Header("Content-Disposition", `attachment; filename="remora.ics"`)
	c.Status(http.StatusOK)
	if err := calendar.Export(c.Writer, s.cfg.Location, list); err != nil {
		log.Printf("[api] Export calendar: %v", err)
	}
}

// streamReminders pushes every list snapshot over a websocket until the
// client goes away.
func (s *Server) streamReminders(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[api] WebSocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	updates, cancel := s.reminders.AllReminders().Subscribe()
	defer cancel()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case <-c.Request.Context().Done():
			return
		case list, ok := <-updates:
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(ToResponses(list)); err != nil {
				return
			}
		}
	}
}

func (s *Server) loadReminder(c *gin.Context) (*domain.Reminder, bool) {
	id, ok := parseID(c)
	if !ok {
		return nil, false
	}
	r, err := s.reminders.Get(id)
	if err != nil {
		jsonError(c, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	if r == nil {
		jsonError(c, http.StatusNotFound, "reminder not found")
		return nil, false
	}
	return r, true
}

// respondResult waits for a queued operation and reports its outcome.
func (s *Server) respondResult(c *gin.Context, status int, ch <-chan service.Result) {
	select {
	case res := <-ch:
		switch {
		case errors.Is(res.Err, storage.ErrNotFound):
			jsonError(c, http.StatusNotFound, "reminder not found")
		case errors.Is(res.Err, domain.ErrEmptyTitle):
			jsonError(c, http.StatusBadRequest, res.Err.Error())
		case res.Err != nil:
			jsonError(c, http.StatusInternalServerError, res.Err.Error())
		case res.Reminder == nil:
			jsonResponse(c, status, nil)
		default:
			jsonResponse(c, status, ToResponse(res.Reminder))
		}
	case <-c.Request.Context().Done():
		jsonError(c, http.StatusServiceUnavailable, "request cancelled")
	}
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		jsonError(c, http.StatusBadRequest, "invalid reminder id")
		return 0, false
	}
	return id, true
}

func jsonResponse(c *gin.Context, status int, data interface{}) {
	c.JSON(status, APIResponse{Success: true, Data: data})
}

func jsonError(c *gin.Context, status int, msg string) {
	c.JSON(status, APIResponse{Success: false, Error: msg})
}

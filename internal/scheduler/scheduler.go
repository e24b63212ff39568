package scheduler

import (
	"context"
	"errors"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/tazhate/remora/internal/domain"
	"github.com/tazhate/remora/internal/metrics"
)

const (
	ModeExact   = "exact"
	ModeInexact = "inexact"

	// Triggers closer than this are armed with a plain timer instead of a
	// cron entry, so they cannot slip past cron's own notion of "now".
	imminentWindow = time.Second

	sweepSpec = "* * * * *"
)

var (
	ErrNoID             = errors.New("reminder has no id")
	ErrExactAlarmDenied = errors.New("exact alarm permission denied")
)

// Receiver is invoked when a registration fires.
type Receiver interface {
	Receive(ctx context.Context, extras domain.Extras)
}

// Registration describes one pending wake-up.
type Registration struct {
	ID   int64
	At   time.Time
	Mode string
}

type registration struct {
	Registration
	extras  domain.Extras
	seq     uint64
	entryID cron.EntryID
	timer   *time.Timer
}

type Config struct {
	Location  *time.Location
	AlarmMode string
}

// Gateway turns reminders into one-shot wake-ups and back. It keeps at most
// one registration per reminder id.
type Gateway struct {
	cron        *cron.Cron
	cfg         Config
	permissions Permissions
	metrics     *metrics.Metrics
	now         func() time.Time

	mu         sync.Mutex
	regs       map[int64]*registration
	seq        uint64
	receiver   Receiver
	presenters []presenterEntry
	baseCtx    context.Context
	stopOnce   sync.Once
}

func New(cfg Config, perms Permissions, m *metrics.Metrics) *Gateway {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.AlarmMode == "" {
		cfg.AlarmMode = AlarmModeBoth
	}
	if perms == nil {
		perms = StaticPermissions{Exact: true, Notifications: true}
	}
	return &Gateway{
		cron:        cron.New(cron.WithLocation(cfg.Location)),
		cfg:         cfg,
		permissions: perms,
		metrics:     m,
		now:         time.Now,
		regs:        make(map[int64]*registration),
		baseCtx:     context.Background(),
	}
}

func (g *Gateway) SetReceiver(r Receiver) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.receiver = r
}

// Start runs the cron loop and the inexact sweep until ctx is done.
func (g *Gateway) Start(ctx context.Context) error {
	g.mu.Lock()
	g.baseCtx = ctx
	g.mu.Unlock()

	// Inexact sweep, once a minute
	if _, err := g.cron.AddFunc(sweepSpec, func() { g.sweep(g.now()) }); err != nil {
		return err
	}

	if !g.permissions.CanScheduleExact() {
		log.Printf("[scheduler] Exact alarm permission unavailable: reminders may be delayed up to a minute")
	}

	g.cron.Start()
	log.Printf("[scheduler] Started (TZ: %s, alarm mode: %s)", g.cfg.Location, g.cfg.AlarmMode)

	<-ctx.Done()
	return nil
}

// Stop halts cron and disarms pending timers. Safe to call more than once.
func (g *Gateway) Stop() {
	g.stopOnce.Do(func() {
		stopCtx := g.cron.Stop()
		<-stopCtx.Done()

		g.mu.Lock()
		for _, reg := range g.regs {
			if reg.timer != nil {
				reg.timer.Stop()
			}
		}
		g.mu.Unlock()
		log.Println("[scheduler] Stopped")
	})
}

// Schedule registers a one-shot wake-up for r at its due time in the
// configured location. Any previous registration for r.ID is replaced. Missing
// exact-alarm permission degrades to the inexact sweep and is not an error.
func (g *Gateway) Schedule(r *domain.Reminder) error {
	if r == nil || r.ID == 0 {
		return ErrNoID
	}

	at := domain.At(r.DueDateTime, g.cfg.Location)
	extras := domain.ExtrasFromReminder(r)

	g.mu.Lock()
	defer g.mu.Unlock()

	g.removeLocked(r.ID)
	g.seq++
	reg := &registration{
		Registration: Registration{ID: r.ID, At: at, Mode: ModeExact},
		extras:       extras,
		seq:          g.seq,
	}

	if err := g.registerExactLocked(reg); err != nil {
		if !errors.Is(err, ErrExactAlarmDenied) {
			log.Printf("[scheduler] Exact registration for reminder %d failed: %v", r.ID, err)
		} else {
			log.Printf("[scheduler] Reminder %d: %v, falling back to inexact", r.ID, err)
		}
		reg.Mode = ModeInexact
		reg.entryID = 0
		reg.timer = nil
	}

	g.regs[r.ID] = reg
	g.metrics.Registered(reg.Mode)
	return nil
}

func (g *Gateway) registerExactLocked(reg *registration) error {
	if !g.permissions.CanScheduleExact() {
		return ErrExactAlarmDenied
	}

	id, seq := reg.ID, reg.seq
	if d := reg.At.Sub(g.now()); d < imminentWindow {
		if d < 0 {
			d = 0
		}
		reg.timer = time.AfterFunc(d, func() { g.fire(id, seq) })
		return nil
	}

	reg.entryID = g.cron.Schedule(oneShot{at: reg.At}, cron.FuncJob(func() { g.fire(id, seq) }))
	return nil
}

// Cancel removes any pending registration for r.ID. Unknown ids are a no-op.
func (g *Gateway) Cancel(r *domain.Reminder) {
	if r == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.removeLocked(r.ID) {
		g.metrics.Cancelled()
	}
}

func (g *Gateway) removeLocked(id int64) bool {
	reg, ok := g.regs[id]
	if !ok {
		return false
	}
	delete(g.regs, id)
	if reg.entryID != 0 {
		g.cron.Remove(reg.entryID)
	}
	if reg.timer != nil {
		reg.timer.Stop()
	}
	return true
}

// Pending reports the registration for id, if any.
func (g *Gateway) Pending(id int64) (Registration, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	reg, ok := g.regs[id]
	if !ok {
		return Registration{}, false
	}
	return reg.Registration, true
}

// Registrations lists pending registrations ordered by trigger time.
func (g *Gateway) Registrations() []Registration {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Registration, 0, len(g.regs))
	for _, reg := range g.regs {
		out = append(out, reg.Registration)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].At.Equal(out[j].At) {
			return out[i].ID < out[j].ID
		}
		return out[i].At.Before(out[j].At)
	})
	return out
}

// fire delivers an exact registration unless it was cancelled or replaced
// after the wake-up was dispatched.
func (g *Gateway) fire(id int64, seq uint64) {
	g.mu.Lock()
	reg, ok := g.regs[id]
	if !ok || reg.seq != seq {
		g.mu.Unlock()
		return
	}
	g.removeLocked(id)
	receiver, ctx := g.receiver, g.baseCtx
	g.mu.Unlock()

	g.deliver(ctx, receiver, reg)
}

// sweep delivers inexact registrations due at or before now.
func (g *Gateway) sweep(now time.Time) {
	g.mu.Lock()
	var due []*registration
	for id, reg := range g.regs {
		if reg.Mode == ModeInexact && !reg.At.After(now) {
			due = append(due, reg)
			delete(g.regs, id)
		}
	}
	receiver, ctx := g.receiver, g.baseCtx
	g.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].At.Before(due[j].At) })
	for _, reg := range due {
		g.deliver(ctx, receiver, reg)
	}
}

func (g *Gateway) deliver(ctx context.Context, receiver Receiver, reg *registration) {
	if receiver == nil {
		log.Printf("[scheduler] Reminder %d fired with no receiver attached", reg.ID)
		return
	}
	receiver.Receive(ctx, reg.extras)
}

// oneShot is a cron.Schedule that fires once at a fixed instant.
type oneShot struct {
	at time.Time
}

func (o oneShot) Next(t time.Time) time.Time {
	if t.Before(o.at) {
		return o.at
	}
	return time.Time{}
}

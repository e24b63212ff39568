package scheduler

import (
	"context"
	"fmt"
	"log"

	"github.com/tazhate/remora/internal/domain"
)

// Alarm modes decide which surfaces PresentAlert posts to.
const (
	AlarmModeNotification = "notification"
	AlarmModeFullScreen   = "fullscreen"
	AlarmModeBoth         = "both"

	SurfaceNotification = "notification"
	SurfaceFullScreen   = "fullscreen"
)

// Alert is the ringing alert that belongs to one delivery. Stop is idempotent
// and only affects that delivery.
type Alert interface {
	Stop()
}

// Presenter shows an alert on one surface. A second Present for the same
// reminder id replaces the first. Present must not block on user input.
type Presenter interface {
	Present(ctx context.Context, r *domain.Reminder, alert Alert) error
}

type presenterEntry struct {
	surface   string
	presenter Presenter
}

func ValidAlarmMode(mode string) error {
	switch mode {
	case AlarmModeNotification, AlarmModeFullScreen, AlarmModeBoth:
		return nil
	default:
		return fmt.Errorf("unknown alarm mode %q (notification, fullscreen, both)", mode)
	}
}

// AddPresenter attaches a surface. surface is SurfaceNotification or
// SurfaceFullScreen.
func (g *Gateway) AddPresenter(surface string, p Presenter) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.presenters = append(g.presenters, presenterEntry{surface: surface, presenter: p})
}

// PresentAlert posts r on every surface enabled by the alarm mode.
func (g *Gateway) PresentAlert(ctx context.Context, r *domain.Reminder, alert Alert) {
	g.mu.Lock()
	var targets []presenterEntry
	for _, e := range g.presenters {
		if surfaceEnabled(g.cfg.AlarmMode, e.surface) {
			targets = append(targets, e)
		}
	}
	g.mu.Unlock()

	if len(targets) == 0 {
		log.Printf("[scheduler] No %s surface available for reminder %d", g.cfg.AlarmMode, r.ID)
		return
	}
	for _, e := range targets {
		if err := e.presenter.Present(ctx, r, alert); err != nil {
			log.Printf("[scheduler] Present reminder %d on %s: %v", r.ID, e.surface, err)
		}
	}
}

func surfaceEnabled(mode, surface string) bool {
	switch mode {
	case AlarmModeBoth:
		return true
	case AlarmModeNotification:
		return surface == SurfaceNotification
	case AlarmModeFullScreen:
		return surface == SurfaceFullScreen
	default:
		return false
	}
}

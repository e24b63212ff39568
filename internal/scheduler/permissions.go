package scheduler

import "sync/atomic"

// Permissions reports what the host currently allows.
type Permissions interface {
	CanScheduleExact() bool
	CanPostNotifications() bool
}

type StaticPermissions struct {
	Exact         bool
	Notifications bool
}

func (p StaticPermissions) CanScheduleExact() bool     { return p.Exact }
func (p StaticPermissions) CanPostNotifications() bool { return p.Notifications }

// SwitchablePermissions can be granted or revoked at runtime.
type SwitchablePermissions struct {
	exact         atomic.Bool
	notifications atomic.Bool
}

func NewSwitchablePermissions(exact, notifications bool) *SwitchablePermissions {
	p := &SwitchablePermissions{}
	p.exact.Store(exact)
	p.notifications.Store(notifications)
	return p
}

func (p *SwitchablePermissions) CanScheduleExact() bool     { return p.exact.Load() }
func (p *SwitchablePermissions) CanPostNotifications() bool { return p.notifications.Load() }

func (p *SwitchablePermissions) SetExact(v bool)         { p.exact.Store(v) }
func (p *SwitchablePermissions) SetNotifications(v bool) { p.notifications.Store(v) }

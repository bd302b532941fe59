// Package notify announces persisted reports to interested listeners.
package notify

import (
	"context"
	"time"
)

// ReportEvent describes a newly persisted report.
type ReportEvent struct {
	Path        string    `json:"path"`
	GeneratedAt time.Time `json:"generated_at"`
	Bytes       int       `json:"bytes"`
}

// Notifier receives report announcements. Implementations log their own
// failures; announcing never affects the caller.
type Notifier interface {
	ReportPersisted(ctx context.Context, ev ReportEvent)
}

// Nop discards every announcement.
type Nop struct{}

// ReportPersisted does nothing.
func (Nop) ReportPersisted(context.Context, ReportEvent) {}

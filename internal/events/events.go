// Package events publishes term dictionary changes to interested parties.
package events

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Change actions.
const (
	ActionAdd    = "add"
	ActionDelete = "delete"
)

// TermsChange describes one committed dictionary mutation.
type TermsChange struct {
	Action    string      `json:"action"`
	Pair      string      `json:"pair"`
	Terms     [][2]string `json:"terms,omitempty"`
	Sources   []string    `json:"sources,omitempty"`
	Total     int         `json:"total"`
	Timestamp time.Time   `json:"timestamp"`
}

// Notifier is told about every committed dictionary change.
type Notifier interface {
	NotifyTermsChanged(ctx context.Context, change TermsChange) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, change TermsChange) error

func (f NotifierFunc) NotifyTermsChanged(ctx context.Context, change TermsChange) error {
	return f(ctx, change)
}

// Multi fans a change out to several notifiers. Every notifier is called
// even when an earlier one fails.
type Multi struct {
	notifiers []Notifier
	logger    *zap.Logger
}

// NewMulti creates a fan-out notifier. Nil notifiers are skipped.
func NewMulti(logger *zap.Logger, notifiers ...Notifier) *Multi {
	m := &Multi{logger: logger}
	for _, n := range notifiers {
		if n != nil {
			m.notifiers = append(m.notifiers, n)
		}
	}
	return m
}

// NotifyTermsChanged delivers change to every notifier and joins their errors.
func (m *Multi) NotifyTermsChanged(ctx context.Context, change TermsChange) error {
	var errs []error
	for _, n := range m.notifiers {
		if err := n.NotifyTermsChanged(ctx, change); err != nil {
			m.logger.Warn("Failed to deliver terms change",
				zap.String("action", change.Action),
				zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Len returns the number of wrapped notifiers.
func (m *Multi) Len() int {
	return len(m.notifiers)
}

package logging

import (
	"context"
	"log/slog"
)

// SessionInfo is evaluated on every record, so attributes such as the
// resolved role stay current after a session changes.
type SessionInfo func() (campaignID, userID, role string)

// SessionHandler stamps campaign, user and role on each record.
type SessionHandler struct {
	inner slog.Handler
	info  SessionInfo
}

// NewSessionHandler wraps inner.
func NewSessionHandler(inner slog.Handler, info SessionInfo) *SessionHandler {
	return &SessionHandler{inner: inner, info: info}
}

// SessionLogger derives a logger from base whose records carry the session
// attributes.
func SessionLogger(base *slog.Logger, info SessionInfo) *slog.Logger {
	if base == nil {
		base = slog.Default()
	}
	return slog.New(NewSessionHandler(base.Handler(), info))
}

func (h *SessionHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *SessionHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.info != nil {
		campaign, user, role := h.info()
		r.AddAttrs(
			slog.String("campaign", campaign),
			slog.String("user", user),
			slog.String("role", role),
		)
	}
	return h.inner.Handle(ctx, r)
}

func (h *SessionHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &SessionHandler{inner: h.inner.WithAttrs(attrs), info: h.info}
}

func (h *SessionHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &SessionHandler{inner: h.inner.WithGroup(name), info: h.info}
}

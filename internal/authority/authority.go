// Package authority gates shared-state mutations on campaign role.
package authority

import (
	"log/slog"

	"github.com/tablekeep/vtt/pkg/core"
)

// Gate answers whether the local viewer may mutate shared state. Rejections
// are silent to callers; they are only logged at debug level.
type Gate struct {
	role   core.Role
	logger *slog.Logger
}

// New returns a gate for role. A nil logger discards.
func New(role core.Role, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Gate{role: role, logger: logger}
}

// Role returns the resolved role.
func (g *Gate) Role() core.Role { return g.role }

// CanWrite reports whether shared-state mutations are enabled.
func (g *Gate) CanWrite() bool { return g.role.IsGM() }

// Allow checks op against the gate.
func (g *Gate) Allow(op string) bool {
	if g.role.IsGM() {
		return true
	}
	g.logger.Debug("mutation rejected", "op", op, "role", g.role.String())
	return false
}

// Package xlog adapts the teacher's structured logger to this
// protocol's needs: every round-scoped log line carries the round id,
// phase, and component name as fields, instead of every call site
// repeating log.WithFields(log.Fields{...}) by hand.
package xlog

import (
	"encoding/hex"
	"fmt"

	"github.com/dedis/dissent/log"
)

// Round returns a logger pre-populated with the round id and
// component name, the way coordinator.Server.log was scoped to a
// single round's lifetime in the teacher.
func Round(roundID []byte, component string) *log.Logger {
	return log.StdLogger.WithFields(log.Fields{
		"round":     hex.EncodeToString(roundID),
		"component": component,
	})
}

// Phase returns a logger further scoped to one phase of a round, used
// by csbulk's per-phase commit/reveal/validate cycle.
func Phase(roundID []byte, component string, phase int) *log.Logger {
	return Round(roundID, component).WithFields(log.Fields{
		"phase": phase,
	})
}

// Server scopes a logger to a single server's view of a round, used
// when logging blame accusations and verdicts naming a specific
// server.
func Server(roundID []byte, component string, serverID fmt.Stringer) *log.Logger {
	return Round(roundID, component).WithFields(log.Fields{
		"server": serverID.String(),
	})
}

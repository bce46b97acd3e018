package observability

import (
	"github.com/danmuck/exprd/internal/logging"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger configures the process logger for app and returns it.
func InitLogger(app string) zerolog.Logger {
	logging.ConfigureRuntime(app)
	return log.Logger
}

// ConnLogger scopes a logger to one client connection.
func ConnLogger(base zerolog.Logger, node, connID, remote string) zerolog.Logger {
	return base.With().
		Str("node", node).
		Str("conn_id", connID).
		Str("remote", remote).
		Logger()
}

// Package executor is the root of the off-chain executor of the cross-chain
// execution protocol. It provides the globally available logger and the list
// of Prometheus collectors that the components populate.
package executor

import (
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

var logout = zerolog.ConsoleWriter{
	Out:        os.Stdout,
	TimeFormat: time.RFC3339,
}

// Logger is a globally available logger instance.
var Logger = zerolog.New(logout).
	With().Timestamp().Logger().
	With().Caller().Logger().
	Level(zerolog.DebugLevel)

// PromCollectors exposes the Prometheus collectors created by the packages.
// They are registered by the executor binary when the metrics endpoint is
// enabled.
var PromCollectors []prometheus.Collector

// Package log wraps zerolog with the handful of structured-field
// helpers the rest of fbksd-server actually calls: a component tag for
// the three long-running binaries, and technique/workspace/task
// identifiers for the per-request and per-task logs the RPC server and
// consumer emit.
package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the process-wide logger, assigned once by Init.
var Logger zerolog.Logger

// Level names one of zerolog's levels by its --log-level flag spelling.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

var zerologLevels = map[Level]zerolog.Level{
	DebugLevel: zerolog.DebugLevel,
	InfoLevel:  zerolog.InfoLevel,
	WarnLevel:  zerolog.WarnLevel,
	ErrorLevel: zerolog.ErrorLevel,
}

// Config controls Init: the minimum level, whether output is JSON lines
// (production) or a console writer (local development), and where it
// goes (os.Stdout if nil).
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
}

// Init assigns the process-wide Logger. Each of the three long-running
// binaries (rpcserver, consumer, mailer) calls this once, from a
// cobra.OnInitialize hook, before doing anything else.
func Init(cfg Config) {
	level, ok := zerologLevels[cfg.Level]
	if !ok {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	if cfg.JSONOutput {
		Logger = zerolog.New(output).With().Timestamp().Logger()
		return
	}
	Logger = zerolog.New(zerolog.ConsoleWriter{
		Out:        output,
		TimeFormat: time.RFC3339,
	}).With().Timestamp().Logger()
}

// WithComponent tags every line from the returned logger with which of
// the three binaries emitted it — useful once logs from all of them are
// aggregated in one place.
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithTechniqueID tags lines with the technique a registry or queue
// operation concerns.
func WithTechniqueID(techniqueID int) zerolog.Logger {
	return Logger.With().Int("technique_id", techniqueID).Logger()
}

// WithWorkspaceUUID tags lines with the workspace a page-synthesis or
// publish operation concerns.
func WithWorkspaceUUID(uuid string) zerolog.Logger {
	return Logger.With().Str("workspace_uuid", uuid).Logger()
}

// WithTask tags lines with both the owning technique and the queue
// task id, the pairing the consumer needs for every line it emits
// about a task it is currently running.
func WithTask(techniqueID int, taskID int64) zerolog.Logger {
	return Logger.With().Int("technique_id", techniqueID).Int64("task_id", taskID).Logger()
}

/*
Package log provides structured logging shared by every fbksd-server
process (producer, consumer, RPC server, CI runner, mailer, ctl).

It wraps zerolog with a single package-level Logger, initialized once
via Init, plus context-logger helpers (WithComponent, WithTechniqueID,
WithWorkspaceUUID, WithTask) used to attach the fields that matter for
this domain without repeating them at every call site.

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})
	taskLog := log.WithTask(42, task.ID)
	taskLog.Info().Str("kind", string(task.Kind)).Msg("dispatching task")

CLI-facing processes (producer, ctl, ci-runner) additionally print a
bordered banner at the end of a run (see pkg/banner); that is the
user-facing report, while this logger is for operators.
*/
package log

/*
Package log configures the process-wide zerolog logger.

Call Init once at startup; every component then derives a child logger
with WithComponent, so each line carries a component field that makes
collector, broker, store and watcher output separable:

	log.Init(log.Config{Level: log.DebugLevel})
	logger := log.WithComponent("collector")
	logger.Info().Int("port", 6433).Msg("Listening")

Before Init the package logger is a zero zerolog.Logger, which discards
everything; tests rely on that.

Console output (the default) is meant for humans at a terminal; pass
JSONOutput for machine-consumed logs.
*/
package log

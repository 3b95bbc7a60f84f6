/*
Package log provides structured logging for the sidecar using zerolog.

A single global Logger is configured once via Init and handed out to each
subsystem as a component-scoped child logger.

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})
	storeLog := log.WithComponent("config-store")
	storeLog.Info().Str("commit", commitID).Msg("repository snapshot applied")

Console output is used in development, JSON in production — selected by
Config.JSONOutput. Component loggers (WithComponent, WithRepoKey,
WithNamespace) avoid repeating the same fields at every call site.
*/
package log

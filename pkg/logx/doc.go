// Package logx wraps zerolog behind a small stable API so packages don't
// import zerolog directly. The Service owns the sinks (console, file) and can
// re-apply configuration at runtime; Loggers handed out before an Apply()
// keep working and pick up the new sinks.
package logx

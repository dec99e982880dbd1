// Package logger wraps zap with the conventions used across the packager:
//   - a global sugared console logger,
//   - context helpers (ToContext/FromContext/WithName),
//   - level parsing and adjustment,
//   - leveled shortcuts (Info, InfoKV, WarnKV, ErrorKV, DebugKV).
//
// Pipeline steps receive a context and log through it, so every status line
// carries the name of the step that produced it.
package logger

// Package logger provides a small wrapper around zap to offer:
//   - a global sugared logger with a console encoder,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level configuration and parsing utilities,
//   - convenience functions (Infof, WarnKV, etc.).
//
// The builder and installer services accept a context and extract the logger
// from it, so every step of a build or an installation is logged with the
// name of the stage that produced it.
package logger

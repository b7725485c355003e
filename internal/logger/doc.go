// Package logger provides console output and debug logging for autocommit.
//
// Console lines are prefixed with "[autocommit]" so they stand out in
// build tool output. Debug logs are structured JSON written with zerolog
// to a per-project file, enabled with --debug.
package logger

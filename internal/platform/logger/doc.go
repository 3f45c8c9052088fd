// Package logger provides structured logging functionality for the application.
//
// It utilizes Go's standard library log/slog package to implement structured JSON logging
// with configurable log levels, and context helpers so that request-scoped loggers
// (carrying trace IDs and the like) flow through the call stack.
package logger

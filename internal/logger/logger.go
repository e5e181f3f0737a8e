// SPDX-License-Identifier: Apache-2.0

// Package logger provides a thin wrapper around zerolog.Logger shared by
// every component of the sync engine.
//
// Logger embeds zerolog.Logger so the full zerolog API (Debug, Info, Warn,
// Error, ...) is available directly. Components obtain a role-scoped logger
// via New and pass it down by value or pointer as their constructors need.
package logger

import (
	"os"
	"runtime"

	"github.com/rs/zerolog"
)

// Logger is a thin wrapper around zerolog.Logger.
type Logger struct {
	zerolog.Logger
}

// New constructs a Logger tagged with role (e.g. "engine", "recovery",
// "server", "demo"). Output is JSON to stdout, with a "func" field carrying
// the caller's fully-qualified function name instead of file:line.
func New(role string) *Logger {
	zerolog.CallerMarshalFunc = func(pc uintptr, _ string, _ int) string {
		if fn := runtime.FuncForPC(pc); fn != nil {
			return fn.Name()
		}
		return "unknown"
	}
	zerolog.CallerFieldName = "func"

	l := zerolog.New(os.Stdout).With().
		Str("role", role).
		Timestamp().
		Caller().
		Logger()

	return &Logger{l}
}

// Nop returns a Logger that discards all output. Useful in tests that don't
// want to assert on log content but still need a non-nil *Logger.
func Nop() *Logger {
	return &Logger{zerolog.Nop()}
}

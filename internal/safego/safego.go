// Package safego launches background goroutines that survive panics.
package safego

import "log/slog"

// Go runs fn on a new goroutine and recovers any panic, logging it instead of
// taking down the process. Every fire-and-forget goroutine in the server (the
// metrics listener, DB stats polling) goes through here so a panic cannot
// silently kill the work.
func Go(fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("background goroutine panicked", "panic", r)
			}
		}()
		fn()
	}()
}

// Package logging provides a tiny abstraction over slog so downstream code
// can depend on a minimal interface (Logger) while allowing callers to plug
// any structured logger. It also offers a richer MineWatchLogger with
// contextual helpers (agent, workflow) and domain specific logging helpers
// for scan cycles, workflow runs and model calls.
package logging

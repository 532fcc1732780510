package pool

import "errors"

// Sentinel errors surfaced to acquire callers. Values are compared with
// errors.Is; the strings match the fixed error text a caller is expected to
// log or display verbatim.
var (
	// ErrConnectFailed means every target the balancer offered refused the
	// connection; remaining_tries reached zero without a success.
	ErrConnectFailed = errors.New("connection failed")

	// ErrDialInit is what dial returns whenever the Dialer fails a connect
	// attempt, for Sockaddr and Named targets alike. Never
	// reaches onDone directly: attemptLoop folds every exhausted-retries
	// dial failure into ErrConnectFailed before invoking the callback, so
	// this string is for internal/log use, not the final error contract.
	ErrDialInit = errors.New("failed to connect to host")

	// ErrDisposed is returned by Acquire once the pool has been disposed.
	ErrDisposed = errors.New("pool disposed")

	// ErrNoTarget is returned by Acquire when a fixed-target pool has no
	// targets. A fixed-target pool does not match the acquire URL against
	// its targets.
	ErrNoTarget = errors.New("url does not match any configured target")

	// ErrExportFailed is returned by Return when the connection could not
	// be re-exported into an idle entry (e.g. it no longer exposes a raw
	// file descriptor).
	ErrExportFailed = errors.New("export failed")
)

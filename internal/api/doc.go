// Package api exposes deck generation over HTTP. It decodes requests into
// pipeline inputs, maps pipeline error kinds to status codes and serves the
// saved-deck and profile routes. Authentication, tracing and rate limiting
// live in the middleware subpackage; response helpers in shared.
package api

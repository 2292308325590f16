// Package auth holds the request-integrity primitives of the API:
//   - password hashing across the current and two verify-only legacy formats
//   - the password policy enforced on every creation and reset
//   - HMAC-SHA256 signatures for device requests with a replay window
//   - stateless HS256 session tokens for web clients
//   - the sliding-window login limiter policy over an external attempt store
//   - the static role capability table consulted by every protected route
//
// Nothing here talks to a database directly; stores are injected through
// small interfaces so that the orchestration in package service decides
// when a dependency failure ends a request.
package auth

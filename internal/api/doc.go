// Package api provides the HTTP client for a Crypter transfer server. It
// handles request/response serialization, error decoding and automatic
// retry with exponential backoff for transient failures.
//
// # Client Creation
//
//   - [NewClient]: Struct-based configuration.
//   - [New]: Functional options.
//
// Both require a base URL. When a user id is configured it is sent in
// the X-Crypter-User header on every request; without one the client
// acts as an anonymous requestor.
//
// # Retry Behavior
//
// Requests are retried up to 3 times by default for 408, 429, 500, 502,
// 503 and 504 responses. A StorageIntegrityViolation is never retried.
// The delay doubles with each attempt.
//
// # Error Handling
//
// Error responses are decoded into [apierrors.APIError], which matches
// the apierrors sentinels with errors.Is:
//
//	if errors.Is(err, apierrors.ErrNotFound) {
//	    // expired, never existed, or not ours
//	}
//
// The [Client] type is safe for concurrent use.
package api

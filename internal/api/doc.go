// Package api provides HTTP client functionality for talking to a quantum
// chat server. It covers the public-key directory and the encrypted message
// store, handles JSON serialization, and retries transient failures with
// exponential backoff and jitter.
//
// # Client Creation
//
//   - [NewClient]: Struct-based configuration for explicit setup.
//   - [New]: Functional options pattern for flexible configuration.
//
// # Endpoints
//
//   - GET  /api/users/public-key?username=  [Client.PublicKey]
//   - POST /api/users/public-key            [Client.PutPublicKey]
//   - POST /api/send-message                [Client.SendMessage]
//   - GET  /api/messages?user1=&user2=      [Client.Conversation]
//   - GET  /api/messages?user=              [Client.Inbox]
//
// The server only ever sees public keys and sealed envelopes.
//
// # Retry Behavior
//
// By default, requests are retried up to 3 times for these HTTP status codes:
//
//   - 408 Request Timeout
//   - 429 Too Many Requests
//   - 500 Internal Server Error
//   - 502 Bad Gateway
//   - 503 Service Unavailable
//   - 504 Gateway Timeout
//
// The delay doubles with each attempt (1s, 2s, 4s, ...) with ±20% jitter.
// A Retry-After header in seconds overrides the computed delay. Network
// errors are retried the same way and surface as [*NetworkError].
//
// # Error Handling
//
//   - [ErrUserNotFound]: No public key for that user (404 on a user route).
//   - [ErrUnauthorized]: The bearer token was rejected (401/403).
//   - [ErrBadRequest]: The server rejected the payload (400).
//   - [ErrRateLimited]: Rate limit exceeded (429).
//
//	if errors.Is(err, api.ErrUserNotFound) {
//	    // The recipient never registered.
//	}
//
// # Thread Safety
//
// The [Client] type is safe for concurrent use.
package api

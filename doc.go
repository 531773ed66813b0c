// Package gridauth provides a grid-card second-factor authentication
// engine: secure matrix generation, lifecycle state management, and
// single-use challenge/response verification with lockout.
//
// The package is designed for concurrent server workloads: Manager
// methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// gridauth is the public surface. It exposes [Manager], [Builder],
// [Config], and value types (CardInfo, Challenge, VerificationResult,
// MetricsSnapshot, etc.). Card entities live in the card subpackage,
// selection/comparison in challenge, and store implementations in
// store; Redis clients and record encodings never appear in the
// public API.
//
// # What this package must NOT do
//
//   - Return or log raw code values from any operation except
//     [Manager.ExportCodes] on a still-Issued card.
//   - Fall back to a non-cryptographic randomness source, ever.
//   - Retain decoded secret matrices beyond the operation that loaded
//     them (buffers are zeroed before returning).
//
// # Security contract
//
// Challenge tokens are single-use and consumed on first submission
// regardless of verdict; lockout is checked before any code
// comparison so locked cards leak no timing; comparisons are
// constant-time across every challenged cell.
package gridauth

// Package domain defines the core types of the booksys catalog service.
//
// # Core Types
//
// User is a registered account. Usernames are unique and restricted to
// letters, digits, underscores and hyphens; the password is only ever held
// as an argon2id hash.
//
// Book is a catalog entry owned by exactly one user. Every book operation is
// scoped to its owner: another user's book behaves as if it did not exist.
//
// Session is a login session referenced by the session_id cookie. Sessions
// expire after a fixed TTL and are removed either lazily, when presented
// after expiry, or by the periodic janitor.
//
// # Validation
//
// Normalize and Validate methods trim and check untrusted input before it
// reaches storage. Failures are reported as *ValidationError so the HTTP
// layer can map them to 400 responses.
//
// # Design Principles
//
// - No database or transport dependencies
// - Sentinel errors for conditions callers branch on
package domain

// Package store provides SQLite-backed durable storage for invoice
// submissions.
//
// The store keeps:
//   - Chain entries: per-seller hash chain of registrations
//   - Invoice states: latest lifecycle state and message per record
//   - Response errors: errors attached to the latest state
//   - Verifications: verification payloads of accepted records
//
// # Chain Mutations
//
// Appends and deletions read the seller's tip and write inside one
// transaction. Only the tip may be deleted, and only while unconfirmed.
// Ordering uses the per-seller entry id, never timestamps.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store

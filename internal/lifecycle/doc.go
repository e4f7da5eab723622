// Package lifecycle defines the submission states an invoice record moves
// through and the guard that decides which pipeline stages may run.
//
// # States
//
//	Created ──► PendingSendAEAT ──► SendedAEAT ──► Valid
//	   │              │                  ├──────► PartlyCorrect
//	   │              │                  └──────► Incorrect
//	   └──────────────┴──► Failed / Incorrect
//
// Valid, PartlyCorrect, Incorrect and Failed are terminal for a single
// submission attempt. Failed records may be submitted again: the guard
// admits every stage from Created, PendingSendAEAT and Failed only.
//
// State values are persisted as integers and must not be renumbered.
package lifecycle

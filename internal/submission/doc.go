// Package submission drives an invoice record through the submission
// pipeline: validate, append to the hash chain, encode, send through the
// resilience policy, classify the reply and hand accepted records over for
// post-processing.
//
// The pipeline appends to the chain before the authority has seen the
// record. The entry is deleted again (compensated) if and only if no usable
// reply was obtained, neither from the send nor from the fallback status
// query. Once any reply exists, including a rejection, the entry is
// confirmed and kept.
//
// Every outcome is persisted to the StateStore before Submit returns.
// Failures are reported as *Error values tagged with the Kind and Stage
// that produced them and the State the record was left in.
//
// Thread-safety: an Orchestrator is safe for concurrent use. Callers must
// not submit the same record concurrently.
package submission

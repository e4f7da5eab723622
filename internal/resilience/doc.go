// Package resilience wraps a single outbound call to the tax authority in a
// fixed composition of policies:
//
//	Fallback ⊃ CircuitBreaker ⊃ Retry ⊃ call
//
// Retry re-invokes the call only for errors marked Transient, waiting
// base^attempt seconds plus a random jitter between attempts. The breaker
// counts consecutive failures of the whole retry sequence; once the
// threshold is reached it rejects calls without invoking them until the
// break duration elapses, then admits a single trial call. The fallback
// handles every error that escapes the breaker, open-circuit rejections
// included, by asking the authority for the record's status through a
// Querier. Its reply becomes the result of the call.
//
// One Policy is built per process so breaker state is shared by every
// submission.
package resilience

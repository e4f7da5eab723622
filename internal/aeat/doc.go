// Package aeat talks to the authority's SOAP endpoint.
//
// HTTPTransport posts envelopes over mutual TLS and reports connectivity
// failures as transient errors. Gate serializes calls to the endpoint
// process-wide; one Gate is created per process and shared by the
// submission path and the fallback Querier.
package aeat

// Package invoice holds the invoice record submitted to the tax authority,
// the chain link produced for it by the ledger and the per-line errors
// returned by the authority.
//
// Amounts use shopspring/decimal so totals are exact in the payload and in
// the chain fingerprint.
package invoice

// Package chain maintains the per-seller hash chain of invoice
// registrations.
//
// Every registration appended for a seller links to the previous one by
// id and fingerprint. The fingerprint is an upper-case hex SHA-256 over the
// record's identifying fields, its totals, the previous fingerprint and
// the generation timestamp. Fields are NFC-normalised before hashing so
// equivalent Unicode spellings hash identically.
//
// A link may be deleted only while it is the seller's tip and the
// authority has not seen it. Links are confirmed once a usable reply
// exists, after which they are permanent.
package chain

// Package soap encodes registration and status-query envelopes for the
// VeriFactu web service and decodes its replies.
//
// Encoding writes the element prefixes the service documents (soapenv, sum,
// sum1, con) literally. Decoding matches on local names only, so replies
// are accepted whatever prefixes the service chooses.
package soap

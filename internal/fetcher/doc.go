// Package fetcher turns "fetch this URL" into a Result.
//
// A fetch runs these stages in order: the AddressGuard rejects URLs that
// point at private networks, the page cache is consulted, and only then is
// the network used. Network attempts are paced per host by a DomainLimiter,
// bounded globally by a semaphore, and retried with exponential backoff on
// server and transport errors. Responses that look like login walls or are
// too short are soft failures and are never cached.
//
// Per-URL failures are values, not errors: a Result carries an ErrorKind
// from a closed set so a single bad URL never aborts a run.
package fetcher

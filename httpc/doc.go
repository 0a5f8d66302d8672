// Package httpc implements the HTTP/1.1 side of the file-distribution
// core: a request/response engine for GET, HEAD, OPTIONS, PUT and
// DELETE with chunked transfer decoding, range resume, basic
// authentication, ETag revalidation and transparent reconnection, over
// plain TCP or TLS.
//
// This is a transfer driver, not a general-purpose HTTP client: one
// Client is one connection to one server (or proxy), driven one request
// at a time by a single goroutine.
package httpc

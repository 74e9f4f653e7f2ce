// Package source abstracts where mirrored objects come from. The HTTP
// implementation issues plain or If-Modified-Since-conditioned GETs against a
// per-source base URL and reports every outcome, including local transport
// failures, as a single status code so the refresh scheduler can apply its
// commit/discard policy uniformly. The shared upstream http.Client mirrors the
// transport tunings used for all outbound traffic (keep-alive reuse, HTTP/2).
package source

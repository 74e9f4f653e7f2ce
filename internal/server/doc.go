// Package server hosts the Fiber HTTP service that exposes mirrored objects
// to consumers. It bootstraps Fiber with recover and request-ID middlewares,
// resolves mirror names through the MirrorSet built at startup, and streams
// only committed copies from the store — staging files are never visible over
// HTTP. The diagnostics surface under /-/ lives in the routes subpackage.
// Keep exports narrow and accept explicit dependencies so handlers can be
// exercised with fake mirror sets in tests.
package server

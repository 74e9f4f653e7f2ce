// Package daemon assembles mirrors from configuration and drives their
// refresh cycle on fixed tickers: a scan tick that re-checks copy freshness
// and a poll tick that harvests completed fetches.
package daemon

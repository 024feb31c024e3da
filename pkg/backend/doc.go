// Package backend holds the startup procedure that wires the watchlist's
// hosted backend: it validates the project settings, derives the service
// identifiers and creates the Auth state holder that reports sign-in and
// sign-out changes to listeners.
package backend

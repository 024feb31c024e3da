// Package session signs users in and out on top of backend.Auth.
//
// Unlike the startup guard, the sign-in guard is re-armed after every
// attempt: it only rejects attempts that overlap one already in flight.
package session

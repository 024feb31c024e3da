// Package types defines the core types shared across bootonce.
// This includes the initialization State machine values, TriggerEvent and
// the GuardStatus snapshot that callers query instead of scraping logs.
package types

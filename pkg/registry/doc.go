// Package registry provides a generic, thread-safe name-to-item registry.
// bootonce uses it to hold trigger sources and the factories that build
// them from configuration.
package registry

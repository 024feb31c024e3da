// Package readiness tracks the conditions that must all hold before the
// splash screen is dismissed. The dismissal hook runs through a guard so it
// happens once, however many times the last flag gets set.
package readiness

// Package verify counts init markers in a log so a run can be checked from
// the outside: exactly one marker means the startup procedure ran once.
//
// Lines may be zerolog JSON, where only the message field is matched, or
// plain text, where the whole line is matched.
package verify

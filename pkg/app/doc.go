// Package app assembles a bootstrap run: configuration, the backend and
// app-logic guards, the trigger dispatcher, the readiness gate, the sign-in
// session and, optionally, metrics.
//
// Every trigger source feeds the dispatcher, and the dispatcher feeds the
// backend guard, so whatever fires first wins and the backend is
// initialized once. The first auth-state callback after that runs the
// app-logic setup once; later callbacks only refresh the view.
package app

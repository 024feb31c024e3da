// Package triggers turns the events that may start the application (an
// auth-state callback, a ready signal, a manual call, a timer) into
// TriggerEvents and funnels them through a single Dispatcher queue into
// one handler, normally a guard's RequestInit.
//
// Sources are registered by unique name before the Dispatcher runs. Every
// source runs in its own goroutine; the queue is consumed by exactly one
// goroutine, so the handler sees events one at a time in arrival order and
// the first event always wins.
package triggers

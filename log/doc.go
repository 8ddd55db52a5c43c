// Package log provides the logging facade for runstream.
//
// The library never logs through the standard library directly. Instead all
// internal logging (most importantly the callback manager reporting isolated
// handler failures) goes through the Logger interface, with a
// package-level default that applications can replace.
//
// # Usage
//
// Redirect library logging to golog:
//
//	log.SetDefaultLogger(log.NewGolog(log.LevelDebug))
//
// Or silence it entirely:
//
//	log.SetDefaultLogger(log.NopLogger{})
//
// The default is a standard-library logger at warn level writing to stderr.
package log

// Package store persists finished runs as records.
//
// A Record captures one run end to end: identity and parentage, kind and
// display name, input and output snapshots, and timing. RecordStore is the
// persistence interface; backends live in the memory, sqlite, redis and
// postgres subpackages. Handler bridges the callback lifecycle into a
// RecordStore, writing each run when it ends or errors.
package store

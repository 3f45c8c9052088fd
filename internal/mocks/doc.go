// Package mocks provides hand-rolled in-memory implementations of the
// application's store and service interfaces for use in tests. Each mock
// behaves like a real in-memory store by default and exposes Fn fields to
// override individual methods for error injection.
package mocks

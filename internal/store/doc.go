// Package store defines the persistence interfaces consumed by the service
// and transcription layers, together with the sentinel errors those
// interfaces return. Concrete implementations live in platform packages
// (see internal/platform/postgres).
package store

// Package postgres provides PostgreSQL implementations of the store
// interfaces, plus the embedded schema migrations.
package postgres

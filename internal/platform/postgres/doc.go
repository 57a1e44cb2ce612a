// Package postgres implements the store interfaces on PostgreSQL via the
// pgx stdlib driver, and carries the embedded schema migrations.
package postgres

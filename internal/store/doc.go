// Package store defines the persistence interfaces for users and tasks,
// the shared error taxonomy, and transaction helpers. Implementations live
// under internal/platform.
package store

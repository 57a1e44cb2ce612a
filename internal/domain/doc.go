// Package domain contains the core entities of the task reminder service:
// users with their session-token sets, and the tasks they own. Entities
// validate themselves; persistence and transport concerns live elsewhere.
package domain

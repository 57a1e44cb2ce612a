// Package reminder runs the background job that nudges users about their
// incomplete tasks. It owns only scheduling and deduplication; delivery is
// behind the Notifier interface.
package reminder

// Package testutil contains builders shared by package tests: events with
// content or state deltas, sessions assembled from events, and raw JSON
// event-log records.
package testutil

// Package events provides a small in-process publish/subscribe mechanism.
//
// Services emit typed events without knowing which components react to them.
// The metering gate uses it to publish usage reconciliation events when a
// delivered deck could not be charged; the task package turns those events
// into background work that records the anomaly.
package events

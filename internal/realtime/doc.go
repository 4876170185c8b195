// Package realtime pushes application events to browsers over Server-Sent Events.
//
// A Manager owns the process-local connection registry, the recent-event cache
// and the per-connection keepalive/heartbeat tickers. Delivery is best effort:
// there is no queue, retry or acknowledgement, and a connection whose write
// fails is dropped on the spot.
//
// Each process has its own Manager. Nothing is shared between instances; the
// instance id stamped on events and connections only makes that visible.
package realtime

// Package broadcast fans published snapshots out to push subscribers.
//
// Delivery is "latest state wins": every subscriber has a one-slot mailbox,
// and a snapshot that has not been picked up yet is replaced by a newer one.
// Notify never blocks on a subscriber, and a subscriber that reconnects gets
// the current snapshot from Subscribe.
package broadcast

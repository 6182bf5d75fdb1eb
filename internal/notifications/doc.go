// Package notifications pushes render outcomes to an ntfy topic.
//
// NewService returns a no-op notifier when no topic is configured, so the
// workflow can publish unconditionally. Delivery is best effort: callers log
// failures and never fail a render because a notification did not go out.
package notifications

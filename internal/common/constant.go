package common

// NotificationChannel is the channel name attached to every index change
// notification.
const NotificationChannel = "index"

// DefaultPageLimit is used when a cursor carries no positive limit.
const DefaultPageLimit = 10

// MinExpressionLength is the shortest filter text that gets compiled.
// Shorter filters are treated as absent.
const MinExpressionLength = 3

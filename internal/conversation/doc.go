// Package conversation turns inbound chat text into calls on the booking core.
//
// Every user owns at most one session. A session holds the flow the user is
// currently in (booking, registration, approval and so on) and is reclaimed
// as soon as that flow reaches a terminal state or sits idle longer than the
// configured timeout. Commands start with a slash; any other text is the
// answer to the active flow's latest prompt. /cancel ends whatever flow is
// active and discards everything it collected.
//
// Replies are returned to the caller for delivery on the inbound channel.
// Notifications to other users (admins, requesters) go through the core's
// notifier.
package conversation

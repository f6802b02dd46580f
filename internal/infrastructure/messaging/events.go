package messaging

const (
	// InboxQueuePrefix is suffixed with an instance id: every server needs its
	// own copy of each event to reach the connections it holds.
	InboxQueuePrefix = "inbox_updates."
	DeadLetterQueue  = "dead_letter_queue"
)

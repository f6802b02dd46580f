package ws

const (
	RoomJoin   = "room.join"
	RoomJoined = "room.joined"
	RoomLeave  = "room.leave"
	RoomLeft   = "room.left"

	MessageSend     = "message.send"
	MessageReceived = "message.received"

	ConversationsUpdated = "conversations.updated"

	ErrorEvent          = "error"
	AuthenticationError = "error.auth"
	JoinFailed          = "error.join"
	RateLimited         = "error.rate_limited"
)

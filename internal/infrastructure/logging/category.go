package logging

type Category string
type SubCategory string
type ExtraKey string

const (
	General         Category = "General"
	IO              Category = "IO"
	Internal        Category = "Internal"
	MongoDB         Category = "MongoDB"
	SQLite          Category = "SQLite"
	RabbitMQ        Category = "RabbitMQ"
	WebSocket       Category = "WebSocket"
	Validation      Category = "Validation"
	RequestResponse Category = "RequestResponse"
	Prometheus      Category = "Prometheus"
)

const (
	// General
	Startup         SubCategory = "Startup"
	Shutdown        SubCategory = "Shutdown"
	RateLimiting    SubCategory = "RateLimiting"
	ExternalService SubCategory = "ExternalService"

	// Messaging core
	Connection  SubCategory = "Connection"
	Relay       SubCategory = "Relay"
	Persistence SubCategory = "Persistence"
	Identity    SubCategory = "Identity"
	Events      SubCategory = "Events"
)

const (
	AppName        ExtraKey = "AppName"
	LoggerName     ExtraKey = "Logger"
	ClientIp       ExtraKey = "ClientIp"
	HostIp         ExtraKey = "HostIp"
	Method         ExtraKey = "Method"
	StatusCode     ExtraKey = "StatusCode"
	BodySize       ExtraKey = "BodySize"
	Path           ExtraKey = "Path"
	Latency        ExtraKey = "Latency"
	ErrorMessage   ExtraKey = "ErrorMessage"
	ParticipantID  ExtraKey = "ParticipantId"
	PartnerID      ExtraKey = "PartnerId"
	RoomID         ExtraKey = "RoomId"
	ConversationID ExtraKey = "ConversationId"
	ConnectionID   ExtraKey = "ConnectionId"
	ClientMsgID    ExtraKey = "ClientMsgId"
	EventType      ExtraKey = "EventType"
)

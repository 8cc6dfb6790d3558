package domain

// Client -> server events. Aliases map onto the same transition.
const (
	EventIdentify    = "identify"
	EventOnline      = "online"
	EventRegister    = "register" // legacy
	EventJoinRoom    = "joinRoom"
	EventSendMessage = "sendMessage"
	EventPrivateMsg  = "private message" // legacy, both directions
)

// Server -> client events.
const (
	EventOnlineUsers    = "onlineUsers"
	EventUserList       = "user-list" // legacy
	EventReceiveMessage = "receiveMessage"
	EventError          = "error"
)

const (
	PresenceOnline  = "ONLINE"
	PresenceOffline = "OFFLINE"
)

// Error codes carried by the "error" event.
const (
	ErrorCodeValidation  = "validation"
	ErrorCodePersistence = "persistence"
	ErrorCodeRegistry    = "registry"
	ErrorCodeInternal    = "internal"
)

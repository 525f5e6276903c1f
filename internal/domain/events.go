package domain

// Wire event names. These are the protocol contract with the web client and
// must not be renamed.
const (
	EventJoinRoom          = "JOIN_ROOM"
	EventJoinLobby         = "JOIN_LOBBY"
	EventUserConnected     = "USER_CONNECTED"
	EventUserDisconnected  = "USER_DISCONNECTED"
	EventLobbyUpdated      = "LOBBY_UPDATED"
	EventUpgradePermission = "UPGRADE_USER_PERMISSION"
)

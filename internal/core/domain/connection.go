package domain

// ConnectionState is the client's current belief about its push channel.
// It is owned exclusively by the connection manager; everything else
// (polling cadence, UI affordances) reads it through an accessor.
type ConnectionState string

const (
	ConnDisconnected ConnectionState = "disconnected"
	ConnConnecting   ConnectionState = "connecting"
	ConnConnected    ConnectionState = "connected"
	ConnReconnecting ConnectionState = "reconnecting"
)

package models

// OnlineUsers is the presence snapshot served by GET /api/users/online.
type OnlineUsers struct {
	OnlineUsers []string `json:"onlineUsers"`
}

// StatusReport is the body of POST /api/users/status.
type StatusReport struct {
	IsOnline bool `json:"isOnline"`
}

// UserStatusResult acknowledges a status report.
type UserStatusResult struct {
	UserID   string `json:"userId"`
	IsOnline bool   `json:"isOnline"`
}

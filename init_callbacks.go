package main

import (
	"github.com/akinalp/pulse/services"
	"github.com/akinalp/pulse/ws"
)

// registerHubCallbacks connects the gateway's presence transitions to the
// presence service. ws never imports services, so the two meet here.
// Must run before hub.Run.
func registerHubCallbacks(hub *ws.Hub, presence services.PresenceService) {
	hub.OnPresenceChange(presence.UserConnected, presence.UserDisconnected)
}

package ws

import "github.com/akinalp/pulse/events"

// relay maps an inbound client event onto the event rebroadcast to the rest
// of the group. Server-originated ops (post:new, user:status, ...) are not
// relayable, so a client cannot forge them.
//
//	post:created    → post:new
//	post:liked      → post:like
//	post:deleted    → post:removed
//	comment:created → comment:new
//	comment:deleted → comment:removed
//	typing:start    → user:typing       (identity stamped by the gateway)
//	typing:stop     → user:typing:stop  (identity stamped by the gateway)
func relay(c *Client, p events.Payload) (events.Payload, bool) {
	switch e := p.(type) {
	case events.PostCreated:
		return events.PostNew{Post: e.Post}, true
	case events.PostLiked:
		return events.PostLike{PostID: e.PostID, IsLiked: e.IsLiked, LikesCount: e.LikesCount}, true
	case events.PostDeleted:
		return events.PostRemoved{PostID: e.PostID}, true
	case events.CommentCreated:
		return events.CommentNew{PostID: e.PostID, Comment: e.Comment}, true
	case events.CommentDeleted:
		return events.CommentRemoved{PostID: e.PostID, CommentID: e.CommentID}, true
	case events.TypingStart:
		return events.UserTyping{UserID: c.userID, Username: c.username, PostID: e.PostID}, true
	case events.TypingStop:
		return events.UserTypingStop{UserID: c.userID, PostID: e.PostID}, true
	default:
		return nil, false
	}
}

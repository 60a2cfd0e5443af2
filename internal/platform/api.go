package platform

import "context"

// API is the platform facade. Every call may block on the platform session.
type API interface {
	// UinByUID resolves an internal opaque uid to the numeric account id.
	UinByUID(ctx context.Context, uid string) (int64, error)
	// UIDByUin is the inverse of UinByUID.
	UIDByUin(ctx context.Context, uin int64) (string, error)
	// GroupMember returns (nil, nil) when the uid is not a member of the group.
	GroupMember(ctx context.Context, groupID int64, uid string) (*GroupMember, error)
	UserInfo(ctx context.Context, uid string) (*User, error)
	Friends(ctx context.Context) ([]User, error)
	Groups(ctx context.Context) ([]Group, error)
	GroupMembers(ctx context.Context, groupID int64) ([]GroupMember, error)

	// SendMessage sends elements to peer and returns the platform record of the sent message.
	SendMessage(ctx context.Context, peer Peer, elements []Element) (*RawMessage, error)
	RecallMessage(ctx context.Context, peer Peer, msgID string) error
	HandleFriendRequest(ctx context.Context, uid string, reqTime int64, approve bool) error
	SendGroupAIVoice(ctx context.Context, groupID int64, character, text string) error
}

// Listener receives the platform's session callbacks. The platform invokes exactly
// these four methods; implementations must return promptly and tolerate concurrent calls.
type Listener interface {
	// OnRecvMsg delivers a batch of newly arrived messages.
	OnRecvMsg(ctx context.Context, msgs []RawMessage)
	// OnMsgInfoListUpdate delivers status changes (send completion, recall) for known messages.
	OnMsgInfoListUpdate(ctx context.Context, msgs []RawMessage)
	// OnBuddyReqChange delivers the current set of friend requests.
	OnBuddyReqChange(ctx context.Context, reqs []BuddyRequest)
	// OnInputStatusPush delivers a typing indicator change.
	OnInputStatusPush(ctx context.Context, status InputStatus)
}

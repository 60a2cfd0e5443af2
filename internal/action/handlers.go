package action

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/dayuer/onebot-bridge/internal/onebot"
	"github.com/dayuer/onebot-bridge/internal/platform"
)

// NoParams is the params type of actions that take none.
type NoParams struct{}

type LoginInfo struct {
	UserID   int64  `json:"user_id"`
	Nickname string `json:"nickname"`
}

var GetLoginInfo = NewTyped("get_login_info", func(_ context.Context, hc *Context, _ NoParams) (any, error) {
	return LoginInfo{UserID: hc.Self.Uin, Nickname: hc.Self.Nick}, nil
})

var GetStatus = NewTyped("get_status", func(_ context.Context, hc *Context, _ NoParams) (any, error) {
	if hc.Status != nil {
		return hc.Status(), nil
	}
	return onebot.Status{Online: true, Good: true}, nil
})

type VersionInfo struct {
	AppName         string `json:"app_name"`
	AppVersion      string `json:"app_version"`
	ProtocolVersion string `json:"protocol_version"`
}

var GetVersionInfo = NewTyped("get_version_info", func(_ context.Context, hc *Context, _ NoParams) (any, error) {
	return VersionInfo{AppName: "onebot-bridge", AppVersion: hc.Version, ProtocolVersion: "v11"}, nil
})

type FriendInfo struct {
	UserID   int64  `json:"user_id"`
	Nickname string `json:"nickname"`
	Remark   string `json:"remark"`
}

var GetFriendList = NewTyped("get_friend_list", func(ctx context.Context, hc *Context, _ NoParams) (any, error) {
	friends, err := hc.API.Friends(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]FriendInfo, 0, len(friends))
	for _, f := range friends {
		out = append(out, FriendInfo{UserID: f.Uin, Nickname: f.Nick, Remark: f.Remark})
	}
	return out, nil
})

type GroupInfo struct {
	GroupID        int64  `json:"group_id"`
	GroupName      string `json:"group_name"`
	MemberCount    int    `json:"member_count"`
	MaxMemberCount int    `json:"max_member_count"`
}

var GetGroupList = NewTyped("get_group_list", func(ctx context.Context, hc *Context, _ NoParams) (any, error) {
	groups, err := hc.API.Groups(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]GroupInfo, 0, len(groups))
	for _, g := range groups {
		out = append(out, GroupInfo{GroupID: g.GroupID, GroupName: g.Name, MemberCount: g.MemberCount, MaxMemberCount: g.MaxMember})
	}
	return out, nil
})

type GroupMemberParams struct {
	GroupID ID   `json:"group_id"`
	UserID  ID   `json:"user_id"`
	NoCache bool `json:"no_cache,omitempty"`
}

type GroupMemberInfo struct {
	GroupID  int64  `json:"group_id"`
	UserID   int64  `json:"user_id"`
	Nickname string `json:"nickname"`
	Card     string `json:"card"`
	Role     string `json:"role"`
}

var GetGroupMemberInfo = NewTyped("get_group_member_info", func(ctx context.Context, hc *Context, p GroupMemberParams) (any, error) {
	uid, err := hc.API.UIDByUin(ctx, p.UserID.Int64())
	if err != nil {
		return nil, err
	}
	member, err := hc.API.GroupMember(ctx, p.GroupID.Int64(), uid)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, fmt.Errorf("user %d in group %d: %w", p.UserID, p.GroupID, platform.ErrNotFound)
	}
	return GroupMemberInfo{
		GroupID:  p.GroupID.Int64(),
		UserID:   member.Uin,
		Nickname: member.Nick,
		Card:     member.Card,
		Role:     member.Role,
	}, nil
})

type StrangerParams struct {
	UserID  ID   `json:"user_id"`
	NoCache bool `json:"no_cache,omitempty"`
}

type StrangerInfo struct {
	UserID   int64  `json:"user_id"`
	Nickname string `json:"nickname"`
	Sex      string `json:"sex"`
	Age      int    `json:"age"`
}

var GetStrangerInfo = NewTyped("get_stranger_info", func(ctx context.Context, hc *Context, p StrangerParams) (any, error) {
	uid, err := hc.API.UIDByUin(ctx, p.UserID.Int64())
	if err != nil {
		return nil, err
	}
	u, err := hc.API.UserInfo(ctx, uid)
	if err != nil {
		return nil, err
	}
	sex := u.Sex
	if sex == "" {
		sex = "unknown"
	}
	return StrangerInfo{UserID: u.Uin, Nickname: u.Nick, Sex: sex, Age: u.Age}, nil
})

type PrivateMsgParams struct {
	UserID     ID          `json:"user_id"`
	Message    MessageBody `json:"message"`
	AutoEscape bool        `json:"auto_escape,omitempty"`
}

var SendPrivateMsg = NewTyped("send_private_msg", func(ctx context.Context, hc *Context, p PrivateMsgParams) (any, error) {
	peer, err := privatePeer(ctx, hc, p.UserID)
	if err != nil {
		return nil, err
	}
	return send(ctx, hc, peer, p.Message, p.AutoEscape)
})

type GroupMsgParams struct {
	GroupID    ID          `json:"group_id"`
	Message    MessageBody `json:"message"`
	AutoEscape bool        `json:"auto_escape,omitempty"`
}

var SendGroupMsg = NewTyped("send_group_msg", func(ctx context.Context, hc *Context, p GroupMsgParams) (any, error) {
	return send(ctx, hc, groupPeer(p.GroupID), p.Message, p.AutoEscape)
})

type MsgParams struct {
	MessageType string      `json:"message_type,omitempty" jsonschema:"enum=private,enum=group"`
	UserID      ID          `json:"user_id,omitempty"`
	GroupID     ID          `json:"group_id,omitempty"`
	Message     MessageBody `json:"message"`
	AutoEscape  bool        `json:"auto_escape,omitempty"`
}

var SendMsg = NewTyped("send_msg", func(ctx context.Context, hc *Context, p MsgParams) (any, error) {
	switch {
	case p.MessageType == onebot.MessageGroup, p.MessageType == "" && p.GroupID != 0:
		if p.GroupID == 0 {
			return nil, errors.New("group_id is required for group messages")
		}
		return send(ctx, hc, groupPeer(p.GroupID), p.Message, p.AutoEscape)
	case p.MessageType == onebot.MessagePrivate, p.MessageType == "" && p.UserID != 0:
		if p.UserID == 0 {
			return nil, errors.New("user_id is required for private messages")
		}
		peer, err := privatePeer(ctx, hc, p.UserID)
		if err != nil {
			return nil, err
		}
		return send(ctx, hc, peer, p.Message, p.AutoEscape)
	default:
		return nil, errors.New("either user_id or group_id is required")
	}
})

func privatePeer(ctx context.Context, hc *Context, userID ID) (platform.Peer, error) {
	uid, err := hc.API.UIDByUin(ctx, userID.Int64())
	if err != nil {
		return platform.Peer{}, err
	}
	return platform.Peer{Kind: platform.ChatFriend, UID: uid}, nil
}

func groupPeer(groupID ID) platform.Peer {
	return platform.Peer{Kind: platform.ChatGroup, UID: strconv.FormatInt(groupID.Int64(), 10)}
}

type DeleteMsgParams struct {
	MessageID ID `json:"message_id"`
}

var DeleteMsg = NewTyped("delete_msg", func(ctx context.Context, hc *Context, p DeleteMsgParams) (any, error) {
	id, err := p.MessageID.ShortID()
	if err != nil {
		return nil, err
	}
	key, ok := hc.Registry.Resolve(ctx, id)
	if !ok {
		return nil, fmt.Errorf("message %d: %w", p.MessageID, platform.ErrNotFound)
	}
	if err := hc.API.RecallMessage(ctx, key.Peer(), key.MsgID); err != nil {
		return nil, err
	}
	return nil, nil
})

type FriendAddRequestParams struct {
	Flag    string `json:"flag"`
	Approve *bool  `json:"approve,omitempty"`
	Remark  string `json:"remark,omitempty"`
}

var SetFriendAddRequest = NewTyped("set_friend_add_request", func(ctx context.Context, hc *Context, p FriendAddRequestParams) (any, error) {
	uid, reqTime, err := onebot.ParseFriendRequestFlag(p.Flag)
	if err != nil {
		return nil, err
	}
	approve := p.Approve == nil || *p.Approve
	if err := hc.API.HandleFriendRequest(ctx, uid, reqTime, approve); err != nil {
		return nil, err
	}
	return nil, nil
})

type GroupAIRecordParams struct {
	GroupID   ID     `json:"group_id"`
	Character string `json:"character"`
	Text      string `json:"text"`
}

var SendGroupAIRecord = NewTyped("send_group_ai_record", func(ctx context.Context, hc *Context, p GroupAIRecordParams) (any, error) {
	if err := hc.API.SendGroupAIVoice(ctx, p.GroupID.Int64(), p.Character, p.Text); err != nil {
		return nil, err
	}
	return MessageIDResult{MessageID: 0}, nil
})

// Package platform describes the chat platform session surface the bridge sits on:
// the raw records its listeners deliver, the API facade actions call into,
// and the listener contract the translation pipeline implements.
package platform

import (
	"errors"
	"strconv"
)

// ErrNotFound is returned by API lookups for unknown users, groups or members.
var ErrNotFound = errors.New("not found")

// ChatKind discriminates the conversation context of a message.
type ChatKind int

const (
	ChatFriend    ChatKind = 1
	ChatGroup     ChatKind = 2
	ChatTempGroup ChatKind = 100
)

func (k ChatKind) String() string {
	switch k {
	case ChatFriend:
		return "friend"
	case ChatGroup:
		return "group"
	case ChatTempGroup:
		return "temp"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Send status codes carried by RawMessage.SendStatus.
const (
	SendStatusFailed  = 0
	SendStatusSending = 1
	SendStatusSent    = 2
)

// Peer addresses a conversation. For groups UID is the group code.
type Peer struct {
	Kind ChatKind `json:"chat_type"`
	UID  string   `json:"peer_uid"`
}

// RawMessage is the platform-native message record.
type RawMessage struct {
	MsgID          string    `json:"msg_id"`
	MsgSeq         string    `json:"msg_seq"`
	ChatKind       ChatKind  `json:"chat_type"`
	PeerUID        string    `json:"peer_uid"`
	PeerUin        int64     `json:"peer_uin"`
	SenderUID      string    `json:"sender_uid"`
	SenderUin      int64     `json:"sender_uin"`
	SendNickName   string    `json:"send_nick_name,omitempty"`
	SendMemberName string    `json:"send_member_name,omitempty"`
	MsgTime        int64     `json:"msg_time"`
	SendStatus     int       `json:"send_status"`
	RecallTime     int64     `json:"recall_time"` // 0 = not recalled
	Elements       []Element `json:"elements"`
}

// Peer returns the conversation the message belongs to.
func (m *RawMessage) Peer() Peer {
	return Peer{Kind: m.ChatKind, UID: m.PeerUID}
}

// Recalled reports whether the platform marked the message as retracted.
func (m *RawMessage) Recalled() bool {
	return m.RecallTime != 0
}

// ElementType tags the populated field of an Element.
type ElementType int

const (
	ElementText    ElementType = 1
	ElementPic     ElementType = 2
	ElementFile    ElementType = 3
	ElementPtt     ElementType = 4
	ElementVideo   ElementType = 5
	ElementFace    ElementType = 6
	ElementReply   ElementType = 7
	ElementGrayTip ElementType = 8
	ElementArk     ElementType = 10
)

// Element is one content part of a RawMessage. Exactly one pointer matches Type.
type Element struct {
	Type    ElementType     `json:"type"`
	Text    *TextElement    `json:"text,omitempty"`
	Pic     *PicElement     `json:"pic,omitempty"`
	File    *FileElement    `json:"file,omitempty"`
	Ptt     *PttElement     `json:"ptt,omitempty"`
	Video   *VideoElement   `json:"video,omitempty"`
	Face    *FaceElement    `json:"face,omitempty"`
	Reply   *ReplyElement   `json:"reply,omitempty"`
	GrayTip *GrayTipElement `json:"gray_tip,omitempty"`
	Ark     *ArkElement     `json:"ark,omitempty"`
}

// AtType marks a text element as a mention.
type AtType int

const (
	AtNone AtType = 0
	AtAll  AtType = 1
	AtUser AtType = 2
)

type TextElement struct {
	Content string `json:"content"`
	AtType  AtType `json:"at_type,omitempty"`
	AtUID   string `json:"at_uid,omitempty"`
	AtUin   int64  `json:"at_uin,omitempty"`
}

type PicElement struct {
	FileName string `json:"file_name"`
	URL      string `json:"url,omitempty"`
	Summary  string `json:"summary,omitempty"`
	FileSize int64  `json:"file_size,omitempty"`
}

type FileElement struct {
	FileName string `json:"file_name"`
	FileUUID string `json:"file_uuid"`
	FileSize int64  `json:"file_size"`
	BusID    int    `json:"bus_id,omitempty"`
}

type PttElement struct {
	FileName string `json:"file_name"`
	FilePath string `json:"file_path,omitempty"`
	Duration int    `json:"duration,omitempty"`
}

type VideoElement struct {
	FileName string `json:"file_name"`
	FilePath string `json:"file_path,omitempty"`
	FileSize int64  `json:"file_size,omitempty"`
}

type FaceElement struct {
	FaceIndex int `json:"face_index"`
}

type ReplyElement struct {
	SourceMsgID string `json:"source_msg_id"`
	SenderUin   int64  `json:"sender_uin,omitempty"`
}

// GrayTipElement is a system tip marker describing a platform action rather than user content.
type GrayTipElement struct {
	Revoke *RevokeTip `json:"revoke,omitempty"`
	Poke   *PokeTip   `json:"poke,omitempty"`
}

// RevokeTip names who performed a recall.
type RevokeTip struct {
	OperatorUID string `json:"operator_uid"`
}

// PokeTip describes a "poke" nudge between two users.
type PokeTip struct {
	OperatorUID string `json:"operator_uid"`
	TargetUID   string `json:"target_uid"`
}

type ArkElement struct {
	Data string `json:"data"`
}

// BuddyReqType distinguishes friend request flows.
type BuddyReqType int

const (
	BuddyReqPeerInitiator              BuddyReqType = 0
	BuddyReqMeInitiator                BuddyReqType = 1
	BuddyReqMeInitiatorWaitPeerConfirm BuddyReqType = 13
)

// BuddyRequest is one entry of a buddy-request-change push.
type BuddyRequest struct {
	FriendUID   string       `json:"friend_uid"`
	ReqTime     int64        `json:"req_time"`
	ExtWords    string       `json:"ext_words"`
	IsInitiator bool         `json:"is_initiator"`
	IsDecide    bool         `json:"is_decide"`
	ReqType     BuddyReqType `json:"req_type"`
}

// InputStatus is an input-status ("typing") push.
type InputStatus struct {
	FromUID    string `json:"from_uid"`
	EventType  int    `json:"event_type"`
	StatusText string `json:"status_text"`
}

// SelfInfo identifies the logged-in account.
type SelfInfo struct {
	UID  string `json:"uid"  yaml:"uid"`
	Uin  int64  `json:"uin"  yaml:"uin"`
	Nick string `json:"nick" yaml:"nick"`
}

// Member roles.
const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// User is a platform account profile.
type User struct {
	UID    string `json:"uid"    yaml:"uid"`
	Uin    int64  `json:"uin"    yaml:"uin"`
	Nick   string `json:"nick"   yaml:"nick"`
	Remark string `json:"remark" yaml:"remark"`
	Sex    string `json:"sex"    yaml:"sex"`
	Age    int    `json:"age"    yaml:"age"`
}

// GroupMember is a user's membership record in a group.
type GroupMember struct {
	GroupID int64  `json:"group_id" yaml:"-"`
	UID     string `json:"uid"      yaml:"uid"`
	Uin     int64  `json:"uin"      yaml:"uin"`
	Nick    string `json:"nick"     yaml:"nick"`
	Card    string `json:"card"     yaml:"card"`
	Role    string `json:"role"     yaml:"role"`
}

// Group is a group profile.
type Group struct {
	GroupID     int64  `json:"group_id"     yaml:"group_id"`
	Name        string `json:"name"         yaml:"name"`
	MemberCount int    `json:"member_count" yaml:"-"`
	MaxMember   int    `json:"max_member"   yaml:"max_member"`
}

// TextOf is shorthand for a plain text element.
func TextOf(s string) Element {
	return Element{Type: ElementText, Text: &TextElement{Content: s}}
}

// AtOf is shorthand for a user mention element.
func AtOf(uid string, uin int64) Element {
	return Element{Type: ElementText, Text: &TextElement{AtType: AtUser, AtUID: uid, AtUin: uin}}
}

// RevokeTipOf builds the gray tip the platform attaches to recalled group messages.
func RevokeTipOf(operatorUID string) Element {
	return Element{Type: ElementGrayTip, GrayTip: &GrayTipElement{Revoke: &RevokeTip{OperatorUID: operatorUID}}}
}

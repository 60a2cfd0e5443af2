package onebot

// Notice types.
const (
	NoticeFriendRecall = "friend_recall"
	NoticeGroupRecall  = "group_recall"
	NoticeInputStatus  = "input_status"
	NoticeNotify       = "notify"
	NoticeGroupUpload  = "group_upload"
)

// NoticeBase is embedded by every notice event.
type NoticeBase struct {
	Base
	NoticeType string `json:"notice_type"`
}

func newNotice(selfID int64, noticeType string) NoticeBase {
	return NoticeBase{Base: newBase(selfID, PostNotice), NoticeType: noticeType}
}

// FriendRecallNotice reports a private message recalled by its sender.
type FriendRecallNotice struct {
	NoticeBase
	UserID    int64 `json:"user_id"`
	MessageID int32 `json:"message_id"`
}

func NewFriendRecallNotice(selfID, userID int64, messageID int32) *FriendRecallNotice {
	return &FriendRecallNotice{
		NoticeBase: newNotice(selfID, NoticeFriendRecall),
		UserID:     userID,
		MessageID:  messageID,
	}
}

// GroupRecallNotice reports a group message recalled by its sender or an operator.
type GroupRecallNotice struct {
	NoticeBase
	GroupID    int64 `json:"group_id"`
	UserID     int64 `json:"user_id"`
	OperatorID int64 `json:"operator_id"`
	MessageID  int32 `json:"message_id"`
}

func NewGroupRecallNotice(selfID, groupID, userID, operatorID int64, messageID int32) *GroupRecallNotice {
	return &GroupRecallNotice{
		NoticeBase: newNotice(selfID, NoticeGroupRecall),
		GroupID:    groupID,
		UserID:     userID,
		OperatorID: operatorID,
		MessageID:  messageID,
	}
}

// InputStatusNotice reports a peer's typing indicator.
type InputStatusNotice struct {
	NoticeBase
	UserID     int64  `json:"user_id"`
	EventType  int    `json:"event_type"`
	StatusText string `json:"status_text"`
}

func NewInputStatusNotice(selfID, userID int64, eventType int, statusText string) *InputStatusNotice {
	return &InputStatusNotice{
		NoticeBase: newNotice(selfID, NoticeInputStatus),
		UserID:     userID,
		EventType:  eventType,
		StatusText: statusText,
	}
}

// PokeNotice reports a poke nudge; GroupID is zero for private pokes.
type PokeNotice struct {
	NoticeBase
	SubType  string `json:"sub_type"`
	GroupID  int64  `json:"group_id,omitempty"`
	UserID   int64  `json:"user_id"`
	TargetID int64  `json:"target_id"`
}

func NewPokeNotice(selfID, groupID, userID, targetID int64) *PokeNotice {
	return &PokeNotice{
		NoticeBase: newNotice(selfID, NoticeNotify),
		SubType:    "poke",
		GroupID:    groupID,
		UserID:     userID,
		TargetID:   targetID,
	}
}

// UploadedFile describes a file shared into a group.
type UploadedFile struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Size  int64  `json:"size"`
	BusID int    `json:"busid"`
}

// GroupUploadNotice reports a file uploaded to a group.
type GroupUploadNotice struct {
	NoticeBase
	GroupID int64        `json:"group_id"`
	UserID  int64        `json:"user_id"`
	File    UploadedFile `json:"file"`
}

func NewGroupUploadNotice(selfID, groupID, userID int64, file UploadedFile) *GroupUploadNotice {
	return &GroupUploadNotice{
		NoticeBase: newNotice(selfID, NoticeGroupUpload),
		GroupID:    groupID,
		UserID:     userID,
		File:       file,
	}
}

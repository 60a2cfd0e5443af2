package onebot

import (
	"errors"
	"strconv"
	"strings"
)

// FriendRequest reports an incoming friend request. Flag identifies the request
// when answering it with set_friend_add_request.
type FriendRequest struct {
	Base
	RequestType string `json:"request_type"`
	UserID      int64  `json:"user_id"`
	Comment     string `json:"comment"`
	Flag        string `json:"flag"`
}

func NewFriendRequest(selfID, userID int64, flag, comment string) *FriendRequest {
	return &FriendRequest{
		Base:        newBase(selfID, PostRequest),
		RequestType: "friend",
		UserID:      userID,
		Comment:     comment,
		Flag:        flag,
	}
}

// FriendRequestFlag builds the "<uid>|<reqTime>" flag of a friend request.
func FriendRequestFlag(uid string, reqTime int64) string {
	return uid + "|" + strconv.FormatInt(reqTime, 10)
}

// ParseFriendRequestFlag splits a flag built by FriendRequestFlag.
func ParseFriendRequestFlag(flag string) (uid string, reqTime int64, err error) {
	i := strings.LastIndexByte(flag, '|')
	if i <= 0 {
		return "", 0, errors.New("malformed friend request flag")
	}
	reqTime, err = strconv.ParseInt(flag[i+1:], 10, 64)
	if err != nil {
		return "", 0, errors.New("malformed friend request flag")
	}
	return flag[:i], reqTime, nil
}

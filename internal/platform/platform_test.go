package platform

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingListener struct {
	mu      sync.Mutex
	recv    [][]RawMessage
	updates [][]RawMessage
	reqs    [][]BuddyRequest
	inputs  []InputStatus
}

func (r *recordingListener) OnRecvMsg(_ context.Context, msgs []RawMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recv = append(r.recv, msgs)
}

func (r *recordingListener) OnMsgInfoListUpdate(_ context.Context, msgs []RawMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, msgs)
}

func (r *recordingListener) OnBuddyReqChange(_ context.Context, reqs []BuddyRequest) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reqs = append(r.reqs, reqs)
}

func (r *recordingListener) OnInputStatusPush(_ context.Context, status InputStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inputs = append(r.inputs, status)
}

func testFixture() Fixture {
	return Fixture{
		Self:    SelfInfo{UID: "u_self", Uin: 10000, Nick: "bot"},
		Friends: []User{{UID: "u_alice", Uin: 5, Nick: "alice"}},
		Groups: []FixtureGroup{{
			Group: Group{GroupID: 100, Name: "dev"},
			Members: []GroupMember{
				{UID: "u_alice", Uin: 5, Nick: "alice", Role: RoleAdmin},
				{UID: "u_bob", Uin: 6, Nick: "bob"},
			},
		}},
	}
}

func TestChatKind_String(t *testing.T) {
	assert.Equal(t, "friend", ChatFriend.String())
	assert.Equal(t, "group", ChatGroup.String())
	assert.Equal(t, "kind(7)", ChatKind(7).String())
}

func TestMemoryAPI_Lookups(t *testing.T) {
	api := NewMemoryAPI(testFixture())
	ctx := context.Background()

	uin, err := api.UinByUID(ctx, "u_bob")
	require.NoError(t, err)
	assert.Equal(t, int64(6), uin)

	uid, err := api.UIDByUin(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, "u_alice", uid)

	_, err = api.UinByUID(ctx, "u_ghost")
	assert.True(t, errors.Is(err, ErrNotFound))

	member, err := api.GroupMember(ctx, 100, "u_bob")
	require.NoError(t, err)
	require.NotNil(t, member)
	assert.Equal(t, RoleMember, member.Role)
	assert.Equal(t, int64(100), member.GroupID)

	member, err = api.GroupMember(ctx, 100, "u_self")
	require.NoError(t, err)
	assert.Nil(t, member)

	friends, err := api.Friends(ctx)
	require.NoError(t, err)
	assert.Len(t, friends, 2)

	groups, err := api.Groups(ctx)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, 2, groups[0].MemberCount)
}

func TestMemoryAPI_SendAndRecallEcho(t *testing.T) {
	api := NewMemoryAPI(testFixture())
	l := &recordingListener{}
	api.Attach(l)
	ctx := context.Background()

	msg, err := api.SendMessage(ctx, Peer{Kind: ChatGroup, UID: "100"}, []Element{TextOf("hi")})
	require.NoError(t, err)
	assert.Equal(t, int64(10000), msg.SenderUin)
	assert.Equal(t, int64(100), msg.PeerUin)
	assert.Equal(t, SendStatusSent, msg.SendStatus)
	require.Len(t, l.updates, 1)
	assert.Equal(t, msg.MsgID, l.updates[0][0].MsgID)

	require.NoError(t, api.RecallMessage(ctx, msg.Peer(), msg.MsgID))
	require.Len(t, l.updates, 2)
	recalled := l.updates[1][0]
	assert.True(t, recalled.Recalled())
	last := recalled.Elements[len(recalled.Elements)-1]
	require.NotNil(t, last.GrayTip)
	assert.Equal(t, "u_self", last.GrayTip.Revoke.OperatorUID)

	err = api.RecallMessage(ctx, msg.Peer(), "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestMemoryAPI_SendUnknownPeer(t *testing.T) {
	api := NewMemoryAPI(testFixture())
	_, err := api.SendMessage(context.Background(), Peer{Kind: ChatGroup, UID: "999"}, []Element{TextOf("x")})
	assert.Error(t, err)
	_, err = api.SendMessage(context.Background(), Peer{Kind: ChatFriend, UID: "u_alice"}, nil)
	assert.Error(t, err)
}

func TestLoadFixture(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixture.yaml")
	content := `
self: {uid: u_self, uin: 10000, nick: bot}
friends:
  - {uid: u_alice, uin: 5, nick: alice}
groups:
  - group_id: 100
    name: dev
    members:
      - {uid: u_alice, uin: 5, role: owner}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	f, err := LoadFixture(path)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), f.Self.Uin)
	require.Len(t, f.Groups, 1)
	assert.Equal(t, int64(100), f.Groups[0].GroupID)
	assert.Equal(t, "dev", f.Groups[0].Name)
	assert.Equal(t, RoleOwner, f.Groups[0].Members[0].Role)
}

func TestRunFeed(t *testing.T) {
	feed := strings.Join([]string{
		`{"kind":"recv_msg","messages":[{"msg_id":"m1","chat_type":2,"peer_uid":"100","msg_time":5}]}`,
		`not json`,
		`{"kind":"msg_info_update","messages":[{"msg_id":"m1","recall_time":9}]}`,
		``,
		`{"kind":"buddy_req","requests":[{"friend_uid":"u_x","req_time":77,"ext_words":"hi"}]}`,
		`{"kind":"input_status","input_status":{"from_uid":"u_alice","event_type":1,"status_text":"typing"}}`,
		`{"kind":"input_status"}`,
		`{"kind":"mystery"}`,
	}, "\n")
	l := &recordingListener{}

	err := RunFeed(context.Background(), strings.NewReader(feed), l, zerolog.Nop())
	require.NoError(t, err)

	require.Len(t, l.recv, 1)
	assert.Equal(t, "m1", l.recv[0][0].MsgID)
	assert.Equal(t, ChatGroup, l.recv[0][0].ChatKind)
	require.Len(t, l.updates, 1)
	assert.Equal(t, int64(9), l.updates[0][0].RecallTime)
	require.Len(t, l.reqs, 1)
	assert.Equal(t, "hi", l.reqs[0][0].ExtWords)
	require.Len(t, l.inputs, 1)
	assert.Equal(t, "typing", l.inputs[0].StatusText)
}

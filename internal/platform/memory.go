package platform

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Fixture is the YAML directory a MemoryAPI serves.
type Fixture struct {
	Self    SelfInfo       `yaml:"self"`
	Friends []User         `yaml:"friends"`
	Groups  []FixtureGroup `yaml:"groups"`
}

// FixtureGroup is a group with its member list.
type FixtureGroup struct {
	Group   `yaml:",inline"`
	Members []GroupMember `yaml:"members"`
}

// LoadFixture reads a Fixture from a YAML file.
func LoadFixture(path string) (Fixture, error) {
	var f Fixture
	data, err := os.ReadFile(path)
	if err != nil {
		return f, err
	}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return f, fmt.Errorf("parsing fixture %s: %w", path, err)
	}
	return f, nil
}

// FriendRequestDecision records a HandleFriendRequest call.
type FriendRequestDecision struct {
	UID     string
	ReqTime int64
	Approve bool
}

// MemoryAPI is an in-process platform facade backed by a Fixture. Sent and recalled
// messages are echoed back to the attached Listener as status updates, the way the
// real platform reports them.
type MemoryAPI struct {
	mu        sync.RWMutex
	self      SelfInfo
	users     map[string]User
	uins      map[int64]string
	groups    map[int64]*FixtureGroup
	sent      map[string]RawMessage
	decisions []FriendRequestDecision
	voices    []string
	listener  Listener
	now       func() time.Time
}

// NewMemoryAPI indexes f for lookups.
func NewMemoryAPI(f Fixture) *MemoryAPI {
	m := &MemoryAPI{
		self:   f.Self,
		users:  make(map[string]User),
		uins:   make(map[int64]string),
		groups: make(map[int64]*FixtureGroup),
		sent:   make(map[string]RawMessage),
		now:    time.Now,
	}
	m.addUser(User{UID: f.Self.UID, Uin: f.Self.Uin, Nick: f.Self.Nick})
	for _, u := range f.Friends {
		m.addUser(u)
	}
	for i := range f.Groups {
		g := f.Groups[i]
		g.MemberCount = len(g.Members)
		for j := range g.Members {
			g.Members[j].GroupID = g.GroupID
			if g.Members[j].Role == "" {
				g.Members[j].Role = RoleMember
			}
			if _, ok := m.users[g.Members[j].UID]; !ok {
				m.addUser(User{UID: g.Members[j].UID, Uin: g.Members[j].Uin, Nick: g.Members[j].Nick})
			}
		}
		m.groups[g.GroupID] = &g
	}
	return m
}

func (m *MemoryAPI) addUser(u User) {
	if u.UID == "" {
		return
	}
	m.users[u.UID] = u
	m.uins[u.Uin] = u.UID
}

// Self returns the fixture's logged-in account.
func (m *MemoryAPI) Self() SelfInfo { return m.self }

// Attach sets the listener that receives send/recall echoes.
func (m *MemoryAPI) Attach(l Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listener = l
}

func (m *MemoryAPI) UinByUID(_ context.Context, uid string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[uid]
	if !ok {
		return 0, fmt.Errorf("uid %q: %w", uid, ErrNotFound)
	}
	return u.Uin, nil
}

func (m *MemoryAPI) UIDByUin(_ context.Context, uin int64) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	uid, ok := m.uins[uin]
	if !ok {
		return "", fmt.Errorf("uin %d: %w", uin, ErrNotFound)
	}
	return uid, nil
}

func (m *MemoryAPI) GroupMember(_ context.Context, groupID int64, uid string) (*GroupMember, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.groups[groupID]
	if !ok {
		return nil, fmt.Errorf("group %d: %w", groupID, ErrNotFound)
	}
	for _, member := range g.Members {
		if member.UID == uid {
			found := member
			return &found, nil
		}
	}
	return nil, nil
}

func (m *MemoryAPI) UserInfo(_ context.Context, uid string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[uid]
	if !ok {
		return nil, fmt.Errorf("uid %q: %w", uid, ErrNotFound)
	}
	return &u, nil
}

func (m *MemoryAPI) Friends(_ context.Context) ([]User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]User, 0, len(m.users))
	for _, u := range m.users {
		if u.UID != m.self.UID {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Uin < out[j].Uin })
	return out, nil
}

func (m *MemoryAPI) Groups(_ context.Context) ([]Group, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Group, 0, len(m.groups))
	for _, g := range m.groups {
		out = append(out, g.Group)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GroupID < out[j].GroupID })
	return out, nil
}

func (m *MemoryAPI) GroupMembers(_ context.Context, groupID int64) ([]GroupMember, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.groups[groupID]
	if !ok {
		return nil, fmt.Errorf("group %d: %w", groupID, ErrNotFound)
	}
	return append([]GroupMember(nil), g.Members...), nil
}

func (m *MemoryAPI) SendMessage(ctx context.Context, peer Peer, elements []Element) (*RawMessage, error) {
	if len(elements) == 0 {
		return nil, fmt.Errorf("empty message")
	}
	m.mu.Lock()
	var peerUin int64
	switch peer.Kind {
	case ChatGroup:
		var gid int64
		if _, err := fmt.Sscanf(peer.UID, "%d", &gid); err != nil || m.groups[gid] == nil {
			m.mu.Unlock()
			return nil, fmt.Errorf("group %q: %w", peer.UID, ErrNotFound)
		}
		peerUin = gid
	default:
		u, ok := m.users[peer.UID]
		if !ok {
			m.mu.Unlock()
			return nil, fmt.Errorf("uid %q: %w", peer.UID, ErrNotFound)
		}
		peerUin = u.Uin
	}
	msg := RawMessage{
		MsgID:        uuid.NewString(),
		MsgSeq:       fmt.Sprint(len(m.sent) + 1),
		ChatKind:     peer.Kind,
		PeerUID:      peer.UID,
		PeerUin:      peerUin,
		SenderUID:    m.self.UID,
		SenderUin:    m.self.Uin,
		SendNickName: m.self.Nick,
		MsgTime:      m.now().Unix(),
		SendStatus:   SendStatusSent,
		Elements:     elements,
	}
	m.sent[msg.MsgID] = msg
	l := m.listener
	m.mu.Unlock()

	if l != nil {
		l.OnMsgInfoListUpdate(ctx, []RawMessage{msg})
	}
	return &msg, nil
}

func (m *MemoryAPI) RecallMessage(ctx context.Context, peer Peer, msgID string) error {
	m.mu.Lock()
	msg, ok := m.sent[msgID]
	if !ok || msg.Peer() != peer {
		m.mu.Unlock()
		return fmt.Errorf("message %q: %w", msgID, ErrNotFound)
	}
	msg.RecallTime = m.now().Unix()
	msg.SendStatus = SendStatusSent
	if peer.Kind == ChatGroup {
		msg.Elements = append(msg.Elements, RevokeTipOf(m.self.UID))
	}
	m.sent[msgID] = msg
	l := m.listener
	m.mu.Unlock()

	if l != nil {
		l.OnMsgInfoListUpdate(ctx, []RawMessage{msg})
	}
	return nil
}

func (m *MemoryAPI) HandleFriendRequest(_ context.Context, uid string, reqTime int64, approve bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decisions = append(m.decisions, FriendRequestDecision{UID: uid, ReqTime: reqTime, Approve: approve})
	return nil
}

func (m *MemoryAPI) SendGroupAIVoice(_ context.Context, groupID int64, character, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.groups[groupID]; !ok {
		return fmt.Errorf("group %d: %w", groupID, ErrNotFound)
	}
	m.voices = append(m.voices, fmt.Sprintf("%d:%s:%s", groupID, character, text))
	return nil
}

// Sent returns the messages sent through this facade, keyed by message id.
func (m *MemoryAPI) Sent() map[string]RawMessage {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]RawMessage, len(m.sent))
	for k, v := range m.sent {
		out[k] = v
	}
	return out
}

// Decisions returns the recorded friend request decisions.
func (m *MemoryAPI) Decisions() []FriendRequestDecision {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]FriendRequestDecision(nil), m.decisions...)
}

// Voices returns the recorded AI voice sends as "group:character:text".
func (m *MemoryAPI) Voices() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.voices...)
}

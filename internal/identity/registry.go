// Package identity maps platform messages to the short integer message ids
// exposed over OneBot, and back.
//
// Short ids are derived from a CRC32 of the message key so the same message gets
// the same id in every process; a collision with a different resident key probes
// forward. Assignment is idempotent for every resident key.
package identity

import (
	"container/list"
	"context"
	"hash/crc32"
	"strconv"
	"sync"

	"github.com/dayuer/onebot-bridge/internal/platform"
)

// Key is the composite identity of a platform message.
type Key struct {
	ChatKind platform.ChatKind `json:"chat_type"`
	PeerUID  string            `json:"peer_uid"`
	MsgID    string            `json:"msg_id"`
}

// KeyOf returns the identity key of m.
func KeyOf(m *platform.RawMessage) Key {
	return Key{ChatKind: m.ChatKind, PeerUID: m.PeerUID, MsgID: m.MsgID}
}

func (k Key) String() string {
	return k.MsgID + "|" + strconv.Itoa(int(k.ChatKind)) + "|" + k.PeerUID
}

// Peer returns the conversation the keyed message belongs to.
func (k Key) Peer() platform.Peer {
	return platform.Peer{Kind: k.ChatKind, UID: k.PeerUID}
}

// Registry assigns and resolves short message ids. Implementations are safe for
// concurrent use.
type Registry interface {
	// Assign returns the short id for key, creating it if absent.
	Assign(ctx context.Context, key Key) (int32, error)
	// Lookup returns the short id for key without creating one.
	Lookup(ctx context.Context, key Key) (int32, bool)
	// Resolve returns the key a short id was assigned to.
	Resolve(ctx context.Context, id int32) (Key, bool)
	// Len reports the number of locally resident entries.
	Len() int
}

// DefaultCapacity bounds a MemoryRegistry when no capacity is configured.
const DefaultCapacity = 5000

func hashID(k Key) int32 {
	id := int32(crc32.ChecksumIEEE([]byte(k.String())) & 0x7fffffff)
	if id == 0 {
		return 1
	}
	return id
}

func nextID(id int32) int32 {
	if id >= 0x7fffffff {
		return 1
	}
	return id + 1
}

type entry struct {
	key Key
	id  int32
}

// MemoryRegistry is an LRU-bounded in-process Registry. Assign, Lookup and
// Resolve all refresh an entry's recency; the least recently used entry is
// evicted once capacity is exceeded.
type MemoryRegistry struct {
	mu       sync.Mutex
	capacity int
	ll       *list.List
	byKey    map[Key]*list.Element
	byID     map[int32]*list.Element
}

// NewMemoryRegistry creates a registry holding at most capacity entries.
func NewMemoryRegistry(capacity int) *MemoryRegistry {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &MemoryRegistry{
		capacity: capacity,
		ll:       list.New(),
		byKey:    make(map[Key]*list.Element),
		byID:     make(map[int32]*list.Element),
	}
}

func (r *MemoryRegistry) Assign(_ context.Context, key Key) (int32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if el, ok := r.byKey[key]; ok {
		r.ll.MoveToFront(el)
		return el.Value.(*entry).id, nil
	}
	id := hashID(key)
	for {
		if _, taken := r.byID[id]; !taken {
			break
		}
		id = nextID(id)
	}
	r.insert(key, id)
	return id, nil
}

func (r *MemoryRegistry) Lookup(_ context.Context, key Key) (int32, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	el, ok := r.byKey[key]
	if !ok {
		return 0, false
	}
	r.ll.MoveToFront(el)
	return el.Value.(*entry).id, true
}

func (r *MemoryRegistry) Resolve(_ context.Context, id int32) (Key, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	el, ok := r.byID[id]
	if !ok {
		return Key{}, false
	}
	r.ll.MoveToFront(el)
	return el.Value.(*entry).key, true
}

func (r *MemoryRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ll.Len()
}

// put records an externally decided mapping, displacing any local entry that
// holds either the key or the id.
func (r *MemoryRegistry) put(key Key, id int32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if el, ok := r.byKey[key]; ok {
		if el.Value.(*entry).id == id {
			r.ll.MoveToFront(el)
			return
		}
		r.remove(el)
	}
	if el, ok := r.byID[id]; ok {
		r.remove(el)
	}
	r.insert(key, id)
}

func (r *MemoryRegistry) insert(key Key, id int32) {
	el := r.ll.PushFront(&entry{key: key, id: id})
	r.byKey[key] = el
	r.byID[id] = el
	for r.ll.Len() > r.capacity {
		r.remove(r.ll.Back())
	}
}

func (r *MemoryRegistry) remove(el *list.Element) {
	e := el.Value.(*entry)
	delete(r.byKey, e.key)
	delete(r.byID, e.id)
	r.ll.Remove(el)
}

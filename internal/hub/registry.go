package hub

import (
	"crypto/sha1"
	"encoding/binary"
	"sync"
)

const (
	shardCount = 64 // tune: 16/64/128 depending on load
)

// PresenceRegistry maps a user to their single live connection. Only the hub's
// connect and disconnect paths write to it.
type PresenceRegistry interface {
	// Register stores c as userID's connection and returns the handle it
	// replaced, if any.
	Register(userID string, c *Client) (previous *Client)
	// Unregister removes userID only while c is still the registered handle.
	Unregister(userID string, c *Client) bool
	Lookup(userID string) (*Client, bool)
	Snapshot() []*Client
	Len() int
}

type clientBucket struct {
	sync.RWMutex
	users map[string]*Client
}

type shardedRegistry struct {
	shards [shardCount]*clientBucket
}

func NewPresenceRegistry() PresenceRegistry {
	r := &shardedRegistry{}
	for i := 0; i < shardCount; i++ {
		r.shards[i] = &clientBucket{
			users: make(map[string]*Client),
		}
	}
	return r
}

func (r *shardedRegistry) Register(userID string, c *Client) *Client {
	b := r.shards[getShard(userID)]
	b.Lock()
	defer b.Unlock()

	previous := b.users[userID]
	b.users[userID] = c
	if previous == c {
		return nil
	}
	return previous
}

func (r *shardedRegistry) Unregister(userID string, c *Client) bool {
	b := r.shards[getShard(userID)]
	b.Lock()
	defer b.Unlock()

	if current, ok := b.users[userID]; ok && current == c {
		delete(b.users, userID)
		return true
	}
	return false
}

func (r *shardedRegistry) Lookup(userID string) (*Client, bool) {
	b := r.shards[getShard(userID)]
	b.RLock()
	defer b.RUnlock()

	c, ok := b.users[userID]
	return c, ok
}

func (r *shardedRegistry) Snapshot() []*Client {
	clients := make([]*Client, 0)
	for _, b := range r.shards {
		b.RLock()
		for _, c := range b.users {
			clients = append(clients, c)
		}
		b.RUnlock()
	}
	return clients
}

func (r *shardedRegistry) Len() int {
	n := 0
	for _, b := range r.shards {
		b.RLock()
		n += len(b.users)
		b.RUnlock()
	}
	return n
}

func getShard(key string) uint32 {
	return hashKey(key, shardCount)
}

func hashKey(key string, n uint32) uint32 {
	if key == "" || n == 0 {
		return 0
	}

	h := sha1.Sum([]byte(key))
	return binary.BigEndian.Uint32(h[:4]) % n
}

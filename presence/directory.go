// Package presence owns user identity records: display names, colors, and
// crosshair positions. Records are addressed by a bearer user key returned
// only to the connection that registered them; every per-user mutation must
// present both the key and the matching permanent user id.
package presence

import (
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/google/uuid"
)

// DefaultCrosshair is the crosshair position a new user starts with.
var DefaultCrosshair = [3]float64{0.5, 0.5, 0.5}

// palette gives the first three users in an otherwise-empty directory
// visually distinct colors without any coordination protocol.
var palette = [][4]float64{
	{1, 0, 0, 1},
	{0, 1, 0, 1},
	{0, 0, 1, 1},
}

// User is a presence record as it appears on the wire. The bearer user key
// is deliberately not part of the record.
type User struct {
	ID            string     `json:"id"`
	DisplayName   string     `json:"displayName"`
	Color         [4]float64 `json:"color"`
	CrosshairsPos [3]float64 `json:"crosshairsPos"`
}

// Directory is the process-wide user registry. Every register call mints a
// fresh record; reconnecting humans are not deduplicated.
type Directory struct {
	mu      sync.RWMutex
	byKey   map[string]*User
	keyByID map[string]string
}

// NewDirectory creates an empty presence directory.
func NewDirectory() *Directory {
	return &Directory{
		byKey:   make(map[string]*User),
		keyByID: make(map[string]string),
	}
}

// Register allocates a new user record and returns it together with its
// bearer key. An empty requestedName yields a generated placeholder; a nil
// requestedColor falls back to the palette policy: the directory's current
// population picks red, green, or blue for the first three users and a
// uniform random RGB with alpha 1 afterwards.
func (d *Directory) Register(requestedName string, requestedColor *[4]float64) (User, string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	id := uuid.NewString()
	key := uuid.NewString()

	name := requestedName
	if name == "" {
		name = fmt.Sprintf("user-%s", id)
	}

	var color [4]float64
	switch {
	case requestedColor != nil:
		color = *requestedColor
	case len(d.byKey) < len(palette):
		color = palette[len(d.byKey)]
	default:
		color = [4]float64{rand.Float64(), rand.Float64(), rand.Float64(), 1}
	}

	user := &User{
		ID:            id,
		DisplayName:   name,
		Color:         color,
		CrosshairsPos: DefaultCrosshair,
	}
	d.byKey[key] = user
	d.keyByID[id] = key

	return *user, key
}

// UpdateIdentity changes the display name and/or color of the record
// addressed by userKey, but only when claimedID matches that record.
// Nil arguments leave the corresponding attribute untouched.
func (d *Directory) UpdateIdentity(userKey, claimedID, displayName string, color *[4]float64) (User, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	user, ok := d.byKey[userKey]
	if !ok || user.ID != claimedID {
		return User{}, false
	}
	if displayName != "" {
		user.DisplayName = displayName
	}
	if color != nil {
		user.Color = *color
	}
	return *user, true
}

// UpdateCrosshair moves the crosshair of the record addressed by userKey,
// gated by the same key/id identity check. On success the updated record is
// returned for the relay to broadcast.
func (d *Directory) UpdateCrosshair(userKey, claimedID string, pos [3]float64) (User, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	user, ok := d.byKey[userKey]
	if !ok || user.ID != claimedID {
		return User{}, false
	}
	user.CrosshairsPos = pos
	return *user, true
}

// Get returns the record addressed by userKey.
func (d *Directory) Get(userKey string) (User, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	user, ok := d.byKey[userKey]
	if !ok {
		return User{}, false
	}
	return *user, true
}

// GetByID returns the record with the given permanent user id.
func (d *Directory) GetByID(id string) (User, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	key, ok := d.keyByID[id]
	if !ok {
		return User{}, false
	}
	return *d.byKey[key], true
}

// ListByID returns the records for the given user ids, preserving order.
// Unknown ids are skipped.
func (d *Directory) ListByID(ids []string) []User {
	d.mu.RLock()
	defer d.mu.RUnlock()

	users := make([]User, 0, len(ids))
	for _, id := range ids {
		if key, ok := d.keyByID[id]; ok {
			users = append(users, *d.byKey[key])
		}
	}
	return users
}

// Remove deletes the record addressed by userKey. Called from the
// disconnect teardown hook so the directory does not grow without bound.
func (d *Directory) Remove(userKey string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if user, ok := d.byKey[userKey]; ok {
		delete(d.keyByID, user.ID)
		delete(d.byKey, userKey)
	}
}

// Count returns the directory's current population.
func (d *Directory) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.byKey)
}

package session

import (
	"errors"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrSessionNotFound = errors.New("session not found")

// SceneState holds the shared camera/viewer parameters for a session.
type SceneState struct {
	Azimuth   float64    `json:"azimuth"`
	Elevation float64    `json:"elevation"`
	Zoom      float64    `json:"zoom"`
	ClipPlane [4]float64 `json:"clipPlane"`
}

// DefaultScene returns the state a freshly created session starts with.
func DefaultScene() SceneState {
	return SceneState{Zoom: 1.0}
}

// Valid reports whether the state satisfies the scene invariants:
// all components finite and zoom strictly positive.
func (s SceneState) Valid() bool {
	vals := []float64{s.Azimuth, s.Elevation, s.Zoom,
		s.ClipPlane[0], s.ClipPlane[1], s.ClipPlane[2], s.ClipPlane[3]}
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return s.Zoom > 0
}

// Info is a read-only session summary for the inspection surface.
// It never carries the capability key.
type Info struct {
	Token        string     `json:"token"`
	CreatedAt    time.Time  `json:"created_at"`
	Scene        SceneState `json:"scene"`
	Participants []string   `json:"participants"`
	Controllers  int        `json:"controllers"`
}

type record struct {
	key          string
	scene        SceneState
	createdAt    time.Time
	controllers  map[string]struct{}
	participants []string
}

// Registry owns every live session, keyed by token.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*record
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*record),
	}
}

// CreateOrJoin returns the session for token, creating it with default scene
// state if it does not exist yet. A non-empty suppliedKey becomes the
// capability key at creation; otherwise a fresh one is generated. When the
// token is already registered the existing scene and key are returned with
// created=false: a duplicate create is a concurrent-creator race, not an
// error, and never resets state.
func (r *Registry) CreateOrJoin(token, suppliedKey string) (SceneState, string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rec, ok := r.sessions[token]; ok {
		return rec.scene, rec.key, false
	}

	key := suppliedKey
	if key == "" {
		key = uuid.NewString()
	}

	rec := &record{
		key:         key,
		scene:       DefaultScene(),
		createdAt:   time.Now(),
		controllers: make(map[string]struct{}),
	}
	r.sessions[token] = rec

	return rec.scene, rec.key, true
}

// CapabilityKey returns the session's capability key for join-time
// controller checks.
func (r *Registry) CapabilityKey(token string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.sessions[token]
	if !ok {
		return "", false
	}
	return rec.key, true
}

// Authorize reports whether presentedKey matches the session's capability
// key. Unknown tokens are never authorized.
func (r *Registry) Authorize(token, presentedKey string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.sessions[token]
	return ok && rec.key == presentedKey
}

// UpdateScene replaces the session's scene state with patch if presentedKey
// matches the capability key and the patch satisfies the scene invariants.
// It reports whether the update was applied; a false return means no state
// changed and nothing should be broadcast.
func (r *Registry) UpdateScene(token, presentedKey string, patch SceneState) bool {
	if !patch.Valid() {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.sessions[token]
	if !ok || rec.key != presentedKey {
		return false
	}
	rec.scene = patch
	return true
}

// Snapshot returns the session's current scene state.
func (r *Registry) Snapshot(token string) (SceneState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.sessions[token]
	if !ok {
		return SceneState{}, false
	}
	return rec.scene, true
}

// AddController records userID as a controller of the session.
func (r *Registry) AddController(token, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rec, ok := r.sessions[token]; ok {
		rec.controllers[userID] = struct{}{}
	}
}

// IsController reports whether userID joined the session holding the
// correct capability key.
func (r *Registry) IsController(token, userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.sessions[token]
	if !ok {
		return false
	}
	_, ok = rec.controllers[userID]
	return ok
}

// AddParticipant appends userID to the session's participant list in join
// order.
func (r *Registry) AddParticipant(token, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rec, ok := r.sessions[token]; ok {
		rec.participants = append(rec.participants, userID)
	}
}

// RemoveParticipant releases userID's participant and controller entries.
// Called from the disconnect teardown hook.
func (r *Registry) RemoveParticipant(token, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.sessions[token]
	if !ok {
		return
	}
	delete(rec.controllers, userID)
	for i, id := range rec.participants {
		if id == userID {
			rec.participants = append(rec.participants[:i], rec.participants[i+1:]...)
			break
		}
	}
}

// Participants returns the session's participant user ids in join order.
func (r *Registry) Participants(token string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.sessions[token]
	if !ok {
		return nil
	}
	out := make([]string, len(rec.participants))
	copy(out, rec.participants)
	return out
}

// Describe returns a read-only summary of one session.
func (r *Registry) Describe(token string) (*Info, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.sessions[token]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return rec.info(token), nil
}

// List returns summaries for every live session.
func (r *Registry) List() []*Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Info, 0, len(r.sessions))
	for token, rec := range r.sessions {
		result = append(result, rec.info(token))
	}
	return result
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (rec *record) info(token string) *Info {
	participants := make([]string, len(rec.participants))
	copy(participants, rec.participants)
	return &Info{
		Token:        token,
		CreatedAt:    rec.createdAt,
		Scene:        rec.scene,
		Participants: participants,
		Controllers:  len(rec.controllers),
	}
}

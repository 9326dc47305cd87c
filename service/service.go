package service

import (
	"context"
	"time"

	"github.com/vizsync/vizsync/presence"
	"github.com/vizsync/vizsync/session"
)

// CollabService defines the inspection operations offered to the REST API
// and the MCP tool surface.
type CollabService interface {
	ListSessions(ctx context.Context) []*SessionInfo
	GetSession(ctx context.Context, token string) (*SessionInfo, error)
	GetScene(ctx context.Context, token string) (*session.SceneState, error)
	Stats(ctx context.Context) *Stats
}

// SessionInfo summarizes one live session. Capability keys and user keys
// are never part of it.
type SessionInfo struct {
	Token       string             `json:"token"`
	CreatedAt   time.Time          `json:"created_at"`
	Scene       session.SceneState `json:"scene"`
	Users       []presence.User    `json:"users"`
	Controllers int                `json:"controllers"`
}

// Stats reports hub-wide counters.
type Stats struct {
	Sessions int `json:"sessions"`
	Users    int `json:"users"`
}

type collabService struct {
	sessions *session.Registry
	users    *presence.Directory
}

// New creates the service over the two registries.
func New(sessions *session.Registry, users *presence.Directory) CollabService {
	return &collabService{sessions: sessions, users: users}
}

func (s *collabService) ListSessions(ctx context.Context) []*SessionInfo {
	infos := s.sessions.List()
	result := make([]*SessionInfo, 0, len(infos))
	for _, info := range infos {
		result = append(result, s.summarize(info))
	}
	return result
}

func (s *collabService) GetSession(ctx context.Context, token string) (*SessionInfo, error) {
	info, err := s.sessions.Describe(token)
	if err != nil {
		return nil, err
	}
	return s.summarize(info), nil
}

func (s *collabService) GetScene(ctx context.Context, token string) (*session.SceneState, error) {
	scene, ok := s.sessions.Snapshot(token)
	if !ok {
		return nil, session.ErrSessionNotFound
	}
	return &scene, nil
}

func (s *collabService) Stats(ctx context.Context) *Stats {
	return &Stats{
		Sessions: s.sessions.Count(),
		Users:    s.users.Count(),
	}
}

func (s *collabService) summarize(info *session.Info) *SessionInfo {
	return &SessionInfo{
		Token:       info.Token,
		CreatedAt:   info.CreatedAt,
		Scene:       info.Scene,
		Users:       s.users.ListByID(info.Participants),
		Controllers: info.Controllers,
	}
}

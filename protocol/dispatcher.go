// Package protocol defines the wire message set and the per-connection
// dispatcher that interprets it. The transport hands the dispatcher raw
// frames plus a connection handle; the dispatcher answers each frame on the
// sender's own queue and pushes fan-out messages through the relay.
package protocol

import (
	"encoding/json"
	"net/url"

	"go.uber.org/zap"

	"github.com/vizsync/vizsync/presence"
	"github.com/vizsync/vizsync/session"
	"github.com/vizsync/vizsync/validate"
)

// Sender queues one outbound message for a single connection. Send must not
// block on the peer; a dead receiver surfaces as an error the dispatcher
// only logs.
type Sender interface {
	Send(v any) error
}

// Relay fans a message out to every other live connection in a session.
// Implementations must never block on slow receivers.
type Relay interface {
	BroadcastToSession(token string, exclude Sender, v any)
}

// Conn is the dispatcher's per-connection state: the session token parsed
// from the connect URL, the host for join URLs, and — once create or join
// succeeds — an immutable (token, user id, user key) binding.
type Conn struct {
	token  string
	host   string
	sender Sender

	bound   bool
	userID  string
	userKey string
}

// NewConn wraps a freshly connected transport. token comes from the
// connection URL's session query parameter and may be empty; such a
// connection can never bind.
func NewConn(token, host string, sender Sender) *Conn {
	return &Conn{token: token, host: host, sender: sender}
}

// Token returns the session token from the connect URL.
func (c *Conn) Token() string { return c.token }

// Bound reports whether the connection has completed create or join.
func (c *Conn) Bound() bool { return c.bound }

// UserID returns the bound user id, or "" while unbound.
func (c *Conn) UserID() string { return c.userID }

func (c *Conn) bind(userID, userKey string) {
	c.bound = true
	c.userID = userID
	c.userKey = userKey
}

// Dispatcher drives the two registries and the relay from inbound frames.
type Dispatcher struct {
	sessions *session.Registry
	users    *presence.Directory
	relay    Relay
	log      *zap.Logger
}

// NewDispatcher creates a dispatcher over the given registries and relay.
func NewDispatcher(sessions *session.Registry, users *presence.Directory, relay Relay, log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{sessions: sessions, users: users, relay: relay, log: log}
}

// Handle processes one inbound frame. Every frame gets exactly one reply on
// the sender's queue; fan-outs go through the relay. Nothing here is fatal
// to the connection: malformed input is answered with an error ack.
func (d *Dispatcher) Handle(c *Conn, raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		d.reply(c, errorAck(OpAck, "invalid JSON"))
		return
	}

	switch env.Op {
	case OpCreate:
		d.handleCreate(c, raw)
	case OpJoin:
		d.handleJoin(c, raw)
	case OpUpdateScene:
		d.handleSceneUpdate(c, raw)
	case OpAddVolumeURL, OpRemoveVolumeMedia, OpAddMeshURL,
		OpRemoveMeshMedia, OpSet4DVolumeIndex, OpUpdateImageOptions:
		d.handleAssetUpdate(c, env.Op, raw)
	case OpUpdateCrosshairs:
		d.handleCrosshairUpdate(c, raw)
	case OpUpdateUser:
		d.handleUserUpdate(c, raw)
	default:
		d.handleSnapshot(c)
	}
}

// Disconnect is the teardown hook the transport invokes when a connection
// closes. It releases the binding's participant, controller, and presence
// bookkeeping; the transport removes the connection from the live set
// itself.
func (d *Dispatcher) Disconnect(c *Conn) {
	if !c.bound {
		return
	}
	d.sessions.RemoveParticipant(c.token, c.userID)
	d.users.Remove(c.userKey)
	d.log.Debug("connection unbound",
		zap.String("session", c.token),
		zap.String("user_id", c.userID))
}

func (d *Dispatcher) handleCreate(c *Conn, raw []byte) {
	if c.bound {
		d.reply(c, errorAck(OpCreate, "already joined"))
		return
	}
	if c.token == "" {
		d.reply(c, errorAck(OpCreate, "no session token"))
		return
	}

	var req BindRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		d.reply(c, errorAck(OpCreate, "invalid JSON"))
		return
	}
	color, err := validate.Color(req.Color)
	if err != nil {
		d.reply(c, errorAck(OpCreate, err.Error()))
		return
	}

	_, capKey, created := d.sessions.CreateOrJoin(c.token, req.Key)
	user, userKey := d.users.Register(req.DisplayName, color)

	// The creator is always a controller; a duplicate create is an
	// implicit join and earns the badge only with the right key.
	isController := created || req.Key == capKey
	if isController {
		d.sessions.AddController(c.token, user.ID)
	}
	d.sessions.AddParticipant(c.token, user.ID)
	c.bind(user.ID, userKey)

	if created {
		d.log.Info("session created", zap.String("session", c.token))
	}

	d.reply(c, BindAck{
		Ack:          okAck(OpCreate),
		URL:          joinURL(c.host, c.token),
		Key:          capKey,
		UserID:       user.ID,
		UserKey:      userKey,
		UserName:     user.DisplayName,
		IsController: isController,
	})
}

func (d *Dispatcher) handleJoin(c *Conn, raw []byte) {
	if c.bound {
		d.reply(c, errorAck(OpJoin, "already joined"))
		return
	}

	capKey, ok := d.sessions.CapabilityKey(c.token)
	if !ok {
		d.reply(c, errorAck(OpJoin, "session not found"))
		return
	}

	var req BindRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		d.reply(c, errorAck(OpJoin, "invalid JSON"))
		return
	}
	color, err := validate.Color(req.Color)
	if err != nil {
		d.reply(c, errorAck(OpJoin, err.Error()))
		return
	}

	// Snapshot the user list before registering so the joiner is not in
	// its own list.
	userList := d.users.ListByID(d.sessions.Participants(c.token))

	user, userKey := d.users.Register(req.DisplayName, color)
	isController := req.Key == capKey
	if isController {
		d.sessions.AddController(c.token, user.ID)
	}
	d.sessions.AddParticipant(c.token, user.ID)
	c.bind(user.ID, userKey)

	d.reply(c, BindAck{
		Ack:          okAck(OpJoin),
		URL:          joinURL(c.host, c.token),
		UserID:       user.ID,
		UserKey:      userKey,
		UserName:     user.DisplayName,
		IsController: isController,
		UserList:     userList,
	})

	d.relay.BroadcastToSession(c.token, c.sender, UserEvent{Op: OpUserJoined, User: user})
}

func (d *Dispatcher) handleSceneUpdate(c *Conn, raw []byte) {
	if !d.requireBound(c) {
		return
	}

	var req SceneUpdate
	if err := json.Unmarshal(raw, &req); err != nil {
		d.reply(c, errorAck(OpAck, "invalid JSON"))
		return
	}
	plane, err := validate.ClipPlane(req.ClipPlane)
	if err != nil {
		d.reply(c, errorAck(OpAck, err.Error()))
		return
	}

	patch := session.SceneState{
		Azimuth:   req.Azimuth,
		Elevation: req.Elevation,
		Zoom:      req.Zoom,
		ClipPlane: plane,
	}

	// The ack is identical whether or not the key matched: a rejected
	// update must not reveal that the right key would have succeeded.
	if d.sessions.UpdateScene(c.token, req.Key, patch) {
		d.relay.BroadcastToSession(c.token, c.sender, sceneEvent(OpUpdateScene, patch))
	}
	d.reply(c, okAck(OpAck))
}

func (d *Dispatcher) handleAssetUpdate(c *Conn, op Op, raw []byte) {
	if !d.requireBound(c) {
		return
	}

	var req AssetUpdate
	if err := json.Unmarshal(raw, &req); err != nil {
		d.reply(c, errorAck(OpAck, "invalid JSON"))
		return
	}

	if d.sessions.Authorize(c.token, req.Key) {
		var event any
		switch op {
		case OpAddVolumeURL, OpUpdateImageOptions:
			event = VolumeLoadEvent{Op: op, URLImageOptions: req.URLImageOptions}
		case OpAddMeshURL:
			event = MeshLoadEvent{Op: op, URLMeshOptions: req.URLMeshOptions}
		case OpSet4DVolumeIndex:
			event = FrameIndexEvent{Op: op, URL: req.URL, Index: req.Index}
		default:
			event = MediaRemovedEvent{Op: op, URL: req.URL}
		}
		d.relay.BroadcastToSession(c.token, c.sender, event)
	}
	d.reply(c, okAck(OpAck))
}

func (d *Dispatcher) handleCrosshairUpdate(c *Conn, raw []byte) {
	if !d.requireBound(c) {
		return
	}

	var req CrosshairUpdate
	if err := json.Unmarshal(raw, &req); err != nil {
		d.reply(c, errorAck(OpAck, "invalid JSON"))
		return
	}
	pos, err := validate.Crosshair(req.CrosshairsPos)
	if err != nil {
		d.reply(c, errorAck(OpAck, err.Error()))
		return
	}

	if user, ok := d.users.UpdateCrosshair(req.UserKey, req.ID, pos); ok {
		d.relay.BroadcastToSession(c.token, c.sender, CrosshairEvent{
			Op:            OpUpdateCrosshairs,
			UserName:      user.DisplayName,
			CrosshairsPos: user.CrosshairsPos,
			IsController:  d.sessions.IsController(c.token, user.ID),
		})
	}
	d.reply(c, okAck(OpAck))
}

func (d *Dispatcher) handleUserUpdate(c *Conn, raw []byte) {
	if !d.requireBound(c) {
		return
	}

	var req UserUpdate
	if err := json.Unmarshal(raw, &req); err != nil {
		d.reply(c, errorAck(OpAck, "invalid JSON"))
		return
	}
	color, err := validate.Color(req.Color)
	if err != nil {
		d.reply(c, errorAck(OpAck, err.Error()))
		return
	}

	if user, ok := d.users.UpdateIdentity(req.UserKey, req.ID, req.DisplayName, color); ok {
		d.relay.BroadcastToSession(c.token, c.sender, UserEvent{Op: OpUserUpdated, User: user})
	}
	d.reply(c, okAck(OpAck))
}

// handleSnapshot answers unrecognized ops with the current scene so an
// out-of-sync client can resynchronize.
func (d *Dispatcher) handleSnapshot(c *Conn) {
	if !d.requireBound(c) {
		return
	}
	scene, ok := d.sessions.Snapshot(c.token)
	if !ok {
		d.reply(c, errorAck(OpAck, "session not found"))
		return
	}
	d.reply(c, sceneEvent(OpUpdateScene, scene))
}

// requireBound guards every branch that dereferences session or user state.
func (d *Dispatcher) requireBound(c *Conn) bool {
	if c.bound {
		return true
	}
	d.reply(c, errorAck(OpAck, "not joined"))
	return false
}

func (d *Dispatcher) reply(c *Conn, v any) {
	if err := c.sender.Send(v); err != nil {
		d.log.Debug("reply dropped", zap.String("session", c.token), zap.Error(err))
	}
}

// joinURL builds the shareable session URL from the inbound connection's
// host header.
func joinURL(host, token string) string {
	if host == "" {
		host = "localhost"
	}
	u := url.URL{
		Scheme:   "ws",
		Host:     host,
		Path:     "/ws",
		RawQuery: "session=" + url.QueryEscape(token),
	}
	return u.String()
}

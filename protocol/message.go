package protocol

import (
	"encoding/json"

	"github.com/vizsync/vizsync/presence"
	"github.com/vizsync/vizsync/session"
)

// Op identifies a wire operation. The strings match what the viewer client
// sends; adding an operation means adding a constant here and a case to the
// dispatcher switch.
type Op string

const (
	OpCreate             Op = "create"
	OpJoin               Op = "join"
	OpUpdateScene        Op = "update"
	OpAddVolumeURL       Op = "add volume url"
	OpRemoveVolumeMedia  Op = "remove volume media"
	OpAddMeshURL         Op = "add mesh url"
	OpRemoveMeshMedia    Op = "remove mesh media"
	OpSet4DVolumeIndex   Op = "set 4d vol index"
	OpUpdateImageOptions Op = "update image options"
	OpUpdateCrosshairs   Op = "update crosshairs"
	OpUpdateUser         Op = "update user"

	// Server-emitted ops.
	OpAck         Op = "ack"
	OpUserJoined  Op = "user joined"
	OpUserUpdated Op = "user updated"
)

// Envelope is the part of every inbound message the dispatcher needs before
// it can pick a payload type.
type Envelope struct {
	Op Op `json:"op"`
}

// BindRequest is the payload of create and join. Key is the capability key:
// on create it seeds the session's key if present, on join it is compared
// against it for controller status.
type BindRequest struct {
	Key         string    `json:"key"`
	DisplayName string    `json:"displayName"`
	Color       []float64 `json:"color"`
}

// SceneUpdate is the payload of the scene-state update op.
type SceneUpdate struct {
	Key       string    `json:"key"`
	Azimuth   float64   `json:"azimuth"`
	Elevation float64   `json:"elevation"`
	Zoom      float64   `json:"zoom"`
	ClipPlane []float64 `json:"clipPlane"`
}

// AssetUpdate is the payload shared by the volume/mesh asset ops. Option
// blobs pass through to the other clients untouched.
type AssetUpdate struct {
	Key             string          `json:"key"`
	URL             string          `json:"url"`
	Index           int             `json:"index"`
	URLImageOptions json.RawMessage `json:"urlImageOptions"`
	URLMeshOptions  json.RawMessage `json:"urlMeshOptions"`
}

// UserUpdate is the payload of the identity update op.
type UserUpdate struct {
	UserKey     string    `json:"userKey"`
	ID          string    `json:"id"`
	DisplayName string    `json:"displayName"`
	Color       []float64 `json:"color"`
}

// CrosshairUpdate is the payload of the crosshair op.
type CrosshairUpdate struct {
	UserKey       string    `json:"userKey"`
	ID            string    `json:"id"`
	CrosshairsPos []float64 `json:"crosshairsPos"`
}

// Ack is the base reply envelope. Message is "OK" on success paths and an
// error string with IsError set otherwise.
type Ack struct {
	Op      Op     `json:"op"`
	Message string `json:"message"`
	IsError bool   `json:"isError,omitempty"`
}

func okAck(op Op) Ack {
	return Ack{Op: op, Message: "OK"}
}

func errorAck(op Op, msg string) Ack {
	return Ack{Op: op, Message: msg, IsError: true}
}

// BindAck answers create and join. Key (the capability key) is only set on
// the create path; IsController and UserList only on the join path.
type BindAck struct {
	Ack
	URL          string          `json:"url"`
	Key          string          `json:"key,omitempty"`
	UserID       string          `json:"id"`
	UserKey      string          `json:"userKey"`
	UserName     string          `json:"userName"`
	IsController bool            `json:"isController"`
	UserList     []presence.User `json:"userList,omitempty"`
}

// SceneEvent carries scene state, both as a session fan-out after an applied
// update and as the snapshot reply to unrecognized ops.
type SceneEvent struct {
	Ack
	Azimuth   float64    `json:"azimuth"`
	Elevation float64    `json:"elevation"`
	Zoom      float64    `json:"zoom"`
	ClipPlane [4]float64 `json:"clipPlane"`
}

func sceneEvent(op Op, scene session.SceneState) SceneEvent {
	return SceneEvent{
		Ack:       okAck(op),
		Azimuth:   scene.Azimuth,
		Elevation: scene.Elevation,
		Zoom:      scene.Zoom,
		ClipPlane: scene.ClipPlane,
	}
}

// VolumeLoadEvent fans out add-volume and image-option updates.
type VolumeLoadEvent struct {
	Op              Op              `json:"op"`
	URLImageOptions json.RawMessage `json:"urlImageOptions"`
}

// MeshLoadEvent fans out add-mesh updates.
type MeshLoadEvent struct {
	Op             Op              `json:"op"`
	URLMeshOptions json.RawMessage `json:"urlMeshOptions"`
}

// MediaRemovedEvent fans out volume/mesh removals.
type MediaRemovedEvent struct {
	Op  Op     `json:"op"`
	URL string `json:"url"`
}

// FrameIndexEvent fans out 4D volume index changes.
type FrameIndexEvent struct {
	Op    Op     `json:"op"`
	URL   string `json:"url"`
	Index int    `json:"index"`
}

// UserEvent fans out presence changes (user joined, user updated).
type UserEvent struct {
	Op   Op            `json:"op"`
	User presence.User `json:"user"`
}

// CrosshairEvent fans out crosshair moves, badged with the sender's
// controller status.
type CrosshairEvent struct {
	Op            Op         `json:"op"`
	UserName      string     `json:"userName"`
	CrosshairsPos [3]float64 `json:"crosshairsPos"`
	IsController  bool       `json:"isController"`
}

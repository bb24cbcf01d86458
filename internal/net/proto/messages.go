package proto

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"automated-kingdom/server/internal/sim"
)

const (
	// Version tracks the wire-protocol revision expected by clients.
	Version = 1

	// Type identifiers for stream payloads.
	TypeKeyframe = "keyframe"
	TypePatch    = "patch"
	TypeClosed   = "closed"
)

// ErrUnsupportedCommand is returned for command types the API does not accept.
var ErrUnsupportedCommand = errors.New("proto: unsupported command")

// CommandRequest is the body of a command submission.
type CommandRequest struct {
	Type    sim.CommandType    `json:"type"`
	AgentID sim.AgentID        `json:"agentId,omitempty"`
	Spawn   *sim.SpawnCommand  `json:"spawn,omitempty"`
	Path    *sim.PathCommand   `json:"path,omitempty"`
	PathTo  *sim.PathToCommand `json:"pathTo,omitempty"`
	Mine    *sim.MineCommand   `json:"mine,omitempty"`
	Build   *sim.BuildCommand  `json:"build,omitempty"`
}

// CommandAccepted acknowledges a staged command.
type CommandAccepted struct {
	Ver  int             `json:"ver"`
	Type sim.CommandType `json:"type"`
	Tick uint64          `json:"tick"`
}

// KeyframeMessage carries a full snapshot.
type KeyframeMessage struct {
	Ver      int          `json:"ver"`
	Type     string       `json:"type"`
	Tick     uint64       `json:"tick"`
	Snapshot sim.Snapshot `json:"snapshot"`
}

// PatchMessage carries the changes between two streamed snapshots.
type PatchMessage struct {
	Ver     int         `json:"ver"`
	Type    string      `json:"type"`
	Tick    uint64      `json:"tick"`
	Since   uint64      `json:"since"`
	Patches []sim.Patch `json:"patches"`
}

// ClosedMessage tells an observer the session ended.
type ClosedMessage struct {
	Ver    int    `json:"ver"`
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

// DecodeCommand parses a command body. Unknown fields are rejected.
func DecodeCommand(data []byte) (CommandRequest, error) {
	var req CommandRequest
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		return req, fmt.Errorf("decode command: %w", err)
	}
	return req, nil
}

// Command converts the request into a simulation command.
func (r CommandRequest) Command() (sim.Command, error) {
	switch r.Type {
	case sim.CommandSpawn, sim.CommandSetPath, sim.CommandPathTo, sim.CommandClearPath, sim.CommandMine, sim.CommandBuild:
	default:
		return sim.Command{}, fmt.Errorf("%w: %q", ErrUnsupportedCommand, r.Type)
	}
	cmd := sim.Command{
		Type:    r.Type,
		AgentID: r.AgentID,
		Spawn:   r.Spawn,
		Path:    r.Path,
		PathTo:  r.PathTo,
		Mine:    r.Mine,
		Build:   r.Build,
	}
	if err := cmd.Validate(); err != nil {
		return sim.Command{}, err
	}
	return cmd, nil
}

// Keyframe builds a keyframe message for snapshot.
func Keyframe(snapshot sim.Snapshot) KeyframeMessage {
	return KeyframeMessage{Ver: Version, Type: TypeKeyframe, Tick: snapshot.Tick, Snapshot: snapshot}
}

// Delta builds a patch message between two snapshots.
func Delta(prev, next sim.Snapshot) PatchMessage {
	patches := sim.Diff(prev, next)
	if patches == nil {
		patches = []sim.Patch{}
	}
	return PatchMessage{Ver: Version, Type: TypePatch, Tick: next.Tick, Since: prev.Tick, Patches: patches}
}

// Closed builds a closed message.
func Closed(reason string) ClosedMessage {
	return ClosedMessage{Ver: Version, Type: TypeClosed, Reason: reason}
}

// Package stream serves terrain tiles to connected viewers over WebSocket.
// Each viewer drives its own view-dependent quadtree; the stream pushes the
// tile events and frame summaries the traversal produces.
package stream

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/segmentio/encoding/json"
	"github.com/tellusmaps/terrastream/tile"
)

// MsgType identifies a stream message.
type MsgType string

const (
	// Client to server.
	MsgTypePingRequest     MsgType = "ping_request"
	MsgTypeViewpointUpdate MsgType = "viewpoint_update"
	MsgTypeLayerRefresh    MsgType = "layer_refresh"

	// Server to client.
	MsgTypePingResponse MsgType = "ping_response"
	MsgTypeSessionState MsgType = "session_state"
	MsgTypeTileAdded    MsgType = "tile_added"
	MsgTypeTileChanged  MsgType = "tile_changed"
	MsgTypeTileRemoved  MsgType = "tile_removed"
	MsgTypeFrameSummary MsgType = "frame_summary"
	MsgTypeError        MsgType = "error"
)

// Msg is the envelope every stream message travels in.
type Msg struct {
	Type MsgType         `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewMsg wraps a payload into an envelope.
func NewMsg(t MsgType, v any) (Msg, error) {
	if v == nil {
		return Msg{Type: t}, nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return Msg{}, errors.New("encoding message payload failed").
			WithTag("msg_type", t).
			Wrap(err)
	}
	return Msg{Type: t, Data: data}, nil
}

// DataTo decodes the payload into the given value.
func (m Msg) DataTo(v any) error {
	if err := json.Unmarshal(m.Data, v); err != nil {
		return errors.New("decoding message payload failed").
			WithTag("msg_type", m.Type).
			Wrap(err)
	}
	return nil
}

func (m Msg) TypeString() string {
	return string(m.Type)
}

func (m Msg) encode() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, errors.New("encoding message failed").
			WithTag("msg_type", m.Type).
			Wrap(err)
	}
	return data, nil
}

func (m *Msg) decode(data []byte) error {
	if err := json.Unmarshal(data, m); err != nil {
		return errors.New("decoding message failed").Wrap(err)
	}
	return nil
}

// PingRequest asks for a round trip. The id comes back in the response.
type PingRequest struct {
	RequestID uint32 `json:"request_id"`
}

type PingResponse struct {
	RequestID uint32 `json:"request_id"`
}

// ViewpointUpdate moves the viewer. The next frames subdivide and load
// around the new position.
type ViewpointUpdate struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`

	// LODScale scales visibility ranges; zero keeps the current value.
	LODScale float64 `json:"lod_scale,omitempty"`
}

// LayerRefresh invalidates the given layers on every live tile. An empty
// list reloads everything.
type LayerRefresh struct {
	Layers []uint32 `json:"layers,omitempty"`
}

// SessionState greets a viewer with its identity and the terrain shape.
type SessionState struct {
	ViewerID    uint32 `json:"viewer_id"`
	SessionUUID string `json:"session_uuid"`
	MaxLOD      uint32 `json:"max_lod"`
}

// TileEvent reports a tile entering, changing or leaving the live set.
type TileEvent struct {
	Key TileKey `json:"key"`
}

// TileKey is the wire form of a tile address.
type TileKey struct {
	LOD uint32 `json:"lod"`
	X   uint32 `json:"x"`
	Y   uint32 `json:"y"`
}

func keyToWire(k tile.Key) TileKey {
	return TileKey{LOD: k.LOD, X: k.X, Y: k.Y}
}

// FrameSummary reports what one traversal did.
type FrameSummary struct {
	Frame     uint64 `json:"frame"`
	Drawn     int    `json:"drawn"`
	Merged    int    `json:"merged"`
	Evicted   int    `json:"evicted"`
	TileCount int    `json:"tile_count"`
}

// ErrorResponse reports a request that could not be handled.
type ErrorResponse struct {
	Code string `json:"code"`
}

const (
	ErrorCodeBadRequest = "bad_request"
)

// mustEncode is for payloads made of plain fields, where encoding cannot
// fail.
func mustEncode(v any) json.RawMessage {
	data, _ := json.Marshal(v)
	return data
}

package streaming

import (
	"encoding/json"
	"time"

	"github.com/tablekeep/vtt/pkg/core"
)

// Message type constants of the hub protocol.
const (
	TypeSubscribe    = "subscribe"
	TypeUnsubscribe  = "unsubscribe"
	TypeLoadState    = "load_state"
	TypeSaveState    = "save_state"
	TypeStateChanged = "state_changed"
	TypeAck          = "ack"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the hub's reply to a request. Load replies carry the record;
// a missing record is a nil Record with no error.
type AckMessage struct {
	Type      string         `json:"type"` // always "ack"
	For       string         `json:"for"`  // the message type being acknowledged
	RequestID string         `json:"requestId,omitempty"`
	Error     string         `json:"error,omitempty"`
	Record    *RecordPayload `json:"record,omitempty"`
}

// RecordPayload is a durable record on the wire.
type RecordPayload struct {
	CampaignID string          `json:"campaignId"`
	ToolKey    string          `json:"toolKey"`
	State      json.RawMessage `json:"state"`
	UpdatedBy  string          `json:"updatedBy,omitempty"`
	SavedAt    time.Time       `json:"savedAt"`
}

// SubscribePayload joins or leaves a campaign's change feed.
type SubscribePayload struct {
	CampaignID string `json:"campaignId"`
}

// LoadStatePayload requests one record.
type LoadStatePayload struct {
	RequestID  string `json:"requestId"`
	CampaignID string `json:"campaignId"`
	ToolKey    string `json:"toolKey"`
}

// SaveStatePayload overwrites one record.
type SaveStatePayload struct {
	RequestID string        `json:"requestId"`
	Record    RecordPayload `json:"record"`
}

// StateChangedPayload is pushed to every subscriber of a campaign.
type StateChangedPayload struct {
	Notification core.Notification `json:"notification"`
}

// FromRecord converts a record for the wire.
func FromRecord(r *core.Record) RecordPayload {
	return RecordPayload{
		CampaignID: r.CampaignID,
		ToolKey:    r.ToolKey,
		State:      r.State,
		UpdatedBy:  r.UpdatedBy,
		SavedAt:    r.SavedAt,
	}
}

// Record converts the wire form back.
func (p RecordPayload) Record() *core.Record {
	return &core.Record{
		CampaignID: p.CampaignID,
		ToolKey:    p.ToolKey,
		State:      p.State,
		UpdatedBy:  p.UpdatedBy,
		SavedAt:    p.SavedAt,
	}
}

// Marshal builds a JSON-encoded Envelope from a message type and payload.
func Marshal(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: msgType, Payload: raw})
}

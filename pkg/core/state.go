package core

import (
	"encoding/json"
	"time"
)

// ToolKey identifies the scene aggregate among a campaign's tool states.
const ToolKey = "vtt_scenes"

// State is the persisted scene aggregate for one campaign.
type State struct {
	Scenes         []Scene   `json:"scenes"`
	CurrentSceneID *string   `json:"currentSceneId"`
	SavedAt        time.Time `json:"savedAt"`
}

// Clone deep-copies the aggregate.
func (s State) Clone() State {
	out := State{CurrentSceneID: clonePtr(s.CurrentSceneID), SavedAt: s.SavedAt}
	out.Scenes = make([]Scene, len(s.Scenes))
	for i, sc := range s.Scenes {
		out.Scenes[i] = sc.Clone()
	}
	return out
}

// Record is one durable row: the raw aggregate plus its key and author.
type Record struct {
	CampaignID string
	ToolKey    string
	State      json.RawMessage
	UpdatedBy  string
	SavedAt    time.Time
}

// Notification announces that a campaign's tool state changed. State is the
// raw aggregate so that consumers can reject malformed snapshots.
type Notification struct {
	CampaignID string          `json:"campaignId,omitempty"`
	ToolKey    string          `json:"toolKey"`
	State      json.RawMessage `json:"state"`
	UpdatedBy  string          `json:"updatedBy,omitempty"`
}

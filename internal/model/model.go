package model

import (
	"time"

	"github.com/tablekeep/vtt/pkg/core"
	"gorm.io/datatypes"
)

// DatabaseModels lists every table AutoMigrate manages.
var DatabaseModels = []interface{}{
	&ToolState{},
	&SaveEvent{},
}

// ToolState is one campaign's tool aggregate, unique on (campaign, tool key).
type ToolState struct {
	ID         uint           `json:"id" gorm:"primarykey;autoIncrement"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
	CampaignID string         `json:"campaignId" gorm:"size:64;not null;uniqueIndex:idx_tool_state_key"`
	ToolKey    string         `json:"toolKey" gorm:"size:64;not null;uniqueIndex:idx_tool_state_key"`
	State      datatypes.JSON `json:"state"`
	UpdatedBy  string         `json:"updatedBy" gorm:"size:128"`
	SavedAt    time.Time      `json:"savedAt" gorm:"index"`
}

func (*ToolState) TableName() string {
	return "tool_states"
}

// Record converts the row to the storage-neutral record.
func (t *ToolState) Record() *core.Record {
	return &core.Record{
		CampaignID: t.CampaignID,
		ToolKey:    t.ToolKey,
		State:      append([]byte(nil), t.State...),
		UpdatedBy:  t.UpdatedBy,
		SavedAt:    t.SavedAt,
	}
}

// SaveEvent is an append-only audit row written alongside each save.
type SaveEvent struct {
	ID         uint      `json:"id" gorm:"primarykey;autoIncrement"`
	Time       time.Time `json:"time" gorm:"index"`
	CampaignID string    `json:"campaignId" gorm:"size:64;index"`
	ToolKey    string    `json:"toolKey" gorm:"size:64"`
	UpdatedBy  string    `json:"updatedBy" gorm:"size:128"`
	Bytes      int       `json:"bytes"`
}

func (*SaveEvent) TableName() string {
	return "save_events"
}

// FromRecord builds a row from a record, leaving the primary key unset.
func FromRecord(r *core.Record) *ToolState {
	return &ToolState{
		CampaignID: r.CampaignID,
		ToolKey:    r.ToolKey,
		State:      datatypes.JSON(append([]byte(nil), r.State...)),
		UpdatedBy:  r.UpdatedBy,
		SavedAt:    r.SavedAt,
	}
}

package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/tablekeep/vtt/pkg/core"
)

func TestRecordConversion(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	rec := &core.Record{CampaignID: "c1", ToolKey: core.ToolKey, State: []byte(`{"scenes":[]}`), UpdatedBy: "gm-1", SavedAt: now}

	row := FromRecord(rec)
	assert.Equal(t, "c1", row.CampaignID)
	assert.JSONEq(t, `{"scenes":[]}`, string(row.State))

	back := row.Record()
	assert.Equal(t, rec, back)

	rec.State[0] = 'x'
	assert.Equal(t, byte('{'), row.State[0], "row does not alias record bytes")
}

func TestTableNames(t *testing.T) {
	assert.Equal(t, "tool_states", (&ToolState{}).TableName())
	assert.Equal(t, "save_events", (&SaveEvent{}).TableName())
}

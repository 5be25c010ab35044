package mcp

import (
	"context"
	"testing"

	"github.com/tablekeep/vtt/internal/persist"
	"github.com/tablekeep/vtt/internal/storage/memory"
	"github.com/tablekeep/vtt/pkg/core"
)

func seeded(t *testing.T, role core.Role) *Server {
	t.Helper()
	current := "s1"
	st := core.State{
		CurrentSceneID: &current,
		Scenes: []core.Scene{
			{
				ID: "s1", Name: "Crypt", Width: 5, Height: 5, GridSize: 50,
				Tokens: []core.Token{
					{ID: "hero", Name: "Hero", Layer: core.LayerTokens},
					{ID: "lich", Name: "Lich", Layer: core.LayerGM},
				},
			},
			{ID: "s2", Name: "Road", Width: 10, Height: 5, GridSize: 50},
		},
	}
	raw, err := persist.Encode(st)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	b := memory.New()
	if err := b.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := b.Save(context.Background(), &core.Record{CampaignID: "c1", ToolKey: core.ToolKey, State: raw}); err != nil {
		t.Fatalf("save: %v", err)
	}
	return NewServer(b, core.ToolKey, role, "test")
}

func TestListScenes(t *testing.T) {
	server := seeded(t, core.RoleParticipant)

	_, output, err := server.handleListScenes(context.Background(), nil, ListScenesInput{CampaignID: "c1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(output.Scenes) != 2 {
		t.Fatalf("expected 2 scenes, got %d", len(output.Scenes))
	}
	if !output.Scenes[0].Current || output.Scenes[1].Current {
		t.Fatalf("expected only s1 current: %+v", output.Scenes)
	}
	if output.Scenes[0].Tokens != 2 {
		t.Fatalf("expected 2 tokens, got %d", output.Scenes[0].Tokens)
	}
}

func TestListScenes_Errors(t *testing.T) {
	server := seeded(t, core.RoleParticipant)

	if _, _, err := server.handleListScenes(context.Background(), nil, ListScenesInput{}); err == nil {
		t.Fatalf("expected error for missing campaign_id")
	}
	if _, _, err := server.handleListScenes(context.Background(), nil, ListScenesInput{CampaignID: "nope"}); err == nil {
		t.Fatalf("expected error for unknown campaign")
	}
}

func TestGetScene_FiltersByRole(t *testing.T) {
	server := seeded(t, core.RoleGM)

	_, player, err := server.handleGetScene(context.Background(), nil, GetSceneInput{CampaignID: "c1", Role: "player"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if player.Role != "participant" || player.Scene.SceneID != "s1" {
		t.Fatalf("unexpected output: %+v", player)
	}
	if len(player.Scene.Tokens) != 1 || player.Scene.Tokens[0].ID != "hero" {
		t.Fatalf("participant should only see hero: %+v", player.Scene.Tokens)
	}

	_, gm, err := server.handleGetScene(context.Background(), nil, GetSceneInput{CampaignID: "c1", SceneID: "s1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gm.Role != "gm" || len(gm.Scene.Tokens) != 2 {
		t.Fatalf("gm should see both tokens: %+v", gm)
	}
}

func TestGetScene_RoleCannotExceedServer(t *testing.T) {
	server := seeded(t, core.RoleParticipant)

	_, output, err := server.handleGetScene(context.Background(), nil, GetSceneInput{CampaignID: "c1", Role: "gm"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if output.Role != "participant" {
		t.Fatalf("expected participant view, got %q", output.Role)
	}
	for _, tok := range output.Scene.Tokens {
		if tok.Layer == core.LayerGM {
			t.Fatalf("gm layer token leaked: %+v", tok)
		}
	}
}

func TestGetScene_NotFound(t *testing.T) {
	server := seeded(t, core.RoleParticipant)

	if _, _, err := server.handleGetScene(context.Background(), nil, GetSceneInput{CampaignID: "c1", SceneID: "missing"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestMeasureDistance(t *testing.T) {
	server := seeded(t, core.RoleParticipant)

	_, output, err := server.handleMeasureDistance(context.Background(), nil, MeasureDistanceInput{FromX: 0, FromY: 0, ToX: 3, ToY: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if output.Cells != 4 || output.Feet != 20 {
		t.Fatalf("expected 4 cells / 20 ft, got %+v", output)
	}
}

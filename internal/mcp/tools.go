package mcp

import (
	"context"
	"fmt"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/tablekeep/vtt/internal/measure"
	"github.com/tablekeep/vtt/internal/persist"
	"github.com/tablekeep/vtt/internal/visibility"
	"github.com/tablekeep/vtt/pkg/core"
)

type ListScenesInput struct {
	CampaignID string `json:"campaign_id" jsonschema:"campaign to read"`
}

type GetSceneInput struct {
	CampaignID string `json:"campaign_id" jsonschema:"campaign to read"`
	SceneID    string `json:"scene_id,omitempty" jsonschema:"scene id, defaults to the current scene"`
	Role       string `json:"role,omitempty" jsonschema:"view as this campaign role; cannot exceed the server role"`
}

type MeasureDistanceInput struct {
	FromX int `json:"from_x" jsonschema:"start cell column"`
	FromY int `json:"from_y" jsonschema:"start cell row"`
	ToX   int `json:"to_x" jsonschema:"end cell column"`
	ToY   int `json:"to_y" jsonschema:"end cell row"`
}

type SceneSummaryOutput struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Tokens  int    `json:"tokens"`
	Current bool   `json:"current"`
}

type ListScenesOutput struct {
	Scenes []SceneSummaryOutput `json:"scenes"`
}

type GetSceneOutput struct {
	Role  string                `json:"role"`
	Scene visibility.Projection `json:"scene"`
}

func (s *Server) registerTools() {
	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "list_scenes",
		Description: "List the scenes of a campaign",
	}, s.handleListScenes)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "get_scene",
		Description: "Return a scene as a GM or participant would see it",
	}, s.handleGetScene)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "measure_distance",
		Description: "Measure grid distance between two cells in cells and feet",
	}, s.handleMeasureDistance)
}

func (s *Server) load(ctx context.Context, campaignID string) (core.State, error) {
	if campaignID == "" {
		return core.State{}, fmt.Errorf("campaign_id is required")
	}
	rec, err := s.store.Load(ctx, campaignID, s.toolKey)
	if err != nil {
		return core.State{}, err
	}
	if rec == nil {
		return core.State{}, fmt.Errorf("campaign %q has no scenes", campaignID)
	}
	return persist.Decode(rec.State)
}

func (s *Server) handleListScenes(ctx context.Context, req *sdk.CallToolRequest, input ListScenesInput) (*sdk.CallToolResult, ListScenesOutput, error) {
	st, err := s.load(ctx, input.CampaignID)
	if err != nil {
		return nil, ListScenesOutput{}, err
	}
	output := make([]SceneSummaryOutput, 0, len(st.Scenes))
	for _, sc := range st.Scenes {
		output = append(output, SceneSummaryOutput{
			ID:      sc.ID,
			Name:    sc.Name,
			Width:   sc.Width,
			Height:  sc.Height,
			Tokens:  len(sc.Tokens),
			Current: st.CurrentSceneID != nil && *st.CurrentSceneID == sc.ID,
		})
	}
	return nil, ListScenesOutput{Scenes: output}, nil
}

func (s *Server) handleGetScene(ctx context.Context, req *sdk.CallToolRequest, input GetSceneInput) (*sdk.CallToolResult, GetSceneOutput, error) {
	st, err := s.load(ctx, input.CampaignID)
	if err != nil {
		return nil, GetSceneOutput{}, err
	}
	id := input.SceneID
	if id == "" && st.CurrentSceneID != nil {
		id = *st.CurrentSceneID
	}
	for _, sc := range st.Scenes {
		if sc.ID != id {
			continue
		}
		role := s.viewerRole(input.Role)
		return nil, GetSceneOutput{
			Role:  role.String(),
			Scene: visibility.Project(sc, role, visibility.AllLayers()),
		}, nil
	}
	return nil, GetSceneOutput{}, fmt.Errorf("scene not found")
}

func (s *Server) handleMeasureDistance(ctx context.Context, req *sdk.CallToolRequest, input MeasureDistanceInput) (*sdk.CallToolResult, measure.Result, error) {
	return nil, measure.Measure(
		measure.Point{X: input.FromX, Y: input.FromY},
		measure.Point{X: input.ToX, Y: input.ToY},
	), nil
}

// viewerRole resolves a requested role against the server's ceiling. An
// empty request uses the ceiling.
func (s *Server) viewerRole(requested string) core.Role {
	if requested != "" && !core.RoleFromCampaign(requested).IsGM() {
		return core.RoleParticipant
	}
	return s.role
}

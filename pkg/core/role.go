package core

import "strings"

// Role is the write authority a viewer holds in a campaign.
type Role int

const (
	RoleParticipant Role = iota
	RoleGM
)

func (r Role) String() string {
	if r == RoleGM {
		return "gm"
	}
	return "participant"
}

// IsGM reports whether r holds authoring rights.
func (r Role) IsGM() bool { return r == RoleGM }

// Identity is what the identity provider hands the engine.
type Identity struct {
	UserID       string `json:"userId"`
	CampaignRole string `json:"campaignRole"`
}

// Role resolves a campaign membership role to exactly GM or Participant.
func (i Identity) Role() Role {
	return RoleFromCampaign(i.CampaignRole)
}

// RoleFromCampaign maps membership role names. Anything unrecognised is a
// participant.
func RoleFromCampaign(role string) Role {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "gm", "dm", "owner", "game_master", "gamemaster":
		return RoleGM
	}
	return RoleParticipant
}

// Character is a member directory record used to seed tokens.
type Character struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	HPCurrent   *int   `json:"hp_current,omitempty"`
	HPMax       *int   `json:"hp_max,omitempty"`
	ArmorClass  *int   `json:"armor_class,omitempty"`
	PortraitURL string `json:"portrait_url,omitempty"`
}

package core

// TokenSize is the footprint class of a token.
type TokenSize string

const (
	SizeSmall  TokenSize = "small"
	SizeMedium TokenSize = "medium"
	SizeLarge  TokenSize = "large"
	SizeHuge   TokenSize = "huge"
)

// Multiplier is the rendered footprint relative to one grid cell.
// Unknown sizes render as medium.
func (s TokenSize) Multiplier() float64 {
	switch s {
	case SizeSmall:
		return 0.8
	case SizeLarge:
		return 2
	case SizeHuge:
		return 3
	default:
		return 1
	}
}

// Token is a placed marker on a scene.
type Token struct {
	ID          string    `json:"id"`
	CharacterID string    `json:"characterId,omitempty"`
	Name        string    `json:"name"`
	Emoji       string    `json:"emoji,omitempty"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	Color       string    `json:"color,omitempty"`
	Size        TokenSize `json:"size"`
	X           int       `json:"x"`
	Y           int       `json:"y"`
	Rotation    float64   `json:"rotation"`
	Layer       Layer     `json:"layer"`
	Locked      bool      `json:"locked"`
	HP          *int      `json:"hp,omitempty"`
	MaxHP       *int      `json:"maxHp,omitempty"`
	AC          *int      `json:"ac,omitempty"`
	Initiative  *float64  `json:"initiative,omitempty"`
	Conditions  []string  `json:"conditions,omitempty"`
	Visible     *bool     `json:"visible,omitempty"`
}

// Clone returns a copy with no shared pointers.
func (t Token) Clone() Token {
	out := t
	out.HP = clonePtr(t.HP)
	out.MaxHP = clonePtr(t.MaxHP)
	out.AC = clonePtr(t.AC)
	out.Initiative = clonePtr(t.Initiative)
	out.Visible = clonePtr(t.Visible)
	if t.Conditions != nil {
		out.Conditions = append([]string(nil), t.Conditions...)
	}
	return out
}

// GetLayer implements Layered.
func (t Token) GetLayer() Layer { return t.Layer }

// IsVisible reports the stored flag; an absent flag means visible.
func (t Token) IsVisible() bool { return t.Visible == nil || *t.Visible }

// TokenPatch carries the fields of a partial token update. Nil fields keep
// their current value.
type TokenPatch struct {
	Name       *string    `json:"name,omitempty"`
	Emoji      *string    `json:"emoji,omitempty"`
	ImageURL   *string    `json:"imageUrl,omitempty"`
	Color      *string    `json:"color,omitempty"`
	Size       *TokenSize `json:"size,omitempty"`
	X          *int       `json:"x,omitempty"`
	Y          *int       `json:"y,omitempty"`
	Rotation   *float64   `json:"rotation,omitempty"`
	Layer      *Layer     `json:"layer,omitempty"`
	Locked     *bool      `json:"locked,omitempty"`
	HP         *int       `json:"hp,omitempty"`
	MaxHP      *int       `json:"maxHp,omitempty"`
	AC         *int       `json:"ac,omitempty"`
	Initiative *float64   `json:"initiative,omitempty"`
	Conditions []string   `json:"conditions,omitempty"`
	Visible    *bool      `json:"visible,omitempty"`
}

// Apply merges the patch into t and re-establishes the hp bound.
func (p TokenPatch) Apply(t *Token) {
	if p.Name != nil {
		t.Name = *p.Name
	}
	if p.Emoji != nil {
		t.Emoji = *p.Emoji
	}
	if p.ImageURL != nil {
		t.ImageURL = *p.ImageURL
	}
	if p.Color != nil {
		t.Color = *p.Color
	}
	if p.Size != nil {
		t.Size = *p.Size
	}
	if p.X != nil {
		t.X = *p.X
	}
	if p.Y != nil {
		t.Y = *p.Y
	}
	if p.Rotation != nil {
		t.Rotation = *p.Rotation
	}
	if p.Layer != nil {
		t.Layer = p.Layer.Clamp()
	}
	if p.Locked != nil {
		t.Locked = *p.Locked
	}
	if p.HP != nil {
		t.HP = clonePtr(p.HP)
	}
	if p.MaxHP != nil {
		t.MaxHP = clonePtr(p.MaxHP)
	}
	if p.AC != nil {
		t.AC = clonePtr(p.AC)
	}
	if p.Initiative != nil {
		t.Initiative = clonePtr(p.Initiative)
	}
	if p.Conditions != nil {
		t.Conditions = append([]string(nil), p.Conditions...)
	}
	if p.Visible != nil {
		t.Visible = clonePtr(p.Visible)
	}
	t.ClampHealth()
}

// ClampHealth forces 0 <= hp <= maxHp when both are present.
func (t *Token) ClampHealth() {
	if t.HP == nil || t.MaxHP == nil {
		return
	}
	if *t.MaxHP < 0 {
		*t.MaxHP = 0
	}
	*t.HP = clampInt(*t.HP, 0, *t.MaxHP)
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T { return &v }

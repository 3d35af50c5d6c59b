package session

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
)

// Mode selects the widget's top-level screen.
type Mode string

const (
	ModeRewards Mode = "rewards"
	ModeLogin   Mode = "login"
)

// Layout places the widget window in percent of the screen.
type Layout struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Top    float64 `json:"top"`
	Left   float64 `json:"left"`
}

// layoutOverride is the optional layout in an "initialized" payload. Absent
// fields and -1 leave the current value alone.
type layoutOverride struct {
	Width  *float64 `json:"width"`
	Height *float64 `json:"height"`
	Top    *float64 `json:"top"`
	Left   *float64 `json:"left"`
}

func (o layoutOverride) apply(l Layout) Layout {
	set := func(dst *float64, v *float64) {
		if v != nil && *v != -1 {
			*dst = *v
		}
	}
	set(&l.Width, o.Width)
	set(&l.Height, o.Height)
	set(&l.Top, o.Top)
	set(&l.Left, o.Left)
	return l
}

func parseLayoutOverride(payload string) (layoutOverride, error) {
	var o layoutOverride
	if strings.TrimSpace(payload) == "" {
		return o, nil
	}
	if err := sonic.UnmarshalString(payload, &o); err != nil {
		return layoutOverride{}, err
	}
	return o, nil
}

// Engagement is a campaign placement offered by the widget.
type Engagement struct {
	ID            int               `json:"engagement_id"`
	CampaignID    int               `json:"campaign_id"`
	PlacementID   int               `json:"placement_id"`
	PlacementName string            `json:"placement_name"`
	Key           string            `json:"key"`
	RewardItems   []json.RawMessage `json:"reward_items"`
	SocialTasks   []json.RawMessage `json:"social_tasks"`
}

// HasItems reports whether the engagement offers anything.
func (e Engagement) HasItems() bool {
	return len(e.RewardItems) > 0 || len(e.SocialTasks) > 0
}

// parseEngagements decodes the placement map returned by __getEngagements.
// Values may be objects or JSON-encoded strings.
func parseEngagements(payload string) (map[string]Engagement, error) {
	var raw map[string]json.RawMessage
	if err := sonic.UnmarshalString(payload, &raw); err != nil {
		return nil, fmt.Errorf("decode engagements: %w", err)
	}

	out := make(map[string]Engagement, len(raw))
	for placement, value := range raw {
		body := []byte(value)
		var inner string
		if len(body) > 0 && body[0] == '"' {
			if err := sonic.Unmarshal(body, &inner); err != nil {
				return nil, fmt.Errorf("decode engagement %s: %w", placement, err)
			}
			body = []byte(inner)
		}
		var e Engagement
		if err := sonic.Unmarshal(body, &e); err != nil {
			return nil, fmt.Errorf("decode engagement %s: %w", placement, err)
		}
		out[placement] = e
	}
	return out, nil
}

// User is the account the widget reports on sign-in or sign-up.
type User struct {
	ID       string            `json:"id,omitempty"`
	Email    string            `json:"email"`
	Token    string            `json:"token"`
	Password string            `json:"password,omitempty"`
	Extras   map[string]string `json:"extras,omitempty"`
}

// parseUser requires email and token.
func parseUser(payload string) (User, error) {
	var u User
	if err := sonic.UnmarshalString(payload, &u); err != nil {
		return User{}, fmt.Errorf("decode user: %w", err)
	}
	if u.Email == "" || u.Token == "" {
		return User{}, fmt.Errorf("decode user: email and token are required")
	}
	return u, nil
}

// ClaimedReward is a reward the host application reports as already claimed.
type ClaimedReward struct {
	Title                  string   `json:"title"`
	Img                    string   `json:"img"`
	Price                  float64  `json:"price"`
	RedemptionInstructions string   `json:"redemptionInstructions"`
	AdditionalInfo         []string `json:"additionalInfo"`
}

func encodeClaimedRewards(rewards []ClaimedReward) string {
	if len(rewards) == 0 {
		return "[]"
	}
	data, err := sonic.MarshalString(rewards)
	if err != nil {
		return "[]"
	}
	return data
}

// shareRequest is the shareWith payload.
type shareRequest struct {
	App struct {
		AndroidID string `json:"androidId"`
	} `json:"app"`
	Data string `json:"data"`
}

// fieldValue is the sendToField payload.
type fieldValue struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

package social

import "lookbook/backend/internal/model"

// Label is the follow button shown for a relationship.
type Label struct {
	Text  string `json:"text"`
	Style string `json:"style"`
}

// Button styles
const (
	StyleFollowing = "following"
	StyleRequested = "requested"
	StylePrimary   = "primary"
)

// ButtonLabel picks the follow button for state. isFollowingMe only matters
// when there is no edge yet.
func ButtonLabel(state model.FollowState, isFollowingMe bool) Label {
	switch state {
	case model.StateFollowing:
		return Label{Text: "Following", Style: StyleFollowing}
	case model.StateRequested:
		return Label{Text: "Requested", Style: StyleRequested}
	}
	if isFollowingMe {
		return Label{Text: "Follow Back", Style: StylePrimary}
	}
	return Label{Text: "Follow", Style: StylePrimary}
}

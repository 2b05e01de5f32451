package model

import "fmt"

// FollowState is the state of a directed viewer -> target edge.
// Only the three reachable states exist; "following and requested" is not representable.
type FollowState int

const (
	StateNone FollowState = iota
	StateRequested
	StateFollowing
)

func (s FollowState) String() string {
	switch s {
	case StateNone:
		return "none"
	case StateRequested:
		return "requested"
	case StateFollowing:
		return "following"
	}
	return fmt.Sprintf("FollowState(%d)", int(s))
}

// IsFollowing is the isFollowing half of the legacy status pair.
func (s FollowState) IsFollowing() bool { return s == StateFollowing }

// HasRequestedFollow is the hasRequestedFollow half of the legacy status pair.
func (s FollowState) HasRequestedFollow() bool { return s == StateRequested }

// Valid reports whether s is one of the three states.
func (s FollowState) Valid() bool {
	return s >= StateNone && s <= StateFollowing
}

// ParseFollowState parses the String form.
func ParseFollowState(v string) (FollowState, error) {
	switch v {
	case "", "none":
		return StateNone, nil
	case "requested":
		return StateRequested, nil
	case "following":
		return StateFollowing, nil
	}
	return StateNone, ErrInvalidRecord{Kind: "follow state", Field: "state", Reason: fmt.Sprintf("unknown value %q", v)}
}

// StateFromFlags converts the legacy (isFollowing, hasRequestedFollow) pair.
// Following wins when both flags are set.
func StateFromFlags(isFollowing, hasRequestedFollow bool) FollowState {
	switch {
	case isFollowing:
		return StateFollowing
	case hasRequestedFollow:
		return StateRequested
	}
	return StateNone
}

// MarshalText lets the state travel as a string in JSON payloads.
func (s FollowState) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid follow state %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText is the inverse of MarshalText.
func (s *FollowState) UnmarshalText(b []byte) error {
	v, err := ParseFollowState(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

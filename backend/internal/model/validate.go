package model

import (
	"strconv"
	"strings"

	"lookbook/backend/internal/constants"
)

// Validate checks the fields required before an account is written.
func (a *Account) Validate() error {
	if a.ID == "" {
		return ErrInvalidRecord{Kind: "account", Field: "id", Reason: "cannot be empty"}
	}
	if len(strings.TrimSpace(a.Username)) < constants.MinUsernameLength {
		return ErrInvalidRecord{Kind: "account", Field: "username", Reason: "must be at least 3 characters"}
	}
	if strings.ContainsAny(a.Username, " \t\n/") {
		return ErrInvalidRecord{Kind: "account", Field: "username", Reason: "cannot contain spaces or slashes"}
	}
	return nil
}

// Validate checks the fields required before a post is written.
func (p *Post) Validate() error {
	if p.UserID == "" {
		return ErrInvalidRecord{Kind: "post", Field: "userId", Reason: "cannot be empty"}
	}
	if p.ImageURL == "" {
		return ErrInvalidRecord{Kind: "post", Field: "imageUrl", Reason: "cannot be empty"}
	}
	for i, t := range p.Tags {
		if strings.TrimSpace(t.Name) == "" {
			return ErrInvalidRecord{Kind: "post", Field: "tags", Reason: "tag name cannot be empty at index " + strconv.Itoa(i)}
		}
		if t.X < 0 || t.X > 1 || t.Y < 0 || t.Y > 1 {
			return ErrInvalidRecord{Kind: "post", Field: "tags", Reason: "tag position out of range at index " + strconv.Itoa(i)}
		}
	}
	return nil
}

// IndexKeys fills TagKeys and StyleKeys from Tags and Styles.
func (p *Post) IndexKeys() {
	p.TagKeys = uniqueKeys(len(p.Tags), func(i int) string { return p.Tags[i].Name })
	p.StyleKeys = uniqueKeys(len(p.Styles), func(i int) string { return p.Styles[i] })
}

// UsernameSearchKeys returns every lowercase prefix of username.
func UsernameSearchKeys(username string) []string {
	key := []rune(Key(username))
	keys := make([]string, 0, len(key))
	for i := 1; i <= len(key); i++ {
		keys = append(keys, string(key[:i]))
	}
	return keys
}

func uniqueKeys(n int, at func(int) string) []string {
	keys := make([]string, 0, n)
	seen := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		k := Key(at(i))
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	return keys
}

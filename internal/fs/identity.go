package fs

import (
	"errors"
	"fmt"
	"os/user"
	"strconv"
	"sync"

	"siv-go/internal/siv"
)

// ErrNotFound is returned when the host has no account for an id.
var ErrNotFound = errors.New("no such id")

// OSIdentityResolver resolves uids and gids through os/user. Lookups are
// cached for the lifetime of the resolver; a walk sees the same few owners
// over and over.
type OSIdentityResolver struct {
	mu     sync.Mutex
	users  map[int64]string
	groups map[int64]string
}

var _ siv.IdentityResolver = (*OSIdentityResolver)(nil)

// NewOSIdentityResolver creates a resolver backed by the host's identity directory.
func NewOSIdentityResolver() *OSIdentityResolver {
	return &OSIdentityResolver{
		users:  make(map[int64]string),
		groups: make(map[int64]string),
	}
}

// UserName returns the login name for uid.
func (r *OSIdentityResolver) UserName(uid int64) (string, error) {
	return r.lookup(r.users, uid, func(id string) (string, error) {
		u, err := user.LookupId(id)
		if err != nil {
			var unknown user.UnknownUserIdError
			if errors.As(err, &unknown) {
				return "", fmt.Errorf("user %s: %w", id, ErrNotFound)
			}
			return "", err
		}
		return u.Username, nil
	})
}

// GroupName returns the group name for gid.
func (r *OSIdentityResolver) GroupName(gid int64) (string, error) {
	return r.lookup(r.groups, gid, func(id string) (string, error) {
		g, err := user.LookupGroupId(id)
		if err != nil {
			var unknown user.UnknownGroupIdError
			if errors.As(err, &unknown) {
				return "", fmt.Errorf("group %s: %w", id, ErrNotFound)
			}
			return "", err
		}
		return g.Name, nil
	})
}

// lookup consults cache before calling find. Failures are not cached.
func (r *OSIdentityResolver) lookup(cache map[int64]string, id int64, find func(string) (string, error)) (string, error) {
	r.mu.Lock()
	name, ok := cache[id]
	r.mu.Unlock()
	if ok {
		return name, nil
	}

	name, err := find(strconv.FormatInt(id, 10))
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	cache[id] = name
	r.mu.Unlock()
	return name, nil
}

package testutil

import (
	"fmt"
	"io/fs"
	"sync"
)

// StaticIdentityResolver resolves ownership from in-memory tables. Every
// path reports the same uid and gid unless overridden by name, which suits
// afero.MemMapFs where FileInfo carries no stat data.
type StaticIdentityResolver struct {
	mu     sync.Mutex
	uid    int64
	gid    int64
	byName map[string][2]int64
	users  map[int64]string
	groups map[int64]string
}

// NewStaticIdentityResolver maps uid 1000 to "alice" and gid 1000 to "staff".
func NewStaticIdentityResolver() *StaticIdentityResolver {
	return &StaticIdentityResolver{
		uid:    1000,
		gid:    1000,
		byName: make(map[string][2]int64),
		users:  map[int64]string{0: "root", 1000: "alice", 1001: "bob"},
		groups: map[int64]string{0: "wheel", 1000: "staff", 1001: "admin"},
	}
}

// SetOwner makes entries with the given base name report uid and gid.
func (r *StaticIdentityResolver) SetOwner(name string, uid, gid int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byName[name] = [2]int64{uid, gid}
}

// IDs returns the override for info.Name(), or the default ids.
func (r *StaticIdentityResolver) IDs(info fs.FileInfo) (int64, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ids, ok := r.byName[info.Name()]; ok {
		return ids[0], ids[1], nil
	}
	return r.uid, r.gid, nil
}

func (r *StaticIdentityResolver) UserName(uid int64) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if name, ok := r.users[uid]; ok {
		return name, nil
	}
	return "", fmt.Errorf("no user with uid %d", uid)
}

func (r *StaticIdentityResolver) GroupName(gid int64) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if name, ok := r.groups[gid]; ok {
		return name, nil
	}
	return "", fmt.Errorf("no group with gid %d", gid)
}

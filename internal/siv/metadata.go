package siv

import (
	"fmt"
	"io/fs"
	"time"

	"github.com/spf13/afero"
)

// UnknownIdentity replaces unresolvable owner or group names under PolicyPlaceholder.
const UnknownIdentity = "unknown"

// IdentityPolicy decides what happens when a uid or gid has no name.
type IdentityPolicy string

const (
	// PolicyStrict fails the walk with an *IdentityError.
	PolicyStrict IdentityPolicy = "strict"
	// PolicyPlaceholder records UnknownIdentity instead.
	PolicyPlaceholder IdentityPolicy = "placeholder"
)

// ParseIdentityPolicy validates a configured policy. Empty means PolicyStrict.
func ParseIdentityPolicy(s string) (IdentityPolicy, error) {
	switch p := IdentityPolicy(s); p {
	case "":
		return PolicyStrict, nil
	case PolicyStrict, PolicyPlaceholder:
		return p, nil
	default:
		return "", fmt.Errorf("unknown identity policy: %q", s)
	}
}

// IdentityResolver maps file ownership to account names. Implementations
// must be safe for concurrent use.
type IdentityResolver interface {
	// IDs extracts the numeric owner and group from stat data.
	IDs(info fs.FileInfo) (uid, gid int64, err error)
	UserName(uid int64) (string, error)
	GroupName(gid int64) (string, error)
}

// Metadata is everything about a path except its content digest.
type Metadata struct {
	Owner   string
	Group   string
	Mode    string
	ModTime time.Time
	Size    int64
	IsDir   bool
	Regular bool
}

// MetadataExtractor stats paths and resolves their ownership.
type MetadataExtractor struct {
	fs       afero.Fs
	resolver IdentityResolver
	policy   IdentityPolicy
}

// NewMetadataExtractor creates an extractor. An empty policy means PolicyStrict.
func NewMetadataExtractor(fsys afero.Fs, resolver IdentityResolver, policy IdentityPolicy) *MetadataExtractor {
	if policy == "" {
		policy = PolicyStrict
	}
	return &MetadataExtractor{fs: fsys, resolver: resolver, policy: policy}
}

// Extract stats path, following symlinks, and returns its metadata.
func (m *MetadataExtractor) Extract(path string) (*Metadata, error) {
	info, err := m.fs.Stat(path)
	if err != nil {
		return nil, &IOError{Op: "stat", Path: path, Err: err}
	}

	uid, gid, err := m.resolver.IDs(info)
	if err != nil {
		return nil, &IOError{Op: "stat", Path: path, Err: err}
	}

	owner, err := m.resolver.UserName(uid)
	if err != nil {
		if owner, err = m.unresolved(path, "user", uid, err); err != nil {
			return nil, err
		}
	}
	group, err := m.resolver.GroupName(gid)
	if err != nil {
		if group, err = m.unresolved(path, "group", gid, err); err != nil {
			return nil, err
		}
	}

	return &Metadata{
		Owner:   owner,
		Group:   group,
		Mode:    FormatMode(info.Mode()),
		ModTime: info.ModTime(),
		Size:    info.Size(),
		IsDir:   info.IsDir(),
		Regular: info.Mode().IsRegular(),
	}, nil
}

func (m *MetadataExtractor) unresolved(path, kind string, id int64, cause error) (string, error) {
	if m.policy == PolicyPlaceholder {
		return UnknownIdentity, nil
	}
	return "", &IdentityError{Path: path, Kind: kind, ID: id, Err: cause}
}

//go:build unix

package fs

import (
	"fmt"
	"io/fs"
	"syscall"
)

// IDs extracts the owning uid and gid from Unix stat data.
func (r *OSIdentityResolver) IDs(info fs.FileInfo) (int64, int64, error) {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, 0, fmt.Errorf("cannot extract stat data: expected *syscall.Stat_t, got %T", info.Sys())
	}
	return int64(stat.Uid), int64(stat.Gid), nil
}

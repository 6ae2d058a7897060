//go:build !unix

package fs

import (
	"fmt"
	"io/fs"
	"runtime"
)

// IDs is not supported off Unix; ownership has no uid/gid form there.
func (r *OSIdentityResolver) IDs(info fs.FileInfo) (int64, int64, error) {
	return 0, 0, fmt.Errorf("ownership lookup not supported on %s", runtime.GOOS)
}

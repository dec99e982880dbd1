package staging

import (
	"os"

	"github.com/otiai10/copy"
)

// CopyTree copies src to dst. Regular files keep their permission bits,
// symlinks are recreated as symlinks and directories are walked in lexical
// order. dst must not exist.
func CopyTree(src, dst string) error {
	if _, err := os.Lstat(dst); err == nil {
		return &os.PathError{Op: "copy", Path: dst, Err: os.ErrExist}
	}

	return copy.Copy(src, dst, copy.Options{
		OnSymlink: func(string) copy.SymlinkAction {
			return copy.Shallow
		},
		PermissionControl: copy.PerservePermission,
		Sync:              true,
	})
}

//go:build !unix

package workdir

import "os"

// restorePermissions sets path's permission bits to perm (9 bits).
func restorePermissions(path string, perm uint16) error {
	return os.Chmod(path, os.FileMode(perm))
}

//go:build !unix

package timeline

import "os"

// readPermissions falls back to os.Stat's portable mode bits on platforms
// without POSIX permission bits.
func readPermissions(path string) (uint16, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return uint16(fi.Mode().Perm()), nil
}

// restorePermissions sets path's permission bits to perm (9 bits).
func restorePermissions(path string, perm uint16) error {
	return os.Chmod(path, os.FileMode(perm))
}

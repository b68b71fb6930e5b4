//go:build unix

package workdir

import "golang.org/x/sys/unix"

// restorePermissions sets path's permission bits to perm (9 bits), the
// same direct unix.Chmod the timeline package uses rather than routing
// through os.Chmod's broader portable mode bits.
func restorePermissions(path string, perm uint16) error {
	return unix.Chmod(path, uint32(perm))
}

//go:build unix

package timeline

import "golang.org/x/sys/unix"

// readPermissions reads the raw POSIX permission bits of path, bypassing
// os.Stat's portable (but indirect) mode translation in favor of reading
// st_mode directly, per SPEC_FULL.md's golang.org/x/sys wiring note.
func readPermissions(path string) (uint16, error) {
	var stat unix.Stat_t
	if err := unix.Stat(path, &stat); err != nil {
		return 0, err
	}
	return uint16(stat.Mode & 0777), nil
}

// restorePermissions sets path's permission bits to perm (9 bits).
func restorePermissions(path string, perm uint16) error {
	return unix.Chmod(path, uint32(perm))
}

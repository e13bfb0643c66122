//go:build unix

package observability

import "syscall"

// diskFreeGB returns the gigabytes free on the filesystem holding path.
func diskFreeGB(path string) (int64, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return 0, err
	}
	return int64(stat.Bavail) * int64(stat.Bsize) / (1024 * 1024 * 1024), nil
}

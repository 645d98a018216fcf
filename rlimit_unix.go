//go:build unix

package proxyscraperchecker

import "golang.org/x/sys/unix"

// raiseNoFileLimit raises the process's soft RLIMIT_NOFILE to its hard
// limit, so a large max_concurrent_checks doesn't get starved of file
// descriptors for outbound probe connections. Grounded on spec.md 4.6/9 ("a
// checker worth its name must be able to push the soft fd limit up to the
// hard limit on unix"); no example repo does this, so the only option
// besides hand-rolling it against golang.org/x/sys/unix would be the
// equivalent stdlib syscall.Rlimit call, which x/sys/unix makes portable
// across unix-likes without per-GOOS fields.
func raiseNoFileLimit() (uint64, error) {
	var rlim unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &rlim); err != nil {
		return 0, err
	}

	if rlim.Cur >= rlim.Max {
		return rlim.Cur, nil
	}

	rlim.Cur = rlim.Max
	if err := unix.Setrlimit(unix.RLIMIT_NOFILE, &rlim); err != nil {
		return 0, err
	}
	return rlim.Cur, nil
}

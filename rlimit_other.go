//go:build !unix

package proxyscraperchecker

// raiseNoFileLimit is a no-op outside unix-likes: there's no portable
// RLIMIT_NOFILE equivalent, and the checker's worker count is bounded by
// config regardless.
func raiseNoFileLimit() (uint64, error) {
	return 0, nil
}

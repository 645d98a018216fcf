package proxyscraperchecker

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
)

// appDirectoryName names the per-user cache/local-data subdirectory this
// app uses, mirroring original_source/src/fs.rs's APP_DIRECTORY_NAME.
const appDirectoryName = "proxy_scraper_checker"

var (
	cacheDirOnce sync.Once
	cacheDirVal  string
	cacheDirErr  error
)

// CacheDir returns (creating if needed) the per-user cache directory this
// app stores IP-DB files under. Grounded on fs.rs::get_cache_path, adapted
// to os.UserCacheDir (Go's dirs::cache_dir equivalent).
func CacheDir() (string, error) {
	cacheDirOnce.Do(func() {
		base, err := os.UserCacheDir()
		if err != nil {
			cacheDirErr = fmt.Errorf("get user cache directory: %w", err)
			return
		}
		path := filepath.Join(base, appDirectoryName)
		if err := os.MkdirAll(path, 0o755); err != nil {
			cacheDirErr = fmt.Errorf("create cache directory %s: %w", path, err)
			return
		}
		cacheDirVal = path
	})
	return cacheDirVal, cacheDirErr
}

var (
	isDockerOnce sync.Once
	isDockerVal  bool
)

// IsDocker reports whether the process is running inside a Docker
// container, detected by the presence of /.dockerenv on Linux. Grounded on
// utils.rs::is_docker; the check is meaningless off Linux so it always
// returns false there, matching the original's #[cfg(not(target_os =
// "linux"))] branch.
func IsDocker() bool {
	isDockerOnce.Do(func() {
		if runtime.GOOS != "linux" {
			return
		}
		_, err := os.Stat("/.dockerenv")
		isDockerVal = err == nil
	})
	return isDockerVal
}

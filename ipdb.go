package proxyscraperchecker

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// IPDatabaseKind names one of the two MaxMind-format databases this app
// downloads and caches locally. Grounded on original_source/src/ipdb.rs's
// DbType.
type IPDatabaseKind int

const (
	IPDatabaseASN IPDatabaseKind = iota
	IPDatabaseCity
)

func (k IPDatabaseKind) name() string {
	if k == IPDatabaseASN {
		return "ASN"
	}
	return "geolocation"
}

func (k IPDatabaseKind) url() string {
	if k == IPDatabaseASN {
		return "https://raw.githubusercontent.com/P3TERX/GeoLite.mmdb/download/GeoLite2-ASN.mmdb"
	}
	return "https://raw.githubusercontent.com/P3TERX/GeoLite.mmdb/download/GeoLite2-City.mmdb"
}

func (k IPDatabaseKind) fileName() string {
	if k == IPDatabaseASN {
		return "asn_database.mmdb"
	}
	return "geolocation_database.mmdb"
}

// dbPath returns the cached mmdb's path on disk, under CacheDir.
func (k IPDatabaseKind) dbPath() (string, error) {
	dir, err := CacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, k.fileName()), nil
}

func (k IPDatabaseKind) etagPath() (string, error) {
	path, err := k.dbPath()
	if err != nil {
		return "", err
	}
	return path + ".etag", nil
}

func (k IPDatabaseKind) readETag() (string, error) {
	path, err := k.etagPath()
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read etag %s: %w", path, err)
	}
	return string(data), nil
}

func (k IPDatabaseKind) saveETag(etag string) error {
	path, err := k.etagPath()
	if err != nil {
		return err
	}
	if etag == "" {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove etag %s: %w", path, err)
		}
		return nil
	}
	if err := os.WriteFile(path, []byte(etag), 0o644); err != nil {
		return fmt.Errorf("write etag %s: %w", path, err)
	}
	return nil
}

// IPDatabaseDownloader downloads and caches the ASN/City mmdb files,
// conditionally via ETag so a re-run with an up-to-date cache costs one
// small HTTP round trip. Grounded on original_source/src/ipdb.rs::download;
// routed through the same retrying sharedHTTPClient as source scraping, per
// spec.md 9's resolved open question.
type IPDatabaseDownloader struct {
	http   *sharedHTTPClient
	log    *Logger
	events Broadcaster
}

// NewIPDatabaseDownloader builds a downloader sharing http with the scraper.
func NewIPDatabaseDownloader(http *sharedHTTPClient, log *Logger, events Broadcaster) *IPDatabaseDownloader {
	if events == nil {
		events = NopBroadcaster{}
	}
	return &IPDatabaseDownloader{http: http, log: log, events: events}
}

// Download fetches kind's mmdb file into the cache directory, skipping the
// body transfer (HTTP 304) when the cached copy's ETag still matches.
func (d *IPDatabaseDownloader) Download(ctx context.Context, kind IPDatabaseKind) error {
	dbPath, err := kind.dbPath()
	if err != nil {
		return fmt.Errorf("get %s database path: %w", kind.name(), err)
	}

	headers := map[string]string{}
	if _, err := os.Stat(dbPath); err == nil {
		if etag, err := kind.readETag(); err == nil && etag != "" {
			headers["If-None-Match"] = etag
		}
	}

	resp, err := d.fetchWithRetry(ctx, kind.url(), headers)
	if err != nil {
		return fmt.Errorf("download %s database: %w", kind.name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		d.log.Info("latest %s database is already cached at %s", kind.name(), dbPath)
		return nil
	}

	total := resp.ContentLength
	d.events.Publish(AppEvent{Kind: EventGeoDBTotal, Count: int(total)})

	file, err := os.Create(dbPath)
	if err != nil {
		return fmt.Errorf("create file %s: %w", dbPath, err)
	}
	defer file.Close()

	buf := make([]byte, 32*1024)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, err := file.Write(buf[:n]); err != nil {
				return fmt.Errorf("write to file %s: %w", dbPath, err)
			}
			d.events.Publish(AppEvent{Kind: EventGeoDBDownloaded, Count: n})
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return fmt.Errorf("read %s database response body: %w", kind.name(), readErr)
		}
	}

	if d.log.debug {
		if IsDocker() {
			d.log.Info("downloaded %s database to Docker volume (%s in container)", kind.name(), dbPath)
		} else {
			d.log.Info("downloaded %s database to %s", kind.name(), dbPath)
		}
	}

	return kind.saveETag(resp.Header.Get("ETag"))
}

// fetchWithRetry reuses sharedHTTPClient's backoff policy but returns the
// raw *http.Response (instead of FetchText's decoded string) so the caller
// can stream a large binary body and read a 304 status directly.
func (d *IPDatabaseDownloader) fetchWithRetry(ctx context.Context, target string, headers map[string]string) (*http.Response, error) {
	var lastErr error

	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, fmt.Errorf("build request for %s: %w", target, err)
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := d.http.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("fetch %s: %w", target, err)
			if attempt >= maxFetchRetries {
				break
			}
			delay, ok := d.http.retryDelay(nil, attempt)
			if !ok {
				break
			}
			if !sleepOrDone(ctx, delay) {
				return nil, ctx.Err()
			}
			continue
		}

		if resp.StatusCode == http.StatusNotModified || (resp.StatusCode >= 200 && resp.StatusCode < 300) {
			return resp, nil
		}

		respHeaders := resp.Header
		resp.Body.Close()
		lastErr = fmt.Errorf("fetch %s: status %d", target, resp.StatusCode)
		if !retryableStatuses[resp.StatusCode] || attempt >= maxFetchRetries {
			break
		}
		delay, ok := d.http.retryDelay(respHeaders, attempt)
		if !ok {
			break
		}
		if !sleepOrDone(ctx, delay) {
			return nil, ctx.Err()
		}
	}

	return nil, lastErr
}

func sleepOrDone(ctx context.Context, delay time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(delay):
		return true
	}
}

package media

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mediaIndex/core"
)

// ErrSourceUnreadable marks a media file that cannot be opened or decoded.
// ErrNoAudioStream marks a source without any audio stream. Both abort the
// job without retry.
var (
	ErrSourceUnreadable = errors.New("media source unreadable")
	ErrNoAudioStream    = errors.New("no audio stream in media")
)

const (
	downloadAttempts = 3
	downloadBackoff  = 2 * time.Second
)

// SupportedVideoExt reports whether path has a container extension the
// pipeline accepts for video jobs.
func SupportedVideoExt(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp4", ".avi", ".mkv", ".mov":
		return true
	}
	return false
}

// Resolve copies a local source or downloads a remote one into jobDir and
// returns the local path the extractors should read.
func Resolve(jobDir, sourcePath, sourceURL string) (string, error) {
	if sourcePath != "" {
		dst := filepath.Join(jobDir, "input"+filepath.Ext(sourcePath))
		if err := core.CopyFile(sourcePath, dst); err != nil {
			return "", fmt.Errorf("%w: copy %s: %v", ErrSourceUnreadable, sourcePath, err)
		}
		return dst, nil
	}
	dst := filepath.Join(jobDir, "input"+filepath.Ext(urlBase(sourceURL)))
	if err := download(sourceURL, dst); err != nil {
		return "", err
	}
	return dst, nil
}

func urlBase(u string) string {
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	return filepath.Base(u)
}

// download fetches url with a bounded attempt count and fixed backoff.
// Network failures are transient; only after the last attempt do they become
// fatal for the job.
func download(url, dst string) error {
	var lastErr error
	for attempt := 1; attempt <= downloadAttempts; attempt++ {
		if err := fetchOnce(url, dst); err != nil {
			lastErr = err
			log.Printf("download attempt %d/%d failed for %s: %v", attempt, downloadAttempts, url, err)
			if attempt < downloadAttempts {
				time.Sleep(downloadBackoff)
			}
			continue
		}
		return nil
	}
	return fmt.Errorf("download %s: %w", url, lastErr)
}

func fetchOnce(url, dst string) error {
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, resp.Body)
	return err
}

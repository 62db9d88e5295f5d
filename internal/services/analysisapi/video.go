package analysisapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
)

// VideoURL returns a playable URL for the uploaded video: the upload
// response's video_url when present (resolved against the base URL if
// relative), otherwise the backend's video endpoint for the job.
func (c *Client) VideoURL(handle JobHandle) string {
	if raw := strings.TrimSpace(handle.VideoURL); raw != "" {
		if ref, err := url.Parse(raw); err == nil {
			if ref.IsAbs() {
				return ref.String()
			}
			root := *c.base
			root.Path = strings.TrimRight(root.Path, "/") + "/"
			return root.ResolveReference(ref).String()
		}
	}
	if strings.TrimSpace(handle.ID) == "" {
		return ""
	}
	return c.base.JoinPath(videosPath, handle.ID).String()
}

// DownloadVideo streams the uploaded video for a job into dst and returns the
// number of bytes written.
func (c *Client) DownloadVideo(ctx context.Context, id string, dst io.Writer) (int64, error) {
	const op = "download video"
	endpoint, err := c.jobEndpoint(videosPath, id)
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("%s: build request: %w", op, err)
	}
	c.decorate(ctx, req)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, &NetworkError{Op: op, URL: endpoint, Err: err}
	}
	defer resp.Body.Close()

	if err := checkResponse(op, resp); err != nil {
		return 0, err
	}
	written, err := io.Copy(dst, resp.Body)
	if err != nil {
		return written, fmt.Errorf("%s: %w", op, err)
	}
	return written, nil
}

// SaveVideo downloads the video for a job to path. A lock file next to the
// target keeps concurrent invocations from writing the same file; the data
// lands in a temporary file that is renamed into place on success.
func (c *Client) SaveVideo(ctx context.Context, id, path string) (int64, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("create download directory: %w", err)
	}

	lockPath := path + ".lock"
	lock := flock.New(lockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return 0, fmt.Errorf("acquire download lock: %w", err)
	}
	if !locked {
		return 0, fmt.Errorf("%w: %s", ErrDownloadInProgress, path)
	}
	defer func() {
		_ = lock.Unlock()
		_ = os.Remove(lockPath)
	}()

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.part")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	written, err := c.DownloadVideo(ctx, id, tmp)
	if err != nil {
		return written, err
	}
	if err := tmp.Sync(); err != nil {
		return written, fmt.Errorf("sync video: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return written, fmt.Errorf("close video: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return written, fmt.Errorf("move video into place: %w", err)
	}
	committed = true
	return written, nil
}

package analysisapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
)

// UploadField is the multipart form field the backend reads the video from.
const UploadField = "file"

var videoExtensions = map[string]struct{}{
	".mp4":  {},
	".avi":  {},
	".mov":  {},
	".mkv":  {},
	".wmv":  {},
	".flv":  {},
	".webm": {},
}

// Upload is a video to submit. A non-positive Size means unknown; the upload
// is then judged empty only when Content reports a zero length.
type Upload struct {
	Filename string
	Content  io.Reader
	Size     int64
}

// OpenUpload validates a local video file and opens it for submission. The
// caller must Close the returned upload.
func OpenUpload(path string) (Upload, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Upload{}, fmt.Errorf("file does not exist: %s", path)
		}
		return Upload{}, fmt.Errorf("inspect file: %w", err)
	}
	if info.IsDir() {
		return Upload{}, fmt.Errorf("%s is a directory", path)
	}
	if info.Size() == 0 {
		return Upload{}, ErrEmptyUpload
	}
	upload := Upload{Filename: filepath.Base(path), Size: info.Size()}
	if err := upload.validate(); err != nil {
		return Upload{}, err
	}
	file, err := os.Open(path)
	if err != nil {
		return Upload{}, fmt.Errorf("open video: %w", err)
	}
	upload.Content = file
	return upload, nil
}

// IsVideoFile reports whether name carries an extension the backend accepts.
func IsVideoFile(name string) bool {
	_, ok := videoExtensions[strings.ToLower(filepath.Ext(name))]
	return ok
}

// Close releases the upload content when it is closable.
func (u Upload) Close() error {
	if closer, ok := u.Content.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (u Upload) validate() error {
	if u.Size <= 0 {
		if sized, ok := u.Content.(interface{ Len() int }); ok && sized.Len() == 0 {
			return ErrEmptyUpload
		}
	}
	if !IsVideoFile(u.Filename) {
		return fmt.Errorf("%w: %q", ErrUnsupportedVideo, u.Filename)
	}
	return nil
}

// SubmitJob uploads a video as multipart form data and returns the handle
// the backend assigned. The body is streamed, never buffered in full.
func (c *Client) SubmitJob(ctx context.Context, upload Upload) (JobHandle, error) {
	if upload.Content == nil {
		return JobHandle{}, ErrEmptyUpload
	}
	if err := upload.validate(); err != nil {
		return JobHandle{}, err
	}

	const op = "submit job"
	endpoint := c.base.JoinPath(uploadPath).String()

	pr, pw := io.Pipe()
	defer pr.Close()
	form := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeUploadForm(form, upload))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, pr)
	if err != nil {
		return JobHandle{}, fmt.Errorf("%s: build request: %w", op, err)
	}
	c.decorate(ctx, req)
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return JobHandle{}, &NetworkError{Op: op, URL: endpoint, Err: err}
	}
	defer resp.Body.Close()

	if err := checkResponse(op, resp); err != nil {
		return JobHandle{}, err
	}
	var handle JobHandle
	if err := json.NewDecoder(resp.Body).Decode(&handle); err != nil {
		return JobHandle{}, fmt.Errorf("%s: decode response: %w", op, err)
	}
	if strings.TrimSpace(handle.ID) == "" {
		return JobHandle{}, fmt.Errorf("%s: response missing job_id", op)
	}
	if handle.Filename == "" {
		handle.Filename = upload.Filename
	}
	if handle.Status == "" {
		handle.Status = StatusPending
	}
	return handle, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func writeUploadForm(form *multipart.Writer, upload Upload) error {
	contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(upload.Filename)))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename="%s"`,
		UploadField, quoteEscaper.Replace(filepath.Base(upload.Filename))))
	header.Set("Content-Type", contentType)

	part, err := form.CreatePart(header)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, upload.Content); err != nil {
		return fmt.Errorf("stream upload: %w", err)
	}
	return form.Close()
}

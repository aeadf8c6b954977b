package client

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/sakif/cliplet/internal/model"
)

// FileInfo is what Upload learned about a local file before sending it.
type FileInfo struct {
	Name     string
	Size     int64
	MimeType string
	Type     model.ClipType
	Width    *int
	Height   *int
}

// Inspect sniffs the MIME type from the content and, for images, reads the
// dimensions from the header. A file whose dimensions cannot be decoded is
// still an image, just without width and height.
func Inspect(name string, data []byte) FileInfo {
	mtype := mimetype.Detect(data)
	info := FileInfo{
		Name:     filepath.Base(name),
		Size:     int64(len(data)),
		MimeType: mtype.String(),
	}
	info.Type = model.DetectClipType(info.MimeType)

	if info.Type == model.ClipImage {
		if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
			info.Width, info.Height = &cfg.Width, &cfg.Height
		}
	}
	return info
}

// Upload sends the file at path to the bucket through a presigned URL and
// registers it as a clip.
func (c *Client) Upload(ctx context.Context, path string) (*Clip, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("client: %w", err)
	}
	if st.IsDir() {
		return nil, fmt.Errorf("client: %s is a directory", path)
	}
	if st.Size() > MaxUploadSize {
		return nil, fmt.Errorf("client: %s is %d bytes, the limit is %d", path, st.Size(), MaxUploadSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("client: %w", err)
	}
	return c.UploadBytes(ctx, path, data)
}

// UploadBytes is Upload for content already in memory. name supplies the
// original file name.
func (c *Client) UploadBytes(ctx context.Context, name string, data []byte) (*Clip, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("client: %s is empty", name)
	}
	info := Inspect(name, data)

	var up uploadURL
	err := check(c.request(ctx).
		SetBody(uploadURLRequest{OriginalFileSize: info.Size, OriginalMimeType: info.MimeType}).
		SetResult(&up).
		Post("/api/clips/upload-url"))
	if err != nil {
		return nil, err
	}

	resp, err := c.bucket.R().
		SetContext(ctx).
		SetHeader("Content-Type", info.MimeType).
		SetBody(data).
		Put(up.UploadURL)
	if err != nil {
		return nil, fmt.Errorf("client: uploading to bucket: %w", err)
	}
	if resp.StatusCode() != http.StatusOK && resp.StatusCode() != http.StatusNoContent {
		return nil, fmt.Errorf("client: bucket rejected upload: %s", resp.Status())
	}

	return c.CreateClip(ctx, NewClip{
		Type:             info.Type,
		FileKey:          up.FileKey,
		FileSize:         info.Size,
		MimeType:         info.MimeType,
		OriginalFileName: info.Name,
		Width:            info.Width,
		Height:           info.Height,
	})
}

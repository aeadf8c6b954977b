// Package client talks to the Cliplet HTTP API on behalf of a signed-in user.
//
// Authentication is the same auth_token cookie the browser carries; copy its
// value after signing in on the web page. Uploads go straight to the bucket
// through a presigned URL, never through the API server.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"

	"github.com/sakif/cliplet/internal/model"
)

// MaxUploadSize mirrors the server's limit so oversized files fail before any
// bytes are sent.
const MaxUploadSize = 10 << 20

const userAgent = "cliplet-cli"

// ErrUnauthorized is returned for a 401, i.e. a missing or expired token.
var ErrUnauthorized = errors.New("client: not signed in or session expired")

// APIError is a non-2xx response in the server's error envelope.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if e.Field != "" {
		return fmt.Sprintf("%s (%s): %s", e.Code, e.Field, msg)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *APIError) Unwrap() error {
	if e.Status == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	return nil
}

type Clip struct {
	ID        string         `json:"id"`
	Type      model.ClipType `json:"type"`
	Content   string         `json:"content"`
	FileName  string         `json:"fileName,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

type Metadata struct {
	Size     int64  `json:"size"`
	MimeType string `json:"mimeType,omitempty"`
	FileName string `json:"fileName"`
	Width    *int   `json:"width,omitempty"`
	Height   *int   `json:"height,omitempty"`
	Duration int    `json:"duration,omitempty"`
}

type ClipDetail struct {
	Clip
	Metadata *Metadata `json:"metadata,omitempty"`
}

// NewClip is the body of POST /api/clips.
type NewClip struct {
	Type             model.ClipType `json:"type"`
	Content          string         `json:"content,omitempty"`
	FileKey          string         `json:"fileKey,omitempty"`
	FileSize         int64          `json:"fileSize,omitempty"`
	MimeType         string         `json:"mimeType,omitempty"`
	OriginalFileName string         `json:"originalFileName,omitempty"`
	Width            *int           `json:"width,omitempty"`
	Height           *int           `json:"height,omitempty"`
	Duration         int            `json:"duration,omitempty"`
}

type uploadURLRequest struct {
	OriginalFileSize int64  `json:"originalFileSize"`
	OriginalMimeType string `json:"originalMimeType"`
}

type uploadURL struct {
	UploadURL string `json:"uploadUrl"`
	FileKey   string `json:"fileKey"`
}

// Client is safe for concurrent use.
type Client struct {
	api *resty.Client
	// bucket carries no cookie: the session token must never reach the
	// object store.
	bucket *resty.Client
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.api.SetTimeout(d)
		c.bucket.SetTimeout(d)
	}
}

// New returns a client for the server at baseURL authenticated with token.
func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		api:    resty.New().SetBaseURL(strings.TrimRight(baseURL, "/")),
		bucket: resty.New(),
	}
	if token != "" {
		c.api.SetCookie(&http.Cookie{Name: "auth_token", Value: token})
	}
	c.api.
		SetJSONMarshaler(json.Marshal).
		SetJSONUnmarshaler(json.Unmarshal).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", userAgent).
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			// Only idempotent reads are retried.
			if r == nil || r.Request == nil || r.Request.Method != http.MethodGet {
				return false
			}
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		})
	c.bucket.SetHeader("User-Agent", userAgent)

	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) request(ctx context.Context) *resty.Request {
	return c.api.R().SetContext(ctx).SetError(&APIError{})
}

// check turns a non-2xx response into an *APIError.
func check(resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("client: %w", err)
	}
	if !resp.IsError() {
		return nil
	}
	apiErr, ok := resp.Error().(*APIError)
	if !ok || apiErr == nil || apiErr.Code == "" {
		apiErr = &APIError{Code: strings.ToLower(strings.ReplaceAll(http.StatusText(resp.StatusCode()), " ", "_"))}
	}
	apiErr.Status = resp.StatusCode()
	return apiErr
}

// Me returns the signed-in user.
func (c *Client) Me(ctx context.Context) (*model.User, error) {
	var user model.User
	if err := check(c.request(ctx).SetResult(&user).Get("/api/me")); err != nil {
		return nil, err
	}
	return &user, nil
}

// ListClips returns the user's clips. filter is "all" or a clip type; sort is
// "newest" or "oldest". Empty values use the server defaults.
func (c *Client) ListClips(ctx context.Context, filter, sort string) ([]Clip, error) {
	req := c.request(ctx)
	if filter != "" {
		req.SetQueryParam("filter", filter)
	}
	if sort != "" {
		req.SetQueryParam("sort", sort)
	}

	var clips []Clip
	if err := check(req.SetResult(&clips).Get("/api/clips")); err != nil {
		return nil, err
	}
	return clips, nil
}

func (c *Client) GetClip(ctx context.Context, id string) (*ClipDetail, error) {
	var detail ClipDetail
	err := check(c.request(ctx).SetPathParam("id", id).SetResult(&detail).Get("/api/clips/{id}"))
	if err != nil {
		return nil, err
	}
	return &detail, nil
}

// CreateClip registers a clip. Binary clips must already be in the bucket.
func (c *Client) CreateClip(ctx context.Context, in NewClip) (*Clip, error) {
	var clip Clip
	if err := check(c.request(ctx).SetBody(in).SetResult(&clip).Post("/api/clips")); err != nil {
		return nil, err
	}
	return &clip, nil
}

func (c *Client) CreateText(ctx context.Context, text string) (*Clip, error) {
	return c.CreateClip(ctx, NewClip{Type: model.ClipText, Content: text})
}

func (c *Client) Delete(ctx context.Context, id string) error {
	return check(c.request(ctx).SetPathParam("id", id).Delete("/api/clips/{id}"))
}

// Download streams a clip's object into w and returns the file name the
// server suggested.
func (c *Client) Download(ctx context.Context, id string, w io.Writer) (string, error) {
	resp, err := c.api.R().
		SetContext(ctx).
		SetPathParam("id", id).
		SetDoNotParseResponse(true).
		Get("/api/clips/{id}/download")
	if err != nil {
		return "", fmt.Errorf("client: %w", err)
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.IsError() {
		apiErr := &APIError{Status: resp.StatusCode()}
		if err := json.NewDecoder(io.LimitReader(body, 1<<16)).Decode(apiErr); err != nil || apiErr.Code == "" {
			apiErr.Code = "download_failed"
		}
		return "", apiErr
	}

	if _, err := io.Copy(w, body); err != nil {
		return "", fmt.Errorf("client: reading download: %w", err)
	}
	return fileNameFrom(resp.Header().Get("Content-Disposition"), id), nil
}

// fileNameFrom reads the filename out of a Content-Disposition header.
// mime.ParseMediaType decodes the RFC 5987 filename* form into "filename".
func fileNameFrom(disposition, fallback string) string {
	_, params, err := mime.ParseMediaType(disposition)
	if err != nil || params["filename"] == "" {
		return fallback
	}
	return params["filename"]
}

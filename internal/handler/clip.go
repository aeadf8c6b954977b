package handler

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/sakif/cliplet/internal/service"
)

// ClipHandler exposes the clip endpoints. Every method runs behind
// RequireAuth and receives the caller's id explicitly.
type ClipHandler struct {
	clips  *service.ClipService
	logger *slog.Logger
}

func NewClipHandler(clips *service.ClipService, logger *slog.Logger) *ClipHandler {
	return &ClipHandler{clips: clips, logger: logger}
}

type uploadURLRequest struct {
	OriginalFileSize int64  `json:"originalFileSize"`
	OriginalMimeType string `json:"originalMimeType"`
}

// HandleUploadURL hands out a presigned PUT URL.
//
// HTTP: POST /api/clips/upload-url
// REQUEST BODY: {"originalFileSize": 1024, "originalMimeType": "image/png"}
// RESPONSE: 201 {"uploadUrl": "...", "fileKey": "<userID>/<uuid>"}
func (h *ClipHandler) HandleUploadURL(w http.ResponseWriter, r *http.Request, userID string) {
	var req uploadURLRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	up, err := h.clips.CreateUploadURL(r.Context(), userID, req.OriginalFileSize, req.OriginalMimeType)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, up)
}

// HandleCreate registers a clip.
//
// HTTP: POST /api/clips
// REQUEST BODY (text):  {"type": "text", "content": "hello"}
// REQUEST BODY (image): {"type": "image", "fileKey": "...", "fileSize": 1024,
//
//	"mimeType": "image/png", "originalFileName": "a.png", "width": 640, "height": 480}
func (h *ClipHandler) HandleCreate(w http.ResponseWriter, r *http.Request, userID string) {
	var in service.CreateClipInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	clip, err := h.clips.CreateClip(r.Context(), userID, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, clip)
}

// HandleList returns the caller's clips.
//
// HTTP: GET /api/clips?filter=image&sort=newest
func (h *ClipHandler) HandleList(w http.ResponseWriter, r *http.Request, userID string) {
	q := r.URL.Query()
	clips, err := h.clips.ListClips(r.Context(), userID, q.Get("filter"), q.Get("sort"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, clips)
}

// HandleGet returns one clip with its metadata.
//
// HTTP: GET /api/clips/{id}
func (h *ClipHandler) HandleGet(w http.ResponseWriter, r *http.Request, userID, id string) {
	clip, err := h.clips.GetClip(r.Context(), userID, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, clip)
}

// HandleDelete removes a clip and its stored object.
//
// HTTP: DELETE /api/clips/{id}
func (h *ClipHandler) HandleDelete(w http.ResponseWriter, r *http.Request, userID, id string) {
	if err := h.clips.DeleteClip(r.Context(), userID, id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

// HandleDownload streams the stored object as an attachment.
//
// HTTP: GET /api/clips/{id}/download
//
// The file name is sent in the RFC 5987 form so names outside ASCII survive.
func (h *ClipHandler) HandleDownload(w http.ResponseWriter, r *http.Request, userID, id string) {
	dl, err := h.clips.OpenDownload(r.Context(), userID, id)
	if err != nil {
		writeError(w, err)
		return
	}
	defer dl.Object.Body.Close()

	contentType := dl.Object.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", contentDisposition(dl.FileName))
	if dl.Object.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(dl.Object.Size, 10))
	}
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, dl.Object.Body); err != nil {
		// Status is already sent; the client sees a truncated body.
		h.logger.Warn("download interrupted",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
	}
}

func contentDisposition(name string) string {
	escaped := strings.ReplaceAll(url.QueryEscape(name), "+", "%20")
	return fmt.Sprintf("attachment; filename*=UTF-8''%s", escaped)
}

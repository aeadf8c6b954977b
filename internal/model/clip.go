package model

import (
	"fmt"
	"strings"
	"time"
)

// ClipType is the discriminator stored in clips.type. It also names the
// satellite table holding the clip's payload.
type ClipType string

const (
	ClipText     ClipType = "text"
	ClipImage    ClipType = "image"
	ClipVideo    ClipType = "video"
	ClipAudio    ClipType = "audio"
	ClipDocument ClipType = "document"
	ClipFile     ClipType = "file"
)

// ClipTypes lists every type in schema order.
var ClipTypes = []ClipType{ClipText, ClipImage, ClipVideo, ClipAudio, ClipDocument, ClipFile}

// ParseClipType validates s against the known clip types.
func ParseClipType(s string) (ClipType, error) {
	for _, t := range ClipTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("model: unknown clip type %q", s)
}

// IsBinary reports whether clips of this type reference a bucket object.
func (t ClipType) IsBinary() bool {
	return t != ClipText
}

// Clip is the header record. Payload carries the satellite row and its
// Type() always equals Type.
type Clip struct {
	ID        string
	Type      ClipType
	UserID    string
	Payload   Payload
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewClip builds a header for payload owned by userID.
func NewClip(userID string, payload Payload) *Clip {
	return &Clip{
		Type:    payload.Type(),
		UserID:  userID,
		Payload: payload,
	}
}

// Object returns the stored object of a binary clip, or nil for text.
func (c *Clip) Object() *StoredObject {
	if o, ok := c.Payload.(interface{ Stored() *StoredObject }); ok {
		return o.Stored()
	}
	return nil
}

// Payload is the tagged variant held by a clip. One implementation exists per
// satellite table.
type Payload interface {
	Type() ClipType
}

// StoredObject is the part shared by every binary payload.
type StoredObject struct {
	Key          string
	Size         int64
	MimeType     string
	OriginalName string
}

func (o *StoredObject) Stored() *StoredObject { return o }

type Text struct {
	Content string
}

type Image struct {
	StoredObject
	Width  *int
	Height *int
}

type Video struct {
	StoredObject
	Width    *int
	Height   *int
	Duration int // seconds
}

type Audio struct {
	StoredObject
	Duration int // seconds
}

type Document struct {
	StoredObject
}

// File has no MIME type column; MimeType is always empty.
type File struct {
	StoredObject
}

func (*Text) Type() ClipType     { return ClipText }
func (*Image) Type() ClipType    { return ClipImage }
func (*Video) Type() ClipType    { return ClipVideo }
func (*Audio) Type() ClipType    { return ClipAudio }
func (*Document) Type() ClipType { return ClipDocument }
func (*File) Type() ClipType     { return ClipFile }

// Filter selects clips by type. The zero value and "all" select everything.
type Filter string

const FilterAll Filter = "all"

// ParseFilter accepts "", "all" or a clip type.
func ParseFilter(s string) (Filter, error) {
	if s == "" || s == string(FilterAll) {
		return FilterAll, nil
	}
	if _, err := ParseClipType(s); err != nil {
		return "", fmt.Errorf("model: unknown filter %q", s)
	}
	return Filter(s), nil
}

// ClipType returns the selected type, or nil when the filter is "all".
func (f Filter) ClipType() *ClipType {
	if f == "" || f == FilterAll {
		return nil
	}
	t := ClipType(f)
	return &t
}

// SortOrder orders clips by creation time.
type SortOrder string

const (
	SortNewest SortOrder = "newest"
	SortOldest SortOrder = "oldest"
)

// ParseSort maps "newest" to descending; every other value sorts ascending.
func ParseSort(s string) SortOrder {
	if s == string(SortNewest) {
		return SortNewest
	}
	return SortOldest
}

var documentMimeTypes = map[string]bool{
	"application/pdf":    true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   true,
	"application/vnd.ms-excel":                                                  true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":         true,
	"application/vnd.ms-powerpoint":                                             true,
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": true,
	"application/rtf":                         true,
	"application/vnd.oasis.opendocument.text": true,
	"application/vnd.oasis.opendocument.spreadsheet":  true,
	"application/vnd.oasis.opendocument.presentation": true,
	"text/plain": true,
	"text/csv":   true,
}

// DetectClipType classifies an upload by MIME type. Parameters such as
// "; charset=utf-8" are ignored.
func DetectClipType(mime string) ClipType {
	mime = strings.ToLower(strings.TrimSpace(mime))
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	switch {
	case strings.HasPrefix(mime, "image/"):
		return ClipImage
	case strings.HasPrefix(mime, "video/"):
		return ClipVideo
	case strings.HasPrefix(mime, "audio/"):
		return ClipAudio
	case documentMimeTypes[mime]:
		return ClipDocument
	}
	return ClipFile
}

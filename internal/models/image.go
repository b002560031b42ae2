package models

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

type ImageKind int

const (
	ImageNone ImageKind = iota
	ImageInline
	ImageRemote
)

// ImageRef is either inline image bytes (ephemeral, never written to the
// metadata store) or a durable URL. The zero value means "no image".
type ImageRef struct {
	kind     ImageKind
	data     []byte
	mimeType string
	url      string
}

func InlineImage(data []byte, mimeType string) ImageRef {
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	return ImageRef{kind: ImageInline, data: data, mimeType: mimeType}
}

func RemoteImage(url string) ImageRef {
	return ImageRef{kind: ImageRemote, url: url}
}

// ParseImageRef classifies a wire string. http(s) URLs are remote, data URIs
// and bare base64 payloads are decoded into inline bytes. An empty string is
// the zero ImageRef.
func ParseImageRef(s string) (ImageRef, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ImageRef{}, nil
	}
	if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
		return RemoteImage(s), nil
	}

	mimeType := "image/jpeg"
	payload := s
	if strings.HasPrefix(s, "data:") {
		header, body, ok := strings.Cut(s, ",")
		if !ok {
			return ImageRef{}, fmt.Errorf("%w: data uri without payload", ErrDecode)
		}
		meta := strings.TrimPrefix(header, "data:")
		mt, enc, _ := strings.Cut(meta, ";")
		if enc != "base64" {
			return ImageRef{}, fmt.Errorf("%w: data uri is not base64 encoded", ErrDecode)
		}
		if !strings.HasPrefix(mt, "image/") {
			return ImageRef{}, fmt.Errorf("%w: unsupported media type %q", ErrDecode, mt)
		}
		mimeType = mt
		payload = body
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return ImageRef{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if len(data) == 0 {
		return ImageRef{}, fmt.Errorf("%w: empty image payload", ErrDecode)
	}
	return InlineImage(data, mimeType), nil
}

func (r ImageRef) Kind() ImageKind  { return r.kind }
func (r ImageRef) IsZero() bool     { return r.kind == ImageNone }
func (r ImageRef) IsInline() bool   { return r.kind == ImageInline }
func (r ImageRef) IsRemote() bool   { return r.kind == ImageRemote }
func (r ImageRef) URL() string      { return r.url }
func (r ImageRef) Data() []byte     { return r.data }
func (r ImageRef) MimeType() string { return r.mimeType }

// Base64 returns the inline payload without the data uri header.
func (r ImageRef) Base64() string {
	if r.kind != ImageInline {
		return ""
	}
	return base64.StdEncoding.EncodeToString(r.data)
}

// String renders remote refs as their URL and inline refs as a data URI.
func (r ImageRef) String() string {
	switch r.kind {
	case ImageRemote:
		return r.url
	case ImageInline:
		return "data:" + r.mimeType + ";base64," + r.Base64()
	default:
		return ""
	}
}

func (r ImageRef) MarshalJSON() ([]byte, error) {
	if r.kind == ImageNone {
		return []byte("null"), nil
	}
	return json.Marshal(r.String())
}

func (r *ImageRef) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*r = ImageRef{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	ref, err := ParseImageRef(s)
	if err != nil {
		return err
	}
	*r = ref
	return nil
}

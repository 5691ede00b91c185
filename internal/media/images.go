package media

import (
	"context"
	"encoding/base64"
	"net/url"
	"strings"

	"clan-manager/internal/apperr"
)

const MaxImageBytes = 5 << 20

var allowedImageTypes = map[string]struct{}{
	"image/png":  {},
	"image/jpeg": {},
	"image/gif":  {},
	"image/webp": {},
}

type ImageUploader interface {
	UploadImage(ctx context.Context, imageSource, folder string) (string, error)
}

// Images turns user supplied image references into stored ones. Data URLs are
// uploaded when an uploader is configured and kept inline otherwise; http(s)
// links are stored as given.
type Images struct {
	uploader ImageUploader
}

func NewImages(uploader ImageUploader) *Images {
	return &Images{uploader: uploader}
}

func (i *Images) UploadsEnabled() bool {
	return i != nil && i.uploader != nil
}

func (i *Images) Store(ctx context.Context, source, folder string) (string, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return "", nil
	}

	if strings.HasPrefix(source, "data:") {
		if _, _, err := ParseDataURL(source); err != nil {
			return "", err
		}
		if !i.UploadsEnabled() {
			return source, nil
		}
		secureURL, err := i.uploader.UploadImage(ctx, source, folder)
		if err != nil {
			return "", apperr.Upstream("failed to upload image", err)
		}
		return secureURL, nil
	}

	parsed, err := url.Parse(source)
	if err != nil || (parsed.Scheme != "https" && parsed.Scheme != "http") || parsed.Host == "" {
		return "", apperr.Validation("image must be a data url or an http(s) link")
	}
	return source, nil
}

// ParseDataURL decodes a base64 image data URL and checks its type and size.
func ParseDataURL(source string) (string, []byte, error) {
	header, payload, ok := strings.Cut(strings.TrimPrefix(source, "data:"), ",")
	if !ok || !strings.HasSuffix(header, ";base64") {
		return "", nil, apperr.Validation("image must be a base64 data url")
	}

	contentType := strings.ToLower(strings.TrimSuffix(header, ";base64"))
	if _, ok := allowedImageTypes[contentType]; !ok {
		return "", nil, apperr.Validation("image must be png, jpeg, gif or webp")
	}
	if base64.StdEncoding.DecodedLen(len(payload)) > MaxImageBytes+2 {
		return "", nil, apperr.Validation("image must not exceed 5 MB")
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, apperr.Validation("image data is not valid base64")
	}
	if len(data) == 0 {
		return "", nil, apperr.Validation("image is empty")
	}
	if len(data) > MaxImageBytes {
		return "", nil, apperr.Validation("image must not exceed 5 MB")
	}

	return contentType, data, nil
}

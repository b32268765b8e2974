package publisher

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

const defaultImageType = "image/png"

var errEmptyImage = errors.New("empty image data")

// DecodeImage turns a data URI ("data:image/jpeg;base64,...") or bare base64
// into bytes and a content type. The content type defaults to image/png.
func DecodeImage(raw string) ([]byte, string, error) {
	raw = strings.TrimSpace(raw)
	contentType := defaultImageType

	if strings.HasPrefix(raw, "data:") {
		header, payload, ok := strings.Cut(raw, ",")
		if !ok {
			return nil, "", fmt.Errorf("malformed data URI")
		}
		meta := strings.TrimPrefix(header, "data:")
		if !strings.HasSuffix(meta, ";base64") {
			return nil, "", fmt.Errorf("data URI is not base64 encoded")
		}
		if mediaType := strings.TrimSuffix(meta, ";base64"); mediaType != "" {
			contentType = mediaType
		}
		raw = payload
	}

	if raw == "" {
		return nil, "", errEmptyImage
	}
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		// Some clients strip padding.
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(raw, "="))
		if err != nil {
			return nil, "", fmt.Errorf("invalid base64 image: %w", err)
		}
	}
	if len(data) == 0 {
		return nil, "", errEmptyImage
	}
	return data, contentType, nil
}

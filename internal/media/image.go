package media

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrInvalidImage is returned for anything that is not a base64 data URI
// holding a supported image.
var ErrInvalidImage = errors.New("media: invalid image")

// MaxImageBytes caps a decoded upload.
const MaxImageBytes = 10 << 20

// Image is a decoded upload ready for Store.Save.
type Image struct {
	Data        []byte
	ContentType string
	Ext         string
}

var extensions = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpg",
	"image/gif":  "gif",
	"image/webp": "webp",
}

// DecodeBase64Image parses "data:image/<type>;base64,<payload>".
//
// The declared type is not trusted: the content type is sniffed from the
// decoded bytes and must be one of png, jpeg, gif or webp.
func DecodeBase64Image(uri string) (*Image, error) {
	header, payload, ok := strings.Cut(uri, ",")
	if !ok || !strings.HasPrefix(header, "data:image/") || !strings.HasSuffix(header, ";base64") {
		return nil, fmt.Errorf("%w: expected a data:image/<type>;base64 URI", ErrInvalidImage)
	}

	if base64.StdEncoding.DecodedLen(len(payload)) > MaxImageBytes+3 {
		return nil, fmt.Errorf("%w: larger than %d bytes", ErrInvalidImage, MaxImageBytes)
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: bad base64 payload: %v", ErrInvalidImage, err)
	}
	return DetectImage(data)
}

// DetectImage sniffs raw bytes, e.g. a file read by the importer.
func DetectImage(data []byte) (*Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidImage)
	}
	if len(data) > MaxImageBytes {
		return nil, fmt.Errorf("%w: larger than %d bytes", ErrInvalidImage, MaxImageBytes)
	}

	contentType := http.DetectContentType(data)
	ext, ok := extensions[contentType]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported content type %s", ErrInvalidImage, contentType)
	}

	return &Image{Data: data, ContentType: contentType, Ext: ext}, nil
}

// ContentTypeForKey guesses the content type from a key's extension.
func ContentTypeForKey(key string) string {
	dot := strings.LastIndexByte(key, '.')
	if dot < 0 {
		return "application/octet-stream"
	}
	ext := strings.ToLower(key[dot+1:])
	if ext == "jpeg" {
		ext = "jpg"
	}
	for ct, e := range extensions {
		if e == ext {
			return ct
		}
	}
	return "application/octet-stream"
}

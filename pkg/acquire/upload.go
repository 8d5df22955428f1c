package acquire

import (
	"bytes"
	"errors"
	"mime"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"github.com/sipeed/picocast/pkg/failure"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

var allowedUploadTypes = map[string]bool{
	"text/plain":               true,
	"application/octet-stream": true,
}

type textDecoder struct {
	name   string
	decode func([]byte) (string, error)
}

var errInvalidEncoding = errors.New("invalid byte sequence")

// uploadDecoders are tried in order; the first one that succeeds wins.
var uploadDecoders = []textDecoder{
	{"utf-8", func(b []byte) (string, error) {
		if bytes.HasPrefix(b, utf8BOM) || !utf8.Valid(b) {
			return "", errInvalidEncoding
		}
		return string(b), nil
	}},
	{"utf-8-bom", func(b []byte) (string, error) {
		if !bytes.HasPrefix(b, utf8BOM) || !utf8.Valid(b[len(utf8BOM):]) {
			return "", errInvalidEncoding
		}
		out, err := unicode.UTF8BOM.NewDecoder().Bytes(b)
		if err != nil {
			return "", err
		}
		return string(out), nil
	}},
	{"iso-8859-1", func(b []byte) (string, error) {
		out, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
		return string(out), err
	}},
	{"windows-1252", func(b []byte) (string, error) {
		out, err := charmap.Windows1252.NewDecoder().Bytes(b)
		return string(out), err
	}},
}

func (a *Acquirer) decodeUpload(doc UploadedDocument) (string, string, error) {
	if doc.Name == "" && doc.Content == nil {
		return "", "", failure.Security(component, "No file uploaded")
	}
	if len(doc.Content) > a.maxFileSize {
		return "", "", failure.Security(component, "File too large: %d bytes (max: %d)", len(doc.Content), a.maxFileSize)
	}

	mediaType, _, err := mime.ParseMediaType(doc.MediaType)
	if err != nil || !allowedUploadTypes[strings.ToLower(mediaType)] {
		return "", "", failure.Security(component, "Invalid file type: %s. Only .txt files are allowed.", doc.MediaType)
	}
	if !strings.HasSuffix(strings.ToLower(doc.Name), ".txt") {
		return "", "", failure.Security(component, "Only .txt files are allowed")
	}

	for _, d := range uploadDecoders {
		text, err := d.decode(doc.Content)
		if err == nil {
			return text, d.name, nil
		}
	}
	return "", "", failure.Security(component, "Unable to decode file content. Please ensure it's a valid text file.")
}

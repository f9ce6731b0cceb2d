package fetch

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/blobprobe/blobprobe/internal/engine/types"
)

// HeaderFileSize carries the uncompressed payload size when the body is content-encoded.
const HeaderFileSize = "X-File-Size"

// Encoding tells whether the transport may have compressed the payload.
type Encoding int

const (
	EncodingIdentity Encoding = iota
	EncodingEncoded
)

func (e Encoding) String() string {
	if e == EncodingEncoded {
		return "encoded"
	}
	return "identity"
}

func (e Encoding) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

func (e *Encoding) UnmarshalText(text []byte) error {
	switch string(text) {
	case "encoded":
		*e = EncodingEncoded
	case "identity", "":
		*e = EncodingIdentity
	default:
		return fmt.Errorf("unknown encoding %q", text)
	}
	return nil
}

// Declared holds the size-related response headers after parsing.
// Absent or invalid sizes are -1.
type Declared struct {
	Encoding        Encoding `json:"encoding"`
	ContentEncoding string   `json:"content_encoding,omitempty"`
	ContentLength   int64    `json:"content_length"`
	FileSize        int64    `json:"file_size"`
}

// ParseHeaders extracts the declared sizes. decoded reports that the HTTP client already
// stripped a Content-Encoding it negotiated itself, which still makes Content-Length unusable.
func ParseHeaders(h http.Header, decoded bool) Declared {
	d := Declared{
		ContentEncoding: strings.TrimSpace(h.Get("Content-Encoding")),
		ContentLength:   parseSize(h.Get("Content-Length")),
		FileSize:        parseSize(h.Get(HeaderFileSize)),
	}
	if decoded || (d.ContentEncoding != "" && !strings.EqualFold(d.ContentEncoding, "identity")) {
		d.Encoding = EncodingEncoded
	}
	return d
}

// ResolveTotal picks the expected payload size: X-File-Size for encoded bodies,
// Content-Length otherwise, and the requested size when the chosen header is unusable.
func (d Declared) ResolveTotal(sizeMB int) int64 {
	declared := d.ContentLength
	if d.Encoding == EncodingEncoded {
		declared = d.FileSize
	}
	if declared >= 0 {
		return declared
	}
	return int64(sizeMB) * types.MB
}

func parseSize(v string) int64 {
	v = strings.TrimSpace(v)
	if v == "" {
		return -1
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return -1
	}
	return n
}

package httpx

import (
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"
)

// Disposition values accepted by ServeDocument.
const (
	DispositionInline     = "inline"
	DispositionAttachment = "attachment"
)

// ETag returns a strong entity tag for data.
func ETag(data []byte) string {
	sum := blake2b.Sum256(data)
	return `"` + hex.EncodeToString(sum[:16]) + `"`
}

// ServeDocument writes a PDF with caching headers. A matching If-None-Match
// yields 304 without a body.
func ServeDocument(w http.ResponseWriter, r *http.Request, filename string, data []byte, modTime time.Time) {
	disposition := DispositionInline
	if strings.EqualFold(r.URL.Query().Get("disposition"), DispositionAttachment) {
		disposition = DispositionAttachment
	}
	etag := ETag(data)
	h := w.Header()
	h.Set("ETag", etag)
	h.Set("Cache-Control", "private, no-cache")
	if !modTime.IsZero() {
		h.Set("Last-Modified", modTime.UTC().Format(http.TimeFormat))
	}
	if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	h.Set("Content-Type", "application/pdf")
	h.Set("Content-Disposition", fmt.Sprintf("%s; filename=%q", disposition, filename))
	h.Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

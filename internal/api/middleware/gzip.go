package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzip"
)

// Gzip compresses text responses for clients that accept gzip. Responses
// whose Content-Type is not compressible, or that already carry a
// Content-Encoding, pass through untouched.
func Gzip(level int) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !strings.Contains(c.GetHeader("Accept-Encoding"), "gzip") {
			c.Next()
			return
		}

		w := &gzipWriter{ResponseWriter: c.Writer, level: level}
		c.Writer = w
		defer w.close()
		c.Next()
	}
}

type gzipWriter struct {
	gin.ResponseWriter
	level   int
	decided bool
	gz      *gzip.Writer
}

func (w *gzipWriter) decide() {
	if w.decided {
		return
	}
	w.decided = true

	h := w.Header()
	if h.Get("Content-Encoding") != "" || !Compressible(h.Get("Content-Type")) {
		return
	}
	gz, err := gzip.NewWriterLevel(w.ResponseWriter, w.level)
	if err != nil {
		return
	}
	h.Set("Content-Encoding", "gzip")
	h.Add("Vary", "Accept-Encoding")
	h.Del("Content-Length")
	w.gz = gz
}

func (w *gzipWriter) Write(b []byte) (int, error) {
	w.decide()
	if w.gz == nil {
		return w.ResponseWriter.Write(b)
	}
	return w.gz.Write(b)
}

func (w *gzipWriter) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

func (w *gzipWriter) close() {
	if w.gz != nil {
		_ = w.gz.Close()
	}
}

// Compressible reports whether a Content-Type benefits from gzip.
func Compressible(contentType string) bool {
	ct := strings.ToLower(contentType)
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	ct = strings.TrimSpace(ct)
	switch {
	case strings.HasPrefix(ct, "text/"):
		return true
	case strings.HasSuffix(ct, "javascript"), strings.HasSuffix(ct, "json"), strings.HasSuffix(ct, "+xml"):
		return true
	default:
		return false
	}
}

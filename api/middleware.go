package api

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// BodyMiddleware caps request bodies at limit bytes and transparently
// inflates gzip-encoded ones. The cap applies to the inflated stream and
// surfaces as *http.MaxBytesError from Read. Bodies that are not valid gzip
// are rejected with a 400 response.
func BodyMiddleware(limit int64) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if req.Body == nil || req.Body == http.NoBody {
				return next(c)
			}
			if !gzipEncoded(req.Header.Get(echo.HeaderContentEncoding)) {
				req.Body = http.MaxBytesReader(c.Response(), req.Body, limit)
				return next(c)
			}

			raw := req.Body
			zr, err := gzip.NewReader(raw)
			if err != nil {
				_ = raw.Close()
				return echo.NewHTTPError(http.StatusBadRequest, "invalid gzip body")
			}
			req.Body = http.MaxBytesReader(c.Response(), &inflatedBody{Reader: zr, zr: zr, raw: raw}, limit)
			req.ContentLength = -1
			req.Header.Del(echo.HeaderContentEncoding)
			req.Header.Del(echo.HeaderContentLength)
			return next(c)
		}
	}
}

func gzipEncoded(header string) bool {
	for _, enc := range strings.Split(header, ",") {
		if strings.EqualFold(strings.TrimSpace(enc), "gzip") {
			return true
		}
	}
	return false
}

type inflatedBody struct {
	io.Reader
	zr  *gzip.Reader
	raw io.Closer
}

func (b *inflatedBody) Close() error {
	err := b.zr.Close()
	if cerr := b.raw.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

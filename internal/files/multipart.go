package files

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// FormUpload opens the multipart file in field. It returns a nil Upload when the
// field is absent or empty. The returned close func is always safe to call.
func FormUpload(c *gin.Context, field string) (*Upload, func(), error) {
	noop := func() {}
	fh, err := c.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, noop, nil
		}
		return nil, noop, err
	}
	if fh.Size == 0 {
		return nil, noop, nil
	}
	f, err := fh.Open()
	if err != nil {
		return nil, noop, err
	}
	u := &Upload{
		Name:        fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Content:     f,
	}
	return u, func() { _ = f.Close() }, nil
}

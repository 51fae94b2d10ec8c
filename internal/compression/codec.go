// Package compression decides whether an upload is worth compressing and
// converts blobs between their stored and original forms.
package compression

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"

	"github.com/meetingapp/backend/internal/models"
)

// MinSize is the smallest input that is considered for compression.
const MinSize = 1024

// Formats that are already compressed.
var incompressible = map[string]struct{}{
	".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {},
	".mp3": {}, ".mp4": {}, ".avi": {},
	".zip": {}, ".rar": {}, ".7z": {}, ".gz": {}, ".bz2": {},
}

// Result is the outcome of Compress. Body is positioned at its start.
type Result struct {
	Body io.ReadSeeker
	Size int64
	Tag  models.CompressionTag
}

// Codec compresses uploads with gzip and reverses it on read.
type Codec struct {
	level  int
	logger *zap.Logger
}

// NewCodec returns a codec using the default gzip level.
func NewCodec(logger *zap.Logger) *Codec {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Codec{level: gzip.DefaultCompression, logger: logger}
}

// ShouldCompress applies the size and extension policy.
func ShouldCompress(filename string, size int64) bool {
	if size < MinSize {
		return false
	}
	_, skip := incompressible[strings.ToLower(filepath.Ext(filename))]
	return !skip
}

// Compress returns either a gzip copy of src or src itself rewound, tagged accordingly.
// The gzip copy is kept only when it is smaller than 90% of the input.
// Compression failures fall back to the uncompressed input; only a failure to
// rewind src is returned as an error.
func (c *Codec) Compress(src io.ReadSeeker, filename string) (Result, error) {
	size, err := src.Seek(0, io.SeekEnd)
	if err != nil {
		return Result{}, fmt.Errorf("measure input: %w", err)
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return Result{}, fmt.Errorf("rewind input: %w", err)
	}
	passthrough := func() (Result, error) {
		if _, err := src.Seek(0, io.SeekStart); err != nil {
			return Result{}, fmt.Errorf("rewind input: %w", err)
		}
		return Result{Body: src, Size: size, Tag: models.CompressionNone}, nil
	}

	if !ShouldCompress(filename, size) {
		return passthrough()
	}

	var buf bytes.Buffer
	buf.Grow(int(size / 2))
	if err := c.gzipInto(&buf, src); err != nil {
		c.logger.Warn("compression failed, storing uncompressed", zap.String("file", filename), zap.Error(err))
		return passthrough()
	}

	if int64(buf.Len())*10 >= size*9 {
		c.logger.Debug("compression gain too small",
			zap.String("file", filename), zap.Int64("original", size), zap.Int("compressed", buf.Len()))
		return passthrough()
	}

	c.logger.Debug("compressed upload",
		zap.String("file", filename), zap.Int64("original", size), zap.Int("compressed", buf.Len()))
	return Result{Body: bytes.NewReader(buf.Bytes()), Size: int64(buf.Len()), Tag: models.CompressionGzip}, nil
}

func (c *Codec) gzipInto(dst io.Writer, src io.Reader) error {
	zw, err := gzip.NewWriterLevel(dst, c.level)
	if err != nil {
		return err
	}
	if _, err := io.Copy(zw, src); err != nil {
		_ = zw.Close()
		return err
	}
	return zw.Close()
}

// Decompress reads src fully and returns the original bytes for the given tag.
// Unknown tags and corrupt gzip data yield the stored bytes unchanged; only a
// failure to read src is returned as an error.
func (c *Codec) Decompress(src io.Reader, tag models.CompressionTag) (*bytes.Reader, error) {
	stored, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("read stored blob: %w", err)
	}

	switch tag {
	case models.CompressionNone, "":
		return bytes.NewReader(stored), nil
	case models.CompressionGzip:
		out, err := gunzip(stored)
		if err != nil {
			c.logger.Warn("decompression failed, returning stored bytes", zap.Error(err))
			return bytes.NewReader(stored), nil
		}
		return bytes.NewReader(out), nil
	default:
		c.logger.Warn("unknown compression tag, returning stored bytes", zap.String("tag", string(tag)))
		return bytes.NewReader(stored), nil
	}
}

func gunzip(data []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}

package files

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meetingapp/backend/internal/models"
)

var (
	jpegMagic = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 0x4A, 0x46}
	pngMagic  = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
	pdfMagic  = []byte("%PDF-1.7")
	gifMagic  = []byte("GIF89a\x01\x00")
	plainText = []byte("just some text")
)

func upload(name, contentType string, body []byte) *Upload {
	return &Upload{Name: name, ContentType: contentType, Size: int64(len(body)), Content: bytes.NewReader(body)}
}

func TestValidateTriples(t *testing.T) {
	doc := models.CategoryMeetingDocument
	img := models.CategoryProfileImage

	tests := []struct {
		name     string
		category models.FileCategory
		file     string
		mime     string
		body     []byte
		want     bool
	}{
		{"jpeg ok", img, "me.jpg", "image/jpeg", jpegMagic, true},
		{"jpeg alt ext", img, "me.JPEG", "image/jpeg", jpegMagic, true},
		{"png ok", img, "me.png", "image/png", pngMagic, true},
		{"gif ok", img, "me.gif", "image/gif", gifMagic, true},
		{"pdf ok", doc, "brief.pdf", "application/pdf", pdfMagic, true},
		{"txt ok", doc, "notes.txt", "text/plain", plainText, true},
		{"txt with charset", doc, "notes.txt", "text/plain; charset=utf-8", plainText, true},
		{"docx without signature check", doc, "a.docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document", plainText, true},
		{"xls", doc, "a.xls", "application/vnd.ms-excel", plainText, true},
		{"pptx", doc, "a.pptx", "application/vnd.openxmlformats-officedocument.presentationml.presentation", plainText, true},
		{"image as document", doc, "scan.png", "image/png", pngMagic, true},

		{"pdf not allowed as profile image", img, "brief.pdf", "application/pdf", pdfMagic, false},
		{"unknown extension", doc, "run.exe", "application/octet-stream", plainText, false},
		{"no extension", doc, "README", "text/plain", plainText, false},
		{"content type mismatch", img, "me.png", "image/jpeg", pngMagic, false},
		{"png renamed to jpg", img, "me.jpg", "image/jpeg", pngMagic, false},
		{"jpeg body declared png", img, "me.png", "image/png", jpegMagic, false},
		{"text declared pdf", doc, "brief.pdf", "application/pdf", plainText, false},
		{"truncated signature", img, "me.png", "image/png", pngMagic[:2], false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := Validate(upload(tt.file, tt.mime, tt.body), tt.category)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestValidateSize(t *testing.T) {
	u := upload("notes.txt", "text/plain", plainText)

	u.Size = 0
	ok, err := Validate(u, models.CategoryMeetingDocument)
	require.NoError(t, err)
	assert.False(t, ok)

	u.Size = MaxFileSize + 1
	ok, err = Validate(u, models.CategoryMeetingDocument)
	require.NoError(t, err)
	assert.False(t, ok)

	u.Size = MaxFileSize
	ok, err = Validate(u, models.CategoryMeetingDocument)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestValidateRewindsContent(t *testing.T) {
	u := upload("me.png", "image/png", pngMagic)
	ok, err := Validate(u, models.CategoryProfileImage)
	require.NoError(t, err)
	require.True(t, ok)

	body, err := io.ReadAll(u.Content)
	require.NoError(t, err)
	assert.Equal(t, pngMagic, body)
}

type brokenSeeker struct{ io.Reader }

func (brokenSeeker) Seek(int64, int) (int64, error) { return 0, errors.New("seek failed") }

func TestValidateUnreadableStream(t *testing.T) {
	u := &Upload{Name: "me.png", ContentType: "image/png", Size: 8, Content: brokenSeeker{bytes.NewReader(pngMagic)}}
	_, err := Validate(u, models.CategoryProfileImage)
	assert.Error(t, err)
}

func TestAllowedExtensions(t *testing.T) {
	assert.ElementsMatch(t, []string{".jpg", ".jpeg", ".png", ".gif"}, AllowedExtensions(models.CategoryProfileImage))
	assert.Len(t, AllowedExtensions(models.CategoryMeetingDocument), 12)
	assert.Empty(t, AllowedExtensions(models.FileCategory("Other")))
}

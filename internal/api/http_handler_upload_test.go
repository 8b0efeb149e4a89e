package api

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		img.Set(x, x%height, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// uploadRequest posts a multipart form; an empty kind or nil file omits that field.
func (e *testEnv) uploadRequest(t *testing.T, token, kind string, file []byte) *http.Response {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if kind != "" {
		require.NoError(t, writer.WriteField("type", kind))
	}
	if file != nil {
		part, err := writer.CreateFormFile("image", "upload.png")
		require.NoError(t, err)
		_, err = part.Write(file)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req, err := http.NewRequest(http.MethodPost, e.server.URL+"/api/v1/uploads", &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { res.Body.Close() })
	return res
}

func listUploads(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return names
}

func TestHTTPHandler_UploadImage_Profile(t *testing.T) {
	env := setupTestChiServer(t)

	res := env.uploadRequest(t, env.userToken, "profile", pngBytes(t, 800, 200))
	require.Equal(t, http.StatusCreated, res.StatusCode)

	var got UploadResponse
	decodeBody(t, res, &got)
	assert.True(t, strings.HasPrefix(got.ImageURL, "/uploads/profiles/"), got.ImageURL)
	assert.True(t, strings.HasSuffix(got.ImageURL, ".jpg"), got.ImageURL)

	stored := filepath.Join(env.uploadRoot, "profiles", filepath.Base(got.ImageURL))
	_, err := os.Stat(stored)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Base(got.ImageURL)}, listUploads(t, filepath.Join(env.uploadRoot, "profiles")))
}

func TestHTTPHandler_UploadImage_AdminCatalogImage(t *testing.T) {
	env := setupTestChiServer(t)

	res := env.uploadRequest(t, env.userToken, "product", pngBytes(t, 10, 10))
	assert.Equal(t, http.StatusForbidden, res.StatusCode)
	assert.Empty(t, listUploads(t, filepath.Join(env.uploadRoot, "products")))

	res = env.uploadRequest(t, env.adminToken, "product", pngBytes(t, 10, 10))
	require.Equal(t, http.StatusCreated, res.StatusCode)
	var got UploadResponse
	decodeBody(t, res, &got)
	assert.True(t, strings.HasPrefix(got.ImageURL, "/uploads/products/"), got.ImageURL)
}

func TestHTTPHandler_UploadImage_Rejected(t *testing.T) {
	env := setupTestChiServer(t)

	tests := []struct {
		name string
		kind string
		file []byte
	}{
		{name: "not an image", kind: "profile", file: []byte("definitely not a picture")},
		{name: "missing file", kind: "profile"},
		{name: "unknown type", kind: "wallpaper", file: pngBytes(t, 4, 4)},
		{name: "missing type", file: pngBytes(t, 4, 4)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res := env.uploadRequest(t, env.adminToken, tc.kind, tc.file)
			assert.Equal(t, http.StatusBadRequest, res.StatusCode)
			assert.Equal(t, uploadFailedMessage, decodeError(t, res))
		})
	}

	// Failed uploads leave nothing behind, temp files included.
	assert.Empty(t, listUploads(t, filepath.Join(env.uploadRoot, "profiles")))
}

func TestHTTPHandler_UploadImage_TooLarge(t *testing.T) {
	env := setupTestChiServer(t, func(d *Dependencies) {
		d.MaxUploadBytes = 1024
	})

	res := env.uploadRequest(t, env.userToken, "profile", bytes.Repeat([]byte{0x89}, 4<<10))
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestHTTPHandler_UploadImage_RequiresSession(t *testing.T) {
	env := setupTestChiServer(t)

	res := env.uploadRequest(t, "", "profile", pngBytes(t, 4, 4))
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestHTTPHandler_UploadImage_RejectsOversizedCanvas(t *testing.T) {
	env := setupTestChiServer(t)

	// A tiny PNG whose header claims 50000x50000 pixels.
	data := pngBytes(t, 2, 2)
	binary.BigEndian.PutUint32(data[16:20], 50000)
	binary.BigEndian.PutUint32(data[20:24], 50000)
	binary.BigEndian.PutUint32(data[29:33], crc32.ChecksumIEEE(data[12:29]))

	res := env.uploadRequest(t, env.userToken, "profile", data)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Equal(t, uploadFailedMessage, decodeError(t, res))
	assert.Empty(t, listUploads(t, filepath.Join(env.uploadRoot, "profiles")))
}

package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStorageService_Local(t *testing.T) {
	svc, err := NewStorageService(StorageConfig{Provider: "local", LocalDir: t.TempDir()})
	require.NoError(t, err)
	require.NotNil(t, svc.GetProvider())
}

func TestNewStorageService_InvalidProvider(t *testing.T) {
	_, err := NewStorageService(StorageConfig{Provider: "invalid"})
	assert.Error(t, err)
}

func TestNewS3Storage_RequiresBucket(t *testing.T) {
	_, err := NewS3Storage(StorageConfig{Provider: "s3", Region: "us-east-1"})
	assert.Error(t, err)
}

func TestLocalStorage_UploadAndDelete(t *testing.T) {
	dir := t.TempDir()
	svc, err := NewStorageService(StorageConfig{Provider: "local", LocalDir: dir, BaseURL: "http://cdn.test/files"})
	require.NoError(t, err)
	ctx := context.Background()

	url, err := svc.Upload(ctx, []byte("%PDF-1.4 coa"), "coa", "report.pdf", "")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "http://cdn.test/files/coa/"))
	assert.True(t, strings.HasSuffix(url, ".pdf"))

	key := strings.TrimPrefix(url, "http://cdn.test/files/")
	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(key)))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 coa", string(data))

	require.NoError(t, svc.Delete(ctx, url))
	_, err = os.Stat(filepath.Join(dir, filepath.FromSlash(key)))
	assert.True(t, os.IsNotExist(err))

	// 重复删除不报错
	assert.NoError(t, svc.Delete(ctx, url))
	assert.Error(t, svc.Delete(ctx, "http://elsewhere/x.png"))
}

func TestStorageService_MirrorURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/gone.png" {
			w.WriteHeader(http.StatusGone)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("png-bytes"))
	}))
	defer server.Close()

	svc, err := NewStorageService(StorageConfig{Provider: "local", LocalDir: t.TempDir()})
	require.NoError(t, err)

	url, err := svc.MirrorURL(context.Background(), server.URL+"/att/photo.png?expires=123", "products")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "/uploads/products/"))
	assert.True(t, strings.HasSuffix(url, ".png"))

	_, err = svc.MirrorURL(context.Background(), server.URL+"/gone.png", "products")
	assert.Error(t, err)
}

func TestGenerateKey(t *testing.T) {
	tests := []struct {
		name        string
		filename    string
		contentType string
		wantExt     string
	}{
		{"保留扩展名", "a.PNG", "", ".png"},
		{"按类型推断", "blob", "application/pdf", ".pdf"},
		{"默认 jpg", "", "application/octet-stream", ".jpg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := generateKey("/img/", tt.filename, tt.contentType)
			assert.True(t, strings.HasPrefix(key, "img/"))
			assert.True(t, strings.HasSuffix(key, tt.wantExt))
		})
	}
}

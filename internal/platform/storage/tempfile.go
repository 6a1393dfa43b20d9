// Package storage は走査対象の動画を一時ファイルとして保存します。
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

var (
	// ErrTooLarge はファイルがサイズ上限を超えたことを示します。
	ErrTooLarge = errors.New("file exceeds size limit")
	// ErrInvalidURL は動画URLがhttp(s)でないことを示します。
	ErrInvalidURL = errors.New("video url must be http or https")
	// ErrDownloadFailed はリモート動画の取得に失敗したことを示します。
	ErrDownloadFailed = errors.New("video download failed")
)

// TempStore は上限付きで動画を一時ディレクトリに保存します。
type TempStore struct {
	dir      string
	maxBytes int64
	client   *http.Client
}

// NewTempStore はTempStoreの新しいインスタンスを生成します。
func NewTempStore(dir string, maxBytes int64, client *http.Client) *TempStore {
	if dir == "" {
		dir = os.TempDir()
	}
	return &TempStore{dir: dir, maxBytes: maxBytes, client: client}
}

// SaveUpload はアップロードされたファイルを保存し、そのパスを返します。
func (s *TempStore) SaveUpload(fh *multipart.FileHeader) (string, error) {
	if fh.Size > s.maxBytes {
		return "", fmt.Errorf("%w: %d bytes", ErrTooLarge, fh.Size)
	}
	f, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer func() {
		if err := f.Close(); err != nil {
			slog.Warn("failed to close uploaded file", "error", err)
		}
	}()
	return s.save(f, filepath.Ext(fh.Filename))
}

// Download はURLの動画を取得して保存し、そのパスを返します。
func (s *TempStore) Download(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", ErrInvalidURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", err
	}
	res, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrDownloadFailed, err)
	}
	defer func() {
		if err := res.Body.Close(); err != nil {
			slog.Warn("failed to close response body", "error", err)
		}
	}()

	if res.StatusCode >= 400 {
		return "", fmt.Errorf("%w: http %d", ErrDownloadFailed, res.StatusCode)
	}
	if res.ContentLength > s.maxBytes {
		return "", fmt.Errorf("%w: %d bytes", ErrTooLarge, res.ContentLength)
	}

	p, err := s.save(res.Body, path.Ext(u.Path))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("%w: %v", ErrDownloadFailed, ctxErr)
		}
		return "", err
	}
	slog.Info("video downloaded", "url", u.Redacted(), "path", p)
	return p, nil
}

// Remove は一時ファイルを削除します。既に存在しない場合は何もしません。
func (s *TempStore) Remove(p string) {
	if p == "" {
		return
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to remove temp file", "path", p, "error", err)
	}
}

// save は r を最大 maxBytes まで一時ファイルへ書き込みます。上限を超えた場合はファイルを消して ErrTooLarge を返します。
func (s *TempStore) save(r io.Reader, ext string) (string, error) {
	if len(ext) > 8 || strings.ContainsAny(ext, `/\`) {
		ext = ""
	}
	f, err := os.CreateTemp(s.dir, "scan-*"+strings.ToLower(ext))
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	name := f.Name()

	n, err := io.Copy(f, io.LimitReader(r, s.maxBytes+1))
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err == nil && n > s.maxBytes {
		err = fmt.Errorf("%w: more than %d bytes", ErrTooLarge, s.maxBytes)
	}
	if err != nil {
		s.Remove(name)
		return "", err
	}
	return name, nil
}

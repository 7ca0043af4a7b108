package shellcache

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// DirFetcher serves assets from a directory on disk.
type DirFetcher struct {
	Root string
}

func (f DirFetcher) Fetch(ctx context.Context, method, p string) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	clean := path.Clean("/" + p)
	if clean == "/" {
		clean = "/index.html"
	}
	if _, err := os.Stat(f.Root); err != nil {
		// 资源目录不可用等同于断网
		return nil, err
	}
	b, err := os.ReadFile(filepath.Join(f.Root, filepath.FromSlash(clean)))
	if errors.Is(err, fs.ErrNotExist) {
		return &Response{Status: http.StatusNotFound, Header: http.Header{"Content-Type": {"text/plain; charset=utf-8"}}, Body: []byte("Not Found")}, nil
	}
	if err != nil {
		return nil, err
	}
	ct := mime.TypeByExtension(path.Ext(clean))
	if ct == "" {
		ct = http.DetectContentType(b)
	}
	return &Response{Status: http.StatusOK, Header: http.Header{"Content-Type": {ct}}, Body: b}, nil
}

// HTTPFetcher proxies to an upstream origin such as a CDN.
type HTTPFetcher struct {
	Base   string
	Client *http.Client
}

func (f HTTPFetcher) Fetch(ctx context.Context, method, p string) (*Response, error) {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(f.Base, "/")+path.Clean("/"+p), nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	h := http.Header{}
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		h.Set("Content-Type", ct)
	}
	return &Response{Status: resp.StatusCode, Header: h, Body: b}, nil
}

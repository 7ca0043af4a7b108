// Package shellcache serves the offline app shell: a versioned cache in front
// of an asset origin. Navigation requests are network-first with a cached
// fallback; everything else is cache-first.
package shellcache

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
)

const Prefix = "snakeplus-"

// AppShell 是安装时预缓存的资源
var AppShell = []string{
	"./",
	"./index.html",
	"./styles.css",
	"./app.js",
	"./manifest.json",
	"./icons/icon-192.png",
	"./icons/icon-512.png",
	"./icons/maskable-192.png",
	"./icons/maskable-512.png",
}

// Response is a stored or fetched asset.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

func (r *Response) clone() *Response {
	body := make([]byte, len(r.Body))
	copy(body, r.Body)
	return &Response{Status: r.Status, Header: r.Header.Clone(), Body: body}
}

// Fetcher is the asset origin ("network").
type Fetcher interface {
	Fetch(ctx context.Context, method, p string) (*Response, error)
}

// Storage holds named caches. It outlives any one cache version.
type Storage struct {
	mu     sync.RWMutex
	caches map[string]map[string]*Response
}

func NewStorage() *Storage {
	return &Storage{caches: make(map[string]map[string]*Response)}
}

func (s *Storage) put(name, key string, r *Response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.caches[name]
	if !ok {
		c = make(map[string]*Response)
		s.caches[name] = c
	}
	c[key] = r.clone()
}

// match 在所有缓存中查找，优先当前版本
func (s *Storage) match(preferred, key string) (*Response, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.caches[preferred][key]; ok {
		return r.clone(), true
	}
	names := make([]string, 0, len(s.caches))
	for name := range s.caches {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if r, ok := s.caches[name][key]; ok {
			return r.clone(), true
		}
	}
	return nil, false
}

// Names lists the cache names in order.
func (s *Storage) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.caches))
	for name := range s.caches {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Cache is one versioned view over Storage.
type Cache struct {
	storage *Storage
	version string
	origin  Fetcher
}

func New(storage *Storage, version string, origin Fetcher) *Cache {
	return &Cache{storage: storage, version: version, origin: origin}
}

func (c *Cache) Name() string {
	return Prefix + c.version
}

// key 把 "./index.html" 和 "/index.html" 归一
func key(p string) string {
	p = strings.TrimPrefix(p, ".")
	return path.Clean("/" + p)
}

// Install fetches every asset and stores them only if all succeed.
func (c *Cache) Install(ctx context.Context, assets []string) error {
	fetched := make(map[string]*Response, len(assets))
	for _, a := range assets {
		r, err := c.origin.Fetch(ctx, http.MethodGet, key(a))
		if err != nil {
			return fmt.Errorf("install %s: %w", a, err)
		}
		if r.Status != http.StatusOK {
			return fmt.Errorf("install %s: status %d", a, r.Status)
		}
		fetched[key(a)] = r
	}
	for k, r := range fetched {
		c.storage.put(c.Name(), k, r)
	}
	return nil
}

// Activate deletes caches left by other versions and returns their names.
func (c *Cache) Activate() []string {
	c.storage.mu.Lock()
	defer c.storage.mu.Unlock()
	var purged []string
	for name := range c.storage.caches {
		if strings.HasPrefix(name, Prefix) && name != c.Name() {
			delete(c.storage.caches, name)
			purged = append(purged, name)
		}
	}
	sort.Strings(purged)
	return purged
}

func isNavigation(r *http.Request) bool {
	if r.Header.Get("Sec-Fetch-Mode") == "navigate" {
		return true
	}
	return r.Method == http.MethodGet && strings.Contains(r.Header.Get("Accept"), "text/html")
}

// Handler serves assets under a wildcard route; param names the wildcard,
// e.g. "filepath" for router.GET("/app/*filepath", ...).
func (c *Cache) Handler(param string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		p := key(ctx.Param(param))
		req := ctx.Request

		if isNavigation(req) {
			fresh, err := c.origin.Fetch(req.Context(), req.Method, p)
			if err == nil {
				// 只有成功的页面才替换缓存的外壳
				if fresh.Status == http.StatusOK {
					c.storage.put(c.Name(), "/index.html", fresh)
				}
				write(ctx, fresh)
				return
			}
			log.Printf("shell: navigation %s offline: %v", p, err)
			if cached, ok := c.storage.match(c.Name(), "/index.html"); ok {
				write(ctx, cached)
				return
			}
			ctx.String(http.StatusServiceUnavailable, "Offline")
			return
		}

		if cached, ok := c.storage.match(c.Name(), p); ok {
			write(ctx, cached)
			return
		}
		fresh, err := c.origin.Fetch(req.Context(), req.Method, p)
		if err != nil {
			ctx.String(http.StatusServiceUnavailable, "Offline")
			return
		}
		if req.Method == http.MethodGet && fresh.Status == http.StatusOK {
			c.storage.put(c.Name(), p, fresh)
		}
		write(ctx, fresh)
	}
}

func write(ctx *gin.Context, r *Response) {
	for k, vs := range r.Header {
		for _, v := range vs {
			ctx.Writer.Header().Add(k, v)
		}
	}
	ctx.Data(r.Status, r.Header.Get("Content-Type"), r.Body)
}

package shellcache

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/gin-gonic/gin"
)

type fakeOrigin struct {
	files   map[string]string
	offline bool
	calls   int
}

func (f *fakeOrigin) Fetch(ctx context.Context, method, p string) (*Response, error) {
	f.calls++
	if f.offline {
		return nil, errors.New("network down")
	}
	if p == "/" {
		p = "/index.html"
	}
	body, ok := f.files[p]
	if !ok {
		return &Response{Status: http.StatusNotFound, Body: []byte("nope")}, nil
	}
	return &Response{Status: http.StatusOK, Header: http.Header{"Content-Type": {"text/plain"}}, Body: []byte(body)}, nil
}

func shellFiles() map[string]string {
	files := map[string]string{}
	for _, a := range AppShell {
		files[key(a)] = "v1 " + a
	}
	files["/index.html"] = "<html>v1</html>"
	return files
}

func router(c *Cache) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/app/*filepath", c.Handler("filepath"))
	return r
}

func get(r http.Handler, target string, accept string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestInstallIsAllOrNothing(t *testing.T) {
	origin := &fakeOrigin{files: shellFiles()}
	delete(origin.files, "/app.js")
	st := NewStorage()
	c := New(st, "v1", origin)
	if err := c.Install(context.Background(), AppShell); err == nil {
		t.Fatal("expected install to fail on a missing asset")
	}
	if len(st.Names()) != 0 {
		t.Fatalf("partial install left caches: %v", st.Names())
	}
}

func TestActivatePurgesOldVersions(t *testing.T) {
	origin := &fakeOrigin{files: shellFiles()}
	st := NewStorage()
	old := New(st, "v1", origin)
	if err := old.Install(context.Background(), AppShell); err != nil {
		t.Fatal(err)
	}
	st.put("other-cache", "/x", &Response{Status: 200})

	cur := New(st, "v2", origin)
	if err := cur.Install(context.Background(), AppShell); err != nil {
		t.Fatal(err)
	}
	purged := cur.Activate()
	if !reflect.DeepEqual(purged, []string{"snakeplus-v1"}) {
		t.Fatalf("purged %v", purged)
	}
	if !reflect.DeepEqual(st.Names(), []string{"other-cache", "snakeplus-v2"}) {
		t.Fatalf("remaining %v", st.Names())
	}
}

func TestNavigationNetworkFirst(t *testing.T) {
	origin := &fakeOrigin{files: shellFiles()}
	c := New(NewStorage(), "v1", origin)
	r := router(c)

	w := get(r, "/app/", "text/html")
	if w.Code != 200 || w.Body.String() != "<html>v1</html>" {
		t.Fatalf("online navigation %d %q", w.Code, w.Body.String())
	}

	origin.files["/index.html"] = "<html>v2</html>"
	if w := get(r, "/app/", "text/html"); w.Body.String() != "<html>v2</html>" {
		t.Fatalf("navigation should prefer the network, got %q", w.Body.String())
	}

	origin.offline = true
	if w := get(r, "/app/anything", "text/html"); w.Code != 200 || w.Body.String() != "<html>v2</html>" {
		t.Fatalf("offline navigation %d %q", w.Code, w.Body.String())
	}
}

func TestNavigationErrorPageKeepsCachedShell(t *testing.T) {
	origin := &fakeOrigin{files: shellFiles()}
	c := New(NewStorage(), "v1", origin)
	r := router(c)
	get(r, "/app/", "text/html")

	// 源站返回 404 时照常转发，但不覆盖缓存的页面
	delete(origin.files, "/index.html")
	if w := get(r, "/app/", "text/html"); w.Code != http.StatusNotFound {
		t.Fatalf("online 404 navigation %d", w.Code)
	}
	origin.offline = true
	if w := get(r, "/app/", "text/html"); w.Code != 200 || w.Body.String() != "<html>v1</html>" {
		t.Fatalf("cached shell was replaced: %d %q", w.Code, w.Body.String())
	}
}

func TestNavigationOfflineWithoutCache(t *testing.T) {
	c := New(NewStorage(), "v1", &fakeOrigin{offline: true})
	w := get(router(c), "/app/", "text/html")
	if w.Code != http.StatusServiceUnavailable || w.Body.String() != "Offline" {
		t.Fatalf("got %d %q", w.Code, w.Body.String())
	}
}

func TestStaticCacheFirst(t *testing.T) {
	origin := &fakeOrigin{files: shellFiles()}
	c := New(NewStorage(), "v1", origin)
	r := router(c)

	if w := get(r, "/app/styles.css", ""); w.Code != 200 {
		t.Fatalf("first fetch %d", w.Code)
	}
	calls := origin.calls
	origin.files["/styles.css"] = "changed"
	if w := get(r, "/app/styles.css", ""); w.Body.String() != "v1 ./styles.css" {
		t.Fatalf("cache-first should serve the cached copy, got %q", w.Body.String())
	}
	if origin.calls != calls {
		t.Fatal("cache hit went to the network")
	}

	// 404 不写入缓存
	get(r, "/app/missing.js", "")
	origin.files["/missing.js"] = "late"
	if w := get(r, "/app/missing.js", ""); w.Body.String() != "late" {
		t.Fatalf("non-200 response was cached: %q", w.Body.String())
	}

	origin.offline = true
	if w := get(r, "/app/nothere.png", ""); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("offline miss %d", w.Code)
	}
}

func TestDirFetcher(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html></html>"), 0644)
	f := DirFetcher{Root: dir}

	r, err := f.Fetch(context.Background(), http.MethodGet, "/")
	if err != nil || r.Status != 200 || string(r.Body) != "<html></html>" {
		t.Fatalf("index: %+v %v", r, err)
	}
	r, err = f.Fetch(context.Background(), http.MethodGet, "/../../etc/passwd")
	if err != nil || r.Status != 404 {
		t.Fatalf("escape attempt: %+v %v", r, err)
	}
	if _, err := (DirFetcher{Root: filepath.Join(dir, "gone")}).Fetch(context.Background(), http.MethodGet, "/"); err == nil {
		t.Fatal("missing root should look like a network failure")
	}
}

func TestHTTPFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/css")
		w.Write([]byte("body{}"))
	}))
	defer srv.Close()
	r, err := HTTPFetcher{Base: srv.URL + "/"}.Fetch(context.Background(), http.MethodGet, "styles.css")
	if err != nil || r.Status != 200 || string(r.Body) != "body{}" || r.Header.Get("Content-Type") != "text/css" {
		t.Fatalf("%+v %v", r, err)
	}
}

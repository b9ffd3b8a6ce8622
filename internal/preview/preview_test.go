package preview

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	appErr "github.com/aether-os/engine/pkg/errors"
	"github.com/stretchr/testify/require"
)

func header(kv ...string) http.Header {
	h := http.Header{}
	for i := 0; i < len(kv); i += 2 {
		h.Set(kv[i], kv[i+1])
	}
	return h
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name    string
		h       http.Header
		blocked bool
	}{
		{"no headers", header(), false},
		{"xfo deny", header("X-Frame-Options", "DENY"), true},
		{"xfo sameorigin", header("X-Frame-Options", "SAMEORIGIN"), true},
		{"xfo allowall", header("X-Frame-Options", "ALLOWALL"), false},
		{"csp self", header("Content-Security-Policy", "default-src 'self'; frame-ancestors 'self'"), true},
		{"csp none", header("Content-Security-Policy", "frame-ancestors 'none'"), true},
		{"csp self with wildcard", header("Content-Security-Policy", "frame-ancestors 'self' *"), false},
		{"csp wildcard", header("Content-Security-Policy", "frame-ancestors *"), false},
		{"self outside directive", header("Content-Security-Policy", "frame-ancestors *; script-src 'self'"), false},
		{"no frame-ancestors", header("Content-Security-Policy", "default-src 'none'"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.blocked, Classify(tc.h).Blocked)
		})
	}
}

func TestParseTarget(t *testing.T) {
	_, err := ParseTarget("")
	require.True(t, appErr.IsCode(err, appErr.CodeInvalid))
	_, err = ParseTarget("file:///etc/passwd")
	require.True(t, appErr.IsCode(err, appErr.CodeInvalid))
	u, err := ParseTarget("https://shop.vercel.app/path")
	require.NoError(t, err)
	require.Equal(t, "shop.vercel.app", u.Host)
}

func TestCheckDoesNotFollowRedirects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "DENY")
		http.Redirect(w, r, "/elsewhere", http.StatusFound)
	}))
	defer srv.Close()

	target, _ := ParseTarget(srv.URL)
	res := NewChecker(5*time.Second).Check(context.Background(), target)
	require.False(t, res.OK)
	require.Equal(t, http.StatusFound, res.Status)
	require.True(t, res.Blocked)
	require.Equal(t, "DENY", *res.Headers.XFrameOptions)
	require.Nil(t, res.Headers.CSP)
}

func TestReachableFollowsRedirects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodHead, r.Method)
		switch r.URL.Path {
		case "/old":
			http.Redirect(w, r, "/new", http.StatusFound)
		case "/new":
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewChecker(time.Second)
	require.True(t, c.Reachable(context.Background(), srv.URL+"/old"))
	require.False(t, c.Reachable(context.Background(), srv.URL+"/gone"))
	require.False(t, c.Reachable(context.Background(), ""))
}

func TestCheckReportsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	target, _ := ParseTarget(srv.URL)
	srv.Close()

	res := NewChecker(time.Second).Check(context.Background(), target)
	require.False(t, res.OK)
	require.False(t, res.Blocked)
	require.NotEmpty(t, res.Error)
}

func TestRewriteHTML(t *testing.T) {
	page := `<html><head><meta http-equiv="Content-Security-Policy" content="frame-ancestors 'none'"><title>x</title></head><body><img src="/a.png"></body></html>`
	out, err := RewriteHTML([]byte(page), "https://shop.vercel.app/")
	require.NoError(t, err)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(out)))
	require.NoError(t, err)
	require.Equal(t, 0, doc.Find("meta[http-equiv]").Length())
	require.Equal(t, "https://shop.vercel.app/", doc.Find("head base").AttrOr("href", ""))
	require.Equal(t, "base", goquery.NodeName(doc.Find("head").Children().First()))
}

func TestRewriteHTMLKeepsExistingBase(t *testing.T) {
	page := `<html><head><base href="/app/"></head><body></body></html>`
	out, err := RewriteHTML([]byte(page), "https://shop.vercel.app/")
	require.NoError(t, err)
	require.Equal(t, 1, strings.Count(string(out), "<base"))
	require.Contains(t, string(out), `href="/app/"`)
}

func TestRewriteHTMLWithoutHead(t *testing.T) {
	out, err := RewriteHTML([]byte(`<p>hello</p>`), "https://x.dev/")
	require.NoError(t, err)
	require.Contains(t, string(out), `<head><base href="https://x.dev/"/></head>`)
}

func TestForwardRelaysOversizedHTMLWhole(t *testing.T) {
	page := "<html><head></head><body>" + strings.Repeat("x", 4096) + "</body></html>"
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(page))
	}))
	defer upstream.Close()

	p := NewProxy(5 * time.Second)
	p.maxHTML = 1024
	target, _ := ParseTarget(upstream.URL + "/")
	rec := httptest.NewRecorder()
	require.NoError(t, p.Forward(context.Background(), rec, target))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, page, rec.Body.String())
	require.Equal(t, "ALLOWALL", rec.Header().Get("X-Frame-Options"))
}

func TestForwardStripsFramingHeaders(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, proxyUserAgent, r.Header.Get("User-Agent"))
		switch r.URL.Path {
		case "/":
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Content-Security-Policy", "frame-ancestors 'none'")
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Header().Set("X-Custom", "kept")
			_, _ = w.Write([]byte(`<html><head></head><body>hi</body></html>`))
		default:
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write([]byte{0x89, 'P', 'N', 'G'})
		}
	}))
	defer upstream.Close()

	p := NewProxy(5 * time.Second)

	t.Run("html", func(t *testing.T) {
		target, _ := ParseTarget(upstream.URL + "/")
		rec := httptest.NewRecorder()
		require.NoError(t, p.Forward(context.Background(), rec, target))

		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "ALLOWALL", rec.Header().Get("X-Frame-Options"))
		require.Empty(t, rec.Header().Get("Content-Security-Policy"))
		require.Equal(t, "kept", rec.Header().Get("X-Custom"))
		require.Contains(t, rec.Body.String(), `<base href="`+upstream.URL+`/"/>`)
	})

	t.Run("binary passthrough", func(t *testing.T) {
		target, _ := ParseTarget(upstream.URL + "/logo.png")
		rec := httptest.NewRecorder()
		require.NoError(t, p.Forward(context.Background(), rec, target))
		require.Equal(t, "image/png", rec.Header().Get("Content-Type"))
		require.Equal(t, []byte{0x89, 'P', 'N', 'G'}, rec.Body.Bytes())
	})
}

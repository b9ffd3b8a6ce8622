package preview

import (
	"bytes"
	"context"
	"html"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	appErr "github.com/aether-os/engine/pkg/errors"
)

const proxyUserAgent = "Aether-OS-Preview-Proxy"

// defaultMaxHTML bounds how much of an HTML document is buffered for
// rewriting. Larger documents are relayed unmodified.
const defaultMaxHTML = 8 << 20

var droppedHeaders = map[string]bool{
	"X-Frame-Options":         true,
	"Content-Security-Policy": true,
	"Connection":              true,
	"Transfer-Encoding":       true,
	"Content-Length":          true,
	"Content-Encoding":        true,
}

// Proxy fetches a page and relays it in an iframe-friendly form.
type Proxy struct {
	client  *http.Client
	maxHTML int64
}

func NewProxy(timeout time.Duration) *Proxy {
	return &Proxy{client: &http.Client{Timeout: timeout}, maxHTML: defaultMaxHTML}
}

// Forward fetches target, following redirects, and writes it to w with
// framing headers removed. HTML bodies get their CSP meta tags removed and
// a <base> pointing at the target origin so relative assets still resolve.
func (p *Proxy) Forward(ctx context.Context, w http.ResponseWriter, target *url.URL) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return appErr.Wrap(err, appErr.CodeInvalid, "Proxy failed")
	}
	req.Header.Set("User-Agent", proxyUserAgent)
	resp, err := p.client.Do(req)
	if err != nil {
		return appErr.Wrap(err, appErr.CodeUpstream, "Proxy failed")
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "text/html; charset=utf-8"
	}
	copySafeHeaders(w.Header(), resp.Header)
	w.Header().Set("Content-Type", contentType)

	if !strings.Contains(contentType, "text/html") {
		w.WriteHeader(resp.StatusCode)
		_, err := io.Copy(w, resp.Body)
		return err
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, p.maxHTML+1))
	if err != nil {
		return appErr.Wrap(err, appErr.CodeUpstream, "Proxy failed")
	}
	if int64(len(raw)) > p.maxHTML {
		w.WriteHeader(resp.StatusCode)
		if _, err := w.Write(raw); err != nil {
			return err
		}
		_, err = io.Copy(w, resp.Body)
		return err
	}
	base := target.Scheme + "://" + target.Host + "/"
	page, err := RewriteHTML(raw, base)
	if err != nil {
		page = raw
	}
	w.WriteHeader(resp.StatusCode)
	_, err = w.Write(page)
	return err
}

func copySafeHeaders(dst, src http.Header) {
	for k, vs := range src {
		if droppedHeaders[http.CanonicalHeaderKey(k)] {
			continue
		}
		for _, v := range vs {
			dst.Add(k, v)
		}
	}
	dst.Set("X-Frame-Options", "ALLOWALL")
}

// RewriteHTML removes CSP meta tags and makes baseHref the document base
// unless the page already declares one.
func RewriteHTML(page []byte, baseHref string) ([]byte, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, err
	}
	doc.Find("meta[http-equiv]").Each(func(_ int, s *goquery.Selection) {
		if strings.EqualFold(s.AttrOr("http-equiv", ""), "content-security-policy") {
			s.Remove()
		}
	})
	if doc.Find("base").Length() == 0 {
		doc.Find("head").First().PrependHtml(`<base href="` + html.EscapeString(baseHref) + `">`)
	}
	out, err := doc.Html()
	if err != nil {
		return nil, err
	}
	return []byte(out), nil
}

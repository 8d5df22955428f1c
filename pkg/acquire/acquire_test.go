package acquire

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sipeed/picocast/pkg/failure"
	"github.com/sipeed/picocast/pkg/security"
)

func newLocalAcquirer(opts ...Option) *Acquirer {
	return New(nil, append([]Option{WithGuard(security.NewGuard(security.AllowLoopback()))}, opts...)...)
}

func htmlServer(t *testing.T, contentType, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, UserAgent, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", contentType)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

type countingTransport struct {
	calls atomic.Int32
}

func (c *countingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	c.calls.Add(1)
	return nil, http.ErrHandlerTimeout
}

func TestAcquire_PlainTextPassesThrough(t *testing.T) {
	a := New(nil)
	got, err := a.Acquire(t.Context(), PlainText{Text: "  Hello world. This is a test.  "})
	require.NoError(t, err)
	assert.Equal(t, "  Hello world. This is a test.  ", got)
}

func TestAcquire_NilInput(t *testing.T) {
	_, err := New(nil).Acquire(t.Context(), nil)
	assert.ErrorIs(t, err, failure.ErrSecurity)
}

func TestAcquire_RemoteDocument(t *testing.T) {
	page := `<!DOCTYPE html><html><head><title>T</title><style>p{color:red}</style>
<script>var p = "<p>not a paragraph</p>";</script></head>
<body><nav>Menu</nav>
<p>  First paragraph.  </p>
<div><p>Second <b>bold</b> paragraph.<script>alert(1)</script></p></div>
<p>   </p>
<p>Third &amp; last.</p>
</body></html>`
	server := htmlServer(t, "text/html; charset=utf-8", page)

	got, err := newLocalAcquirer().Acquire(t.Context(), RemoteDocument{URL: server.URL + "/article"})
	require.NoError(t, err)
	assert.Equal(t, "First paragraph. Second bold paragraph. Third & last.", got)
}

func TestAcquire_RemoteDocumentLegacyCharset(t *testing.T) {
	server := htmlServer(t, "text/html; charset=iso-8859-1", "<p>Caf\xe9 cr\xe8me</p>")

	got, err := newLocalAcquirer().Acquire(t.Context(), RemoteDocument{URL: server.URL})
	require.NoError(t, err)
	assert.Equal(t, "Café crème", got)
}

func TestAcquire_RemoteDocumentParagraphCap(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 60; i++ {
		sb.WriteString("<p>x</p>")
	}
	server := htmlServer(t, "text/html", sb.String())

	got, err := newLocalAcquirer().Acquire(t.Context(), RemoteDocument{URL: server.URL})
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxParagraphs, len(strings.Fields(got)))
}

func TestAcquire_RemoteDocumentFailures(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		status      int
		body        string
		wantMsg     string
	}{
		{"not html", "application/json", http.StatusOK, `{"p": 1}`, "URL does not return HTML content"},
		{"missing content type", "", http.StatusOK, "", "URL does not return HTML content"},
		{"server error", "text/html", http.StatusInternalServerError, "<p>oops</p>", "HTTP 500"},
		{"not found", "text/html", http.StatusNotFound, "<p>gone</p>", "HTTP 404"},
		{"no paragraphs", "text/html", http.StatusOK, "<div>only divs</div>", "No paragraph content found on the page"},
		{"empty paragraphs", "text/html", http.StatusOK, "<p> </p><p>\n</p>", "No readable text content found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.contentType != "" {
					w.Header().Set("Content-Type", tt.contentType)
				} else {
					w.Header()["Content-Type"] = nil
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := newLocalAcquirer().Acquire(t.Context(), RemoteDocument{URL: server.URL})
			require.Error(t, err)
			assert.ErrorIs(t, err, failure.ErrAPI)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestAcquire_RemoteDocumentBodyLimit(t *testing.T) {
	server := htmlServer(t, "text/html", "<p>"+strings.Repeat("a", 1000)+"</p>")

	_, err := newLocalAcquirer(WithMaxBodyBytes(100)).Acquire(t.Context(), RemoteDocument{URL: server.URL})
	require.Error(t, err)
	assert.ErrorIs(t, err, failure.ErrAPI)
	assert.Contains(t, err.Error(), "exceeds 100 bytes")
}

func TestAcquire_BlockedURLIssuesNoRequest(t *testing.T) {
	rt := &countingTransport{}
	a := New(nil, WithTransport(rt))

	for _, u := range []string{"http://10.0.0.5/page", "http://localhost/x", "ftp://example.com/file"} {
		_, err := a.Acquire(t.Context(), RemoteDocument{URL: u})
		require.Error(t, err, u)
		assert.ErrorIs(t, err, failure.ErrSecurity, u)
	}
	assert.Equal(t, int32(0), rt.calls.Load())
}

func TestAcquire_RedirectTargetsAreChecked(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "http://10.0.0.5/internal", http.StatusFound)
	}))
	defer server.Close()

	_, err := newLocalAcquirer().Acquire(t.Context(), RemoteDocument{URL: server.URL})
	require.Error(t, err)
	assert.ErrorIs(t, err, failure.ErrSecurity)
}

func TestAcquire_RedirectCap(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Redirect(w, r, "/again", http.StatusFound)
	}))
	defer server.Close()

	_, err := newLocalAcquirer().Acquire(t.Context(), RemoteDocument{URL: server.URL})
	require.Error(t, err)
	assert.ErrorIs(t, err, failure.ErrAPI)
	assert.Contains(t, err.Error(), "stopped after 10 redirects")
	assert.Equal(t, int32(MaxRedirects), hits.Load())
}

func TestAcquire_UploadedDocument(t *testing.T) {
	tests := []struct {
		name      string
		doc       UploadedDocument
		want      string
		wantError string
	}{
		{
			name: "utf-8",
			doc:  UploadedDocument{Name: "notes.txt", MediaType: "text/plain", Content: []byte("Grüße aus Köln")},
			want: "Grüße aus Köln",
		},
		{
			name: "utf-8 with bom",
			doc:  UploadedDocument{Name: "notes.txt", MediaType: "text/plain", Content: append([]byte{0xEF, 0xBB, 0xBF}, "hello"...)},
			want: "hello",
		},
		{
			name: "latin-1",
			doc:  UploadedDocument{Name: "NOTES.TXT", MediaType: "application/octet-stream", Content: []byte("caf\xe9")},
			want: "café",
		},
		{
			name: "media type parameters ignored",
			doc:  UploadedDocument{Name: "a.txt", MediaType: "text/plain; charset=utf-8", Content: []byte("ok")},
			want: "ok",
		},
		{
			name:      "nothing uploaded",
			doc:       UploadedDocument{},
			wantError: "No file uploaded",
		},
		{
			name:      "wrong media type",
			doc:       UploadedDocument{Name: "a.txt", MediaType: "application/pdf", Content: []byte("x")},
			wantError: "Invalid file type: application/pdf",
		},
		{
			name:      "malformed media type",
			doc:       UploadedDocument{Name: "a.txt", MediaType: "", Content: []byte("x")},
			wantError: "Invalid file type",
		},
		{
			name:      "wrong extension",
			doc:       UploadedDocument{Name: "a.md", MediaType: "text/plain", Content: []byte("x")},
			wantError: "Only .txt files are allowed",
		},
	}
	a := New(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := a.Acquire(t.Context(), tt.doc)
			if tt.wantError != "" {
				require.Error(t, err)
				assert.ErrorIs(t, err, failure.ErrSecurity)
				assert.Contains(t, err.Error(), tt.wantError)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAcquire_UploadTooLarge(t *testing.T) {
	a := New(nil)
	a.maxFileSize = 8

	_, err := a.Acquire(t.Context(), UploadedDocument{Name: "big.txt", MediaType: "text/plain", Content: []byte("123456789")})
	require.Error(t, err)
	assert.ErrorIs(t, err, failure.ErrSecurity)
	assert.Contains(t, err.Error(), "File too large: 9 bytes (max: 8)")
}

func TestInputSource(t *testing.T) {
	assert.Equal(t, "text", PlainText{}.Source())
	assert.Equal(t, "url", RemoteDocument{}.Source())
	assert.Equal(t, "file", UploadedDocument{}.Source())
}

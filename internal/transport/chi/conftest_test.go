package chi

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/atscore/internal/domain"
	"github.com/kailas-cloud/atscore/internal/extractor"
	healthuc "github.com/kailas-cloud/atscore/internal/usecase/health"
	scoringuc "github.com/kailas-cloud/atscore/internal/usecase/scoring"
	usageuc "github.com/kailas-cloud/atscore/internal/usecase/usage"
)

// fakeEmbedder maps text to a character histogram and reports tokens through the request usage.
type fakeEmbedder struct {
	err       error
	healthErr error
	calls     int
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	f.calls++
	if f.err != nil {
		return domain.EmbeddingResult{}, f.err
	}
	domain.UsageFromContext(ctx).AddTokens(5)
	v := make([]float32, 32)
	for _, r := range text {
		v[int(r)%32]++
	}
	return domain.EmbeddingResult{Embedding: v, TotalTokens: 5}, nil
}

func (f *fakeEmbedder) HealthCheck(context.Context) error { return f.healthErr }

type fakeBudget struct{}

func (fakeBudget) Provider() string        { return "openai" }
func (fakeBudget) DailyLimit() int64       { return 1000 }
func (fakeBudget) MonthlyLimit() int64     { return 0 }
func (fakeBudget) DailyUsed() int64        { return 1000 }
func (fakeBudget) MonthlyUsed() int64      { return 4200 }
func (fakeBudget) TotalUsed() int64        { return 9000 }
func (fakeBudget) RemainingDaily() int64   { return 0 }
func (fakeBudget) RemainingMonthly() int64 { return -1 }

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

type testEnv struct {
	embedder *fakeEmbedder
	server   *Server
	handler  http.Handler
}

type envOption func(*envConfig)

type envConfig struct {
	router   RouterConfig
	maxBytes int64
	cache    healthuc.CachePinger
}

func withRouter(rc RouterConfig) envOption { return func(c *envConfig) { c.router = rc } }
func withMaxBytes(n int64) envOption       { return func(c *envConfig) { c.maxBytes = n } }
func withCache(p healthuc.CachePinger) envOption {
	return func(c *envConfig) { c.cache = p }
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	var cfg envConfig
	for _, o := range opts {
		o(&cfg)
	}

	emb := &fakeEmbedder{}
	logger := zap.NewNop()
	srv := NewServer(
		scoringuc.New(emb, scoringuc.Config{}),
		extractor.New(cfg.maxBytes, logger),
		usageuc.New(fakeBudget{}),
		healthuc.New(cfg.cache, emb),
		logger,
	)
	return &testEnv{embedder: emb, server: srv, handler: NewRouter(srv, cfg.router)}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func jsonRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	return req
}

type formFile struct {
	field string
	name  string
	data  []byte
}

func multipartRequest(t *testing.T, path string, fields map[string]string, files ...formFile) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field %s: %v", k, err)
		}
	}
	for _, f := range files {
		w, err := mw.CreateFormFile(f.field, f.name)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := w.Write(f.data); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode[T any](t *testing.T, body io.Reader) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

// docxWithParagraphs builds a minimal DOCX package with one run per paragraph.
func docxWithParagraphs(t *testing.T, texts ...string) []byte {
	t.Helper()

	var body strings.Builder
	for _, text := range texts {
		body.WriteString(`<w:p><w:r><w:t xml:space="preserve">` + text + `</w:t></w:r></w:p>`)
	}

	files := []struct{ name, content string }{
		{"[Content_Types].xml", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
			`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
			`<Default Extension="xml" ContentType="application/xml"/>` +
			`<Override PartName="/word/document.xml" ` +
			`ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>` +
			`</Types>`},
		{"word/_rels/document.xml.rels", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
			`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"></Relationships>`},
		{"word/document.xml", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
			`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
			body.String() + `</w:body></w:document>`},
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range files {
		w, err := zw.Create(f.name)
		if err != nil {
			t.Fatalf("zip create %s: %v", f.name, err)
		}
		if _, err := w.Write([]byte(f.content)); err != nil {
			t.Fatalf("zip write %s: %v", f.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

package webserver

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/resepqa/web/internal/application/ask"
	"github.com/resepqa/web/internal/infrastructure/config"
	"github.com/resepqa/web/internal/infrastructure/monitoring"
	"github.com/resepqa/web/pkg/errors"
	"github.com/resepqa/web/pkg/healthcheck"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

const answeredBody = `{
	"answer": "Coba resep berikut.",
	"results": [
		{
			"score": 0.912,
			"recipe_name": "Telur Dadar",
			"ingredients": ["2 butir telur", "garam"],
			"instructions": ["Kocok telur", "Goreng"]
		},
		{"score": 0.5, "text": "Rebus air."}
	]
}`

const telurDadarMarkdown = "### 🛒 Bahan-bahan\n- 2 butir telur\n- garam\n\n### 🍳 Cara Memasak\n1. Kocok telur\n2. Goreng"

// WebServerTestSuite drives the router against a fake ask service
type WebServerTestSuite struct {
	suite.Suite
	backend  *httptest.Server
	respond  atomic.Value
	calls    atomic.Int32
	server   *WebServer
	sessions *SessionStore
	metrics  *monitoring.MetricsCollector
	cookies  []*http.Cookie
}

func TestWebServerTestSuite(t *testing.T) {
	suite.Run(t, new(WebServerTestSuite))
}

func (s *WebServerTestSuite) SetupTest() {
	s.calls.Store(0)
	s.cookies = nil
	s.reply(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, answeredBody)
	})
	s.backend = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.calls.Add(1)
		s.respond.Load().(http.HandlerFunc)(w, r)
	}))

	cfg := testConfig()
	cfg.API.BaseURL = s.backend.URL
	s.server = s.newServer(cfg)
}

func (s *WebServerTestSuite) TearDownTest() {
	s.backend.Close()
}

func (s *WebServerTestSuite) reply(h http.HandlerFunc) {
	s.respond.Store(h)
}

func (s *WebServerTestSuite) newServer(cfg *config.Config) *WebServer {
	logger := zap.NewNop()
	s.metrics = monitoring.NewMetricsCollector(logger)
	s.sessions = NewSessionStore(cfg, logger)

	health := healthcheck.New(cfg.App.Version, logger)
	health.Register("sessions", healthcheck.NewCustomChecker("sessions",
		func(ctx context.Context) (healthcheck.Status, string, interface{}) {
			return healthcheck.StatusHealthy, "", map[string]int{"active": s.sessions.Count()}
		}))

	service := ask.NewService(NewAPIClient(cfg, logger), s.metrics, logger)
	server, err := NewWebServer(cfg, logger, service, s.sessions, NewMarkdownRenderer(), health, s.metrics)
	s.Require().NoError(err)
	return server
}

// do sends a request through the router, carrying the session cookie
// between calls the way a browser would.
func (s *WebServerTestSuite) do(req *http.Request) *httptest.ResponseRecorder {
	for _, c := range s.cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	s.server.Handler().ServeHTTP(rec, req)
	if cookies := rec.Result().Cookies(); len(cookies) > 0 {
		s.cookies = cookies
	}
	return rec
}

func (s *WebServerTestSuite) get(path string) *httptest.ResponseRecorder {
	return s.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (s *WebServerTestSuite) ask(question string, htmx bool) *httptest.ResponseRecorder {
	form := url.Values{"question": {question}}
	req := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if htmx {
		req.Header.Set("HX-Request", "true")
	}
	return s.do(req)
}

func (s *WebServerTestSuite) document(rec *httptest.ResponseRecorder) *goquery.Document {
	doc, err := goquery.NewDocumentFromReader(rec.Body)
	s.Require().NoError(err)
	return doc
}

func (s *WebServerTestSuite) TestHomeRendersNavAndForm() {
	rec := s.get("/")

	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Header().Get("Content-Type"), "text/html")
	s.NotEmpty(rec.Header().Get("Content-Security-Policy"))
	s.Len(s.cookies, 1)

	doc := s.document(rec)
	s.Equal("Tanya Resep", strings.TrimSpace(doc.Find("nav.navbar a.active").Text()))
	s.Equal(2, doc.Find("nav.navbar ul a").Length())
	s.Equal(1, doc.Find(`form[action="/ask"] input[name="question"]`).Length())
	s.Equal("/ask", doc.Find("form").AttrOr("hx-post", ""))
	s.Equal("1000", doc.Find(`input[name="question"]`).AttrOr("maxlength", ""))
	s.Equal(0, doc.Find("#result article").Length())
	s.Equal(0, doc.Find("#result .alert").Length())
}

func (s *WebServerTestSuite) TestAboutPage() {
	rec := s.get("/about")

	s.Equal(http.StatusOK, rec.Code)
	doc := s.document(rec)
	s.Equal("Tentang Kami", strings.TrimSpace(doc.Find("nav.navbar a.active").Text()))
	s.Equal("Tentang Kami", strings.TrimSpace(doc.Find("section.about h1").Text()))
	s.Contains(doc.Find("title").Text(), "Tentang Kami")
	s.Empty(s.cookies, "about page needs no session")
}

func (s *WebServerTestSuite) TestUnknownPath() {
	rec := s.get("/resep/123")

	s.Equal(http.StatusNotFound, rec.Code)
	s.Contains(rec.Body.String(), "Halaman tidak ditemukan")
}

func (s *WebServerTestSuite) TestAskWithoutHTMXRedirectsToHome() {
	rec := s.ask("telur dadar", false)

	s.Equal(http.StatusSeeOther, rec.Code)
	s.Equal("/", rec.Header().Get("Location"))

	doc := s.document(s.get("/"))
	s.Equal("telur dadar", doc.Find(`input[name="question"]`).AttrOr("value", ""))
	s.Equal(2, doc.Find("#result article.card").Length())
	s.Contains(doc.Find("#result article.answer").Text(), "Coba resep berikut.")
}

func (s *WebServerTestSuite) TestAskWithHTMXRendersResultCards() {
	rec := s.ask("telur dadar", true)

	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal(int32(1), s.calls.Load())

	doc := s.document(rec)
	s.Equal(0, doc.Find("nav").Length(), "partial carries no page chrome")

	cards := doc.Find("article.card")
	s.Require().Equal(2, cards.Length())

	first := cards.Eq(0)
	s.True(first.HasClass("structured"))
	s.Equal("Telur Dadar", strings.TrimSpace(first.Find("header h3").Text()))
	s.Equal("0.912", first.Find("span.score").Text())
	s.Equal(telurDadarMarkdown, first.Find("button.copy").AttrOr("data-copy", ""))
	s.Equal("🛒 Bahan-bahan", strings.TrimSpace(first.Find(".markdown h3").First().Text()))
	s.Equal(2, first.Find(".markdown ul li").Length())
	s.Equal(2, first.Find(".markdown ol li").Length())

	second := cards.Eq(1)
	s.False(second.HasClass("structured"))
	s.Equal("Resep #2", strings.TrimSpace(second.Find("header h3").Text()))
	s.Equal("0.500", second.Find("span.score").Text())
	s.Contains(second.Find(".markdown").Text(), "Rebus air.")
}

func (s *WebServerTestSuite) TestEmptyQuestionIsIgnored() {
	s.ask("telur dadar", true)

	rec := s.ask("   ", true)

	s.Equal(http.StatusNoContent, rec.Code)
	s.Empty(rec.Body.String())
	s.Equal(int32(1), s.calls.Load(), "empty question never reaches the service")

	doc := s.document(s.get("/"))
	s.Equal(2, doc.Find("#result article.card").Length(), "previous answer is kept")
}

func (s *WebServerTestSuite) TestQuestionInFlightIsIgnored() {
	s.get("/")
	session, err := s.sessions.Get(s.requestWithCookies())
	s.Require().NoError(err)
	s.Require().True(session.Chat.Begin("soto"))

	rec := s.ask("rawon", true)

	s.Equal(http.StatusNoContent, rec.Code)
	s.Equal(int32(0), s.calls.Load())
	s.Equal("soto", session.Chat.Snapshot().Question)
}

func (s *WebServerTestSuite) requestWithCookies() *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range s.cookies {
		req.AddCookie(c)
	}
	return req
}

func (s *WebServerTestSuite) TestRecipeNotFoundShowsMessage() {
	tests := []struct {
		name string
		body string
	}{
		{"no results", `{"answer": "tidak ada", "results": []}`},
		{"error placeholder", `{"results": [{"error": "Resep tidak ada di dataset"}]}`},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.reply(func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, tt.body)
			})

			doc := s.document(s.ask("gudeg", true))

			s.Equal(errors.MessageRecipeNotFound, strings.TrimSpace(doc.Find(".alert.error").Text()))
			s.Equal(0, doc.Find("article").Length())
		})
	}
}

func (s *WebServerTestSuite) TestServiceFailureShowsUnreachableMessage() {
	s.reply(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusInternalServerError)
	})

	doc := s.document(s.ask("gudeg", true))

	s.Equal(errors.MessageServerUnreachable, strings.TrimSpace(doc.Find(".alert.error").Text()))

	// The error survives a full page load
	page := s.document(s.get("/"))
	s.Equal(errors.MessageServerUnreachable, strings.TrimSpace(page.Find("#result .alert.error").Text()))
}

func (s *WebServerTestSuite) TestAPIAsk() {
	req := httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader(`{"question": " telur dadar "}`))
	req.Header.Set("Content-Type", "application/json")
	rec := s.do(req)

	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal("application/json", rec.Header().Get("Content-Type"))

	var out apiAnswer
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&out))
	s.Equal("telur dadar", out.Question)
	s.Equal("Coba resep berikut.", out.Answer)
	s.Contains(out.AnswerHTML, "<p>Coba resep berikut.</p>")
	s.Require().Len(out.Results, 2)
	s.Equal("Telur Dadar", out.Results[0].Title)
	s.True(out.Results[0].Structured)
	s.Equal(telurDadarMarkdown, out.Results[0].Markdown)
	s.Contains(out.Results[0].HTML, "<ul>")
	s.False(out.AnsweredAt.IsZero())
}

func (s *WebServerTestSuite) TestAPIAskErrors() {
	tests := []struct {
		name     string
		body     string
		respond  http.HandlerFunc
		status   int
		code     errors.ErrorCode
		message  string
		reaching bool
	}{
		{
			name:    "malformed body",
			body:    `{"question":`,
			status:  http.StatusBadRequest,
			code:    errors.CodeBadRequest,
			message: "",
		},
		{
			name:    "empty question",
			body:    `{"question": "  "}`,
			status:  http.StatusBadRequest,
			code:    errors.CodeBadRequest,
			message: errors.MessageEmptyQuestion,
		},
		{
			name: "not found",
			body: `{"question": "gudeg"}`,
			respond: func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, `{"results": []}`)
			},
			status:   http.StatusNotFound,
			code:     errors.CodeRecipeNotFound,
			message:  errors.MessageRecipeNotFound,
			reaching: true,
		},
		{
			name: "service down",
			body: `{"question": "gudeg"}`,
			respond: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
			status:   http.StatusBadGateway,
			code:     errors.CodeExternalServiceError,
			message:  errors.MessageServerUnreachable,
			reaching: true,
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.calls.Store(0)
			if tt.respond != nil {
				s.reply(tt.respond)
			}

			req := httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader(tt.body))
			req.Header.Set("X-Request-Id", "req-42")
			rec := s.do(req)

			s.Equal(tt.status, rec.Code)

			var out errors.ErrorResponse
			s.Require().NoError(json.NewDecoder(rec.Body).Decode(&out))
			s.Equal(tt.code, out.Error.Code)
			if tt.message != "" {
				s.Equal(tt.message, out.Error.Message)
			}
			s.Equal("req-42", out.Error.RequestID)
			s.Equal(tt.reaching, s.calls.Load() > 0)
		})
	}
}

func (s *WebServerTestSuite) TestRateLimit() {
	cfg := testConfig()
	cfg.API.BaseURL = s.backend.URL
	cfg.RateLimit = config.RateLimitConfig{Enable: true, RequestsPerMin: 1, BurstSize: 1}
	s.server = s.newServer(cfg)

	s.Equal(http.StatusOK, s.ask("soto", true).Code)

	rec := s.ask("soto", true)
	s.Equal(http.StatusTooManyRequests, rec.Code)
	s.Equal("60", rec.Header().Get("Retry-After"))
	doc := s.document(rec)
	s.Equal(errors.MessageTooManyRequests, strings.TrimSpace(doc.Find(".alert.error").Text()))

	api := s.do(httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader(`{"question":"soto"}`)))
	s.Equal(http.StatusTooManyRequests, api.Code)
	var out errors.ErrorResponse
	s.Require().NoError(json.NewDecoder(api.Body).Decode(&out))
	s.Equal(errors.CodeTooManyRequests, out.Error.Code)

	s.Equal(int32(1), s.calls.Load())
	s.Equal(http.StatusOK, s.get("/").Code, "pages are not limited")
}

func (s *WebServerTestSuite) TestHealthEndpoints() {
	for _, path := range []string{"/health", "/ready", "/live"} {
		rec := s.get(path)
		s.Equal(http.StatusOK, rec.Code, path)
		s.Equal("application/json", rec.Header().Get("Content-Type"), path)
	}

	var body map[string]interface{}
	s.Require().NoError(json.Unmarshal(s.get("/health").Body.Bytes(), &body))
	s.Equal("healthy", body["status"])
}

func (s *WebServerTestSuite) TestMetricsEndpoint() {
	s.ask("telur dadar", true)
	s.ask("", true)

	rec := s.get("/metrics")

	s.Equal(http.StatusOK, rec.Code)
	body := rec.Body.String()
	s.Contains(body, `ask_requests_total{outcome="answered"} 1`)
	s.Contains(body, `ask_requests_total{outcome="rejected"} 1`)
	s.Contains(body, `http_requests_total{method="POST",path="/ask",status_code="200"} 1`)
}

func (s *WebServerTestSuite) TestStaticAssets() {
	rec := s.get("/static/js/app.js")
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), "clipboard")

	s.Equal(http.StatusOK, s.get("/static/css/app.css").Code)
}

func (s *WebServerTestSuite) TestPagesAreCompressed() {
	cfg := testConfig()
	cfg.API.BaseURL = s.backend.URL
	cfg.Server.CompressionLevel = 5
	s.server = s.newServer(cfg)

	req := httptest.NewRequest(http.MethodGet, "/about", nil)
	req.Header.Set("Accept-Encoding", "br")
	rec := s.do(req)

	s.Equal(http.StatusOK, rec.Code)
	s.Equal("br", rec.Header().Get("Content-Encoding"))
}

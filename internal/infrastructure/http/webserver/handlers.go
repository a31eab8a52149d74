package webserver

import (
	"encoding/json"
	"html/template"
	"io"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/resepqa/web/internal/domain/answer"
	"github.com/resepqa/web/internal/domain/chat"
	"github.com/resepqa/web/pkg/errors"
	"go.uber.org/zap"
)

// maxQuestionBytes bounds the JSON body of /api/ask
const maxQuestionBytes = 16 << 10

// resultView is a result card ready for the template
type resultView struct {
	Title      string
	Score      *float64
	Markdown   string
	HTML       template.HTML
	Structured bool
}

// chatView is what the chat page and its partial render
type chatView struct {
	Phase          chat.Phase
	Question       string
	Error          string
	AnswerMarkdown string
	AnswerHTML     template.HTML
	Results        []resultView
}

func (v chatView) Loading() bool  { return v.Phase == chat.PhaseLoading }
func (v chatView) Failed() bool   { return v.Phase == chat.PhaseError }
func (v chatView) Answered() bool { return v.Phase == chat.PhaseResponse }

// renderResponse converts a normalized answer to HTML
func (s *WebServer) renderResponse(resp answer.NormalizedAnswer) (template.HTML, []resultView, error) {
	answerHTML, err := s.renderer.Render(resp.Answer)
	if err != nil {
		return "", nil, err
	}

	results := make([]resultView, 0, len(resp.Results))
	for _, res := range resp.Results {
		html, err := s.renderer.Render(res.Markdown)
		if err != nil {
			return "", nil, err
		}
		results = append(results, resultView{
			Title:      res.Title,
			Score:      res.Score,
			Markdown:   res.Markdown,
			HTML:       html,
			Structured: res.Structured,
		})
	}
	return answerHTML, results, nil
}

func (s *WebServer) buildChatView(v chat.View) (chatView, error) {
	view := chatView{
		Phase:    v.Phase,
		Question: v.Question,
		Error:    v.Error,
	}
	if v.Response == nil {
		return view, nil
	}

	answerHTML, results, err := s.renderResponse(*v.Response)
	if err != nil {
		return view, err
	}
	view.AnswerMarkdown = v.Response.Answer
	view.AnswerHTML = answerHTML
	view.Results = results
	return view, nil
}

func (s *WebServer) handleHome(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r)

	view, err := s.buildChatView(session.Chat.Snapshot())
	if err != nil {
		s.logger.Error("Failed to render answer", zap.Error(err))
		view.Phase = chat.PhaseError
		view.Error = errors.MessageInternal
	}

	s.renderTemplate(w, http.StatusOK, "chat", map[string]interface{}{
		"Nav":  "chat",
		"Chat": view,
	})
}

func (s *WebServer) handleAbout(w http.ResponseWriter, r *http.Request) {
	s.renderTemplate(w, http.StatusOK, "about", map[string]interface{}{
		"Title": "Tentang Kami - " + s.config.App.Name,
		"Nav":   "about",
	})
}

func (s *WebServer) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.renderTemplate(w, http.StatusNotFound, "not-found", map[string]interface{}{
		"Title": "Halaman tidak ditemukan - " + s.config.App.Name,
	})
}

// handleAsk runs one submission through the session's form state. An empty
// question, or one sent while another is in flight, leaves the state alone.
func (s *WebServer) handleAsk(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r)
	question := r.FormValue("question")

	if !session.Chat.Begin(question) {
		if s.metrics != nil {
			s.metrics.AskRejected()
		}
		s.logger.Debug("Submission ignored",
			zap.String("session_id", session.ID),
			zap.Bool("in_flight", session.Chat.Snapshot().Loading()),
		)
		if isHTMX(r) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	resp, err := s.askService.Ask(r.Context(), question)
	if err != nil {
		appErr := errors.Wrap(err, errors.MessageInternal)
		session.Chat.Fail(appErr.Message)
		s.logger.Info("Question failed",
			zap.String("request_id", chimw.GetReqID(r.Context())),
			zap.String("code", string(appErr.Code)),
		)
	} else {
		session.Chat.Succeed(resp)
	}

	if !isHTMX(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	view, err := s.buildChatView(session.Chat.Snapshot())
	if err != nil {
		s.logger.Error("Failed to render answer", zap.Error(err))
		view.Phase = chat.PhaseError
		view.Error = errors.MessageInternal
	}
	s.renderTemplate(w, http.StatusOK, "partials/result", map[string]interface{}{
		"Chat": view,
	})
}

// askRequest is the JSON body of POST /api/ask
type askRequest struct {
	Question string `json:"question"`
}

type apiResult struct {
	Title      string   `json:"title"`
	Score      *float64 `json:"score,omitempty"`
	Markdown   string   `json:"markdown"`
	HTML       string   `json:"html"`
	Structured bool     `json:"structured"`
}

type apiAnswer struct {
	Question   string      `json:"question"`
	Answer     string      `json:"answer"`
	AnswerHTML string      `json:"answer_html"`
	Results    []apiResult `json:"results"`
	AnsweredAt time.Time   `json:"answered_at"`
}

func (s *WebServer) handleAPIAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	body := http.MaxBytesReader(w, r.Body, maxQuestionBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil && err != io.EOF {
		s.writeError(w, r, errors.NewBadRequestError("Body harus berupa JSON {\"question\": \"...\"}."))
		return
	}

	resp, err := s.askService.Ask(r.Context(), req.Question)
	if err != nil {
		s.writeError(w, r, errors.Wrap(err, errors.MessageInternal))
		return
	}

	answerHTML, results, err := s.renderResponse(resp)
	if err != nil {
		s.writeError(w, r, errors.NewInternalError("").WithCause(err))
		return
	}

	out := apiAnswer{
		Question:   resp.Question,
		Answer:     resp.Answer,
		AnswerHTML: string(answerHTML),
		Results:    make([]apiResult, 0, len(results)),
		AnsweredAt: time.Now().UTC(),
	}
	for _, res := range results {
		out.Results = append(out.Results, apiResult{
			Title:      res.Title,
			Score:      res.Score,
			Markdown:   res.Markdown,
			HTML:       string(res.HTML),
			Structured: res.Structured,
		})
	}

	s.writeJSON(w, http.StatusOK, out)
}

func (s *WebServer) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	if s.metrics != nil {
		s.metrics.RecordError("web", "rate_limited")
	}
	appErr := errors.NewTooManyRequestsError()

	switch {
	case r.URL.Path == "/api/ask":
		s.writeError(w, r, appErr)
	case isHTMX(r):
		s.renderTemplate(w, http.StatusTooManyRequests, "partials/result", map[string]interface{}{
			"Chat": chatView{Phase: chat.PhaseError, Error: appErr.Message},
		})
	default:
		http.Error(w, appErr.Message, appErr.StatusCode())
	}
}

func (s *WebServer) writeError(w http.ResponseWriter, r *http.Request, appErr *errors.AppError) {
	if appErr.StatusCode() >= http.StatusInternalServerError {
		s.logger.Error("Request error",
			zap.String("request_id", chimw.GetReqID(r.Context())),
			zap.String("code", string(appErr.Code)),
			zap.String("details", appErr.Details),
			zap.Error(appErr.Cause),
		)
	}
	s.writeJSON(w, appErr.StatusCode(), errors.ToErrorResponse(appErr, chimw.GetReqID(r.Context())))
}

func (s *WebServer) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

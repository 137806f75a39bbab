package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"asaas-contaazul-relay/internal/config"
	"asaas-contaazul-relay/internal/contaazul"
	"asaas-contaazul-relay/internal/logging"
	"asaas-contaazul-relay/internal/relay"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const webhookTokenHeader = "asaas-access-token"

type Server struct {
	cfg       *config.Config
	processor *relay.Processor
	oauth     *contaazul.OAuth
	logger    *slog.Logger
}

func New(cfg *config.Config, processor *relay.Processor, oauth *contaazul.OAuth, logger *slog.Logger) *Server {
	return &Server{
		cfg:       cfg,
		processor: processor,
		oauth:     oauth,
		logger:    logger,
	}
}

func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /oauth/authorize", s.handleAuthorize)
	mux.HandleFunc("GET /oauth/callback", s.handleCallback)
	mux.HandleFunc("POST /asaas/webhook", s.handleWebhook)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// handleAuthorize returns the authorization URL instead of redirecting, so an
// operator can inspect it before visiting.
func (s *Server) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"auth_url": s.oauth.BuildAuthorizationURL("")})
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := logging.AppendCtx(r.Context(), slog.String("requestId", uuid.New().String()))

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		writeHTML(w, http.StatusBadRequest, fmt.Sprintf("<h1>Erro na autorização: %s</h1>", errParam))
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		writeHTML(w, http.StatusBadRequest, "<h1>Código de autorização não recebido</h1>")
		return
	}

	token, err := s.oauth.ExchangeCodeForToken(ctx, code)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error exchanging code for token", "error", err)
		writeHTML(w, http.StatusInternalServerError, fmt.Sprintf("<h1>Erro ao obter token: %s</h1>", err))
		return
	}

	if err := s.oauth.PersistToken(ctx, token); err != nil {
		s.logger.ErrorContext(ctx, "Error persisting token", "error", err)
		writeHTML(w, http.StatusInternalServerError, fmt.Sprintf("<h1>Erro ao obter token: %s</h1>", err))
		return
	}

	s.logger.InfoContext(ctx, "OAuth2 token stored")

	writeHTML(w, http.StatusOK, `
		<h1>✅ Autorização concluída com sucesso!</h1>
		<p>Você já pode fechar esta janela.</p>
		<p>O sistema está pronto para integrar com a Conta Azul.</p>
	`)
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := logging.AppendCtx(r.Context(), slog.String("requestId", uuid.New().String()))

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"detail": "unreadable body"})
		return
	}

	outcome, err := s.processor.Process(ctx, r.Header.Get(webhookTokenHeader), body)
	if err != nil {
		s.writeProcessError(ctx, w, err)
		return
	}

	switch {
	case outcome.Duplicate:
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "duplicate": true})
	case outcome.Ignored != "":
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "ignored": outcome.Ignored})
	default:
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "parcela_id": outcome.ParcelaID})
	}
}

func (s *Server) writeProcessError(ctx context.Context, w http.ResponseWriter, err error) {
	var upstreamErr *relay.UpstreamError

	switch {
	case errors.Is(err, relay.ErrUnauthorized):
		writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "Invalid webhook token"})
	case errors.Is(err, relay.ErrAuthRequired):
		writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "Token OAuth2 inválido. Autorize em /oauth/authorize"})
	case errors.Is(err, relay.ErrMissingReference):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": "externalReference ausente (esperado parcela_id)"})
	case errors.As(err, &upstreamErr):
		writeJSON(w, http.StatusBadGateway, map[string]any{"detail": map[string]any{"conta_azul": upstreamErr.Body}})
	default:
		s.logger.ErrorContext(ctx, "Error processing webhook", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"detail": "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, body map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeHTML(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

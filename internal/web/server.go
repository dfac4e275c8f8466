// Package web serves the chat UI: login/signup, the sidebar forms for
// profile, job and goals, the session picker and the chat form itself.
package web

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"time"

	"linkedin-optimizer/internal/auth"
	"linkedin-optimizer/internal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

type Server struct {
	authSvc   *auth.Service
	orch      *session.Orchestrator
	tmpl      *template.Template
	server    *http.Server
	port      int
	startTime time.Time
}

func NewServer(authSvc *auth.Service, orch *session.Orchestrator, port int) *Server {
	funcs := template.FuncMap{
		"shortLabel": shortLabel,
		"groupSuffix": func(s string) string {
			if len(s) > 8 {
				return s[len(s)-8:]
			}
			return s
		},
	}
	tmpl := template.Must(template.New("web").Funcs(funcs).ParseFS(templateFS, "templates/*.html"))
	return &Server{
		authSvc:   authSvc,
		orch:      orch,
		tmpl:      tmpl,
		port:      port,
		startTime: time.Now(),
	}
}

// shortLabel truncates a session label for the sidebar. Counted in runes so
// a multibyte first query never yields invalid UTF-8.
func shortLabel(s string) string {
	r := []rune(s)
	if len(r) > 40 {
		return string(r[:40]) + "..."
	}
	return s
}

func (ws *Server) Start() error {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/status", ws.handleStatus)
	mux.HandleFunc("/login", ws.handleLogin)
	mux.HandleFunc("/signup", ws.handleSignup)
	mux.HandleFunc("/logout", ws.handleLogout)
	mux.HandleFunc("/ask", ws.handleAsk)
	mux.HandleFunc("/voice", ws.handleVoice)
	mux.HandleFunc("/profile", ws.handleProfile)
	mux.HandleFunc("/job", ws.handleJob)
	mux.HandleFunc("/goals", ws.handleGoals)
	mux.HandleFunc("/resume", ws.handleResume)
	mux.HandleFunc("/session/new", ws.handleSessionNew)
	mux.HandleFunc("/session/load", ws.handleSessionLoad)
	mux.HandleFunc("/", ws.handleHome)

	ws.server = &http.Server{
		Addr:        fmt.Sprintf(":%d", ws.port),
		Handler:     mux,
		ReadTimeout: 30 * time.Second,
		// Completion and synthesis calls block for the duration of the
		// remote request, so the write timeout has to cover a full turn.
		WriteTimeout: 180 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Printf("starting web server on http://localhost:%d", ws.port)
	return ws.server.ListenAndServe()
}

func (ws *Server) Stop() error {
	if ws.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return ws.server.Shutdown(ctx)
}

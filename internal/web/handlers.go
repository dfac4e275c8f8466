package web

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"html/template"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"linkedin-optimizer/internal/contextfmt"
	"linkedin-optimizer/internal/llm"
	"linkedin-optimizer/internal/resume"
	"linkedin-optimizer/internal/session"
	"linkedin-optimizer/internal/storage"
)

const sessionCookie = "session_token"

// 10 MB cap for resume and audio uploads.
const maxUploadBytes = 10 << 20

type loginView struct {
	Error string
}

type turnView struct {
	You     bool
	Content string
	// AudioURL is a data: URI; built here because html/template rejects
	// data: schemes assembled inside templates.
	AudioURL template.URL
}

type groupView struct {
	Group     string
	Label     string
	StartedAt time.Time
	Active    bool
}

type chatView struct {
	Identity      string
	Group         string
	Goals         string
	ResumeText    string
	Transcript    []turnView
	Groups        []groupView
	SpeechEnabled bool
	Notice        string
	Warning       string
	Error         string
}

func (ws *Server) currentSession(r *http.Request) (*session.Session, string, bool) {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return nil, "", false
	}
	s, ok := ws.orch.Get(c.Value)
	return s, c.Value, ok
}

func (ws *Server) renderLogin(w http.ResponseWriter, errMsg string) {
	if err := ws.tmpl.ExecuteTemplate(w, "login.html", loginView{Error: errMsg}); err != nil {
		log.Printf("render login: %v", err)
	}
}

// redirectFlash sends the browser back to the chat page with inline status
// messages carried as query parameters.
func redirectFlash(w http.ResponseWriter, r *http.Request, notice, warn, errMsg string) {
	q := url.Values{}
	if notice != "" {
		q.Set("notice", notice)
	}
	if warn != "" {
		q.Set("warn", warn)
	}
	if errMsg != "" {
		q.Set("error", errMsg)
	}
	target := "/"
	if enc := q.Encode(); enc != "" {
		target += "?" + enc
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (ws *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	s, _, ok := ws.currentSession(r)
	if !ok {
		ws.renderLogin(w, r.URL.Query().Get("error"))
		return
	}

	// Render from a locked copy. A turn in flight on another request for the
	// same cookie mutates the session concurrently.
	snap := s.Snapshot()
	view := chatView{
		Identity:      snap.Identity,
		Group:         snap.Group,
		Goals:         snap.CareerGoals,
		ResumeText:    snap.ResumeText,
		SpeechEnabled: ws.orch.SpeechEnabled(),
		Notice:        r.URL.Query().Get("notice"),
		Warning:       r.URL.Query().Get("warn"),
		Error:         r.URL.Query().Get("error"),
	}
	for _, t := range snap.Transcript {
		tv := turnView{You: t.Role == llm.RoleUser, Content: t.Content}
		if len(t.Audio) > 0 {
			tv.AudioURL = template.URL("data:audio/mpeg;base64," + base64.StdEncoding.EncodeToString(t.Audio))
		}
		view.Transcript = append(view.Transcript, tv)
	}
	groups, err := ws.orch.ListGroups(r.Context(), s)
	if err != nil {
		log.Printf("list session groups for %s: %v", snap.Identity, err)
		if view.Warning == "" {
			view.Warning = "session history is unavailable"
		}
	}
	for _, g := range groups {
		view.Groups = append(view.Groups, groupView{
			Group:     g.Group,
			Label:     g.FirstQuery,
			StartedAt: g.StartedAt,
			Active:    g.Group == snap.Group,
		})
	}

	if err := ws.tmpl.ExecuteTemplate(w, "chat.html", view); err != nil {
		log.Printf("render chat: %v", err)
	}
}

func (ws *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	email := r.FormValue("email")
	password := r.FormValue("password")
	if email == "" || password == "" {
		ws.renderLogin(w, "Please enter both email and password.")
		return
	}
	rec, err := ws.authSvc.Login(r.Context(), email, password)
	if errors.Is(err, storage.ErrInvalidCredential) {
		ws.renderLogin(w, "Invalid email or password.")
		return
	}
	if err != nil {
		log.Printf("login failed for %s: %v", email, err)
		ws.renderLogin(w, "Login is temporarily unavailable.")
		return
	}
	ws.attach(w, r, rec)
}

func (ws *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	email := r.FormValue("email")
	password := r.FormValue("password")
	if email == "" || password == "" {
		ws.renderLogin(w, "Please enter both email and password.")
		return
	}
	rec, err := ws.authSvc.SignUp(r.Context(), email, password)
	if errors.Is(err, storage.ErrDuplicateIdentity) {
		ws.renderLogin(w, "An account with this email already exists.")
		return
	}
	if err != nil {
		log.Printf("signup failed for %s: %v", email, err)
		ws.renderLogin(w, "Signup is temporarily unavailable.")
		return
	}
	ws.attach(w, r, rec)
}

func (ws *Server) attach(w http.ResponseWriter, r *http.Request, rec storage.UserRecord) {
	token, _ := ws.orch.Attach(rec)
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (ws *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if _, token, ok := ws.currentSession(r); ok {
		ws.orch.Detach(token)
	}
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "", Path: "/", MaxAge: -1})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (ws *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	s, _, ok := ws.currentSession(r)
	if !ok || r.Method != http.MethodPost {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	query := r.FormValue("query")
	if query == "" {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	wantAudio := r.FormValue("voice") == "on"
	result, err := ws.orch.Ask(r.Context(), s, query, wantAudio)
	if err != nil {
		log.Printf("ask failed for %s: %v", s.Identity, err)
		redirectFlash(w, r, "", "", "The assistant could not answer this question. Please try again.")
		return
	}
	redirectFlash(w, r, "", result.Warning, "")
}

func (ws *Server) handleVoice(w http.ResponseWriter, r *http.Request) {
	s, _, ok := ws.currentSession(r)
	if !ok || r.Method != http.MethodPost {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	data, filename, err := ws.formFile(r, "audio")
	if err != nil {
		redirectFlash(w, r, "", "no audio received, please type your question", "")
		return
	}
	query, err := ws.orch.Transcribe(r.Context(), data, filename)
	if err != nil {
		log.Printf("transcription failed for %s: %v", s.Identity, err)
		redirectFlash(w, r, "", "transcription failed, please type your question", "")
		return
	}
	result, err := ws.orch.Ask(r.Context(), s, query, ws.orch.SpeechEnabled())
	if err != nil {
		log.Printf("ask failed for %s: %v", s.Identity, err)
		redirectFlash(w, r, "", "", "The assistant could not answer this question. Please try again.")
		return
	}
	redirectFlash(w, r, "", result.Warning, "")
}

func (ws *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	s, _, ok := ws.currentSession(r)
	if !ok || r.Method != http.MethodPost {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	blob := contextfmt.FormatProfile(
		r.FormValue("name"),
		r.FormValue("skills"),
		r.FormValue("about"),
		r.FormValue("experience"),
		r.FormValue("education"),
	)
	if err := ws.orch.SaveProfile(r.Context(), s, blob); err != nil {
		redirectFlash(w, r, "", "profile saved for this session only", "")
		return
	}
	redirectFlash(w, r, "Profile saved successfully!", "", "")
}

func (ws *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	s, _, ok := ws.currentSession(r)
	if !ok || r.Method != http.MethodPost {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	blob := contextfmt.FormatJob(
		r.FormValue("title"),
		r.FormValue("company"),
		r.FormValue("skills"),
		r.FormValue("description"),
	)
	if err := ws.orch.SaveJob(r.Context(), s, blob); err != nil {
		redirectFlash(w, r, "", "job details saved for this session only", "")
		return
	}
	redirectFlash(w, r, "Job details saved successfully!", "", "")
}

func (ws *Server) handleGoals(w http.ResponseWriter, r *http.Request) {
	s, _, ok := ws.currentSession(r)
	if !ok || r.Method != http.MethodPost {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	goals := r.FormValue("goals")
	if goals == "" {
		redirectFlash(w, r, "", "", "Please enter career goals.")
		return
	}
	if err := ws.orch.SaveGoals(r.Context(), s, goals); err != nil {
		redirectFlash(w, r, "", "career goals saved for this session only", "")
		return
	}
	redirectFlash(w, r, "Career goals saved!", "", "")
}

func (ws *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	s, _, ok := ws.currentSession(r)
	if !ok || r.Method != http.MethodPost {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	data, contentType, err := ws.formFileWithType(r, "resume")
	if err != nil {
		redirectFlash(w, r, "", "", "Please choose a resume file to upload.")
		return
	}
	text, err := resume.ExtractText(contentType, data)
	if err != nil {
		log.Printf("resume extraction failed for %s: %v", s.Identity, err)
		redirectFlash(w, r, "", "", "Could not read that resume file.")
		return
	}
	s.SetResumeText(text)
	redirectFlash(w, r, "Resume text extracted, review it in the About field.", "", "")
}

func (ws *Server) handleSessionNew(w http.ResponseWriter, r *http.Request) {
	s, _, ok := ws.currentSession(r)
	if !ok || r.Method != http.MethodPost {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	ws.orch.NewGroup(s)
	redirectFlash(w, r, "New session created!", "", "")
}

func (ws *Server) handleSessionLoad(w http.ResponseWriter, r *http.Request) {
	s, _, ok := ws.currentSession(r)
	if !ok || r.Method != http.MethodPost {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	group := r.FormValue("group")
	if group == "" {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	if _, err := ws.orch.LoadGroup(r.Context(), s, group); err != nil {
		log.Printf("load session for %s: %v", s.Identity, err)
		redirectFlash(w, r, "", "", "Could not load that session.")
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (ws *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":   "ok",
		"uptime":   time.Since(ws.startTime).String(),
		"sessions": ws.orch.Count(),
	})
}

// formFile reads one multipart upload, returning the bytes and filename.
func (ws *Server) formFile(r *http.Request, field string) ([]byte, string, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, "", err
	}
	f, header, err := r.FormFile(field)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes))
	if err != nil {
		return nil, "", err
	}
	return data, header.Filename, nil
}

func (ws *Server) formFileWithType(r *http.Request, field string) ([]byte, string, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, "", err
	}
	f, header, err := r.FormFile(field)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes))
	if err != nil {
		return nil, "", err
	}
	return data, header.Header.Get("Content-Type"), nil
}

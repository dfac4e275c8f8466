// Package telegram is the alternate chat surface: the same orchestrator the
// web UI drives, reached through a long-polling bot. Telegram accounts are
// authenticated by the transport; identities are derived from the user ID
// and the stored credential is keyed on the bot token.
package telegram

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"linkedin-optimizer/internal/auth"
	"linkedin-optimizer/internal/session"
	"linkedin-optimizer/internal/storage"
)

const helpText = `I can help with profile analysis, job fit analysis, content enhancement, career counseling, or cover letter generation. Just ask, or send a voice note.

Commands:
/profile <text> - save your profile summary
/job <text> - save the target job details
/goals <text> - save your career goals
/new - start a new session
/sessions - list previous sessions
/load <session> - reload a previous session`

type Bot struct {
	api     *tgbotapi.BotAPI
	authSvc *auth.Service
	orch    *session.Orchestrator
	key     []byte

	mu     sync.Mutex
	tokens map[int64]string
}

func New(botToken string, authSvc *auth.Service, orch *session.Orchestrator) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, err
	}
	return &Bot{
		api:     api,
		authSvc: authSvc,
		orch:    orch,
		key:     []byte(botToken),
		tokens:  make(map[int64]string),
	}, nil
}

// secretFor derives the stored credential for a Telegram account from the
// bot token. Deterministic across restarts so re-login works, but not
// computable from the public user ID, so the account cannot be opened
// through the web login form.
func (b *Bot) secretFor(userID int64) string {
	mac := hmac.New(sha256.New, b.key)
	fmt.Fprintf(mac, "%d", userID)
	return hex.EncodeToString(mac.Sum(nil))
}

func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message != nil {
				b.handleIncomingMessage(ctx, update.Message)
			}
		}
	}
}

// sessionFor returns the live session for a Telegram user, logging in (or
// signing up on first contact) with the derived identity.
func (b *Bot) sessionFor(ctx context.Context, user *tgbotapi.User) (*session.Session, error) {
	b.mu.Lock()
	token, ok := b.tokens[user.ID]
	b.mu.Unlock()
	if ok {
		if s, live := b.orch.Get(token); live {
			return s, nil
		}
	}

	identity := fmt.Sprintf("tg:%d", user.ID)
	secret := b.secretFor(user.ID)
	rec, err := b.authSvc.Login(ctx, identity, secret)
	if errors.Is(err, storage.ErrInvalidCredential) {
		rec, err = b.authSvc.SignUp(ctx, identity, secret)
	}
	if err != nil {
		return nil, fmt.Errorf("attach telegram user %d: %w", user.ID, err)
	}

	token, s := b.orch.Attach(rec)
	b.mu.Lock()
	b.tokens[user.ID] = token
	b.mu.Unlock()
	return s, nil
}

func (b *Bot) handleIncomingMessage(ctx context.Context, msg *tgbotapi.Message) {
	s, err := b.sessionFor(ctx, msg.From)
	if err != nil {
		log.Printf("failed to open session for %d: %v", msg.From.ID, err)
		b.send(msg.Chat.ID, "Sorry, I can't start a session right now.")
		return
	}

	if msg.IsCommand() {
		b.handleCommand(ctx, msg, s)
		return
	}
	if msg.Voice != nil {
		b.handleVoice(ctx, msg, s)
		return
	}
	if msg.Text == "" {
		return
	}
	b.ask(ctx, msg.Chat.ID, s, msg.Text, false)
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message, s *session.Session) {
	arg := strings.TrimSpace(msg.CommandArguments())
	switch msg.Command() {
	case "start", "help":
		b.send(msg.Chat.ID, helpText)
	case "new":
		group := b.orch.NewGroup(s)
		b.send(msg.Chat.ID, fmt.Sprintf("New session created: %s", group))
	case "sessions":
		groups, err := b.orch.ListGroups(ctx, s)
		if err != nil {
			log.Printf("list sessions for %s: %v", s.Identity, err)
			b.send(msg.Chat.ID, "Session history is unavailable right now.")
			return
		}
		if len(groups) == 0 {
			b.send(msg.Chat.ID, "No previous sessions yet.")
			return
		}
		var sb strings.Builder
		sb.WriteString("Previous sessions:\n")
		for _, g := range groups {
			fmt.Fprintf(&sb, "%s - %s\n", g.Group, shortLabel(g.FirstQuery))
		}
		b.send(msg.Chat.ID, sb.String())
	case "load":
		if arg == "" {
			b.send(msg.Chat.ID, "Usage: /load <session>")
			return
		}
		turns, err := b.orch.LoadGroup(ctx, s, arg)
		if err != nil {
			log.Printf("load session for %s: %v", s.Identity, err)
			b.send(msg.Chat.ID, "Could not load that session.")
			return
		}
		b.send(msg.Chat.ID, fmt.Sprintf("Loaded session %s (%d turns).", arg, turns))
	case "profile":
		b.saveBlob(msg.Chat.ID, arg, "profile", func() error {
			return b.orch.SaveProfile(ctx, s, arg)
		})
	case "job":
		b.saveBlob(msg.Chat.ID, arg, "job details", func() error {
			return b.orch.SaveJob(ctx, s, arg)
		})
	case "goals":
		b.saveBlob(msg.Chat.ID, arg, "career goals", func() error {
			return b.orch.SaveGoals(ctx, s, arg)
		})
	default:
		b.send(msg.Chat.ID, "Unknown command. Try /help.")
	}
}

// shortLabel truncates a first-query label by runes so a multibyte query
// never produces invalid UTF-8.
func shortLabel(s string) string {
	r := []rune(s)
	if len(r) > 40 {
		return string(r[:40]) + "..."
	}
	return s
}

func (b *Bot) saveBlob(chatID int64, arg, what string, save func() error) {
	if arg == "" {
		b.send(chatID, fmt.Sprintf("Please add the %s text after the command.", what))
		return
	}
	if err := save(); err != nil {
		b.send(chatID, fmt.Sprintf("Saved %s for this session only (storage unavailable).", what))
		return
	}
	b.send(chatID, fmt.Sprintf("Saved %s.", what))
}

func (b *Bot) handleVoice(ctx context.Context, msg *tgbotapi.Message, s *session.Session) {
	audio, err := b.downloadFile(msg.Voice.FileID)
	if err != nil {
		log.Printf("download voice note from %s: %v", s.Identity, err)
		b.send(msg.Chat.ID, "Could not fetch that voice note, please type your question.")
		return
	}
	query, err := b.orch.Transcribe(ctx, audio, "voice.ogg")
	if err != nil {
		log.Printf("transcription failed for %s: %v", s.Identity, err)
		b.send(msg.Chat.ID, "Transcription failed, please type your question.")
		return
	}
	b.ask(ctx, msg.Chat.ID, s, query, b.orch.SpeechEnabled())
}

func (b *Bot) ask(ctx context.Context, chatID int64, s *session.Session, query string, wantAudio bool) {
	result, err := b.orch.Ask(ctx, s, query, wantAudio)
	if err != nil {
		log.Printf("ask failed for %s: %v", s.Identity, err)
		b.send(chatID, "Sorry, I could not answer that question. Please try again.")
		return
	}
	reply := result.Answer
	if result.Warning != "" {
		reply += "\n\n(" + result.Warning + ")"
	}
	b.send(chatID, reply)
	if len(result.Audio) > 0 {
		voice := tgbotapi.NewAudio(chatID, tgbotapi.FileBytes{Name: "reply.mp3", Bytes: result.Audio})
		if _, err := b.api.Send(voice); err != nil {
			log.Printf("failed to send audio reply: %v", err)
		}
	}
}

func (b *Bot) downloadFile(fileID string) ([]byte, error) {
	url, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("resolve file url: %w", err)
	}
	resp, err := http.Get(url)
	if err != nil {
		return nil, fmt.Errorf("fetch file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch file: status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (b *Bot) send(chatID int64, text string) {
	m := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(m); err != nil {
		log.Printf("failed to send message: %v", err)
	}
}

package telegram

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/ykvlv/time-signal/internal/domain"
	"github.com/ykvlv/time-signal/internal/engine"
	"github.com/ykvlv/time-signal/internal/power"
	"github.com/ykvlv/time-signal/internal/selection"
	"github.com/ykvlv/time-signal/internal/store"
)

// KeyOwner persists the chat that claimed the bot.
const KeyOwner = "telegram.ownerChatID"

// Pending state keys used in conversational flows.
const (
	pendingSaveName = "await_save_name"
	pendingRename   = "await_rename:" // followed by the saved set id
)

// Sender is the part of the Bot API the router uses. *tgbotapi.BotAPI implements it.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Power is the on/off switch. *power.Toggle implements it.
type Power interface {
	State() power.State
	TurnOn(ctx context.Context) (power.State, error)
	TurnOff(ctx context.Context) error
}

// Engine is what the UI needs from the scheduling engine.
type Engine interface {
	Mode() engine.Mode
	Plan(minutes domain.MinuteSet, now time.Time) (kept, dropped []engine.ScheduledTrigger)
	PreviewSound(ctx context.Context, prefs domain.Preferences) ([]engine.Warning, error)
}

// Deps bundles the router's collaborators.
type Deps struct {
	Bot       Sender
	Log       *zap.Logger
	Selection *selection.Store
	Power     Power
	Engine    Engine
	Sounds    domain.Catalog
	KV        store.KV // owner persistence
	Owner     int64    // 0: the first /start claims the bot
	Now       func() time.Time
}

// Router wires Telegram updates to handlers and holds minimal in-memory state.
// Only the owner chat may change settings.
type Router struct {
	bot    Sender
	log    *zap.Logger
	sel    *selection.Store
	power  Power
	engine Engine
	sounds domain.Catalog
	kv     store.KV
	now    func() time.Time

	mu    sync.RWMutex
	owner int64
	state map[int64]string // chatID -> pending state
}

// NewRouter creates a Telegram router. Without a configured owner it restores
// the one persisted by an earlier /start.
func NewRouter(ctx context.Context, d Deps) (*Router, error) {
	if d.Now == nil {
		d.Now = time.Now
	}
	r := &Router{
		bot:    d.Bot,
		log:    d.Log.Named("telegram"),
		sel:    d.Selection,
		power:  d.Power,
		engine: d.Engine,
		sounds: d.Sounds,
		kv:     d.KV,
		now:    d.Now,
		owner:  d.Owner,
		state:  make(map[int64]string),
	}
	if r.owner == 0 && r.kv != nil {
		b, err := r.kv.Get(ctx, KeyOwner)
		switch {
		case errors.Is(err, store.ErrNotFound):
		case err != nil:
			return nil, err
		default:
			if id, err := strconv.ParseInt(string(b), 10, 64); err == nil {
				r.owner = id
			}
		}
	}
	return r, nil
}

// Owner returns the owner chat, 0 while unclaimed.
func (r *Router) Owner() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.owner
}

// admit reports whether chatID may use the bot, claiming ownership on the
// first /start.
func (r *Router) admit(ctx context.Context, chatID int64, claim bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.owner == chatID {
		return true
	}
	if r.owner != 0 || !claim {
		return false
	}
	r.owner = chatID
	if r.kv != nil {
		if err := r.kv.Set(ctx, KeyOwner, []byte(strconv.FormatInt(chatID, 10))); err != nil {
			r.log.Error("persist owner failed", zap.Error(err))
		}
	}
	r.log.Info("owner claimed", zap.Int64("chatID", chatID))
	return true
}

func (r *Router) setPending(chatID int64, s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state[chatID] = s
}

func (r *Router) getPending(chatID int64) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state[chatID]
}

func (r *Router) clearPending(chatID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.state, chatID)
}

// splitCommand returns "/cmd" without any @botname suffix, and its arguments.
func splitCommand(text string) (string, string) {
	cmd, args, _ := strings.Cut(text, " ")
	cmd, _, _ = strings.Cut(cmd, "@")
	return cmd, strings.TrimSpace(args)
}

// HandleUpdate routes a single update to appropriate handler.
func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.Message != nil && upd.Message.Chat != nil {
		msg := upd.Message
		chatID := msg.Chat.ID
		text := strings.TrimSpace(msg.Text)
		cmd, args := splitCommand(text)

		if !r.admit(ctx, chatID, cmd == "/start") {
			r.sendText(chatID, privateText)
			return
		}

		switch cmd {
		case "/start":
			r.handleStart(chatID)
		case "/status":
			r.handleStatus(chatID)
		case "/settings":
			r.handleSettings(chatID)
		case "/on":
			r.handleOn(ctx, chatID)
		case "/off":
			r.handleOff(ctx, chatID)
		case "/sets":
			r.handleSets(chatID)
		case "/save":
			r.handleSave(ctx, chatID, args)
		case "/marks":
			r.handleMarks(ctx, chatID, args)
		default:
			// Free-form text answers a pending flow (set name, rename).
			r.handleFreeForm(ctx, chatID, text)
		}
		return
	}

	if cb := upd.CallbackQuery; cb != nil {
		if cb.Message == nil || cb.Message.Chat == nil {
			_ = r.answerCallback(cb.ID, "")
			return
		}
		chatID := cb.Message.Chat.ID
		if !r.admit(ctx, chatID, false) {
			_ = r.answerCallback(cb.ID, privateText)
			return
		}
		r.handleCallback(ctx, chatID, cb.Message.MessageID, cb.ID, cb.Data)
	}
}

func (r *Router) handleCallback(ctx context.Context, chatID int64, msgID int, cbID, data string) {
	switch {
	case strings.HasPrefix(data, "min:"):
		r.handleMinuteCallback(ctx, chatID, msgID, cbID, strings.TrimPrefix(data, "min:"))
	case strings.HasPrefix(data, "bulk:"):
		r.handleBulkCallback(ctx, chatID, msgID, cbID, strings.TrimPrefix(data, "bulk:"))
	case data == "all":
		r.applyAndRefresh(ctx, chatID, msgID, cbID, r.sel.SelectAll)
	case data == "clear":
		r.applyAndRefresh(ctx, chatID, msgID, cbID, r.sel.ClearAll)
	case strings.HasPrefix(data, "pref:"):
		r.handlePrefCallback(ctx, chatID, msgID, cbID, strings.TrimPrefix(data, "pref:"))
	case strings.HasPrefix(data, "sound:"):
		r.handleSoundCallback(ctx, chatID, msgID, cbID, strings.TrimPrefix(data, "sound:"))
	case data == "preview":
		r.handlePreview(ctx, chatID, cbID)
	case strings.HasPrefix(data, "set:"):
		r.handleSetCallback(ctx, chatID, msgID, cbID, strings.TrimPrefix(data, "set:"))
	default:
		// Unknown callback: ignore silently
		_ = r.answerCallback(cbID, "")
	}
}

// SendMessage sends a plain text message to the given chat.
func (r *Router) SendMessage(chatID int64, text string) error {
	_, err := r.bot.Send(tgbotapi.NewMessage(chatID, text))
	return err
}

// Report sends text to the owner chat, if there is one.
func (r *Router) Report(text string) {
	owner := r.Owner()
	if owner == 0 || text == "" {
		return
	}
	if err := r.SendMessage(owner, text); err != nil {
		r.log.Warn("report failed", zap.Error(err))
	}
}

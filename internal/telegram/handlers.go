package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ykvlv/time-signal/internal/domain"
	"github.com/ykvlv/time-signal/internal/engine"
	"github.com/ykvlv/time-signal/internal/power"
	"github.com/ykvlv/time-signal/internal/selection"
)

// --- Generic helpers ---

func (r *Router) sendText(chatID int64, text string) {
	if _, err := r.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		r.log.Warn("send failed", zap.Int64("chatID", chatID), zap.Error(err))
	}
}

func (r *Router) answerCallback(id, text string) error {
	_, err := r.bot.Request(tgbotapi.NewCallback(id, text))
	return err
}

func (r *Router) on() bool { return r.power.State() == power.StateOn }

// refreshSettings redraws the settings keyboard under msgID.
func (r *Router) refreshSettings(chatID int64, msgID int) {
	edit := tgbotapi.NewEditMessageReplyMarkup(chatID, msgID, settingsKeyboard(r.sel.Snapshot(), r.sounds))
	if _, err := r.bot.Send(edit); err != nil {
		// Telegram rejects edits that change nothing.
		r.log.Debug("refresh settings failed", zap.Error(err))
	}
}

// applyAndRefresh runs a selection mutation from a settings button.
func (r *Router) applyAndRefresh(ctx context.Context, chatID int64, msgID int, cbID string, fn func(context.Context) error) {
	if err := fn(ctx); err != nil {
		r.log.Error("selection update failed", zap.Error(err))
		_ = r.answerCallback(cbID, "Could not save, change kept for this session.")
	} else {
		_ = r.answerCallback(cbID, "")
	}
	r.refreshSettings(chatID, msgID)
}

// --- Core commands ---

func (r *Router) handleStart(chatID int64) {
	msg := tgbotapi.NewMessage(chatID, startText)
	msg.ReplyMarkup = mainMenuKeyboard(r.on())
	_, _ = r.bot.Send(msg)
}

func (r *Router) handleStatus(chatID int64) {
	snap := r.sel.Snapshot()
	prefs := snap.Prefs

	sound := string(prefs.SelectedSoundID)
	if opt, ok := r.sounds.Lookup(prefs.SelectedSoundID); ok {
		sound = opt.DisplayName
	}
	next := "—"
	if r.on() && !snap.Minutes.IsEmpty() {
		if kept, _ := r.engine.Plan(snap.Minutes, r.now()); len(kept) > 0 {
			next = fmt.Sprintf("%s (in %d min)", kept[0].TimeString(), kept[0].DistanceMinutes)
		}
	}

	body := fmt.Sprintf("%s\n\n"+statusFmt,
		statusTitle,
		r.power.State(),
		r.engine.Mode(),
		domain.FormatMinutes(snap.Minutes),
		onOff(prefs.BannerEnabled), onOff(prefs.SoundEnabled), sound, onOff(prefs.FlashEnabled),
		next,
		len(r.sel.Sets()),
	)
	msg := tgbotapi.NewMessage(chatID, body)
	msg.ReplyMarkup = mainMenuKeyboard(r.on())
	_, _ = r.bot.Send(msg)
}

func (r *Router) handleSettings(chatID int64) {
	msg := tgbotapi.NewMessage(chatID, settingsText)
	msg.ReplyMarkup = settingsKeyboard(r.sel.Snapshot(), r.sounds)
	_, _ = r.bot.Send(msg)
}

func (r *Router) handleOn(ctx context.Context, chatID int64) {
	st, err := r.power.TurnOn(ctx)
	switch {
	case errors.Is(err, engine.ErrNotAuthorized):
		r.sendText(chatID, notAuthorizedText)
		return
	case err != nil:
		r.log.Error("turn on failed", zap.Error(err))
		r.sendText(chatID, "Could not switch on.")
		return
	}
	msg := tgbotapi.NewMessage(chatID, "⏰ Time signal is "+st.String()+".")
	msg.ReplyMarkup = mainMenuKeyboard(st == power.StateOn)
	_, _ = r.bot.Send(msg)
}

func (r *Router) handleOff(ctx context.Context, chatID int64) {
	text := "🔕 Time signal is off."
	if err := r.power.TurnOff(ctx); err != nil {
		r.log.Error("turn off failed", zap.Error(err))
		text = "🔕 Switched off, but some signals could not be removed."
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = mainMenuKeyboard(false)
	_, _ = r.bot.Send(msg)
}

// handleMarks toggles a list of minutes as one block, e.g. "/marks 0 20 40".
func (r *Router) handleMarks(ctx context.Context, chatID int64, args string) {
	set, err := domain.ParseMinuteList(args)
	if err != nil {
		r.sendText(chatID, "Usage: /marks 0 15 30 45 (minutes 0–59)")
		return
	}
	if err := r.sel.ApplyBulk(ctx, set); err != nil {
		r.log.Error("apply marks failed", zap.Error(err))
	}
	r.sendText(chatID, "Marks: "+domain.FormatMinutes(r.sel.Minutes()))
}

// --- Settings callbacks ---

func (r *Router) handleMinuteCallback(ctx context.Context, chatID int64, msgID int, cbID, val string) {
	m, err := domain.ParseMinute(val)
	if err != nil {
		_ = r.answerCallback(cbID, "Invalid minute.")
		return
	}
	r.applyAndRefresh(ctx, chatID, msgID, cbID, func(ctx context.Context) error {
		return r.sel.ToggleMinute(ctx, m)
	})
}

func (r *Router) handleBulkCallback(ctx context.Context, chatID int64, msgID int, cbID, key string) {
	p, ok := domain.FindBulkPreset(key)
	if !ok {
		_ = r.answerCallback(cbID, "")
		return
	}
	r.applyAndRefresh(ctx, chatID, msgID, cbID, func(ctx context.Context) error {
		return r.sel.ApplyBulk(ctx, p.Minutes)
	})
}

func (r *Router) handlePrefCallback(ctx context.Context, chatID int64, msgID int, cbID, which string) {
	p := r.sel.Preferences()
	switch which {
	case "banner":
		p.BannerEnabled = !p.BannerEnabled
	case "sound":
		p.SoundEnabled = !p.SoundEnabled
	case "flash":
		p.FlashEnabled = !p.FlashEnabled
	default:
		_ = r.answerCallback(cbID, "")
		return
	}
	r.applyAndRefresh(ctx, chatID, msgID, cbID, func(ctx context.Context) error {
		return r.sel.SetPreferences(ctx, p)
	})
}

func (r *Router) handleSoundCallback(ctx context.Context, chatID int64, msgID int, cbID, id string) {
	opt, ok := r.sounds.Lookup(domain.SoundID(id))
	if !ok {
		_ = r.answerCallback(cbID, "Unknown sound.")
		return
	}
	p := r.sel.Preferences()
	p.SelectedSoundID = opt.ID
	r.applyAndRefresh(ctx, chatID, msgID, cbID, func(ctx context.Context) error {
		return r.sel.SetPreferences(ctx, p)
	})
}

func (r *Router) handlePreview(ctx context.Context, chatID int64, cbID string) {
	warnings, err := r.engine.PreviewSound(ctx, r.sel.Preferences())
	switch {
	case errors.Is(err, engine.ErrNotAuthorized):
		_ = r.answerCallback(cbID, "")
		r.sendText(chatID, notAuthorizedText)
		return
	case err != nil:
		r.log.Error("preview failed", zap.Error(err))
		_ = r.answerCallback(cbID, "Preview failed.")
		return
	}
	_ = r.answerCallback(cbID, "▶️ Playing in a second")
	if len(warnings) > 0 {
		r.sendText(chatID, warningsText(warnings))
	}
}

// --- Saved sets ---

func (r *Router) handleSets(chatID int64) {
	sets := r.sel.Sets()
	if len(sets) == 0 {
		r.sendText(chatID, noSetsText)
		return
	}
	msg := tgbotapi.NewMessage(chatID, setsText(sets))
	msg.ReplyMarkup = setsKeyboard(sets)
	_, _ = r.bot.Send(msg)
}

func (r *Router) handleSave(ctx context.Context, chatID int64, name string) {
	if strings.TrimSpace(name) == "" {
		r.setPending(chatID, pendingSaveName)
		r.sendText(chatID, "Send a name for the current marks.")
		return
	}
	r.saveSet(ctx, chatID, name)
}

func (r *Router) saveSet(ctx context.Context, chatID int64, name string) {
	set, err := r.sel.SaveCurrentAsSet(ctx, name)
	switch {
	case errors.Is(err, domain.ErrEmptyName):
		r.sendText(chatID, "The name cannot be empty.")
	case err != nil && set.ID != uuid.Nil:
		r.log.Error("persist saved set failed", zap.Error(err))
		r.sendText(chatID, fmt.Sprintf("💾 Saved %q for this session, but it could not be stored.", set.Name))
	case err != nil:
		r.log.Error("save set failed", zap.Error(err))
		r.sendText(chatID, "Could not save the set.")
	default:
		r.sendText(chatID, fmt.Sprintf("💾 Saved %q: %s", set.Name, domain.FormatMinutes(set.Minutes)))
	}
}

func (r *Router) handleSetCallback(ctx context.Context, chatID int64, msgID int, cbID, data string) {
	action, rawID, _ := strings.Cut(data, ":")
	id, err := uuid.Parse(rawID)
	if err != nil {
		_ = r.answerCallback(cbID, "")
		return
	}

	switch action {
	case "load":
		err = r.sel.LoadSet(ctx, id)
		if err == nil {
			_ = r.answerCallback(cbID, "Loaded")
			r.sendText(chatID, "Marks: "+domain.FormatMinutes(r.sel.Minutes()))
			return
		}
	case "del":
		err = r.sel.DeleteSet(ctx, id)
		if err == nil {
			_ = r.answerCallback(cbID, "Deleted")
			sets := r.sel.Sets()
			edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, msgID, setsText(sets), setsKeyboard(sets))
			if len(sets) == 0 {
				edit = tgbotapi.NewEditMessageText(chatID, msgID, noSetsText)
			}
			if _, err := r.bot.Send(edit); err != nil {
				r.log.Debug("refresh sets failed", zap.Error(err))
			}
			return
		}
	case "rename":
		_ = r.answerCallback(cbID, "")
		r.setPending(chatID, pendingRename+id.String())
		r.sendText(chatID, "Send the new name.")
		return
	default:
		_ = r.answerCallback(cbID, "")
		return
	}

	if errors.Is(err, selection.ErrSetNotFound) {
		_ = r.answerCallback(cbID, "That set no longer exists.")
		return
	}
	r.log.Error("saved set update failed", zap.String("action", action), zap.Error(err))
	_ = r.answerCallback(cbID, "Could not save.")
}

// --- Free-form dispatcher ---

func (r *Router) handleFreeForm(ctx context.Context, chatID int64, text string) {
	pending := r.getPending(chatID)
	switch {
	case pending == pendingSaveName:
		r.clearPending(chatID)
		r.saveSet(ctx, chatID, text)

	case strings.HasPrefix(pending, pendingRename):
		r.clearPending(chatID)
		id, err := uuid.Parse(strings.TrimPrefix(pending, pendingRename))
		if err != nil {
			return
		}
		err = r.sel.RenameSet(ctx, id, text)
		switch {
		case errors.Is(err, domain.ErrEmptyName):
			r.sendText(chatID, "The name cannot be empty.")
		case errors.Is(err, selection.ErrSetNotFound):
			r.sendText(chatID, "That set no longer exists.")
		case err != nil:
			r.log.Error("rename set failed", zap.Error(err))
			r.sendText(chatID, "Could not rename the set.")
		default:
			r.sendText(chatID, "✏️ Renamed.")
		}

	default:
		// No pending flow: ignore free-form message
	}
}

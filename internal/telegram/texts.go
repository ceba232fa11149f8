package telegram

import (
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ykvlv/time-signal/internal/domain"
	"github.com/ykvlv/time-signal/internal/engine"
	"github.com/ykvlv/time-signal/internal/selection"
)

// UI texts in English
const (
	startText = "🕰 I am a time signal.\n\n" +
		"Pick the minute marks in /settings and switch me /on: every selected minute of every hour " +
		"I ring on this machine.\n\n" +
		"/marks 0 20 40 toggles any minutes, /save <name> keeps the current marks as a set, /sets lists them."
	privateText       = "This time signal belongs to someone else."
	settingsText      = "Tap a minute to toggle it. Presets toggle as a block."
	notAuthorizedText = "🚫 Notifications are not permitted on this machine. Allow them and try /on again."
	noSetsText        = "No saved sets yet. Use /save <name>."
	statusTitle       = "🧾 Time signal:"
	statusFmt         = "• Power: %s\n• Mode: %s\n• Marks: %s\n• Banner: %s\n• Sound: %s (%s)\n• Flash: %s\n• Next: %s\n• Saved sets: %d\n"

	minuteColumns = 6
)

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func check(b bool) string {
	if b {
		return "✅ "
	}
	return ""
}

// mainMenuKeyboard builds a reply keyboard whose toggle button is "/off"
// while on and "/on" otherwise.
func mainMenuKeyboard(on bool) tgbotapi.ReplyKeyboardMarkup {
	toggle := "/on"
	if on {
		toggle = "/off"
	}
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("/status"),
			tgbotapi.NewKeyboardButton("/settings"),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(toggle),
			tgbotapi.NewKeyboardButton("/sets"),
		),
	)
}

// settingsKeyboard draws the clock face, the presets, the preference
// switches and the sound picker for the current selection.
func settingsKeyboard(snap selection.Snapshot, sounds domain.Catalog) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton

	var row []tgbotapi.InlineKeyboardButton
	for _, m := range domain.SelectableMinutes().Minutes() {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(
			check(snap.Minutes.Has(m))+domain.FormatMark(m),
			fmt.Sprintf("min:%d", m),
		))
		if len(row) == minuteColumns {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}

	var presets []tgbotapi.InlineKeyboardButton
	for _, p := range domain.BulkPresets() {
		presets = append(presets, tgbotapi.NewInlineKeyboardButtonData(
			check(snap.Minutes.ContainsAll(p.Minutes))+p.Name, "bulk:"+p.Key))
	}
	rows = append(rows, presets, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("Select all", "all"),
		tgbotapi.NewInlineKeyboardButtonData("Clear", "clear"),
	))

	prefs := snap.Prefs
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData(check(prefs.BannerEnabled)+"Banner", "pref:banner"),
		tgbotapi.NewInlineKeyboardButtonData(check(prefs.SoundEnabled)+"Sound", "pref:sound"),
		tgbotapi.NewInlineKeyboardButtonData(check(prefs.FlashEnabled)+"Flash", "pref:flash"),
	))

	var picker []tgbotapi.InlineKeyboardButton
	for _, s := range sounds {
		picker = append(picker, tgbotapi.NewInlineKeyboardButtonData(
			check(s.ID == prefs.SelectedSoundID)+s.DisplayName, "sound:"+string(s.ID)))
	}
	if len(picker) > 0 {
		rows = append(rows, picker)
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("▶️ Preview sound", "preview"),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func setsText(sets []domain.SavedSet) string {
	var b strings.Builder
	b.WriteString("💾 Saved sets:\n")
	for _, s := range sets {
		fmt.Fprintf(&b, "• %s: %s\n", s.Name, domain.FormatMinutes(s.Minutes))
	}
	return b.String()
}

func setsKeyboard(sets []domain.SavedSet) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(sets))
	for _, s := range sets {
		id := s.ID.String()
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(s.Name, "set:load:"+id),
			tgbotapi.NewInlineKeyboardButtonData("✏️", "set:rename:"+id),
			tgbotapi.NewInlineKeyboardButtonData("🗑", "set:del:"+id),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func warningsText(ws []engine.Warning) string {
	lines := make([]string, 0, len(ws))
	for _, w := range ws {
		lines = append(lines, "⚠️ "+w.String())
	}
	return strings.Join(lines, "\n")
}

// SummaryText renders a rebuild outcome for the owner chat. A superseded
// rebuild reports nothing.
func SummaryText(sum engine.Summary, err error) string {
	switch {
	case errors.Is(err, engine.ErrSuperseded):
		return ""
	case errors.Is(err, engine.ErrNotAuthorized):
		return notAuthorizedText
	case err != nil:
		return "❌ Could not update the schedule: " + err.Error()
	}

	var b strings.Builder
	if len(sum.Installed) == 0 {
		b.WriteString("🔕 No signals scheduled.")
	} else {
		fmt.Fprintf(&b, "⏰ %d signals scheduled.", len(sum.Installed))
	}
	if sum.Dropped > 0 {
		fmt.Fprintf(&b, "\n%d beyond the nearest %d were skipped for now.", sum.Dropped, len(sum.Installed)+sum.Failed)
	}
	if sum.Failed > 0 {
		fmt.Fprintf(&b, "\n❌ %d could not be scheduled.", sum.Failed)
	}
	if len(sum.Warnings) > 0 {
		b.WriteString("\n")
		b.WriteString(warningsText(sum.Warnings))
	}
	return b.String()
}

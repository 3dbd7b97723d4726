package ui

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dustin/go-humanize"

	"github.com/five82/fieldtech/internal/apperr"
	"github.com/five82/fieldtech/internal/syncer"
)

// flashTTL is how long a flash message stays in the header.
const flashTTL = 8 * time.Second

type flashLevel int

const (
	flashInfo flashLevel = iota
	flashWarning
	flashError
)

// flash is a one-line transient message under the header.
type flash struct {
	text  string
	level flashLevel
	at    time.Time
}

// expire clears the flash once it has been shown for flashTTL.
func (f flash) expire(now time.Time) flash {
	if f.text == "" || now.Sub(f.at) < flashTTL {
		return f
	}
	return flash{}
}

func (m *Model) setFlash(level flashLevel, text string) {
	m.flash = flash{text: text, level: level, at: time.Now()}
}

// describeError turns an error into a short sentence for the flash line.
func describeError(err error) string {
	var appErr *apperr.AppError
	if !errors.As(err, &appErr) {
		return err.Error()
	}
	switch appErr.Code {
	case apperr.Transport:
		return "backend unreachable"
	case apperr.Unauthorized:
		return "sign-in required"
	case apperr.Persistence:
		return "could not save locally: " + appErr.Message
	case apperr.Decode:
		return "unexpected response from backend"
	default:
		return appErr.Message
	}
}

func describeDrain(r syncer.DrainResult, online bool) string {
	switch {
	case !online:
		return fmt.Sprintf("Offline. %s waiting to sync.", plural(r.Remaining, "update"))
	case r.Attempted == 0:
		return "Up to date."
	case r.Remaining == 0:
		return fmt.Sprintf("Synced %s.", plural(r.Synced, "update"))
	default:
		return fmt.Sprintf("Synced %d of %d; %d still queued.", r.Synced, r.Attempted, r.Remaining)
	}
}

func joinWarnings(errs []error) string {
	parts := make([]string, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			parts = append(parts, describeError(err))
		}
	}
	return strings.Join(parts, "; ")
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

// relativeTime renders t as "3 minutes ago", or "" for the zero time.
func relativeTime(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

// truncate shortens value to at most limit runes, ending with an ellipsis.
func truncate(value string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if utf8.RuneCountInString(value) <= limit {
		return value
	}
	if limit <= 1 {
		return "…"
	}
	runes := []rune(value)
	return string(runes[:limit-1]) + "…"
}

// truncateMiddle keeps both ends of value, which suits file paths.
func truncateMiddle(value string, limit int) string {
	if utf8.RuneCountInString(value) <= limit {
		return value
	}
	if limit <= 3 {
		return truncate(value, limit)
	}
	runes := []rune(value)
	head := (limit - 1) / 2
	tail := limit - 1 - head
	return string(runes[:head]) + "…" + string(runes[len(runes)-tail:])
}

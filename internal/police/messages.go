package police

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"ledgerpolice.dipix.pw/internal/geom"
	"ledgerpolice.dipix.pw/internal/ledger"
)

type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Message is one line of user-facing output.
type Message struct {
	Level Level  `json:"level"`
	Text  string `json:"text"`
}

func Info(format string, args ...any) Message {
	return Message{Level: LevelInfo, Text: fmt.Sprintf(format, args...)}
}

func Warn(format string, args ...any) Message {
	return Message{Level: LevelWarn, Text: fmt.Sprintf(format, args...)}
}

func Error(format string, args ...any) Message {
	return Message{Level: LevelError, Text: fmt.Sprintf(format, args...)}
}

func toggleMessage(on bool) Message {
	if on {
		return Info("Police mode: on")
	}
	return Info("Police mode: off")
}

var (
	msgNoResults  = Error("No results found")
	msgNoParams   = Error("No search parameters given")
	msgBusy       = Warn("The ledger is busy, your search may take a moment")
	msgInProgress = Warn("A previous search is still running")
	msgFailed     = Error("Search failed, see server log")
)

func headerForPos(p geom.Region, origin string) string {
	if p.IsSingle() {
		return fmt.Sprintf("Search results for %s", origin)
	}
	return fmt.Sprintf("Search results for %s (%s)", origin, p)
}

const searchHeader = "Search results"

// FormatResults renders a result page: a header, one line per action with its
// age relative to now, and a page footer.
func FormatResults(header string, res ledger.Results, now time.Time) []Message {
	out := make([]Message, 0, len(res.Actions)+2)
	out = append(out, Info("----- %s -----", header))
	for _, a := range res.Actions {
		out = append(out, Info("%s %s %s %s at %s", humanize.RelTime(a.Time, now, "ago", "from now"), actor(a), a.Type, object(a), geom.FormatPos(a.Pos)))
	}
	out = append(out, Info("Page %d/%d (%d results)", res.Page, res.Pages, res.Total))
	return out
}

func actor(a ledger.Action) string {
	if a.SourceName != "" {
		return a.SourceName
	}
	return "@" + a.Source
}

func object(a ledger.Action) string {
	if a.OldObject != "" && a.OldObject != a.Object {
		return a.OldObject + " -> " + a.Object
	}
	return a.Object
}

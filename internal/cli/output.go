package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"github.com/BrandonDHaskell/shiftledger/internal/ledger/types"
)

const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
)

// colorEnabled reports whether ANSI colors should be written to w: only for
// a terminal, and never when NO_COLOR is set.
func colorEnabled(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}

func paint(w io.Writer, color, s string) string {
	if color == "" || !colorEnabled(w) {
		return s
	}
	return color + s + colorReset
}

func checkColor(s types.CheckStatus) string {
	switch s {
	case types.CheckPass:
		return colorGreen
	case types.CheckWarning:
		return colorYellow
	default:
		return colorRed
	}
}

func levelColor(l types.Level) string {
	switch l {
	case types.LevelWarning:
		return colorYellow
	case types.LevelError:
		return colorRed
	case types.LevelSuccess:
		return colorGreen
	default:
		return ""
	}
}

func severityColor(s types.Severity) string {
	switch s {
	case types.SeverityHigh:
		return colorRed
	case types.SeverityMedium:
		return colorYellow
	default:
		return ""
	}
}

// when renders t with a relative hint, e.g. "2026-06-01 09:00 (3 days ago)".
func when(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return "never"
	}
	return fmt.Sprintf("%s (%s)", t.In(loc).Format("2006-01-02 15:04"), humanize.Time(t))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}

func rule(w io.Writer, n int) {
	fmt.Fprintln(w, strings.Repeat("─", n))
}

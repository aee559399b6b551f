package banner

import (
	"fmt"
	"io"

	"github.com/novatra/novabot/internal/config"
	"github.com/novatra/novabot/internal/health"
)

// Logo is the ASCII art logo for novabot
const Logo = `
   ███╗   ██╗ ██████╗ ██╗   ██╗ █████╗
   ████╗  ██║██╔═══██╗██║   ██║██╔══██╗
   ██╔██╗ ██║██║   ██║██║   ██║███████║
   ██║╚██╗██║██║   ██║╚██╗ ██╔╝██╔══██║
   ██║ ╚████║╚██████╔╝ ╚████╔╝ ██║  ██║
   ╚═╝  ╚═══╝ ╚═════╝   ╚═══╝  ╚═╝  ╚═╝
`

// Tagline is the project tagline
const Tagline = "Chat in, tickets out"

// PrintWithVersion prints the banner with version info
func PrintWithVersion(w io.Writer, version string) {
	_, _ = fmt.Fprint(w, Logo)
	_, _ = fmt.Fprintf(w, "   %s\n", Tagline)
	_, _ = fmt.Fprintf(w, "   v%s\n\n", version)
}

// StartupWithHealth prints the startup banner with the feature report
func StartupWithHealth(w io.Writer, version string, cfg *config.Config) {
	report := health.RunChecks(cfg)

	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintf(w, "NOVABOT v%s │ Discord\n", version)
	_, _ = fmt.Fprintln(w, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	_, _ = fmt.Fprintln(w)

	for _, c := range report.Dependencies {
		_, _ = fmt.Fprintf(w, "%s %-8s %s\n", c.Status.Symbol(), c.Name, c.Message)
	}
	_, _ = fmt.Fprintln(w)

	// Features in compact grid
	cols := 3
	colWidth := 14
	for i, f := range report.Features {
		name := f.Name
		if f.Note != "" {
			name += "*"
		}
		_, _ = fmt.Fprintf(w, "%s %-*s", f.Status.Symbol(), colWidth-2, name)
		if (i+1)%cols == 0 || i == len(report.Features)-1 {
			_, _ = fmt.Fprintln(w)
		}
	}

	hasNotes := false
	for _, f := range report.Features {
		if f.Note == "" {
			continue
		}
		if !hasNotes {
			_, _ = fmt.Fprintln(w)
			hasNotes = true
		}
		_, _ = fmt.Fprintf(w, "  * %s: %s\n", f.Name, f.Note)
	}

	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintf(w, "Store:    %s\n", cfg.Store.Path)
	_, _ = fmt.Fprintln(w, "Listening... (Ctrl+C to stop)")
	_, _ = fmt.Fprintln(w, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	_, _ = fmt.Fprintln(w)
}

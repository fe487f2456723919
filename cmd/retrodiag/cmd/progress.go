package cmd

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/OpenTraceLab/RetroBusDiag/pkg/diag"
)

// barWidth picks a progress bar width that fits the terminal, or 0 when
// stdout is not a terminal.
func barWidth() int {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return 0
	}
	w, _, err := term.GetSize(fd)
	if err != nil {
		return 40
	}
	// Leave room for the percentage and the item label.
	w -= 50
	if w > 40 {
		w = 40
	}
	if w < 10 {
		w = 10
	}
	return w
}

// displayProgress drains progressCh. On a terminal it redraws a bar in
// place; otherwise it prints one line per finished phase.
func displayProgress(progressCh <-chan diag.Progress, show bool) {
	width := 0
	if show {
		width = barWidth()
	}
	lastPhase, lastPercent := "", -1
	drawn := false

	for p := range progressCh {
		if !show {
			continue
		}
		if width == 0 {
			if p.Percent == 100 {
				fmt.Printf("  ✓ %s %s done (%d)\n", p.Phase, p.Item, p.Total)
			}
			continue
		}

		if drawn && (p.Phase != lastPhase || p.Percent < lastPercent) {
			fmt.Println()
		}
		// Only update on percent change to reduce flicker
		if p.Phase == lastPhase && p.Percent == lastPercent {
			continue
		}
		filled := p.Percent * width / 100
		bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
		fmt.Printf("\r%-9s [%s] %3d%% | %d/%d | %-24s", p.Phase, bar, p.Percent, p.Index, p.Total, p.Item)

		lastPhase, lastPercent = p.Phase, p.Percent
		drawn = true
	}

	if drawn {
		fmt.Println()
	}
}

package ui

import (
	"fmt"
	"strings"
)

// ANSI256 color codes matching the Ayu palette.
const (
	colorAccent = 74  // blue
	colorCmd    = 250 // light gray
	colorMuted  = 245 // medium gray
	colorPass   = 114 // green
	colorWarn   = 179 // amber
	colorFail   = 203 // red
)

var noColor bool

func render(color int, s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", color, s)
}

// RenderAccent returns s in the accent (blue) color.
func RenderAccent(s string) string { return render(colorAccent, s) }

// RenderMuted returns s in the muted (gray) color.
func RenderMuted(s string) string { return render(colorMuted, s) }

// RenderCommand returns s styled as a command name (light gray).
func RenderCommand(s string) string { return render(colorCmd, s) }

// RenderPass returns s in green.
func RenderPass(s string) string { return render(colorPass, s) }

// RenderWarn returns s in amber.
func RenderWarn(s string) string { return render(colorWarn, s) }

// RenderFail returns s in red.
func RenderFail(s string) string { return render(colorFail, s) }

// ForceNoColor disables color output globally.
func ForceNoColor() {
	noColor = true
}

// Step markers used by RenderSteps.
const (
	markDone    = "●"
	markActive  = "◉"
	markPending = "○"
)

// RenderSteps draws a one-line stepper such as "● ● ◉ ○". done[i] reports
// whether step i+1 is completed; active is the 1-based active step (0 for
// none).
func RenderSteps(done []bool, active int) string {
	parts := make([]string, len(done))
	for i, d := range done {
		switch {
		case d:
			parts[i] = RenderPass(markDone)
		case i+1 == active:
			parts[i] = RenderAccent(markActive)
		default:
			parts[i] = RenderMuted(markPending)
		}
	}
	return strings.Join(parts, " ")
}

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/alfredjeanlab/agreements/internal/client"
	"github.com/alfredjeanlab/agreements/internal/model"
	"github.com/alfredjeanlab/agreements/internal/ui"
)

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func printAgreement(w io.Writer, a *model.Agreement) {
	fmt.Fprintf(w, "Code:        %s\n", ui.RenderAccent(a.ConfirmationCode))
	fmt.Fprintf(w, "Name:        %s\n", a.FullName())
	fmt.Fprintf(w, "Agreed At:   %s (%s)\n", a.AgreedAt.Local().Format("2006-01-02 15:04:05"), humanize.Time(a.AgreedAt))
	if a.SessionID != "" {
		fmt.Fprintf(w, "Session:     %s\n", a.SessionID)
	}
	if a.IPHash != "" {
		fmt.Fprintf(w, "Origin:      %s\n", a.IPHash)
	}
	if a.UserAgent != "" {
		fmt.Fprintf(w, "Client:      %s\n", a.UserAgent)
	}
}

func printAgreementTable(w io.Writer, list []*model.Agreement, total, offset int) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CODE\tNAME\tAGREED")
	for _, a := range list {
		name := a.FullName()
		if len(name) > 40 {
			name = name[:37] + "..."
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", a.ConfirmationCode, name, humanize.Time(a.AgreedAt))
	}
	tw.Flush()

	from := offset + 1
	if len(list) == 0 {
		from = offset
	}
	fmt.Fprintln(w, ui.RenderMuted(fmt.Sprintf("\n%d-%d of %s agreements", from, offset+len(list), humanize.Comma(int64(total)))))
}

func printStats(w io.Writer, s *model.Stats) {
	fmt.Fprintf(w, "Total:       %s\n", humanize.Comma(int64(s.Total)))
	fmt.Fprintf(w, "Today:       %s\n", humanize.Comma(int64(s.Today)))
	fmt.Fprintf(w, "This week:   %s\n", humanize.Comma(int64(s.Week)))
	fmt.Fprintf(w, "This month:  %s\n", humanize.Comma(int64(s.Month)))
}

func printSessionTable(w io.Writer, entries []client.SessionEntry, total int) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SESSION\tREAD\tSTATUS\tOPENED\tLAST SEEN")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%d/%d\t%s\t%s\t%s\n",
			e.SessionID,
			e.Completed, total,
			sessionStatus(e),
			since(e.Opened),
			since(e.LastSeen),
		)
	}
	tw.Flush()
}

func sessionStatus(e client.SessionEntry) string {
	switch {
	case e.Signed:
		return ui.RenderPass("signed")
	case e.Unlocked:
		return ui.RenderAccent("unlocked")
	default:
		return ui.RenderMuted("reading")
	}
}

// stepperLine renders the progress stepper for state, including the final
// signature step.
func stepperLine(state model.ProgressState) string {
	done := make([]bool, state.Total+1)
	for _, o := range state.Completed {
		if o >= 1 && o <= state.Total {
			done[o-1] = true
		}
	}
	done[state.Total] = state.Signed
	return ui.RenderSteps(done, state.Active)
}

func since(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.Time(t)
}

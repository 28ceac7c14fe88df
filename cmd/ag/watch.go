package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/agreements/internal/events"
	"github.com/alfredjeanlab/agreements/internal/ui"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Short:   "Stream reading and signing events as they happen",
	GroupID: "views",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		natsURL, _ := cmd.Flags().GetString("nats")
		if natsURL == "" {
			natsURL = os.Getenv("AGREEMENTS_NATS_URL")
		}
		if natsURL == "" {
			natsURL = activeRemoteNATSURL()
		}
		if natsURL == "" {
			return fmt.Errorf("no NATS URL: pass --nats, set AGREEMENTS_NATS_URL, or add one to the active remote")
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		sub, err := events.NewNATSSubscriber(natsURL,
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				slog.Warn("nats disconnected", "err", err)
			}),
			nats.ReconnectHandler(func(_ *nats.Conn) {
				slog.Info("nats reconnected")
			}),
		)
		if err != nil {
			return fmt.Errorf("connecting to NATS: %w", err)
		}
		defer sub.Close()

		ch, cancel, err := sub.Subscribe(events.TopicAll)
		if err != nil {
			return fmt.Errorf("subscribing to events: %w", err)
		}
		defer cancel()

		return watchEvents(ctx, cmd.OutOrStdout(), ch)
	},
}

// watchEvents prints each message until ctx is done or ch closes.
func watchEvents(ctx context.Context, w io.Writer, ch <-chan events.Message) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if jsonOutput {
				fmt.Fprintf(w, "{\"topic\":%q,\"data\":%s}\n", msg.Topic, msg.Data)
				continue
			}
			fmt.Fprintln(w, formatEvent(msg, time.Now()))
		}
	}
}

// formatEvent renders one event as a single human-readable line.
func formatEvent(msg events.Message, now time.Time) string {
	stamp := ui.RenderMuted(now.Format("15:04:05"))

	switch msg.Topic {
	case events.TopicSectionCompleted:
		var ev events.SectionCompleted
		if json.Unmarshal(msg.Data, &ev) == nil {
			return fmt.Sprintf("%s %s read %s (%d/%d)", stamp, ev.SessionID, ev.SectionID, ev.Ordinal, ev.Total)
		}
	case events.TopicGateUnlocked:
		var ev events.GateUnlocked
		if json.Unmarshal(msg.Data, &ev) == nil {
			return fmt.Sprintf("%s %s %s", stamp, ev.SessionID, ui.RenderAccent("unlocked the form"))
		}
	case events.TopicAgreementSigned:
		var ev events.AgreementSigned
		if json.Unmarshal(msg.Data, &ev) == nil && ev.Agreement != nil {
			a := ev.Agreement
			return fmt.Sprintf("%s %s %s signed %s", stamp, a.SessionID, a.FullName(), ui.RenderPass(a.ConfirmationCode))
		}
	case events.TopicSubmissionFailed:
		var ev events.SubmissionFailed
		if json.Unmarshal(msg.Data, &ev) == nil {
			return fmt.Sprintf("%s %s %s after %d attempts: %s", stamp, ev.SessionID, ui.RenderFail(ev.Kind), ev.Attempts, ev.Message)
		}
	}
	return fmt.Sprintf("%s %s %s", stamp, msg.Topic, string(msg.Data))
}

func init() {
	watchCmd.Flags().String("nats", "", "NATS server URL")
}

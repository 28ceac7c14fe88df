package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/agreements/internal/client"
	"github.com/alfredjeanlab/agreements/internal/model"
	"github.com/alfredjeanlab/agreements/internal/submit"
	"github.com/alfredjeanlab/agreements/internal/ui"
)

const (
	textWidth = 72
	// Rows kept free below the viewport for the stepper and prompt.
	chromeRows = 3
	minRows    = 6
)

var signCmd = &cobra.Command{
	Use:     "sign",
	Short:   "Read the group rules and sign the member agreement",
	GroupID: "agreements",
	Long: `Walk through every rule section one screen at a time. Once every
section has been scrolled past, the signature form unlocks and your
confirmation code is printed after signing.

Pass --yes with --first and --last to scroll and sign without prompts.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		resume, _ := cmd.Flags().GetString("session")
		first, _ := cmd.Flags().GetString("first")
		last, _ := cmd.Flags().GetString("last")
		yes, _ := cmd.Flags().GetBool("yes")

		if yes && (first == "" || last == "") {
			return fmt.Errorf("--yes requires --first and --last")
		}

		s := &signer{
			ctx:    context.Background(),
			client: agClient,
			in:     bufio.NewReader(cmd.InOrStdin()),
			out:    cmd.OutOrStdout(),
			rows:   max(ui.ViewportRows()-chromeRows, minRows),
			auto:   yes,
		}
		return s.run(resume, model.AgreementInput{FirstName: first, LastName: last, Agreed: yes})
	},
}

// signer drives one terminal reading-and-signing session.
type signer struct {
	ctx    context.Context
	client client.AgreementClient
	in     *bufio.Reader
	out    io.Writer
	rows   int
	auto   bool
}

func (s *signer) run(resumeID string, in model.AgreementInput) error {
	sess, err := s.client.OpenSession(s.ctx, resumeID)
	if err != nil {
		return fmt.Errorf("opening session: %w", err)
	}
	if sess.State.Signed {
		fmt.Fprintln(s.out, "This session has already signed.")
		if sess.Agreement != nil {
			s.printConfirmation(sess.Agreement)
		}
		return nil
	}
	fmt.Fprintf(s.out, "%s %s\n\n", ui.RenderMuted("session"), sess.SessionID)

	state := sess.State
	if !state.Unlocked {
		sections := sess.Sections
		if len(sections) == 0 {
			if sections, err = s.client.Sections(s.ctx); err != nil {
				return err
			}
		}
		if state, err = s.read(sess.SessionID, sections); err != nil {
			return err
		}
		if !state.Unlocked {
			fmt.Fprintf(s.out, "\nResume later with: ag sign --session %s\n", sess.SessionID)
			return nil
		}
	}

	fmt.Fprintf(s.out, "\n%s  %s\n\n", stepperLine(state), ui.RenderAccent("All rules read. The agreement form is unlocked."))
	return s.sign(sess.SessionID, in)
}

// read pages through the rules, reporting a frame per page, until the gate
// unlocks or the reader quits.
func (s *signer) read(sessionID string, sections []model.Section) (model.ProgressState, error) {
	doc := layoutDocument(sections, textWidth, s.rows)
	var state model.ProgressState

	for offset := 0; ; offset = min(offset+s.rows/2, doc.maxOffset(s.rows)) {
		for _, line := range doc.view(offset, s.rows) {
			fmt.Fprintln(s.out, line)
		}

		resp, err := s.client.Scroll(s.ctx, sessionID, doc.frame(offset, s.rows))
		if err != nil {
			return state, fmt.Errorf("reporting progress: %w", err)
		}
		state = resp.State
		if state.Unlocked {
			return state, nil
		}

		fmt.Fprintf(s.out, "%s  %d of %d sections read\n", stepperLine(state), len(state.Completed), state.Total)
		if offset == doc.maxOffset(s.rows) {
			// Nothing left to scroll; only reachable if sections changed underneath us.
			return state, nil
		}
		if s.auto {
			continue
		}
		answer, err := s.prompt(ui.RenderMuted("[enter] scroll  [q] quit "))
		if err != nil || strings.EqualFold(answer, "q") {
			return state, err
		}
	}
}

// sign collects names and submits, re-prompting on validation errors and
// offering a retry when the backend fails.
func (s *signer) sign(sessionID string, in model.AgreementInput) error {
	for {
		if !s.auto {
			var err error
			if in, err = s.askInput(in); err != nil {
				return err
			}
		}

		resp, err := s.client.Submit(s.ctx, sessionID, in)
		if err == nil {
			s.printConfirmation(resp.Agreement)
			return nil
		}

		var apiErr *client.APIError
		if !errors.As(err, &apiErr) || s.auto {
			return err
		}
		switch {
		case len(apiErr.Fields) > 0:
			for _, f := range apiErr.Fields {
				fmt.Fprintf(s.out, "  %s %s\n", ui.RenderFail("✗"), f.Message)
			}
			in = clearInvalid(in, apiErr.Fields)
		case apiErr.Kind == string(submit.KindExhaustedRetries) || apiErr.Kind == string(submit.KindBackend):
			fmt.Fprintf(s.out, "%s %s\n", ui.RenderFail("✗"), apiErr.Message)
			answer, err := s.prompt("Try again? [Y/n] ")
			if err != nil || strings.EqualFold(answer, "n") {
				return apiErr
			}
		default:
			return err
		}
	}
}

func (s *signer) askInput(in model.AgreementInput) (model.AgreementInput, error) {
	var err error
	if in.FirstName == "" {
		if in.FirstName, err = s.prompt("First name: "); err != nil {
			return in, err
		}
	}
	if in.LastName == "" {
		if in.LastName, err = s.prompt("Last name: "); err != nil {
			return in, err
		}
	}
	if !in.Agreed {
		answer, err := s.prompt("I have read and agree to follow the group rules [y/N] ")
		if err != nil {
			return in, err
		}
		in.Agreed = strings.EqualFold(answer, "y") || strings.EqualFold(answer, "yes")
	}
	return in, nil
}

// clearInvalid blanks the fields the server rejected so they are asked again.
func clearInvalid(in model.AgreementInput, fields []model.FieldError) model.AgreementInput {
	for _, f := range fields {
		switch f.Field {
		case model.FieldFirstName:
			in.FirstName = ""
		case model.FieldLastName:
			in.LastName = ""
		case model.FieldAgreed:
			in.Agreed = false
		}
	}
	return in
}

func (s *signer) prompt(label string) (string, error) {
	fmt.Fprint(s.out, label)
	line, err := s.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		if errors.Is(err, io.EOF) {
			return "", fmt.Errorf("input closed")
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (s *signer) printConfirmation(a *model.Agreement) {
	fmt.Fprintf(s.out, "\n%s Thanks, %s.\n", ui.RenderPass("✓"), a.FullName())
	fmt.Fprintf(s.out, "Your confirmation code is %s\n", ui.RenderAccent(a.ConfirmationCode))
	fmt.Fprintln(s.out, ui.RenderMuted("Run 'ag template' for the member auction post template."))
}

func init() {
	signCmd.Flags().String("session", "", "resume an earlier reading session")
	signCmd.Flags().String("first", "", "first name")
	signCmd.Flags().String("last", "", "last name")
	signCmd.Flags().BoolP("yes", "y", false, "scroll through every section and agree without prompting")
}

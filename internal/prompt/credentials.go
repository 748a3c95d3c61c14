package prompt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/jayteealao/gitsvc/internal/auth"
	"golang.org/x/term"
)

// Prompter collects credentials in the terminal.
type Prompter struct {
	in         io.Reader
	out        io.Writer
	accessible bool
}

// NewPrompter creates a prompter reading from in and rendering to out. The
// accessible mode renders plain line prompts instead of the full form.
func NewPrompter(in io.Reader, out io.Writer, accessible bool) *Prompter {
	return &Prompter{in: in, out: out, accessible: accessible}
}

// IsInteractive reports whether f is a terminal that can show a prompt.
func IsInteractive(f *os.File) bool {
	return f != nil && term.IsTerminal(int(f.Fd()))
}

// Prompt shows one input per challenge field. Aborting the form returns
// auth.ErrPromptCancelled.
func (p *Prompter) Prompt(ctx context.Context, challenge auth.Challenge) (*auth.Credentials, error) {
	values := make([]string, len(challenge.Fields))
	inputs := make([]huh.Field, 0, len(challenge.Fields))

	for i, f := range challenge.Fields {
		input := huh.NewInput().
			Title(f.Label).
			Value(&values[i]).
			Placeholder(GetPlaceholder(f)).
			Validate(ValidateField(f))
		if f.Secret {
			input.EchoMode(huh.EchoModePassword)
		}
		if i == 0 {
			input.Description(Description(challenge))
		}
		inputs = append(inputs, input)
	}

	form := huh.NewForm(huh.NewGroup(inputs...)).
		WithAccessible(p.accessible).
		WithInput(p.in).
		WithOutput(p.out)

	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) || errors.Is(err, context.Canceled) {
			return nil, auth.ErrPromptCancelled
		}
		return nil, fmt.Errorf("prompt failed: %w", err)
	}

	creds := &auth.Credentials{Kind: challenge.Kind}
	for i, f := range challenge.Fields {
		switch f.Name {
		case "username":
			creds.Username = values[i]
		case "password":
			creds.Password = values[i]
		case "passphrase":
			creds.Passphrase = values[i]
		}
	}
	return creds, nil
}

// ConfirmAction prompts the user to confirm an action with yes/no.
// Returns true if the user confirmed, false otherwise.
func ConfirmAction(title, description string) (bool, error) {
	var confirmed bool

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Description(description).
				Value(&confirmed).
				Affirmative("Yes").
				Negative("No"),
		),
	)

	if err := form.Run(); err != nil {
		return false, err
	}

	return confirmed, nil
}

// Ensure Prompter implements auth.Prompter
var _ auth.Prompter = (*Prompter)(nil)

// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/halvard/notesync/internal/session"
)

// StdinPrompter implements session.ChallengePrompter by reading a password
// from a terminal, with echo disabled when stdin is a real TTY. It is the
// demo-CLI's default prompter; a TUI-driven host would implement
// ChallengePrompter over its own input widget instead (spec.md §1:
// "challenge/alert UI prompts" is an external collaborator).
type StdinPrompter struct {
	in  *os.File
	out io.Writer
}

var _ session.ChallengePrompter = (*StdinPrompter)(nil)

// NewStdinPrompter constructs a StdinPrompter reading from os.Stdin and
// writing prompts to os.Stderr (so stdout stays clean for piped output).
func NewStdinPrompter() *StdinPrompter {
	return &StdinPrompter{in: os.Stdin, out: os.Stderr}
}

// PromptPassword prints reason and reads a line, masking input when
// possible. Returns ok=false if ctx is already cancelled or reading fails
// (spec.md §5: "a challenge prompt returning null cancels the operation").
func (p *StdinPrompter) PromptPassword(ctx context.Context, reason string) (string, bool) {
	if err := ctx.Err(); err != nil {
		return "", false
	}

	fmt.Fprintf(p.out, "%s: ", reason)

	if term.IsTerminal(int(p.in.Fd())) {
		raw, err := term.ReadPassword(int(p.in.Fd()))
		fmt.Fprintln(p.out)
		if err != nil {
			return "", false
		}
		return string(raw), true
	}

	line, err := bufio.NewReader(p.in).ReadString('\n')
	if err != nil && line == "" {
		return "", false
	}
	for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r') {
		line = line[:len(line)-1]
	}
	return line, true
}

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"

	"github.com/roach88/rollcall/internal/engine"
)

// errNoInput means the input closed before an answer was given.
var errNoInput = errors.New("no input")

// console asks the operator questions. Prompts go to out (stderr) so
// results on stdout stay machine-readable. One buffered reader serves every
// question so scripted input drives menus, confirmations and passwords
// alike.
type console struct {
	in  *bufio.Reader
	tty *os.File // set when input is an interactive terminal
	out io.Writer
	yes bool
}

func newConsole(in io.Reader, out io.Writer, yes bool) *console {
	c := &console{in: bufio.NewReader(in), out: out, yes: yes}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		c.tty = f
	}
	return c
}

// readLine returns the next line without its terminator. A final line
// without a newline is still returned; errNoInput only when nothing is
// left.
func (c *console) readLine() (string, error) {
	line, err := c.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimRight(line, "\r"), nil
		}
		if errors.Is(err, io.EOF) {
			return "", errNoInput
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Ask prints prompt and returns the trimmed answer.
func (c *console) Ask(prompt string) (string, error) {
	fmt.Fprint(c.out, prompt+" ")
	line, err := c.readLine()
	if err != nil {
		fmt.Fprintln(c.out)
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Confirm implements engine.Confirmer. The default answer is no; closed
// input declines. With --yes every batch is approved without asking.
func (c *console) Confirm(ctx context.Context, req engine.ConfirmRequest) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	fmt.Fprintf(c.out, "%d user(s) selected:\n", req.Count)
	for _, email := range req.Emails {
		fmt.Fprintf(c.out, "  - %s\n", email)
	}

	if c.yes {
		slog.Info("confirmation approved by --yes", "operation", req.Operation, "count", req.Count)
		return true, nil
	}

	answer, err := c.Ask(req.Prompt + " [y/N]")
	if errors.Is(err, errNoInput) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// Choose shows a numbered list and returns the index picked. Unknown
// answers are asked again.
func (c *console) Choose(title string, choices []string) (int, error) {
	for {
		fmt.Fprintf(c.out, "\n%s\n", title)
		for i, choice := range choices {
			fmt.Fprintf(c.out, "  %d) %s\n", i+1, choice)
		}
		answer, err := c.Ask(">")
		if err != nil {
			return 0, err
		}
		if n, err := strconv.Atoi(answer); err == nil && n >= 1 && n <= len(choices) {
			return n - 1, nil
		}
		for i, choice := range choices {
			if strings.EqualFold(answer, choice) {
				return i, nil
			}
		}
		fmt.Fprintf(c.out, "Please choose 1-%d.\n", len(choices))
	}
}

// passwordPrompt implements engine.PasswordSource. A password file is used
// once; a terminal is read with echo off; any other input is read a line
// at a time.
type passwordPrompt struct {
	console *console
	file    string
}

func (p *passwordPrompt) Password(ctx context.Context, email string, attempt int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if p.file != "" {
		if attempt > 1 {
			return "", fmt.Errorf("password in %s rejected as too weak", p.file)
		}
		return readSecretFile(p.file)
	}

	prompt := fmt.Sprintf("Enter the password for %s:", email)
	if attempt > 1 {
		fmt.Fprintln(p.console.out, "Password is too weak. Please try again.")
	}

	if p.console.tty != nil {
		fmt.Fprint(p.console.out, prompt+" ")
		password, err := term.ReadPassword(int(p.console.tty.Fd()))
		fmt.Fprintln(p.console.out)
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return string(password), nil
	}

	password, err := p.console.Ask(prompt)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	if password == "" {
		return "", errors.New("empty password")
	}
	return password, nil
}

// readSecretFile reads a secret, stripping trailing newlines.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	secret := strings.TrimRight(string(data), "\r\n")
	if secret == "" {
		return "", fmt.Errorf("file %s is empty (after stripping trailing newlines)", path)
	}
	return secret, nil
}

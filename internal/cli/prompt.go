package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"
)

// prompter reads answers to interactive questions.
type prompter struct {
	in  *bufio.Reader
	out io.Writer
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{in: bufio.NewReader(in), out: out}
}

// line asks for a value, returning def on an empty answer.
func (p *prompter) line(question, def string) (string, error) {
	if def != "" {
		fmt.Fprintf(p.out, "%s [%s]: ", question, def)
	} else {
		fmt.Fprintf(p.out, "%s: ", question)
	}
	input, err := p.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	if input = strings.TrimSpace(input); input == "" {
		return def, nil
	}
	return input, nil
}

// number asks for a non-negative integer.
func (p *prompter) number(question string, def int) (int, error) {
	for {
		input, err := p.line(question, strconv.Itoa(def))
		if err != nil {
			return 0, err
		}
		v, err := strconv.Atoi(input)
		if err == nil && v >= 0 {
			return v, nil
		}
		fmt.Fprintln(p.out, "  Error: enter a whole number")
	}
}

// password reads a secret without echo when stdin is a terminal.
func (p *prompter) password(question string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return p.line(question, "")
	}
	fmt.Fprintf(p.out, "%s: ", question)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(p.out)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

// confirm asks a yes/no question on out and reads the answer from in.
func confirm(in io.Reader, out io.Writer, question string) (bool, error) {
	answer, err := newPrompter(in, out).line(question+" [y/N]", "")
	if err != nil {
		return false, err
	}
	answer = strings.ToLower(answer)
	return answer == "y" || answer == "yes", nil
}

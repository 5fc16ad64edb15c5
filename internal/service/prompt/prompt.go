// Package prompt asks the operator questions on the terminal.
package prompt

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Prompter reads answers from in and writes questions to out.
type Prompter struct {
	in  *bufio.Reader
	out io.Writer
}

// New creates a Prompter over arbitrary streams.
func New(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out}
}

// Stdio returns a Prompter bound to the process's stdin and stdout.
func Stdio() *Prompter {
	return New(os.Stdin, os.Stdout)
}

// AskYesNo prints "[QUESTION] <prompt> (y/N) " and reads one line. Only "y"
// (any case, surrounding space ignored) is a yes; anything else, including
// a read error, is a no.
func (p *Prompter) AskYesNo(prompt string) bool {
	fmt.Fprintf(p.out, "[QUESTION] %s (y/N) ", prompt)
	line, err := p.in.ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(line), "y")
}

// ReadAll consumes the rest of the input, for pasting multi-line content.
func (p *Prompter) ReadAll() (string, error) {
	data, err := io.ReadAll(p.in)
	return string(data), err
}

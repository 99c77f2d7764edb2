// Package console talks to the operator on the terminal.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Question is shown before every run.
const Question = "Should I fetch them? [y/N] "

// Prompt announces a search result and asks whether to fetch it.
type Prompt struct {
	in        *bufio.Reader
	out       io.Writer
	assumeYes bool
}

// NewPrompt reads answers from in and writes messages to out.
func NewPrompt(in io.Reader, out io.Writer) *Prompt {
	return &Prompt{in: bufio.NewReader(in), out: out}
}

// AssumeYes makes Confirm answer yes without reading input.
func (p *Prompt) AssumeYes() *Prompt {
	p.assumeYes = true

	return p
}

// Confirm prints the result count and how many of the results are already
// known, then asks the question. Only "y" and "yes" (any case) accept;
// anything else, including end of input, declines.
func (p *Prompt) Confirm(ctx context.Context, count, overlap int) (bool, error) {
	fmt.Fprintf(p.out, "\n[%d] result(s) found.\n", count)

	if overlap > 0 {
		fmt.Fprintf(p.out, "[%d] of these results are already in the dataset and will be skipped.\n", overlap)
	} else {
		fmt.Fprintln(p.out, "None of these results are in the dataset yet.")
	}

	fmt.Fprintln(p.out)

	if p.assumeYes {
		return true, nil
	}

	fmt.Fprint(p.out, Question)

	answer, err := p.readLine(ctx)
	if err != nil {
		return false, err
	}

	return Accepts(answer), nil
}

// Accepts reports whether answer is an affirmative reply.
func Accepts(answer string) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

type line struct {
	text string
	err  error
}

// readLine returns the next line, or ctx.Err() if ctx ends first. EOF yields
// whatever was typed before it, possibly nothing.
func (p *Prompt) readLine(ctx context.Context) (string, error) {
	ch := make(chan line, 1)

	go func() {
		s, err := p.in.ReadString('\n')
		ch <- line{text: s, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case l := <-ch:
		if l.err != nil && !errors.Is(l.err, io.EOF) {
			return "", fmt.Errorf("failed to read answer: %w", l.err)
		}

		return l.text, nil
	}
}

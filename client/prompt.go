package client

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ParamSource supplies the parameters of the next round.
type ParamSource interface {
	Next(ctx context.Context) (Params, error)
}

// InputError reports a parameter the user got wrong. The round is skipped
// and the client goes back to discovery.
type InputError struct {
	Field string
	Input string
	Msg   string
}

func (e *InputError) Error() string {
	if e.Input != "" {
		return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Input, e.Msg)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Msg)
}

// Prompt asks for parameters on a terminal. Empty input keeps the default
// shown in brackets.
type Prompt struct {
	Defaults Params

	out   io.Writer
	lines chan string
	err   error
}

// NewPrompt reads answers from in and writes questions to out.
func NewPrompt(in io.Reader, out io.Writer, defaults Params) *Prompt {
	p := &Prompt{Defaults: defaults, out: out, lines: make(chan string)}
	go p.scan(in)
	return p
}

func (p *Prompt) scan(in io.Reader) {
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		p.lines <- sc.Text()
	}
	p.err = sc.Err()
	if p.err == nil {
		p.err = io.EOF
	}
	close(p.lines)
}

// Next asks for file size, TCP count and UDP count in that order. It returns
// io.EOF once input is exhausted and *InputError for an unusable answer.
func (p *Prompt) Next(ctx context.Context) (Params, error) {
	size, err := p.ask(ctx, "file size in bytes", p.Defaults.FileSize, 63)
	if err != nil {
		return Params{}, err
	}
	tcp, err := p.ask(ctx, "number of TCP connections", uint64(p.Defaults.TCPConns), 31)
	if err != nil {
		return Params{}, err
	}
	udp, err := p.ask(ctx, "number of UDP connections", uint64(p.Defaults.UDPConns), 31)
	if err != nil {
		return Params{}, err
	}

	params := Params{FileSize: size, TCPConns: int(tcp), UDPConns: int(udp)}
	return params, params.Validate()
}

func (p *Prompt) ask(ctx context.Context, field string, def uint64, bits int) (uint64, error) {
	fmt.Fprintf(p.out, "Enter %s [%d]: ", field, def)

	var line string
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case l, ok := <-p.lines:
		if !ok {
			return 0, p.err
		}
		line = strings.TrimSpace(l)
	}

	if line == "" {
		return def, nil
	}
	n, err := strconv.ParseUint(line, 10, bits)
	if err != nil {
		return 0, &InputError{Field: field, Input: line, Msg: "not a positive integer"}
	}
	if n == 0 {
		return 0, &InputError{Field: field, Input: line, Msg: "must be positive"}
	}
	return n, nil
}

// StaticParams hands out the same parameters every round.
type StaticParams Params

func (s StaticParams) Next(ctx context.Context) (Params, error) {
	if err := ctx.Err(); err != nil {
		return Params{}, err
	}
	p := Params(s)
	return p, p.Validate()
}

package console

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Line is one recorded output line of a Script.
type Line struct {
	Style Style
	Text  string
}

// Script answers prompts from a fixed list and records everything said.
// Once the answers run out Ask returns ErrClosed.
type Script struct {
	mu      sync.Mutex
	answers []string
	prompts []string
	lines   []Line
}

func NewScript(answers ...string) *Script {
	return &Script{answers: answers}
}

func (s *Script) Ask(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, prompt)
	if len(s.answers) == 0 {
		return "", ErrClosed
	}
	answer := s.answers[0]
	s.answers = s.answers[1:]
	return answer, nil
}

func (s *Script) Say(style Style, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, Line{Style: style, Text: msg})
}

func (s *Script) Table(header []string, rows [][]string) {
	var sb strings.Builder
	sb.WriteString(strings.Join(header, " | "))
	for _, row := range rows {
		sb.WriteString("\n" + strings.Join(row, " | "))
	}
	s.Say(StylePlain, sb.String())
}

func (s *Script) Prompts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.prompts...)
}

func (s *Script) Lines() []Line {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Line(nil), s.lines...)
}

// Remaining is the number of unused answers.
func (s *Script) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.answers)
}

// Transcript joins every recorded line, handy for Contains assertions.
func (s *Script) Transcript() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sb strings.Builder
	for _, l := range s.lines {
		fmt.Fprintf(&sb, "[%s] %s\n", l.Style, l.Text)
	}
	return sb.String()
}

// Package script asks the LLM for a short narrator-only script and cleans it
// into speakable sentences.
package script

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"shorts-pipeline/config"
	"shorts-pipeline/llm"
	"shorts-pipeline/types"
)

// ErrEmptyScript is returned when nothing speakable is left after cleaning.
var ErrEmptyScript = errors.New("script has no narration")

const systemPrompt = `You are a professional scriptwriter for short, engaging vertical videos.
Write fast-paced, conversational narration for a single narrator.
Never describe visuals, scenes, camera directions or sound effects.
Open with a question such as "Did you know..." and end with a short call to action.
Prefer new, research-driven and lesser-known facts.

Format every spoken line like this:
[NARRATOR]: Did you know octopuses have three hearts?`

var (
	labelRe     = regexp.MustCompile(`(?i)^\[?\s*narrator\s*\]?\s*:\s*`)
	directionRe = regexp.MustCompile(`\[[^\]]*\]|\([^)]*\)`)
	markdownRe  = regexp.MustCompile("[*_#`~]+")
	spaceRe     = regexp.MustCompile(`\s+`)
)

// Writer produces narration scripts.
type Writer struct {
	llm       llm.Completer
	sentences int
	log       *slog.Logger
}

// New creates a Writer.
func New(cfg *config.Config, c llm.Completer) *Writer {
	return &Writer{
		llm:       c,
		sentences: cfg.Script.Sentences,
		log:       slog.Default().With("component", "script"),
	}
}

// Write generates the narration for topic.
func (w *Writer) Write(ctx context.Context, topic string) (types.Script, error) {
	w.log.Info("generating script", "topic", topic, "sentences", w.sentences)

	user := fmt.Sprintf("Write a %d-sentence, roughly 30-second script about: %q.\nOne sentence per [NARRATOR] line.", w.sentences, topic)
	reply, err := w.llm.Complete(ctx, systemPrompt, user)
	if err != nil {
		return types.Script{}, fmt.Errorf("script completion: %w", err)
	}

	lines := Clean(reply)
	if len(lines) == 0 {
		return types.Script{}, ErrEmptyScript
	}
	s := types.Script{
		Topic:     topic,
		Sentences: lines,
		Text:      strings.Join(lines, " "),
	}
	w.log.Info("script ready", "lines", len(lines), "words", len(strings.Fields(s.Text)))
	return s, nil
}

// Clean extracts speakable lines from a model reply. When any line carries a
// narrator label, only labeled lines are kept. Stage directions in brackets
// or parentheses and markdown emphasis are removed.
func Clean(reply string) []string {
	raw := strings.Split(strings.ReplaceAll(reply, "\r\n", "\n"), "\n")

	labeled := false
	for _, line := range raw {
		if labelRe.MatchString(strings.TrimSpace(markdownRe.ReplaceAllString(line, ""))) {
			labeled = true
			break
		}
	}

	var out []string
	for _, line := range raw {
		line = strings.TrimSpace(markdownRe.ReplaceAllString(line, ""))
		if labelRe.MatchString(line) {
			line = labelRe.ReplaceAllString(line, "")
		} else if labeled {
			continue
		}
		line = directionRe.ReplaceAllString(line, "")
		line = strings.TrimSpace(spaceRe.ReplaceAllString(line, " "))
		if line == "" || strings.HasSuffix(line, ":") {
			continue
		}
		out = append(out, line)
	}
	return out
}

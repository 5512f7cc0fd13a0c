// Package topics chooses what the next short is about.
package topics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"shorts-pipeline/config"
	"shorts-pipeline/llm"
)

// ErrNoTopic is returned when neither the model nor the examples yield a topic.
var ErrNoTopic = errors.New("no topic available")

const systemPrompt = `You pick topics for short educational videos.
Reply with ONE short topic of two to five words and nothing else.
Favour science, history, nature and technology facts that surprise people.`

// UsageStore tracks how often topics were used.
type UsageStore interface {
	TopicCount(ctx context.Context, topic string) (int, error)
	RecordTopic(ctx context.Context, topic string) error
}

// Selector picks a topic from the LLM, falling back to configured examples.
type Selector struct {
	llm        llm.Completer
	store      UsageStore
	maxRepeats int
	examples   []string
	caser      cases.Caser
	log        *slog.Logger
	rng        *rand.Rand
}

// New creates a Selector. c may be nil to use examples only.
func New(cfg *config.Config, c llm.Completer, store UsageStore) *Selector {
	return &Selector{
		llm:        c,
		store:      store,
		maxRepeats: cfg.Topics.MaxRepeats,
		examples:   cfg.Topics.Examples,
		caser:      cases.Title(language.English),
		log:        slog.Default().With("component", "topics"),
		rng:        rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x70c)),
	}
}

// WithRand replaces the example shuffle source.
func (s *Selector) WithRand(rng *rand.Rand) *Selector {
	s.rng = rng
	return s
}

// Pick chooses and records a topic. A model topic already used maxRepeats
// times, or a model failure, is replaced by an example topic.
func (s *Selector) Pick(ctx context.Context, avoid ...string) (string, error) {
	topic := ""
	if s.llm != nil {
		user := "Suggest a fresh topic."
		if len(avoid) > 0 {
			user += " Avoid: " + strings.Join(avoid, ", ") + "."
		}
		reply, err := s.llm.Complete(ctx, systemPrompt, user)
		switch {
		case err != nil && ctx.Err() != nil:
			return "", ctx.Err()
		case err != nil:
			s.log.Warn("topic generation failed, using examples", "err", err)
		default:
			topic = s.Clean(reply)
		}
	}

	if topic != "" {
		exhausted, err := s.exhausted(ctx, topic)
		if err != nil {
			return "", err
		}
		if exhausted {
			s.log.Info("topic used too often, using examples", "topic", topic, "max_repeats", s.maxRepeats)
			topic = ""
		}
	}
	if topic == "" {
		var err error
		if topic, err = s.example(ctx); err != nil {
			return "", err
		}
	}
	return topic, s.Use(ctx, topic)
}

// Use records a topic chosen elsewhere, such as on the command line.
func (s *Selector) Use(ctx context.Context, topic string) error {
	if s.store == nil {
		return nil
	}
	if err := s.store.RecordTopic(ctx, topic); err != nil {
		return fmt.Errorf("record topic: %w", err)
	}
	s.log.Info("topic selected", "topic", topic)
	return nil
}

// Clean reduces a model reply to a title-cased topic.
func (s *Selector) Clean(reply string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(reply), "\n")
	line = strings.TrimSpace(line)
	if i := strings.Index(line, ":"); i >= 0 && strings.EqualFold(strings.TrimSpace(line[:i]), "topic") {
		line = line[i+1:]
	}
	line = strings.Trim(line, " \t\"'`*.")
	if line == "" {
		return ""
	}
	return s.caser.String(strings.Join(strings.Fields(line), " "))
}

func (s *Selector) exhausted(ctx context.Context, topic string) (bool, error) {
	if s.store == nil || s.maxRepeats <= 0 {
		return false, nil
	}
	n, err := s.store.TopicCount(ctx, topic)
	if err != nil {
		return false, fmt.Errorf("topic usage: %w", err)
	}
	return n >= s.maxRepeats, nil
}

// example returns a random example topic, preferring ones not yet exhausted.
func (s *Selector) example(ctx context.Context) (string, error) {
	if len(s.examples) == 0 {
		return "", ErrNoTopic
	}
	order := s.rng.Perm(len(s.examples))
	for _, i := range order {
		topic := s.caser.String(s.examples[i])
		exhausted, err := s.exhausted(ctx, topic)
		if err != nil {
			return "", err
		}
		if !exhausted {
			return topic, nil
		}
	}
	return s.caser.String(s.examples[order[0]]), nil
}

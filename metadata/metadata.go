// Package metadata builds publishing metadata for a finished short.
package metadata

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/samber/lo"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"shorts-pipeline/config"
	"shorts-pipeline/llm"
	"shorts-pipeline/types"
)

const systemPrompt = `You are an expert YouTube Shorts content strategist.
Generate metadata that maximizes click-through rate and search ranking.

Format your answer EXACTLY like this, with nothing before or after:
TITLE: a catchy, honest title under 90 characters ending with #shorts
DESCRIPTION: a compelling 2-4 sentence description with topic questions people search for
TAGS: comma-separated relevant tags`

// Generator asks the LLM for metadata and falls back to a deterministic
// version built from the topic.
type Generator struct {
	llm        llm.Completer
	cfg        config.MetadataConfig
	visibility string
	log        *slog.Logger
}

// New creates a Generator. c may be nil to always use the fallback.
func New(cfg *config.Config, c llm.Completer) *Generator {
	return &Generator{
		llm:        c,
		cfg:        cfg.Metadata,
		visibility: cfg.Upload.Visibility,
		log:        slog.Default().With("component", "metadata"),
	}
}

// Generate returns metadata for the video. Model failures are logged and
// replaced by Fallback; only context cancellation is returned as an error.
func (g *Generator) Generate(ctx context.Context, topic string, script types.Script) (types.VideoMetadata, error) {
	if g.llm == nil {
		return g.Fallback(topic, script), nil
	}
	user := fmt.Sprintf("Topic: %s\n\nScript:\n%s", topic, script.Text)
	reply, err := g.llm.Complete(ctx, systemPrompt, user)
	if err != nil {
		if ctx.Err() != nil {
			return types.VideoMetadata{}, ctx.Err()
		}
		g.log.Warn("metadata generation failed, using fallback", "err", err)
		return g.Fallback(topic, script), nil
	}

	meta := g.Parse(reply)
	if meta.Title == "" {
		g.log.Warn("metadata reply had no title, using fallback")
		return g.Fallback(topic, script), nil
	}
	if meta.Description == "" {
		meta.Description = g.Fallback(topic, script).Description
	}
	if len(meta.Tags) == 0 {
		meta.Tags = g.tags(defaultTags(topic))
	}
	g.log.Info("metadata ready", "title", meta.Title, "tags", len(meta.Tags))
	return meta, nil
}

// Parse reads a TITLE/DESCRIPTION/TAGS block. Description may span lines.
func (g *Generator) Parse(reply string) types.VideoMetadata {
	var title, tags string
	var desc []string
	section := ""
	for _, line := range strings.Split(llm.CleanJSON(reply), "\n") {
		trimmed := strings.TrimSpace(strings.Trim(strings.TrimSpace(line), "*"))
		switch upper := strings.ToUpper(trimmed); {
		case strings.HasPrefix(upper, "TITLE:"):
			section, title = "title", value(trimmed[len("TITLE:"):])
		case strings.HasPrefix(upper, "DESCRIPTION:"):
			section = "description"
			desc = append(desc, value(trimmed[len("DESCRIPTION:"):]))
		case strings.HasPrefix(upper, "TAGS:"):
			section, tags = "tags", value(trimmed[len("TAGS:"):])
		case section == "description":
			desc = append(desc, trimmed)
		}
	}

	return types.VideoMetadata{
		Title:       g.clampTitle(strings.Trim(title, `"`)),
		Description: strings.TrimSpace(strings.Join(desc, "\n")),
		Tags:        g.tags(strings.Split(tags, ",")),
		CategoryID:  g.cfg.YouTubeCategoryID,
		Visibility:  g.visibility,
	}
}

func value(s string) string {
	return strings.TrimSpace(strings.TrimLeft(s, "* "))
}

// Fallback builds metadata from the topic alone.
func (g *Generator) Fallback(topic string, script types.Script) types.VideoMetadata {
	name := cases.Title(language.English).String(strings.TrimSpace(topic))
	desc := fmt.Sprintf("Did you know these facts about %s?", name)
	if len(script.Sentences) > 0 {
		desc = script.Sentences[0] + "\n\n" + desc
	}
	return types.VideoMetadata{
		Title:       g.clampTitle(name + " Facts You Never Knew #shorts"),
		Description: desc + "\n\n#shorts",
		Tags:        g.tags(defaultTags(topic)),
		CategoryID:  g.cfg.YouTubeCategoryID,
		Visibility:  g.visibility,
	}
}

func defaultTags(topic string) []string {
	return append([]string{topic, "shorts", "facts", "did you know"}, strings.Fields(topic)...)
}

func (g *Generator) clampTitle(title string) string {
	limit := g.cfg.TitleMaxChars
	r := []rune(strings.TrimSpace(title))
	if limit <= 3 || len(r) <= limit {
		return string(r)
	}
	return strings.TrimSpace(string(r[:limit-3])) + "..."
}

func (g *Generator) tags(raw []string) []string {
	cleaned := lo.FilterMap(raw, func(t string, _ int) (string, bool) {
		t = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(t), "#"))
		return t, t != ""
	})
	uniq := lo.UniqBy(cleaned, strings.ToLower)
	if g.cfg.TagsCount > 0 && len(uniq) > g.cfg.TagsCount {
		uniq = uniq[:g.cfg.TagsCount]
	}
	return uniq
}

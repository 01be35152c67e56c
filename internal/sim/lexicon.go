package sim

import (
	"strings"

	"adsim/internal/sim/rng"
)

// Intent-conditioned query modifiers. High-intent searchers use transactional
// language, low-intent searchers use informational language; the spillover
// terms are what eventually surface in the search-terms report as harmful.
var (
	highIntentModifiers = []string{
		"buy", "book", "hire", "order", "price", "near me", "best", "urgent",
	}
	mediumIntentModifiers = []string{
		"reviews", "compare", "cost", "top rated", "vs", "cheap", "rates",
	}
	lowIntentModifiers = []string{
		"free", "what is", "how to", "diy", "jobs", "salary", "course",
		"tutorial", "meaning", "ideas",
	}
)

// Lexicon generates synthetic queries for a segment. Draws are fully
// determined by the stream passed in.
type Lexicon struct {
	topics      []string
	competitors []string
	offTopic    []string
}

// NewLexicon builds the vocabulary from the scenario. Topics fall back to the
// distinct tokens of the non-negative keyword set so a minimal scenario still
// produces plausible queries.
func NewLexicon(cfg *ScenarioConfig) *Lexicon {
	lex := &Lexicon{
		topics:      cfg.Lexicon.Topics,
		competitors: cfg.Lexicon.Competitors,
		offTopic:    cfg.Lexicon.OffTopic,
	}
	if len(lex.topics) == 0 {
		seen := map[string]struct{}{}
		for _, kw := range cfg.Advertiser.Keywords {
			if kw.IsNegative {
				continue
			}
			phrase := normalizeText(kw.Text)
			if phrase == "" {
				continue
			}
			if _, ok := seen[phrase]; !ok {
				seen[phrase] = struct{}{}
				lex.topics = append(lex.topics, phrase)
			}
		}
	}
	if len(lex.topics) == 0 {
		lex.topics = []string{"service"}
	}
	return lex
}

// Query draws one query for the segment's intent level.
//
// High intent: topic + transactional modifier. Medium: topic + research
// modifier. Low intent mixes informational phrasing with competitor and
// off-topic spillover, which is what broad match drags in.
func (l *Lexicon) Query(intent string, stream *rng.Stream) string {
	topic := l.topics[stream.IntN(len(l.topics))]
	switch intent {
	case IntentHigh:
		mod := highIntentModifiers[stream.IntN(len(highIntentModifiers))]
		return joinQuery(mod, topic, stream)
	case IntentMedium:
		mod := mediumIntentModifiers[stream.IntN(len(mediumIntentModifiers))]
		return joinQuery(mod, topic, stream)
	default:
		roll := stream.Float64()
		if roll < 0.15 && len(l.competitors) > 0 {
			brand := l.competitors[stream.IntN(len(l.competitors))]
			return normalizeText(brand + " " + topic)
		}
		if roll < 0.30 && len(l.offTopic) > 0 {
			off := l.offTopic[stream.IntN(len(l.offTopic))]
			return normalizeText(topic + " " + off)
		}
		mod := lowIntentModifiers[stream.IntN(len(lowIntentModifiers))]
		return joinQuery(mod, topic, stream)
	}
}

func joinQuery(mod, topic string, stream *rng.Stream) string {
	if stream.Bernoulli(0.5) {
		return normalizeText(mod + " " + topic)
	}
	return normalizeText(topic + " " + mod)
}

func normalizeText(s string) string {
	return strings.Join(Tokenize(s), " ")
}

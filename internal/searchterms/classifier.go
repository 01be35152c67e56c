package searchterms

import (
	"sort"
	"strings"

	"adsim/internal/sim"
)

const (
	CategoryLowIntent  = "low_intent"
	CategoryOffTopic   = "off_topic"
	CategoryCompetitor = "competitor"
	CategoryTooBroad   = "too_broad"
)

// lowIntentTriggers are the informational markers that flag a query as
// unlikely to convert. Multi-word triggers are matched as phrases.
var lowIntentTriggers = []string{
	"free", "what is", "how to", "diy", "jobs", "salary", "career",
	"course", "tutorial", "meaning", "ideas", "wiki", "definition",
	"examples", "template", "download",
}

// Classifier applies rule-based lexicon matching to logged queries. It is a
// pure reader: scenario vocabulary in, per-query verdicts out.
type Classifier struct {
	competitors []string
	offTopic    []string
	topicTokens map[string]struct{}
}

func NewClassifier(cfg *sim.ScenarioConfig) *Classifier {
	c := &Classifier{
		topicTokens: map[string]struct{}{},
	}
	if cfg != nil {
		c.competitors = normalizeAll(cfg.Lexicon.Competitors)
		c.offTopic = normalizeAll(cfg.Lexicon.OffTopic)
		for _, topic := range cfg.Lexicon.Topics {
			for _, tok := range sim.Tokenize(topic) {
				c.topicTokens[tok] = struct{}{}
			}
		}
		for _, kw := range cfg.Advertiser.Keywords {
			if kw.IsNegative {
				continue
			}
			for _, tok := range sim.Tokenize(kw.Text) {
				c.topicTokens[tok] = struct{}{}
			}
		}
	}
	return c
}

// Verdict is a harmful-query classification plus the lexeme that triggered
// it. Trigger is the longest matching phrase and becomes the suggested
// negative keyword token.
type Verdict struct {
	Category string
	Trigger  string
}

// Classify returns nil for healthy queries. Precedence: competitor brands
// beat off-topic vocabulary, which beats informational markers; too_broad is
// the fallback for broad-matched queries with no topical anchor.
func (c *Classifier) Classify(query, matchType string) *Verdict {
	tokens := sim.Tokenize(query)
	if len(tokens) == 0 {
		return nil
	}
	normalized := strings.Join(tokens, " ")

	if trigger := longestMatch(normalized, c.competitors); trigger != "" {
		return &Verdict{Category: CategoryCompetitor, Trigger: trigger}
	}
	if trigger := longestMatch(normalized, c.offTopic); trigger != "" {
		return &Verdict{Category: CategoryOffTopic, Trigger: trigger}
	}
	if trigger := longestMatch(normalized, lowIntentTriggers); trigger != "" {
		return &Verdict{Category: CategoryLowIntent, Trigger: trigger}
	}
	if matchType == sim.MatchBroad && c.topicDistance(tokens) >= 0.5 {
		return &Verdict{Category: CategoryTooBroad, Trigger: farthestToken(tokens, c.topicTokens)}
	}
	return nil
}

// topicDistance is the share of query tokens with no topical anchor.
func (c *Classifier) topicDistance(tokens []string) float64 {
	if len(c.topicTokens) == 0 || len(tokens) == 0 {
		return 0
	}
	missing := 0
	for _, tok := range tokens {
		if _, ok := c.topicTokens[tok]; !ok {
			missing++
		}
	}
	return float64(missing) / float64(len(tokens))
}

// longestMatch returns the longest trigger phrase contained in the
// normalized query, or "".
func longestMatch(normalized string, triggers []string) string {
	best := ""
	for _, trigger := range triggers {
		if trigger == "" {
			continue
		}
		if containsPhrase(normalized, trigger) && len(trigger) > len(best) {
			best = trigger
		}
	}
	return best
}

func containsPhrase(normalized, phrase string) bool {
	if normalized == phrase {
		return true
	}
	return strings.HasPrefix(normalized, phrase+" ") ||
		strings.HasSuffix(normalized, " "+phrase) ||
		strings.Contains(normalized, " "+phrase+" ")
}

func farthestToken(tokens []string, topical map[string]struct{}) string {
	var off []string
	for _, tok := range tokens {
		if _, ok := topical[tok]; !ok {
			off = append(off, tok)
		}
	}
	if len(off) == 0 {
		return tokens[0]
	}
	sort.Slice(off, func(i, j int) bool {
		if len(off[i]) != len(off[j]) {
			return len(off[i]) > len(off[j])
		}
		return off[i] < off[j]
	})
	return off[0]
}

func normalizeAll(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		tokens := sim.Tokenize(item)
		if len(tokens) == 0 {
			continue
		}
		out = append(out, strings.Join(tokens, " "))
	}
	return out
}

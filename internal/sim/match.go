package sim

import "strings"

// Keyword match types, strictest first. When several keywords match the same
// query, exact beats phrase beats broad; ties break on the higher bid.
const (
	MatchExact  = "exact"
	MatchPhrase = "phrase"
	MatchBroad  = "broad"
)

// broadMatchThreshold is the minimum overlap score for a broad match.
const broadMatchThreshold = 0.62

// synonyms widens broad match. Symmetric closure is applied at lookup.
var synonyms = map[string][]string{
	"buy":      {"purchase", "get", "order"},
	"cheap":    {"affordable", "budget", "inexpensive"},
	"best":     {"top", "leading", "premier"},
	"near":     {"nearby", "local", "around"},
	"rent":     {"lease", "rental", "hire"},
	"service":  {"services", "help", "assistance"},
	"repair":   {"fix", "fixing", "maintenance"},
	"cleaning": {"clean", "cleaner", "housekeeping"},
	"price":    {"cost", "pricing", "rate", "rates"},
	"discount": {"sale", "offer", "deal", "deals"},
	"shop":     {"store", "shopping"},
	"delivery": {"shipping", "deliver"},
	"online":   {"web", "internet", "digital"},
}

// Tokenize lowercases, strips punctuation and splits on whitespace. All
// matching operates on the token form.
func Tokenize(text string) []string {
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}
	return strings.Fields(b.String())
}

func synonymSet(word string) map[string]struct{} {
	set := map[string]struct{}{word: {}}
	if alts, ok := synonyms[word]; ok {
		for _, a := range alts {
			set[a] = struct{}{}
		}
	}
	for key, alts := range synonyms {
		for _, a := range alts {
			if a == word {
				set[key] = struct{}{}
				for _, other := range alts {
					set[other] = struct{}{}
				}
			}
		}
	}
	return set
}

func exactMatch(keyword, query []string) bool {
	if len(keyword) != len(query) {
		return false
	}
	for i := range keyword {
		if keyword[i] != query[i] {
			return false
		}
	}
	return true
}

// phraseMatch requires the keyword tokens to appear contiguously, in order,
// inside the query.
func phraseMatch(keyword, query []string) bool {
	if len(keyword) == 0 || len(keyword) > len(query) {
		return false
	}
	for i := 0; i+len(keyword) <= len(query); i++ {
		hit := true
		for j := range keyword {
			if query[i+j] != keyword[j] {
				hit = false
				break
			}
		}
		if hit {
			return true
		}
	}
	return false
}

// BroadMatchScore blends direct token overlap, synonym overlap and a length
// ratio. Broad match has the widest reach of the three types.
func BroadMatchScore(keyword, query []string) float64 {
	if len(keyword) == 0 || len(query) == 0 {
		return 0
	}
	querySet := map[string]struct{}{}
	for _, t := range query {
		querySet[t] = struct{}{}
	}
	direct, viaSynonym := 0, 0
	for _, kt := range keyword {
		if _, ok := querySet[kt]; ok {
			direct++
			continue
		}
		for alt := range synonymSet(kt) {
			if _, ok := querySet[alt]; ok {
				viaSynonym++
				break
			}
		}
	}
	overlap := (float64(direct) + 0.8*float64(viaSynonym)) / float64(len(keyword))
	synHit := float64(viaSynonym) / float64(len(keyword))
	shorter, longer := len(keyword), len(query)
	if shorter > longer {
		shorter, longer = longer, shorter
	}
	lengthFit := float64(shorter) / float64(longer)
	return 0.6*overlap + 0.25*synHit + 0.15*lengthFit
}

func broadMatch(keyword, query []string) bool {
	return BroadMatchScore(keyword, query) >= broadMatchThreshold
}

// Match is the resolved keyword for a query.
type Match struct {
	Keyword   KeywordConfig
	MatchType string
}

func matchTypeRank(mt string) int {
	switch mt {
	case MatchExact:
		return 3
	case MatchPhrase:
		return 2
	case MatchBroad:
		return 1
	default:
		return 0
	}
}

func matchesAs(keywordTokens, queryTokens []string, matchType string) bool {
	switch matchType {
	case MatchExact:
		return exactMatch(keywordTokens, queryTokens)
	case MatchPhrase:
		return phraseMatch(keywordTokens, queryTokens)
	case MatchBroad:
		return broadMatch(keywordTokens, queryTokens)
	default:
		return false
	}
}

// Matcher resolves queries against a fixed keyword set. Tokenization happens
// once at construction.
type Matcher struct {
	positives []tokenizedKeyword
	negatives []tokenizedKeyword
}

type tokenizedKeyword struct {
	cfg    KeywordConfig
	tokens []string
}

func NewMatcher(keywords []KeywordConfig) *Matcher {
	m := &Matcher{}
	for _, kw := range keywords {
		tk := tokenizedKeyword{cfg: kw, tokens: Tokenize(kw.Text)}
		if len(tk.tokens) == 0 {
			continue
		}
		if kw.IsNegative {
			m.negatives = append(m.negatives, tk)
		} else {
			m.positives = append(m.positives, tk)
		}
	}
	return m
}

// Resolve returns the winning keyword for a query, or nil when nothing
// matches or a negative suppresses the query entirely.
func (m *Matcher) Resolve(query string) *Match {
	queryTokens := Tokenize(query)
	if len(queryTokens) == 0 {
		return nil
	}
	for _, neg := range m.negatives {
		if m.negativeBlocks(neg, queryTokens) {
			return nil
		}
	}
	var best *Match
	for _, kw := range m.positives {
		if !matchesAs(kw.tokens, queryTokens, kw.cfg.MatchType) {
			continue
		}
		if best == nil {
			best = &Match{Keyword: kw.cfg, MatchType: kw.cfg.MatchType}
			continue
		}
		bestRank := matchTypeRank(best.MatchType)
		rank := matchTypeRank(kw.cfg.MatchType)
		if rank > bestRank || (rank == bestRank && kw.cfg.Bid > best.Keyword.Bid) {
			best = &Match{Keyword: kw.cfg, MatchType: kw.cfg.MatchType}
		}
	}
	return best
}

// negativeBlocks applies the negative's own match type; a broad negative
// blocks on any token or synonym hit.
func (m *Matcher) negativeBlocks(neg tokenizedKeyword, queryTokens []string) bool {
	switch neg.cfg.MatchType {
	case MatchExact:
		return exactMatch(neg.tokens, queryTokens)
	case MatchPhrase:
		return phraseMatch(neg.tokens, queryTokens)
	default:
		querySet := map[string]struct{}{}
		for _, t := range queryTokens {
			querySet[t] = struct{}{}
		}
		for _, nt := range neg.tokens {
			for alt := range synonymSet(nt) {
				if _, ok := querySet[alt]; ok {
					return true
				}
			}
		}
		return false
	}
}

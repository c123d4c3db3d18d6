// Package extractive answers prompts offline by quoting the context sentences
// that best match the question.
package extractive

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"

	"ragqa/internal/prompt"
)

const DefaultMaxSentences = 2

// Completer ranks context sentences by question-term frequency (stopwords filtered).
type Completer struct {
	maxSentences int
	tokenPattern *regexp.Regexp
	sentences    *regexp.Regexp
	stopwords    map[string]struct{}
}

// New creates an extractive completer returning at most maxSentences sentences.
func New(maxSentences int) *Completer {
	if maxSentences <= 0 {
		maxSentences = DefaultMaxSentences
	}
	return &Completer{
		maxSentences: maxSentences,
		tokenPattern: regexp.MustCompile(`[\p{L}\p{N}]+(?:['’][\p{L}\p{N}]+)*`),
		sentences:    regexp.MustCompile(`(?m)[^.!?\n]+(?:[.!?]+|$)`),
		stopwords:    defaultStopwords(),
	}
}

// Complete answers a prompt rendered by prompt.Build. Prompts without context,
// foreign prompts and questions that share no terms with the context yield "".
func (c *Completer) Complete(ctx context.Context, p string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	question, chunks, ok := prompt.Parse(p)
	if !ok || len(chunks) == 0 {
		return "", nil
	}
	return c.Summarize(question, chunks), nil
}

// Summarize picks the sentences of chunks that best cover the question terms
// and joins them in their original order.
func (c *Completer) Summarize(question string, chunks []string) string {
	terms := map[string]struct{}{}
	for _, tok := range c.tokens(question) {
		terms[tok] = struct{}{}
	}
	if len(terms) == 0 {
		return ""
	}
	var sentences []string
	for _, chunk := range chunks {
		for _, s := range c.sentences.FindAllString(chunk, -1) {
			if s = strings.TrimSpace(s); s != "" {
				sentences = append(sentences, s)
			}
		}
	}
	// Compute word frequencies over the context
	freq := map[string]float64{}
	for _, sent := range sentences {
		for _, tok := range c.tokens(sent) {
			freq[tok]++
		}
	}
	maxF := 0.0
	for _, v := range freq {
		maxF = math.Max(maxF, v)
	}
	type pair struct {
		idx   int
		score float64
	}
	var scores []pair
	for i, sent := range sentences {
		toks := c.tokens(sent)
		score := 0.0
		for _, tok := range toks {
			if _, ok := terms[tok]; ok {
				// rarer terms discriminate better
				score += 1 + (1 - freq[tok]/maxF)
			}
		}
		if score == 0 {
			continue
		}
		scores = append(scores, pair{i, score / math.Sqrt(float64(len(toks)))})
	}
	if len(scores) == 0 {
		return ""
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })
	n := min(c.maxSentences, len(scores))
	// Keep original order among selected
	selected := make([]int, n)
	for i := range n {
		selected[i] = scores[i].idx
	}
	sort.Ints(selected)
	seen := map[string]struct{}{}
	out := make([]string, 0, n)
	for _, idx := range selected {
		if _, dup := seen[sentences[idx]]; dup {
			continue
		}
		seen[sentences[idx]] = struct{}{}
		out = append(out, sentences[idx])
	}
	return strings.Join(out, " ")
}

func (c *Completer) tokens(text string) []string {
	raw := c.tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, t := range raw {
		if _, isStop := c.stopwords[t]; isStop {
			continue
		}
		out = append(out, t)
	}
	return out
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
		"what", "which", "who", "whom", "how", "when", "where", "why", "do", "does", "did", "i", "you", "we", "they", "my", "your", "our",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

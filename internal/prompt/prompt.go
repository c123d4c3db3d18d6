// Package prompt renders the grounding instructions sent to the completion model.
package prompt

import "strings"

// NoAnswer is returned whenever the documents cannot answer a question.
const NoAnswer = "I don't know based on the provided documents."

const (
	instruction = "Use ONLY the context below to answer the question."
	fallback    = "If the answer is not in the context, say: " + NoAnswer
	separator   = "\n\n---\n\n"
	noContext   = "(no context)"

	contextHeader  = "Context:"
	questionHeader = "Question:"
)

// Build renders the prompt for question grounded on chunks.
func Build(question string, chunks []string) string {
	context := noContext
	if len(chunks) > 0 {
		context = strings.Join(chunks, separator)
	}
	return strings.Join([]string{
		instruction,
		fallback,
		"",
		contextHeader,
		context,
		"",
		questionHeader,
		question,
	}, "\n")
}

// Parse recovers question and chunks from a prompt produced by Build.
// ok is false when the text does not follow the template.
func Parse(p string) (question string, chunks []string, ok bool) {
	head := instruction + "\n" + fallback + "\n\n" + contextHeader + "\n"
	if !strings.HasPrefix(p, head) {
		return "", nil, false
	}
	rest := p[len(head):]
	// Chunks may contain the header themselves, so split on the last one.
	i := strings.LastIndex(rest, "\n\n"+questionHeader+"\n")
	if i < 0 {
		return "", nil, false
	}
	context := rest[:i]
	question = rest[i+len("\n\n"+questionHeader+"\n"):]
	if context != noContext {
		chunks = strings.Split(context, separator)
	}
	return question, chunks, true
}

package messages

import "strings"

const thinkOpenTag = "<think>"
const thinkCloseTag = "</think>"

// SplitReasoningTag implements the split_reasoning_tag property from
// spec.md §8: if text begins with a leading "<think>...</think>"
// block, the block's interior becomes the reasoning return value and
// the remainder becomes the tail; otherwise reasoning is empty and
// the whole text is returned unchanged.
//
// Only a leading block is recognized — a "<think>" appearing after
// other text is left embedded in the tail. This is the one-shot split
// MergeDelta applies at stream-merge time; the chat-completions
// adapter's streaming filter (providers/thinkfilter.go) separately
// splits out blocks found anywhere in the text.
func SplitReasoningTag(text string) (reasoning string, tail string) {
	trimmed := strings.TrimLeft(text, " \t\r\n")
	if !strings.HasPrefix(trimmed, thinkOpenTag) {
		return "", text
	}
	rest := trimmed[len(thinkOpenTag):]
	end := strings.Index(rest, thinkCloseTag)
	if end < 0 {
		// Unterminated block: treat everything after the open tag as
		// reasoning-in-progress, no tail yet.
		return rest, ""
	}
	reasoning = rest[:end]
	tail = rest[end+len(thinkCloseTag):]
	return reasoning, tail
}

// ReasoningIsEmpty is the round-trip property from spec.md §8:
// reasoning_is_empty(text) holds iff text, trimmed of leading
// whitespace, does not start with "<think>".
func ReasoningIsEmpty(text string) bool {
	trimmed := strings.TrimLeft(text, " \t\r\n")
	return !strings.HasPrefix(trimmed, thinkOpenTag)
}

// MergeDelta applies a streamed delta to the tail message's content,
// per the controller's delta merge contract (spec.md §4.1): a
// successful delta is the new *cumulative* content of the assistant
// message, so MergeDelta simply replaces text/reasoning/etc. with the
// delta's values, except that if the delta's Reasoning is empty but
// its Text still carries a leading <think> block (some providers
// inline reasoning into text instead of a dedicated field), the block
// is split out first.
func MergeDelta(delta MessageContent) MessageContent {
	if delta.Reasoning == "" && !ReasoningIsEmpty(delta.Text) {
		reasoning, tail := SplitReasoningTag(delta.Text)
		delta.Reasoning = reasoning
		delta.Text = tail
	}
	return delta
}

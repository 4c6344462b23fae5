package providers

import "strings"

const (
	thinkOpenTag  = "<think>"
	thinkCloseTag = "</think>"
)

// thinkBlockFilter splits inline <think>...</think> blocks out of a
// chat-completions text delta, for providers (local Ollama-compatible
// backends mostly) that interleave reasoning into the content stream
// instead of sending a separate reasoning_content field. A tag split
// across two deltas is carried over and completed on the next split
// call rather than lost.
type thinkBlockFilter struct {
	inThink bool
	carry   string
}

// split feeds chunk through the filter and returns the visible text
// and reasoning text it yields, in written order.
func (f *thinkBlockFilter) split(chunk string) (text string, reasoning string) {
	data := f.carry + chunk
	f.carry = ""
	var visible, think strings.Builder

	for {
		tag := thinkOpenTag
		if f.inThink {
			tag = thinkCloseTag
		}
		idx := strings.Index(data, tag)
		if idx == -1 {
			break
		}
		if f.inThink {
			think.WriteString(data[:idx])
		} else {
			visible.WriteString(data[:idx])
		}
		f.inThink = !f.inThink
		data = data[idx+len(tag):]
	}

	tag := thinkOpenTag
	if f.inThink {
		tag = thinkCloseTag
	}
	carryLen := 0
	for l := min(len(tag)-1, len(data)); l > 0; l-- {
		if strings.HasPrefix(tag, data[len(data)-l:]) {
			carryLen = l
			break
		}
	}
	body := data[:len(data)-carryLen]
	f.carry = data[len(data)-carryLen:]

	if f.inThink {
		think.WriteString(body)
	} else {
		visible.WriteString(body)
	}

	return visible.String(), think.String()
}

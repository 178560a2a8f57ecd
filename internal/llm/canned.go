package llm

import (
	"context"
	"regexp"
	"strings"
)

// cannedFamily is a keyword family and the lines it may answer with.
type cannedFamily struct {
	pattern *regexp.Regexp
	lines   []string
}

// CannedClient answers from fixed reply families keyed on the patient's words.
// It stands in for a model in demos and offline runs. Text that matches no
// family yields an empty completion, so callers keep their scripted reply.
type CannedClient struct {
	families []cannedFamily
}

func NewCannedClient() *CannedClient {
	return &CannedClient{families: []cannedFamily{
		{
			regexp.MustCompile(`(?i)\b(no|change|different|reschedule|other)\b`),
			[]string{
				"No problem! Here are the other times I can offer.",
				"That's okay! Let's look at some different options.",
			},
		},
		{
			regexp.MustCompile(`(?i)\b(morning|afternoon|evening|tomorrow|today|monday|tuesday|wednesday|thursday|friday)\b`),
			[]string{
				"Let me check what's open around then.",
				"Good choice of day. Here is what we have.",
			},
		},
		{
			regexp.MustCompile(`(?i)\b(hello|hi|schedule|appointment|book)\b`),
			[]string{
				"I'd be happy to help you find a time.",
				"Let's get your appointment scheduled.",
			},
		},
		{
			regexp.MustCompile(`(?i)\b(thanks|thank you|great|perfect)\b`),
			[]string{
				"You're welcome!",
				"Happy to help!",
			},
		},
	}}
}

// Complete picks a line from the first family matching the last user message.
// The choice is stable for a given text.
func (c *CannedClient) Complete(_ context.Context, req Request) (Response, error) {
	text := lastUserText(req.Messages)
	for _, f := range c.families {
		if f.pattern.MatchString(text) {
			return Response{Text: f.lines[len(text)%len(f.lines)], StopReason: "canned"}, nil
		}
	}
	return Response{StopReason: "canned"}, nil
}

func lastUserText(msgs []ChatMessage) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == ChatRoleUser {
			return strings.TrimSpace(msgs[i].Content)
		}
	}
	return ""
}

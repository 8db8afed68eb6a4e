package council

import (
	"fmt"
	"strings"

	"github.com/BaSui01/agentcouncil/llm/tools"
	"github.com/BaSui01/agentcouncil/types"
)

type turnSpec struct {
	history     []Message
	speakers    []types.Persona
	userText    string
	brainstorm  bool
	focus       *Message
	allowSearch bool
	search      *searchContext
}

type searchContext struct {
	request SearchRequest
	results []tools.WebSearchResult
	denied  bool
}

const replyFormat = `Respond with JSON only, in one of these shapes:
{"replies": [{"personaName": "<one of the agents above>", "text": "<message>"}]}`

const searchFormat = `or, if a web search is truly needed before anyone can answer well:
{"searchRequest": {"query": "<search query>", "personaName": "<agent asking>", "rationale": "<why>"}}`

func describeRoster(b *strings.Builder, speakers []types.Persona) {
	descs := make([]string, 0, len(speakers))
	for _, p := range speakers {
		descs = append(descs, p.Describe())
	}
	fmt.Fprintf(b, "The user is talking to a team of whimsical AI agents: %s.\n", strings.Join(descs, ", "))
	for _, p := range speakers {
		if p.DetailedPersona != "" {
			fmt.Fprintf(b, "%s persona: %s\n", p.Name, p.DetailedPersona)
		}
	}
}

func writeHistory(b *strings.Builder, history []Message) {
	if len(history) == 0 {
		return
	}
	b.WriteString("\nRecent conversation:\n")
	for _, m := range history {
		fmt.Fprintf(b, "%s: %s\n", m.SenderName, m.Text)
	}
}

func buildTurnPrompt(spec turnSpec) string {
	var b strings.Builder
	describeRoster(&b, spec.speakers)

	if spec.focus != nil {
		fmt.Fprintf(&b, "\nFocus only on this message from %s and elaborate on it in depth:\n%q\n", spec.focus.SenderName, spec.focus.Text)
		b.WriteString("Ignore any unrelated prior context.\n")
	} else {
		writeHistory(&b, spec.history)
		switch {
		case spec.userText != "":
			fmt.Fprintf(&b, "\nUser says: %q\n", spec.userText)
		case spec.brainstorm:
			b.WriteString("\nThe user is listening. Continue the brainstorm: build on, challenge, or riff off the last ideas.\n")
		default:
			b.WriteString("\nContinue the conversation naturally from the last message.\n")
		}
	}

	if s := spec.search; s != nil {
		switch {
		case s.denied:
			fmt.Fprintf(&b, "\nThe user declined the web search for %q. Answer from what you already know.\n", s.request.Query)
		case len(s.results) == 0:
			fmt.Fprintf(&b, "\nThe web search for %q returned nothing. Answer from what you already know.\n", s.request.Query)
		default:
			fmt.Fprintf(&b, "\nWeb search results for %q (requested by %s):\n%s\nUse them and mention sources when helpful.\n",
				s.request.Query, s.request.PersonaName, tools.FormatResults(s.results))
		}
	}

	b.WriteString("\nRespond as one or more of these agents in a group chat style. Keep it short, cute, and playful.\n")
	b.WriteString(replyFormat)
	if spec.allowSearch {
		b.WriteString("\n" + searchFormat)
	}
	return b.String()
}

func buildSummonPrompt(topic string, n int) string {
	return fmt.Sprintf(`Propose %d distinct expert personas who could join a whimsical AI council to discuss: %q.
Each needs a short fun name, a specialty, a category (one of: coder, writer, designer, researcher, news, expert), a hex accent color, a catchphrase, and a detailedPersona paragraph describing how they think and talk.
Respond with JSON only: {"experts": [{"name": "...", "specialty": "...", "category": "expert", "color": "#RRGGBB", "catchphrase": "...", "detailedPersona": "..."}]}`, n, topic)
}

func buildReportPrompt(transcript []Message) string {
	var b strings.Builder
	b.WriteString("Distill the following council discussion into a structured Markdown report.\n")
	b.WriteString("Use a title, short sections with ## headings, call out the most important points as lines starting with \"💡 Key Insight:\", and separate sections with ---.\n")
	b.WriteString("Finish with a section of concrete next steps.\n\nTranscript:\n")
	for _, m := range transcript {
		if m.IsSystem {
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n", m.SenderName, m.Text)
	}
	return b.String()
}

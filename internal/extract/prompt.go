package extract

import (
	"fmt"
	"strings"
)

const eventInstructions = `Extract all dates mentioned in the following document along with relevant information about what happened on those dates.
Format your response as a JSON array of objects, where each object has:
- "date": the date in YYYY-MM-DD format
- "summary": a concise summary of what happened on that date
- "context": the relevant text from the document that mentions this date, quoted verbatim
- "participants": the people or organizations involved (list of strings, optional)
- "location": where it happened (string, optional)

Rules:
- Only include dates that can be resolved to a specific calendar day
- Return an empty array [] if the document mentions no dates

Respond with ONLY the JSON array, no other text.`

// BuildEventPrompt creates the instruction prompt for one piece of document
// text. part and parts describe the chunk position when a document is split.
func BuildEventPrompt(documentName, text string, part, parts int) string {
	var sb strings.Builder
	sb.WriteString(eventInstructions)
	sb.WriteString("\n\n---\n")
	if documentName != "" {
		fmt.Fprintf(&sb, "Document: %q\n", documentName)
	}
	if parts > 1 {
		fmt.Fprintf(&sb, "Part %d of %d\n", part+1, parts)
	}
	sb.WriteString("---\n")
	sb.WriteString("Document text:\n")
	sb.WriteString(text)
	sb.WriteString("\n\nJSON response:\n")
	return sb.String()
}

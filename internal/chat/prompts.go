package chat

import "fmt"

const (
	replyAskKeyword  = "Any keywords to include?"
	replyAskDeadline = "Do you have a deadline?"
	replySearching   = "Searching now..."

	conciseInstruction = "Respond with 10 words or less. Be concise."
)

func extractionPrompt(description string) string {
	return fmt.Sprintf(`Extract keywords and a deadline from this grant description:
"%s"

Respond in JSON with keys: keyword, deadline.
If not available, return null for that field.`, description)
}

// SearchPromptFromDescription is the task handed to the automation when the
// first message already carried every slot.
func SearchPromptFromDescription(siteURL string, s State) string {
	return fmt.Sprintf(`In the database %s find the ID, Link, and Deadline for %s grants
with keywords: %s,
deadline (Format 12-Mar-2026): %s.
Then locate the funding
scroll down to the bottom of the page and select all for the items per page
collect all the data from the grants on the page`, siteURL, s.GrantType, s.Keyword, s.Deadline)
}

// SearchPromptFromAnswers is the task handed to the automation after the
// slots were filled one question at a time.
func SearchPromptFromAnswers(siteURL string, s State) string {
	return fmt.Sprintf(`In the database %s %s grants
with keywords: %s,
deadline (Format 12-Mar-2026): %s.
Click locate funding scroll to the bottom of the page
Change the amount of items per page to all
Scroll back to the top of the page`, siteURL, s.GrantType, s.Keyword, s.Deadline)
}

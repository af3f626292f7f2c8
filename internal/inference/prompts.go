package inference

import "strings"

const visionPrompt = `You are reading a screenshot of a region of the user's screen, usually a chat or terminal.

Transcribe every line of text that is visible in the image and that is NOT already part of the recent text below. Keep each message or line as a separate string, in reading order, exactly as written. Skip window chrome, buttons, and timestamps that carry no content.

Recent text:
---
{{RECENT_TEXT}}
---

Reply with a JSON object of the form {"text": ["line one", "line two"]}. If nothing new is visible, reply {"text": []}.`

const summaryPrompt = `You are the voice of the person at this computer. From the newly captured screen text, write short first-person lines they could say aloud to narrate what they are doing or reading right now.

Rules:
- Speak as "I", in plain conversational sentences that sound natural when spoken.
- One thought per line, at most two sentences each.
- Do not repeat or rephrase anything already said in the previous dialog.
- If nothing new is worth saying, return an empty list.

Previous dialog:
---
{{PREVIOUS_DIALOG}}
---

Newly captured text:
---
{{CAPTURED_TEXT}}
---

Reply with a JSON object of the form {"dialog": ["line one", "line two"]}.`

func renderVisionPrompt(recent []string) string {
	return strings.NewReplacer("{{RECENT_TEXT}}", strings.Join(recent, "\n")).Replace(visionPrompt)
}

func renderSummaryPrompt(captured string, previous []string) string {
	return strings.NewReplacer(
		"{{CAPTURED_TEXT}}", captured,
		"{{PREVIOUS_DIALOG}}", strings.Join(previous, "\n"),
	).Replace(summaryPrompt)
}

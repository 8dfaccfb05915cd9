package classifier

import "fmt"

// SystemPrompt pins the remote model to JSON-only output.
const SystemPrompt = "You are a strict JSON-only classifier. Return only valid JSON with keys analyse_result and analyse_score."

const userPrompt = `Analyse the text below with respect to the keyword and return exactly one of these results:
1) approve = the text is related and positive, supportive or in favour of the subject/keyword (if it is neutral but clearly related, return approve)
2) reject = the text is related but opposing, critical or negative towards the subject/keyword
3) not related = the text is unrelated or only mentions the keyword in passing

Keyword: «%s»
Link: «%s»
Text: «%s»

Score:
- 10 is neutral
- 20 is the strongest endorsement
- 0 is the strongest opposition
- for not related, score 10 unless the text is entirely unrelated (then 9 to 11 is acceptable)

Return plain JSON only, with these keys:
{"analyse_result":"approve|reject|not related","analyse_score":0-20}`

// BuildPrompt renders the user message for one post.
func BuildPrompt(keyword, url, text string) string {
	return fmt.Sprintf(userPrompt, keyword, url, text)
}

package resume

import (
	_ "embed"
	"strings"
)

//go:embed analysis_prompt.md
var promptTemplate string

const (
	promptHead = "Analyze this resume and provide specific improvements:"
	promptTail = "4. Keywords and skills"
)

// BuildPrompt embeds the resume text into the analysis prompt. Text longer than
// maxChars runes is cut.
func BuildPrompt(resumeText string, maxChars int) string {
	if maxChars > 0 {
		if runes := []rune(resumeText); len(runes) > maxChars {
			resumeText = string(runes[:maxChars])
		}
	}

	template := promptTemplate
	if strings.TrimSpace(template) == "" {
		template = promptHead + "\n{{RESUME_TEXT}}\n" + promptTail
	}
	return strings.TrimSpace(strings.ReplaceAll(template, "{{RESUME_TEXT}}", strings.TrimSpace(resumeText)))
}

// cleanOutput removes an echoed prompt from the model output.
func cleanOutput(raw, prompt string) string {
	out := strings.TrimSpace(raw)

	if rest, ok := trimEcho(out, prompt); ok {
		out = rest
	} else if strings.HasPrefix(out, promptHead) {
		if idx := strings.LastIndex(out, promptTail); idx >= 0 {
			out = out[idx+len(promptTail):]
		}
	}

	return strings.TrimSpace(out)
}

// trimEcho strips prompt from the start of out. Runs of whitespace compare
// equal to any other run, including an empty one.
func trimEcho(out, prompt string) (string, bool) {
	i, j := 0, 0
	for j < len(prompt) {
		if isSpace(prompt[j]) {
			for j < len(prompt) && isSpace(prompt[j]) {
				j++
			}
			for i < len(out) && isSpace(out[i]) {
				i++
			}
			continue
		}
		if i >= len(out) || out[i] != prompt[j] {
			return out, false
		}
		i++
		j++
	}
	return out[i:], true
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\n' || b == '\t' || b == '\r'
}

package extraction

import (
	"strings"
)

// ocrPrompt instructs the transcription model. Every provider sends it
// together with the PDF in whatever form that backend accepts.
const ocrPrompt = "You are an OCR engine for credit card statement PDFs.\n\n" +
	"Task:\n" +
	"- Transcribe ALL text of the attached statement, page by page, preserving reading order.\n" +
	"- Keep table rows on single lines with columns separated by \" | \".\n" +
	"- Do not summarize, interpret or omit anything.\n\n" +
	"Output STRICT JSON only, with this exact shape:\n" +
	"{\"pages\": [{\"page\": 1, \"text\": \"...\"}, {\"page\": 2, \"text\": \"...\"}]}\n\n" +
	"Return ONLY raw JSON. Do NOT wrap the response in code fences.\n"

// statementInstructions is the fixed preamble of the statement-parsing
// prompt; the JSON Schema and the OCR payload are appended to it.
const statementInstructions = "You are a financial data extractor for credit card statements.\n\n" +
	"Task:\n" +
	"- The input below is an OCR transcription of a credit card statement, one entry per page.\n" +
	"- Extract the statement identification, billing period, balances, credit limit and ALL transactions.\n" +
	"- Balances may be reported in more than one currency; emit one entry per currency.\n" +
	"- Transaction amounts keep the sign printed on the statement (payments and refunds are negative).\n" +
	"- Installment purchases like \"03/12\" map to {\"current\": 3, \"total\": 12}.\n" +
	"- Use null for any value the statement does not show.\n" +
	"- Dates are ISO format \"YYYY-MM-DD\".\n\n" +
	"Output STRICT JSON only (no comments, no trailing commas, no extra text)\n" +
	"conforming to this JSON Schema:\n"

// BuildStatementPrompt assembles the statement-parsing prompt: fixed
// instructions, the statement JSON Schema, then the OCR pages rendered as
// JSON text.
func BuildStatementPrompt(ocrJSON []byte) string {
	var b strings.Builder
	b.WriteString(statementInstructions)
	b.WriteString("\n")
	b.WriteString(statementSchema)
	b.WriteString("\n\nOCR transcription:\n")
	b.Write(ocrJSON)
	b.WriteString("\n\nReturn ONLY raw JSON. Do NOT use ```json or any Markdown.\n")
	return b.String()
}

// stripFence removes a Markdown code fence wrapper if the model ignored the
// no-fence instruction, and trims any stray text around the JSON body.
func stripFence(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		// Drop the first line (``` or ```json).
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		if idx := strings.LastIndex(s, "```"); idx != -1 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}

	// If there is still junk around the JSON body, keep only the outermost
	// object or array.
	start := strings.IndexAny(s, "{[")
	if start == -1 {
		return s
	}
	var end int
	if s[start] == '{' {
		end = strings.LastIndex(s, "}")
	} else {
		end = strings.LastIndex(s, "]")
	}
	if end > start {
		s = strings.TrimSpace(s[start : end+1])
	}
	return s
}

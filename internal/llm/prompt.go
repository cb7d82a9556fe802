package llm

// retryTemplate is the literal example payload given back to the
// model on a reprompt attempt — an AAPL-shaped stand-in that shows the
// exact JSON keys and types expected, nothing else.
const retryTemplate = `{"tickers":["AAPL"],"sentiment":"neutral","confidence":0.5,"reasoning_summary":"Short reason."}`

// buildPrompt is the attempt-0 prompt: a plain instruction to emit the
// AnalysisResult schema as JSON.
func buildPrompt(inputText string) string {
	return "You are a financial news analyst. " +
		"Analyze the news below and output ONLY valid JSON with keys: " +
		"tickers (list of strings), sentiment (positive|neutral|negative), " +
		"confidence (0..1), reasoning_summary (<=280 chars). " +
		"No markdown, no extra text.\n\n" +
		"NEWS:\n" + inputText + "\n"
}

// buildRetryPrompt is used from attempt 1 onward, after a parse or
// validation failure — it inlines retryTemplate to push a
// misbehaving model toward strict JSON.
func buildRetryPrompt(inputText string) string {
	return "STRICT MODE: Output ONLY JSON matching this exact schema. " +
		"Do not include any extra keys, markdown, or commentary.\n" +
		"TEMPLATE:\n" + retryTemplate + "\n\n" +
		"NEWS:\n" + inputText + "\n"
}

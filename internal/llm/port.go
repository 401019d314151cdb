// Package llm wraps the text-generation port every component above the
// storage layer shares: episode summarization, fact extraction, theme
// naming, and Stage II retrieval decisions all reduce to "send a prompt,
// get text back". The engine depends only on the Client interface; the
// concrete HTTP client below is one implementation of it.
package llm

// Client is the text-completion port. Implementations are free to hit
// Ollama, an OpenAI-compatible endpoint, or anything else that takes a
// prompt and returns generated text.
type Client interface {
	Complete(prompt string) (string, error)
}

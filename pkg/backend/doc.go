// Package backend sends request payloads to reasoning backends and returns
// their raw text answers.
//
// The Dispatcher picks a backend from the model name prefix ("gpt" for
// OpenAI, "gemini" for Google Gemini), constructing clients lazily. Every
// call runs under a timeout, a circuit breaker and a tracing span, and any
// failure is reported as a *domain.UpstreamError. Nothing is retried.
package backend

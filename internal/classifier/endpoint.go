package classifier

import (
	"regexp"
	"strings"

	"social_monitor/internal/model"
)

// Default endpoints used when a provider has no base URL.
const (
	AvalAIOrigin   = "https://api.avalai.ir/v1"
	OpenAIEndpoint = "https://api.openai.com/v1/chat/completions"

	chatCompletionsPath = "/chat/completions"
	avalAIKeyPrefix     = "aa-"
)

var (
	schemeRe          = regexp.MustCompile(`(?i)^https?://`)
	chatCompletionsRe = regexp.MustCompile(`(?i)/chat/completions$`)
	versionSuffixRe   = regexp.MustCompile(`(?i)/v1$`)
)

// NormalizeBaseURL trims the input, drops trailing slashes and adds an
// https scheme when none is given. Empty input stays empty.
func NormalizeBaseURL(raw string) string {
	v := strings.TrimRight(strings.TrimSpace(raw), "/")
	if v == "" {
		return ""
	}
	if !schemeRe.MatchString(v) {
		v = "https://" + v
	}
	return v
}

// ResolveEndpoint derives the chat-completions URL for a provider from
// its base URL. Providers without a base URL go to AvalAI when the type
// or the key prefix says so and to OpenAI otherwise.
func ResolveEndpoint(baseURL string, providerType model.ProviderType, apiKey string) string {
	base := NormalizeBaseURL(baseURL)
	if base == "" {
		if !isAvalAI(providerType, apiKey) {
			return OpenAIEndpoint
		}
		base = AvalAIOrigin
	}

	if chatCompletionsRe.MatchString(base) {
		return base
	}
	if !versionSuffixRe.MatchString(base) {
		base += "/v1"
	}
	return base + chatCompletionsPath
}

// DefaultModel picks a model for providers configured without one.
func DefaultModel(providerType model.ProviderType, apiKey string) string {
	if providerType == model.ProviderDeepSeek && !isAvalAI(providerType, apiKey) {
		return "deepseek-chat"
	}
	return "gpt-4o"
}

func isAvalAI(providerType model.ProviderType, apiKey string) bool {
	if strings.EqualFold(string(providerType), string(model.ProviderAvalAI)) {
		return true
	}
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(apiKey)), avalAIKeyPrefix)
}

// sdkBaseURL turns a resolved endpoint into the base URL the OpenAI SDK
// expects, which appends "chat/completions" itself.
func sdkBaseURL(endpoint string) string {
	return endpoint[:len(endpoint)-len(chatCompletionsPath)] + "/"
}

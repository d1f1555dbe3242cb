// Provider registry: default base URLs and API-key env vars for the
// OpenAI-compatible endpoints nanogate recognizes by model name, used only
// when the operator sets backend.model but leaves base_url/api_key blank.
package backend

import "strings"

// ProviderSpec holds the defaults inferred for a model name.
type ProviderSpec struct {
	Name           string   // config field name, e.g. "deepseek"
	Keywords       []string // model-name keywords for matching (lowercase)
	EnvKey         string   // env var to fall back to for the API key
	DisplayName    string   // shown in status output
	DefaultAPIBase string   // fallback base URL
}

// Label returns a display label.
func (s *ProviderSpec) Label() string {
	if s.DisplayName != "" {
		return s.DisplayName
	}
	return strings.Title(s.Name) //nolint:staticcheck
}

// Providers is the registry, most specific keyword match first.
var Providers = []*ProviderSpec{
	{
		Name: "deepseek", Keywords: []string{"deepseek"},
		EnvKey: "DEEPSEEK_API_KEY", DisplayName: "DeepSeek",
		DefaultAPIBase: "https://api.deepseek.com/v1",
	},
	{
		Name: "openai", Keywords: []string{"gpt", "openai"},
		EnvKey: "OPENAI_API_KEY", DisplayName: "OpenAI",
		DefaultAPIBase: "https://api.openai.com/v1",
	},
}

// FindByModel returns the provider spec matching a model name keyword.
func FindByModel(model string) *ProviderSpec {
	lower := strings.ToLower(model)
	for _, spec := range Providers {
		for _, kw := range spec.Keywords {
			if strings.Contains(lower, kw) {
				return spec
			}
		}
	}
	return nil
}

// FindByName finds a provider spec by config field name.
func FindByName(name string) *ProviderSpec {
	for _, spec := range Providers {
		if spec.Name == name {
			return spec
		}
	}
	return nil
}

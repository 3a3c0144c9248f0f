package main

import (
	"log"
	"os"
	"strings"

	"github.com/ferro-labs/agentrouter/providers"
)

// registerEnvProviders auto-registers every provider for which an API key
// (or, for Ollama, a host) is present in the environment, the same
// table-driven convention cmd/ferrogw/main.go uses.
func registerEnvProviders(reg *providers.Registry) {
	type providerEntry struct {
		envKey string
		name   string
		create func(key, baseURL string) (providers.Provider, error)
	}
	entries := []providerEntry{
		{"OPENAI_API_KEY", "openai", func(k, b string) (providers.Provider, error) { return providers.NewOpenAI(k, b) }},
		{"ANTHROPIC_API_KEY", "anthropic", func(k, b string) (providers.Provider, error) { return providers.NewAnthropic(k, b) }},
		{"GROQ_API_KEY", "groq", func(k, b string) (providers.Provider, error) { return providers.NewGroq(k, b) }},
		{"TOGETHER_API_KEY", "together", func(k, b string) (providers.Provider, error) { return providers.NewTogether(k, b) }},
		{"GEMINI_API_KEY", "gemini", func(k, b string) (providers.Provider, error) { return providers.NewGemini(k, b) }},
		{"MISTRAL_API_KEY", "mistral", func(k, b string) (providers.Provider, error) { return providers.NewMistral(k, b) }},
		{"COHERE_API_KEY", "cohere", func(k, b string) (providers.Provider, error) { return providers.NewCohere(k, b) }},
		{"DEEPSEEK_API_KEY", "deepseek", func(k, b string) (providers.Provider, error) { return providers.NewDeepSeek(k, b) }},
		{"FIREWORKS_API_KEY", "fireworks", func(k, b string) (providers.Provider, error) { return providers.NewFireworks(k, b) }},
		{"PERPLEXITY_API_KEY", "perplexity", func(k, b string) (providers.Provider, error) { return providers.NewPerplexity(k, b) }},
	}
	for _, e := range entries {
		key := os.Getenv(e.envKey)
		if key == "" {
			continue
		}
		p, err := e.create(key, "")
		if err != nil {
			log.Fatalf("%s provider: %v", e.name, err)
		}
		reg.Register(p)
		log.Printf("provider registered: %s", e.name)
	}

	if ollamaURL := os.Getenv("OLLAMA_HOST"); ollamaURL != "" {
		var models []string
		if m := os.Getenv("OLLAMA_MODELS"); m != "" {
			models = strings.Split(m, ",")
		}
		p, err := providers.NewOllama(ollamaURL, models)
		if err != nil {
			log.Fatalf("ollama provider: %v", err)
		}
		reg.Register(p)
		log.Printf("provider registered: ollama (models: %s)", strings.Join(p.SupportedModels(), ", "))
	}

	if key := os.Getenv("AWS_REGION"); key != "" && os.Getenv("AGENTROUTERD_ENABLE_BEDROCK") != "" {
		p, err := providers.NewBedrock(key)
		if err != nil {
			log.Fatalf("bedrock provider: %v", err)
		}
		reg.Register(p)
		log.Println("provider registered: bedrock")
	}
}

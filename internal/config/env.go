package config

import "strings"

// Environment variables understood by the deployed functions.
const (
	EnvOpenAIKey        = "OPENAI_API_KEY"
	EnvOpenAIBaseURL    = "OPENAI_BASE_URL"
	EnvOpenAIEmbedModel = "OPENAI_EMBED_MODEL"
	EnvOpenAIChatModel  = "OPENAI_CHAT_MODEL"
	EnvPineconeKey      = "PINECONE_API_KEY"
	EnvPineconeHost     = "PINECONE_HOST"
	EnvPineconeIndex    = "PINECONE_INDEX"
	EnvAddress          = "RAGQA_ADDRESS"
	EnvVectorStore      = "RAGQA_VECTOR_STORE"
	EnvLogLevel         = "RAGQA_LOG_LEVEL"
)

func applyEnv(cfg *AppConfig, lookup func(string) (string, bool)) {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}
	if v, ok := get(EnvAddress); ok {
		cfg.Server.Address = v
	}
	if v, ok := get(EnvLogLevel); ok {
		cfg.Log.Level = v
	}
	if v, ok := get(EnvVectorStore); ok {
		cfg.VectorStore.Type = v
	}
	if cfg.Embedder.Type == "openai" {
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &OpenAIConfig{}
		}
		if v, ok := get(EnvOpenAIEmbedModel); ok {
			cfg.Embedder.OpenAI.Model = v
		}
		if v, ok := get(EnvOpenAIBaseURL); ok {
			cfg.Embedder.OpenAI.BaseURL = v
		}
	}
	if cfg.Completer.Type == "openai" {
		if cfg.Completer.OpenAI == nil {
			cfg.Completer.OpenAI = &OpenAIConfig{}
		}
		if v, ok := get(EnvOpenAIChatModel); ok {
			cfg.Completer.OpenAI.Model = v
		}
		if v, ok := get(EnvOpenAIBaseURL); ok {
			cfg.Completer.OpenAI.BaseURL = v
		}
	}
	_, hasKey := get(EnvPineconeKey)
	_, hasHost := get(EnvPineconeHost)
	if cfg.VectorStore.Type == "pinecone" || hasKey || hasHost {
		if cfg.VectorStore.Pinecone == nil {
			cfg.VectorStore.Pinecone = &PineconeConfig{}
		}
		p := cfg.VectorStore.Pinecone
		if v, ok := get(EnvPineconeKey); ok {
			p.APIKey = v
		}
		if v, ok := get(EnvPineconeHost); ok {
			p.Host = v
		}
		if v, ok := get(EnvPineconeIndex); ok {
			p.Index = v
		}
	}
}

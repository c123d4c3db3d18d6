// Package envconv rewrites a legacy {"Parameters": {...}} env file into the
// per-function env-vars mapping used for local function runs.
package envconv

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/tidwall/gjson"
)

type Result int

const (
	ResultConverted Result = iota
	ResultUnchanged
)

func (r Result) String() string {
	if r == ResultUnchanged {
		return "unchanged"
	}
	return "converted"
}

const (
	DefaultEmbedModel    = "text-embedding-3-small"
	DefaultChatModel     = "gpt-5-mini"
	DefaultPineconeIndex = "diverse-programmers"
)

var (
	ErrInvalidJSON  = errors.New("env file is not valid JSON")
	ErrUnknownShape = errors.New("env file is not a recognized format. " +
		"Expected either {Parameters:{...}} or {AskFunction:{...}, IngestFunction:{...}}")
)

// functionEnv keeps the variable order stable in the output.
type functionEnv struct {
	OpenAIAPIKey     json.RawMessage `json:"OPENAI_API_KEY"`
	OpenAIEmbedModel json.RawMessage `json:"OPENAI_EMBED_MODEL"`
	OpenAIChatModel  json.RawMessage `json:"OPENAI_CHAT_MODEL"`
	PineconeAPIKey   json.RawMessage `json:"PINECONE_API_KEY"`
	PineconeHost     json.RawMessage `json:"PINECONE_HOST"`
	PineconeIndex    json.RawMessage `json:"PINECONE_INDEX"`
}

type envMapping struct {
	AskFunction          functionEnv `json:"AskFunction"`
	IngestFunction       functionEnv `json:"IngestFunction"`
	AskFunctionPython    functionEnv `json:"AskFunctionPython"`
	IngestFunctionPython functionEnv `json:"IngestFunctionPython"`
}

// Convert returns the converted document. Input that already has the
// mapping shape is returned as is with ResultUnchanged.
func Convert(raw []byte) ([]byte, Result, error) {
	if !gjson.ValidBytes(raw) {
		return nil, 0, ErrInvalidJSON
	}
	doc := gjson.ParseBytes(raw)
	if params := doc.Get("Parameters"); doc.IsObject() && (params.IsObject() || params.IsArray()) {
		env := functionEnv{
			OpenAIAPIKey:     valueOr(params, "OPENAI_API_KEY", ""),
			OpenAIEmbedModel: valueOr(params, "OPENAI_EMBED_MODEL", DefaultEmbedModel),
			OpenAIChatModel:  valueOr(params, "OPENAI_CHAT_MODEL", DefaultChatModel),
			PineconeAPIKey:   valueOr(params, "PINECONE_API_KEY", ""),
			PineconeHost:     valueOr(params, "PINECONE_HOST", ""),
			PineconeIndex:    valueOr(params, "PINECONE_INDEX", DefaultPineconeIndex),
		}
		var out bytes.Buffer
		enc := json.NewEncoder(&out)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		if err := enc.Encode(envMapping{
			AskFunction:          env,
			IngestFunction:       env,
			AskFunctionPython:    env,
			IngestFunctionPython: env,
		}); err != nil {
			return nil, 0, err
		}
		return out.Bytes(), ResultConverted, nil
	}
	if doc.IsObject() && (truthy(doc.Get("AskFunction")) || truthy(doc.Get("IngestFunction"))) {
		return raw, ResultUnchanged, nil
	}
	return nil, 0, ErrUnknownShape
}

// ConvertFile converts path in place. Unchanged files are not rewritten.
func ConvertFile(path string) (Result, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	out, res, err := Convert(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}
	if res == ResultUnchanged || bytes.Equal(out, raw) {
		return ResultUnchanged, nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	if err := os.WriteFile(path, out, info.Mode().Perm()); err != nil {
		return 0, err
	}
	return res, nil
}

// valueOr keeps a present non-null value as written, otherwise def.
func valueOr(params gjson.Result, key, def string) json.RawMessage {
	if v := params.Get(key); v.Exists() && v.Type != gjson.Null {
		return json.RawMessage(v.Raw)
	}
	b, _ := json.Marshal(def)
	return b
}

func truthy(v gjson.Result) bool {
	switch v.Type {
	case gjson.Null:
		return false
	case gjson.False:
		return false
	case gjson.Number:
		return v.Num != 0
	case gjson.String:
		return v.Str != ""
	default:
		return v.Exists()
	}
}

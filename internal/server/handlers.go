package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/tidwall/gjson"

	"ragqa/internal/domain"
	"ragqa/internal/logger"
)

var (
	ErrMissingBody       = domain.Invalid("Missing request body")
	ErrBodyTooLarge      = domain.Invalid("Request body too large")
	ErrDocumentsRequired = domain.Invalid("documents is required",
		domain.FieldError{Field: "documents", Rule: "required"})
)

type errorResponse struct {
	Error string `json:"error"`
}

type ingestRequest struct {
	Documents []domain.CandidateDocument `validate:"required,min=1"`
}

type handlers struct {
	rag      RAG
	validate *validator.Validate
}

func writeJSON(c *gin.Context, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		data = []byte(`{"error":"Internal Server Error"}`)
	}
	c.Data(status, "application/json", data)
}

// writeError answers every failure with 400 and the user facing message.
func writeError(c *gin.Context, err error) {
	log := logger.FromContext(c.Request.Context())
	if errors.Is(err, domain.ErrInvalidArgument) {
		log.Warn("request rejected", "error", err)
	} else {
		log.Error("request failed", "error", err)
	}
	_ = c.Error(err)
	writeJSON(c, http.StatusBadRequest, errorResponse{Error: domain.Describe(err)})
}

// readJSON returns the request body after checking it is present and well
// formed. A literal null counts as a missing body.
func readJSON(c *gin.Context) ([]byte, error) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, ErrBodyTooLarge
		}
		return nil, err
	}
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, ErrMissingBody
	}
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, domain.Invalid(err.Error())
	}
	return body, nil
}

func (h *handlers) ingest(c *gin.Context) {
	body, err := readJSON(c)
	if err != nil {
		writeError(c, err)
		return
	}
	docs := gjson.GetBytes(body, "documents")
	if !docs.IsArray() {
		writeError(c, ErrDocumentsRequired)
		return
	}
	var req ingestRequest
	for _, entry := range docs.Array() {
		var cand domain.CandidateDocument
		if entry.IsObject() {
			// a malformed entry stays zero valued and is skipped by the service
			_ = json.Unmarshal([]byte(entry.Raw), &cand)
		}
		req.Documents = append(req.Documents, cand)
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(c, ErrDocumentsRequired)
		return
	}
	resp, err := h.rag.Ingest(c.Request.Context(), req.Documents)
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, resp)
}

func (h *handlers) ask(c *gin.Context) {
	body, err := readJSON(c)
	if err != nil {
		writeError(c, err)
		return
	}
	var question string
	if q := gjson.GetBytes(body, "question"); q.Type == gjson.String {
		question = q.String()
	}
	resp, err := h.rag.Ask(c.Request.Context(), question, parseTopK(gjson.GetBytes(body, "topK")))
	if err != nil {
		writeError(c, err)
		return
	}
	if resp.Sources == nil {
		resp.Sources = []domain.Source{}
	}
	writeJSON(c, http.StatusOK, resp)
}

// parseTopK coerces topK like an integer conversion would: numbers are
// truncated, integer strings parsed, booleans become 1 or 0. Anything else
// returns nil so the service default applies.
func parseTopK(v gjson.Result) *int {
	var f float64
	switch v.Type {
	case gjson.Number:
		f = math.Trunc(v.Num)
	case gjson.True:
		f = 1
	case gjson.False:
		f = 0
	case gjson.String:
		n, err := strconv.ParseInt(strings.TrimSpace(v.Str), 10, 64)
		if err != nil && !errors.Is(err, strconv.ErrRange) {
			return nil
		}
		f = float64(n)
	default:
		return nil
	}
	n := int(max(math.MinInt32, min(f, math.MaxInt32)))
	return &n
}

func healthz(c *gin.Context) {
	writeJSON(c, http.StatusOK, gin.H{"status": "ok"})
}

func notFound(c *gin.Context) {
	writeJSON(c, http.StatusNotFound, errorResponse{Error: "Not Found"})
}

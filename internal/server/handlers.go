package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/vanshika/cypherguard/internal/chain"
	"github.com/vanshika/cypherguard/internal/cypher"
	"github.com/vanshika/cypherguard/internal/schema"
	"github.com/vanshika/cypherguard/internal/service"
)

const maxBodyBytes = 1 << 20

// QuestionAnswerer answers natural language questions over the graph.
type QuestionAnswerer interface {
	Run(ctx context.Context, question string) (chain.Answer, error)
}

// APIHandlers exposes HTTP handlers for the REST API.
type APIHandlers struct {
	logger     *slog.Logger
	corrector  *cypher.Corrector
	batch      *service.BatchCorrector
	schema     schema.Structured
	schemaText string
	qa         QuestionAnswerer
	maxBatch   int
	validate   *validator.Validate
}

// HandlerDependencies collects what the API handlers need. QA may be nil, in
// which case POST /qa answers 503.
type HandlerDependencies struct {
	Corrector    *cypher.Corrector
	Batch        *service.BatchCorrector
	Schema       schema.Structured
	SchemaText   string
	QA           QuestionAnswerer
	MaxBatchSize int
}

// NewAPIHandlers constructs an APIHandlers instance.
func NewAPIHandlers(logger *slog.Logger, deps HandlerDependencies) *APIHandlers {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	batch := deps.Batch
	if batch == nil {
		batch = service.NewBatchCorrector(deps.Corrector, 0)
	}

	return &APIHandlers{
		logger:     logger,
		corrector:  deps.Corrector,
		batch:      batch,
		schema:     deps.Schema,
		schemaText: deps.SchemaText,
		qa:         deps.QA,
		maxBatch:   deps.MaxBatchSize,
		validate:   validate,
	}
}

func (h *APIHandlers) handleCorrect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var payload correctRequest
	if !h.decodeAndValidate(w, r, &payload) {
		return
	}

	res, err := h.corrector.Correct(r.Context(), payload.Query)
	if err != nil {
		h.writeCorrectionError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newCorrectResponse(payload.Query, res))
}

func (h *APIHandlers) handleCorrectBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var payload batchRequest
	if !h.decodeAndValidate(w, r, &payload) {
		return
	}
	if h.maxBatch > 0 && len(payload.Queries) > h.maxBatch {
		writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("at most %d queries per batch", h.maxBatch))
		return
	}

	items, err := h.batch.Correct(r.Context(), payload.Queries)
	if err != nil {
		h.logger.Warn("batch correction aborted", "error", err, "request_id", requestID(r.Context()))
		writeError(w, http.StatusServiceUnavailable, "batch correction aborted")
		return
	}

	resp := batchResponse{Results: make([]batchItem, 0, len(items))}
	for _, item := range items {
		if item.Err != nil {
			resp.Rejected++
			resp.Results = append(resp.Results, batchItem{
				Query: item.Input,
				Error: newErrorResponse(item.Err),
			})
			continue
		}
		out := newCorrectResponse(item.Input, item.Result)
		resp.Results = append(resp.Results, batchItem{Query: item.Input, Result: &out})
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *APIHandlers) handleSchema(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	respondJSON(w, http.StatusOK, schemaResponse{
		Text:       h.schemaText,
		Structured: h.schema,
	})
}

func (h *APIHandlers) handleQA(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	if h.qa == nil {
		writeError(w, http.StatusServiceUnavailable, "question answering is not configured")
		return
	}

	var payload qaRequest
	if !h.decodeAndValidate(w, r, &payload) {
		return
	}

	answer, err := h.qa.Run(r.Context(), payload.Question)
	if err != nil {
		h.logger.Error("question answering failed", "error", err, "request_id", requestID(r.Context()))
		writeError(w, http.StatusBadGateway, "failed to answer question")
		return
	}
	respondJSON(w, http.StatusOK, answer)
}

func (h *APIHandlers) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := decodeJSON(r, dst); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

func (h *APIHandlers) writeCorrectionError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		writeError(w, http.StatusServiceUnavailable, "request cancelled")
		return
	}
	h.logger.Debug("query rejected", "error", err, "request_id", requestID(r.Context()))
	respondJSON(w, http.StatusUnprocessableEntity, newErrorResponse(err))
}

// --- Request & Response DTOs ---

type correctRequest struct {
	Query string `json:"query" validate:"required"`
}

type batchRequest struct {
	Queries []string `json:"queries" validate:"required,min=1,dive,required"`
}

type qaRequest struct {
	Question string `json:"question" validate:"required,max=4096"`
}

type correctResponse struct {
	Query      string `json:"query"`
	Corrected  string `json:"corrected"`
	Changed    bool   `json:"changed"`
	Flipped    int    `json:"flipped"`
	Relabelled int    `json:"relabelled"`
}

func newCorrectResponse(input string, res cypher.Result) correctResponse {
	return correctResponse{
		Query:      input,
		Corrected:  res.Query,
		Changed:    res.Changed(),
		Flipped:    res.Flipped,
		Relabelled: res.Relabelled,
	}
}

type errorResponse struct {
	Error   string `json:"error"`
	Kind    string `json:"kind"`
	Element string `json:"element,omitempty"`
}

func newErrorResponse(err error) *errorResponse {
	resp := &errorResponse{Error: err.Error(), Kind: cypher.KindName(err)}
	var rej *cypher.Rejection
	if errors.As(err, &rej) {
		resp.Element = rej.Element
	}
	return resp
}

type batchItem struct {
	Query  string           `json:"query"`
	Result *correctResponse `json:"result,omitempty"`
	Error  *errorResponse   `json:"error,omitempty"`
}

type batchResponse struct {
	Results  []batchItem `json:"results"`
	Rejected int         `json:"rejected"`
}

type schemaResponse struct {
	Text       string            `json:"text"`
	Structured schema.Structured `json:"structured"`
}

func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return errors.New("request body is required")
	}
	defer r.Body.Close()

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return err
	}
	return nil
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		field := e.Namespace()
		if i := strings.IndexByte(field, '.'); i >= 0 {
			field = field[i+1:]
		}
		if e.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", field, e.Tag(), e.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s failed %s", field, e.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}

func writeError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{
		"error": msg,
	})
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

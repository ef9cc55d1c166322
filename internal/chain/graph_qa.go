package chain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/prompts"

	"github.com/vanshika/cypherguard/internal/cypher"
	"github.com/vanshika/cypherguard/internal/graph"
	"github.com/vanshika/cypherguard/internal/schema"
)

const (
	defaultTopK     = 10
	informationTool = "GetInformation"
)

var (
	// ErrDangerousRequests is returned unless the caller acknowledges that
	// generated queries run with the graph client's permissions.
	ErrDangerousRequests = errors.New("the chain can issue arbitrary generated queries; set AllowDangerousRequests to acknowledge this and narrowly scope the database credentials")
	ErrNoLLM             = errors.New("at least one LLM must be provided")
	ErrTooManyLLMs       = errors.New("specify up to two of LLM, CypherLLM and QALLM, not all three")
	ErrMissingLLM        = errors.New("without LLM both CypherLLM and QALLM must be provided")
	ErrMissingGraph      = errors.New("graph client is required")
	ErrEmptyResponse     = errors.New("model returned no choices")
)

// RejectionPolicy decides what happens when the corrector rejects a
// generated query.
type RejectionPolicy int

const (
	// RejectSkip drops the query and answers from an empty context.
	RejectSkip RejectionPolicy = iota
	// RejectPassthrough runs the uncorrected query and logs a warning.
	RejectPassthrough
)

// Options configures a GraphCypherQA chain.
type Options struct {
	Graph  graph.Client
	Schema schema.Structured

	// LLM fills in whichever of CypherLLM and QALLM is unset.
	LLM       llms.Model
	CypherLLM llms.Model
	QALLM     llms.Model

	CypherPrompt *prompts.PromptTemplate
	QAPrompt     *prompts.PromptTemplate

	IncludeTypes []string
	ExcludeTypes []string

	ValidateCypher bool
	OnRejection    RejectionPolicy
	Recorder       cypher.Recorder

	TopK                    int
	ReturnDirect            bool
	ReturnIntermediateSteps bool
	AllowDangerousRequests  bool

	// Sanitize drops oversized lists, such as embeddings, from query
	// results before they reach the answer prompt or the caller.
	Sanitize bool

	// UseFunctionResponse hands the query results to QALLM as the response
	// to a tool call instead of embedding them in QAPrompt. The model must
	// accept tool messages.
	UseFunctionResponse bool
	// FunctionResponseSystem overrides the system message sent in function
	// response mode.
	FunctionResponseSystem string

	Logger *slog.Logger
}

// Step is one intermediate stage of a chain run.
type Step struct {
	Query   *string          `json:"query,omitempty"`
	Context []map[string]any `json:"context,omitempty"`
}

// Answer is the output of a chain run. Rows is set instead of Result when
// the chain returns query results directly.
type Answer struct {
	Result string           `json:"result,omitempty"`
	Rows   []map[string]any `json:"rows,omitempty"`
	Steps  []Step           `json:"intermediate_steps,omitempty"`
}

// GraphCypherQA answers questions by generating Cypher, correcting it
// against the graph schema and summarising the query results.
type GraphCypherQA struct {
	graph        graph.Client
	cypherLLM    llms.Model
	qaLLM        llms.Model
	cypherPrompt prompts.PromptTemplate
	qaPrompt     prompts.PromptTemplate
	graphSchema  string
	corrector    *cypher.Corrector
	policy       RejectionPolicy
	topK         int
	returnDirect bool
	returnSteps  bool
	sanitize     bool
	useFunction  bool
	systemPrompt string
	logger       *slog.Logger
}

// New validates opts and builds the chain.
func New(opts Options) (*GraphCypherQA, error) {
	if !opts.AllowDangerousRequests {
		return nil, ErrDangerousRequests
	}
	if opts.Graph == nil {
		return nil, ErrMissingGraph
	}

	cypherLLM, qaLLM := opts.CypherLLM, opts.QALLM
	switch {
	case opts.LLM == nil && cypherLLM == nil && qaLLM == nil:
		return nil, ErrNoLLM
	case opts.LLM != nil && cypherLLM != nil && qaLLM != nil:
		return nil, ErrTooManyLLMs
	case opts.LLM != nil:
		if cypherLLM == nil {
			cypherLLM = opts.LLM
		}
		if qaLLM == nil {
			qaLLM = opts.LLM
		}
	case cypherLLM == nil || qaLLM == nil:
		return nil, ErrMissingLLM
	}

	graphSchema, err := schema.Format(opts.Schema, opts.IncludeTypes, opts.ExcludeTypes)
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	c := &GraphCypherQA{
		graph:        opts.Graph,
		cypherLLM:    cypherLLM,
		qaLLM:        qaLLM,
		cypherPrompt: DefaultCypherPrompt(),
		qaPrompt:     DefaultQAPrompt(),
		graphSchema:  graphSchema,
		policy:       opts.OnRejection,
		topK:         opts.TopK,
		returnDirect: opts.ReturnDirect,
		returnSteps:  opts.ReturnIntermediateSteps,
		sanitize:     opts.Sanitize,
		useFunction:  opts.UseFunctionResponse,
		systemPrompt: opts.FunctionResponseSystem,
		logger:       logger.With("component", "graph_qa"),
	}
	if c.systemPrompt == "" {
		c.systemPrompt = DefaultFunctionResponseSystem
	}
	if opts.CypherPrompt != nil {
		c.cypherPrompt = *opts.CypherPrompt
	}
	if opts.QAPrompt != nil {
		c.qaPrompt = *opts.QAPrompt
	}
	if c.topK <= 0 {
		c.topK = defaultTopK
	}
	if opts.ValidateCypher {
		c.corrector = cypher.NewCorrector(opts.Schema.Corrector(),
			cypher.WithLogger(c.logger),
			cypher.WithRecorder(opts.Recorder),
		)
	}
	return c, nil
}

// GraphSchema returns the schema text embedded in generation prompts.
func (c *GraphCypherQA) GraphSchema() string {
	return c.graphSchema
}

// Run answers question against the graph.
func (c *GraphCypherQA) Run(ctx context.Context, question string) (Answer, error) {
	prompt, err := c.cypherPrompt.Format(map[string]any{
		"schema":   c.graphSchema,
		"question": question,
	})
	if err != nil {
		return Answer{}, fmt.Errorf("format cypher prompt: %w", err)
	}
	generated, err := llms.GenerateFromSinglePrompt(ctx, c.cypherLLM, prompt, llms.WithTemperature(0))
	if err != nil {
		return Answer{}, fmt.Errorf("generate cypher: %w", err)
	}

	query, err := c.correct(ctx, cypher.ExtractCypher(generated))
	if err != nil {
		return Answer{}, err
	}
	c.logger.Debug("generated cypher", "query", query)

	steps := []Step{{Query: &query}}

	rows := []map[string]any{}
	if query != "" {
		res, err := c.graph.ExecuteRead(ctx, query, nil)
		if err != nil {
			return Answer{}, fmt.Errorf("execute generated cypher: %w", err)
		}
		rows = res.Rows(c.topK)
		if c.sanitize {
			rows = graph.SanitizeRows(rows)
		}
	}

	var answer Answer
	if c.returnDirect {
		answer.Rows = rows
	} else {
		steps = append(steps, Step{Context: rows})
		encoded, err := json.Marshal(rows)
		if err != nil {
			return Answer{}, fmt.Errorf("encode context: %w", err)
		}
		answer.Result, err = c.answer(ctx, question, string(encoded))
		if err != nil {
			return Answer{}, fmt.Errorf("generate answer: %w", err)
		}
	}
	if c.returnSteps {
		answer.Steps = steps
	}
	return answer, nil
}

func (c *GraphCypherQA) answer(ctx context.Context, question, results string) (string, error) {
	if c.useFunction {
		resp, err := c.qaLLM.GenerateContent(ctx, functionResponseMessages(c.systemPrompt, question, results))
		if err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			return "", ErrEmptyResponse
		}
		return resp.Choices[0].Content, nil
	}
	prompt, err := c.qaPrompt.Format(map[string]any{
		"context":  results,
		"question": question,
	})
	if err != nil {
		return "", fmt.Errorf("format qa prompt: %w", err)
	}
	return llms.GenerateFromSinglePrompt(ctx, c.qaLLM, prompt)
}

// functionResponseMessages frames the query results as the reply to a
// GetInformation tool call the model supposedly made for the question.
func functionResponseMessages(system, question, results string) []llms.MessageContent {
	args, _ := json.Marshal(map[string]string{"question": question})
	callID := "call_" + uuid.NewString()
	return []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, question),
		{
			Role: llms.ChatMessageTypeAI,
			Parts: []llms.ContentPart{llms.ToolCall{
				ID:   callID,
				Type: "function",
				FunctionCall: &llms.FunctionCall{
					Name:      informationTool,
					Arguments: string(args),
				},
			}},
		},
		{
			Role: llms.ChatMessageTypeTool,
			Parts: []llms.ContentPart{llms.ToolCallResponse{
				ToolCallID: callID,
				Name:       informationTool,
				Content:    results,
			}},
		},
	}
}

// correct applies the rejection policy. An empty query means "do not run".
func (c *GraphCypherQA) correct(ctx context.Context, query string) (string, error) {
	if c.corrector == nil {
		return query, nil
	}
	res, err := c.corrector.Correct(ctx, query)
	if err == nil {
		return res.Query, nil
	}
	var rej *cypher.Rejection
	if !errors.As(err, &rej) {
		return "", err
	}
	if c.policy == RejectPassthrough {
		c.logger.Warn("running uncorrected cypher", "reason", rej.Error(), "query", query)
		return query, nil
	}
	c.logger.Warn("discarding generated cypher", "reason", rej.Error(), "query", query)
	return "", nil
}

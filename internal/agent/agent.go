package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/qmuntal/stateless"

	"github.com/comigor/nl2sql-go/internal/config"
	"github.com/comigor/nl2sql-go/internal/conversation"
	"github.com/comigor/nl2sql-go/internal/database"
	"github.com/comigor/nl2sql-go/internal/llm"
	"github.com/comigor/nl2sql-go/internal/logger"
	"github.com/comigor/nl2sql-go/pkg/tools"
)

// FSM States
type FSMState string

const (
	StateIdle             FSMState = "Idle"
	StateListTables       FSMState = "ListTables"
	StateGetSchemaRequest FSMState = "GetSchemaRequest"
	StateGetSchemaResult  FSMState = "GetSchemaResult"
	StateGenerateQuery    FSMState = "GenerateQuery"
	StateCheckQuery       FSMState = "CheckQuery"
	StateRunQuery         FSMState = "RunQuery"
	StateDone             FSMState = "Done"      // Terminal: answer or review failure
	StateExhausted        FSMState = "Exhausted" // Terminal: step budget spent
	StateFailed           FSMState = "Failed"    // Terminal: database unreachable
)

// FSM Triggers
type FSMTrigger string

const (
	TriggerStart           FSMTrigger = "Start"
	TriggerTablesListed    FSMTrigger = "TablesListed"
	TriggerSchemaRequested FSMTrigger = "SchemaRequested"
	TriggerSchemaReady     FSMTrigger = "SchemaReady"
	TriggerQueryProposed   FSMTrigger = "QueryProposed"
	TriggerAnswered        FSMTrigger = "Answered"
	TriggerQueryChecked    FSMTrigger = "QueryChecked"
	TriggerCheckFailed     FSMTrigger = "CheckFailed"
	TriggerQueryExecuted   FSMTrigger = "QueryExecuted"
	TriggerBudgetExceeded  FSMTrigger = "BudgetExceeded"
	TriggerFailed          FSMTrigger = "Failed"
)

// terminalTriggers lead to a terminal state and never count against the
// step budget.
var terminalTriggers = map[FSMTrigger]bool{
	TriggerAnswered:       true,
	TriggerCheckFailed:    true,
	TriggerBudgetExceeded: true,
	TriggerFailed:         true,
}

// Outcome classifies how a session ended.
type Outcome string

const (
	OutcomeAnswered  Outcome = "answered"
	OutcomeDegraded  Outcome = "degraded"
	OutcomeFailed    Outcome = "failed"
	OutcomeExhausted Outcome = "exhausted"
)

// FailureNotice is the answer given when no usable answer was produced.
const FailureNotice = "I couldn't generate an answer for your question. Please try rephrasing your question."

var (
	ErrEmptyQuestion      = errors.New("please enter a question")
	ErrStepBudgetExceeded = errors.New("step budget exceeded")
	ErrGeneration         = errors.New("generation failed")
	ErrReviewFailed       = errors.New("query review failed")
)

func generationError(err error) error {
	if errors.Is(err, ErrGeneration) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrGeneration, err)
}

// Step records one state visit and the messages it appended.
type Step struct {
	State    FSMState
	Appended []conversation.Message
}

// Result is the outcome of one question.
type Result struct {
	SessionID    string
	Tools        []string // registered for the session, by name
	Answer       string
	Outcome      Outcome
	Steps        []Step
	Conversation conversation.Conversation
	// Err is set for exhausted and failed sessions.
	Err error
}

// Agent answers questions about one database by driving a fixed workflow:
// list tables, request schema, read schema, then alternate between drafting,
// reviewing and running queries until the model answers in prose.
type Agent struct {
	catalog  *database.Catalog
	executor *database.Executor
	drafter  *Drafter
	reviewer *Reviewer
	cfg      config.AgentConfig
}

// Option customizes an Agent.
type Option func(*Agent)

// WithGenerationTimeout bounds every model call.
func WithGenerationTimeout(d time.Duration) Option {
	return func(a *Agent) {
		a.drafter.timeout = d
		a.reviewer.timeout = d
	}
}

// New creates an agent over db using gen for drafting and reviewing.
func New(gen llm.Generator, db database.DB, cfg config.AgentConfig, opts ...Option) *Agent {
	catalog := database.NewCatalog(db, cfg.SampleRows)
	a := &Agent{
		catalog:  catalog,
		executor: database.NewExecutor(db),
		cfg:      cfg,
		drafter: &Drafter{
			gen:            gen,
			catalog:        catalog,
			rowLimit:       cfg.RowLimit,
			fallbackTables: cfg.FallbackTables,
		},
		reviewer: &Reviewer{gen: gen, dialect: catalog.Dialect()},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// session holds the state of one question while the machine runs.
type session struct {
	id           string
	conv         conversation.Conversation
	tools        *tools.ToolManager
	steps        []Step
	maxSteps     int
	degraded     bool
	reviewFailed bool
	err          error
	log          *slog.Logger
}

func (s *session) enter(state FSMState) {
	s.steps = append(s.steps, Step{State: state})
	s.log.Debug("FSM: entering state", "state", state, "step", len(s.steps))
}

func (s *session) append(msgs ...conversation.Message) {
	s.conv = s.conv.Append(msgs...)
	last := &s.steps[len(s.steps)-1]
	last.Appended = append(last.Appended, msgs...)
}

func (s *session) last() conversation.Message {
	m, _ := s.conv.Last()
	return m
}

func (s *session) definition(name string) tools.Definition {
	defs, err := s.tools.Definitions(name)
	if err != nil || len(defs) == 0 {
		return tools.Definition{Name: name}
	}
	return defs[0]
}

// runTool executes call if it names one of the allowed tools.
func (s *session) runTool(ctx context.Context, call conversation.ToolCall, allowed ...string) (string, error) {
	permitted := false
	for _, name := range allowed {
		if call.Name == name {
			permitted = true
			break
		}
	}
	if !permitted {
		return "", fmt.Errorf("tool %s is not available at this step", call.Name)
	}
	tool, err := s.tools.GetTool(call.Name)
	if err != nil {
		return "", err
	}
	s.log.Debug("Executing tool", "tool", call.Name, "arguments", call.Args)
	return tool.Run(ctx, call.Args)
}

// toolResult turns a tool failure into an error result the model can read.
func (s *session) toolResult(ctx context.Context, call conversation.ToolCall, allowed ...string) conversation.Message {
	out, err := s.runTool(ctx, call, allowed...)
	if err != nil {
		s.log.Warn("Tool execution failed", "tool", call.Name, "error", err)
		return conversation.NewToolResult(call, "Error: "+err.Error(), true)
	}
	return conversation.NewToolResult(call, out, false)
}

// Process answers a single question. Only a blank question or an unreachable
// database produce an error; every other failure is reported in the Result.
func (a *Agent) Process(ctx context.Context, question string) (*Result, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	id := uuid.NewString()
	limit := requestedRowLimit(question, a.cfg.RowLimit, a.cfg.MaxRowLimit)
	s := &session{
		id:       id,
		conv:     conversation.New(conversation.NewHuman(question)),
		maxSteps: a.cfg.MaxSteps,
		log:      logger.ForSession(id),
		tools: tools.NewToolManager(
			tools.NewListTablesTool(a.catalog),
			tools.NewSchemaTool(a.catalog),
			tools.NewQueryTool(a.executor, limit),
		),
	}
	var toolNames []string
	for _, t := range s.tools.List() {
		toolNames = append(toolNames, t.Name())
	}
	s.log.Info("Processing question", "question", question, "row_limit", limit, "tools", toolNames)

	fsm := a.machine(s)
	if err := fsm.FireCtx(ctx, TriggerStart); err != nil {
		return nil, fmt.Errorf("agent state machine: %w", err)
	}

	state, err := fsm.State(ctx)
	if err != nil {
		return nil, fmt.Errorf("agent state machine: %w", err)
	}
	res := &Result{SessionID: id, Tools: toolNames, Steps: s.steps, Conversation: s.conv}
	switch state {
	case StateDone:
		last := s.last()
		switch {
		case s.reviewFailed:
			res.Outcome, res.Answer, res.Err = OutcomeFailed, FailureNotice, fmt.Errorf("%w: %s", ErrReviewFailed, last.Content)
		case !last.IsTerminal():
			res.Outcome, res.Answer = OutcomeFailed, FailureNotice
		case s.degraded:
			res.Outcome, res.Answer = OutcomeDegraded, last.Content
		default:
			res.Outcome, res.Answer = OutcomeAnswered, last.Content
		}
	case StateExhausted:
		res.Outcome, res.Answer, res.Err = OutcomeExhausted, FailureNotice, ErrStepBudgetExceeded
	case StateFailed:
		return nil, s.err
	default:
		return nil, fmt.Errorf("agent ended in unexpected state %v", state)
	}
	s.log.Info("Question processed", "outcome", res.Outcome, "steps", len(s.steps))
	return res, nil
}

// machine builds the workflow for one session. Triggers fired from OnEntry are
// queued, so each state finishes before the next one starts.
func (a *Agent) machine(s *session) *stateless.StateMachine {
	fsm := stateless.NewStateMachineWithMode(StateIdle, stateless.FiringQueued)

	fire := func(ctx context.Context, t FSMTrigger) error {
		if !terminalTriggers[t] && len(s.steps) >= s.maxSteps {
			s.log.Warn("Step budget exhausted", "max_steps", s.maxSteps)
			t = TriggerBudgetExceeded
		}
		return fsm.FireCtx(ctx, t)
	}
	working := func(state FSMState) *stateless.StateConfiguration {
		return fsm.Configure(state).Permit(TriggerBudgetExceeded, StateExhausted)
	}

	working(StateIdle).
		Permit(TriggerStart, StateListTables)

	working(StateListTables).
		OnEntry(func(ctx context.Context, _ ...any) error {
			s.enter(StateListTables)
			call := conversation.ToolCall{ID: conversation.NewCallID(), Name: tools.ListTablesToolName, Args: map[string]any{}}
			out, err := s.runTool(ctx, call, tools.ListTablesToolName)
			if err != nil {
				s.log.Error("Listing tables failed", "error", err)
				s.err = err
				return fire(ctx, TriggerFailed)
			}
			s.append(conversation.NewAssistant("", call), conversation.NewToolResult(call, out, false))
			return fire(ctx, TriggerTablesListed)
		}).
		Permit(TriggerTablesListed, StateGetSchemaRequest).
		Permit(TriggerFailed, StateFailed)

	working(StateGetSchemaRequest).
		OnEntry(func(ctx context.Context, _ ...any) error {
			s.enter(StateGetSchemaRequest)
			msg, degraded := a.drafter.RequestSchema(ctx, s.log, s.conv.Effective(), s.definition(tools.SchemaToolName))
			if degraded {
				s.log.Info("Continuing with fallback schema")
			}
			s.append(msg)
			return fire(ctx, TriggerSchemaRequested)
		}).
		Permit(TriggerSchemaRequested, StateGetSchemaResult)

	working(StateGetSchemaResult).
		OnEntry(func(ctx context.Context, _ ...any) error {
			s.enter(StateGetSchemaResult)
			for _, call := range s.last().ToolCalls {
				s.append(s.toolResult(ctx, call, tools.SchemaToolName))
			}
			return fire(ctx, TriggerSchemaReady)
		}).
		Permit(TriggerSchemaReady, StateGenerateQuery)

	working(StateGenerateQuery).
		OnEntry(func(ctx context.Context, _ ...any) error {
			s.enter(StateGenerateQuery)
			msg, degraded := a.drafter.Draft(ctx, s.log, s.conv.Effective(), s.definition(tools.QueryToolName))
			s.append(msg)
			if msg.HasToolCalls() {
				return fire(ctx, TriggerQueryProposed)
			}
			s.degraded = degraded
			return fire(ctx, TriggerAnswered)
		}).
		Permit(TriggerQueryProposed, StateCheckQuery).
		Permit(TriggerAnswered, StateDone)

	working(StateCheckQuery).
		OnEntry(func(ctx context.Context, _ ...any) error {
			s.enter(StateCheckQuery)
			draft := s.last()
			reviewed := a.reviewer.Review(ctx, s.log, draft, s.definition(tools.QueryToolName))
			if reviewed.ID != draft.ID {
				s.append(reviewed)
			}
			if reviewed.HasToolCalls() {
				return fire(ctx, TriggerQueryChecked)
			}
			s.reviewFailed = true
			return fire(ctx, TriggerCheckFailed)
		}).
		Permit(TriggerQueryChecked, StateRunQuery).
		Permit(TriggerCheckFailed, StateDone)

	working(StateRunQuery).
		OnEntry(func(ctx context.Context, _ ...any) error {
			s.enter(StateRunQuery)
			for _, call := range s.last().ToolCalls {
				s.append(s.toolResult(ctx, call, tools.QueryToolName))
			}
			return fire(ctx, TriggerQueryExecuted)
		}).
		Permit(TriggerQueryExecuted, StateGenerateQuery)

	for _, state := range []FSMState{StateDone, StateExhausted, StateFailed} {
		fsm.Configure(state).
			OnEntry(func(_ context.Context, _ ...any) error {
				s.log.Debug("FSM: entering state", "state", state)
				return nil
			})
	}

	return fsm
}

// Package compiler wires the lexer, parser, analyzer and codegen stages
// into one façade, the way funvibe/funxy's internal/pipeline.Pipeline
// strings its Processors over a shared *PipelineContext — except here
// each Process call owns a fresh AST and codegen scope, while the
// long-lived typesystem.Checker (and its savepoint discipline) and the
// analyzer with its top-level bindings persist across calls, matching the teacher's "one Pipeline per Run, one loader
// across files" split.
package compiler

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/polysubml/polysubml/internal/analyzer"
	"github.com/polysubml/polysubml/internal/cache"
	"github.com/polysubml/polysubml/internal/codegen"
	"github.com/polysubml/polysubml/internal/diagnostics"
	"github.com/polysubml/polysubml/internal/parser"
	"github.com/polysubml/polysubml/internal/token"
)

// State is one compilation session: a persistent type-checker (so that
// successive Process calls share the same nominal-type registry and
// accumulate an ever-growing graph, mirroring a REPL) plus a source
// registry for diagnostics. Not safe for concurrent Process calls —
// internal/service serializes access per session with a mutex.
type State struct {
	sessionID uuid.UUID
	sources   *token.SourceSet
	analyzer  *analyzer.Analyzer
	log       *slog.Logger
	cache     *cache.Store
	processed int
}

// SetCache attaches a compile cache; nil disables it (the zero value, so
// a State never consults a cache unless one was explicitly configured).
func (s *State) SetCache(c *cache.Store) { s.cache = c }

// Result is the outcome of one Process call: either a rendered target
// program or a non-empty set of diagnostics, never both populated with
// meaningful content at once (a failed Process's Target is empty).
type Result struct {
	Target string
	Errors []*diagnostics.DiagnosticError
}

func (r *Result) OK() bool { return len(r.Errors) == 0 }

// New starts a fresh session with its own uuid and type-checker state.
func New(log *slog.Logger) *State {
	if log == nil {
		log = slog.Default()
	}
	return &State{
		sessionID: uuid.New(),
		sources:   token.NewSourceSet(),
		analyzer:  analyzer.New(),
		log:       log,
	}
}

func (s *State) SessionID() uuid.UUID { return s.sessionID }

// Stats passes through the checker's own bookkeeping counters
// (SPEC_FULL.md §6.1).
func (s *State) Stats() Stats {
	st := s.analyzer.Checker.Stats()
	return Stats{NodeCount: st.NodeCount, FlowCount: st.FlowCount, VarCount: st.VarCount}
}

type Stats struct {
	NodeCount int
	FlowCount uint64
	VarCount  uint64
}

// Reset discards all accumulated type-checker state and starts a new
// session id, the way a long-lived gRPC daemon would recycle a slot
// between unrelated client sessions instead of tearing the process down.
func (s *State) Reset() {
	s.sessionID = uuid.New()
	s.sources = token.NewSourceSet()
	s.analyzer = analyzer.New()
	s.processed = 0
}

// Process lexes, parses, type-checks and lowers one source unit,
// appending it as a new top-level statement group onto the session's
// running program (spec §4.8: each top-level statement is individually
// atomic via Save/Revert; a syntax error aborts before any checker state
// is touched at all).
func (s *State) Process(name, source string) *Result {
	// A cache entry only ever reflects a source unit compiled against an
	// empty checker, so it is only safe to consult (or populate) it on
	// the session's first statement — every later call's result depends
	// on the accumulated state from prior Process calls as well.
	freshSession := s.processed == 0

	if s.cache != nil && freshSession {
		if target, ok, err := s.cache.Get(source); err != nil {
			s.log.Warn("cache lookup failed", "session", s.sessionID, "error", err)
		} else if ok {
			s.processed++
			return &Result{Target: target}
		}
	}

	src := s.sources.Add(name, source)

	p, err := parser.New(src, source)
	if err != nil {
		return s.fail(err)
	}
	prog, err := p.ParseProgram()
	if err != nil {
		return s.fail(err)
	}

	if errs := s.analyzer.AnalyzeProgram(prog); len(errs) > 0 {
		s.log.Warn("process rejected", "session", s.sessionID, "source", name, "errors", len(errs))
		for i, e := range errs {
			errs[i] = e.WithSession(s.sessionID)
		}
		return &Result{Errors: errs}
	}

	b := codegen.NewBuilder()
	target := codegen.CompileProgram(b, prog).ToSource()
	s.log.Info("process accepted", "session", s.sessionID, "source", name, "stats", fmt.Sprintf("%+v", s.Stats()))
	s.processed++

	if s.cache != nil && freshSession {
		if err := s.cache.Put(source, target); err != nil {
			s.log.Warn("cache store failed", "session", s.sessionID, "error", err)
		}
	}
	return &Result{Target: target}
}

func (s *State) fail(err *diagnostics.DiagnosticError) *Result {
	return &Result{Errors: []*diagnostics.DiagnosticError{err.WithSession(s.sessionID)}}
}

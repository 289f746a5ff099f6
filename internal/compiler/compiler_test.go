package compiler_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/polysubml/polysubml/internal/cache"
	"github.com/polysubml/polysubml/internal/compiler"
)

func TestProcessSuccessProducesTarget(t *testing.T) {
	s := compiler.New(nil)
	result := s.Process("main.ml", `let x = 1
println(x)`)
	require.True(t, result.OK())
	require.NotEmpty(t, result.Target)
}

func TestProcessSyntaxErrorReportsDiagnostic(t *testing.T) {
	s := compiler.New(nil)
	result := s.Process("main.ml", `let x = `)
	require.False(t, result.OK())
	require.NotEmpty(t, result.Errors)
	require.Empty(t, result.Target)
}

func TestProcessTypeErrorReportsDiagnostic(t *testing.T) {
	s := compiler.New(nil)
	result := s.Process("main.ml", `println(undefinedName)`)
	require.False(t, result.OK())
	require.NotEmpty(t, result.Errors)
}

func TestStatsGrowWithEachAcceptedStatement(t *testing.T) {
	s := compiler.New(nil)
	before := s.Stats()

	result := s.Process("main.ml", `let x = 1
println(x)`)
	require.True(t, result.OK())

	after := s.Stats()
	require.Greater(t, after.FlowCount, before.FlowCount)
}

func TestResetStartsNewSession(t *testing.T) {
	s := compiler.New(nil)
	id1 := s.SessionID()
	s.Reset()
	id2 := s.SessionID()
	require.NotEqual(t, id1, id2)
}

func TestCacheServesSecondCompileOfIdenticalFreshSessionSource(t *testing.T) {
	store, err := cache.Open(filepath.Join(t.TempDir(), "cache.sqlite"))
	require.Nil(t, err)
	defer store.Close()

	src := `let x = 1
println(x)`

	s1 := compiler.New(nil)
	s1.SetCache(store)
	r1 := s1.Process("a.ml", src)
	require.True(t, r1.OK())

	s2 := compiler.New(nil)
	s2.SetCache(store)
	r2 := s2.Process("b.ml", src)
	require.True(t, r2.OK())
	require.Equal(t, r1.Target, r2.Target)
}

func TestCacheNotConsultedAfterFirstStatementInSession(t *testing.T) {
	store, err := cache.Open(filepath.Join(t.TempDir(), "cache.sqlite"))
	require.Nil(t, err)
	defer store.Close()

	s := compiler.New(nil)
	s.SetCache(store)

	r1 := s.Process("a.ml", `let a = 1
println(a)`)
	require.True(t, r1.OK())

	// Same source text as a second statement in the same session must be
	// re-type-checked against the accumulated state, not served from the
	// (session-agnostic) cache.
	r2 := s.Process("a.ml", `let a = 1
println(a)`)
	require.True(t, r2.OK())
}

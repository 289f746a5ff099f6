package compiler_test

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/tools/txtar"

	"github.com/polysubml/polysubml/internal/compiler"
)

// Each testdata/scenarios/*.txtar fixture carries an "input.ml" file, an
// "expect" file ("ok" or "error"), and an optional "contains" file naming
// a substring the compiled target must contain on success.
func TestScenarios(t *testing.T) {
	paths, err := filepath.Glob("../../testdata/scenarios/*.txtar")
	require.Nil(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		path := path
		t.Run(filepath.Base(path), func(t *testing.T) {
			ar, err := txtar.ParseFile(path)
			require.Nil(t, err)

			files := map[string]string{}
			for _, f := range ar.Files {
				files[f.Name] = string(f.Data)
			}

			input, ok := files["input.ml"]
			require.True(t, ok, "scenario missing input.ml")
			expect, ok := files["expect"]
			require.True(t, ok, "scenario missing expect")
			expect = strings.TrimSpace(expect)

			result := compiler.New(nil).Process(path, input)
			switch expect {
			case "ok":
				require.True(t, result.OK(), "expected success, got: %v", result.Errors)
				if contains, ok := files["contains"]; ok {
					require.Contains(t, result.Target, strings.TrimSpace(contains))
				}
			case "error":
				require.False(t, result.OK(), "expected failure, got target: %s", result.Target)
			default:
				t.Fatalf("scenario %s: unrecognized expect value %q", path, expect)
			}
		})
	}
}

// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"io/fs"
	"strings"
	"testing"
)

func TestValues_SortedAndComplete(t *testing.T) {
	t.Parallel()

	values := Values()
	if len(values) != len(issues) {
		t.Fatalf("Values() returned %d issues, want %d", len(values), len(issues))
	}
	for i, v := range values {
		if v.Id() != Id(i+1) {
			t.Errorf("Values()[%d].Id() = %d, want %d", i, v.Id(), i+1)
		}
		if strings.TrimSpace(string(v.MarkdownMsg())) == "" {
			t.Errorf("issue %d has no message", v.Id())
		}
	}
}

func TestGet(t *testing.T) {
	t.Parallel()

	if Get(ScriptLoadFailedId) != scriptLoadFailedIssue {
		t.Error("Get(ScriptLoadFailedId) returned the wrong issue")
	}
	if Get(Id(999)) != nil {
		t.Error("Get(999) should be nil")
	}
}

func TestIssue_Render(t *testing.T) {
	t.Parallel()

	i := &Issue{id: 42, mdMsg: "# Title\n\nbody", docLinks: []HttpLink{"https://example.com/docs"}}
	out, err := i.Render("notty")
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	for _, want := range []string{"Title", "body", "See also", "https://example.com/docs"} {
		if !strings.Contains(out, want) {
			t.Errorf("Render() missing %q in:\n%s", want, out)
		}
	}

	links := i.DocLinks()
	links[0] = "changed"
	if i.docLinks[0] == "changed" {
		t.Error("DocLinks() should return a copy")
	}
}

func TestActionableError(t *testing.T) {
	t.Parallel()

	cause := &fs.PathError{Op: "open", Path: "x.sh", Err: fs.ErrNotExist}
	err := NewErrorContext().
		WithOperation("load script").
		WithResource("x.sh").
		WithSuggestion("check the path").
		WithSuggestion("use an absolute path").
		Wrap(cause).
		BuildError()

	if got, want := err.Error(), "failed to load script: x.sh: open x.sh: file does not exist"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Error("errors.Is should see through to the cause")
	}

	var ae *ActionableError
	if !errors.As(err, &ae) {
		t.Fatal("errors.As failed")
	}
	short := ae.Format(false)
	if !strings.Contains(short, "  • check the path\n  • use an absolute path") {
		t.Errorf("Format(false) = %q", short)
	}
	if strings.Contains(short, "Error chain") {
		t.Error("non-verbose output should not include the chain")
	}
	verbose := ae.Format(true)
	if !strings.Contains(verbose, "1. open x.sh: file does not exist") || !strings.Contains(verbose, "2. file does not exist") {
		t.Errorf("Format(true) = %q", verbose)
	}
}

func TestErrorContext_RequiresOperation(t *testing.T) {
	t.Parallel()

	if err := NewErrorContext().Wrap(errors.New("x")).BuildError(); err != nil {
		t.Errorf("BuildError() = %v, want nil", err)
	}
	if WrapWithContext(nil, "op", "res") != nil {
		t.Error("WrapWithContext(nil) should be nil")
	}
	if got := WrapWithContext(errors.New("boom"), "serve", "").Error(); got != "failed to serve: boom" {
		t.Errorf("Error() = %q", got)
	}
}

func TestErrorContext_BuildCopiesSuggestions(t *testing.T) {
	t.Parallel()

	c := NewErrorContext().WithOperation("op").WithSuggestion("a")
	first := c.Build()
	c.WithSuggestion("b")
	if len(first.Suggestions) != 1 {
		t.Errorf("earlier Build() result changed: %v", first.Suggestions)
	}
}

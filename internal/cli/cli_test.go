package cli

import (
	"strings"
	"testing"

	"switchfw/internal/sysstate"
)

func TestTokenizeCollapsesWhitespaceAndBoundsCount(t *testing.T) {
	got := Tokenize("  port   f0   enable  ")
	want := []string{"port", "f0", "enable"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}

	long := strings.Repeat("a ", 200)
	if got := Tokenize(long); len(got) != maxTokens {
		t.Fatalf("expected tokens bounded to %d, got %d", maxTokens, len(got))
	}
}

func TestStripLineEnding(t *testing.T) {
	cases := map[string]string{
		"foo\r\n": "foo",
		"foo\n":   "foo",
		"foo":     "foo",
	}
	for in, want := range cases {
		if got := stripLineEnding(in); got != want {
			t.Fatalf("stripLineEnding(%q) = %q, want %q", in, got, want)
		}
	}
}

func buildTestTree() (*Node, *bool) {
	ran := false
	leaf := &Node{
		Text: "enable", IsTerminal: true, RequiredPermission: sysstate.RoleModifyPorts,
		Handler: func(params []byte) bool { ran = true; return true },
	}
	port := &Node{Text: "f0", Children: []*Node{leaf}}
	root := &Node{Text: "root", Children: []*Node{
		{Text: "port", Children: []*Node{port}},
	}}
	return root, &ran
}

func TestDispatchRunsHandlerOnExactPath(t *testing.T) {
	root, ran := buildTestTree()
	d := NewDispatcher(root)
	res, err := d.Dispatch([]string{"port", "f0", "enable"}, sysstate.RoleModifyPorts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.HandlerRan || !res.Success {
		t.Fatalf("expected handler to run and succeed, got %+v", res)
	}
	if !*ran {
		t.Fatal("handler body did not execute")
	}
}

func TestDispatchUnauthorizedBlocksHandler(t *testing.T) {
	root, ran := buildTestTree()
	d := NewDispatcher(root)
	_, err := d.Dispatch([]string{"port", "f0", "enable"}, sysstate.RoleReadOnly)
	if err == nil {
		t.Fatal("expected unauthorized error")
	}
	de, ok := err.(*DispatchError)
	if !ok || de.Kind != ErrUnauthorized {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if *ran {
		t.Fatal("handler must not run when unauthorized")
	}
}

func TestDispatchUnknownCommand(t *testing.T) {
	root, _ := buildTestTree()
	d := NewDispatcher(root)
	_, err := d.Dispatch([]string{"bogus"}, sysstate.RoleAdministrator)
	de, ok := err.(*DispatchError)
	if !ok || de.Kind != ErrNotRecognized {
		t.Fatalf("expected ErrNotRecognized, got %v", err)
	}
}

func TestDispatchIncompleteCommand(t *testing.T) {
	root, _ := buildTestTree()
	d := NewDispatcher(root)
	_, err := d.Dispatch([]string{"port", "f0"}, sysstate.RoleAdministrator)
	de, ok := err.(*DispatchError)
	if !ok || de.Kind != ErrIncomplete {
		t.Fatalf("expected ErrIncomplete, got %v", err)
	}
}

func TestDispatchTooManyParameters(t *testing.T) {
	root, _ := buildTestTree()
	d := NewDispatcher(root)
	_, err := d.Dispatch([]string{"port", "f0", "enable", "extra"}, sysstate.RoleAdministrator)
	de, ok := err.(*DispatchError)
	if !ok || de.Kind != ErrTooManyParams {
		t.Fatalf("expected ErrTooManyParams, got %v", err)
	}
}

func TestDispatchHelpMarksElevatedEntries(t *testing.T) {
	root, _ := buildTestTree()
	d := NewDispatcher(root)
	res, err := d.Dispatch([]string{"port", "f0", "?"}, sysstate.RoleReadOnly)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(res.HelpText, "enable") || !strings.Contains(res.HelpText, "*") {
		t.Fatalf("expected elevated marker in help text, got %q", res.HelpText)
	}
}

func TestAppendParamParsesNumbersAndKeywords(t *testing.T) {
	var params []byte
	params = appendParam(params, "100")
	params = appendParam(params, "on")
	if len(params) != 2 {
		t.Fatalf("expected 2 bytes, got %v", params)
	}
	if params[0] != 100 {
		t.Fatalf("expected decimal 100 encoded as single byte, got %v", params[0])
	}
	if params[1] != 'o' {
		t.Fatalf("expected keyword token's first byte, got %v", params[1])
	}
}

func TestNodeValidRejectsMismatchedStaticParams(t *testing.T) {
	n := &Node{
		Text: "bad", IsTerminal: true, ParamsRequired: 1,
		StaticParams: []byte{1, 2},
		Handler:      func([]byte) bool { return true },
	}
	if n.Valid() {
		t.Fatal("expected Valid() to reject static_param_count > params_required")
	}
}

package storcli_test

import (
	"context"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/WangQiHao-Charlie/storcli/pkg/storcli"
)

func TestParseLine(t *testing.T) {
	cmd, err := storcli.ParseLine(`/c0/v0 set name='db 1' J`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := []string{"/c0/v0", "set", "name=db 1"}; !reflect.DeepEqual(cmd.Args(), want) {
		t.Fatalf("args = %q, want %q", cmd.Args(), want)
	}
	if _, err := storcli.ParseLine("   "); err == nil {
		t.Fatalf("expected error for empty line")
	}
	if _, err := storcli.ParseLine(`/c0 show "unterminated`); err == nil {
		t.Fatalf("expected error for unterminated quote")
	}
}

func TestTemplatesRender(t *testing.T) {
	vds, err := storcli.ParseTemplate("/c{ctl}/v{param:vd} show {param:what}")
	if err != nil {
		t.Fatal(err)
	}
	tmpls := storcli.Templates{
		"vd-show": vds,
		"events":  {Args: []string{"/c{ctl}", "show", "events"}, Text: true, Timeout: time.Minute},
	}
	if got := tmpls.Names(); !reflect.DeepEqual(got, []string{"events", "vd-show"}) {
		t.Fatalf("names = %v", got)
	}

	cmd, timeout, err := tmpls.Render("vd-show", map[string]string{"ctl": "0", "vd": "all", "what": "all"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cmd.String() != "/c0/vall show all J" || timeout != 0 {
		t.Fatalf("rendered %q timeout %v", cmd.String(), timeout)
	}

	cmd, timeout, err = tmpls.Render("events", map[string]string{"ctl": "1", "timeout_s": "5"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cmd.JSON() || cmd.String() != "/c1 show events" {
		t.Fatalf("text template rendered %q json=%v", cmd.String(), cmd.JSON())
	}
	if timeout != 5*time.Second {
		t.Fatalf("timeout = %v, want 5s", timeout)
	}

	if _, timeout, _ = tmpls.Render("events", map[string]string{"ctl": "1", "timeout": "bogus"}); timeout != time.Minute {
		t.Fatalf("bad timeout param overrode the template: %v", timeout)
	}
	if _, _, err := tmpls.Render("missing", nil); err == nil {
		t.Fatalf("expected error for unknown template")
	}
}

// A rendered template runs through the facade like any other command.
func TestTemplateRunsThroughFacade(t *testing.T) {
	var seen []string
	cli, _ := newFakeCLI(t, func(args []string) (storcli.RawResult, error) {
		seen = args
		return storcli.RawResult{Stdout: []byte(successEnvelope)}, nil
	})
	tmpls := storcli.Templates{"ctl-show": {Args: []string{"/c{ctl}", "show"}}}
	cmd, _, err := tmpls.Render("ctl-show", map[string]string{"ctl": "0"})
	if err != nil {
		t.Fatal(err)
	}
	res, err := cli.Run(context.Background(), cmd)
	if err != nil || !res.OK {
		t.Fatalf("res = %+v err = %v", res, err)
	}
	if strings.Join(seen, " ") != "/c0 show J" {
		t.Fatalf("argv = %q", seen)
	}
}

// Parameter values are inserted verbatim, even when they look like
// placeholders themselves.
func TestTemplateValuesAreNotReexpanded(t *testing.T) {
	tmpls := storcli.Templates{"name": {Args: []string{"/c{ctl}/v0", "set", "name={param:n}", "{other}"}}}
	params := map[string]string{"ctl": "{param:n}", "n": "{param:n}"}

	done := make(chan storcli.Command, 1)
	go func() {
		cmd, _, err := tmpls.Render("name", params)
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		done <- cmd
	}()
	select {
	case cmd := <-done:
		want := []string{"/c{param:n}/v0", "set", "name={param:n}", "{other}"}
		if !reflect.DeepEqual(cmd.Args(), want) {
			t.Fatalf("args = %q, want %q", cmd.Args(), want)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Render did not return for a self-referencing parameter value")
	}
}

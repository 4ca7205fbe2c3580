package process

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/go-cmp/cmp"
)

func TestExec_StreamsCombinedOutput(t *testing.T) {
	var out bytes.Buffer
	r := NewExec(logr.Discard())
	code, err := r.Run(context.Background(), Command{
		Args:   []string{"sh", "-c", "echo to-stdout; echo to-stderr 1>&2"},
		Stdout: &out,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	got := out.String()
	if !strings.Contains(got, "to-stdout") || !strings.Contains(got, "to-stderr") {
		t.Fatalf("combined output missing a stream: %q", got)
	}
}

func TestExec_NonZeroExitIsNotAnError(t *testing.T) {
	r := NewExec(logr.Discard())
	code, err := r.Run(context.Background(), Command{Args: []string{"sh", "-c", "exit 7"}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if code != 7 {
		t.Fatalf("exit code = %d, want 7", code)
	}
}

func TestExec_LargeOutputDoesNotDeadlock(t *testing.T) {
	var out bytes.Buffer
	r := NewExec(logr.Discard())
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	// Well past a typical 64KiB pipe buffer.
	code, err := r.Run(ctx, Command{
		Args:   []string{"sh", "-c", "i=0; while [ $i -lt 20000 ]; do echo line-$i-padding-padding; i=$((i+1)); done"},
		Stdout: &out,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if n := strings.Count(out.String(), "\n"); n != 20000 {
		t.Fatalf("got %d lines, want 20000", n)
	}
}

func TestExec_StartFailureIsAnError(t *testing.T) {
	r := NewExec(logr.Discard())
	if _, err := r.Run(context.Background(), Command{Args: []string{"definitely-not-a-real-binary-xyz"}}); err == nil {
		t.Fatalf("expected start error")
	}
	if _, err := r.Run(context.Background(), Command{}); err == nil {
		t.Fatalf("expected error for empty command")
	}
}

func TestExec_RunsInDir(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer
	r := NewExec(logr.Discard())
	if _, err := r.Run(context.Background(), Command{Args: []string{"pwd"}, Dir: dir, Stdout: &out}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(out.String(), dir) {
		t.Fatalf("pwd = %q, want %q", out.String(), dir)
	}
}

func TestParse_SplitsShellWords(t *testing.T) {
	got, err := Parse(`java --enable-preview -Dname="a b"`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := []string{"java", "--enable-preview", "-Dname=a b"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Parse mismatch (-want +got):\n%s", diff)
	}
	if _, err := Parse("   "); err == nil {
		t.Fatalf("expected error for blank command")
	}
}

func TestCapture_KeepsCopyAndForwards(t *testing.T) {
	var forwarded bytes.Buffer
	rec := &Recorder{Handler: func(cmd Command) (int, error) {
		fmt.Fprint(cmd.Stdout, "diagnostic")
		return 3, nil
	}}
	code, out, err := Capture(context.Background(), rec, Command{Args: []string{"javac"}, Stdout: &forwarded})
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if code != 3 || string(out) != "diagnostic" || forwarded.String() != "diagnostic" {
		t.Fatalf("code=%d out=%q forwarded=%q", code, out, forwarded.String())
	}
	if got := len(rec.Commands()); got != 1 {
		t.Fatalf("recorded %d commands", got)
	}
}

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeSource(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLintFile(t *testing.T) {
	dir := t.TempDir()
	good := writeSource(t, dir, "good.go", "package q\n\nconst QGood = `--sql 6f1c2a9e-0b7d-4c53-9a1e-2d8f4b6c7e10\nSELECT 1`\n\nconst Label = \"not sql\"\n\nvar scratch = `SELECT 2`\n")
	bad := writeSource(t, dir, "bad.go", "package q\n\nconst (\n\tQBad = `SELECT * FROM images`\n\tQDup = `--sql 6f1c2a9e-0b7d-4c53-9a1e-2d8f4b6c7e10\nDELETE FROM images`\n\tQDDL = \"create table x (id int)\"\n)\n")

	l := newLinter()
	if err := l.lintFile(good); err != nil || len(l.violations) != 0 {
		t.Fatalf("good file: %v %v", err, l.violations)
	}
	if err := l.lintFile(bad); err != nil {
		t.Fatalf("bad file: %v", err)
	}
	vs := l.violations
	if len(vs) != 3 {
		t.Fatalf("expected 3 violations, got %+v", vs)
	}
	if vs[0].name != "QBad" || !strings.Contains(vs[0].message, "missing") {
		t.Fatalf("unexpected first violation %+v", vs[0])
	}
	if vs[1].name != "QDup" || !strings.Contains(vs[1].message, "QGood") {
		t.Fatalf("unexpected duplicate violation %+v", vs[1])
	}
	if vs[2].name != "QDDL" || vs[2].line != 7 {
		t.Fatalf("unexpected ddl violation %+v", vs[2])
	}
}

func TestRunReportsViolations(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "q.go", "package q\n\nconst Q = `update images set mime = 'x'`\n")
	writeSource(t, dir, "q_test.go", "package q\n\nconst T = `select 1`\n")

	var stderr bytes.Buffer
	if code := run([]string{dir}, &stderr); code != 1 {
		t.Fatalf("exit code = %d", code)
	}
	out := stderr.String()
	if !strings.Contains(out, "q.go:3") || strings.Contains(out, "q_test.go") {
		t.Fatalf("unexpected report:\n%s", out)
	}
	if code := run([]string{filepath.Join(dir, "missing")}, &stderr); code != 1 {
		t.Fatalf("missing path exit code = %d", code)
	}
}

func TestSQLInlineIsClean(t *testing.T) {
	var stderr bytes.Buffer
	if code := run([]string{"../../sqlinline"}, &stderr); code != 0 {
		t.Fatalf("sqlinline has violations:\n%s", stderr.String())
	}
}

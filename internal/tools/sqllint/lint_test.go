package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestQueriesCarryUniqueMarkers(t *testing.T) {
	l := newLinter()
	if err := l.lintPath(filepath.Join("..", "..", "sqlinline")); err != nil {
		t.Fatalf("lintPath returned error: %v", err)
	}
	for _, v := range l.violations {
		t.Errorf("%s:%d %s (%s)", v.file, v.line, v.message, v.name)
	}
	names := make(map[string]bool, len(l.markers))
	for _, m := range l.markers {
		names[m.name] = true
	}
	for _, want := range []string{"QInsertSchemaResult", "QSQLiteInsertSchemaResult", "QSQLiteSelectSchemaResults"} {
		if !names[want] {
			t.Errorf("query %s not linted", want)
		}
	}
}

func TestLintFlagsMissingAndDuplicateMarkers(t *testing.T) {
	dir := t.TempDir()
	src := "package q\n\n" +
		"const QOK = `--sql 11111111-2222-3333-4444-555555555555\nselect 1;`\n" +
		"const QDup = `--sql 11111111-2222-3333-4444-555555555555\nselect 2;`\n" +
		"const QBare = \"insert into t values (1)\"\n" +
		"const Greeting = \"hello\"\n"
	path := filepath.Join(dir, "q.go")
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	l := newLinter()
	if err := l.lintPath(dir); err != nil {
		t.Fatalf("lintPath returned error: %v", err)
	}
	if len(l.violations) != 2 {
		t.Fatalf("violations = %+v, want 2", l.violations)
	}
	if l.violations[0].name != "QDup" || !strings.Contains(l.violations[0].message, "already used by QOK") {
		t.Fatalf("duplicate not reported: %+v", l.violations[0])
	}
	if l.violations[1].name != "QBare" {
		t.Fatalf("missing marker not reported: %+v", l.violations[1])
	}
}

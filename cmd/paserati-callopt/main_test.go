package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"paserati-ic/pkg/scenario"
)

const domScenario = "../../pkg/scenario/testdata/dom.yaml"

func clearEnv(t *testing.T) {
	t.Setenv("PASERATI_IC_API_CALLS", "")
	t.Setenv("PASERATI_MAX_POLY_ENTRIES", "")
	t.Setenv("PASERATI_IC_TRACE", "")
}

func TestRunText(t *testing.T) {
	clearEnv(t)
	var stdout, stderr bytes.Buffer
	if code := run([]string{domScenario}, &stdout, &stderr); code != 0 {
		t.Fatalf("expected exit 0, got %d\nstderr: %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "== dom") {
		t.Errorf("missing report header:\n%s", stdout.String())
	}
	if !strings.Contains(stderr.String(), "1 scenarios, 6 checks, 5 loads, 0 failures, 0 errors") {
		t.Errorf("unexpected summary: %s", stderr.String())
	}
}

func TestRunCBOROutputFile(t *testing.T) {
	clearEnv(t)
	out := filepath.Join(t.TempDir(), "report.cbor")
	var stdout, stderr bytes.Buffer
	if code := run([]string{"-format", "cbor", "-o", out, domScenario}, &stdout, &stderr); code != 0 {
		t.Fatalf("expected exit 0, got %d\nstderr: %s", code, stderr.String())
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	rep, err := scenario.DecodeReport(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rep.Scenario != "dom" || !rep.Passed() {
		t.Errorf("unexpected report: %+v", rep)
	}
}

func TestRunDisabledByConfig(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	cfg := filepath.Join(dir, "ic.toml")
	if err := os.WriteFile(cfg, []byte("[ic]\nenable-api-calls = false\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	var stdout, stderr bytes.Buffer
	// The dom scenario expects fast paths, so disabling them fails it.
	if code := run([]string{"-config", cfg, domScenario}, &stdout, &stderr); code != 70 {
		t.Fatalf("expected exit 70, got %d", code)
	}
	if !strings.Contains(stdout.String(), "expected fast path, took generic") {
		t.Errorf("expected path failures in report:\n%s", stdout.String())
	}
}

func TestRunUsageErrors(t *testing.T) {
	clearEnv(t)
	tests := [][]string{
		{},
		{"-format", "xml", domScenario},
		{"-config", "/nonexistent/ic.toml", domScenario},
		{"-bogus"},
	}
	for _, args := range tests {
		var stdout, stderr bytes.Buffer
		if code := run(args, &stdout, &stderr); code != 64 {
			t.Errorf("%v: expected exit 64, got %d", args, code)
		}
	}
}

func TestRunBrokenScenario(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "broken.yaml")
	if err := os.WriteFile(path, []byte("realms: []\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	var stdout, stderr bytes.Buffer
	if code := run([]string{path}, &stdout, &stderr); code != 70 {
		t.Fatalf("expected exit 70, got %d", code)
	}
	if !strings.Contains(stderr.String(), "0 scenarios") {
		t.Errorf("unexpected summary: %s", stderr.String())
	}
}

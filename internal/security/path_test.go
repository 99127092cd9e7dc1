package security

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestValidateWorkingDirectory(t *testing.T) {
	v, err := NewPathValidator(nil)
	if err != nil {
		t.Fatalf("NewPathValidator: %v", err)
	}

	got, err := v.Validate("report.pdf")
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	wd, _ := os.Getwd()
	if got != filepath.Join(wd, "report.pdf") {
		t.Fatalf("resolved = %q", got)
	}
}

func TestValidateRejectsTraversal(t *testing.T) {
	v, err := NewPathValidator(nil)
	if err != nil {
		t.Fatalf("NewPathValidator: %v", err)
	}

	tests := []string{
		"../outside.pdf",
		"../../etc/passwd",
		"subdir/../../outside.pdf",
		"/etc/passwd",
	}
	for _, path := range tests {
		if _, err := v.Validate(path); err == nil {
			t.Errorf("Validate(%q) must fail", path)
		}
	}
}

func TestValidateAllowedDirectories(t *testing.T) {
	allowed := t.TempDir()
	v, err := NewPathValidator([]string{allowed})
	if err != nil {
		t.Fatalf("NewPathValidator: %v", err)
	}

	got, err := v.Validate(filepath.Join(allowed, "docs", "report.pdf"))
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !strings.HasPrefix(got, allowed) {
		t.Fatalf("resolved = %q", got)
	}

	// A sibling of the allowed directory must not pass. The prefix check is
	// segment-aware, so /tmp/x does not admit /tmp/x-evil.
	if _, err := v.Validate(allowed + "-evil/report.pdf"); err == nil {
		t.Fatal("sibling directory must be rejected")
	}
}

func TestValidateCleansBeforeChecking(t *testing.T) {
	allowed := t.TempDir()
	v, err := NewPathValidator([]string{allowed})
	if err != nil {
		t.Fatalf("NewPathValidator: %v", err)
	}

	// A traversal that resolves back inside the allowed directory is fine.
	path := filepath.Join(allowed, "docs", "..", "report.pdf")
	got, err := v.Validate(path)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if got != filepath.Join(allowed, "report.pdf") {
		t.Fatalf("resolved = %q", got)
	}

	// One that escapes through the allowed root is not.
	escape := filepath.Join(allowed, "..", "outside.pdf")
	if _, err := v.Validate(escape); err == nil {
		t.Fatal("escape through the root must be rejected")
	}
}

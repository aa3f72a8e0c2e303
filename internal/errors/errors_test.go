package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	cause := errors.New("underlying error")

	err := New(StructuralParse, "unterminated block", cause)

	if err.Code != StructuralParse {
		t.Errorf("Code = %v, want %v", err.Code, StructuralParse)
	}
	if err.Message != "unterminated block" {
		t.Errorf("Message = %q, want %q", err.Message, "unterminated block")
	}
	if len(err.SuggestedFixes) != 2 {
		t.Errorf("len(SuggestedFixes) = %d, want 2", len(err.SuggestedFixes))
	}
}

func TestTfdocError_Error(t *testing.T) {
	tests := []struct {
		name      string
		code      ErrorCode
		message   string
		cause     error
		wantParts []string
	}{
		{
			name:      "with cause",
			code:      ConfigInvalid,
			message:   "bad sources",
			cause:     errors.New("no such file"),
			wantParts: []string{"CONFIG_INVALID", "bad sources", "no such file"},
		},
		{
			name:      "without cause",
			code:      UnresolvedReference,
			message:   "nothing matches 'baz'",
			cause:     nil,
			wantParts: []string{"UNRESOLVED_REFERENCE", "nothing matches 'baz'"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := New(tt.code, tt.message, tt.cause).Error()
			for _, part := range tt.wantParts {
				if !strings.Contains(got, part) {
					t.Errorf("Error() = %q, missing %q", got, part)
				}
			}
		})
	}
}

func TestUnwrapAndCodeOf(t *testing.T) {
	cause := errors.New("root cause")
	err := fmt.Errorf("scanning main.tf: %w", New(StructuralParse, "unbalanced", cause))

	if !errors.Is(err, cause) {
		t.Error("expected wrapped cause to be reachable")
	}
	if got := CodeOf(err); got != StructuralParse {
		t.Errorf("CodeOf = %q, want %q", got, StructuralParse)
	}
	if !HasCode(err, StructuralParse) {
		t.Error("HasCode should find the code through wrapping")
	}
	if HasCode(nil, StructuralParse) {
		t.Error("HasCode(nil) should be false")
	}
	if CodeOf(errors.New("plain")) != "" {
		t.Error("plain errors carry no code")
	}
}

func TestWithDetails(t *testing.T) {
	err := Newf(AmbiguousReference, "%d candidates", 2).WithDetails([]string{"a", "b"})

	details, ok := err.Details.([]string)
	if !ok || len(details) != 2 {
		t.Fatalf("Details = %#v", err.Details)
	}
	if err.Message != "2 candidates" {
		t.Errorf("Message = %q", err.Message)
	}
}

func TestIsFatal(t *testing.T) {
	fatal := []ErrorCode{DuplicateModule, DuplicateDefinition, ConfigInvalid}
	for _, c := range fatal {
		if !IsFatal(c) {
			t.Errorf("%s should be fatal", c)
		}
	}
	recoverable := []ErrorCode{StructuralParse, ModuleCycle, UnknownMarkupLanguage, UnresolvedReference, AmbiguousReference, CommentIndentation}
	for _, c := range recoverable {
		if IsFatal(c) {
			t.Errorf("%s should not be fatal", c)
		}
	}
}

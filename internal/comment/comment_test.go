package comment

import (
	"strings"
	"testing"

	"tfdoc/internal/errors"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
		want  string
	}{
		{
			name:  "empty run",
			lines: nil,
			want:  "",
		},
		{
			name:  "hash comments",
			lines: []string{"# The VPC for the region.", "#", "# Second paragraph."},
			want:  "The VPC for the region.\n\nSecond paragraph.",
		},
		{
			name:  "slash comments keep relative indentation",
			lines: []string{"// Items:", "//", "//   * first", "//     nested"},
			want:  "Items:\n\n  * first\n    nested",
		},
		{
			name:  "leading whitespace before marker",
			lines: []string{"  # Indented block", "  # still here"},
			want:  "Indented block\nstill here",
		},
		{
			name:  "banner lines become blank and are trimmed",
			lines: []string{"##########", "# Title", "##########"},
			want:  "Title",
		},
		{
			name:  "single line block",
			lines: []string{"/* A bucket. */"},
			want:  "A bucket.",
		},
		{
			name:  "decorated block",
			lines: []string{"/**", " * Summary line.", " *", " *     code sample", " */"},
			want:  "Summary line.\n\n    code sample",
		},
		{
			name:  "undecorated block with text on opener",
			lines: []string{"/* Title", "   body text", "     indented", "*/"},
			want:  "Title\nbody text\n  indented",
		},
		{
			name:  "emphasis before the closer is content",
			lines: []string{"/* Creates the **primary** bucket, see **docs** */"},
			want:  "Creates the **primary** bucket, see **docs**",
		},
		{
			name:  "emphasis right after the opener is content",
			lines: []string{"/**bold** first */"},
			want:  "*bold** first",
		},
		{
			name:  "doc opener with text",
			lines: []string{"/** Summary. */"},
			want:  "Summary.",
		},
		{
			name:  "star banner block",
			lines: []string{"/*********", " * Title", " *********/"},
			want:  "Title",
		},
		{
			name:  "trailing whitespace trimmed",
			lines: []string{"# line one   ", "# line two\r"},
			want:  "line one\nline two",
		},
		{
			name:  "no space after marker",
			lines: []string{"#tight", "#  loose"},
			want:  "tight\n loose",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Normalize(tt.lines)
			if res.Text != tt.want {
				t.Errorf("Normalize() = %q, want %q", res.Text, tt.want)
			}
			if res.Truncated {
				t.Errorf("unexpected truncation at %d", res.TruncatedAt)
			}
		})
	}
}

func TestNormalize_ShallowLineTruncates(t *testing.T) {
	lines := []string{
		"#   Base is two spaces deep.",
		"#     deeper is fine",
		"# shallower ends it",
		"#   never reached",
	}

	res := Normalize(lines)
	if !res.Truncated {
		t.Fatal("expected truncation")
	}
	if res.TruncatedAt != 2 {
		t.Errorf("TruncatedAt = %d, want 2", res.TruncatedAt)
	}
	if want := "Base is two spaces deep.\n  deeper is fine"; res.Text != want {
		t.Errorf("Text = %q, want %q", res.Text, want)
	}

	w := res.Warning()
	if w == nil || w.Code != errors.CommentIndentation {
		t.Fatalf("Warning() = %v, want COMMENT_INDENTATION", w)
	}
	if errors.IsFatal(w.Code) {
		t.Error("indentation warning must not be fatal")
	}
}

func TestNormalize_NoWarningWithoutTruncation(t *testing.T) {
	if w := Normalize([]string{"# fine"}).Warning(); w != nil {
		t.Errorf("Warning() = %v, want nil", w)
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	runs := [][]string{
		{"# Simple."},
		{"# Para one.", "#", "#   indented", "#     more", "# back"},
		{"// x", "//", "//", "// y"},
		{"/**", " * Decorated", " *   list", " */"},
		{"/* Opener text", "     continuation", "       deeper", "*/"},
		{"#    starts deep", "#      deeper"},
	}

	for _, run := range runs {
		first := Normalize(run).Text

		if again := Dedent(first); again != first {
			t.Errorf("Dedent not a fixed point:\n first: %q\n again: %q", first, again)
		}
		if again := Normalize(strings.Split(first, "\n")).Text; again != first {
			t.Errorf("Normalize of plain text changed it:\n first: %q\n again: %q", first, again)
		}

		recommented := make([]string, 0)
		for _, l := range strings.Split(first, "\n") {
			if l == "" {
				recommented = append(recommented, "#")
			} else {
				recommented = append(recommented, "# "+l)
			}
		}
		if again := Normalize(recommented).Text; again != first {
			t.Errorf("re-commented run changed:\n first: %q\n again: %q", first, again)
		}
	}
}

func TestStyleOf(t *testing.T) {
	tests := []struct {
		raw  string
		want Style
	}{
		{"# x", StyleHash},
		{"   // x", StyleSlash},
		{"/* x */", StyleBlock},
		{"resource", StyleNone},
	}
	for _, tt := range tests {
		if got := StyleOf(tt.raw); got != tt.want {
			t.Errorf("StyleOf(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

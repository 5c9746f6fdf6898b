package render

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRenderEmbeddedPage(t *testing.T) {
	t.Parallel()

	engine, err := New(WithGlobalData(map[string]any{"serviceName": "Licensing service"}))
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}

	out, err := engine.RenderString("page", map[string]any{
		"action": "/licence/full-name?visit=default",
		"page": map[string]any{
			"Title": "What is your name?",
			"Components": []map[string]any{
				{"Name": "fullName", "Title": "Full name", "Value": "Ada Lovelace"},
			},
			"Errors": []map[string]any{
				{"Name": "fullName", "Message": "Full name is required"},
			},
		},
	})
	if err != nil {
		t.Fatalf("RenderString() returned error: %v", err)
	}

	for _, want := range []string{
		"Licensing service",
		"What is your name?",
		`action="/licence/full-name?visit=default"`,
		`value="Ada Lovelace"`,
		"There is a problem",
		"Full name is required",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderSelectItems(t *testing.T) {
	t.Parallel()

	engine, err := New()
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}

	out, err := engine.RenderString("page", map[string]any{
		"page": map[string]any{
			"Title": "Which licence do you want?",
			"Components": []map[string]any{
				{
					"Name":  "licenceType",
					"Title": "Licence type",
					"Items": []map[string]any{
						{"Text": "Standard", "Value": "standard"},
						{"Text": "Premium", "Value": "premium", "Selected": true},
					},
				},
			},
		},
	})
	if err != nil {
		t.Fatalf("RenderString() returned error: %v", err)
	}

	if !strings.Contains(out, `<option value="premium" selected>Premium</option>`) {
		t.Fatalf("selected option missing:\n%s", out)
	}
}

func TestRenderCompoundDateParts(t *testing.T) {
	t.Parallel()

	engine, err := New()
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}

	out, err := engine.RenderString("page", map[string]any{
		"page": map[string]any{
			"Title": "What is your date of birth?",
			"Components": []map[string]any{
				{
					"Name":  "dob",
					"Title": "Date of birth",
					"Parts": []map[string]any{
						{"Key": "dob__day", "Label": "Day", "Value": "10"},
						{"Key": "dob__month", "Label": "Month", "Value": "12"},
						{"Key": "dob__year", "Label": "Year"},
					},
				},
			},
		},
	})
	if err != nil {
		t.Fatalf("RenderString() returned error: %v", err)
	}

	for _, want := range []string{
		`name="dob__day" value="10"`,
		`name="dob__month" value="12"`,
		`name="dob__year" value=""`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
	// The compound field must not collapse into a single input.
	if strings.Contains(out, `name="dob"`) {
		t.Fatalf("compound field rendered a single input:\n%s", out)
	}
}

func TestRenderCheckboxesSelectMultiple(t *testing.T) {
	t.Parallel()

	engine, err := New()
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}

	out, err := engine.RenderString("page", map[string]any{
		"page": map[string]any{
			"Title": "Which colours do you like?",
			"Components": []map[string]any{
				{
					"Name":     "colours",
					"Title":    "Colours",
					"Multiple": true,
					"Items": []map[string]any{
						{"Text": "Red", "Value": "red", "Selected": true},
						{"Text": "Blue", "Value": "blue"},
					},
				},
			},
		},
	})
	if err != nil {
		t.Fatalf("RenderString() returned error: %v", err)
	}

	if !strings.Contains(out, `name="colours" multiple`) {
		t.Fatalf("checkbox select missing multiple:\n%s", out)
	}
	if strings.Contains(out, `<option value=""></option>`) {
		t.Fatalf("multiple select carries an empty option:\n%s", out)
	}
}

func TestRenderBaseDirOverridesEmbedded(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	custom := `{{ greeting }}, {{ serviceName }}`
	if err := os.WriteFile(filepath.Join(dir, "page.html"), []byte(custom), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	engine, err := New(
		WithBaseDir(dir),
		WithGlobalData(map[string]any{"serviceName": "Licensing service"}),
	)
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}

	out, err := engine.RenderString("page", map[string]any{"greeting": "Hello"})
	if err != nil {
		t.Fatalf("RenderString() returned error: %v", err)
	}
	if out != "Hello, Licensing service" {
		t.Fatalf("output = %q", out)
	}
}

func TestRenderUnknownTemplate(t *testing.T) {
	t.Parallel()

	engine, err := New()
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}
	if _, err := engine.RenderString("no-such-template", nil); err == nil {
		t.Fatal("RenderString() accepted an unknown template")
	}
}

func TestRenderCachesCompiledTemplates(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "page.html")
	if err := os.WriteFile(path, []byte("first"), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	engine, err := New(WithBaseDir(dir))
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}
	if _, err := engine.RenderString("page", nil); err != nil {
		t.Fatalf("RenderString() returned error: %v", err)
	}

	// A rewrite on disk is not picked up; the compiled template is cached.
	if err := os.WriteFile(path, []byte("second"), 0o600); err != nil {
		t.Fatalf("rewrite fixture: %v", err)
	}
	out, err := engine.RenderString("page", nil)
	if err != nil {
		t.Fatalf("RenderString() returned error: %v", err)
	}
	if out != "first" {
		t.Fatalf("output = %q, want cached first", out)
	}
}

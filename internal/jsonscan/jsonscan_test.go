package jsonscan

import (
	"errors"
	"testing"
)

func TestFirstObjectPlain(t *testing.T) {
	t.Parallel()

	got, err := FirstObject(`{"a": 1}`)
	if err != nil {
		t.Fatalf("FirstObject returned error: %v", err)
	}
	if got != `{"a": 1}` {
		t.Fatalf("unexpected span: %s", got)
	}
}

func TestFirstObjectSurroundedByProse(t *testing.T) {
	t.Parallel()

	input := "Sure, here is the result:\n```json\n{\"newsletters\": [{\"newsletter_id\": 1}]}\n```\nLet me know!"
	got, err := FirstObject(input)
	if err != nil {
		t.Fatalf("FirstObject returned error: %v", err)
	}
	if got != `{"newsletters": [{"newsletter_id": 1}]}` {
		t.Fatalf("unexpected span: %s", got)
	}
}

func TestFirstObjectBracesInsideStrings(t *testing.T) {
	t.Parallel()

	input := `{"summary": "uses {braces} and a quote \" inside", "genre": "Technology"}`
	got, err := FirstObject(input)
	if err != nil {
		t.Fatalf("FirstObject returned error: %v", err)
	}
	if got != input {
		t.Fatalf("unexpected span: %s", got)
	}
}

func TestFirstObjectNested(t *testing.T) {
	t.Parallel()

	input := `prefix {"outer": {"inner": {"deep": true}}} {"second": 2}`
	got, err := FirstObject(input)
	if err != nil {
		t.Fatalf("FirstObject returned error: %v", err)
	}
	if got != `{"outer": {"inner": {"deep": true}}}` {
		t.Fatalf("unexpected span: %s", got)
	}
}

func TestFirstObjectMissing(t *testing.T) {
	t.Parallel()

	for _, input := range []string{"", "no json here", "truncated {\"a\": 1"} {
		if _, err := FirstObject(input); !errors.Is(err, ErrNoObject) {
			t.Fatalf("input %q: expected ErrNoObject, got %v", input, err)
		}
	}
}

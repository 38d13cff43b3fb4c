package ast

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestWordStringPanicsBeforeExpansion(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("String() on a non-literal Word did not panic")
		}
	}()
	Word{Kind: WordPlain, Text: "foo"}.String()
}

func TestWordStringOnLiteral(t *testing.T) {
	w := Literal("bar")
	if got := w.String(); got != "bar" {
		t.Errorf("String() = %q, want %q", got, "bar")
	}
}

func TestWordSliceMarshalsWithLiteralKind(t *testing.T) {
	words := []Word{Literal("a"), Literal("b")}
	b, err := json.Marshal(words)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var got []map[string]any
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	want := []map[string]any{
		{"kind": "LITERAL", "text": "a"},
		{"kind": "LITERAL", "text": "b"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("marshaled word slice mismatch (-want +got):\n%s", diff)
	}
}

func TestMarshalJSONDiscriminator(t *testing.T) {
	tests := []struct {
		name string
		node Node
		want string
	}{
		{"Command", &Command{Name: Literal("echo")}, "Command"},
		{"Pipeline", &Pipeline{Commands: []*Command{{Name: Literal("ps")}}}, "Pipeline"},
		{"BinaryOp", &BinaryOp{Op: "&&", Left: &Command{Name: Literal("a")}, Right: &Command{Name: Literal("b")}}, "BinaryOp"},
		{"Assignment", &Assignment{Name: "X"}, "Assignment"},
		{"AssignmentList", &AssignmentList{Assignments: []*Assignment{{Name: "X"}}}, "AssignmentList"},
		{"VarRef", &VarRef{Name: "X"}, "VarRef"},
		{"If", &If{Condition: &Command{Name: Literal("true")}, Consequent: &Command{Name: Literal("echo")}}, "If"},
		{"Block", &Block{Statements: []Node{&Command{Name: Literal("a")}}}, "Block"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := json.Marshal(tt.node)
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}
			var decoded map[string]any
			if err := json.Unmarshal(b, &decoded); err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			if diff := cmp.Diff(tt.want, decoded["type"]); diff != "" {
				t.Errorf("type discriminator mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDumpNil(t *testing.T) {
	b, err := Dump(nil)
	if err != nil {
		t.Fatalf("Dump: %v", err)
	}
	if string(b) != "null" {
		t.Errorf("Dump(nil) = %q, want null", b)
	}
}

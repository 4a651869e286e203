package config

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestMarshalJSON(t *testing.T) {
	tree := ParseText("zeta\n b \"q\"\n  c\nalpha\n", 1).Tree

	got, err := json.Marshal(tree)
	if err != nil {
		t.Fatal(err)
	}
	// Configuration order, not sorted.
	want := `{"zeta":{"b \"q\"":{"c":{}}},"alpha":{}}`
	if string(got) != want {
		t.Errorf("tree JSON = %s, want %s", got, want)
	}

	got, err = json.Marshal(tree.Lookup([]string{"zeta"}))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `{"b \"q\"":{"c":{}}}` {
		t.Errorf("node JSON = %s", got)
	}

	var nilTree *ConfigTree
	if got, _ := json.Marshal(nilTree); string(got) != "{}" {
		t.Errorf("nil tree JSON = %s", got)
	}
	if got, _ := json.Marshal(NewConfigTree()); string(got) != "{}" {
		t.Errorf("empty tree JSON = %s", got)
	}
}

func TestToMap(t *testing.T) {
	tree := ParseText("a\n b\nc\n", 1).Tree
	want := map[string]any{
		"a": map[string]any{"b": map[string]any{}},
		"c": map[string]any{},
	}
	if got := tree.ToMap(); !reflect.DeepEqual(got, want) {
		t.Errorf("ToMap() = %v, want %v", got, want)
	}
}

package filters

import (
	"reflect"
	"testing"
)

const sample = `hostname spine1
interface Ethernet1
   ip address 10.0.0.1/31
interface Ethernet2
   ip address 10.0.0.3/31
`

func TestFindAll(t *testing.T) {
	got, err := FindAll(sample, `^interface (\S+)`)
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"Ethernet1", "Ethernet2"}; !reflect.DeepEqual(got, want) {
		t.Errorf("FindAll = %q, want %q", got, want)
	}

	got, err = FindAll(sample, `\d+\.\d+\.\d+\.\d+/\d+`)
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"10.0.0.1/31", "10.0.0.3/31"}; !reflect.DeepEqual(got, want) {
		t.Errorf("FindAll = %q, want %q", got, want)
	}

	got, err = FindAll(sample, `^router`)
	if err != nil || len(got) != 0 {
		t.Errorf("FindAll no match = %q, %v", got, err)
	}
}

func TestFindAllMultipleGroups(t *testing.T) {
	const pattern = `^interface (\S+)\n\s+ip address (\S+)/(\d+)`
	groups, err := FindAllGroups(sample, pattern)
	if err != nil {
		t.Fatal(err)
	}
	want := [][]string{
		{"Ethernet1", "10.0.0.1", "31"},
		{"Ethernet2", "10.0.0.3", "31"},
	}
	if !reflect.DeepEqual(groups, want) {
		t.Errorf("FindAllGroups = %q, want %q", groups, want)
	}

	got, err := FindAll(sample, pattern)
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"Ethernet1\t10.0.0.1\t31", "Ethernet2\t10.0.0.3\t31"}; !reflect.DeepEqual(got, want) {
		t.Errorf("FindAll = %q, want %q", got, want)
	}

	// An optional group that does not take part is empty.
	groups, err = FindAllGroups("a1\nb\n", `^([a-z])(\d)?$`)
	if err != nil {
		t.Fatal(err)
	}
	if want := [][]string{{"a", "1"}, {"b", ""}}; !reflect.DeepEqual(groups, want) {
		t.Errorf("FindAllGroups optional = %q, want %q", groups, want)
	}

	out, found, err := Default().Apply("re_findall", sample, `^interface (\S+)\n\s+ip address (\S+)`, 0)
	if err != nil || !found {
		t.Fatalf("re_findall: %v, %v", found, err)
	}
	if want := []string{"Ethernet1\t10.0.0.1/31", "Ethernet2\t10.0.0.3/31"}; !reflect.DeepEqual(out, want) {
		t.Errorf("re_findall = %q, want %q", out, want)
	}
}

func TestFindAllInvalid(t *testing.T) {
	if _, err := FindAll(sample, `(`); err == nil {
		t.Error("expected error for invalid pattern")
	}
}

func TestSearch(t *testing.T) {
	m, err := Search(sample, `^hostname (\S+)$`)
	if err != nil {
		t.Fatal(err)
	}
	if m == nil {
		t.Fatal("no match")
	}
	if m.Text != "hostname spine1" || m.Start != 0 || m.End != 15 {
		t.Errorf("match = %+v", m)
	}
	if !reflect.DeepEqual(m.Groups, []string{"spine1"}) {
		t.Errorf("groups = %q", m.Groups)
	}

	m, err = Search(sample, `^vlan`)
	if err != nil || m != nil {
		t.Errorf("Search no match = %+v, %v", m, err)
	}
}

func TestSearchOptionalGroup(t *testing.T) {
	m, err := Search("abc", `a(x)?b`)
	if err != nil || m == nil {
		t.Fatalf("Search = %v, %v", m, err)
	}
	if !reflect.DeepEqual(m.Groups, []string{""}) {
		t.Errorf("groups = %q, want one empty group", m.Groups)
	}
}

func TestDefaultRegistry(t *testing.T) {
	r := Default()
	if want := []string{"config_block", "re_findall", "re_search"}; !reflect.DeepEqual(r.Names(), want) {
		t.Errorf("Names = %q, want %q", r.Names(), want)
	}

	tests := []struct {
		name, arg string
		indent    int
		want      []string
		found     bool
	}{
		{"config_block", "interface Ethernet2", 3, []string{"ip address 10.0.0.3/31"}, true},
		{"config_block", "interface Ethernet9", 3, nil, false},
		{"re_findall", `^interface (\S+)`, 0, []string{"Ethernet1", "Ethernet2"}, true},
		{"re_findall", `^vlan`, 0, []string{}, false},
		{"re_search", `^hostname (\S+)`, 0, []string{"hostname spine1", "spine1"}, true},
		{"re_search", `^vlan`, 0, nil, false},
	}
	for _, tt := range tests {
		got, found, err := r.Apply(tt.name, sample, tt.arg, tt.indent)
		if err != nil {
			t.Errorf("%s(%q): %v", tt.name, tt.arg, err)
			continue
		}
		if found != tt.found || !reflect.DeepEqual(got, tt.want) {
			t.Errorf("%s(%q) = %q, %v; want %q, %v", tt.name, tt.arg, got, found, tt.want, tt.found)
		}
	}

	if _, _, err := r.Apply("nope", sample, "", 1); err == nil {
		t.Error("expected error for unknown filter")
	}
}

func TestParsePipe(t *testing.T) {
	tests := []struct {
		line string
		cmd  string
		pipe Pipe
		ok   bool
	}{
		{"show block r1 a | match vlan", "show block r1 a", Pipe{PipeMatch, "vlan"}, true},
		{"show devices | count", "show devices", Pipe{PipeCount, ""}, true},
		{"show x | match a | last 3", "show x | match a", Pipe{PipeLast, "3"}, true},
		{"show x | bogus", "show x | bogus", Pipe{}, false},
		{"show x", "show x", Pipe{}, false},
	}
	for _, tt := range tests {
		cmd, p, ok := ParsePipe(tt.line)
		if cmd != tt.cmd || p != tt.pipe || ok != tt.ok {
			t.Errorf("ParsePipe(%q) = %q, %+v, %v; want %q, %+v, %v",
				tt.line, cmd, p, ok, tt.cmd, tt.pipe, tt.ok)
		}
	}
}

func TestPipeApply(t *testing.T) {
	lines := []string{"Alpha", "beta", "Gamma", "delta", "epsilon"}

	tests := []struct {
		pipe Pipe
		want []string
	}{
		{Pipe{PipeMatch, "ta"}, []string{"beta", "delta"}},
		{Pipe{PipeGrep, "ALPHA"}, []string{"Alpha"}},
		{Pipe{PipeExcept, "a"}, []string{"epsilon"}},
		{Pipe{PipeFind, "gamma"}, []string{"Gamma", "delta", "epsilon"}},
		{Pipe{PipeCount, ""}, []string{"Count: 5 lines"}},
		{Pipe{PipeLast, "2"}, []string{"delta", "epsilon"}},
		{Pipe{PipeLast, "99"}, lines},
		{Pipe{PipeNoMore, ""}, lines},
	}
	for _, tt := range tests {
		if got := tt.pipe.Apply(lines); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("%+v.Apply = %q, want %q", tt.pipe, got, tt.want)
		}
	}
}

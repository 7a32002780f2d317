package ops

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestFormatHelp(t *testing.T) {
	infos := []Info{
		{
			Names:  []string{"math.add"},
			Inputs: []Param{{Name: "a", Type: TypeNumber}, {Name: "b", Type: TypeNumber}},
			Output: Param{Name: "out", Type: TypeNumber},
		},
		{
			Names:       []string{"filter", "filter.default"},
			Description: "Filters things.",
			Inputs:      []Param{{Name: "in"}},
			Output:      Param{Name: "out", Type: TypeArray},
			Forms:       []Form{FormFunction},
		},
	}

	got, err := FormatHelp(infos, "math.add")
	if err != nil {
		t.Fatalf("FormatHelp() error = %v", err)
	}
	want := "math.add:\n\t> math.add(a: number, b: number) -> number"
	if got != want {
		t.Errorf("FormatHelp() = %q, want %q", got, want)
	}

	all, err := FormatHelp(infos, "")
	if err != nil {
		t.Fatalf("FormatHelp(all) error = %v", err)
	}
	if !strings.HasPrefix(all, "Operations (3):") {
		t.Errorf("FormatHelp(all) header = %q", all)
	}
	if strings.Index(all, "> filter(") > strings.Index(all, "> math.add(") {
		t.Error("FormatHelp(all) is not sorted by name")
	}

	verbose, err := FormatHelpVerbose(infos, "filter")
	if err != nil {
		t.Fatalf("FormatHelpVerbose() error = %v", err)
	}
	for _, s := range []string{"Filters things.", "Aliases: filter.default", "Forms: function", "Input in: any", "Output out: array"} {
		if !strings.Contains(verbose, s) {
			t.Errorf("FormatHelpVerbose() missing %q in %q", s, verbose)
		}
	}

	if _, err := FormatHelp(infos, "nope"); !errors.Is(err, ErrOpNotFound) {
		t.Errorf("FormatHelp(nope) error = %v, want not found", err)
	}
	if _, err := FormatHelpVerbose(infos, "nope"); !errors.Is(err, ErrOpNotFound) {
		t.Errorf("FormatHelpVerbose(nope) error = %v, want not found", err)
	}
}

func TestRegistryHelp(t *testing.T) {
	ctx := context.Background()
	r := NewBuiltinRegistry()

	h, err := r.Help(ctx, "create.img")
	if err != nil {
		t.Fatalf("Help() error = %v", err)
	}
	if strings.Count(h, "\n\t> ") != 2 {
		t.Errorf("Help(create.img) should list both overloads: %q", h)
	}

	v, err := r.HelpVerbose(ctx, "")
	if err != nil {
		t.Fatalf("HelpVerbose() error = %v", err)
	}
	if !strings.Contains(v, "identity(input: any) -> any") {
		t.Errorf("HelpVerbose() missing identity: %q", v)
	}
}

func TestNames(t *testing.T) {
	infos := []Info{
		{Names: []string{"a.b", "c"}},
		{Names: []string{"c", "d"}},
	}
	got := Names(infos)
	want := []string{"a.b", "c", "d"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Names() = %v, want %v", got, want)
	}
}

package ops

import (
	"fmt"
	"sort"
	"strings"
)

// Signature renders an operation descriptor as "name(in: type, ...) -> type".
func Signature(name string, info Info) string {
	params := make([]string, len(info.Inputs))
	for i, p := range info.Inputs {
		params[i] = formatParam(p)
	}
	sig := fmt.Sprintf("%s(%s)", name, strings.Join(params, ", "))
	if info.Output.Type != "" || info.Output.Name != "" {
		sig += " -> " + typeOf(info.Output)
	}
	return sig
}

func formatParam(p Param) string {
	if p.Name == "" {
		return typeOf(p)
	}
	return p.Name + ": " + typeOf(p)
}

func typeOf(p Param) string {
	if p.Type == "" {
		return TypeAny
	}
	return p.Type
}

type entry struct {
	name string
	info Info
}

// entries flattens infos into one entry per name, sorted by name. Entries
// sharing a name keep their registration order.
func entries(infos []Info, name string) []entry {
	var out []entry
	for _, info := range infos {
		for _, n := range info.Names {
			if name == "" || n == name {
				out = append(out, entry{name: n, info: info})
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// FormatHelp summarizes the operation called name, or every operation when
// name is empty. An unknown name yields ErrOpNotFound.
func FormatHelp(infos []Info, name string) (string, error) {
	es := entries(infos, name)
	if name != "" && len(es) == 0 {
		return "", NewDispatchError(CodeNotFound, name, "operation not found", nil)
	}

	var b strings.Builder
	if name == "" {
		fmt.Fprintf(&b, "Operations (%d):", len(es))
	} else {
		fmt.Fprintf(&b, "%s:", name)
	}
	for _, e := range es {
		fmt.Fprintf(&b, "\n\t> %s", Signature(e.name, e.info))
	}
	return b.String(), nil
}

// FormatHelpVerbose is FormatHelp with descriptions, aliases, supported
// forms and parameter detail.
func FormatHelpVerbose(infos []Info, name string) (string, error) {
	es := entries(infos, name)
	if name != "" && len(es) == 0 {
		return "", NewDispatchError(CodeNotFound, name, "operation not found", nil)
	}

	var b strings.Builder
	if name == "" {
		fmt.Fprintf(&b, "Operations (%d):", len(es))
	} else {
		fmt.Fprintf(&b, "%s:", name)
	}
	for _, e := range es {
		fmt.Fprintf(&b, "\n\t> %s", Signature(e.name, e.info))
		if e.info.Description != "" {
			fmt.Fprintf(&b, "\n\t\t%s", e.info.Description)
		}
		if aliases := otherNames(e.info.Names, e.name); len(aliases) > 0 {
			fmt.Fprintf(&b, "\n\t\tAliases: %s", strings.Join(aliases, ", "))
		}
		if len(e.info.Forms) > 0 {
			forms := make([]string, len(e.info.Forms))
			for i, f := range e.info.Forms {
				forms[i] = string(f)
			}
			fmt.Fprintf(&b, "\n\t\tForms: %s", strings.Join(forms, ", "))
		}
		for _, p := range e.info.Inputs {
			fmt.Fprintf(&b, "\n\t\tInput %s", formatParam(p))
			if p.Description != "" {
				fmt.Fprintf(&b, " (%s)", p.Description)
			}
		}
		fmt.Fprintf(&b, "\n\t\tOutput %s", formatParam(e.info.Output))
		if e.info.Output.Description != "" {
			fmt.Fprintf(&b, " (%s)", e.info.Output.Description)
		}
	}
	return b.String(), nil
}

func otherNames(names []string, name string) []string {
	var out []string
	for _, n := range names {
		if n != name {
			out = append(out, n)
		}
	}
	return out
}

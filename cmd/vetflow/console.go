package main

import (
	"bufio"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/nomis52/vetflow/archetype"
	"github.com/nomis52/vetflow/ui"
)

// console answers dialogs from a terminal.
//
// Confirm and print dialogs take one of the offered actions. Browse dialogs
// also take the number of a candidate, which selects it. Edit dialogs take
// field=value lines, then an action.
type console struct {
	in  *bufio.Scanner
	out io.Writer
}

func newConsole(in io.Reader, out io.Writer) *console {
	return &console{in: bufio.NewScanner(in), out: out}
}

// prompt asks the user to answer d. End of input closes the dialog.
func (c *console) prompt(d ui.Dialog) ui.Response {
	fmt.Fprintf(c.out, "\n== %s ==\n", d.Title)
	if d.Message != "" {
		fmt.Fprintln(c.out, d.Message)
	}

	var fields map[string]any
	switch d.Type {
	case ui.DialogBrowse:
		for i, obj := range d.Candidates {
			fmt.Fprintf(c.out, "  %d) %s\n", i+1, describe(obj))
		}
	case ui.DialogEdit:
		c.showFields(d.Object)
		fields = make(map[string]any)
	}

	for {
		fmt.Fprintf(c.out, "%s> ", joinActions(d.Actions))
		if !c.in.Scan() {
			return ui.Response{Action: ui.Close}
		}
		line := strings.TrimSpace(c.in.Text())
		if line == "" {
			continue
		}

		if d.Type == ui.DialogEdit {
			if name, value, ok := strings.Cut(line, "="); ok {
				fields[strings.TrimSpace(name)] = parseValue(strings.TrimSpace(value))
				continue
			}
		}
		if d.Type == ui.DialogBrowse {
			if n, err := strconv.Atoi(line); err == nil {
				if n < 1 || n > len(d.Candidates) {
					fmt.Fprintf(c.out, "choose 1 to %d\n", len(d.Candidates))
					continue
				}
				return ui.Response{Action: ui.OK, Selected: d.Candidates[n-1].Reference()}
			}
		}

		action := ui.Action(strings.ToLower(line))
		if action != ui.Close && !slices.Contains(d.Actions, action) {
			fmt.Fprintf(c.out, "unknown answer %q\n", line)
			continue
		}
		if action == ui.OK && d.Type == ui.DialogBrowse {
			fmt.Fprintln(c.out, "choose a number")
			continue
		}
		return ui.Response{Action: action, Fields: fields}
	}
}

func (c *console) showFields(obj archetype.Object) {
	e, ok := obj.(*archetype.Entity)
	if !ok {
		return
	}
	fields := e.Fields()
	for _, name := range slices.Sorted(maps.Keys(fields)) {
		fmt.Fprintf(c.out, "  %s = %v\n", name, fields[name])
	}
}

func describe(obj archetype.Object) string {
	if e, ok := obj.(*archetype.Entity); ok && e.Name() != "" {
		return e.Name() + " (" + obj.Reference().String() + ")"
	}
	return obj.Reference().String()
}

func joinActions(actions []ui.Action) string {
	names := make([]string, len(actions))
	for i, a := range actions {
		names[i] = string(a)
	}
	return strings.Join(names, "/")
}

// parseValue reads numbers and booleans as such; anything else is a string.
func parseValue(s string) any {
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}

// showErrors prints errors past the first shown and returns the new count.
func (c *console) showErrors(errs []ui.ErrorEntry, shown int) int {
	if shown > len(errs) {
		shown = 0
	}
	for _, e := range errs[shown:] {
		fmt.Fprintf(c.out, "! %s: %s\n", e.Title, e.Message)
	}
	return len(errs)
}

package tui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/matheus3301/pulse/internal/conversation"
)

// Command is a composer line starting with '/'.
type Command struct {
	Name string
	Args string
}

// ParseInput splits a composer line into either a command or message text.
// A leading "//" escapes the slash, so "//shrug" sends "/shrug".
func ParseInput(line string) (cmd Command, text string, isCommand bool) {
	if strings.HasPrefix(line, "//") {
		return Command{}, line[1:], false
	}
	rest, ok := strings.CutPrefix(line, "/")
	if !ok {
		return Command{}, line, false
	}
	name, args, _ := strings.Cut(strings.TrimSpace(rest), " ")
	return Command{Name: strings.ToLower(name), Args: strings.TrimSpace(args)}, "", true
}

type commandSpec struct {
	name      string
	usage     string
	needsArgs bool
	run       func(a *App, v *conversation.View, args string)
}

// help has no run func; runCommand renders it from this table.
var commands = []commandSpec{
	{name: "delete", usage: "/delete <message-id>", needsArgs: true, run: (*App).deleteMessage},
	{name: "read", usage: "/read", run: func(a *App, _ *conversation.View, _ string) { a.markRead() }},
	{name: "search", usage: "/search [query]", run: (*App).searchFor},
	{name: "help", usage: "/help"},
}

// lookupCommand resolves name exactly or by unique prefix.
func lookupCommand(name string) (commandSpec, error) {
	if name == "" {
		return commandSpec{}, errors.New("empty command, try /help")
	}
	var matches []commandSpec
	for _, c := range commands {
		if c.name == name {
			return c, nil
		}
		if strings.HasPrefix(c.name, name) {
			matches = append(matches, c)
		}
	}
	switch len(matches) {
	case 0:
		return commandSpec{}, fmt.Errorf("unknown command /%s, try /help", name)
	case 1:
		return matches[0], nil
	}
	names := make([]string, len(matches))
	for i, c := range matches {
		names[i] = "/" + c.name
	}
	return commandSpec{}, fmt.Errorf("/%s is ambiguous: %s", name, strings.Join(names, ", "))
}

func commandHelp() string {
	usages := make([]string, len(commands))
	for i, c := range commands {
		usages[i] = c.usage
	}
	return strings.Join(usages, "  ")
}

func (a *App) runCommand(v *conversation.View, cmd Command) {
	spec, err := lookupCommand(cmd.Name)
	switch {
	case err != nil:
		a.flash(err.Error(), 3*time.Second)
	case spec.needsArgs && cmd.Args == "":
		a.flash("Usage: "+spec.usage, 3*time.Second)
	case spec.run == nil:
		a.flash(commandHelp(), 8*time.Second)
	default:
		spec.run(a, v, cmd.Args)
	}
}

func (a *App) deleteMessage(v *conversation.View, id string) {
	if err := v.Delete(id); err != nil {
		a.flash("Delete failed: "+err.Error(), 5*time.Second)
	}
}

func (a *App) searchFor(_ *conversation.View, query string) {
	a.showSearch()
	a.searchV.Input().SetText(query)
}

// markRead sends receipts for everything unread in the open conversation.
func (a *App) markRead() {
	v := a.vm.Active()
	if v == nil {
		return
	}
	go func() {
		n := v.MarkAllRead()
		a.flash(fmt.Sprintf("Marked %d messages read", n), 3*time.Second)
	}()
}

package cmd

import (
	"sort"
	"strings"

	"github.com/fzft/go-openset/node"
)

type CliHelpType uint8

const (
	CliHelpCommand CliHelpType = iota
	CliHelpGroup
)

// commandDocs documentation info used for help command.
type commandDocs struct {
	name    string
	params  string
	summary string
	group   string
	since   string
}

type CliHelpEntry struct {
	tp   CliHelpType
	argv []string
	full string
	docs commandDocs
}

// buildHelpEntries creates one entry per command plus one per group
// ("@set"), in name order.
func buildHelpEntries(commands []node.RedisCommand) []CliHelpEntry {
	var entries []CliHelpEntry
	groups := map[string]bool{}

	for _, cmd := range commands {
		group := cmd.Group.String()
		groups[group] = true
		entries = append(entries, CliHelpEntry{
			tp:   CliHelpCommand,
			argv: []string{cmd.Name},
			full: cmd.Name,
			docs: commandDocs{
				name:    cmd.Name,
				params:  cmd.Args,
				summary: cmd.Summary,
				group:   group,
				since:   cmd.Since,
			},
		})
	}

	names := make([]string, 0, len(groups))
	for g := range groups {
		names = append(names, g)
	}
	sort.Strings(names)
	for _, g := range names {
		entries = append(entries, CliHelpEntry{
			tp:   CliHelpGroup,
			argv: []string{"@" + g},
			full: "@" + g,
			docs: commandDocs{name: g},
		})
	}
	return entries
}

// completionWords returns the words offered by tab completion.
func completionWords(entries []CliHelpEntry) []string {
	words := []string{"HELP", "QUIT", "EXIT", "CLEAR", "CONNECT"}
	for _, e := range entries {
		if e.tp == CliHelpCommand {
			words = append(words, e.full)
		}
	}
	return words
}

// matchHelp returns the command entries selected by a help topic: either a
// command name or a @group.
func matchHelp(entries []CliHelpEntry, topic string) []CliHelpEntry {
	var out []CliHelpEntry
	if strings.HasPrefix(topic, "@") {
		group := strings.ToLower(topic[1:])
		for _, e := range entries {
			if e.tp == CliHelpCommand && e.docs.group == group {
				out = append(out, e)
			}
		}
		return out
	}
	for _, e := range entries {
		if e.tp == CliHelpCommand && strings.EqualFold(e.full, topic) {
			out = append(out, e)
		}
	}
	return out
}

package repl

import (
	"sort"
	"strings"
)

// commandHelp describes each shell command.
var commandHelp = map[string]string{
	"login":   "login USERNAME PASSWORD  sign in and store the token",
	"logout":  "logout                   end the session",
	"whoami":  "whoami                   show the user (cached for a short while)",
	"refresh": "refresh                  refetch the user from the server",
	"status":  "status                   show session and live channel state",
	"history": "history                  list previous commands",
	"help":    "help [PREFIX]            list commands",
	"exit":    "exit                     leave the shell (also quit, Ctrl+D)",
}

// Completer provides command completion for the REPL.
type Completer struct {
	commands []string
}

// NewCompleter creates a new Completer.
func NewCompleter() *Completer {
	commands := make([]string, 0, len(commandHelp)+1)
	for name := range commandHelp {
		commands = append(commands, name)
	}
	commands = append(commands, "quit")
	sort.Strings(commands)
	return &Completer{commands: commands}
}

// Complete returns the commands starting with prefix, sorted.
func (c *Completer) Complete(prefix string) []string {
	var suggestions []string
	for _, cmd := range c.commands {
		if strings.HasPrefix(cmd, prefix) {
			suggestions = append(suggestions, cmd)
		}
	}
	return suggestions
}

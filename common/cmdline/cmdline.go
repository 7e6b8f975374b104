// Package cmdline builds shell command lines for remote execution. Every
// token is quoted unless it is added with Raw, so values taken from
// configuration or test data are never interpreted by the remote shell.
package cmdline

import (
	"strings"

	"github.com/alessio/shellescape"
)

// Cmd accumulates tokens of a single shell command line.
type Cmd struct {
	tokens []string
}

// New starts a command line, args are quoted.
func New(args ...string) *Cmd {
	c := &Cmd{}
	return c.Arg(args...)
}

// Arg appends quoted tokens.
func (c *Cmd) Arg(args ...string) *Cmd {
	for _, a := range args {
		c.tokens = append(c.tokens, shellescape.Quote(a))
	}
	return c
}

// ArgIf appends quoted tokens when cond holds.
func (c *Cmd) ArgIf(cond bool, args ...string) *Cmd {
	if cond {
		c.Arg(args...)
	}
	return c
}

// Opt appends "name value" when value is not empty.
func (c *Cmd) Opt(name, value string) *Cmd {
	if value != "" {
		c.Arg(name, value)
	}
	return c
}

// Raw appends a shell fragment verbatim, for operators and redirections.
func (c *Cmd) Raw(fragment string) *Cmd {
	c.tokens = append(c.tokens, fragment)
	return c
}

// Pipe appends "| next".
func (c *Cmd) Pipe(next *Cmd) *Cmd {
	c.tokens = append(c.tokens, "|", next.String())
	return c
}

// And appends "&& next".
func (c *Cmd) And(next *Cmd) *Cmd {
	c.tokens = append(c.tokens, "&&", next.String())
	return c
}

// Or appends "|| next".
func (c *Cmd) Or(next *Cmd) *Cmd {
	c.tokens = append(c.tokens, "||", next.String())
	return c
}

func (c *Cmd) String() string {
	return strings.Join(c.tokens, " ")
}

// Quote quotes a single token.
func Quote(s string) string {
	return shellescape.Quote(s)
}

// Join quotes and joins tokens.
func Join(args ...string) string {
	return New(args...).String()
}

// ShellWrap returns `sh -c '<cmd>'`, used where a compound command must run
// as one process.
func ShellWrap(cmd string) string {
	return "sh -c " + shellescape.Quote(cmd)
}

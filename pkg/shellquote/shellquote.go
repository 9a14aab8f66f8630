// Package shellquote builds shell-pasteable command lines for logging.
package shellquote

import (
	"strings"
)

// safe holds characters that never need quoting.
const safe = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789_@%+=:,./-"

// quote returns s unchanged when it is made only of safe characters,
// otherwise a double-quoted form where \ " $ ` are escaped.
func quote(s string) string {
	if s == "" {
		return `""`
	}

	if strings.Trim(s, safe) == "" {
		return s
	}

	var b strings.Builder

	b.WriteByte('"')

	for _, r := range s {
		switch r {
		case '\\', '"', '$', '`':
			b.WriteByte('\\')
			b.WriteRune(r)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}

	b.WriteByte('"')

	return b.String()
}

// Join constructs a shell-pasteable command line from bin and args.
func Join(bin string, args []string) string {
	var cmdLine strings.Builder

	cmdLine.WriteString(quote(bin))

	for _, arg := range args {
		cmdLine.WriteByte(' ')
		cmdLine.WriteString(quote(arg))
	}

	return cmdLine.String()
}

package protocol

import "strings"

type Command string

const (
	CmdRoast  Command = "ROAST"
	CmdToggle Command = "TOGGLE"
)

// ParseCommand recognises dispatcher commands, case-insensitive.
func ParseCommand(line string) (Command, bool) {
	switch Command(strings.ToUpper(strings.TrimSpace(line))) {
	case CmdRoast:
		return CmdRoast, true
	case CmdToggle:
		return CmdToggle, true
	default:
		return "", false
	}
}

func ModeLine(name string) string {
	return "MODE:" + name
}

// OneLine collapses line breaks so a multi-line reply still travels as a
// single serial line.
func OneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

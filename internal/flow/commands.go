package flow

// Command is a fixed command token recognized by the dialogue router.
type Command string

// Command tokens, matched exactly and case-sensitively.
const (
	CmdStart          Command = "/start"
	CmdHelp           Command = "/help"
	CmdNewHabit       Command = "/newhabit"
	CmdMyHabits       Command = "/myhabits"
	CmdComplete       Command = "/complete"
	CmdDeleteHabit    Command = "/deletehabit"
	CmdStats          Command = "/stats"
	CmdAddDescription Command = "/adddescription"
)

// ParseCommand reports whether text is a recognized command token.
// Recognition is exact: no prefix matching, no case folding, no trimming.
func ParseCommand(text string) (Command, bool) {
	switch cmd := Command(text); cmd {
	case CmdStart, CmdHelp, CmdNewHabit, CmdMyHabits, CmdComplete, CmdDeleteHabit, CmdStats, CmdAddDescription:
		return cmd, true
	default:
		return "", false
	}
}

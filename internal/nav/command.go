package nav

// Command is a single-keystroke operator command.
type Command int

const (
	CmdUnknown Command = iota
	CmdToggle          // t: enter or leave manual mode
	CmdContinue        // h: carry on with the autonomous pipeline
	CmdForward         // w
	CmdReverse         // s
	CmdLeft            // a
	CmdRight           // d
	CmdScan            // m
	CmdStop            // space
	CmdSquare          // 3
	CmdObstacles       // 4
	CmdNudgeLeft       // q
	CmdNudgeRight      // e
	CmdWallFix         // f
)

var keys = map[rune]Command{
	't': CmdToggle,
	'h': CmdContinue,
	'w': CmdForward,
	's': CmdReverse,
	'a': CmdLeft,
	'd': CmdRight,
	'm': CmdScan,
	' ': CmdStop,
	'3': CmdSquare,
	'4': CmdObstacles,
	'q': CmdNudgeLeft,
	'e': CmdNudgeRight,
	'f': CmdWallFix,
}

var commandNames = map[Command]string{
	CmdUnknown:    "unknown",
	CmdToggle:     "toggle",
	CmdContinue:   "continue",
	CmdForward:    "forward",
	CmdReverse:    "reverse",
	CmdLeft:       "left",
	CmdRight:      "right",
	CmdScan:       "scan",
	CmdStop:       "stop",
	CmdSquare:     "square",
	CmdObstacles:  "obstacles",
	CmdNudgeLeft:  "nudge-left",
	CmdNudgeRight: "nudge-right",
	CmdWallFix:    "wall-fix",
}

// ParseCommand maps a keystroke to its command. Unmapped keys give
// CmdUnknown and false.
func ParseCommand(key rune) (Command, bool) {
	c, ok := keys[key]
	return c, ok
}

func (c Command) String() string {
	if s, ok := commandNames[c]; ok {
		return s
	}
	return "unknown"
}

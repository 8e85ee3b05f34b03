package terminal

type commandGroup uint8

const (
	otherCmds commandGroup = iota
	sessionCmds
	scanCmds
	dataCmds
)

type commandGroupDescription struct {
	description string
	group       commandGroup
}

var commandGroupDescriptions = []commandGroupDescription{
	{"Finding and attaching to processes", sessionCmds},
	{"Scanning and narrowing candidates", scanCmds},
	{"Reading, writing and freezing values", dataCmds},
	{"Other commands", otherCmds},
}

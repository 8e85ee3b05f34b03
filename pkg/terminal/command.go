// Package terminal implements functions for responding to user
// input and dispatching to the appropriate memscan operations.
package terminal

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/cosiner/argv"

	"github.com/memscout/memscout/pkg/memscan"
	"github.com/memscout/memscout/pkg/memscan/native"
	"github.com/memscout/memscout/pkg/proclist"
)

type cmdfunc func(t *Term, args string) error

type command struct {
	aliases        []string
	builtinAliases []string
	group          commandGroup
	helpMsg        string
	cmdFn          cmdfunc
}

// Returns true if the command string matches one of the aliases for this command
func (c command) match(cmdstr string) bool {
	for _, v := range c.aliases {
		if v == cmdstr {
			return true
		}
	}
	return false
}

// Commands represents the commands for the mscout terminal process.
type Commands struct {
	cmds []command
}

// ScanCommands returns a Commands struct with default commands defined.
func ScanCommands() *Commands {
	c := &Commands{}

	c.cmds = []command{
		{aliases: []string{"help", "h"}, cmdFn: c.help, helpMsg: `Prints the help message.

	help [command]

Type "help" followed by the name of a command for more information about it.`},
		{aliases: []string{"ps", "processes"}, group: sessionCmds, cmdFn: listProcessesCmd, helpMsg: `List running processes.

	ps [filter]

With a filter argument only processes whose executable name contains the
filter string (ignoring case) are shown.`},
		{aliases: []string{"find", "search"}, group: sessionCmds, cmdFn: findProcessCmd, helpMsg: `Search processes by executable name.

	find <name>

The match is a case-insensitive substring match. Quote the name if it
contains spaces: find "my game.exe"`},
		{aliases: []string{"attach"}, group: sessionCmds, cmdFn: attachCmd, helpMsg: `Attach to a running process.

	attach <pid>

Opens a read/write handle to the process. Attaching while already
attached detaches from the old process first.`},
		{aliases: []string{"detach"}, group: sessionCmds, cmdFn: detachCmd, helpMsg: `Detach from the attached process.

Cancels active freezes, drops the candidate set and closes the process
handle. The target process is left running.`},
		{aliases: []string{"scan", "s"}, group: scanCmds, cmdFn: scanCmd, helpMsg: `Scan the process for a value.

	scan <value> [<kind>]

Searches every readable memory region for the value and records the
addresses that hold it. Kind is one of int32, int64, float32, float64,
byte; it defaults to the kind of the previous scan, or int32. A new
scan replaces the current candidate set (the old one is kept for undo).

Matching is done at every byte offset, not just type-aligned ones, and
only the first 10MiB of oversized regions are searched.`},
		{aliases: []string{"filter", "next", "f"}, group: scanCmds, cmdFn: filterCmd, helpMsg: `Narrow the candidate set to addresses that now hold a value.

	filter <value>

Re-reads every candidate and keeps only the addresses whose current
bytes are the value. Candidates that can no longer be read are dropped.
The value kind is the kind of the scan that produced the set; changing
kind requires a new scan.`},
		{aliases: []string{"undo"}, group: scanCmds, cmdFn: undoCmd, helpMsg: `Restore the candidate set as it was before the last scan or filter.`},
		{aliases: []string{"list", "ls", "l"}, group: scanCmds, cmdFn: listCandidatesCmd, helpMsg: `List the current candidate addresses.

	list

Shows every candidate with its index and, unless disabled with the
show-match-preview configuration parameter, its current value. Output is
truncated after max-candidate-display entries.`},
		{aliases: []string{"clear"}, group: scanCmds, cmdFn: clearCmd, helpMsg: `Empty the candidate set.`},
		{aliases: []string{"read", "r"}, group: dataCmds, cmdFn: readCmd, helpMsg: `Read one value from the process.

	read <address|index>

Arguments with a 0x prefix (or containing hex digits) are absolute
addresses. A plain number is a candidate index when a candidate set
exists and an address otherwise. The value kind is the active scan
kind.`},
		{aliases: []string{"modify", "m", "set"}, group: dataCmds, cmdFn: modifyCmd, helpMsg: `Write one value into the process.

	modify <address|index> <value>

Address resolution and value kind follow the same rules as "read". The
write is applied once; use "freeze" to hold a value in place.`},
		{aliases: []string{"freeze"}, group: dataCmds, cmdFn: freezeCmd, helpMsg: `Continuously re-write a value at an address.

	freeze <address|index> <value> [seconds]

Starts a background task that re-writes the value on a fixed cadence
(the freeze-interval-ms configuration parameter, 100ms by default),
counteracting writes made by the target process itself. With a duration
the freeze stops on its own; without one (or with 0) it runs until
"unfreeze". The terminal stays usable while freezes run.

Candidate indexes are resolved to an absolute address when the freeze
starts; later scans and filters do not retarget a running freeze.`},
		{aliases: []string{"freezes"}, group: dataCmds, cmdFn: listFreezesCmd, helpMsg: `List active freeze tasks.`},
		{aliases: []string{"unfreeze"}, group: dataCmds, cmdFn: unfreezeCmd, helpMsg: `Stop freeze tasks.

	unfreeze <id|all>

The id is the one shown by "freezes".`},
		{aliases: []string{"config"}, cmdFn: configureCmd, helpMsg: `Changes configuration parameters.

	config -list

Show all configuration parameters.

	config -save

Saves the configuration file to disk, overwriting the current configuration file.

	config <parameter> <value>

Changes the value of a configuration parameter.

	config alias <command> <alias>
	config alias <alias>

Defines <alias> as an alias of <command> or deletes an alias.`},
		{aliases: []string{"source"}, cmdFn: sourceCmd, helpMsg: `Executes a file containing a list of mscout commands.

	source <path>

If path ends with the .star extension it is interpreted as a starlark
script instead. If path is a single '-' character an interactive starlark
interpreter will start instead.`},
		{aliases: []string{"transcript"}, cmdFn: transcriptCmd, helpMsg: `Appends command output to a file.

	transcript [-t] [-x] <output file>
	transcript -off

Output of mscout's commands is appended to the specified output file. If
the -t option is specified the file is truncated first. If the -x option
is specified output is suppressed from the terminal while it is written
to the file. Use "transcript -off" to stop the transcript.`},
		{aliases: []string{"exit", "quit", "q"}, cmdFn: exitCmd, helpMsg: `Exit the terminal, detaching first if attached.`},
	}

	sort.Sort(byFirstAlias(c.cmds))
	return c
}

// byFirstAlias will sort by the first
// alias of a command.
type byFirstAlias []command

func (a byFirstAlias) Len() int           { return len(a) }
func (a byFirstAlias) Swap(i, j int)      { a[i], a[j] = a[j], a[i] }
func (a byFirstAlias) Less(i, j int) bool { return a[i].aliases[0] < a[j].aliases[0] }

// Register custom commands. Expects cf to be a func of type cmdfunc,
// returning only an error.
func (c *Commands) Register(cmdstr string, cf cmdfunc, helpMsg string) {
	for i := range c.cmds {
		if c.cmds[i].match(cmdstr) {
			c.cmds[i].cmdFn = cf
			c.cmds[i].helpMsg = helpMsg
			return
		}
	}

	c.cmds = append(c.cmds, command{aliases: []string{cmdstr}, cmdFn: cf, helpMsg: helpMsg})
}

// Find will look up the command function for the given command input.
// If it cannot find the command it will default to noCmdAvailable().
func (c *Commands) Find(cmdstr string) cmdfunc {
	// If <enter> use last command, if there was one.
	if cmdstr == "" {
		return nullCommand
	}

	for _, v := range c.cmds {
		if v.match(cmdstr) {
			return v.cmdFn
		}
	}

	return noCmdAvailable
}

// Call takes a command to execute.
func (c *Commands) Call(cmdstr string, t *Term) error {
	vals := strings.SplitN(strings.TrimSpace(cmdstr), " ", 2)
	cmdname := vals[0]
	var args string
	if len(vals) > 1 {
		args = strings.TrimSpace(vals[1])
	}
	return c.Find(cmdname)(t, args)
}

// Merge takes aliases defined in the config struct and merges them with the default aliases.
func (c *Commands) Merge(allAliases map[string][]string) {
	for i := range c.cmds {
		if c.cmds[i].builtinAliases != nil {
			c.cmds[i].aliases = append(c.cmds[i].aliases[:0], c.cmds[i].builtinAliases...)
		}
	}
	for i := range c.cmds {
		if aliases, ok := allAliases[c.cmds[i].aliases[0]]; ok {
			if c.cmds[i].builtinAliases == nil {
				c.cmds[i].builtinAliases = make([]string, len(c.cmds[i].aliases))
				copy(c.cmds[i].builtinAliases, c.cmds[i].aliases)
			}
			c.cmds[i].aliases = append(c.cmds[i].aliases, aliases...)
		}
	}
}

var errNoCmd = errors.New("command not available")

func noCmdAvailable(t *Term, args string) error {
	return errNoCmd
}

func nullCommand(t *Term, args string) error {
	return nil
}

func (c *Commands) help(t *Term, args string) error {
	if args != "" {
		for _, cmd := range c.cmds {
			for _, alias := range cmd.aliases {
				if alias == args {
					fmt.Fprintln(t.stdout, cmd.helpMsg)
					return nil
				}
			}
		}
		return errNoCmd
	}

	fmt.Fprintln(t.stdout, "The following commands are available:")

	for _, cgd := range commandGroupDescriptions {
		fmt.Fprintf(t.stdout, "\n%s:\n", cgd.description)
		w := new(tabwriter.Writer)
		w.Init(t.stdout, 0, 8, 0, '-', 0)
		for _, cmd := range c.cmds {
			if cmd.group != cgd.group {
				continue
			}
			h := cmd.helpMsg
			if idx := strings.Index(h, "\n"); idx >= 0 {
				h = h[:idx]
			}
			if len(cmd.aliases) > 1 {
				fmt.Fprintf(w, "    %s (alias: %s) \t %s\n", cmd.aliases[0], strings.Join(cmd.aliases[1:], " | "), h)
			} else {
				fmt.Fprintf(w, "    %s \t %s\n", cmd.aliases[0], h)
			}
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	fmt.Fprintln(t.stdout)
	fmt.Fprintln(t.stdout, "Type help followed by a command for full documentation.")
	return nil
}

// requireSession returns the attached session or an error telling the
// user to attach first.
func (t *Term) requireSession() (*memscan.Session, error) {
	if t.session == nil {
		return nil, errors.New("not attached to any process (use \"attach <pid>\")")
	}
	return t.session, nil
}

// activeKind is the value kind reads, writes and freezes use when the
// command line does not name one: the kind of the current candidate
// set, or int32 before the first scan.
func (t *Term) activeKind() memscan.ValueKind {
	if t.candidates != nil {
		return t.candidates.Kind()
	}
	return memscan.Int32
}

// resolveAddr turns the command line token into an absolute address.
// Hexadecimal tokens (0x prefix or hex letters) are always addresses; a
// plain number is a candidate index while a candidate set exists and a
// decimal address otherwise.
func (t *Term) resolveAddr(token string) (uint64, error) {
	isHex := strings.HasPrefix(token, "0x") || strings.HasPrefix(token, "0X")
	if !isHex {
		for _, ch := range token {
			if (ch >= 'a' && ch <= 'f') || (ch >= 'A' && ch <= 'F') {
				isHex = true
				break
			}
		}
	}
	if isHex {
		addr, err := strconv.ParseUint(strings.TrimPrefix(strings.TrimPrefix(token, "0x"), "0X"), 16, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid address %q", token)
		}
		return addr, nil
	}

	n, err := strconv.ParseUint(token, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid address or index %q", token)
	}
	if t.candidates != nil && t.candidates.Len() > 0 {
		return t.candidates.Addr(int(n))
	}
	return n, nil
}

func splitQuotedArgs(args string) ([]string, error) {
	v, err := argv.Argv(args, func(s string) (string, error) {
		return "", fmt.Errorf("backtick not supported in %q", s)
	}, nil)
	if err != nil {
		return nil, err
	}
	if len(v) != 1 {
		return nil, fmt.Errorf("illegal argument list %q", args)
	}
	return v[0], nil
}

func listProcessesCmd(t *Term, args string) error {
	var procs []proclist.Process
	var err error
	if args != "" {
		procs, err = proclist.FindByName(args)
	} else {
		procs, err = proclist.List()
	}
	if err != nil {
		return err
	}
	printProcesses(t, procs)
	return nil
}

func findProcessCmd(t *Term, args string) error {
	if args == "" {
		return errors.New("not enough arguments")
	}
	fields, err := splitQuotedArgs(args)
	if err != nil {
		return err
	}
	query := strings.Join(fields, " ")
	procs, err := proclist.FindByName(query)
	if err != nil {
		return err
	}
	if len(procs) == 0 {
		fmt.Fprintf(t.stdout, "No process matching %q.\n", query)
		return nil
	}
	printProcesses(t, procs)
	return nil
}

func printProcesses(t *Term, procs []proclist.Process) {
	w := new(tabwriter.Writer)
	w.Init(t.stdout, 0, 8, 1, ' ', 0)
	fmt.Fprintf(w, "PID\tPPID\tTHREADS\tNAME\n")
	for _, p := range procs {
		attached := ""
		if t.session != nil && t.session.Pid() == p.Pid {
			attached = " (attached)"
		}
		fmt.Fprintf(w, "%d\t%d\t%d\t%s%s\n", p.Pid, p.PPid, p.Threads, p.Name, attached)
	}
	w.Flush()
}

func attachCmd(t *Term, args string) error {
	if args == "" {
		return errors.New("you must provide a PID")
	}
	pid, err := strconv.Atoi(args)
	if err != nil {
		return fmt.Errorf("invalid pid: %q", args)
	}
	sess, err := native.Attach(pid)
	if err != nil {
		return err
	}
	if err := t.detachSession(); err != nil {
		sess.Detach()
		return err
	}
	t.session = sess
	fmt.Fprintf(t.stdout, "Attached to %s (pid %d).\n", sess.Name(), sess.Pid())
	return nil
}

func detachCmd(t *Term, args string) error {
	if t.session == nil {
		return errors.New("not attached to any process")
	}
	pid := t.session.Pid()
	if err := t.detachSession(); err != nil {
		return err
	}
	fmt.Fprintf(t.stdout, "Detached from pid %d.\n", pid)
	return nil
}

func scanCmd(t *Term, args string) error {
	sess, err := t.requireSession()
	if err != nil {
		return err
	}
	fields := strings.Fields(args)
	if len(fields) < 1 || len(fields) > 2 {
		return errors.New("wrong number of arguments to \"scan\"")
	}

	kind := t.activeKind()
	if len(fields) == 2 {
		kind, err = memscan.ParseKind(fields[1])
		if err != nil {
			return err
		}
	}
	v, err := memscan.ParseValue(fields[0], kind)
	if err != nil {
		return err
	}

	set, err := sess.Scan(v)
	if err != nil {
		return err
	}
	t.undo.push("scan", t.candidates)
	t.candidates = set

	fmt.Fprintf(t.stdout, "Found %d candidate(s) for %s %s.\n", set.Len(), kind, v)
	if t.conf.ShowMatchPreviewValue() && set.Len() > 0 && set.Len() <= t.conf.MaxCandidateDisplayValue() {
		printCandidates(t, sess, set)
	}
	return nil
}

func filterCmd(t *Term, args string) error {
	sess, err := t.requireSession()
	if err != nil {
		return err
	}
	if t.candidates == nil {
		return errors.New("no candidate set, scan first")
	}
	if args == "" {
		return errors.New("not enough arguments")
	}
	v, err := memscan.ParseValue(args, t.candidates.Kind())
	if err != nil {
		return err
	}

	before := t.candidates.Clone()
	if err := t.candidates.Filter(sess, v); err != nil {
		return err
	}
	t.undo.push("filter", before)

	fmt.Fprintf(t.stdout, "%d candidate(s) left (was %d).\n", t.candidates.Len(), before.Len())
	if t.conf.ShowMatchPreviewValue() && t.candidates.Len() > 0 && t.candidates.Len() <= t.conf.MaxCandidateDisplayValue() {
		printCandidates(t, sess, t.candidates)
	}
	return nil
}

func undoCmd(t *Term, args string) error {
	entry, ok := t.undo.pop()
	if !ok {
		return errors.New("nothing to undo")
	}
	t.candidates = entry.candidates
	if t.candidates == nil {
		fmt.Fprintf(t.stdout, "Undid %s: no candidate set.\n", entry.what)
		return nil
	}
	fmt.Fprintf(t.stdout, "Undid %s: %d candidate(s).\n", entry.what, t.candidates.Len())
	return nil
}

func listCandidatesCmd(t *Term, args string) error {
	if t.candidates == nil || t.candidates.Len() == 0 {
		fmt.Fprintln(t.stdout, "No candidates.")
		return nil
	}
	printCandidates(t, t.session, t.candidates)
	return nil
}

func printCandidates(t *Term, sess *memscan.Session, set *memscan.CandidateSet) {
	max := t.conf.MaxCandidateDisplayValue()
	preview := t.conf.ShowMatchPreviewValue() && sess != nil

	w := new(tabwriter.Writer)
	w.Init(t.stdout, 0, 8, 1, ' ', 0)
	for i, addr := range set.Addrs() {
		if i >= max {
			fmt.Fprintf(w, "... %d more\n", set.Len()-max)
			break
		}
		if preview {
			if v, err := sess.ReadByAddress(addr, set.Kind()); err == nil {
				fmt.Fprintf(w, "[%d]\t%#x\t= %s\n", i, addr, v)
				continue
			}
			fmt.Fprintf(w, "[%d]\t%#x\t= <unreadable>\n", i, addr)
			continue
		}
		fmt.Fprintf(w, "[%d]\t%#x\n", i, addr)
	}
	w.Flush()
}

func clearCmd(t *Term, args string) error {
	if t.candidates == nil {
		return nil
	}
	t.undo.push("clear", t.candidates.Clone())
	t.candidates.Clear()
	fmt.Fprintln(t.stdout, "Candidate set cleared.")
	return nil
}

func readCmd(t *Term, args string) error {
	sess, err := t.requireSession()
	if err != nil {
		return err
	}
	if args == "" {
		return errors.New("not enough arguments")
	}
	addr, err := t.resolveAddr(args)
	if err != nil {
		return err
	}
	kind := t.activeKind()
	v, err := sess.ReadByAddress(addr, kind)
	if err != nil {
		return err
	}
	fmt.Fprintf(t.stdout, "%#x = %s (%s)\n", addr, v, kind)
	return nil
}

func modifyCmd(t *Term, args string) error {
	sess, err := t.requireSession()
	if err != nil {
		return err
	}
	fields := strings.Fields(args)
	if len(fields) != 2 {
		return errors.New("wrong number of arguments to \"modify\"")
	}
	addr, err := t.resolveAddr(fields[0])
	if err != nil {
		return err
	}
	v, err := memscan.ParseValue(fields[1], t.activeKind())
	if err != nil {
		return err
	}
	if err := sess.ModifyByAddress(addr, v); err != nil {
		return err
	}
	fmt.Fprintf(t.stdout, "Wrote %s %s at %#x.\n", v.Kind(), v, addr)
	return nil
}

func freezeCmd(t *Term, args string) error {
	sess, err := t.requireSession()
	if err != nil {
		return err
	}
	fields, err := splitQuotedArgs(args)
	if err != nil {
		return err
	}
	if len(fields) < 2 || len(fields) > 3 {
		return errors.New("wrong number of arguments to \"freeze\"")
	}
	addr, err := t.resolveAddr(fields[0])
	if err != nil {
		return err
	}
	v, err := memscan.ParseValue(fields[1], t.activeKind())
	if err != nil {
		return err
	}
	var duration time.Duration
	if len(fields) == 3 {
		secs, err := strconv.ParseFloat(fields[2], 64)
		if err != nil || secs < 0 {
			return fmt.Errorf("invalid duration %q", fields[2])
		}
		duration = time.Duration(secs * float64(time.Second))
	}

	tick := time.Duration(t.conf.FreezeIntervalMSValue()) * time.Millisecond
	task := sess.StartFreeze(addr, v, duration, tick)

	t.freezeMu.Lock()
	t.freezeSeq++
	id := t.freezeSeq
	t.freezes[id] = task
	t.freezeMu.Unlock()

	if duration > 0 {
		fmt.Fprintf(t.stdout, "Freeze %d: %s %s at %#x for %s.\n", id, v.Kind(), v, addr, duration)
	} else {
		fmt.Fprintf(t.stdout, "Freeze %d: %s %s at %#x until unfrozen.\n", id, v.Kind(), v, addr)
	}
	return nil
}

func listFreezesCmd(t *Term, args string) error {
	t.reapFreezes()
	t.freezeMu.Lock()
	ids := make([]int, 0, len(t.freezes))
	for id := range t.freezes {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	w := new(tabwriter.Writer)
	w.Init(t.stdout, 0, 8, 1, ' ', 0)
	for _, id := range ids {
		task := t.freezes[id]
		left := "until unfrozen"
		if task.Duration > 0 {
			remaining := task.Duration - time.Since(task.Started)
			if remaining < 0 {
				remaining = 0
			}
			left = fmt.Sprintf("%s left", remaining.Round(time.Second))
		}
		fmt.Fprintf(w, "%d\t%#x\t= %s (%s)\t%s\n", id, task.Addr, task.Value, task.Value.Kind(), left)
	}
	t.freezeMu.Unlock()
	w.Flush()
	if len(ids) == 0 {
		fmt.Fprintln(t.stdout, "No active freezes.")
	}
	return nil
}

func unfreezeCmd(t *Term, args string) error {
	if args == "" {
		return errors.New("not enough arguments")
	}
	if args == "all" {
		n := t.cancelAllFreezes()
		fmt.Fprintf(t.stdout, "Stopped %d freeze task(s).\n", n)
		return nil
	}
	id, err := strconv.Atoi(args)
	if err != nil {
		return fmt.Errorf("invalid freeze id %q", args)
	}
	t.freezeMu.Lock()
	task, ok := t.freezes[id]
	delete(t.freezes, id)
	t.freezeMu.Unlock()
	if !ok {
		return fmt.Errorf("no freeze task %d", id)
	}
	task.Cancel()
	task.Wait()
	fmt.Fprintf(t.stdout, "Freeze %d stopped.\n", id)
	return nil
}

func sourceCmd(t *Term, args string) error {
	if args == "" {
		return errors.New("wrong number of arguments: source <filename>")
	}
	if args == "-" {
		return t.starlarkEnv.REPL()
	}
	if strings.HasSuffix(args, ".star") {
		_, err := t.starlarkEnv.Execute(args, nil, "main", nil)
		return err
	}
	return t.cmds.executeFile(t, args)
}

func transcriptCmd(t *Term, args string) error {
	var fileOnly, truncate, off bool
	fields := strings.Fields(args)
	path := ""
	for _, f := range fields {
		switch f {
		case "-x":
			fileOnly = true
		case "-t":
			truncate = true
		case "-off":
			off = true
		default:
			if path != "" || strings.HasPrefix(f, "-") {
				return fmt.Errorf("unrecognized option %q", f)
			}
			path = f
		}
	}

	if off {
		if path != "" || fileOnly || truncate {
			return errors.New("-off cannot be combined with other options")
		}
		return t.stdout.CloseTranscript()
	}
	if path == "" {
		return errors.New("no output file specified")
	}

	flags := os.O_APPEND | os.O_WRONLY | os.O_CREATE
	if truncate {
		flags |= os.O_TRUNC
	}
	fh, err := os.OpenFile(path, flags, 0660)
	if err != nil {
		return err
	}
	t.stdout.TranscribeTo(fh, fileOnly)
	return nil
}

// ExitRequestError is returned when the user exits mscout.
type ExitRequestError struct{}

func (ere ExitRequestError) Error() string {
	return ""
}

func exitCmd(t *Term, args string) error {
	return ExitRequestError{}
}

func (c *Commands) executeFile(t *Term, name string) error {
	fh, err := os.Open(name)
	if err != nil {
		return err
	}
	defer fh.Close()

	scanner := bufio.NewScanner(fh)
	lineno := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		lineno++

		if line == "" || line[0] == '#' {
			continue
		}

		if err := c.Call(line, t); err != nil {
			if _, isExitRequest := err.(ExitRequestError); isExitRequest {
				return err
			}
			fmt.Printf("%s:%d: %v\n", name, lineno, err)
		}
	}

	return scanner.Err()
}

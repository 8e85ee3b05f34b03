package terminal

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/derekparker/trie"
	"github.com/go-delve/liner"

	"github.com/memscout/memscout/pkg/config"
	"github.com/memscout/memscout/pkg/memscan"
	"github.com/memscout/memscout/pkg/proclist"
	"github.com/memscout/memscout/pkg/terminal/starbind"
)

const historyFile string = ".mscout_history"

// Term represents the terminal running mscout.
type Term struct {
	conf     *config.Config
	prompt   string
	line     *liner.State
	cmds     *Commands
	dumb     bool
	stdout   *transcriptWriter
	InitFile string

	session    *memscan.Session
	candidates *memscan.CandidateSet

	freezeMu  sync.Mutex
	freezes   map[int]*memscan.FreezeTask
	freezeSeq int

	undo *undoHistory

	aliasIndex *trie.Trie
	procIndex  *trie.Trie

	starlarkEnv *starbind.Env
}

// New returns a new Term. If session is not nil the terminal starts
// already attached to it.
func New(session *memscan.Session, conf *config.Config) *Term {
	if conf == nil {
		conf = &config.Config{}
	}

	var w io.Writer

	dumb := strings.ToLower(os.Getenv("TERM")) == "dumb"
	if dumb {
		w = os.Stdout
	} else {
		w = getColorableWriter()
	}

	t := &Term{
		conf:    conf,
		prompt:  "(mscout) ",
		line:    liner.NewLiner(),
		dumb:    dumb,
		stdout:  &transcriptWriter{pw: &pagingWriter{w: w}},
		session: session,
		freezes: make(map[int]*memscan.FreezeTask),
		undo:    newUndoHistory(undoDepth),
	}

	t.cmds = ScanCommands()
	if conf.Aliases != nil {
		t.cmds.Merge(conf.Aliases)
	}

	t.starlarkEnv = starbind.New(starlarkContext{t}, t.stdout)
	return t
}

// Close returns the terminal to its previous mode.
func (t *Term) Close() {
	t.line.Close()
	if err := t.stdout.CloseTranscript(); err != nil {
		fmt.Fprintf(os.Stderr, "error closing transcript file: %v\n", err)
	}
}

// sigintGuard cancels running starlark scripts and active freeze loops
// instead of killing the terminal.
func (t *Term) sigintGuard(ch <-chan os.Signal) {
	for range ch {
		t.starlarkEnv.Cancel()
		if n := t.cancelAllFreezes(); n > 0 {
			fmt.Fprintf(t.stdout, "interrupted %d freeze task(s)\n", n)
		}
	}
}

// Run begins running mscout in the terminal.
func (t *Term) Run() (int, error) {
	defer t.Close()

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT)
	go t.sigintGuard(ch)

	t.buildAliasIndex()
	t.line.SetCompleter(t.complete)

	fullHistoryFile, err := config.GetConfigFilePath(historyFile)
	if err != nil {
		fmt.Printf("Unable to load history file: %v.\n", err)
	}
	f, err := os.Open(fullHistoryFile)
	if err != nil {
		f, err = os.Create(fullHistoryFile)
		if err != nil {
			fmt.Printf("Unable to open history file: %v. History will not be saved for this session.\n", err)
		}
	}
	if f != nil {
		t.line.ReadHistory(f)
		f.Close()
	}

	fmt.Fprintln(t.stdout, "Type 'help' for list of commands.")
	if t.session != nil {
		fmt.Fprintf(t.stdout, "Attached to %s (pid %d).\n", t.session.Name(), t.session.Pid())
	}

	if t.InitFile != "" {
		err := t.cmds.executeFile(t, t.InitFile)
		if err != nil {
			if _, ok := err.(ExitRequestError); ok {
				return t.handleExit()
			}
			fmt.Fprintf(os.Stderr, "Error executing init file: %s\n", err)
		}
	}

	for {
		cmdstr, err := t.promptForInput()
		if err != nil {
			if err == io.EOF {
				fmt.Fprintln(t.stdout, "exit")
				return t.handleExit()
			}
			return 1, fmt.Errorf("prompt for input failed: %v", err)
		}

		t.stdout.Echo(t.prompt + cmdstr + "\n")
		if !t.dumb {
			t.stdout.pw.PageMaybe(nil)
		}
		err = t.cmds.Call(cmdstr, t)
		t.stdout.Flush()
		t.stdout.pw.Reset()
		if err != nil {
			if _, ok := err.(ExitRequestError); ok {
				return t.handleExit()
			}
			fmt.Fprintf(os.Stderr, "Command failed: %s\n", err)
		}
	}
}

// buildAliasIndex (re)builds the prefix trie used for command
// completion. Called again after alias changes so new aliases complete
// too.
func (t *Term) buildAliasIndex() {
	t.aliasIndex = trie.New()
	for _, cmd := range t.cmds.cmds {
		for _, alias := range cmd.aliases {
			t.aliasIndex.Add(alias, nil)
		}
	}
}

func (t *Term) complete(line string) []string {
	if t.aliasIndex == nil {
		return nil
	}
	fields := strings.Fields(line)
	if len(fields) >= 1 && (fields[0] == "find" || fields[0] == "attach") && strings.Contains(line, " ") {
		prefix := ""
		if len(fields) >= 2 {
			prefix = strings.ToLower(fields[len(fields)-1])
		}
		var c []string
		for _, name := range t.processNames(prefix) {
			c = append(c, fields[0]+" "+name)
		}
		return c
	}
	return t.aliasIndex.PrefixSearch(strings.ToLower(line))
}

// processNames returns running process names with the given prefix,
// building the name index on first use.
func (t *Term) processNames(prefix string) []string {
	if t.procIndex == nil {
		t.procIndex = trie.New()
		procs, err := proclist.List()
		if err != nil {
			return nil
		}
		for _, p := range procs {
			t.procIndex.Add(strings.ToLower(p.Name), p.Pid)
		}
	}
	if prefix == "" {
		return t.procIndex.Keys()
	}
	return t.procIndex.PrefixSearch(prefix)
}

func (t *Term) promptForInput() (string, error) {
	l, err := t.line.Prompt(t.prompt)
	if err != nil {
		return "", err
	}
	l = strings.TrimSuffix(l, "\n")
	if l != "" {
		t.line.AppendHistory(l)
	}
	return l, nil
}

// cancelAllFreezes cancels every active freeze task and waits for their
// loops to end. It returns how many tasks were cancelled.
func (t *Term) cancelAllFreezes() int {
	t.freezeMu.Lock()
	tasks := make([]*memscan.FreezeTask, 0, len(t.freezes))
	for id, task := range t.freezes {
		tasks = append(tasks, task)
		delete(t.freezes, id)
	}
	t.freezeMu.Unlock()
	for _, task := range tasks {
		task.Cancel()
		task.Wait()
	}
	return len(tasks)
}

// reapFreezes drops tasks whose loop has already ended (elapsed
// duration, closed session) from the active table.
func (t *Term) reapFreezes() {
	t.freezeMu.Lock()
	defer t.freezeMu.Unlock()
	for id, task := range t.freezes {
		select {
		case <-task.Done():
			delete(t.freezes, id)
		default:
		}
	}
}

// detachSession tears down everything bound to the current session:
// freeze loops first, then the candidate set and the session itself.
func (t *Term) detachSession() error {
	if t.session == nil {
		return nil
	}
	t.cancelAllFreezes()
	t.candidates = nil
	t.undo.clear()
	err := t.session.Detach()
	t.session = nil
	return err
}

func (t *Term) handleExit() (int, error) {
	fullHistoryFile, err := config.GetConfigFilePath(historyFile)
	if err != nil {
		fmt.Println("Error saving history file:", err)
	} else {
		if f, err := os.OpenFile(fullHistoryFile, os.O_RDWR, 0666); err == nil {
			_, err = t.line.WriteHistory(f)
			if err != nil {
				fmt.Println("readline history error:", err)
			}
			f.Close()
		}
	}

	if err := t.detachSession(); err != nil {
		return 1, err
	}
	return 0, nil
}

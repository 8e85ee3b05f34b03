// Package cmds implements the mscout command line interface.
package cmds

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/memscout/memscout/cmd/mscout/cmds/helphelpers"
	"github.com/memscout/memscout/pkg/config"
	"github.com/memscout/memscout/pkg/demo"
	"github.com/memscout/memscout/pkg/logflags"
	"github.com/memscout/memscout/pkg/memscan"
	"github.com/memscout/memscout/pkg/memscan/native"
	"github.com/memscout/memscout/pkg/proclist"
	"github.com/memscout/memscout/pkg/terminal"
	"github.com/memscout/memscout/pkg/version"
)

var (
	// log is whether to log debug statements.
	log bool
	// logOutput is a comma separated list of components that should produce debug output.
	logOutput string
	// logDest is the file path or file descriptor where logs should go.
	logDest string
	// initFile is the path to initialization file.
	initFile string

	// rootCommand is the root of the command tree.
	rootCommand *cobra.Command

	conf *config.Config
)

const mscoutCommandLongDesc = `Memscout is an interactive memory scanner for running processes.

Memscout attaches to a process, scans its memory for values, narrows the
matches down as the values change and lets you read, overwrite or freeze
the addresses that remain.

Started without a subcommand it opens its interactive prompt without being
attached to anything; use the attach command from the prompt (or the attach
subcommand here) to pick a target.`

// New returns an initialized command tree.
func New(docCall bool) *cobra.Command {
	// Config setup and load.
	conf = config.LoadConfig()

	// Main mscout root command.
	rootCommand = &cobra.Command{
		Use:   "mscout",
		Short: "Memscout is a memory scanner for running processes.",
		Long:  mscoutCommandLongDesc,
		Run: func(cmd *cobra.Command, args []string) {
			os.Exit(execute(0, conf))
		},
	}

	rootCommand.PersistentFlags().BoolVarP(&log, "log", "", false, "Enable debug logging.")
	rootCommand.PersistentFlags().StringVarP(&logOutput, "log-output", "", "", `Comma separated list of components that should produce debug output (see 'mscout help log')`)
	rootCommand.PersistentFlags().StringVarP(&logDest, "log-dest", "", "", "Writes logs to the specified file or file descriptor (see 'mscout help log').")
	rootCommand.PersistentFlags().StringVar(&initFile, "init", "", "Init file, executed by the terminal client.")

	// 'attach' subcommand.
	attachCommand := &cobra.Command{
		Use:   "attach pid",
		Short: "Attach to a running process and begin scanning.",
		Long: `Attach to an already running process and begin scanning its memory.

This command opens a read/write handle to the given process and starts the
interactive prompt attached to it. Detaching leaves the process running.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return errors.New("you must provide a PID")
			}
			return nil
		},
		Run: attachCmd,
	}
	rootCommand.AddCommand(attachCommand)

	// 'ps' subcommand.
	psCommand := &cobra.Command{
		Use:   "ps [filter]",
		Short: "List running processes.",
		Long: `List running processes without starting the interactive prompt.

With a filter argument only processes whose executable name contains the
filter string (ignoring case) are shown.`,
		Run: psCmd,
	}
	rootCommand.AddCommand(psCommand)

	// 'target' subcommand.
	targetCommand := &cobra.Command{
		Use:   "target",
		Short: "Run a small practice process to scan.",
		Long: `Run a small practice process to scan.

The target keeps a handful of values (an int32 health counter, an int64
coin purse, a float64 stamina gauge and an int32 score) at stable heap
addresses and prints its pid. Change them with its damage, spend, rest
and train commands while scanning the process from another mscout.`,
		Run: func(cmd *cobra.Command, args []string) {
			if err := demo.Run(os.Stdin, os.Stdout); err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			os.Exit(0)
		},
	}
	rootCommand.AddCommand(targetCommand)

	// 'version' subcommand.
	versionCommand := &cobra.Command{
		Use:   "version",
		Short: "Prints version.",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Memscout Memory Scanner\n%s\n", version.MemscoutVersion)
			if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
				fmt.Printf("Build Details: %s\n", version.BuildInfo())
			}
		},
	}
	versionCommand.Flags().BoolP("verbose", "v", false, "print verbose version info")
	rootCommand.AddCommand(versionCommand)

	rootCommand.AddCommand(&cobra.Command{
		Use:   "log",
		Short: "Help about logging flags.",
		Long: `Logging can be enabled by specifying the --log flag and using the
--log-output flag to select which components should produce logs.

The argument of --log-output must be a comma separated list of component
names selected from this list:


	session		Log process attach and detach events
	scan		Log region walks, scans and filters
	freeze		Log freeze loop writes and cancellations

Additionally --log-dest can be used to specify where the logs should be
written.
If the argument is a number it will be interpreted as a file descriptor,
otherwise as a file path.

`,
	})

	defaultHelpFunc := rootCommand.HelpFunc()
	rootCommand.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		helphelpers.Prepare(cmd)
		defaultHelpFunc(cmd, args)
	})

	rootCommand.DisableAutoGenTag = true

	return rootCommand
}

func attachCmd(cmd *cobra.Command, args []string) {
	pid, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid pid: %s\n", args[0])
		os.Exit(1)
	}
	os.Exit(execute(pid, conf))
}

func psCmd(cmd *cobra.Command, args []string) {
	status := func() int {
		if err := logflags.Setup(log, logOutput, logDest); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			return 1
		}
		defer logflags.Close()

		var procs []proclist.Process
		var err error
		if len(args) > 0 {
			procs, err = proclist.FindByName(args[0])
		} else {
			procs, err = proclist.List()
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}

		w := new(tabwriter.Writer)
		w.Init(os.Stdout, 0, 8, 1, ' ', 0)
		fmt.Fprintf(w, "PID\tPPID\tTHREADS\tNAME\n")
		for _, p := range procs {
			fmt.Fprintf(w, "%d\t%d\t%d\t%s\n", p.Pid, p.PPid, p.Threads, p.Name)
		}
		w.Flush()
		return 0
	}()
	os.Exit(status)
}

// execute starts the terminal, attached to pid when pid is not zero.
func execute(attachPid int, conf *config.Config) int {
	if err := logflags.Setup(log, logOutput, logDest); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	defer logflags.Close()

	var sess *memscan.Session
	if attachPid > 0 {
		var err error
		sess, err = native.Attach(attachPid)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
	}

	term := terminal.New(sess, conf)
	term.InitFile = initFile
	status, err := term.Run()
	if err != nil {
		fmt.Println(err)
	}
	return status
}

package cli

import "github.com/spf13/cobra"

var (
	version = "dev"
	commit  = "none"
)

// rootOptions are the flags shared by every command that opens a locker.
type rootOptions struct {
	configPath string
	credsPath  string
	lockerPath string
	logLevel   string
	devLog     bool
	trace      bool
	noCommit   bool
}

func newRootCmd() *cobra.Command {
	o := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "arboretum",
		Short:         "Fetch compliance evidence and check it",
		Long:          "Arboretum fetches compliance evidence from source control and cloud providers into a git evidence locker and runs checks that report on it.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&o.configPath, "config", "auditree.json", "Configuration file (JSON or YAML)")
	pf.StringVar(&o.credsPath, "creds", "", "Credentials INI file (defaults to ~/.credentials)")
	pf.StringVar(&o.lockerPath, "locker", "locker", "Evidence locker directory")
	pf.StringVar(&o.logLevel, "log-level", "info", "Log level: debug, info, warn or error")
	pf.BoolVar(&o.devLog, "dev", false, "Human readable development logs")
	pf.BoolVar(&o.trace, "trace", false, "Log a trace span per fetcher and check test")
	pf.BoolVar(&o.noCommit, "no-commit", false, "Leave locker changes uncommitted")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newFetchCmd(o))
	cmd.AddCommand(newCheckCmd(o))
	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newHistoryCmd(o))
	cmd.AddCommand(newMCPCmd(o))
	return cmd
}

// NewRootCmdForTest returns the root command for testing.
func NewRootCmdForTest() *cobra.Command {
	return newRootCmd()
}

func Execute() error {
	return newRootCmd().Execute()
}

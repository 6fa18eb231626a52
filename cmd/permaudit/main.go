package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"permaudit/internal/app"
	"permaudit/internal/audit"
	"permaudit/internal/config"
	"permaudit/internal/seal"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates an AuditApp. The caller must defer
// app.Close(). operation identifies the CLI command being run (e.g. "Start").
// budget, when non-empty, overrides the configured session budget.
func newApp(operation, parameters, budget string) (*app.AuditApp, error) {
	cfg, err := readConfig()
	if err != nil {
		return nil, err
	}
	if budget != "" {
		cfg.Session.Budget = budget
	}

	a, err := app.NewAuditApp(cfg, operation, parameters)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

func readConfig() (*config.Config, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return cfg, nil
}

var rootCmd = &cobra.Command{
	Use:   "permaudit",
	Short: "Permission inheritance auditor",
	Long:  "Walks a folder tree and reports every node whose access diverges from what it inherits.",
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		// Generate a new host ID
		hostID := uuid.New().String()

		cfg := config.NewConfig(hostID, defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Host ID: %s\n", hostID)
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Host ID:    %s\n", cfg.HostID)
		fmt.Printf("Base Dir:   %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:    %s\n", cfg.LogDir)
		fmt.Printf("Tree:       %s\n", cfg.Tree.Type)
		fmt.Printf("Report Dir: %s\n", cfg.Report.ReportDir)
		return nil
	},
}

var configArchiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Manage the report archive",
}

var configArchiveVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify archive access",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("VerifyArchive", "", "")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.ValidatePublisher(); err != nil {
			return fmt.Errorf("archive verification failed: %w", err)
		}
		fmt.Println("Archive is reachable and writable.")
		return nil
	},
}

// keys command
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage report sealing keys",
}

var keysInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a sealing key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := readConfig()
		if err != nil {
			return err
		}

		sealer, err := seal.NewSealerFromConfig(cfg.Seal)
		if err != nil {
			return err
		}
		if sealer == nil {
			return fmt.Errorf("sealing is disabled: set seal.type = %q in the config first", "age")
		}
		if sealer.IsConfigured() {
			return fmt.Errorf("sealing keys already exist")
		}

		passphrase, err := readPassphrase()
		if err != nil {
			return err
		}

		if err := sealer.Setup(passphrase); err != nil {
			return fmt.Errorf("generating keys: %w", err)
		}

		fmt.Printf("Public key:  %s\n", cfg.Seal.PublicKeyPath)
		fmt.Printf("Private key: %s (passphrase protected)\n", cfg.Seal.PrivateKeyPath)
		return nil
	},
}

// start command
var startCmd = &cobra.Command{
	Use:   "start PATH",
	Short: "Start a new audit rooted at PATH",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		budget, _ := cmd.Flags().GetString("budget")

		a, err := newApp("Start", args[0], budget)
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.Start(args[0])
		if err != nil {
			return err
		}

		printResult(result)
		return nil
	},
}

// resume command
var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume a paused audit",
	RunE: func(cmd *cobra.Command, args []string) error {
		budget, _ := cmd.Flags().GetString("budget")

		a, err := newApp("Resume", "", budget)
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.Resume()
		if err != nil {
			return err
		}

		printResult(result)
		return nil
	},
}

// status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of the current audit",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Status", "", "")
		if err != nil {
			return err
		}
		defer a.Close()

		st, err := a.Status()
		if err != nil {
			return err
		}

		if st.Active == nil {
			fmt.Println("No audit in progress.")
			return nil
		}

		fmt.Printf("Auditing:  %s\n", st.Active.RootID)
		fmt.Printf("Report:    %s\n", st.Active.Label)
		fmt.Printf("Started:   %s\n", st.Active.StartedAt)
		fmt.Printf("Pending:   %d node(s)\n", st.Pending)
		if st.Next != nil {
			fmt.Printf("Next up:   %s\n", st.Next.Path)
		}
		fmt.Printf("Report at: part %d, %d row(s)\n", st.Part, st.Rows)
		return nil
	},
}

// clear command
var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Discard all pending audit state",
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")

		if !force {
			ok, err := confirm("Discard all pending audit state?")
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("Aborted.")
				return nil
			}
		}

		a, err := newApp("Clear", "", "")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Clear(); err != nil {
			return err
		}

		fmt.Println("Audit state cleared.")
		return nil
	},
}

// publish command
var publishCmd = &cobra.Command{
	Use:   "publish LABEL",
	Short: "Archive a finished report off-host",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Publish", args[0], "")
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.Publish(args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Published %d page(s) of %s.\n", n, args[0])
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View audit session history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp("History", "", "")
		if err != nil {
			return err
		}
		defer a.Close()

		sessions, err := a.History(limit)
		if err != nil {
			return err
		}

		if len(sessions) == 0 {
			fmt.Println("No audit sessions recorded.")
			return nil
		}

		for _, s := range sessions {
			duration := ""
			if s.FinishedAt.Valid {
				d := s.FinishedAt.Time.Sub(s.StartedAt)
				duration = d.Truncate(time.Millisecond).String()
			}
			fmt.Printf("#%d  %-12s  %s  %-10s  %s\n",
				s.ID,
				s.Operation,
				s.StartedAt.Format("2006-01-02 15:04:05"),
				s.Status,
				duration,
			)
		}
		return nil
	},
}

func printResult(result *audit.Result) {
	switch result.State {
	case audit.StateCompleted:
		fmt.Printf("Audit complete: %d node(s) processed, %d finding(s).\n",
			result.Processed, result.Findings)
		fmt.Printf("Report: %s\n", result.Label)
	case audit.StatePaused:
		fmt.Printf("Session budget exhausted: %d node(s) processed, %d finding(s), %d pending.\n",
			result.Processed, result.Findings, result.Remaining)
		fmt.Println("Run 'permaudit resume' to continue.")
	default:
		fmt.Printf("Session ended in state %s.\n", result.State)
	}
}

// readPassphrase prompts for a passphrase twice without echoing.
func readPassphrase() (string, error) {
	fmt.Print("Passphrase: ")
	first, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}

	fmt.Print("Confirm passphrase: ")
	second, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}

	if string(first) != string(second) {
		return "", fmt.Errorf("passphrases do not match")
	}
	if len(first) == 0 {
		return "", fmt.Errorf("passphrase must not be empty")
	}
	return string(first), nil
}

// confirm asks a yes/no question on the terminal. Non-interactive runs must
// pass --force instead.
func confirm(prompt string) (bool, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return false, fmt.Errorf("stdin is not a terminal: use --force")
	}
	fmt.Printf("%s [y/N] ", prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false, fmt.Errorf("reading confirmation: %w", err)
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configArchiveCmd)
	configArchiveCmd.AddCommand(configArchiveVerifyCmd)

	// keys subcommands
	keysCmd.AddCommand(keysInitCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(startCmd)
	startCmd.Flags().String("budget", "", "Session budget override, e.g. \"4m\"")
	rootCmd.AddCommand(resumeCmd)
	resumeCmd.Flags().String("budget", "", "Session budget override, e.g. \"4m\"")
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(clearCmd)
	clearCmd.Flags().BoolP("force", "f", false, "Skip confirmation")
	rootCmd.AddCommand(publishCmd)
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of sessions to show")
}

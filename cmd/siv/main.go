package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"siv-go/internal/app"
	"siv-go/internal/config"
	"siv-go/internal/siv"

	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// exitChanges is the exit status of a verify run that found changes.
const exitChanges = 2

var exitCode int

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
	os.Exit(exitCode)
}

// loadConfig reads the config file, falling back to defaults when none exists.
func loadConfig() (*config.Config, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.Load(defaults["config_path"], config.NewConfig("local", defaults["base_dir"]))
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return cfg, nil
}

// newApp reads the config and creates a SIVApp. The caller must defer app.Close().
func newApp(ctx context.Context) (*app.SIVApp, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	a, err := app.NewSIVApp(ctx, cfg, app.Options{})
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

// readPassphrase prompts on the terminal without echo.
func readPassphrase(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

type runFlags struct {
	dir, snapshot, report, hash string
}

func (f *runFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.dir, "dir", "d", "", "Directory to monitor")
	cmd.Flags().StringVarP(&f.snapshot, "snapshot", "s", "", "Snapshot (verification) file, outside the monitored directory")
	cmd.Flags().StringVarP(&f.report, "report", "r", "", "Report file, outside the monitored directory")
	cmd.Flags().StringVarP(&f.hash, "hash", "H", "", "Hash algorithm: md5, sha1 or sha256 (default from config)")
	cmd.MarkFlagRequired("dir")
	cmd.MarkFlagRequired("snapshot")
	cmd.MarkFlagRequired("report")
}

func printRun(run *siv.Run) {
	fmt.Printf("Monitored directory %s\n", run.Directory)
	fmt.Printf("Files: %d  Directories: %d\n", run.Files, run.Directories)
	fmt.Printf("Finished in %.3f seconds (run %s)\n", run.Elapsed().Seconds(), run.ID)
}

var rootCmd = &cobra.Command{
	Use:          "siv",
	Short:        "File-system integrity verifier",
	SilenceUsage: true,
}

var initFlags runFlags

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Record a baseline snapshot of a directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		run, err := a.Initialize(cmd.Context(), initFlags.dir, initFlags.snapshot, initFlags.report, initFlags.hash)
		if err != nil {
			return fmt.Errorf("initialization failed: %w", err)
		}

		fmt.Println("INITIALIZATION done")
		printRun(run)
		return nil
	},
}

var verifyFlags runFlags

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Compare a directory against its baseline",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		run, err := a.Verify(cmd.Context(), verifyFlags.dir, verifyFlags.snapshot, verifyFlags.report, verifyFlags.hash)
		if err != nil {
			return fmt.Errorf("verification failed: %w", err)
		}

		fmt.Println("VERIFICATION done")
		printRun(run)
		fmt.Printf("Warnings: %d (see %s)\n", run.Warnings(), verifyFlags.report)
		if run.Warnings() > 0 {
			exitCode = exitChanges
		}
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View past runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		runs, err := a.History(limit)
		if err != nil {
			return err
		}

		if len(runs) == 0 {
			fmt.Println("No runs recorded.")
			return nil
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"ID", "Mode", "Started", "Duration", "Status", "Warnings", "Directory"})
		table.SetBorder(false)
		table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
		table.SetAlignment(tablewriter.ALIGN_LEFT)
		for _, r := range runs {
			table.Append([]string{
				r.ID,
				r.Mode,
				r.StartedAt.Local().Format("2006-01-02 15:04:05"),
				r.Elapsed().Truncate(time.Millisecond).String(),
				r.Status,
				strconv.Itoa(r.Warnings),
				r.Directory,
			})
		}
		table.Render()
		return nil
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show RUN_ID",
	Short: "View a run and its warnings",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		run, warnings, err := a.RunDetails(args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Run:       %s\n", run.ID)
		fmt.Printf("Mode:      %s\n", run.Mode)
		fmt.Printf("Directory: %s\n", run.Directory)
		fmt.Printf("Snapshot:  %s\n", run.SnapshotPath)
		fmt.Printf("Algorithm: %s\n", run.Algorithm)
		fmt.Printf("Started:   %s\n", run.StartedAt.Local().Format("2006-01-02 15:04:05"))
		fmt.Printf("Status:    %s\n", run.Status)
		if run.Error != "" {
			fmt.Printf("Error:     %s\n", run.Error)
		}
		fmt.Printf("Files: %d  Directories: %d  Warnings: %d\n", run.Files, run.Directories, run.Warnings)

		category := ""
		for _, w := range warnings {
			if w.Category != category {
				category = w.Category
				fmt.Printf("\n%s\n", category)
			}
			fmt.Printf("  %s\n", w.Path)
		}
		return nil
	},
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

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Host ID:         %s\n", cfg.HostID)
		fmt.Printf("Base Dir:        %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:         %s\n", cfg.LogDir)
		fmt.Printf("Algorithm:       %s\n", cfg.Verify.Algorithm)
		fmt.Printf("Identity Policy: %s\n", cfg.Verify.IdentityPolicy)
		fmt.Printf("Workers:         %d\n", cfg.Walker.Workers)
		fmt.Printf("Database:        %s\n", cfg.Database.Type)
		fmt.Printf("Archive:         %s (encrypt=%t)\n", cfg.Archive.Type, cfg.Archive.Encrypt)
		return nil
	},
}

// keys command
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage archive encryption keys",
}

var keysInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate the archive encryption key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		pass, err := readPassphrase("New passphrase: ")
		if err != nil {
			return fmt.Errorf("reading passphrase: %w", err)
		}
		confirm, err := readPassphrase("Repeat passphrase: ")
		if err != nil {
			return fmt.Errorf("reading passphrase: %w", err)
		}
		if pass != confirm {
			return errors.New("passphrases do not match")
		}

		if err := app.SetupKeys(cfg, pass); err != nil {
			return fmt.Errorf("generating keys: %w", err)
		}
		fmt.Printf("Keys written to %s and %s\n", cfg.Encryption.PublicKeyPath, cfg.Encryption.PrivateKeyPath)
		return nil
	},
}

// archive command
var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Browse and fetch archived snapshots",
}

var archiveListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived snapshots",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		snaps, err := a.ArchivedSnapshots(cmd.Context())
		if err != nil {
			return err
		}
		if len(snaps) == 0 {
			fmt.Println("No archived snapshots.")
			return nil
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Run", "Encrypted", "Key"})
		table.SetBorder(false)
		for _, s := range snaps {
			table.Append([]string{s.RunID, strconv.FormatBool(s.Encrypted), s.Key})
		}
		table.Render()
		return nil
	},
}

var archiveFetchCmd = &cobra.Command{
	Use:   "fetch RUN_ID DEST",
	Short: "Restore an archived snapshot to DEST",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		passphrase := func() (string, error) { return readPassphrase("Passphrase: ") }
		if err := a.FetchSnapshot(cmd.Context(), args[0], args[1], passphrase); err != nil {
			return fmt.Errorf("fetching snapshot: %w", err)
		}
		fmt.Printf("Snapshot of run %s written to %s\n", args[0], args[1])
		return nil
	},
}

func init() {
	initFlags.register(initCmd)
	verifyFlags.register(verifyCmd)

	historyCmd.AddCommand(historyShowCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of runs to show")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	keysCmd.AddCommand(keysInitCmd)

	archiveCmd.AddCommand(archiveListCmd)
	archiveCmd.AddCommand(archiveFetchCmd)

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(archiveCmd)
}

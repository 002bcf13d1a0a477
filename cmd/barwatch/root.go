package main

import (
	"encoding/json"
	"fmt"

	"github.com/4thel00z/barwatch/internal"
	"github.com/spf13/cobra"
)

func NewRootCmd(version string, a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "barwatch",
		Short:         "Bar exam watch bot",
		Long:          `Tracks bar exam news for one subject and posts captioned updates with anti-repetition memory.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}

	addPersistentFlags(rootCmd)
	setHelpWithExternals(rootCmd)

	if a != nil {
		rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
			verbose, _ := cmd.Flags().GetBool("verbose")
			asJSON, _ := cmd.Flags().GetBool("json")

			logger, err := internal.NewLogger(verbose, asJSON)
			if err != nil {
				return err
			}
			a.setup(logger)
			return nil
		}
		rootCmd.PersistentPostRun = func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		}
		addSubcommands(rootCmd, a)
	}

	return rootCmd
}

func addPersistentFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().String("state", "", "State directory (global|project|path)")
	cmd.PersistentFlags().Bool("json", false, "Output in JSON format")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Debug logging on stderr")
}

func addSubcommands(root *cobra.Command, a *app) {
	initUC := func() *internal.InitUseCase { return a.initUC }
	run := func() *internal.RunUseCase { return a.runUC }
	validate := func() *internal.ValidateUseCase { return a.validateUC }
	commit := func() *internal.CommitUseCase { return a.commitUC }
	logUC := func() *internal.LogUseCase { return a.logUC }

	hist := func() *internal.HistoryService { return a.historySvc }
	mem := func() *internal.MemoryService { return a.memorySvc }
	status := func() *internal.StatusService { return a.statusSvc }
	bank := func() *internal.BankService { return a.bankSvc }
	news := func() *internal.NewsService { return a.newsSvc }
	posts := func() *internal.PostsService { return a.postsSvc }
	health := func() *internal.HealthService { return a.healthSvc }
	provider := func() *internal.ProviderService { return a.providerSvc }

	root.AddCommand(
		NewInitCmd(initUC),
		NewRunCmd(run),
		NewValidateCmd(validate),
		NewMemoryCmd(mem, hist),
		NewLogCmd(logUC),
		NewCommitCmd(commit),
		NewRevertCmd(hist),
		NewWatchCmd(commit),
		NewStatusCmd(status),
		NewBankCmd(bank),
		NewNewsCmd(news),
		NewPostsCmd(posts),
		NewProviderCmd(provider),
		NewHealthCmd(health),
	)
}

func setHelpWithExternals(cmd *cobra.Command) {
	defaultHelp := cmd.HelpFunc()

	cmd.SetHelpFunc(func(c *cobra.Command, args []string) {
		defaultHelp(c, args)
		printExternalCommands(c)
	})
}

func printExternalCommands(cmd *cobra.Command) {
	externals := listExternalCommands()
	if len(externals) == 0 {
		return
	}

	fmt.Fprintln(cmd.OutOrStdout(), "\nExternal commands (barwatch-*):")
	for _, name := range externals {
		fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", name)
	}
}

// wantJSON reports whether the --json flag is set.
func wantJSON(cmd *cobra.Command) bool {
	asJSON, _ := cmd.Flags().GetBool("json")
	return asJSON
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func stateHint(cmd *cobra.Command) string {
	state, _ := cmd.Flags().GetString("state")
	return state
}

func shortHash(hash string) string {
	if len(hash) > 7 {
		return hash[:7]
	}
	return hash
}

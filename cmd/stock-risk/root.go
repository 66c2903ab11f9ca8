package main

import (
	"github.com/spf13/cobra"

	"github.com/enori/stock-skills/internal/app"
	"github.com/enori/stock-skills/internal/common"
)

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "stock-risk",
		Short:         "Portfolio risk analytics: correlation, factors, stress scenarios, VaR and concentration",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to stock-risk.toml (default: $STOCKRISK_CONFIG, then next to the binary)")

	root.AddCommand(
		newAnalyzeCmd(opts),
		newScenariosCmd(opts),
		newServeCmd(opts),
		newVersionCmd(),
	)
	return root
}

func (o *rootOptions) openApp() (*app.App, error) {
	return app.NewApp(o.configPath)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			common.LoadVersionFromFile()
			cmd.Println("stock-risk " + common.CurrentBuild().String())
		},
	}
}

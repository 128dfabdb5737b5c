// Command postdex builds and maintains the posts search index.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/postdex/internal/config"
	"github.com/kailas-cloud/postdex/internal/version"
)

type rootFlags struct {
	env        string
	configPath string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:   "postdex",
		Short: "Build and maintain the posts search index",
		Long: `postdex turns content entities into search documents and writes them
to Redis or an embedded bleve index. Without a subcommand it serves the
ops HTTP API.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, flags)
		},
	}
	root.PersistentFlags().StringVar(&flags.env, "env", config.GetEnv(), "environment: local, dev, docker, prod")
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "config file (default config/<env>.yaml)")

	root.AddCommand(
		newServeCmd(flags),
		newSchemaCmd(flags),
		newSyncCmd(flags),
		newReindexCmd(flags),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Println(version.String())
		},
	}
}

func (f *rootFlags) load() (config.Config, error) {
	if f.configPath != "" {
		return config.LoadFile(f.configPath)
	}
	return config.Load(f.env)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

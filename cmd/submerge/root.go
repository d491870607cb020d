package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/prtools/submerge/internal/cfg"
	"github.com/prtools/submerge/internal/githubclt"
	"github.com/prtools/submerge/internal/logfields"
)

const defConfigFile = "/etc/submerge/config.toml"

var (
	argVerbose  bool
	argCfgFile  string
	argAPIToken string
)

var (
	config       *cfg.Config
	githubClient *githubclt.Client
)

var rootCmd = &cobra.Command{
	Use:           appName,
	Short:         "Merge, rebase and clean up GitHub pull requests across submodule trees",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// exitOnErr instead of logger.Fatal(), the logger is not
		// initialized yet
		var err error
		config, err = cfg.LoadFile(argCfgFile)
		exitOnErr(fmt.Sprintf("could not load configuration file: %s", argCfgFile), err)

		if argAPIToken != "" {
			config.GithubAPIToken = argAPIToken
		}
		if token := os.Getenv("GITHUB_API_TOKEN"); config.GithubAPIToken == "" && token != "" {
			config.GithubAPIToken = token
		}

		mustInitLogger(config, argVerbose)

		githubClient = githubclt.New(config.GithubAPIToken)

		logger.Debug(
			"loaded cfg file",
			logfields.Event("cfg_loaded"),
			zap.String("cfg_file", argCfgFile),
			zap.String("github_api_token", hide(config.GithubAPIToken)),
			zap.String("git_remote", config.GitRemote),
			zap.String("log_format", config.LogFormat),
			zap.String("log_time_key", config.LogTimeKey),
			zap.String("log_level", config.LogLevel),
			zap.String("test_directories_file", config.TestDirectoriesFile),
		)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&argVerbose, "verbose", "v", false,
		"enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&argCfgFile, "cfg-file", "c", defConfigFile,
		"path to the submerge configuration file")
	rootCmd.PersistentFlags().StringVar(&argAPIToken, "token", "",
		"github api token, overrides the configuration file and the GITHUB_API_TOKEN environment variable")
}

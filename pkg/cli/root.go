// Package cli provides the command-line interface for fatbuild.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile     string
	projectRoot string
	verbosity   string
	version     string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "fatbuild",
	Short: "Build and merge multi-architecture packages",
	Long: `fatbuild runs a recipe's build and package steps once per requested
architecture and folds the resulting package trees into a single universal
tree, fusing binaries into fat Mach-O files along the way.`,

	Run: func(cmd *cobra.Command, args []string) {
		if v, _ := cmd.Flags().GetBool("version"); v {
			fmt.Printf("fatbuild v%s\n", version)
			return
		}
		cmd.Help()
	},
}

// Execute runs the CLI
func Execute(v string) error {
	version = v
	initializeRootCommand()
	return rootCmd.Execute()
}

// initializeRootCommand sets up the root command and its flags. Explicit
// initialization keeps the command tree testable.
func initializeRootCommand() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: fatbuild.config.json)")
	rootCmd.PersistentFlags().StringVar(&projectRoot, "root", ".", "project root directory")
	rootCmd.PersistentFlags().StringVarP(&verbosity, "verbosity", "v", "info", "log level (debug, info, warn, error)")

	rootCmd.Flags().Bool("version", false, "Print version information and quit")

	rootCmd.AddCommand(newBuildCmd())
	rootCmd.AddCommand(newCheckCmd())
	rootCmd.AddCommand(newMergeCmd())
	rootCmd.AddCommand(newClassifyCmd())
	rootCmd.AddCommand(newVersionCmd())
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(projectRoot)
		viper.SetConfigName("fatbuild.config")
		viper.SetConfigType("json")
	}

	viper.SetEnvPrefix("FATBUILD")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		if verbosity == "debug" {
			fmt.Println("Using config file:", viper.ConfigFileUsed())
		}
	}
}

// Helper functions

func printSuccess(message string) {
	fmt.Printf("%s %s\n", color.GreenString("[fatbuild]"), message)
}

func printError(message string) {
	fmt.Fprintf(os.Stderr, "%s %s\n", color.RedString("[fatbuild]"), message)
}

func printInfo(message string) {
	fmt.Printf("%s %s\n", color.CyanString("[fatbuild]"), message)
}

func getConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return filepath.Join(projectRoot, "fatbuild.config.json")
}

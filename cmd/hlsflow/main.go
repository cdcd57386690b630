package main

import (
	"fmt"
	"os"

	"github.com/ReconfigureIO/hlsflow/config"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	conf *config.Config

	RootCmd = &cobra.Command{
		Use:              "hlsflow",
		Short:            "Turn quantized neural networks into synthesized FPGA projects",
		PersistentPreRun: setup,
		SilenceUsage:     true,
	}

	version string
)

func setup(*cobra.Command, []string) {
	var err error
	conf, err = config.ParseEnvConfig()
	if err != nil {
		log.Fatal(err)
	}

	err = config.SetupLogging(version, conf)
	if err != nil {
		log.Fatal(err)
	}
}

// add commands to root command
func main() {
	RootCmd.AddCommand(commands()...)

	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func commands() []*cobra.Command {
	return []*cobra.Command{
		runCmd(),
		sweepCmd(),
		configCmd(),
		convertCmd(),
		synthCmd(),
		reportCmd(),
		serveCmd(),
		migrateCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print the version",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintln(cmd.OutOrStdout(), version)
			},
		},
	}
}

func exitWithErr(err string) {
	log.Error(err)
	os.Exit(1)
}

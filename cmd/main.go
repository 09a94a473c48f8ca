package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/theblitlabs/parity-ml/cmd/cli"
	"github.com/theblitlabs/parity-ml/pkg/logger"
)

var (
	logMode    string
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "parity-ml",
	Short: "Parity ML",
	Long:  `Integrity-checked transfer of training data and model coefficients, with logistic-regression training and prediction on the server`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		switch logMode {
		case "debug", "pretty", "info", "prod", "test":
			logger.InitWithMode(logger.LogMode(logMode))
		default:
			logger.InitWithMode(logger.LogModePretty)
		}
	},
	SilenceUsage: true,
}

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the transfer server and admin API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.RunServer(cmd.Context(), configPath)
	},
}

var uploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Upload a dataset or coefficient file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		purpose, err := cmd.Flags().GetString("purpose")
		if err != nil {
			return err
		}
		return cli.RunUpload(cmd.Context(), configPath, purpose, args[0])
	},
}

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train on the last uploaded training dataset",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.RunTrain(cmd.Context(), configPath, cmd.OutOrStdout())
	},
}

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Predict with the last uploaded dataset and coefficients",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.RunPredict(cmd.Context(), configPath, cmd.OutOrStdout())
	},
}

var normalizeCmd = &cobra.Command{
	Use:   "normalize <csv>",
	Short: "Print the min-max normalized records of a local CSV",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.RunNormalize(args[0], cmd.OutOrStdout())
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token signed with the configured secret",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		subject, err := cmd.Flags().GetString("subject")
		if err != nil {
			return err
		}
		ttl, err := cmd.Flags().GetDuration("ttl")
		if err != nil {
			return err
		}
		return cli.RunToken(configPath, subject, ttl, cmd.OutOrStdout())
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the artifact catalog table",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.RunMigrate(cmd.Context(), configPath)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logMode, "log", "pretty", "Log mode: debug, pretty, info, prod, test")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config/config.yaml", "Path to the config file")

	uploadCmd.Flags().String("purpose", "", "What the file is for: training, prediction or model")
	if err := uploadCmd.MarkFlagRequired("purpose"); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}

	tokenCmd.Flags().String("subject", "", "Token subject (defaults to auth.subject)")
	tokenCmd.Flags().Duration("ttl", 0, "Token lifetime (defaults to auth.token_ttl)")

	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(trainCmd)
	rootCmd.AddCommand(predictCmd)
	rootCmd.AddCommand(normalizeCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(migrateCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

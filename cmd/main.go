package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mmat11/fwsim/internal"
)

var (
	info     = color.New(color.FgBlue).FprintfFunc()
	success  = color.New(color.FgGreen).FprintfFunc()
	errPrint = color.New(color.FgRed).FprintfFunc()
)

var (
	v          = viper.New()
	configFile string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "fwsim",
		Short: "Offline firewall rule simulator",
		Long: `Evaluate packets against an ordered list of firewall rules, first match wins.

Rules are written one per line:

  tcp srcAddress 192.168.1.0/24 dstAddress 0.0.0.0/0 srcPort 25 action accept

Use it to lint rule files, check single packets, run policy suites and
replay packet captures without touching a live network stack.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "Path to fwsim settings file")
	flags.String("log-level", "warn", "Log level (debug, info, warn, error)")
	flags.String("default-action", "none", "Action for packets no rule matches (accept, deny, reject, none)")
	flags.Bool("no-color", false, "Disable colored output")
	_ = v.BindPFlag("log_level", flags.Lookup("log-level"))
	_ = v.BindPFlag("default_action", flags.Lookup("default-action"))
	_ = v.BindPFlag("no_color", flags.Lookup("no-color"))

	rootCmd.AddCommand(
		newLintCmd(),
		newPrintCmd(),
		newCheckCmd(),
		newTestCmd(),
		newReplayCmd(),
	)
	return rootCmd
}

// initConfig reads settings from the settings file, FWSIM_* environment
// variables and flags, then sets up logging.
func initConfig() error {
	v.SetEnvPrefix("fwsim")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read settings: %w", err)
		}
	}

	noColor := v.GetBool("no_color")
	if noColor {
		color.NoColor = true
	}

	lvl, err := zerolog.ParseLevel(v.GetString("log_level"))
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	l := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: noColor}).Level(lvl).With().Timestamp().Logger()
	internal.Logger.Store(&l)
	return nil
}

func defaultAction() (internal.Action, error) {
	var act internal.Action
	if err := act.UnmarshalText([]byte(v.GetString("default_action"))); err != nil {
		return act, fmt.Errorf("invalid default action: %w", err)
	}
	return act, nil
}

func loadRules(path string) (*internal.RuleList, error) {
	l := internal.NewRuleList()
	if err := l.LoadFile(path); err != nil {
		return nil, err
	}
	return l, nil
}

func actionString(a internal.Action) string {
	switch a {
	case internal.ActionAccept:
		return color.GreenString(a.String())
	case internal.ActionDeny, internal.ActionReject:
		return color.RedString(a.String())
	default:
		return color.YellowString("none")
	}
}

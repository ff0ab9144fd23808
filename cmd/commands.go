package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"syscall"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"inet.af/netaddr"

	"github.com/mmat11/fwsim/internal"
)

func newLintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lint FILE...",
		Short: "Check that rule files parse",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			failed := 0
			for _, path := range args {
				l, err := loadRules(path)
				if err != nil {
					failed++
					errPrint(out, "%v\n", err)
					var le *internal.LoadError
					if errors.As(err, &le) {
						errPrint(out, "  %d | %s\n", le.Line, le.Text)
					}
					continue
				}
				success(out, "%s: %d rules\n", path, l.Len())
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files failed", failed, len(args))
			}
			return nil
		},
	}
}

func newPrintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "print FILE",
		Short: "Print the rules of a file in evaluation order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := loadRules(args[0])
			if err != nil {
				return err
			}

			data := make([][]string, 0, l.Len())
			for _, r := range l.Rules() {
				data = append(data, []string{r.Metadata(), r.Tier().String(), r.String(), actionString(r.Action())})
			}
			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.SetHeader([]string{"Source", "Tier", "Rule", "Action"})
			table.SetAutoFormatHeaders(false)
			table.SetAutoWrapText(false)
			table.AppendBulk(data)
			table.Render()
			return nil
		},
	}
}

func newCheckCmd() *cobra.Command {
	var (
		proto      string
		src, dst   string
		sport, dpt uint16
	)
	cmd := &cobra.Command{
		Use:     "check FILE",
		Short:   "Evaluate a single packet against a rule file",
		Example: `  fwsim check site.rules --proto tcp --src 192.168.1.1 --sport 25 --dst 1.2.3.4 --dport 9876`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := defaultAction()
			if err != nil {
				return err
			}
			probe, err := buildProbe(proto, src, dst, sport, dpt)
			if err != nil {
				return err
			}
			l, err := loadRules(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			rule, act := internal.Verdict(l, probe, def)
			if rule == nil {
				info(out, "no rule matched\n")
			} else {
				info(out, "%s: %s\n", rule.Metadata(), rule.String())
			}
			fmt.Fprintf(out, "action: %s\n", actionString(act))
			return nil
		},
	}
	cmd.Flags().StringVar(&proto, "proto", "tcp", "Packet protocol (tcp, udp, icmp)")
	cmd.Flags().StringVar(&src, "src", "", "Source IPv4 address")
	cmd.Flags().StringVar(&dst, "dst", "", "Destination IPv4 address")
	cmd.Flags().Uint16Var(&sport, "sport", 0, "Source port")
	cmd.Flags().Uint16Var(&dpt, "dport", 0, "Destination port")
	_ = cmd.MarkFlagRequired("src")
	_ = cmd.MarkFlagRequired("dst")
	return cmd
}

func buildProbe(proto, src, dst string, sport, dport uint16) (internal.Probe, error) {
	p := internal.Probe{SrcPort: internal.Port(sport), DstPort: internal.Port(dport)}
	switch proto {
	case "tcp":
		p.Protocol = internal.ProtocolTCP
	case "udp":
		p.Protocol = internal.ProtocolUDP
	case "icmp":
		p.Protocol = internal.ProtocolICMP
	default:
		return p, fmt.Errorf("invalid protocol: %v", proto)
	}
	var err error
	if p.Src, err = netaddr.ParseIP(src); err != nil || !p.Src.Is4() {
		return p, fmt.Errorf("invalid source address %q", src)
	}
	if p.Dst, err = netaddr.ParseIP(dst); err != nil || !p.Dst.Is4() {
		return p, fmt.Errorf("invalid destination address %q", dst)
	}
	return p, nil
}

func newTestCmd() *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "test SUITE...",
		Short: "Run policy suites",
		Long: `Run policy suites. A suite is a YAML file with rules and the verdicts
expected for a set of packets. With --watch the suites run again each time a
suite or its rules file changes.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			err := runSuites(ctx, cmd, args)
			if !watch {
				return err
			}
			if err != nil {
				errPrint(cmd.ErrOrStderr(), "%v\n", err)
			}
			return internal.Watch(ctx, watchedFiles(args), func() {
				if err := runSuites(ctx, cmd, args); err != nil {
					errPrint(cmd.ErrOrStderr(), "%v\n", err)
				}
			})
		},
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Run again when suites or rule files change")
	return cmd
}

func runSuites(ctx context.Context, cmd *cobra.Command, paths []string) error {
	out := cmd.OutOrStdout()
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Suite", "Case", "Expect", "Got", "Rule", "Result"})
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)

	var passed, failed int
	for _, path := range paths {
		cfg, err := internal.LoadConfig(path)
		if err != nil {
			return err
		}
		if cfg.DefaultAction == internal.ActionUnset {
			if cfg.DefaultAction, err = defaultAction(); err != nil {
				return err
			}
		}
		report, err := internal.Run(ctx, cfg)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		for _, res := range report.Results {
			rule := "-"
			if res.Rule != nil {
				rule = res.Rule.Metadata()
			}
			table.Append([]string{path, res.Case.Name, actionString(res.Case.Expect), actionString(res.Action), rule, verdict(res.Passed)})
		}
		passed += report.Passed
		failed += report.Failed
	}
	table.Render()

	if failed > 0 {
		return fmt.Errorf("%d of %d cases failed", failed, passed+failed)
	}
	success(out, "%d cases passed\n", passed)
	return nil
}

func watchedFiles(suites []string) []string {
	files := append([]string(nil), suites...)
	for _, path := range suites {
		cfg, err := internal.LoadConfig(path)
		if err != nil || cfg.RulesFile == "" {
			continue
		}
		files = append(files, cfg.RulesFile)
	}
	return files
}

func newReplayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay RULES CAPTURE...",
		Short: "Replay pcap captures against a rule file",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := defaultAction()
			if err != nil {
				return err
			}
			l, err := loadRules(args[0])
			if err != nil {
				return err
			}

			var ev internal.Evaluator = l
			if cacheSize := v.GetInt("cache_size"); cacheSize > 0 {
				if ev, err = internal.NewCachedEvaluator(l, cacheSize); err != nil {
					return err
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			stats, err := internal.Replay(ctx, ev, def, args[1:]...)
			if err != nil {
				return err
			}
			renderReplay(cmd, stats)
			return nil
		},
	}
	cmd.Flags().Int("cache-size", 4096, "Number of flows to cache verdicts for, 0 disables the cache")
	_ = v.BindPFlag("cache_size", cmd.Flags().Lookup("cache-size"))
	return cmd
}

func renderReplay(cmd *cobra.Command, stats []internal.ReplayStats) {
	out := cmd.OutOrStdout()

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Capture", "Packets", "accept", "deny", "reject", "unmatched"})
	table.SetAutoFormatHeaders(false)
	for _, s := range stats {
		table.Append([]string{
			s.Path,
			strconv.Itoa(s.Packets),
			strconv.Itoa(s.Actions[internal.ActionAccept]),
			strconv.Itoa(s.Actions[internal.ActionDeny]),
			strconv.Itoa(s.Actions[internal.ActionReject]),
			strconv.Itoa(s.NoMatch),
		})
	}
	table.Render()

	hits := make(map[string]int)
	for _, s := range stats {
		for rule, n := range s.Rules {
			hits[rule] += n
		}
	}
	if len(hits) == 0 {
		return
	}
	rules := make([]string, 0, len(hits))
	for rule := range hits {
		rules = append(rules, rule)
	}
	sort.Strings(rules)

	table = tablewriter.NewWriter(out)
	table.SetHeader([]string{"Rule", "Hits"})
	table.SetAutoFormatHeaders(false)
	for _, rule := range rules {
		table.Append([]string{rule, strconv.Itoa(hits[rule])})
	}
	table.Render()
}

func verdict(passed bool) string {
	if passed {
		return color.GreenString("PASS")
	}
	return color.RedString("FAIL")
}

package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/pcapgo"
	"golang.org/x/sync/errgroup"
)

// ReplayStats tallies the verdicts for the packets of one capture file.
type ReplayStats struct {
	Path    string
	Packets int
	// Actions counts effective actions, the default action included.
	Actions map[Action]int
	// Rules counts matches per rule metadata.
	Rules   map[string]int
	NoMatch int
}

// Replay evaluates every packet of the given pcap files. Files are read
// concurrently, so ev must be fully loaded before the call.
func Replay(ctx context.Context, ev Evaluator, defaultAction Action, paths ...string) ([]ReplayStats, error) {
	stats := make([]ReplayStats, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			s, err := replayFile(ctx, ev, defaultAction, path)
			if err != nil {
				return fmt.Errorf("replay %s: %w", path, err)
			}
			stats[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return stats, nil
}

func replayFile(ctx context.Context, ev Evaluator, defaultAction Action, path string) (ReplayStats, error) {
	s := ReplayStats{
		Path:    path,
		Actions: make(map[Action]int),
		Rules:   make(map[string]int),
	}

	f, err := os.Open(path)
	if err != nil {
		return s, err
	}
	defer f.Close()

	r, err := pcapgo.NewReader(f)
	if err != nil {
		return s, err
	}

	opts := gopacket.DecodeOptions{Lazy: true, NoCopy: true}
	for {
		if err := ctx.Err(); err != nil {
			return s, err
		}
		data, _, err := r.ReadPacketData()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return s, err
		}

		v := NewPacketView(gopacket.NewPacket(data, r.LinkType(), opts))
		rule, act := Verdict(ev, v, defaultAction)
		s.Packets++
		s.Actions[act]++
		if rule == nil {
			s.NoMatch++
			continue
		}
		s.Rules[ruleLabel(rule)]++
	}

	Logger.Load().Info().Str("path", path).Int("packets", s.Packets).Int("unmatched", s.NoMatch).Msg("capture replayed")
	return s, nil
}

func ruleLabel(r *Rule) string {
	if r.Metadata() != "" {
		return r.Metadata()
	}
	return r.String()
}

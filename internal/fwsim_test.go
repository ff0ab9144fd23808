package internal_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmat11/fwsim/internal"
)

func TestRun(t *testing.T) {
	cfg := internal.Config{
		Rules:         strings.Join(siteRules, "\n"),
		DefaultAction: internal.ActionReject,
		Cases: []internal.Case{
			{Name: "smtp out", Packet: tcpProbe("192.168.1.1", 25, "1.2.3.4", 9876), Expect: internal.ActionAccept, ExpectRule: "Line 1"},
			{Name: "smtp in", Packet: tcpProbe("1.2.3.4", 9876, "192.168.1.1", 25), Expect: internal.ActionDeny},
			{Name: "dns out by wrong rule", Packet: udpProbe("192.168.1.1", 53, "1.2.3.4", 9876), Expect: internal.ActionAccept, ExpectRule: "Line 6"},
			{Name: "icmp falls through", Packet: tcpProbe("10.0.0.1", 1, "10.0.0.2", 2), Expect: internal.ActionAccept},
		},
	}
	cfg.Cases[3].Packet.Protocol = internal.ProtocolICMP

	report, err := internal.Run(context.Background(), cfg)
	require.NoError(t, err)
	require.Len(t, report.Results, 4)
	assert.Equal(t, 2, report.Passed)
	assert.Equal(t, 2, report.Failed)
	assert.False(t, report.OK())

	smtpOut := report.Results[0]
	assert.True(t, smtpOut.Passed)
	require.NotNil(t, smtpOut.Rule)
	assert.Equal(t, "Line 1", smtpOut.Rule.Metadata())

	assert.True(t, report.Results[1].Passed)

	dns := report.Results[2]
	assert.False(t, dns.Passed)
	assert.Equal(t, internal.ActionAccept, dns.Action)
	assert.Equal(t, "Line 4", dns.Rule.Metadata())

	icmp := report.Results[3]
	assert.False(t, icmp.Passed)
	assert.Nil(t, icmp.Rule)
	assert.Equal(t, internal.ActionReject, icmp.Action)
}

func TestRunErrors(t *testing.T) {
	_, err := internal.Run(context.Background(), internal.Config{Rules: "ip action accept\nip action never\n"})
	assert.ErrorIs(t, err, internal.ErrUnhandledFieldName)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = internal.Run(ctx, internal.Config{
		Rules: "ip action accept",
		Cases: []internal.Case{{Name: "any", Packet: tcpProbe("10.0.0.1", 1, "10.0.0.2", 2), Expect: internal.ActionAccept}},
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestVerdict(t *testing.T) {
	l := internal.NewRuleList()
	require.NoError(t, l.LoadLines([]string{"tcp dstPort 22 action deny", "udp dstPort 53"}))

	r, act := internal.Verdict(l, tcpProbe("10.0.0.1", 1000, "10.0.0.2", 22), internal.ActionAccept)
	assert.Same(t, l.Rules()[0], r)
	assert.Equal(t, internal.ActionDeny, act)

	r, act = internal.Verdict(l, tcpProbe("10.0.0.1", 1000, "10.0.0.2", 80), internal.ActionAccept)
	assert.Nil(t, r)
	assert.Equal(t, internal.ActionAccept, act)

	// A matching rule without an action is not replaced by the default.
	r, act = internal.Verdict(l, udpProbe("10.0.0.1", 1000, "10.0.0.2", 53), internal.ActionAccept)
	assert.Same(t, l.Rules()[1], r)
	assert.Equal(t, internal.ActionUnset, act)
}

func TestAction(t *testing.T) {
	for _, s := range []string{"accept", "deny", "reject"} {
		act, err := internal.ParseAction(s)
		require.NoError(t, err)
		assert.Equal(t, s, act.String())
	}

	var act internal.Action
	require.NoError(t, act.UnmarshalText([]byte("deny")))
	assert.Equal(t, internal.ActionDeny, act)
	require.NoError(t, act.UnmarshalText([]byte("none")))
	assert.Equal(t, internal.ActionUnset, act)
	assert.ErrorIs(t, act.UnmarshalText([]byte("drop")), internal.ErrUnhandledFieldName)
}

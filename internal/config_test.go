package internal_test

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"gopkg.in/yaml.v3"
	"inet.af/netaddr"

	"github.com/mmat11/fwsim/internal"
)

func TestParseConfig(t *testing.T) {
	var tests = []struct {
		name           string
		bytes          []byte
		expectedConfig internal.Config
	}{
		{
			"empty file",
			[]byte{},
			internal.Config{},
		},
		{
			"full",
			[]byte(`
rules: |
  tcp srcAddress 192.168.1.0/24 srcPort 25 action accept
  udp action deny
default_action: reject
cases:
  - name: smtp out
    packet:
      protocol: tcp
      src: 192.168.1.1
      dst: 1.2.3.4
      src_port: 25
      dst_port: 9876
    expect: accept
    expect_rule: Line 1
  - name: ping
    packet: {protocol: icmp, src: 10.0.0.1, dst: 10.0.0.2}
    expect: none`),
			internal.Config{
				Rules:         "tcp srcAddress 192.168.1.0/24 srcPort 25 action accept\nudp action deny\n",
				DefaultAction: internal.ActionReject,
				Cases: []internal.Case{
					{
						Name: "smtp out",
						Packet: internal.Probe{
							Protocol: internal.ProtocolTCP,
							Src:      netaddr.MustParseIP("192.168.1.1"),
							Dst:      netaddr.MustParseIP("1.2.3.4"),
							SrcPort:  25,
							DstPort:  9876,
						},
						Expect:     internal.ActionAccept,
						ExpectRule: "Line 1",
					},
					{
						Name: "ping",
						Packet: internal.Probe{
							Protocol: internal.ProtocolICMP,
							Src:      netaddr.MustParseIP("10.0.0.1"),
							Dst:      netaddr.MustParseIP("10.0.0.2"),
						},
						Expect: internal.ActionUnset,
					},
				},
			},
		},
		{
			"rules file only",
			[]byte(`rules_file: site.rules`),
			internal.Config{RulesFile: "site.rules"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg internal.Config
			if err := yaml.Unmarshal(tt.bytes, &cfg); err != nil {
				t.Fatalf("unmarshal config file: %v", err)
			}
			if !reflect.DeepEqual(cfg, tt.expectedConfig) {
				t.Fatalf("parsed config is incorrect:\nwant:\n%v\ngot:\n%v\n", tt.expectedConfig, cfg)
			}
		})
	}
}

func TestParseConfigInvalid(t *testing.T) {
	var tests = []struct {
		name  string
		bytes []byte
	}{
		{
			"no rules",
			[]byte(`
cases:
  - name: ping
    packet: {protocol: icmp, src: 10.0.0.1, dst: 10.0.0.2}
    expect: accept`),
		},
		{
			"unknown protocol",
			[]byte(`
rules: ip action accept
cases:
  - name: gre
    packet: {protocol: gre, src: 10.0.0.1, dst: 10.0.0.2}
    expect: accept`),
		},
		{
			"ipv6 address",
			[]byte(`
rules: ip action accept
cases:
  - name: v6
    packet: {protocol: tcp, src: "2001:db8::1", dst: 10.0.0.2}
    expect: accept`),
		},
		{
			"missing expect",
			[]byte(`
rules: ip action accept
cases:
  - name: ping
    packet: {protocol: icmp, src: 10.0.0.1, dst: 10.0.0.2}`),
		},
		{
			"unknown action",
			[]byte(`
rules: ip action accept
cases:
  - name: ping
    packet: {protocol: icmp, src: 10.0.0.1, dst: 10.0.0.2}
    expect: allow`),
		},
		{
			"unknown default action",
			[]byte(`
rules: ip action accept
default_action: drop`),
		},
		{
			"port out of range",
			[]byte(`
rules: ip action accept
cases:
  - name: big
    packet: {protocol: tcp, src: 10.0.0.1, dst: 10.0.0.2, dst_port: 70000}
    expect: accept`),
		},
		{
			"named port",
			[]byte(`
rules: ip action accept
cases:
  - name: http
    packet: {protocol: tcp, src: 10.0.0.1, dst: 10.0.0.2, dst_port: http}
    expect: accept`),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg internal.Config
			if err := yaml.Unmarshal(tt.bytes, &cfg); err == nil {
				t.Fatal("unmarshal config file: expected error")
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	rules := filepath.Join(dir, "site.rules")
	if err := os.WriteFile(rules, []byte("tcp action accept\n# comment\nudp action deny\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	suite := filepath.Join(dir, "suite.yaml")
	if err := os.WriteFile(suite, []byte("rules: ip srcAddress 10.0.0.0/8 action reject\nrules_file: site.rules\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := internal.LoadConfig(suite)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.RulesFile != rules {
		t.Fatalf("rules file not resolved: want %s, got %s", rules, cfg.RulesFile)
	}

	l, err := cfg.RuleList()
	if err != nil {
		t.Fatalf("rule list: %v", err)
	}
	var got []string
	for _, r := range l.Rules() {
		got = append(got, r.Metadata()+": "+r.String())
	}
	want := []string{
		"Line 1: ip srcAddress 10.0.0.0/8 action reject",
		"Line 1: tcp action accept",
		"Line 3: udp action deny",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("rule list is incorrect:\nwant:\n%v\ngot:\n%v\n", want, got)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	dir := t.TempDir()

	if _, err := internal.LoadConfig(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatal("load config: expected error for missing file")
	}

	suite := filepath.Join(dir, "suite.yaml")
	if err := os.WriteFile(suite, []byte("rules: [not, a, string"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := internal.LoadConfig(suite); err == nil {
		t.Fatal("load config: expected error for invalid yaml")
	}

	cfg := internal.Config{Rules: "ip action accept\ntcp srcPort x\n"}
	if _, err := cfg.RuleList(); err == nil {
		t.Fatal("rule list: expected error for invalid inline rules")
	}

	cfg = internal.Config{RulesFile: filepath.Join(dir, "missing.rules")}
	if _, err := cfg.RuleList(); err == nil {
		t.Fatal("rule list: expected error for missing rules file")
	}
}

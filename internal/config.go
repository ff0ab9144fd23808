package internal

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
	"inet.af/netaddr"
)

// Config is a policy suite: a rule list, the action for unmatched packets and
// the cases the rule list is expected to satisfy.
type Config struct {
	Rules         string
	RulesFile     string
	DefaultAction Action
	Cases         []Case
}

// Case is one expectation of a suite. ExpectRule, when set, is the metadata
// of the rule that must match ("Line 3").
type Case struct {
	Name       string
	Packet     Probe
	Expect     Action
	ExpectRule string
}

type rawConfig struct {
	Rules         string    `yaml:"rules" validate:"required_without=RulesFile"`
	RulesFile     string    `yaml:"rules_file"`
	DefaultAction string    `yaml:"default_action" validate:"omitempty,oneof=accept deny reject none"`
	Cases         []rawCase `yaml:"cases" validate:"dive"`
}

type rawCase struct {
	Name       string    `yaml:"name" validate:"required"`
	Packet     rawPacket `yaml:"packet"`
	Expect     string    `yaml:"expect" validate:"required,oneof=accept deny reject none"`
	ExpectRule string    `yaml:"expect_rule"`
}

type rawPacket struct {
	Protocol string `yaml:"protocol" validate:"required,oneof=icmp tcp udp"`
	Src      string `yaml:"src" validate:"required,ipv4"`
	Dst      string `yaml:"dst" validate:"required,ipv4"`
	SrcPort  string `yaml:"src_port" validate:"omitempty,numeric"`
	DstPort  string `yaml:"dst_port" validate:"omitempty,numeric"`
}

func (cfg *Config) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw rawConfig
	if err := unmarshal(&raw); err != nil {
		return err
	}
	if err := validateRawConfig(&raw); err != nil {
		return err
	}

	*cfg = Config{}
	cfg.Rules = raw.Rules
	cfg.RulesFile = raw.RulesFile
	if err := cfg.DefaultAction.UnmarshalText([]byte(raw.DefaultAction)); err != nil {
		return fmt.Errorf("load config default_action: %w", err)
	}

	for _, rc := range raw.Cases {
		c, err := caseFromRaw(&rc)
		if err != nil {
			return fmt.Errorf("load config case %q: %w", rc.Name, err)
		}
		cfg.Cases = append(cfg.Cases, *c)
	}
	return nil
}

func caseFromRaw(rc *rawCase) (*Case, error) {
	c := Case{Name: rc.Name, ExpectRule: rc.ExpectRule}

	if err := c.Expect.UnmarshalText([]byte(rc.Expect)); err != nil {
		return nil, err
	}

	switch rc.Packet.Protocol {
	case "icmp":
		c.Packet.Protocol = ProtocolICMP
	case "tcp":
		c.Packet.Protocol = ProtocolTCP
	case "udp":
		c.Packet.Protocol = ProtocolUDP
	default:
		return nil, fmt.Errorf("invalid protocol: %v", rc.Packet.Protocol)
	}

	var err error
	if c.Packet.Src, err = netaddr.ParseIP(rc.Packet.Src); err != nil {
		return nil, fmt.Errorf("load config ip: %w", err)
	}
	if c.Packet.Dst, err = netaddr.ParseIP(rc.Packet.Dst); err != nil {
		return nil, fmt.Errorf("load config ip: %w", err)
	}
	if c.Packet.SrcPort, err = portFromRaw(rc.Packet.SrcPort); err != nil {
		return nil, err
	}
	if c.Packet.DstPort, err = portFromRaw(rc.Packet.DstPort); err != nil {
		return nil, err
	}
	return &c, nil
}

func portFromRaw(p string) (Port, error) {
	if p == "" {
		return 0, nil
	}
	u64p, err := strconv.ParseUint(p, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid port: %v", p)
	}
	return Port(uint16(u64p)), nil
}

func validateRawConfig(raw *rawConfig) error {
	err := validator.New().Struct(raw)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}
	msgs := make([]string, 0, len(ve))
	for _, fe := range ve {
		msgs = append(msgs, fmt.Sprintf("%s: %s", strings.TrimPrefix(fe.Namespace(), "rawConfig."), fieldErrorMsg(fe)))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

func fieldErrorMsg(fe validator.FieldError) string {
	switch fe.Tag() {
	case "oneof":
		return fmt.Sprintf("must be one of: %q", fe.Param())
	case "required":
		return "value is required"
	case "required_without":
		return fmt.Sprintf("value is required when %s is empty", fe.Param())
	case "ipv4":
		return fmt.Sprintf("invalid IPv4 address: %v", fe.Value())
	case "numeric":
		return fmt.Sprintf("invalid port: %v", fe.Value())
	}
	return fmt.Sprintf("failed %q check", fe.Tag())
}

// LoadConfig reads a suite file. A relative rules_file is resolved against the
// directory of the suite.
func LoadConfig(path string) (Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("open config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("unmarshal config file %s: %w", path, err)
	}
	if cfg.RulesFile != "" && !filepath.IsAbs(cfg.RulesFile) {
		cfg.RulesFile = filepath.Join(filepath.Dir(path), cfg.RulesFile)
	}
	return cfg, nil
}

// RuleList builds the suite's rule list: inline rules first, then the rules
// file. Metadata is the line number within each source.
func (cfg *Config) RuleList() (*RuleList, error) {
	l := NewRuleList()
	if cfg.Rules != "" {
		if err := l.LoadFromReader(strings.NewReader(cfg.Rules)); err != nil {
			return nil, fmt.Errorf("load inline rules: %w", err)
		}
	}
	if cfg.RulesFile != "" {
		if err := l.LoadFile(cfg.RulesFile); err != nil {
			return nil, err
		}
	}
	return l, nil
}

package mcrouter

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/filipenf/mcrouter/ap"
	"github.com/filipenf/mcrouter/mc"
	"github.com/filipenf/mcrouter/reply"
)

// NetTimeouts holds the per-phase timeouts for backend conversations.
type NetTimeouts struct {
	Dial  time.Duration `yaml:"dial"`
	Read  time.Duration `yaml:"read"`
	Write time.Duration `yaml:"write"`
	Idle  time.Duration `yaml:"idle"`
}

// UnmarshalYAML accepts duration strings ("500ms", "3s") over the defaults.
func (n *NetTimeouts) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Dial  string `yaml:"dial"`
		Read  string `yaml:"read"`
		Write string `yaml:"write"`
		Idle  string `yaml:"idle"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}

	*n = *DefaultNetTimeouts()
	for _, f := range []struct {
		dst *time.Duration
		src string
	}{
		{&n.Dial, raw.Dial}, {&n.Read, raw.Read},
		{&n.Write, raw.Write}, {&n.Idle, raw.Idle},
	} {
		if f.src == "" {
			continue
		}
		d, err := time.ParseDuration(f.src)
		if err != nil {
			return err
		}
		*f.dst = d
	}
	return nil
}

// DefaultNetTimeouts initializes sane timeouts
func DefaultNetTimeouts() *NetTimeouts {
	return &NetTimeouts{
		Dial:  3 * time.Second,
		Read:  2 * time.Second,
		Write: 2 * time.Second,
		Idle:  300 * time.Second,
	}
}

// PolicyConfig overrides the result classification sets by name.  An empty
// list leaves the stock membership for that set.
type PolicyConfig struct {
	Error    []string `yaml:"error"`
	Failover []string `yaml:"failover"`
	SoftTko  []string `yaml:"soft_tko"`
	HardTko  []string `yaml:"hard_tko"`
}

func parseResults(names []string) ([]mc.Result, error) {
	out := make([]mc.Result, 0, len(names))
	for _, n := range names {
		r, ok := mc.ParseResult(n)
		if !ok {
			return nil, fmt.Errorf("unknown result: %s", n)
		}
		out = append(out, r)
	}
	return out, nil
}

// Policy builds the classification policy from the overrides, falling back
// to the stock membership for any set left empty.
func (pc *PolicyConfig) Policy() (*reply.Policy, error) {
	if pc == nil {
		return reply.DefaultPolicy(), nil
	}

	sets := [4][]string{pc.Error, pc.Failover, pc.SoftTko, pc.HardTko}
	stock := defaultPolicySets()

	var out [4][]mc.Result
	for i, names := range sets {
		if len(names) == 0 {
			out[i] = stock[i]
			continue
		}
		rs, err := parseResults(names)
		if err != nil {
			return nil, err
		}
		out[i] = rs
	}

	return reply.NewPolicy(out[0], out[1], out[2], out[3]), nil
}

func defaultPolicySets() [4][]mc.Result {
	return [4][]mc.Result{
		{mc.ResUnknown, mc.ResBusy, mc.ResTryAgain, mc.ResTko, mc.ResLocalError,
			mc.ResRemoteError, mc.ResConnectError, mc.ResConnectTimeout, mc.ResTimeout},
		{mc.ResTko, mc.ResConnectError, mc.ResConnectTimeout, mc.ResTimeout,
			mc.ResRemoteError, mc.ResBusy, mc.ResTryAgain},
		{mc.ResTimeout},
		{mc.ResConnectError, mc.ResConnectTimeout},
	}
}

// Config holds the overall proxy config.
type Config struct {
	// Destinations is the backend pool as host:port strings.  Which of them
	// an operation contacts is the caller's decision; these are only the
	// default full fan-out set.
	Destinations []string `yaml:"destinations"`

	Timeouts *NetTimeouts `yaml:"timeouts"`

	// TkoThreshold is the number of consecutive soft errors that trip a
	// destination.  Hard errors trip immediately.
	TkoThreshold int `yaml:"tko_threshold"`

	// AsyncLogDir enables spooling of failed deletes for replay when set.
	AsyncLogDir string `yaml:"asynclog_dir"`

	Policy *PolicyConfig `yaml:"policy"`
}

// DefaultConfig returns a sane config
func DefaultConfig() *Config {
	return &Config{
		Timeouts:     DefaultNetTimeouts(),
		TkoThreshold: 3,
	}
}

// SetDestinations parses a comma separated list of destinations into the
// config.
func (c *Config) SetDestinations(dests string) {
	for _, v := range strings.Split(dests, ",") {
		if d := strings.TrimSpace(v); d != "" {
			c.Destinations = append(c.Destinations, d)
		}
	}
}

// LoadConfig reads a yaml config file over the defaults.
func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	c := DefaultConfig()
	if err = yaml.Unmarshal(b, c); err != nil {
		return nil, err
	}
	if c.Timeouts == nil {
		c.Timeouts = DefaultNetTimeouts()
	}
	return c, c.Validate()
}

// Validate checks the destination addresses and thresholds.
func (c *Config) Validate() error {
	if c.TkoThreshold < 1 {
		return fmt.Errorf("invalid tko threshold: %d", c.TkoThreshold)
	}
	for _, d := range c.Destinations {
		if _, err := ap.Parse(d, ap.ProtoAscii); err != nil {
			return err
		}
	}
	return nil
}

// AccessPoints parses the configured destinations into shared descriptors.
func (c *Config) AccessPoints() ([]*ap.AccessPoint, error) {
	out := make([]*ap.AccessPoint, 0, len(c.Destinations))
	for _, d := range c.Destinations {
		a, err := ap.Parse(d, ap.ProtoAscii)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

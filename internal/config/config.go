package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/NodePath81/tsnperf/internal/util"
)

const (
	defaultLatencyCount    = 100
	defaultLatencyInterval = 10 * time.Millisecond
	defaultLatencyTimeout  = 1 * time.Second

	defaultThroughputRateLow       = "1m"
	defaultThroughputRateHigh      = "1g"
	defaultThroughputTolerance     = 0.01
	defaultThroughputLossThreshold = 0.001
	defaultThroughputMaxIterations = 20
	defaultThroughputTrialDuration = 2 * time.Second

	defaultFrameLossTrialDuration = 2 * time.Second

	defaultBurstLossThreshold = 1.0
	defaultBurstTrials        = 3
	defaultBurstLineRate      = "1g"

	defaultSockperfBin      = "sockperf"
	defaultSockperfPort     = 11111
	defaultSockperfMsgSize  = 1024
	defaultSockperfDuration = 10 * time.Second

	defaultFRERSamples = 1000

	defaultStatusAddr = "127.0.0.1"
	defaultStatusPort = 8080

	defaultStorePath = "tsnperf.db"

	defaultIperfBin = "iperf3"

	defaultOutputDir = "results"
)

var (
	defaultFrameSizes       = []int{64, 128, 256, 512, 1024, 1280, 1518}
	defaultFrameLossGrid    = []float64{100, 90, 80, 70, 50}
	defaultBurstSizes       = []int{100, 500, 1000, 2000, 5000, 10000}
	defaultSockperfMsgSizes = []int{64, 256, 512, 1024, 1472}
	defaultSockperfRates    = []int{50000, 100000, 150000}
)

type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be a scalar")
	}
	switch value.Tag {
	case "!!int", "!!float":
		var secs float64
		if err := value.Decode(&secs); err != nil {
			return err
		}
		*d = Duration(time.Duration(secs * float64(time.Second)))
		return nil
	default:
		var raw string
		if err := value.Decode(&raw); err != nil {
			return err
		}
		if raw == "" {
			*d = 0
			return nil
		}
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return err
		}
		*d = Duration(parsed)
		return nil
	}
}

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// FrameSizes is a list of on-wire frame sizes in bytes. Entries may be
// plain numbers or suffixed sizes ("1kb") per ParseSize.
type FrameSizes []int

func (f *FrameSizes) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.SequenceNode {
		return fmt.Errorf("frame sizes must be a list")
	}
	out := make([]int, 0, len(value.Content))
	for _, item := range value.Content {
		if item.Kind != yaml.ScalarNode {
			return fmt.Errorf("frame size must be a scalar")
		}
		if item.Tag == "!!int" {
			var n int
			if err := item.Decode(&n); err != nil {
				return err
			}
			out = append(out, n)
			continue
		}
		var raw string
		if err := item.Decode(&raw); err != nil {
			return err
		}
		size, err := ParseSize(raw)
		if err != nil {
			return err
		}
		out = append(out, int(size))
	}
	*f = out
	return nil
}

type Config struct {
	TargetIP   string           `yaml:"target_ip"`
	Interface  string           `yaml:"interface"`
	FrameSizes FrameSizes       `yaml:"frame_sizes"`
	OutputDir  string           `yaml:"output_dir"`
	Iperf      IperfConfig      `yaml:"iperf"`
	Latency    LatencyConfig    `yaml:"latency"`
	Throughput ThroughputConfig `yaml:"throughput"`
	FrameLoss  FrameLossConfig  `yaml:"frame_loss"`
	Burst      BurstConfig      `yaml:"burst"`
	Sockperf   SockperfConfig   `yaml:"sockperf"`
	FRER       FRERConfig       `yaml:"frer"`
	Status     StatusConfig     `yaml:"status"`
	Store      StoreConfig      `yaml:"store"`
	GeoIP      GeoIPConfig      `yaml:"geoip"`
}

type IperfConfig struct {
	Bin  string `yaml:"bin"`
	Port int    `yaml:"port"`
}

type LatencyConfig struct {
	Count    int      `yaml:"count"`
	Interval Duration `yaml:"interval"`
	Timeout  Duration `yaml:"timeout"`
}

type ThroughputConfig struct {
	RateLow       string   `yaml:"rate_low"`
	RateHigh      string   `yaml:"rate_high"`
	Tolerance     float64  `yaml:"tolerance"`
	LossThreshold float64  `yaml:"loss_threshold"`
	MaxIterations int      `yaml:"max_iterations"`
	TrialDuration Duration `yaml:"trial_duration"`
}

type FrameLossConfig struct {
	// RatePercents are offered loads as percentages of the discovered
	// zero-loss throughput.
	RatePercents  []float64 `yaml:"rate_percents"`
	TrialDuration Duration  `yaml:"trial_duration"`
}

type BurstConfig struct {
	Sizes         []int   `yaml:"sizes"`
	LossThreshold float64 `yaml:"loss_threshold"`
	Trials        int     `yaml:"trials"`
	LineRate      string  `yaml:"line_rate"`
}

// SockperfConfig drives the optional sockperf latency stages: ping-pong
// per message size and fixed-rate under-load runs. Disabled unless a
// sockperf server is reachable on the target.
type SockperfConfig struct {
	Enabled *bool  `yaml:"enabled"`
	Bin     string `yaml:"bin"`
	Port    int    `yaml:"port"`
	// MsgSizes are the ping-pong message sizes in bytes.
	MsgSizes FrameSizes `yaml:"msg_sizes"`
	// Rates are under-load message rates in messages per second.
	Rates []int `yaml:"rates"`
	// UnderLoadMsgSize is the message size used for under-load runs.
	UnderLoadMsgSize int      `yaml:"under_load_msg_size"`
	Duration         Duration `yaml:"duration"`
}

type FRERConfig struct {
	Enabled *bool `yaml:"enabled"`
	Samples int   `yaml:"samples"`
	Seed    int64 `yaml:"seed"`
}

type StatusConfig struct {
	Enabled *bool  `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Port    int    `yaml:"port"`
}

type StoreConfig struct {
	Enabled *bool  `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type GeoIPConfig struct {
	DBPath string `yaml:"db_path"`
}

func (s SockperfConfig) IsEnabled() bool {
	return util.BoolValue(s.Enabled, false)
}

func (f FRERConfig) IsEnabled() bool {
	return util.BoolValue(f.Enabled, true)
}

func (s StatusConfig) IsEnabled() bool {
	return util.BoolValue(s.Enabled, false)
}

func (s StoreConfig) IsEnabled() bool {
	return util.BoolValue(s.Enabled, true)
}

// RateLowMbps returns the configured search floor in Mbps.
func (t ThroughputConfig) RateLowMbps() (float64, error) {
	bps, err := ParseBandwidth(t.RateLow)
	if err != nil {
		return 0, err
	}
	return float64(bps) / 1e6, nil
}

// RateHighMbps returns the configured search ceiling in Mbps.
func (t ThroughputConfig) RateHighMbps() (float64, error) {
	bps, err := ParseBandwidth(t.RateHigh)
	if err != nil {
		return 0, err
	}
	return float64(bps) / 1e6, nil
}

// LineRateMbps returns the burst blast rate in Mbps.
func (b BurstConfig) LineRateMbps() (float64, error) {
	bps, err := ParseBandwidth(b.LineRate)
	if err != nil {
		return 0, err
	}
	return float64(bps) / 1e6, nil
}

func LoadConfig(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, err
	}
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) setDefaults() {
	if len(c.FrameSizes) == 0 {
		c.FrameSizes = append([]int(nil), defaultFrameSizes...)
	}
	if c.OutputDir == "" {
		c.OutputDir = defaultOutputDir
	}
	if c.Iperf.Bin == "" {
		c.Iperf.Bin = defaultIperfBin
	}

	if c.Latency.Count == 0 {
		c.Latency.Count = defaultLatencyCount
	}
	if c.Latency.Interval == 0 {
		c.Latency.Interval = Duration(defaultLatencyInterval)
	}
	if c.Latency.Timeout == 0 {
		c.Latency.Timeout = Duration(defaultLatencyTimeout)
	}

	if c.Throughput.RateLow == "" {
		c.Throughput.RateLow = defaultThroughputRateLow
	}
	if c.Throughput.RateHigh == "" {
		c.Throughput.RateHigh = defaultThroughputRateHigh
	}
	if c.Throughput.Tolerance == 0 {
		c.Throughput.Tolerance = defaultThroughputTolerance
	}
	if c.Throughput.LossThreshold == 0 {
		c.Throughput.LossThreshold = defaultThroughputLossThreshold
	}
	if c.Throughput.MaxIterations == 0 {
		c.Throughput.MaxIterations = defaultThroughputMaxIterations
	}
	if c.Throughput.TrialDuration == 0 {
		c.Throughput.TrialDuration = Duration(defaultThroughputTrialDuration)
	}

	if len(c.FrameLoss.RatePercents) == 0 {
		c.FrameLoss.RatePercents = append([]float64(nil), defaultFrameLossGrid...)
	}
	if c.FrameLoss.TrialDuration == 0 {
		c.FrameLoss.TrialDuration = Duration(defaultFrameLossTrialDuration)
	}

	if len(c.Burst.Sizes) == 0 {
		c.Burst.Sizes = append([]int(nil), defaultBurstSizes...)
	}
	if c.Burst.LossThreshold == 0 {
		c.Burst.LossThreshold = defaultBurstLossThreshold
	}
	if c.Burst.Trials == 0 {
		c.Burst.Trials = defaultBurstTrials
	}
	if c.Burst.LineRate == "" {
		c.Burst.LineRate = defaultBurstLineRate
	}

	if c.Sockperf.Bin == "" {
		c.Sockperf.Bin = defaultSockperfBin
	}
	if c.Sockperf.Port == 0 {
		c.Sockperf.Port = defaultSockperfPort
	}
	if len(c.Sockperf.MsgSizes) == 0 {
		c.Sockperf.MsgSizes = append(FrameSizes(nil), defaultSockperfMsgSizes...)
	}
	if len(c.Sockperf.Rates) == 0 {
		c.Sockperf.Rates = append([]int(nil), defaultSockperfRates...)
	}
	if c.Sockperf.UnderLoadMsgSize == 0 {
		c.Sockperf.UnderLoadMsgSize = defaultSockperfMsgSize
	}
	if c.Sockperf.Duration == 0 {
		c.Sockperf.Duration = Duration(defaultSockperfDuration)
	}

	if c.FRER.Samples == 0 {
		c.FRER.Samples = defaultFRERSamples
	}

	if c.Status.Addr == "" {
		c.Status.Addr = defaultStatusAddr
	}
	if c.Status.Port == 0 {
		c.Status.Port = defaultStatusPort
	}

	if c.Store.Path == "" {
		c.Store.Path = defaultStorePath
	}
}

func (c *Config) validate() error {
	c.TargetIP = strings.TrimSpace(c.TargetIP)
	if c.TargetIP == "" {
		return errors.New("target_ip must not be empty")
	}
	if net.ParseIP(c.TargetIP) == nil {
		return fmt.Errorf("target_ip is not a valid IP address: %q", c.TargetIP)
	}

	if !sort.IntsAreSorted(c.FrameSizes) {
		return errors.New("frame_sizes must be in ascending order")
	}
	for i, size := range c.FrameSizes {
		if size <= 0 {
			return fmt.Errorf("frame_sizes[%d] must be > 0", i)
		}
		if i > 0 && size == c.FrameSizes[i-1] {
			return fmt.Errorf("duplicate frame size: %d", size)
		}
	}

	if c.Latency.Count <= 0 {
		return errors.New("latency.count must be > 0")
	}
	if c.Latency.Interval.Duration() <= 0 || c.Latency.Timeout.Duration() <= 0 {
		return errors.New("latency.interval and latency.timeout must be > 0")
	}

	low, err := c.Throughput.RateLowMbps()
	if err != nil {
		return fmt.Errorf("throughput.rate_low: %w", err)
	}
	high, err := c.Throughput.RateHighMbps()
	if err != nil {
		return fmt.Errorf("throughput.rate_high: %w", err)
	}
	if low <= 0 {
		return errors.New("throughput.rate_low must be > 0")
	}
	if high <= low {
		return errors.New("throughput.rate_high must exceed throughput.rate_low")
	}
	if c.Throughput.Tolerance <= 0 || c.Throughput.Tolerance >= 1 {
		return errors.New("throughput.tolerance must be in (0,1)")
	}
	if c.Throughput.LossThreshold < 0 {
		return errors.New("throughput.loss_threshold must be >= 0")
	}
	if c.Throughput.MaxIterations <= 0 {
		return errors.New("throughput.max_iterations must be > 0")
	}

	for i, pct := range c.FrameLoss.RatePercents {
		if pct <= 0 || pct > 100 {
			return fmt.Errorf("frame_loss.rate_percents[%d] must be in (0,100]", i)
		}
	}

	if !sort.IntsAreSorted(c.Burst.Sizes) {
		return errors.New("burst.sizes must be in ascending order")
	}
	for i, size := range c.Burst.Sizes {
		if size <= 0 {
			return fmt.Errorf("burst.sizes[%d] must be > 0", i)
		}
		if i > 0 && size == c.Burst.Sizes[i-1] {
			return fmt.Errorf("duplicate burst size: %d", size)
		}
	}
	if c.Burst.LossThreshold < 0 {
		return errors.New("burst.loss_threshold must be >= 0")
	}
	if c.Burst.Trials <= 0 {
		return errors.New("burst.trials must be > 0")
	}
	if _, err := c.Burst.LineRateMbps(); err != nil {
		return fmt.Errorf("burst.line_rate: %w", err)
	}

	if c.Sockperf.IsEnabled() {
		if c.Sockperf.Port <= 0 || c.Sockperf.Port > 65535 {
			return errors.New("sockperf.port must be in 1..65535")
		}
		for i, size := range c.Sockperf.MsgSizes {
			if size <= 0 {
				return fmt.Errorf("sockperf.msg_sizes[%d] must be > 0", i)
			}
		}
		for i, rate := range c.Sockperf.Rates {
			if rate <= 0 {
				return fmt.Errorf("sockperf.rates[%d] must be > 0", i)
			}
		}
		if c.Sockperf.UnderLoadMsgSize <= 0 {
			return errors.New("sockperf.under_load_msg_size must be > 0")
		}
		if c.Sockperf.Duration.Duration() <= 0 {
			return errors.New("sockperf.duration must be > 0")
		}
	}

	if c.FRER.Samples < 2 {
		return errors.New("frer.samples must be >= 2")
	}

	if c.Status.IsEnabled() {
		if c.Status.Port <= 0 || c.Status.Port > 65535 {
			return errors.New("status.port must be in 1..65535")
		}
	}
	if c.Iperf.Port < 0 || c.Iperf.Port > 65535 {
		return errors.New("iperf.port must be in 0..65535")
	}
	return nil
}

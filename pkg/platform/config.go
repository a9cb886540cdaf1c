package platform

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// GetEnv reads an env var with a default.
func GetEnv(key, defaultVal string) string {
	if val, exists := os.LookupEnv(key); exists {
		return val
	}
	return defaultVal
}

// SliderConfig configures the payload range control.
type SliderConfig struct {
	Min   float64            `yaml:"min"`
	Max   float64            `yaml:"max"`
	Step  float64            `yaml:"step"`
	Marks map[float64]string `yaml:"marks"`
}

// Mark is one labelled slider position.
type Mark struct {
	Value float64 `json:"value"`
	Label string  `json:"label"`
}

// SortedMarks returns the marks ordered by value.
func (s SliderConfig) SortedMarks() []Mark {
	marks := make([]Mark, 0, len(s.Marks))
	for v, l := range s.Marks {
		marks = append(marks, Mark{Value: v, Label: l})
	}
	sort.Slice(marks, func(i, j int) bool { return marks[i].Value < marks[j].Value })
	return marks
}

// ChartConfig sets rendered image size.
type ChartConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// DashboardConfig is the YAML-configurable part of the dashboard.
type DashboardConfig struct {
	Title string `yaml:"title"`
	// Sites is the list offered by the site dropdown. Empty means every
	// site found in the dataset.
	Sites  []string     `yaml:"sites"`
	Slider SliderConfig `yaml:"slider"`
	Chart  ChartConfig  `yaml:"chart"`
}

// DefaultConfig returns the stock dashboard layout.
func DefaultConfig() *DashboardConfig {
	return &DashboardConfig{
		Title: "SpaceX Launch Records Dashboard",
		Slider: SliderConfig{
			Min:  0,
			Max:  10000,
			Step: 1000,
			Marks: map[float64]string{
				0:     "0",
				2500:  "2500",
				5000:  "5000",
				7500:  "7500",
				10000: "10000",
			},
		},
		Chart: ChartConfig{Width: 720, Height: 450},
	}
}

// LoadConfig reads a YAML file over the defaults. An empty path returns
// the defaults.
func LoadConfig(path string) (*DashboardConfig, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	// marks from the file replace the defaults instead of merging into them
	defaultMarks := cfg.Slider.Marks
	cfg.Slider.Marks = nil
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if cfg.Slider.Marks == nil {
		cfg.Slider.Marks = defaultMarks
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the slider and chart settings.
func (c *DashboardConfig) Validate() error {
	if c.Slider.Min > c.Slider.Max {
		return fmt.Errorf("slider.min (%g) exceeds slider.max (%g)", c.Slider.Min, c.Slider.Max)
	}
	if c.Slider.Step <= 0 {
		return fmt.Errorf("slider.step must be positive, got %g", c.Slider.Step)
	}
	if c.Chart.Width <= 0 || c.Chart.Height <= 0 {
		return fmt.Errorf("chart size must be positive, got %dx%d", c.Chart.Width, c.Chart.Height)
	}
	seen := make(map[string]bool, len(c.Sites))
	for _, s := range c.Sites {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("sites must not contain empty names")
		}
		if seen[s] {
			return fmt.Errorf("duplicate site %q", s)
		}
		seen[s] = true
	}
	return nil
}

// FormatMark renders a slider value the way marks are labelled.
func FormatMark(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

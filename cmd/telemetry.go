package cmd

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/agrolink/core/platform"
)

var (
	telemetrySince    time.Duration
	telemetryInterval time.Duration
	telemetryAgg      string
	telemetryLimit    int
	telemetryOutput   string
)

var telemetryCmd = &cobra.Command{
	Use:   "telemetry <device> <key[,key...]>",
	Short: "Summarize the telemetry of a device over a time range",
	Args:  cobra.ExactArgs(2),
	RunE:  runTelemetry,
}

func init() {
	telemetryCmd.Flags().DurationVar(&telemetrySince, "since", 24*time.Hour, "length of the time range ending now")
	telemetryCmd.Flags().DurationVar(&telemetryInterval, "interval", 0, "aggregation interval")
	telemetryCmd.Flags().StringVar(&telemetryAgg, "agg", string(platform.AggNone), "aggregation: NONE, AVG, MIN, MAX, SUM or COUNT")
	telemetryCmd.Flags().IntVar(&telemetryLimit, "limit", 0, "maximum samples per key")
	telemetryCmd.Flags().StringVarP(&telemetryOutput, "output", "o", "yaml", "output format: yaml or json")
	rootCmd.AddCommand(telemetryCmd)
}

type summaryView struct {
	Key     string    `json:"key" yaml:"key"`
	Count   int       `json:"count" yaml:"count"`
	Min     float64   `json:"min" yaml:"min"`
	Max     float64   `json:"max" yaml:"max"`
	Mean    float64   `json:"mean" yaml:"mean"`
	StdDev  float64   `json:"stddev" yaml:"stddev"`
	First   time.Time `json:"first" yaml:"first"`
	Last    time.Time `json:"last" yaml:"last"`
	Skipped int       `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	Error   string    `json:"error,omitempty" yaml:"error,omitempty"`
}

func parseKeys(s string) []string {
	var keys []string
	for _, k := range strings.Split(s, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

func summarize(tel platform.Telemetry, keys []string) []summaryView {
	sort.Strings(keys)
	views := make([]summaryView, 0, len(keys))
	for _, k := range keys {
		v := summaryView{Key: k}
		s, err := platform.Summarize(tel[k])
		if err != nil {
			v.Error = err.Error()
			v.Skipped = s.Skipped
		} else {
			v.Count, v.Min, v.Max, v.Mean, v.StdDev = s.Count, s.Min, s.Max, s.Mean, s.StdDev
			v.First, v.Last, v.Skipped = s.First, s.Last, s.Skipped
		}
		views = append(views, v)
	}
	return views
}

func runTelemetry(cmd *cobra.Command, args []string) error {
	keys := parseKeys(args[1])
	if len(keys) == 0 {
		return fmt.Errorf("no telemetry key given")
	}
	if telemetrySince <= 0 {
		return fmt.Errorf("--since must be positive")
	}
	svc, err := newService()
	if err != nil {
		return err
	}
	defer closeService(svc)
	dev, err := svc.Device(args[0])
	if err != nil {
		return err
	}
	end := time.Now()
	tel, err := dev.TelemetrySeries(context.Background(), platform.SeriesQuery{
		Keys:     keys,
		Start:    end.Add(-telemetrySince),
		End:      end,
		Interval: telemetryInterval,
		Agg:      platform.Aggregation(strings.ToUpper(telemetryAgg)),
		Limit:    telemetryLimit,
	})
	if err != nil {
		return err
	}
	return render(cmd.OutOrStdout(), telemetryOutput, summarize(tel, keys))
}

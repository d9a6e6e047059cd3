package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/flowpump/flowpump/internal/config"
	"github.com/flowpump/flowpump/internal/core"
	"github.com/flowpump/flowpump/internal/core/pump"
	"github.com/flowpump/flowpump/internal/observability"
	"github.com/flowpump/flowpump/internal/output"
	"github.com/flowpump/flowpump/internal/relay"
)

// workloadFile is the YAML job description consumed by `flowpump run`.
type workloadFile struct {
	Pump struct {
		SizePerPeriod *int64 `yaml:"size_per_period"`
		Period        string `yaml:"period"`
		Workers       int    `yaml:"workers"`
	} `yaml:"pump"`
	Jobs []workloadJob `yaml:"jobs"`
}

type workloadJob struct {
	Payload any   `yaml:"payload"`
	Size    int64 `yaml:"size"`
	Urgent  bool  `yaml:"urgent"`
	Repeat  int   `yaml:"repeat"`
}

func (j workloadJob) effectiveSize() int64 {
	if j.Size > 0 {
		return j.Size
	}
	if data, err := json.Marshal(j.Payload); err == nil && len(data) > 0 {
		return int64(len(data))
	}
	return 1
}

var runCmd = &cobra.Command{
	Use:   "run <workload.yaml>",
	Short: "Pump a workload file and report throughput",
	Long: `Read a YAML workload description and pump its jobs through the
configured upstream (or the loopback simulator with --simulate), then
print a throughput report.

Urgent jobs jump the deferred backlog and block until their own result
is back; deferred jobs complete in submission order.`,
	Args: cobra.ExactArgs(1),
	RunE: runWorkload,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("output", "table", "Output format: table, json, markdown")
	runCmd.Flags().Bool("simulate", false, "Use the loopback simulator instead of the configured upstream")
	runCmd.Flags().Duration("latency", 0, "Simulated per-send latency (with --simulate)")
	runCmd.Flags().Int("fail-every", 0, "Fail every Nth simulated send (with --simulate)")
}

func runWorkload(cmd *cobra.Command, args []string) error {
	formatValue, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	format, err := output.ParseFormat(formatValue)
	if err != nil {
		return err
	}

	simulate, err := cmd.Flags().GetBool("simulate")
	if err != nil {
		return err
	}
	latency, err := cmd.Flags().GetDuration("latency")
	if err != nil {
		return err
	}
	failEvery, err := cmd.Flags().GetInt("fail-every")
	if err != nil {
		return err
	}

	workload, err := readWorkload(args[0])
	if err != nil {
		return err
	}
	if len(workload.Jobs) == 0 {
		return errors.New("no jobs found in workload file")
	}

	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	var send pump.SendFunc
	switch {
	case simulate:
		sim := &relay.Simulator{Latency: latency, FailEvery: failEvery}
		send = sim.Send
	case cfg.Upstream.URL != "":
		r := &relay.Relay{
			URL:         cfg.Upstream.URL,
			Method:      cfg.Upstream.Method,
			ContentType: cfg.Upstream.ContentType,
			Client:      &http.Client{Timeout: cfg.Upstream.Timeout},
		}
		send = r.Send
	default:
		return errors.New("no upstream.url configured; pass --simulate to run offline")
	}

	pumpCfg, err := workloadPumpConfig(workload, cfg)
	if err != nil {
		return err
	}

	p := pump.New(send, pumpCfg)
	if err := p.Start(); err != nil {
		return err
	}

	startedAt := time.Now()

	var (
		jobs      int
		urgent    int
		failed    int
		deferred  int
		totalSize int64
	)

	for _, job := range workload.Jobs {
		repeat := job.Repeat
		if repeat < 1 {
			repeat = 1
		}
		size := job.effectiveSize()

		for i := 0; i < repeat; i++ {
			jobs++
			totalSize += size

			if job.Urgent {
				urgent++
				if _, err := p.Urgent(size, job.Payload); err != nil {
					failed++
				}
				continue
			}

			if _, err := p.Submit(size, job.Payload); err != nil {
				return err
			}
			deferred++
		}
	}

	// Consume deferred results in submission order, counting failures.
	results, err := p.Fetch(deferred)
	if err != nil {
		return err
	}
	for res := range results {
		if res.Err != nil {
			failed++
		}
	}

	p.Stop()

	report := &core.RunReport{
		Jobs:      jobs,
		Urgent:    urgent,
		Failed:    failed,
		TotalSize: totalSize,
		Elapsed:   time.Since(startedAt),
		Stats:     p.Stats(),
		Windows:   p.Windows(),
	}

	rendered, err := output.FormatReport(format, report)
	if err != nil {
		return err
	}
	fmt.Println(rendered)

	return nil
}

func readWorkload(path string) (*workloadFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workload file: %w", err)
	}

	var workload workloadFile
	if err := yaml.Unmarshal(data, &workload); err != nil {
		return nil, fmt.Errorf("failed to parse workload file: %w", err)
	}
	return &workload, nil
}

// workloadPumpConfig merges per-workload pump overrides over the
// application configuration.
func workloadPumpConfig(workload *workloadFile, cfg *config.Config) (pump.Config, error) {
	sizePerPeriod := cfg.Pump.SizePerPeriod
	if workload.Pump.SizePerPeriod != nil {
		sizePerPeriod = *workload.Pump.SizePerPeriod
	}
	if sizePerPeriod < 0 {
		return pump.Config{}, errors.New("size_per_period must not be negative (0 selects adaptive mode)")
	}

	limit := pump.Adaptive()
	if sizePerPeriod > 0 {
		limit = pump.Fixed(sizePerPeriod)
	}

	period := cfg.Pump.Period
	if workload.Pump.Period != "" {
		parsed, err := time.ParseDuration(workload.Pump.Period)
		if err != nil {
			return pump.Config{}, fmt.Errorf("invalid pump.period in workload: %w", err)
		}
		period = parsed
	}

	workers := cfg.Pump.Workers
	if workload.Pump.Workers > 0 {
		workers = workload.Pump.Workers
	}

	return pump.Config{
		Limit:        limit,
		Period:       period,
		Workers:      workers,
		PollInterval: cfg.Pump.PollInterval,
		Logger:       observability.CLILogger,
	}, nil
}

package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"bbcan/canspec"
	"bbcan/schedcheck"
	"bbcan/utils"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run returns the process exit code: 0 schedulable, 1 unschedulable,
// 2 bad input.
func run(args []string, stdout, stderr io.Writer) int {
	def := schedcheck.DefaultParams()
	fs := flag.NewFlagSet("sched_check", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		jitter   = fs.Int64("j", def.Jitter, "Queueing jitter of every message (µs)")
		deadline = fs.Int64("d", def.DeadlinePercent, "Deadline as percent of the period")
		bitTime  = fs.Int64("tbit", def.BitTime, "Bit time (µs)")
		idBits   = fs.Int("idbits", def.IDBits, "Identifier width: 11 or 29")
		specPath = fs.String("spec", "config/can_spec.yaml", "Message table (.csv, .yaml or .dbc)")
		node     = fs.String("node", "", "Local node name when -spec is a DBC file")
		logLevel = fs.String("log", "warn", "trace|debug|info|warn|error|critical")
	)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	log := utils.NewConsoleLogger(stderr, utils.ParseLevel(*logLevel))

	reg, err := canspec.LoadFile(*specPath, canspec.WithNodeName(*node))
	if err != nil {
		log.Critical("Load %s: %v", *specPath, err)
		return 2
	}
	log.Info("Loaded %d messages from %s", reg.Len(), *specPath)

	params := schedcheck.Params{
		Jitter:          *jitter,
		DeadlinePercent: *deadline,
		BitTime:         *bitTime,
		IDBits:          *idBits,
	}
	msgs := schedcheck.FromRegistry(reg)
	if skipped := reg.Len() - len(msgs); skipped > 0 {
		log.Warn("%d messages without a period left out of the analysis", skipped)
	}
	report, err := schedcheck.Analyze(msgs, params)
	if err != nil {
		log.Critical("Analysis failed: %v", err)
		return 2
	}

	if err := report.WriteCSV(stdout); err != nil {
		log.Error("Write report: %v", err)
		return 2
	}
	fmt.Fprintln(stderr, report.Verdict())

	if !report.Schedulable() {
		return 1
	}
	return 0
}

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/vaibhaw-/Sentinel/internal/sentinel/config"
	"github.com/vaibhaw-/Sentinel/internal/sentinel/ledger"
)

var (
	verifyFlagInput   string
	verifyFlagOutput  string
	verifyFlagSeal    bool
	verifyFlagState   string
	verifyFlagSummary bool
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Seal events into, or verify, the tamper-evident operator ledger",
	Long: `Without --seal, verify recomputes every hash link of a ledger file and reports the
chain indices that do not verify. With --seal, it chains NDJSON events from --input
onto the ledger state and writes the sealed entries to --output.`,
	RunE: runVerify,
}

func init() {
	verifyCmd.Flags().StringVar(&verifyFlagInput, "input", "", "input NDJSON file (default ledger.output in verify mode, stdin in seal mode)")
	verifyCmd.Flags().StringVar(&verifyFlagOutput, "output", "", "sealed NDJSON output (seal mode, default stdout)")
	verifyCmd.Flags().BoolVar(&verifyFlagSeal, "seal", false, "seal events instead of verifying")
	verifyCmd.Flags().StringVar(&verifyFlagState, "state", "", "chain state file (default ledger.state_file)")
	verifyCmd.Flags().BoolVar(&verifyFlagSummary, "summary", false, "print the report as JSON")
}

func runVerify(cmd *cobra.Command, args []string) error {
	cfg := config.Get()
	statePath := verifyFlagState
	if statePath == "" {
		statePath = cfg.Ledger.StateFile
	}
	if verifyFlagSeal {
		return runSeal(statePath)
	}

	input := verifyFlagInput
	if input == "" {
		input = cfg.Ledger.Output
	}
	if input == "" {
		return fmt.Errorf("--input or ledger.output is required")
	}
	in, err := openInput(input)
	if err != nil {
		return err
	}
	defer in.Close()

	start := time.Now().UTC()
	report, err := ledger.Verify(in)
	if err != nil {
		return err
	}

	status := "ok"
	if !report.OK() {
		status = "tampered"
	}
	if cfg.Logging.RunLog != "" {
		summary := ledger.Summary{
			Phase:     "verify",
			InputFile: input,
			Entries:   report.Entries,
			Tampered:  report.Tampered,
			Status:    status,
			StartTime: start.Format(time.RFC3339Nano),
			EndTime:   time.Now().UTC().Format(time.RFC3339Nano),
		}
		if err := appendJSONLine(cfg.Logging.RunLog, summary); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not write run log: %v\n", err)
		}
	}

	if verifyFlagSummary {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(os.Stdout, "entries: %d\nhead: %s\nstatus: %s\n", report.Entries, report.Head, status)
	}
	if !report.OK() {
		return fmt.Errorf("ledger verification failed at chain indices %s", joinInts(report.Tampered))
	}
	return nil
}

func runSeal(statePath string) error {
	state, err := ledger.LoadState(statePath)
	if err != nil {
		return err
	}
	in, err := openInput(verifyFlagInput)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := createOutput(verifyFlagOutput)
	if err != nil {
		return err
	}
	defer out.Close()

	next, n, err := ledger.Seal(in, out, state)
	if err != nil {
		return err
	}
	if err := ledger.SaveState(statePath, next); err != nil {
		return fmt.Errorf("save ledger state: %w", err)
	}
	fmt.Fprintf(os.Stderr, "sealed %d events, head %s (index %d)\n", n, next.LastHeadHash, next.LastChainIndex)
	return nil
}

func appendJSONLine(path string, v any) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(v)
}

func joinInts(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = fmt.Sprint(x)
	}
	return strings.Join(parts, ",")
}

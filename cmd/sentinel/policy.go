package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vaibhaw-/Sentinel/internal/sentinel/access"
	"github.com/vaibhaw-/Sentinel/internal/sentinel/config"
)

var policyFile string

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Validate classification policy tables",
}

var policyValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a YAML policy file and the role permission mapping",
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(policyFile)
		if err != nil {
			return fmt.Errorf("open policy file: %w", err)
		}
		defer f.Close()

		p, err := config.ValidatePolicy(f)
		if err != nil {
			return fmt.Errorf("policy validation failed: %w", err)
		}
		if _, err := access.NewGate(access.DefaultPolicy(), nil); err != nil {
			return fmt.Errorf("role mapping validation failed: %w", err)
		}

		fmt.Fprintf(os.Stdout, "policy validated successfully\n")
		fmt.Fprintf(os.Stdout, "sensitive paths: %d, suspicious processes: %d, untrusted serials: %d\n",
			len(p.SensitivePaths), len(p.SuspiciousProcesses), len(p.UntrustedSerials))
		return nil
	},
}

func init() {
	policyCmd.AddCommand(policyValidateCmd)
	policyValidateCmd.Flags().StringVar(&policyFile, "file", "", "Path to policy YAML file")
	_ = policyValidateCmd.MarkFlagRequired("file")
}

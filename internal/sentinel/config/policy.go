package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Policy holds the classification tables. They are data, not code, so an operator
// can change them without a redeploy.
type Policy struct {
	SensitivePaths      []string `yaml:"sensitive_paths"`
	SuspiciousProcesses []string `yaml:"suspicious_processes"`
	UntrustedSerials    []string `yaml:"untrusted_serials"`
}

// DefaultPolicy returns the tables shipped with the dashboard.
func DefaultPolicy() *Policy {
	return &Policy{
		SensitivePaths:      []string{"/etc/shadow", `C:\Users\admin\secrets.txt`, "company_secrets.xlsx"},
		SuspiciousProcesses: []string{"ncat.exe", "mimikatz.exe", "powershell.exe -enc"},
		UntrustedSerials:    []string{"UNTRUSTED-SN-001", "UNTRUSTED-SN-002", "VID:04F2-PID:B217"},
	}
}

// ValidatePolicy decodes and validates a YAML policy document.
func ValidatePolicy(r io.Reader) (*Policy, error) {
	var p Policy
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("%w: decode policy YAML: %v", ErrConfiguration, err)
	}

	tables := []struct {
		name    string
		entries []string
	}{
		{"sensitive_paths", p.SensitivePaths},
		{"suspicious_processes", p.SuspiciousProcesses},
		{"untrusted_serials", p.UntrustedSerials},
	}
	for _, tbl := range tables {
		if len(tbl.entries) == 0 {
			return nil, fmt.Errorf("%w: policy %s must not be empty", ErrConfiguration, tbl.name)
		}
		seen := make(map[string]struct{}, len(tbl.entries))
		for i, entry := range tbl.entries {
			if strings.TrimSpace(entry) == "" {
				return nil, fmt.Errorf("%w: policy %s entry %d is blank", ErrConfiguration, tbl.name, i)
			}
			if _, dup := seen[entry]; dup {
				return nil, fmt.Errorf("%w: policy %s entry %q is duplicated", ErrConfiguration, tbl.name, entry)
			}
			seen[entry] = struct{}{}
		}
	}
	return &p, nil
}

// LoadPolicy reads the policy file, or returns DefaultPolicy when path is empty.
func LoadPolicy(path string) (*Policy, error) {
	if path == "" {
		return DefaultPolicy(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open policy file: %w", err)
	}
	defer f.Close()
	return ValidatePolicy(f)
}

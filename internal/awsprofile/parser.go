// Package awsprofile enumerates AWS credential profiles and decides which
// profile governs a connection attempt.
package awsprofile

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ParseResult carries the known profile names plus non-fatal warnings
// produced while reading the AWS config file.
type ParseResult struct {
	Profiles []string
	Warnings []string
}

// Contains reports whether name is among the known profiles.
func (r ParseResult) Contains(name string) bool {
	for _, p := range r.Profiles {
		if p == name {
			return true
		}
	}
	return false
}

// DefaultPath returns the AWS shared config file location, honoring the
// AWS_CONFIG_FILE override the AWS CLI itself respects.
func DefaultPath() (string, error) {
	if p := os.Getenv("AWS_CONFIG_FILE"); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".aws", "config"), nil
}

// ParseDefault parses the AWS shared config file at its default location.
func ParseDefault() (ParseResult, error) {
	path, err := DefaultPath()
	if err != nil {
		return ParseResult{}, err
	}
	return ParseFile(path)
}

// ParseFile extracts profile names from an AWS shared config file. Only the
// section headers matter here: `[default]` and `[profile NAME]` declare
// profiles; every other section (sso-session, services) is ignored. A
// missing file is not an error; it yields an empty profile list plus a
// warning, matching how an unconfigured AWS CLI behaves.
func ParseFile(path string) (ParseResult, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ParseResult{Warnings: []string{fmt.Sprintf("AWS config file not found: %s", path)}}, nil
		}
		return ParseResult{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var res ParseResult
	seen := map[string]bool{}
	sc := bufio.NewScanner(f)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		if !strings.HasPrefix(line, "[") {
			continue
		}
		if !strings.HasSuffix(line, "]") {
			res.Warnings = append(res.Warnings, fmt.Sprintf("%s:%d unterminated section header", path, lineNo))
			continue
		}
		section := strings.TrimSpace(line[1 : len(line)-1])
		var name string
		switch {
		case section == "default":
			name = "default"
		case section == "profile" || strings.HasPrefix(section, "profile "):
			name = strings.TrimSpace(strings.TrimPrefix(section, "profile"))
		default:
			continue
		}
		if name == "" {
			res.Warnings = append(res.Warnings, fmt.Sprintf("%s:%d empty profile name", path, lineNo))
			continue
		}
		if !seen[name] {
			seen[name] = true
			res.Profiles = append(res.Profiles, name)
		}
	}
	if err := sc.Err(); err != nil {
		return ParseResult{}, fmt.Errorf("scan %s: %w", path, err)
	}
	sort.Strings(res.Profiles)
	return res, nil
}

// Package config reads the daemon's INI configuration file and turns it
// into validated Settings plus a candidate list of pattern rules.
package config

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	sectionSettings = "settings"
	sectionPatterns = "patterns"
)

// Load reads path as an INI file. If path does not exist, a default config
// (with example patterns) is written first and then loaded, matching the
// "missing file -> written with defaults" behavior spec'd for the daemon.
func Load(path string) (Settings, []RawRule, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := WriteDefault(path); err != nil {
			return Settings{}, nil, fmt.Errorf("write default config: %w", err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, nil, fmt.Errorf("read config %s: %w", path, err)
	}

	return Parse(data)
}

// Parse decodes INI-syntax config bytes into Settings and RawRules. Lines
// beginning with '#' or ';' and blank lines are ignored; '#' also
// terminates an inline value. Keys and values are trimmed of whitespace.
func Parse(data []byte) (Settings, []RawRule, error) {
	settings := defaultSettings()
	var rules []RawRule

	section := ""
	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := stripComment(scanner.Text())
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = strings.ToLower(strings.TrimSpace(line[1 : len(line)-1]))
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return Settings{}, nil, fmt.Errorf("config line %d: expected key=value, got %q", lineNo, line)
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch section {
		case sectionSettings:
			applySetting(&settings, key, value)
		case sectionPatterns:
			rules = append(rules, parsePatternLine(key, value))
		}
	}
	if err := scanner.Err(); err != nil {
		return Settings{}, nil, fmt.Errorf("scan config: %w", err)
	}

	return settings, rules, nil
}

// stripComment removes a trailing '#'-introduced comment from a line. A
// ';' only marks a comment when it is the first non-whitespace character
// of the line.
func stripComment(line string) string {
	trimmed := strings.TrimSpace(line)
	if strings.HasPrefix(trimmed, ";") {
		return ""
	}
	if idx := strings.IndexByte(line, '#'); idx >= 0 {
		return line[:idx]
	}
	return line
}

func applySetting(s *Settings, key, value string) {
	switch strings.ToLower(key) {
	case "defaultmonitoredfolder":
		s.DefaultMonitoredFolder = value
	case "logfile":
		s.LogFile = value
	case "detailedlogfile":
		s.DetailedLogFile = value
	case "processedfilesdb":
		s.ProcessedFilesDB = value
	case "detailedlogging":
		s.DetailedLogging = parseBool(value)
	case "webserverport":
		if n, err := strconv.ParseUint(value, 10, 16); err == nil {
			s.WebServerPort = uint16(n)
		}
	case "webserverenabled":
		s.WebServerEnabled = parseBool(value)
	}
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes":
		return true
	default:
		return false
	}
}

// parsePatternLine splits a [Patterns] value on '|'. Three fields:
// folder|regex|command. Two fields: regex|command, folder left empty so
// the registry fills in Settings.DefaultMonitoredFolder.
func parsePatternLine(name, value string) RawRule {
	fields := strings.Split(value, "|")
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	rule := RawRule{Name: name}
	switch len(fields) {
	case 3:
		rule.Folder = fields[0]
		rule.Regex = fields[1]
		rule.Command = fields[2]
	case 2:
		rule.Regex = fields[0]
		rule.Command = fields[1]
	default:
		// malformed; the registry rejects rules with an empty regex or command.
	}
	return rule
}

// WriteDefault writes a fresh config file with default settings and a
// commented-out example pattern. It creates parent directories as needed.
func WriteDefault(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, []byte(RenderDefault()), 0o644)
}

// RenderDefault returns the textual contents WriteDefault persists. The
// [Settings] section alone round-trips byte-for-byte through
// Load -> Parse -> RenderSettings.
func RenderDefault() string {
	s := defaultSettings()
	var b strings.Builder
	b.WriteString(RenderSettings(s))
	b.WriteString("\n[Patterns]\n")
	b.WriteString("; Three-field form: Name=folder|regex|command\n")
	b.WriteString("; Two-field form uses DefaultMonitoredFolder: Name=regex|command\n")
	b.WriteString("; Example=^report_.*\\.csv$|/usr/local/bin/ingest.sh\n")
	return b.String()
}

// RenderSettings renders only the [Settings] section, in a fixed key order,
// for round-trip comparison and for WriteDefault.
func RenderSettings(s Settings) string {
	var b strings.Builder
	b.WriteString("[Settings]\n")
	fmt.Fprintf(&b, "DefaultMonitoredFolder=%s\n", s.DefaultMonitoredFolder)
	fmt.Fprintf(&b, "LogFile=%s\n", s.LogFile)
	fmt.Fprintf(&b, "DetailedLogFile=%s\n", s.DetailedLogFile)
	fmt.Fprintf(&b, "ProcessedFilesDB=%s\n", s.ProcessedFilesDB)
	fmt.Fprintf(&b, "DetailedLogging=%s\n", strconv.FormatBool(s.DetailedLogging))
	fmt.Fprintf(&b, "WebServerPort=%d\n", s.WebServerPort)
	fmt.Fprintf(&b, "WebServerEnabled=%s\n", strconv.FormatBool(s.WebServerEnabled))
	return b.String()
}

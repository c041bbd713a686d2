package config

// Settings holds the [Settings] section of the daemon's INI config file.
type Settings struct {
	DefaultMonitoredFolder string
	LogFile                string
	DetailedLogFile        string
	ProcessedFilesDB       string
	DetailedLogging        bool
	WebServerPort          uint16
	WebServerEnabled       bool
}

// RawRule is one entry from the [Patterns] section before its regex has
// been compiled and its folder resolved against DefaultMonitoredFolder.
type RawRule struct {
	Name    string
	Folder  string // empty for the two-field form; resolved by the registry
	Regex   string
	Command string
}

// defaultSettings mirrors the values WriteDefault writes to a fresh config.
func defaultSettings() Settings {
	return Settings{
		DefaultMonitoredFolder: "/var/monitored",
		LogFile:                "/var/log/filewatchd/filewatchd.log",
		DetailedLogFile:        "/var/log/filewatchd/filewatchd-detail.log",
		ProcessedFilesDB:       "/var/lib/filewatchd/processed.db",
		DetailedLogging:        false,
		WebServerPort:          8080,
		WebServerEnabled:       true,
	}
}

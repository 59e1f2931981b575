package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/pelletier/go-toml/v2"
)

const (
	appDirName       = "honeyseeker"
	settingsFileName = "settings.toml"
)

// Settings is the persisted state of the application: the folder to search,
// the resume cursor, the last query and engine tunables.
type Settings struct {
	Folder       string `toml:"folder"`
	CurrentFile  string `toml:"current_file"`
	CurrentEntry string `toml:"current_entry"`
	SearchQuery  string `toml:"search_query"`

	// SkipCurrent is set when the cursor entry already matched the query.
	SkipCurrent bool `toml:"skip_current"`

	ConfidenceThreshold int      `toml:"confidence_threshold"`
	ContextSize         int      `toml:"context_size"`
	ArchiveExtension    string   `toml:"archive_extension"`
	DocumentTypes       []string `toml:"document_types"`
	SkipUnreadable      bool     `toml:"skip_unreadable"`
	Highlight           bool     `toml:"highlight"`
}

// DefaultSettings returns the settings used when no file exists yet
func DefaultSettings() *Settings {
	folder, err := os.UserHomeDir()
	if err != nil {
		folder = "."
	}
	return &Settings{
		Folder:              folder,
		ConfidenceThreshold: DefaultConfidenceThreshold,
		ContextSize:         DefaultContextSize,
		ArchiveExtension:    DefaultArchiveExtension,
		DocumentTypes:       slices.Clone(DefaultDocumentTypes),
		Highlight:           true,
	}
}

// DefaultPath returns the settings file location under the user config dir
func DefaultPath() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		// Fallback to home directory
		configDir, err = os.UserHomeDir()
		if err != nil {
			configDir = "."
		}
		configDir = filepath.Join(configDir, ".config")
	}
	return filepath.Join(configDir, appDirName, settingsFileName)
}

// Load reads settings from path. A missing file yields the defaults.
// Keys absent from the file keep their default values.
func Load(path string) (*Settings, error) {
	s := DefaultSettings()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	if err := toml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("failed to parse settings: %w", err)
	}
	s.normalize()
	return s, nil
}

// Save writes settings to path, creating the parent directory
func Save(path string, s *Settings) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := toml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}
	return nil
}

// ResetCursor forgets the resume position
func (s *Settings) ResetCursor() {
	s.CurrentFile = ""
	s.CurrentEntry = ""
	s.SkipCurrent = false
}

func (s *Settings) normalize() {
	if s.ConfidenceThreshold < 0 || s.ConfidenceThreshold > 100 {
		s.ConfidenceThreshold = DefaultConfidenceThreshold
	}
	if s.ContextSize < 0 {
		s.ContextSize = DefaultContextSize
	}
	s.ArchiveExtension = NormalizeArchiveExtension(s.ArchiveExtension)
	s.DocumentTypes = NormalizeDocumentTypes(s.DocumentTypes)
}

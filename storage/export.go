package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"crawlchat/config"
)

// SanitizeFilename removes or replaces characters that are invalid in filenames
func SanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		"/", "-", "\\", "-", ":", "-", "*", "-", "?", "-", "\"", "-",
		"<", "-", ">", "-", "|", "-", " ", "-", "\n", "-", "\r", "-",
	)
	name = replacer.Replace(name)

	name = strings.Trim(name, "-.")

	if len(name) > 50 {
		name = name[:50]
	}

	if name == "" {
		name = "transcript"
	}

	return name
}

// GenerateExportPath generates a default export path in the Downloads directory
func GenerateExportPath(transcriptName string) string {
	timestamp := time.Now().Format("20060102-150405")
	filename := fmt.Sprintf("crawlchat-%s-%s.json", SanitizeFilename(transcriptName), timestamp)
	return filepath.Join(config.GetDownloadsDir(), filename)
}

// ExportToJSON writes a saved transcript to exportPath as indented JSON
func (a *Archive) ExportToJSON(id string, exportPath string) error {
	t, err := a.Load(id)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal transcript: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(exportPath), 0700); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(exportPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	return nil
}

// GenerateTranscriptName derives a name from the first user message
func GenerateTranscriptName(firstMessage string) string {
	name := strings.TrimSpace(strings.NewReplacer("\n", " ", "\r", " ").Replace(firstMessage))
	if name == "" {
		return fmt.Sprintf("Transcript %s", time.Now().Format("Jan 2, 3:04 PM"))
	}

	if runes := []rune(name); len(runes) > 30 {
		name = string(runes[:30]) + "..."
	}

	return name
}

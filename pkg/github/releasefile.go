package github

import (
	"encoding/json"
	"os"
)

// ReadReleaseFile loads a serialized Release (a bob.json file).
func ReadReleaseFile(path string) (*Release, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var release Release
	if err := json.Unmarshal(data, &release); err != nil {
		return nil, err
	}
	return &release, nil
}

// WriteReleaseFile serializes a Release to path (a bob.json file).
func WriteReleaseFile(path string, release *Release) error {
	data, err := json.MarshalIndent(release, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

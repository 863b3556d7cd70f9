package suite

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LoadFromDirectory discovers and loads all suite files from a directory
func LoadFromDirectory(dirPath string) ([]SuiteWithFile, []ValidationError) {
	var suites []SuiteWithFile
	var errors []ValidationError

	files, err := discoverYAMLFiles(dirPath)
	if err != nil {
		errors = append(errors, ValidationError{
			File:    dirPath,
			Message: fmt.Sprintf("failed to read directory: %v", err),
		})
		return nil, errors
	}

	for _, file := range files {
		s, err := parseYAMLFile(file)
		if err != nil {
			errors = append(errors, ValidationError{
				File:    file,
				Message: fmt.Sprintf("failed to parse YAML: %v", err),
			})
			continue
		}
		suites = append(suites, SuiteWithFile{
			Suite: s,
			File:  file,
		})
	}

	return suites, errors
}

// discoverYAMLFiles finds all *.yaml and *.yml files in a directory
func discoverYAMLFiles(dirPath string) ([]string, error) {
	var files []string

	err := filepath.Walk(dirPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		ext := filepath.Ext(path)
		if ext == ".yaml" || ext == ".yml" {
			files = append(files, path)
		}
		return nil
	})

	return files, err
}

// parseYAMLFile parses a single YAML file into a Suite struct
func parseYAMLFile(filePath string) (*Suite, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var s Suite
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, err
	}

	return &s, nil
}

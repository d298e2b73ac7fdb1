package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue/token"

	"github.com/calmloop/settle/internal/scene"
)

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric    = "E001" // Generic/unknown error
	ErrCodeScanError  = "E002" // Directory scan error
	ErrCodeNoScenes   = "E003" // No scene files found
	ErrCodeLoadFailed = "E004" // Scene extraction failed
	ErrCodeNotFound   = "E005" // Path not found
)

// LoadError represents an error that occurred while loading scene files.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadScene loads one scene from a CUE file. Scene package errors come back
// as coded LoadErrors.
func LoadScene(path, name string) (*scene.Scene, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("scene file not found: %s", path)}
	}
	s, err := scene.Load(path, name)
	if err != nil {
		return nil, convertSceneError(err)
	}
	return s, nil
}

// LoadScenes loads every scene a CUE file defines.
func LoadScenes(path string) ([]*scene.Scene, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("scene file not found: %s", path)}
	}
	scenes, err := scene.LoadAll(path)
	if err != nil {
		return nil, convertSceneError(err)
	}
	return scenes, nil
}

// ResolveScenePaths expands a path argument into scene file paths. A
// directory is walked for .cue files; a file stands for itself.
func ResolveScenePaths(path string) ([]string, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("path not found: %s", path)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error accessing %s: %v", path, err)}
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	files, err := FindSceneFiles(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
	}
	if len(files) == 0 {
		return nil, &LoadError{Code: ErrCodeNoScenes, Message: fmt.Sprintf("no scene files found in %s", path)}
	}
	return files, nil
}

// FindSceneFiles walks the directory and returns all .cue file paths.
func FindSceneFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// convertSceneError maps scene package errors to coded LoadErrors with
// position info where the source provides it.
func convertSceneError(err error) error {
	var cerr *scene.CompileError
	if errors.As(err, &cerr) {
		return &LoadError{
			Code:    ErrCodeLoadFailed,
			Message: fmt.Sprintf("%s: %s", cerr.Field, cerr.Message),
			Pos:     cerr.Pos,
		}
	}
	var verr scene.ValidationError
	if errors.As(err, &verr) {
		return &LoadError{
			Code:    verr.Code,
			Message: fmt.Sprintf("%s: %s", verr.Field, verr.Message),
		}
	}
	return &LoadError{Code: ErrCodeGeneric, Message: err.Error()}
}

package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/juliansprt/VeriFactu/internal/invoice"
)

// LoadMode controls how errors are handled during document loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// LoadedRecord is an invoice record read from a document file.
type LoadedRecord struct {
	File   string
	Index  int // position of the document within the file
	Record *invoice.Record
}

// LoadError represents an error that occurred during document loading.
type LoadError struct {
	Code    string
	File    string
	Index   int
	Message string
}

func (e *LoadError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%s[%d]: %s: %s", e.File, e.Index, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadRecords reads invoice documents from YAML files. A file may hold
// several documents separated by "---". Directories are scanned for .yaml
// and .yml files.
// If mode is LoadModeFailFast, returns on first error.
// If mode is LoadModeCollectAll, collects all errors.
func LoadRecords(paths []string, mode LoadMode) ([]LoadedRecord, []error) {
	var (
		records []LoadedRecord
		errs    []error
	)

	files, err := expandPaths(paths)
	if err != nil {
		return nil, []error{err}
	}

	for _, file := range files {
		loaded, fileErrs := loadFile(file, mode)
		records = append(records, loaded...)
		errs = append(errs, fileErrs...)
		if len(errs) > 0 && mode == LoadModeFailFast {
			return records, errs
		}
	}

	if len(records) == 0 && len(errs) == 0 {
		errs = append(errs, &LoadError{Code: ErrCodeNotFound, Message: "no invoice documents found"})
	}
	return records, errs
}

func loadFile(file string, mode LoadMode) ([]LoadedRecord, []error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, File: file, Message: err.Error()}}
	}

	var (
		records []LoadedRecord
		errs    []error
	)
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	for index := 0; ; index++ {
		var doc invoice.Document
		err := decoder.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// The decoder cannot resynchronise after a syntax error.
			errs = append(errs, &LoadError{Code: ErrCodeParse, File: file, Index: index, Message: err.Error()})
			break
		}

		rec, err := doc.Record()
		if err != nil {
			errs = append(errs, &LoadError{Code: ErrCodeParse, File: file, Index: index, Message: err.Error()})
			if mode == LoadModeFailFast {
				break
			}
			continue
		}
		records = append(records, LoadedRecord{File: file, Index: index, Record: rec})
	}
	return records, errs
}

// expandPaths resolves directories to the YAML files they contain.
func expandPaths(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if os.IsNotExist(err) {
			return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("path not found: %s", p)}
		}
		if err != nil {
			return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing %s: %v", p, err)}
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		found, err := findYAMLFiles(p)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("error scanning directory: %v", err)}
		}
		files = append(files, found...)
	}
	return files, nil
}

// findYAMLFiles walks the directory and returns all YAML file paths.
func findYAMLFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if ext := filepath.Ext(path); !info.IsDir() && (ext == ".yaml" || ext == ".yml") {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// loadFailure turns the first load error into command output.
func loadFailure(f *OutputFormatter, errs []error) error {
	var loadErr *LoadError
	if errors.As(errs[0], &loadErr) {
		_ = f.Error(loadErr.Code, loadErr.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load invoices", loadErr)
	}
	return f.Fail(ExitCommandError, ErrCodeGeneric, "failed to load invoices", errs[0])
}

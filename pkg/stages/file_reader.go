// Package stages implements the engine's domain adapters: the concrete
// leaf stages a workflow document names (file reader, attribute
// taggers, filter, Redis-backed reader/writer). Each registers itself
// into stage.Default during package init, following the same
// "core stages register themselves" pattern internal/stage/init.go uses
// for Serial/Parallel.
package stages

import (
	"encoding/json"

	"github.com/sirupsen/logrus"

	"inlook-corpus/internal/parser"
	"inlook-corpus/internal/stage"
	"inlook-corpus/internal/store"
	"inlook-corpus/pkg/errors"
)

// FileReaderPluginName is the plugin name this adapter registers under.
const FileReaderPluginName = "FileReader"

type fileReaderConfig struct {
	EmailPath string `json:"emailPath"`
}

var fileReaderSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"emailPath": map[string]interface{}{
			"type":        "string",
			"description": "Path to an email file or a directory, traversed recursively.",
		},
	},
	"required": []interface{}{"emailPath"},
}

// FileReader walks a configured path, parsing every file it finds into
// the view it is executed against. It is a thin wrapper around
// internal/parser.Parser.WalkDirectory: each file is isolated, so one
// unreadable file never aborts the walk.
type FileReader struct {
	*stage.Base
	cfg fileReaderConfig
}

// NewFileReader constructs a FileReader instance.
func NewFileReader(instanceID string, log *logrus.Entry) *FileReader {
	return &FileReader{
		Base: stage.NewBase(FileReaderPluginName, instanceID, fileReaderSchema, []string{"stage"}, log),
	}
}

// InstantiateRecursive validates config and moves to READY; FileReader is
// a leaf with no children to instantiate.
func (f *FileReader) InstantiateRecursive() error {
	if err := f.Validate(); err != nil {
		return err
	}
	if err := json.Unmarshal(f.Config(), &f.cfg); err != nil {
		_ = f.Transition(stage.StateFailed, "FileReader.InstantiateRecursive", 0)
		return errors.ConfigInvalid(FileReaderPluginName, "instantiate_recursive", err.Error())
	}
	f.DeclareAttributes(nil, []string{parser.FileIdentifierAttr, parser.LanguagePredictionsAttr})
	return f.Transition(stage.StateReady, "FileReader.InstantiateRecursive", 0)
}

// Execute walks f.cfg.EmailPath, inserting every file it can parse into
// v and committing before returning. Per-path failures, including a
// missing or unreadable EmailPath, are recorded in the parser's results
// (which Execute discards) and do not fail the stage.
func (f *FileReader) Execute(v *store.View) error {
	if err := f.Transition(stage.StateRunning, "FileReader.Execute", 0); err != nil {
		return err
	}

	p := parser.New(v, f.Log)
	if _, err := p.WalkDirectory(f.cfg.EmailPath); err != nil {
		_ = f.Transition(stage.StateFailed, "FileReader.Execute", 0)
		return err
	}

	return f.Transition(stage.StateComplete, "FileReader.Execute", 0)
}

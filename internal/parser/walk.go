// Package parser implements the corpus engine's ingestion pipeline: per
// file, detect encoding, convert to UTF-8, identify language, run the
// email/MIME line-protocol FSM, and insert the resulting record into a
// store view if its content hash is not already present.
package parser

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"inlook-corpus/internal/attrval"
	"inlook-corpus/internal/email"
	"inlook-corpus/internal/metrics"
	"inlook-corpus/internal/store"
	apperrors "inlook-corpus/pkg/errors"
)

// FileIdentifierAttr records the source path a record was parsed from.
const FileIdentifierAttr = "File identifier"

// EncodingAttr records the detected source encoding and the detector's
// confidence as a (name, confidence) pair.
const EncodingAttr = "Encoding"

// topLanguageCount is how many language predictions are recorded per
// record.
const topLanguageCount = 2

// Outcome classifies what happened to one candidate file.
type Outcome string

const (
	OutcomeInserted  Outcome = "inserted"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
)

// FileResult reports what happened when one path was processed.
type FileResult struct {
	Path    string
	Outcome Outcome
	Err     error
}

// Parser drives the per-file ingestion pipeline into a single store view.
type Parser struct {
	view *store.View
	log  *logrus.Entry
}

// New builds a Parser that inserts unique records into view.
func New(view *store.View, log *logrus.Entry) *Parser {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Parser{view: view, log: log}
}

// WalkDirectory recurses dir, attempting to parse every regular file it
// finds. Each file is isolated: a failure on one file is recorded in the
// returned slice and does not stop the walk. Non-regular-file entries
// (other than directories) are logged as warnings and skipped.
func (p *Parser) WalkDirectory(dir string) ([]FileResult, error) {
	var results []FileResult

	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			results = append(results, FileResult{Path: path, Outcome: OutcomeFailed, Err: err})
			return nil
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil || !info.Mode().IsRegular() {
			p.log.WithField("path", path).Warn("skipping non-regular file")
			results = append(results, FileResult{Path: path, Outcome: OutcomeSkipped})
			return nil
		}

		outcome, ferr := p.ParseFile(path)
		results = append(results, FileResult{Path: path, Outcome: outcome, Err: ferr})
		if ferr != nil {
			p.log.WithError(ferr).WithField("path", path).Warn("failed to parse file")
		}
		return nil
	})
	if err != nil {
		return results, apperrors.IoFailure("walkDirectory", dir, err)
	}
	return results, nil
}

// ParseFile runs the full ingestion pipeline for one file. A zero-byte
// file is silently skipped (no record, no error), matching the
// "nothing to parse" boundary behavior.
func (p *Parser) ParseFile(path string) (Outcome, error) {
	outcome, err := p.parseFile(path)
	metrics.RecordParserOutcome(string(outcome))
	return outcome, err
}

func (p *Parser) parseFile(path string) (Outcome, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return OutcomeFailed, apperrors.IoFailure("readFile", path, err)
	}
	if len(raw) == 0 {
		return OutcomeSkipped, nil
	}

	charset, confidence, err := detectEncoding(raw)
	if err != nil {
		return OutcomeFailed, err
	}

	text, err := decodeToUTF8(raw, charset)
	if err != nil {
		return OutcomeFailed, err
	}

	rec := email.New()
	rec.SetAttribute(email.AttrFileBytes, attrval.NewBinary(raw))
	rec.SetAttribute(FileIdentifierAttr, attrval.NewString(path))
	rec.SetAttribute(EncodingAttr, attrval.NewStringIntPair(charset, int64(confidence)))

	if langs := topLanguages(text, topLanguageCount); len(langs) > 0 {
		rec.SetAttribute(LanguagePredictionsAttr, attrval.NewStringFloatPairVector(langs))
	}

	if err := feedLines(rec, text); err != nil {
		return OutcomeFailed, err
	}

	if err := rec.Finalize(); err != nil {
		return OutcomeFailed, err
	}

	hash, _ := rec.ContentHash()
	if p.view.ContainsHash(hash) {
		return OutcomeDuplicate, nil
	}

	p.view.InsertEmail(rec)
	p.view.Commit()
	metrics.SetStoreSize(p.view.StoreSize())
	return OutcomeInserted, nil
}

// feedLines drives the FSM over text's lines (split on "\n", trimming a
// trailing "\r" to tolerate CRLF input) and flushes it at EOF.
func feedLines(rec *email.Record, text string) error {
	f := newFSM(rec)
	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")
		f.FeedLine(line)
	}
	if err := scanner.Err(); err != nil {
		return apperrors.IoFailure("scanLines", "<buffer>", err)
	}
	return f.Flush()
}

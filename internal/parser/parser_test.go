package parser

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inlook-corpus/internal/attrval"
	"inlook-corpus/internal/email"
	"inlook-corpus/internal/store"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseFilePlainEmail(t *testing.T) {
	dir := t.TempDir()
	path := writeTempFile(t, dir, "one.eml",
		"Subject: hello\r\nFrom: a@b.com\r\n\r\nhello world\r\n")

	s := store.New()
	p := New(s.FullView(), nil)

	outcome, err := p.ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, OutcomeInserted, outcome)
	assert.Equal(t, 1, s.Size())

	rec := s.FullView().At(0)
	subj, ok := rec.Header("Subject")
	assert.True(t, ok)
	assert.Equal(t, "hello", subj)
	assert.False(t, rec.IsMultipart())
	assert.Equal(t, "hello world", rec.BodyText())

	_, hasPath := rec.Attribute(FileIdentifierAttr)
	assert.True(t, hasPath)

	encAttr, hasEnc := rec.Attribute(EncodingAttr)
	require.True(t, hasEnc)
	enc, ok := encAttr.(*attrval.StringIntPair)
	require.True(t, ok)
	assert.NotEmpty(t, enc.Key)
	assert.Greater(t, enc.Value, int64(0), "detector confidence must be positive")

	if langAttr, hasLang := rec.Attribute(LanguagePredictionsAttr); hasLang {
		langs, ok := langAttr.(*attrval.StringFloatPairVector)
		require.True(t, ok)
		assert.LessOrEqual(t, len(langs.Pairs), 2)
	}
}

func TestParseFileDedupesAcrossRuns(t *testing.T) {
	dir := t.TempDir()
	content := "Subject: dup\r\n\r\nsame body\r\n"
	path1 := writeTempFile(t, dir, "a.eml", content)
	path2 := writeTempFile(t, dir, "b.eml", content)

	s := store.New()
	p := New(s.FullView(), nil)

	o1, err := p.ParseFile(path1)
	require.NoError(t, err)
	assert.Equal(t, OutcomeInserted, o1)

	p2 := New(s.FullView(), nil)
	o2, err := p2.ParseFile(path2)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, o2)
	assert.Equal(t, 1, s.Size(), "identical content must only be stored once")
}

func TestParseFileZeroByteIsSkipped(t *testing.T) {
	dir := t.TempDir()
	path := writeTempFile(t, dir, "empty.eml", "")

	s := store.New()
	p := New(s.FullView(), nil)

	outcome, err := p.ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, outcome)
	assert.Equal(t, 0, s.Size())
}

func TestParseFileMultipart(t *testing.T) {
	dir := t.TempDir()
	raw := "Content-Type: multipart/mixed; boundary=\"X\"\r\n" +
		"\r\n" +
		"--X\r\n" +
		"Content-Type: text/plain\r\n" +
		"\r\n" +
		"part1\r\n" +
		"--X--\r\n"
	path := writeTempFile(t, dir, "multi.eml", raw)

	s := store.New()
	p := New(s.FullView(), nil)

	outcome, err := p.ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, OutcomeInserted, outcome)

	rec := s.FullView().At(0)
	require.True(t, rec.IsMultipart())
	mp, ok := rec.Body().(email.MultipartBody)
	require.True(t, ok)
	require.Len(t, mp.Parts, 1)
	assert.Equal(t, []string{"text/plain"}, mp.Parts[0].Headers["Content-Type"])
	assert.Equal(t, "part1", mp.Parts[0].Body)
}

func TestParseFileMultipartMissingClosingBoundary(t *testing.T) {
	dir := t.TempDir()
	raw := "Content-Type: multipart/mixed; boundary=\"X\"\r\n" +
		"\r\n" +
		"--X\r\n" +
		"Content-Type: text/plain\r\n" +
		"\r\n" +
		"only part\r\n"
	path := writeTempFile(t, dir, "truncated.eml", raw)

	s := store.New()
	p := New(s.FullView(), nil)

	outcome, err := p.ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, OutcomeInserted, outcome)

	rec := s.FullView().At(0)
	mp, ok := rec.Body().(email.MultipartBody)
	require.True(t, ok)
	require.Len(t, mp.Parts, 1, "the last part must still be emitted at EOF even with no closing boundary")
	assert.Equal(t, "only part", mp.Parts[0].Body)
}

func TestWalkDirectoryIsolatesPerFileFailures(t *testing.T) {
	dir := t.TempDir()
	writeTempFile(t, dir, "good.eml", "Subject: ok\r\n\r\nbody\r\n")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "subdir"), 0o755))
	writeTempFile(t, dir, "empty.eml", "")

	s := store.New()
	p := New(s.FullView(), nil)

	results, err := p.WalkDirectory(dir)
	require.NoError(t, err)

	var insertedCount, skippedCount int
	for _, r := range results {
		switch r.Outcome {
		case OutcomeInserted:
			insertedCount++
		case OutcomeSkipped:
			skippedCount++
		}
	}
	assert.Equal(t, 1, insertedCount)
	assert.Equal(t, 1, skippedCount)
	assert.Equal(t, 1, s.Size())
}

func TestHeaderContinuationOnFirstLineIsTolerated(t *testing.T) {
	dir := t.TempDir()
	// A continuation-style line before any header key has been seen: the
	// FSM must not panic and must still reach a usable body.
	raw := " leading continuation with no prior key\r\nSubject: ok\r\n\r\nbody text\r\n"
	path := writeTempFile(t, dir, "weird.eml", raw)

	s := store.New()
	p := New(s.FullView(), nil)

	outcome, err := p.ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, OutcomeInserted, outcome)

	rec := s.FullView().At(0)
	subj, ok := rec.Header("Subject")
	assert.True(t, ok)
	assert.Equal(t, "ok", subj)
	assert.Equal(t, "body text", rec.BodyText())
}

package stages

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inlook-corpus/internal/attrval"
	"inlook-corpus/internal/email"
	"inlook-corpus/internal/stage"
	"inlook-corpus/internal/store"
)

func newRecordWithHash(t *testing.T, body string) *email.Record {
	t.Helper()
	r := email.New()
	r.SetHeader("Subject", "hello")
	r.SetStandardBody(body)
	r.SetAttribute(email.AttrFileBytes, attrval.NewBinary([]byte(body)))
	require.NoError(t, r.Finalize())
	return r
}

func TestFileReaderParsesDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.eml"), []byte("Subject: hi\r\n\r\nbody\r\n"), 0o644))

	fr := NewFileReader("FileReader_1", nil)
	cfg, err := json.Marshal(map[string]string{"emailPath": dir})
	require.NoError(t, err)
	fr.SetConfig(cfg)
	require.NoError(t, fr.InstantiateRecursive())

	s := store.New()
	v := s.FullView()
	require.NoError(t, fr.Execute(v))
	v.Commit()
	assert.Equal(t, 1, s.Size())
	assert.Equal(t, stage.StateComplete, fr.State())
}

func TestFileReaderRejectsMissingEmailPath(t *testing.T) {
	fr := NewFileReader("FileReader_1", nil)
	fr.SetConfig([]byte(`{}`))
	assert.Error(t, fr.InstantiateRecursive())
}

func TestAttributeAdderStampsEveryRecord(t *testing.T) {
	aa := NewAttributeAdder("AddAttr_1", nil)
	cfg, err := json.Marshal(map[string]interface{}{
		"attributes": []map[string]string{{"attributeKey": "tag", "attributeVal": "v1"}},
	})
	require.NoError(t, err)
	aa.SetConfig(cfg)
	require.NoError(t, aa.InstantiateRecursive())

	s := store.New()
	s.Insert(newRecordWithHash(t, "one"))
	s.Insert(newRecordWithHash(t, "two"))
	v := s.FullView()
	require.NoError(t, aa.Execute(v))

	v.Each(func(r *email.Record) bool {
		av, ok := r.Attribute("tag")
		require.True(t, ok)
		assert.Equal(t, "v1", av.Render())
		return true
	})
}

func TestEnsureAttrFailsWhenMissing(t *testing.T) {
	ea := NewEnsureAttr("EnsureAttr_1", nil)
	cfg, err := json.Marshal(map[string]string{"key": "tag"})
	require.NoError(t, err)
	ea.SetConfig(cfg)
	require.NoError(t, ea.InstantiateRecursive())

	s := store.New()
	s.Insert(newRecordWithHash(t, "one"))
	v := s.FullView()

	err = ea.Execute(v)
	assert.Error(t, err)
	assert.Equal(t, stage.StateFailed, ea.State())
}

func TestEnsureAttrSucceedsWhenPresent(t *testing.T) {
	ea := NewEnsureAttr("EnsureAttr_1", nil)
	cfg, err := json.Marshal(map[string]string{"key": "tag", "val": "v1"})
	require.NoError(t, err)
	ea.SetConfig(cfg)
	require.NoError(t, ea.InstantiateRecursive())

	s := store.New()
	rec := newRecordWithHash(t, "one")
	rec.SetAttribute("tag", attrval.NewString("v1"))
	s.Insert(rec)
	v := s.FullView()

	require.NoError(t, ea.Execute(v))
	assert.Equal(t, stage.StateComplete, ea.State())
}

func TestFilterActivelyRemovesNonMatchingEmails(t *testing.T) {
	f := NewFilter("Filter_1", nil)
	cfg, err := json.Marshal(map[string]interface{}{
		"filters": []map[string]interface{}{
			{"fields": []map[string]interface{}{
				{
					"value":      "headerVal",
					"outcome":    "include",
					"filterBy":   "string",
					"filterVals": []map[string]string{{"filterValue": "keep-me"}},
				},
			}},
		},
	})
	require.NoError(t, err)
	f.SetConfig(cfg)
	require.NoError(t, f.InstantiateRecursive())

	s := store.New()
	kept := newRecordWithHash(t, "one")
	kept.SetHeader("X-Tag", "keep-me")
	dropped := newRecordWithHash(t, "two")
	dropped.SetHeader("X-Tag", "drop-me")
	s.Insert(kept)
	s.Insert(dropped)

	v := s.FullView()
	require.NoError(t, f.Execute(v))

	assert.Equal(t, 1, s.Size())
}

func TestFilterKeepsAllWhenNoRuleMatches(t *testing.T) {
	f := NewFilter("Filter_1", nil)
	cfg, err := json.Marshal(map[string]interface{}{"filters": []map[string]interface{}{}})
	require.NoError(t, err)
	f.SetConfig(cfg)
	require.NoError(t, f.InstantiateRecursive())

	s := store.New()
	s.Insert(newRecordWithHash(t, "one"))
	s.Insert(newRecordWithHash(t, "two"))
	v := s.FullView()
	require.NoError(t, f.Execute(v))

	assert.Equal(t, 2, s.Size())
}

func TestSystemInfoTaggerStampsAttributes(t *testing.T) {
	tagger := NewSystemInfoTagger("SystemInfoTagger_1", nil)
	tagger.SetConfig([]byte(`{}`))
	require.NoError(t, tagger.InstantiateRecursive())

	s := store.New()
	s.Insert(newRecordWithHash(t, "one"))
	v := s.FullView()
	require.NoError(t, tagger.Execute(v))

	v.Each(func(r *email.Record) bool {
		_, ok := r.Attribute(HostCPUPercentAttr)
		assert.True(t, ok)
		_, ok = r.Attribute(HostMemoryUsedPercentAttr)
		assert.True(t, ok)
		return true
	})
}

func TestStagesRegisteredInDefaultRegistry(t *testing.T) {
	for _, name := range []string{
		FileReaderPluginName,
		AttributeAdderPluginName,
		SystemInfoTaggerPluginName,
		EnsureAttrPluginName,
		FilterPluginName,
		RedisStoreWriterPluginName,
		RedisStoreReaderPluginName,
	} {
		_, err := stage.Default.CreateInstance(name, []byte(`{}`))
		assert.NoErrorf(t, err, "plugin %s should be registered", name)
	}
}

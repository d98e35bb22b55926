package stages

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"inlook-corpus/internal/attrval"
	"inlook-corpus/internal/email"
	"inlook-corpus/internal/stage"
	"inlook-corpus/internal/store"
	"inlook-corpus/pkg/errors"
)

// RedisStoreWriterPluginName and RedisStoreReaderPluginName are the
// plugin names these adapters register under.
const (
	RedisStoreWriterPluginName = "RedisStoreWriter"
	RedisStoreReaderPluginName = "RedisStoreReader"
)

type redisStoreConfig struct {
	URL       string `json:"url"`
	KeyPrefix string `json:"keyPrefix"`
}

var redisStoreSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"url": map[string]interface{}{
			"type":        "string",
			"description": "Redis connection URL, e.g. redis://localhost:6379/0.",
		},
		"keyPrefix": map[string]interface{}{
			"type":        "string",
			"description": "Key prefix for every record this stage reads or writes.",
		},
	},
	"required": []interface{}{"url"},
}

func redisRecordKey(prefix string, hash uint64) string {
	return fmt.Sprintf("%semail:%d", prefix, hash)
}

func newRedisClient(cfg redisStoreConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, errors.ConfigInvalid("RedisStore", "parse_url", err.Error())
	}
	return redis.NewClient(opts), nil
}

// redisRecordDoc is the JSON shape a record is written to Redis as: its
// headers, flattened body text, and rendered attribute bag. Stored as a
// display document, not a round-trippable serialization — the store's
// own content hash (its Redis key) is the identity that matters for
// dedup, not reconstruction back into a *email.Record.
type redisRecordDoc struct {
	Headers    []email.HeaderEntry `json:"headers"`
	Body       string              `json:"body"`
	Attributes map[string]string   `json:"attributes"`
}

func toRedisDoc(r *email.Record) redisRecordDoc {
	attrs := make(map[string]string, len(r.Attributes()))
	for k, v := range r.Attributes() {
		attrs[k] = v.Render()
	}
	return redisRecordDoc{
		Headers:    r.Headers(),
		Body:       r.BodyText(),
		Attributes: attrs,
	}
}

// RedisStoreWriter persists every record in its view to Redis, keyed by
// content hash, so a later run (or a separate reader instance) can
// recover what this engine already processed.
type RedisStoreWriter struct {
	*stage.Base
	cfg redisStoreConfig
}

// NewRedisStoreWriter constructs a RedisStoreWriter instance.
func NewRedisStoreWriter(instanceID string, log *logrus.Entry) *RedisStoreWriter {
	return &RedisStoreWriter{
		Base: stage.NewBase(RedisStoreWriterPluginName, instanceID, redisStoreSchema, []string{"stage"}, log),
	}
}

func (w *RedisStoreWriter) InstantiateRecursive() error {
	if err := w.Validate(); err != nil {
		return err
	}
	if err := json.Unmarshal(w.Config(), &w.cfg); err != nil {
		_ = w.Transition(stage.StateFailed, "RedisStoreWriter.InstantiateRecursive", 0)
		return errors.ConfigInvalid(RedisStoreWriterPluginName, "instantiate_recursive", err.Error())
	}
	return w.Transition(stage.StateReady, "RedisStoreWriter.InstantiateRecursive", 0)
}

func (w *RedisStoreWriter) Execute(v *store.View) error {
	if err := w.Transition(stage.StateRunning, "RedisStoreWriter.Execute", 0); err != nil {
		return err
	}

	client, err := newRedisClient(w.cfg)
	if err != nil {
		_ = w.Transition(stage.StateFailed, "RedisStoreWriter.Execute", 0)
		return err
	}
	defer client.Close()

	ctx := context.Background()
	var writeErr error
	v.Each(func(r *email.Record) bool {
		hash, ok := r.ContentHash()
		if !ok {
			return true
		}
		data, err := json.Marshal(toRedisDoc(r))
		if err != nil {
			writeErr = errors.MalformedEmail("failed to marshal record for redis: " + err.Error())
			return false
		}
		if err := client.Set(ctx, redisRecordKey(w.cfg.KeyPrefix, hash), data, 0).Err(); err != nil {
			writeErr = errors.IoFailure("redisSet", redisRecordKey(w.cfg.KeyPrefix, hash), err)
			return false
		}
		return true
	})

	if writeErr != nil {
		_ = w.Transition(stage.StateFailed, "RedisStoreWriter.Execute", 0)
		return writeErr
	}

	return w.Transition(stage.StateComplete, "RedisStoreWriter.Execute", 0)
}

// RedisStoreReader is the write side's read counterpart: it tags every
// record currently in its view with whether a Redis entry already
// exists for its content hash, letting a downstream Filter drop
// already-seen records in a later run.
const RedisSeenAttr = "Redis seen"

// RedisStoreReader stamps RedisSeenAttr onto every record.
type RedisStoreReader struct {
	*stage.Base
	cfg redisStoreConfig
}

// NewRedisStoreReader constructs a RedisStoreReader instance.
func NewRedisStoreReader(instanceID string, log *logrus.Entry) *RedisStoreReader {
	return &RedisStoreReader{
		Base: stage.NewBase(RedisStoreReaderPluginName, instanceID, redisStoreSchema, []string{"stage"}, log),
	}
}

func (r *RedisStoreReader) InstantiateRecursive() error {
	if err := r.Validate(); err != nil {
		return err
	}
	if err := json.Unmarshal(r.Config(), &r.cfg); err != nil {
		_ = r.Transition(stage.StateFailed, "RedisStoreReader.InstantiateRecursive", 0)
		return errors.ConfigInvalid(RedisStoreReaderPluginName, "instantiate_recursive", err.Error())
	}
	r.DeclareAttributes(nil, []string{RedisSeenAttr})
	return r.Transition(stage.StateReady, "RedisStoreReader.InstantiateRecursive", 0)
}

func (r *RedisStoreReader) Execute(v *store.View) error {
	if err := r.Transition(stage.StateRunning, "RedisStoreReader.Execute", 0); err != nil {
		return err
	}

	client, err := newRedisClient(r.cfg)
	if err != nil {
		_ = r.Transition(stage.StateFailed, "RedisStoreReader.Execute", 0)
		return err
	}
	defer client.Close()

	ctx := context.Background()
	v.Each(func(rec *email.Record) bool {
		hash, ok := rec.ContentHash()
		if !ok {
			rec.SetAttribute(RedisSeenAttr, attrval.NewBoolean(false))
			return true
		}
		n, err := client.Exists(ctx, redisRecordKey(r.cfg.KeyPrefix, hash)).Result()
		if err != nil {
			r.Log.WithError(err).Warn("failed to check redis for existing record")
			n = 0
		}
		rec.SetAttribute(RedisSeenAttr, attrval.NewBoolean(n > 0))
		return true
	})

	return r.Transition(stage.StateComplete, "RedisStoreReader.Execute", 0)
}

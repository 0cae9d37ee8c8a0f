// Package bolt provides a bbolt-backed EventLog. Each aggregate stream lives
// in its own bucket with big-endian version keys, so one Update transaction
// gives the atomic check-assign-append the core design leans on.
package bolt

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bbolt "go.etcd.io/bbolt"

	"github.com/corefold/eventcore"
)

var (
	bucketStreams = []byte("streams")
	bucketVectors = []byte("vectors")
)

// EventLog persists event streams and their version vectors in a bolt file.
type EventLog struct {
	db *bbolt.DB
}

// Open initializes the database file and ensures the root buckets exist.
func Open(path string) (*EventLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}

	if err := db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketStreams); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketVectors)
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}

	return &EventLog{db: db}, nil
}

func (l *EventLog) Append(ctx context.Context, ref eventcore.AggregateRef, base eventcore.VersionVector, events []eventcore.Event) ([]eventcore.Event, eventcore.VersionVector, error) {
	if err := ctx.Err(); err != nil {
		return nil, eventcore.VersionVector{}, err
	}

	var (
		stamped []eventcore.Event
		result  eventcore.VersionVector
	)
	err := l.db.Update(func(tx *bbolt.Tx) error {
		vector, err := readVector(tx, ref)
		if err != nil {
			return err
		}
		if !vector.CompatibleWith(base) {
			return &eventcore.ConflictError{
				AggregateID: ref.ID,
				Stored:      vector,
				Supplied:    base.Clone(),
			}
		}
		if len(events) == 0 {
			result = vector
			return nil
		}

		stream, err := tx.Bucket(bucketStreams).CreateBucketIfNotExists([]byte(ref.String()))
		if err != nil {
			return err
		}

		version := lastVersion(stream)
		vector.Merge(base)
		stamped = make([]eventcore.Event, len(events))
		for i, event := range events {
			version++
			vector.Increment(eventcore.MasterBranch)
			event.Version = version
			stamped[i] = event

			payload, err := json.Marshal(event)
			if err != nil {
				return fmt.Errorf("marshal event %s: %w", event.EventID, err)
			}
			if err := stream.Put(versionKey(version), payload); err != nil {
				return err
			}
		}

		if err := writeVector(tx, ref, vector); err != nil {
			return err
		}
		result = vector
		return nil
	})
	if err != nil {
		return nil, eventcore.VersionVector{}, err
	}
	return stamped, result, nil
}

func (l *EventLog) Events(ctx context.Context, ref eventcore.AggregateRef, fromVersion uint64) ([]eventcore.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var events []eventcore.Event
	err := l.db.View(func(tx *bbolt.Tx) error {
		stream := tx.Bucket(bucketStreams).Bucket([]byte(ref.String()))
		if stream == nil {
			return nil
		}
		c := stream.Cursor()
		for k, v := c.Seek(versionKey(fromVersion + 1)); k != nil; k, v = c.Next() {
			var event eventcore.Event
			if err := json.Unmarshal(v, &event); err != nil {
				return fmt.Errorf("unmarshal event at version %d: %w", binary.BigEndian.Uint64(k), err)
			}
			events = append(events, event)
		}
		return nil
	})
	return events, err
}

func (l *EventLog) VersionVector(ctx context.Context, ref eventcore.AggregateRef) (eventcore.VersionVector, error) {
	if err := ctx.Err(); err != nil {
		return eventcore.VersionVector{}, err
	}

	var vector eventcore.VersionVector
	err := l.db.View(func(tx *bbolt.Tx) error {
		var err error
		vector, err = readVector(tx, ref)
		return err
	})
	return vector, err
}

func (l *EventLog) Streams(ctx context.Context) ([]eventcore.AggregateRef, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var refs []eventcore.AggregateRef
	err := l.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketStreams).ForEachBucket(func(name []byte) error {
			ref, err := eventcore.ParseRef(string(name))
			if err != nil {
				return err
			}
			refs = append(refs, ref)
			return nil
		})
	})
	return refs, err
}

func (l *EventLog) Close() error {
	return l.db.Close()
}

func readVector(tx *bbolt.Tx, ref eventcore.AggregateRef) (eventcore.VersionVector, error) {
	raw := tx.Bucket(bucketVectors).Get([]byte(ref.String()))
	if raw == nil {
		return eventcore.NewVersionVector(), nil
	}
	var vector eventcore.VersionVector
	if err := json.Unmarshal(raw, &vector); err != nil {
		return eventcore.VersionVector{}, fmt.Errorf("unmarshal vector for %s: %w", ref, err)
	}
	return vector, nil
}

func writeVector(tx *bbolt.Tx, ref eventcore.AggregateRef, vector eventcore.VersionVector) error {
	raw, err := json.Marshal(vector)
	if err != nil {
		return err
	}
	return tx.Bucket(bucketVectors).Put([]byte(ref.String()), raw)
}

func versionKey(version uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, version)
	return key
}

func lastVersion(stream *bbolt.Bucket) uint64 {
	k, _ := stream.Cursor().Last()
	if k == nil {
		return 0
	}
	return binary.BigEndian.Uint64(k)
}

package dtc

// Journal is a bbolt-backed first-seen log of fault occurrences. It records
// which codes have ever been raised and when, so operators can review fault
// history after codes were cleared from the live registry. Live sensor
// telemetry is deliberately never persisted.

import (
	"encoding/binary"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/canlink/ecubridge/internal/obd"
)

var journalBucket = []byte("dtc_journal")

// Entry is one journaled fault occurrence.
type Entry struct {
	Code      string
	FirstSeen time.Time
	Count     uint64
}

// Journal wraps the bolt database handle.
type Journal struct {
	db *bolt.DB
}

// OpenJournal opens (or creates) the journal database and ensures the
// bucket exists.
func OpenJournal(path string) (*Journal, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(journalBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Journal{db: db}, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Record logs an occurrence of code. It returns true when the code has not
// been seen before.
func (j *Journal) Record(code obd.DTC, at time.Time) (bool, error) {
	key := []byte(code.String())
	var isNew bool

	err := j.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(journalBucket)
		prev := b.Get(key)
		var firstSeen int64
		var count uint64
		if prev == nil {
			isNew = true
			firstSeen = at.UnixNano()
			count = 1
		} else {
			firstSeen = int64(binary.BigEndian.Uint64(prev[:8]))
			count = binary.BigEndian.Uint64(prev[8:16]) + 1
		}
		val := make([]byte, 16)
		binary.BigEndian.PutUint64(val[:8], uint64(firstSeen))
		binary.BigEndian.PutUint64(val[8:16], count)
		return b.Put(key, val)
	})
	return isNew, err
}

// History returns every journaled entry in key order.
func (j *Journal) History() ([]Entry, error) {
	var out []Entry
	err := j.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(journalBucket).ForEach(func(k, v []byte) error {
			if len(v) < 16 {
				return nil
			}
			out = append(out, Entry{
				Code:      string(k),
				FirstSeen: time.Unix(0, int64(binary.BigEndian.Uint64(v[:8]))),
				Count:     binary.BigEndian.Uint64(v[8:16]),
			})
			return nil
		})
	})
	return out, err
}

// ClearAll drops the journal contents.
func (j *Journal) ClearAll() error {
	return j.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(journalBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucket(journalBucket)
		return err
	})
}

// Package asynclog spools operations that failed against their backends so
// they can be replayed later.  The canonical use is a delete that must not
// be lost: the proxy acknowledges it with a synthetic default reply and
// queues it here.
package asynclog

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/boltdb/bolt"
	"github.com/btcsuite/fastsha256"
)

var bucketSpool = []byte("spool")

// Record is one spooled operation.
type Record struct {
	Op      string
	Key     []byte
	Exptime uint32
	Time    int64

	// Sum guards the record against on-disk corruption between spool and
	// replay.
	Sum [32]byte
}

func (r *Record) checksum() [32]byte {
	b := make([]byte, 0, len(r.Op)+len(r.Key)+12)
	b = append(b, r.Op...)
	b = append(b, r.Key...)
	b = binary.BigEndian.AppendUint32(b, r.Exptime)
	b = binary.BigEndian.AppendUint64(b, uint64(r.Time))
	return fastsha256.Sum256(b)
}

// Log is a bolt backed spool.
type Log struct {
	db     *bolt.DB
	dbfile string
}

// New creates a spool stored under datadir.
func New(datadir, name string) *Log {
	return &Log{
		dbfile: filepath.Join(datadir, name+".spool"),
	}
}

func (l *Log) Open(mode os.FileMode) (err error) {
	if l.db, err = bolt.Open(l.dbfile, mode, nil); err == nil {
		err = l.db.Update(func(btx *bolt.Tx) error {
			_, er := btx.CreateBucketIfNotExists(bucketSpool)
			return er
		})
	}
	return
}

func (l *Log) Close() error {
	return l.db.Close()
}

// Append spools one operation.
func (l *Log) Append(op string, key []byte, exptime uint32) error {
	rec := &Record{
		Op:      op,
		Key:     key,
		Exptime: exptime,
		Time:    time.Now().UnixNano(),
	}
	rec.Sum = rec.checksum()

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(rec); err != nil {
		return err
	}

	return l.db.Update(func(btx *bolt.Tx) error {
		bkt := btx.Bucket(bucketSpool)
		seq, err := bkt.NextSequence()
		if err != nil {
			return err
		}
		k := binary.BigEndian.AppendUint64(nil, seq)
		return bkt.Put(k, buf.Bytes())
	})
}

// Replay iterates the spool in append order, verifying checksums.  The
// callback returning an error stops the iteration.
func (l *Log) Replay(fn func(*Record) error) error {
	return l.db.View(func(btx *bolt.Tx) error {
		c := btx.Bucket(bucketSpool).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			rec := &Record{}
			if err := gob.NewDecoder(bytes.NewReader(v)).Decode(rec); err != nil {
				return err
			}
			if rec.Sum != rec.checksum() {
				return fmt.Errorf("checksum mismatch at seq %d", binary.BigEndian.Uint64(k))
			}
			if err := fn(rec); err != nil {
				return err
			}
		}
		return nil
	})
}

// Count returns the number of spooled records.
func (l *Log) Count() (n int, err error) {
	err = l.db.View(func(btx *bolt.Tx) error {
		n = btx.Bucket(bucketSpool).Stats().KeyN
		return nil
	})
	return
}

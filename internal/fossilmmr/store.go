package fossilmmr

import (
	"encoding/binary"
	"fmt"

	"go.etcd.io/bbolt"
)

// BucketName is the bbolt bucket MMR node hashes and metadata live in,
// matching the namespace the persisted-state contract names.
const BucketName = "blockheaders_mmr"

var (
	metaElementsCountKey = []byte("elements_count")
)

// nodeStore persists MMR node hashes and the running elements_count in a
// single bbolt file, so a process restart does not require replaying
// every leaf.
type nodeStore struct {
	db *bbolt.DB
}

func openNodeStore(path string) (*nodeStore, error) {
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("fossilmmr: opening %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(BucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("fossilmmr: creating bucket: %w", err)
	}
	return &nodeStore{db: db}, nil
}

func (s *nodeStore) Close() error {
	return s.db.Close()
}

func nodeKey(pos uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], pos)
	return b[:]
}

func (s *nodeStore) getNode(pos uint64) (Hash, error) {
	var h Hash
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(BucketName)).Get(nodeKey(pos))
		if b == nil {
			return fmt.Errorf("fossilmmr: node at position %d not found", pos)
		}
		if len(b) != 32 {
			return fmt.Errorf("fossilmmr: node at position %d has %d bytes, want 32", pos, len(b))
		}
		copy(h[:], b)
		return nil
	})
	return h, err
}

// setNodes writes a batch of (position, hash) pairs and the new
// elements_count in one bbolt transaction.
func (s *nodeStore) setNodes(nodes map[uint64]Hash, elementsCount uint64) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(BucketName))
		for pos, h := range nodes {
			if err := bucket.Put(nodeKey(pos), h[:]); err != nil {
				return err
			}
		}
		var countBytes [8]byte
		binary.BigEndian.PutUint64(countBytes[:], elementsCount)
		return bucket.Put(metaElementsCountKey, countBytes[:])
	})
}

func (s *nodeStore) getElementsCount() (uint64, error) {
	var count uint64
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(BucketName)).Get(metaElementsCountKey)
		if b == nil {
			count = 0
			return nil
		}
		count = binary.BigEndian.Uint64(b)
		return nil
	})
	return count, err
}

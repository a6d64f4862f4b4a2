/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package host

import (
	"path/filepath"
	"strconv"

	"github.com/nutsdb/nutsdb"

	"github.com/shadowsim/shadow/internal/shadowerr"
)

const stateBucket = "host-state"

// Store is a per-host embedded key/value store used to snapshot
// descriptor and connection state across a paused/resumed run, mirroring
// the teacher's config/components/nutsdb component shape but scoped to
// one host's subdirectory rather than one shared server.
type Store struct {
	db *nutsdb.DB
}

// OpenStore opens (creating if absent) the nutsdb directory for one
// host's persisted state, named by node id under dataDir.
func OpenStore(dataDir string, nodeID uint64) (*Store, error) {
	dir := filepath.Join(dataDir, "hosts", strconv.FormatUint(nodeID, 10))

	db, err := nutsdb.Open(
		nutsdb.DefaultOptions,
		nutsdb.WithDir(dir),
	)
	if err != nil {
		return nil, shadowerr.Wrap(shadowerr.CodeConfigInvalidOption, "open host state store", err)
	}
	return &Store{db: db}, nil
}

// Put snapshots value under key, persisted with no TTL.
func (s *Store) Put(key string, value []byte) error {
	err := s.db.Update(func(tx *nutsdb.Tx) error {
		return tx.Put(stateBucket, []byte(key), value, nutsdb.Persistent)
	})
	if err != nil {
		return shadowerr.Wrap(shadowerr.CodeSyscallConnectionReset, "persist host state", err)
	}
	return nil
}

// Get loads a previously snapshotted value. ok is false when no such key
// was ever stored.
func (s *Store) Get(key string) (value []byte, ok bool, err error) {
	viewErr := s.db.View(func(tx *nutsdb.Tx) error {
		e, getErr := tx.Get(stateBucket, []byte(key))
		if getErr != nil {
			return nil
		}
		ok = true
		value = append([]byte(nil), e.Value...)
		return nil
	})
	if viewErr != nil {
		return nil, false, shadowerr.Wrap(shadowerr.CodeSyscallConnectionReset, "load host state", viewErr)
	}
	return value, ok, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

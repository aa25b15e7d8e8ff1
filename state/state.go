// Copyright (c) 2026 The StakeVault developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package state

import (
	"bytes"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"

	"github.com/stakevault/core/kv"
	"github.com/stakevault/core/vault"
)

// Error is the error caused by state access failure.
type Error struct {
	cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("state: %v", e.cause)
}

type storageKey struct {
	addr vault.Address
	key  vault.Bytes32
}

// State is the durable keyed storage shared by all components. Each value is
// scoped by the owning component's address. Writes are journaled so a caller
// can checkpoint before a mutation and revert on rejection, which is how the
// host environment provides all-or-nothing execution per call.
type State struct {
	store   kv.Store
	cache   map[storageKey]rlp.RawValue // values loaded from or written over the store
	journal []journalEntry              // revisions of cache, in write order
}

type journalEntry struct {
	key      storageKey
	prev     rlp.RawValue
	prevSeen bool
}

// New create state object backed by the given store.
func New(store kv.Store) *State {
	return &State{
		store: store,
		cache: make(map[storageKey]rlp.RawValue),
	}
}

func (s *State) load(k storageKey) (rlp.RawValue, error) {
	if v, ok := s.cache[k]; ok {
		return v, nil
	}
	data, err := s.store.Get(backingKey(k))
	if err != nil {
		if s.store.IsNotFound(err) {
			s.cache[k] = nil
			return nil, nil
		}
		return nil, err
	}
	s.cache[k] = data
	return data, nil
}

// GetRawStorage returns storage value in rlp raw for given address and key.
func (s *State) GetRawStorage(addr vault.Address, key vault.Bytes32) (rlp.RawValue, error) {
	raw, err := s.load(storageKey{addr, key})
	if err != nil {
		return nil, &Error{err}
	}
	return raw, nil
}

// SetRawStorage set storage value in rlp raw. Empty raw deletes the value.
func (s *State) SetRawStorage(addr vault.Address, key vault.Bytes32, raw rlp.RawValue) {
	k := storageKey{addr, key}
	prev, prevSeen := s.cache[k]
	s.journal = append(s.journal, journalEntry{key: k, prev: prev, prevSeen: prevSeen})
	s.cache[k] = raw
}

// GetStorage returns Bytes32 storage value for the given address and key.
func (s *State) GetStorage(addr vault.Address, key vault.Bytes32) (vault.Bytes32, error) {
	raw, err := s.GetRawStorage(addr, key)
	if err != nil {
		return vault.Bytes32{}, err
	}
	if len(raw) == 0 {
		return vault.Bytes32{}, nil
	}
	kind, content, _, err := rlp.Split(raw)
	if err != nil {
		return vault.Bytes32{}, &Error{err}
	}
	if kind == rlp.List {
		// special case for rlp list, it should be customized storage value
		// return hash of raw data
		return vault.Blake2b(raw), nil
	}
	return vault.BytesToBytes32(content), nil
}

// SetStorage set storage value for the given address and key.
func (s *State) SetStorage(addr vault.Address, key, value vault.Bytes32) {
	if value.IsZero() {
		s.SetRawStorage(addr, key, nil)
		return
	}
	v, _ := rlp.EncodeToBytes(bytes.TrimLeft(value[:], "\x00"))
	s.SetRawStorage(addr, key, v)
}

// EncodeStorage set storage value encoded by given enc method.
// Returning empty bytes from enc deletes the value.
func (s *State) EncodeStorage(addr vault.Address, key vault.Bytes32, enc func() ([]byte, error)) error {
	raw, err := enc()
	if err != nil {
		return &Error{err}
	}
	s.SetRawStorage(addr, key, raw)
	return nil
}

// DecodeStorage get and decode storage value.
// dec receives empty bytes when the value does not exist.
func (s *State) DecodeStorage(addr vault.Address, key vault.Bytes32, dec func([]byte) error) error {
	raw, err := s.GetRawStorage(addr, key)
	if err != nil {
		return err
	}
	if err := dec(raw); err != nil {
		return &Error{err}
	}
	return nil
}

// Exists returns whether a value exists for the given address and key.
func (s *State) Exists(addr vault.Address, key vault.Bytes32) (bool, error) {
	raw, err := s.GetRawStorage(addr, key)
	if err != nil {
		return false, err
	}
	return len(raw) > 0, nil
}

// Delete removes the value for the given address and key.
func (s *State) Delete(addr vault.Address, key vault.Bytes32) {
	s.SetRawStorage(addr, key, nil)
}

// NewCheckpoint makes a checkpoint of current state.
// It returns revision of the checkpoint.
func (s *State) NewCheckpoint() int {
	return len(s.journal)
}

// RevertTo reverts all writes made after the checkpoint specified by revision.
func (s *State) RevertTo(revision int) {
	for i := len(s.journal) - 1; i >= revision; i-- {
		e := s.journal[i]
		if e.prevSeen {
			s.cache[e.key] = e.prev
		} else {
			delete(s.cache, e.key)
		}
	}
	s.journal = s.journal[:revision]
}

// Commit flushes all journaled writes to the backing store and resets the
// journal. It must only be called between host calls, never inside one.
func (s *State) Commit() error {
	written := make(map[storageKey]bool, len(s.journal))
	// replay in reverse so only the newest value per key hits the store
	for i := len(s.journal) - 1; i >= 0; i-- {
		k := s.journal[i].key
		if written[k] {
			continue
		}
		written[k] = true
		raw := s.cache[k]
		if len(raw) == 0 {
			if err := s.store.Delete(backingKey(k)); err != nil {
				return &Error{err}
			}
			continue
		}
		if err := s.store.Put(backingKey(k), raw); err != nil {
			return &Error{err}
		}
	}
	s.journal = s.journal[:0]
	return nil
}

func backingKey(k storageKey) []byte {
	h := vault.Blake2b(k.addr.Bytes(), k.key.Bytes())
	return h.Bytes()
}

// Copyright (c) 2026 The StakeVault developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package state

import (
	"testing"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stakevault/core/lvldb"
	"github.com/stakevault/core/vault"
)

func newTestState(t *testing.T) *State {
	db, err := lvldb.NewMem()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db)
}

func TestStorage(t *testing.T) {
	st := newTestState(t)

	addr := vault.BytesToAddress([]byte("addr"))
	key := vault.Blake2b([]byte("key"))
	value := vault.Blake2b([]byte("value"))

	st.SetStorage(addr, key, value)
	assert.Equal(t, M(value, nil), M(st.GetStorage(addr, key)))

	// unknown key reads zero
	assert.Equal(t, M(vault.Bytes32{}, nil), M(st.GetStorage(addr, vault.Blake2b([]byte("unknown")))))

	// zero value deletes
	st.SetStorage(addr, key, vault.Bytes32{})
	assert.Equal(t, M(false, nil), M(st.Exists(addr, key)))
}

func TestEncodeDecodeStorage(t *testing.T) {
	st := newTestState(t)

	addr := vault.BytesToAddress([]byte("addr"))
	key := vault.Blake2b([]byte("key"))

	type record struct {
		A uint64
		B []byte
	}
	in := record{42, []byte("payload")}

	err := st.EncodeStorage(addr, key, func() ([]byte, error) {
		return rlp.EncodeToBytes(&in)
	})
	require.NoError(t, err)

	var out record
	err = st.DecodeStorage(addr, key, func(raw []byte) error {
		if len(raw) == 0 {
			return nil
		}
		return rlp.DecodeBytes(raw, &out)
	})
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestCheckpointRevert(t *testing.T) {
	st := newTestState(t)

	addr := vault.BytesToAddress([]byte("addr"))
	k1 := vault.Blake2b([]byte("k1"))
	k2 := vault.Blake2b([]byte("k2"))
	v1 := vault.Blake2b([]byte("v1"))
	v2 := vault.Blake2b([]byte("v2"))

	st.SetStorage(addr, k1, v1)

	cp := st.NewCheckpoint()
	st.SetStorage(addr, k1, v2)
	st.SetStorage(addr, k2, v2)
	st.RevertTo(cp)

	assert.Equal(t, M(v1, nil), M(st.GetStorage(addr, k1)))
	assert.Equal(t, M(false, nil), M(st.Exists(addr, k2)))
}

func TestCommitPersists(t *testing.T) {
	db, err := lvldb.NewMem()
	require.NoError(t, err)
	defer db.Close()

	addr := vault.BytesToAddress([]byte("addr"))
	key := vault.Blake2b([]byte("key"))
	value := vault.Blake2b([]byte("value"))

	st := New(db)
	st.SetStorage(addr, key, value)
	require.NoError(t, st.Commit())

	// a fresh state over the same store sees the committed value
	st2 := New(db)
	assert.Equal(t, M(value, nil), M(st2.GetStorage(addr, key)))

	// delete and commit
	st2.Delete(addr, key)
	require.NoError(t, st2.Commit())

	st3 := New(db)
	assert.Equal(t, M(false, nil), M(st3.Exists(addr, key)))
}

func TestRevertAfterCommitKeepsBase(t *testing.T) {
	st := newTestState(t)

	addr := vault.BytesToAddress([]byte("addr"))
	key := vault.Blake2b([]byte("key"))
	v1 := vault.Blake2b([]byte("v1"))
	v2 := vault.Blake2b([]byte("v2"))

	st.SetStorage(addr, key, v1)
	require.NoError(t, st.Commit())

	cp := st.NewCheckpoint()
	st.SetStorage(addr, key, v2)
	st.RevertTo(cp)

	assert.Equal(t, M(v1, nil), M(st.GetStorage(addr, key)))
}

func M(a ...any) []any {
	return a
}

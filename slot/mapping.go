// Copyright (c) 2026 The StakeVault developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package slot

import (
	"reflect"

	"github.com/ethereum/go-ethereum/rlp"

	"github.com/stakevault/core/vault"
)

// Key constrains mapping keys to byte-representable types.
type Key interface {
	Bytes() []byte
}

// Mapping is a keyed collection of RLP-encoded records, one record per slot.
// Slots are derived by hashing the key with the mapping's base position, so
// distinct mappings of one component never collide.
type Mapping[K Key, V any] struct {
	context *Context
	basePos vault.Bytes32
}

func NewMapping[K Key, V any](context *Context, pos vault.Bytes32) *Mapping[K, V] {
	return &Mapping[K, V]{context: context, basePos: pos}
}

func (m *Mapping[K, V]) position(key K) vault.Bytes32 {
	return vault.Blake2b(key.Bytes(), m.basePos.Bytes())
}

// Get loads the record for key. A missing record decodes as the zero value,
// with pointer types allocated so callers can probe IsEmpty on the result.
func (m *Mapping[K, V]) Get(key K) (value V, err error) {
	err = m.context.state.DecodeStorage(m.context.address, m.position(key), func(raw []byte) error {
		if reflect.ValueOf(value).Kind() == reflect.Ptr {
			value = reflect.New(reflect.TypeOf(value).Elem()).Interface().(V)
		}
		if len(raw) == 0 {
			return nil
		}
		return rlp.DecodeBytes(raw, &value)
	})
	return
}

// Set stores the record for key.
func (m *Mapping[K, V]) Set(key K, value V) error {
	return m.context.state.EncodeStorage(m.context.address, m.position(key), func() ([]byte, error) {
		return rlp.EncodeToBytes(value)
	})
}

// Has returns whether a record exists for key.
func (m *Mapping[K, V]) Has(key K) (bool, error) {
	return m.context.state.Exists(m.context.address, m.position(key))
}

// Delete removes the record for key.
func (m *Mapping[K, V]) Delete(key K) {
	m.context.state.Delete(m.context.address, m.position(key))
}

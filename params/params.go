// Copyright (c) 2026 The StakeVault developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package params

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/stakevault/core/log"
	"github.com/stakevault/core/slot"
	"github.com/stakevault/core/state"
	"github.com/stakevault/core/vault"
	"github.com/stakevault/core/xenv"
)

var (
	logger       = log.WithContext("pkg", "params")
	slotExecutor = slot.NameToSlot("executor")
)

// Params is the ledger of admin-tunable numeric parameters shared by all
// components. Writes are restricted to the configured executor (the
// governance component) once one is set; before that the deployer seeds
// values freely.
type Params struct {
	addr     vault.Address
	state    *state.State
	executor *slot.Address
}

// New create a new instance.
func New(addr vault.Address, st *state.State) *Params {
	ctx := slot.NewContext(addr, st)
	return &Params{
		addr:     addr,
		state:    st,
		executor: slot.NewAddress(ctx, slotExecutor),
	}
}

// Get returns the value for key, 0 when unset.
func (p *Params) Get(key vault.Bytes32) (*big.Int, error) {
	storage, err := p.state.GetStorage(p.addr, key)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(storage.Bytes()), nil
}

// GetUint64 returns the value for key narrowed to uint64.
func (p *Params) GetUint64(key vault.Bytes32) (uint64, error) {
	v, err := p.Get(key)
	if err != nil {
		return 0, err
	}
	return v.Uint64(), nil
}

// Set sets the value for key. Only the executor may write once one is bound.
func (p *Params) Set(env *xenv.Environment, key vault.Bytes32, value *big.Int) error {
	executor, err := p.executor.Get()
	if err != nil {
		return err
	}
	if !executor.IsZero() && env.Caller() != executor {
		return errors.New("params: caller is not the executor")
	}
	p.state.SetStorage(p.addr, key, vault.BytesToBytes32(value.Bytes()))

	logger.Info("param set", "key", key.AbbrevString(), "value", value)
	env.Emit("params", "set", map[string]string{
		"key":   key.String(),
		"value": value.String(),
	})
	return nil
}

// Seed writes a value without gating. For genesis initialization only.
func (p *Params) Seed(key vault.Bytes32, value *big.Int) {
	p.state.SetStorage(p.addr, key, vault.BytesToBytes32(value.Bytes()))
}

// BindExecutor binds the executor address. It can only be done once.
func (p *Params) BindExecutor(executor vault.Address) error {
	cur, err := p.executor.Get()
	if err != nil {
		return err
	}
	if !cur.IsZero() {
		return errors.New("params: executor already bound")
	}
	p.executor.Set(executor)
	return nil
}

// Executor returns the bound executor address, zero when unbound.
func (p *Params) Executor() (vault.Address, error) {
	return p.executor.Get()
}

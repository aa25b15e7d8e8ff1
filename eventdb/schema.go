// Copyright (c) 2026 The StakeVault developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package eventdb

const eventTableSchema = `
create table if not exists event (
	seq integer primary key autoincrement,
	component text,
	action text,
	actor blob(20),
	time integer,
	attrs text
);

CREATE INDEX if not exists eventComponentIndex on event(component, action);
CREATE INDEX if not exists eventActorIndex on event(actor);
CREATE INDEX if not exists eventTimeIndex on event(time);
`

const transferTableSchema = `
create table if not exists transfer (
	seq integer primary key autoincrement,
	actor blob(20),
	recipient blob(20),
	amount blob,
	time integer
);

CREATE INDEX if not exists transferActorIndex on transfer(actor);
CREATE INDEX if not exists transferRecipientIndex on transfer(recipient);
CREATE INDEX if not exists transferTimeIndex on transfer(time);
`

package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pointsTable() *table[int64, uint32] {
	return newTable(func(cs *Changeset, k int64, v uint32, _ bool) {
		cs.ChatPoints = append(cs.ChatPoints, ChatPointsEntry{Chat: k, Points: v})
	})
}

func TestRollbackToForgetsLaterKeys(t *testing.T) {
	tbl := pointsTable()
	tbl.load(1, 10)

	tx := newTxn()
	tbl.set(tx, 1, 11)
	sp := tx.savepoint()
	tbl.set(tx, 2, 20)
	tx.rollbackTo(sp)

	_, ok := tbl.get(2)
	assert.False(t, ok)

	// written again after the partial rollback: still journaled
	tbl.set(tx, 2, 21)
	tx.rollback()

	v, ok := tbl.get(1)
	require.True(t, ok)
	assert.Equal(t, uint32(10), v)
	_, ok = tbl.get(2)
	assert.False(t, ok, "write after savepoint rollback survived a full rollback")
}

func TestRollbackToTrimsFlush(t *testing.T) {
	tbl := pointsTable()

	tx := newTxn()
	tbl.set(tx, 1, 1)
	sp := tx.savepoint()
	tbl.set(tx, 2, 2)
	tx.rollbackTo(sp)
	assert.Equal(t, []ChatPointsEntry{{Chat: 1, Points: 1}}, tx.changeset().ChatPoints)

	tbl.set(tx, 2, 3)
	tbl.set(tx, 2, 4)
	assert.Equal(t, []ChatPointsEntry{{Chat: 1, Points: 1}, {Chat: 2, Points: 4}}, tx.changeset().ChatPoints)
}

package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/canopy-network/questview/pkg/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestReader(t *testing.T, c Contract, attempts int) *Reader {
	t.Helper()
	pool := pond.NewPool(4)
	t.Cleanup(pool.StopAndWait)
	return NewReader(c, pool, zaptest.NewLogger(t), ReaderOpts{
		Timeout: time.Second,
		Retry:   retry.Config{MaxRetries: attempts, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1},
	})
}

func quest(id uint64, title string) Quest {
	return Quest{ID: QuestID(id), Title: title, RewardAmount: 10, RewardsAvailable: 5}
}

func TestReadCatalog_Empty(t *testing.T) {
	c := &mockContract{}
	c.On("NextQuestID", mock.Anything).Return(uint64(0), nil)

	quests, err := newTestReader(t, c, 1).ReadCatalog(context.Background())

	require.NoError(t, err)
	assert.NotNil(t, quests)
	assert.Empty(t, quests)
	c.AssertNotCalled(t, "Quest", mock.Anything, mock.Anything)
}

func TestReadCatalog_IndexOrder(t *testing.T) {
	c := &mockContract{}
	c.On("NextQuestID", mock.Anything).Return(uint64(3), nil)
	c.On("Quest", mock.Anything, uint64(0)).Return(quest(0, "Intro"), nil)
	c.On("Quest", mock.Anything, uint64(1)).Return(quest(1, "Solidity"), nil)
	c.On("Quest", mock.Anything, uint64(2)).Return(quest(2, "Go"), nil)

	quests, err := newTestReader(t, c, 1).ReadCatalog(context.Background())

	require.NoError(t, err)
	require.Len(t, quests, 3)
	for i, q := range quests {
		assert.Equal(t, QuestID(i), q.ID)
	}
	assert.Equal(t, "Solidity", quests[1].Title)
}

func TestReadCatalog_OneIndexFailsWholeRead(t *testing.T) {
	c := &mockContract{}
	boom := errors.New("connection reset")
	c.On("NextQuestID", mock.Anything).Return(uint64(3), nil)
	c.On("Quest", mock.Anything, uint64(0)).Return(quest(0, "Intro"), nil).Maybe()
	c.On("Quest", mock.Anything, uint64(1)).Return(Quest{}, boom)
	c.On("Quest", mock.Anything, uint64(2)).Return(quest(2, "Go"), nil).Maybe()

	quests, err := newTestReader(t, c, 1).ReadCatalog(context.Background())

	assert.Nil(t, quests)
	var cre *CatalogReadError
	require.ErrorAs(t, err, &cre)
	assert.Equal(t, int64(1), cre.Index)
	assert.ErrorIs(t, err, boom)
}

func TestReadCatalog_CountFailure(t *testing.T) {
	c := &mockContract{}
	c.On("NextQuestID", mock.Anything).Return(uint64(0), errors.New("timeout"))

	_, err := newTestReader(t, c, 2).ReadCatalog(context.Background())

	var cre *CatalogReadError
	require.ErrorAs(t, err, &cre)
	assert.Equal(t, int64(-1), cre.Index)
	c.AssertNumberOfCalls(t, "NextQuestID", 2)
}

func TestReadCatalog_RetriesTransientIndexFailure(t *testing.T) {
	c := &mockContract{}
	c.On("NextQuestID", mock.Anything).Return(uint64(1), nil)
	c.On("Quest", mock.Anything, uint64(0)).Return(Quest{}, errors.New("503")).Once()
	c.On("Quest", mock.Anything, uint64(0)).Return(quest(0, "Intro"), nil)

	quests, err := newTestReader(t, c, 3).ReadCatalog(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []Quest{quest(0, "Intro")}, quests)
	c.AssertNumberOfCalls(t, "Quest", 2)
}

func TestReadCatalog_IDMismatchIsNotRetried(t *testing.T) {
	c := &mockContract{}
	c.On("NextQuestID", mock.Anything).Return(uint64(1), nil)
	c.On("Quest", mock.Anything, uint64(0)).Return(quest(5, "Ghost"), nil)

	_, err := newTestReader(t, c, 3).ReadCatalog(context.Background())

	var iv *InvariantViolation
	require.ErrorAs(t, err, &iv)
	c.AssertNumberOfCalls(t, "Quest", 1)
}

func TestReadAdmin(t *testing.T) {
	c := &mockContract{}
	c.On("Admin", mock.Anything).Return(adminAddr, nil)

	admin, err := newTestReader(t, c, 1).ReadAdmin(context.Background())

	require.NoError(t, err)
	assert.Equal(t, adminAddr, admin)
}

func TestReadStatus(t *testing.T) {
	c := &mockContract{}
	c.On("PlayerQuestStatus", mock.Anything, playerAddr, QuestID(0)).Return(uint8(2), nil)
	c.On("PlayerQuestStatus", mock.Anything, playerAddr, QuestID(1)).Return(uint8(3), nil)
	r := newTestReader(t, c, 3)

	s, err := r.ReadStatus(context.Background(), playerAddr, 0)
	require.NoError(t, err)
	assert.Equal(t, Submitted, s)

	_, err = r.ReadStatus(context.Background(), playerAddr, 1)
	var iv *InvariantViolation
	require.ErrorAs(t, err, &iv)
	c.AssertNumberOfCalls(t, "PlayerQuestStatus", 2)
}

func TestReadCatalog_StoppedPoolFailsWholeRead(t *testing.T) {
	c := &mockContract{}
	c.On("NextQuestID", mock.Anything).Return(uint64(3), nil)
	c.On("Quest", mock.Anything, mock.Anything).Return(quest(0, "Intro"), nil).Maybe()

	pool := pond.NewPool(2)
	pool.StopAndWait()
	r := NewReader(c, pool, zaptest.NewLogger(t), ReaderOpts{Timeout: time.Second})

	quests, err := r.ReadCatalog(context.Background())

	assert.Nil(t, quests)
	var cre *CatalogReadError
	require.ErrorAs(t, err, &cre)
	assert.GreaterOrEqual(t, cre.Index, int64(0))
}

func TestReadCatalog_PanickingReadFailsWholeRead(t *testing.T) {
	c := &mockContract{}
	c.On("NextQuestID", mock.Anything).Return(uint64(3), nil)
	c.On("Quest", mock.Anything, uint64(0)).Return(quest(0, "Intro"), nil).Maybe()
	c.On("Quest", mock.Anything, uint64(1)).Panic("decoder blew up")
	c.On("Quest", mock.Anything, uint64(2)).Return(quest(2, "Go"), nil).Maybe()

	quests, err := newTestReader(t, c, 1).ReadCatalog(context.Background())

	assert.Nil(t, quests)
	var cre *CatalogReadError
	assert.ErrorAs(t, err, &cre)
}

func TestReadCatalog_RejectsImplausibleCount(t *testing.T) {
	c := &mockContract{}
	c.On("NextQuestID", mock.Anything).Return(uint64(1)<<62, nil)

	quests, err := newTestReader(t, c, 1).ReadCatalog(context.Background())

	assert.Nil(t, quests)
	var cre *CatalogReadError
	require.ErrorAs(t, err, &cre)
	assert.Equal(t, int64(-1), cre.Index)
	var iv *InvariantViolation
	assert.ErrorAs(t, err, &iv)
	c.AssertNotCalled(t, "Quest", mock.Anything, mock.Anything)
}

func TestReadCatalog_MaxQuestsOption(t *testing.T) {
	c := &mockContract{}
	c.On("NextQuestID", mock.Anything).Return(uint64(3), nil)

	pool := pond.NewPool(2)
	t.Cleanup(pool.StopAndWait)
	r := NewReader(c, pool, zaptest.NewLogger(t), ReaderOpts{Timeout: time.Second, MaxQuests: 2})

	_, err := r.ReadCatalog(context.Background())

	var iv *InvariantViolation
	assert.ErrorAs(t, err, &iv)
}

package ledger

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// QuestID is the identifier the contract assigns to a quest. Valid ids are [0, nextQuestId).
type QuestID uint64

func (id QuestID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// ParseQuestID parses user input into a QuestID. Only plain base-10 non-negative integers are
// accepted; surrounding whitespace is ignored.
func ParseQuestID(raw string) (QuestID, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, fmt.Errorf("quest id is empty")
	}
	if s[0] == '+' || s[0] == '-' {
		return 0, fmt.Errorf("quest id %q is not a non-negative integer", raw)
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("quest id %q is not a non-negative integer", raw)
	}
	return QuestID(n), nil
}

// Quest mirrors one entry of the contract's quests mapping. The client never mutates it.
type Quest struct {
	ID               QuestID `json:"id"`
	ParticipantCount uint64  `json:"participantCount"`
	Title            string  `json:"title"`
	RewardAmount     uint64  `json:"rewardAmount"`
	RewardsAvailable uint64  `json:"rewardsAvailable"`
}

// Receipt is what a finalized write reports back to its caller.
type Receipt struct {
	Method      Method         `json:"method"`
	QuestID     QuestID        `json:"questId"`
	Account     common.Address `json:"account"`
	TxHash      common.Hash    `json:"txHash"`
	BlockNumber uint64         `json:"blockNumber"`
	GasUsed     uint64         `json:"gasUsed"`
}

package ledger

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Method names a state-changing contract method.
type Method string

const (
	MethodJoin   Method = "joinQuest"
	MethodSubmit Method = "submitQuest"
)

// questBoardABI is the subset of the quest board contract this client calls.
const questBoardABI = `[
  {"type":"function","name":"admin","stateMutability":"view","inputs":[],
   "outputs":[{"name":"","type":"address"}]},
  {"type":"function","name":"nextQuestId","stateMutability":"view","inputs":[],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"quests","stateMutability":"view",
   "inputs":[{"name":"","type":"uint256"}],
   "outputs":[
     {"name":"questId","type":"uint256"},
     {"name":"numberOfPlayers","type":"uint256"},
     {"name":"title","type":"string"},
     {"name":"reward","type":"uint8"},
     {"name":"numberOfRewards","type":"uint256"}]},
  {"type":"function","name":"playerQuestStatuses","stateMutability":"view",
   "inputs":[{"name":"","type":"address"},{"name":"","type":"uint256"}],
   "outputs":[{"name":"","type":"uint8"}]},
  {"type":"function","name":"joinQuest","stateMutability":"nonpayable",
   "inputs":[{"name":"questId","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"submitQuest","stateMutability":"nonpayable",
   "inputs":[{"name":"questId","type":"uint256"}],"outputs":[]}
]`

// QuestBoardABI is the parsed contract interface.
var QuestBoardABI = mustParseABI(questBoardABI)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}

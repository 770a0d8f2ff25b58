package game

import "fmt"

// ActionKind enumerates player and host actions exchanged between peers.
type ActionKind uint8

const (
	ActionTowerPlace ActionKind = iota + 1
	ActionTowerPlaceRequest
	ActionTowerSell
	ActionTowerUpgrade
	ActionSpeedChange
	ActionWaveStartRequest
	ActionGameOver
)

var actionNames = map[ActionKind]string{
	ActionTowerPlace:        "tower-place",
	ActionTowerPlaceRequest: "tower-place-request",
	ActionTowerSell:         "tower-sell",
	ActionTowerUpgrade:      "tower-upgrade",
	ActionSpeedChange:       "speed-change",
	ActionWaveStartRequest:  "wave-start-request",
	ActionGameOver:          "game-over",
}

func (k ActionKind) String() string {
	if name, ok := actionNames[k]; ok {
		return name
	}
	return fmt.Sprintf("action(%d)", uint8(k))
}

// Valid reports whether k is a known action kind.
func (k ActionKind) Valid() bool {
	_, ok := actionNames[k]
	return ok
}

// ActionID is unique across both peers: the low bit carries the originator.
type ActionID uint64

// Action is one discrete gameplay command.
type Action struct {
	ID     ActionID   `msgpack:"id"`
	Kind   ActionKind `msgpack:"kind"`
	Owner  Owner      `msgpack:"owner"`
	Tower  TowerKind  `msgpack:"tower"`
	Target uint64     `msgpack:"target"` // tower id for sell/upgrade
	X      float64    `msgpack:"x"`
	Y      float64    `msgpack:"y"`
	Speed  int        `msgpack:"speed"`
	Reason string     `msgpack:"reason"`
}

// ActionIDs allocates ids for one originator.
type ActionIDs struct {
	owner Owner
	next  uint64
}

func NewActionIDs(owner Owner) *ActionIDs { return &ActionIDs{owner: owner} }

// Next returns a fresh id.
func (a *ActionIDs) Next() ActionID {
	a.next++
	return ActionID(a.next<<1 | uint64(a.owner))
}

// ActionLedger remembers which action ids were already applied so an
// optimistic local action is not applied again when its echo arrives.
type ActionLedger struct {
	seen  map[ActionID]struct{}
	order []ActionID
	limit int
}

// NewActionLedger keeps at most limit ids, forgetting the oldest first.
func NewActionLedger(limit int) *ActionLedger {
	if limit <= 0 {
		limit = 4096
	}
	return &ActionLedger{seen: make(map[ActionID]struct{}, limit), limit: limit}
}

// Record marks id as applied. It returns false if id was already recorded.
func (l *ActionLedger) Record(id ActionID) bool {
	if _, dup := l.seen[id]; dup {
		return false
	}
	l.seen[id] = struct{}{}
	l.order = append(l.order, id)
	if len(l.order) > l.limit {
		oldest := l.order[0]
		l.order = l.order[1:]
		delete(l.seen, oldest)
	}
	return true
}

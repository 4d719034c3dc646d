package reducer

import (
	"time"

	"github.com/mcdev12/auctiondraft/go/internal/models"
)

// pushUndo returns a new stack with pre on top, evicting the oldest entries
// beyond depth. The stored entry carries no stack and no host liveness fields.
func pushUndo(stack []models.Snapshot, pre models.Snapshot, depth int) []models.Snapshot {
	if depth <= 0 {
		return nil
	}
	pre.Engine.UndoStack = nil
	entry := pre.Clone()
	entry.Engine.HostID = ""
	entry.Engine.HeartbeatAt = time.Time{}

	start := 0
	if len(stack)+1 > depth {
		start = len(stack) + 1 - depth
	}
	out := make([]models.Snapshot, 0, len(stack)-start+1)
	out = append(out, stack[start:]...)
	return append(out, entry)
}

// undoLast restores the snapshot on top of the stack. The cursor and host
// fields stay those of the current snapshot, stamped with the undo action.
func undoLast(cfg models.LeagueConfig, s models.Snapshot, a models.Action) (models.Snapshot, Outcome) {
	stack := s.Engine.UndoStack
	if len(stack) == 0 {
		return reject(s, a, ErrUndoEmpty)
	}

	prev := stack[len(stack)-1].Clone()
	prev.Engine.UndoStack = stack[:len(stack)-1:len(stack)-1]
	if len(prev.Engine.UndoStack) == 0 {
		prev.Engine.UndoStack = nil
	}
	prev.Engine.HostID = s.Engine.HostID
	prev.Engine.HeartbeatAt = s.Engine.HeartbeatAt

	if err := CheckInvariants(cfg, prev); err != nil {
		return reject(s, a, err)
	}
	stamp(&prev, a)
	return prev, Outcome{Applied: true}
}

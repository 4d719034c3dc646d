// Package reducer folds draft actions into snapshots. Everything here is pure:
// no clocks, no I/O, no randomness that is not derived from the action.
package reducer

import (
	"errors"
	"fmt"
	"slices"

	"github.com/mcdev12/auctiondraft/go/internal/models"
)

// Rejection reasons reported in Outcome.Err. A rejected action leaves the
// snapshot unchanged apart from the cursor stamp.
var (
	ErrStale           = errors.New("action at or before cursor")
	ErrUnknownAction   = errors.New("unknown action type")
	ErrMalformed       = errors.New("malformed payload")
	ErrWrongPhase      = errors.New("action not allowed in current phase")
	ErrTooFewTeams     = errors.New("at least two teams are required")
	ErrNotNominator    = errors.New("team is not the current nominator")
	ErrPlayerTaken     = errors.New("player already rostered")
	ErrSlotPending     = errors.New("sale is waiting for a slot choice")
	ErrNoPendingSlot   = errors.New("no sale is waiting for a slot choice")
	ErrInvalidSlot     = errors.New("slot is not an option for this sale")
	ErrNoAuction       = errors.New("no active auction")
	ErrNoBidder        = errors.New("auction has no bidder")
	ErrTooEarly        = errors.New("auction clock has not expired")
	ErrNotCommissioner = errors.New("only the commissioner may do this")
	ErrAuctionHasBids  = errors.New("auction already has bids")
	ErrUndoEmpty       = errors.New("nothing to undo")
	ErrInvariant       = errors.New("transition violates draft invariants")
)

// Outcome describes what Apply did with one action.
type Outcome struct {
	// Applied is true when the action produced a state change.
	Applied bool
	// Err is the rejection reason when Applied is false.
	Err error
}

// Ignored reports whether the action was at or before the cursor and left
// the snapshot untouched, stamp included.
func (o Outcome) Ignored() bool {
	return errors.Is(o.Err, ErrStale)
}

type transition func(cfg models.LeagueConfig, s *models.Snapshot, a models.Action) (string, error)

var transitions = map[models.ActionType]transition{
	models.ActionStartDraft:    startDraft,
	models.ActionNominate:      nominate,
	models.ActionBid:           bid,
	models.ActionResolveSale:   resolveSale,
	models.ActionSettle:        settle,
	models.ActionAssignSlot:    assignSlot,
	models.ActionPauseDraft:    pauseDraft,
	models.ActionResumeDraft:   resumeDraft,
	models.ActionForceNominate: forceNominate,
	models.ActionSetStylePack:  setStylePack,
	models.ActionAdvanceCall:   advanceCall,
}

// Reduce applies a to s and returns the resulting snapshot.
func Reduce(cfg models.LeagueConfig, s models.Snapshot, a models.Action) models.Snapshot {
	next, _ := Apply(cfg, s, a)
	return next
}

// Apply is Reduce with the outcome exposed. s is never modified.
//
// Actions at or before the snapshot cursor are ignored entirely. Every other
// action stamps the cursor whether or not it changes state. A transition
// whose result fails CheckInvariants is discarded.
func Apply(cfg models.LeagueConfig, s models.Snapshot, a models.Action) (models.Snapshot, Outcome) {
	if !a.Cursor().After(s.Cursor()) {
		return s, Outcome{Err: ErrStale}
	}
	cfg = cfg.WithDefaults()

	if a.Type == models.ActionUndoLast {
		return undoLast(cfg, s, a)
	}

	fn, ok := transitions[a.Type]
	if !ok {
		return reject(s, a, fmt.Errorf("%w: %q", ErrUnknownAction, a.Type))
	}

	next := working(s)
	msg, err := fn(cfg, &next, a)
	if err != nil {
		return reject(s, a, err)
	}
	if err := CheckInvariants(cfg, next); err != nil {
		return reject(s, a, fmt.Errorf("%w: %w", ErrInvariant, err))
	}

	next.Engine.UndoStack = pushUndo(s.Engine.UndoStack, s, cfg.UndoDepth)
	stamp(&next, a)
	next.AppendLog(models.LogEntry{At: a.CreatedAt, ActionID: a.ActionID, Type: a.Type, Message: msg})
	return next, Outcome{Applied: true}
}

// Replay sorts actions by (createdAt, actionId) and folds them over initial.
func Replay(cfg models.LeagueConfig, initial models.Snapshot, actions []models.Action) models.Snapshot {
	ordered := slices.Clone(actions)
	models.SortActions(ordered)

	s := initial
	for _, a := range ordered {
		s = Reduce(cfg, s, a)
	}
	return s
}

// working is a mutable deep copy of s without its undo stack. Stack entries
// are never modified after being pushed so the caller re-attaches them.
func working(s models.Snapshot) models.Snapshot {
	s.Engine.UndoStack = nil
	return s.Clone()
}

func reject(s models.Snapshot, a models.Action, err error) (models.Snapshot, Outcome) {
	stamp(&s, a)
	return s, Outcome{Err: err}
}

func stamp(s *models.Snapshot, a models.Action) {
	s.Engine.LastActionID = a.ActionID
	s.Engine.LastActionAt = a.CreatedAt
}

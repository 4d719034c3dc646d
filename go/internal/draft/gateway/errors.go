package gateway

import (
	"errors"
	"net/http"

	"github.com/mcdev12/auctiondraft/go/internal/draft/resolver"
)

var ErrUnknownDraft = errors.New("unknown draft")

// RequestError is a client error carrying the HTTP status and the stable
// reason code returned in the body.
type RequestError struct {
	Status int
	Rejection
}

func (e *RequestError) Error() string {
	return e.Reason + ": " + e.Message
}

func reject(status int, reason, message string) error {
	return &RequestError{Status: status, Rejection: Rejection{Reason: reason, Message: message}}
}

// BidRejectionReason maps a resolver error to its reason code.
func BidRejectionReason(err error) string {
	switch {
	case errors.Is(err, resolver.ErrInsufficientBudget):
		return "insufficient_budget"
	case errors.Is(err, resolver.ErrNoEligibleSlot):
		return "no_eligible_slot"
	case errors.Is(err, resolver.ErrBidTooLow):
		return "bid_too_low"
	case errors.Is(err, resolver.ErrExceedsMaxBid):
		return "exceeds_max_bid"
	case errors.Is(err, resolver.ErrNotBidding):
		return "not_bidding"
	case errors.Is(err, resolver.ErrAuctionClosed):
		return "auction_closed"
	case errors.Is(err, resolver.ErrUnknownTeam):
		return "unknown_team"
	default:
		return "rejected"
	}
}

func statusOf(err error) (int, Rejection) {
	var reqErr *RequestError
	switch {
	case errors.As(err, &reqErr):
		return reqErr.Status, reqErr.Rejection
	case errors.Is(err, ErrUnknownDraft):
		return http.StatusNotFound, Rejection{Reason: "unknown_draft", Message: err.Error()}
	default:
		return http.StatusInternalServerError, Rejection{Reason: "internal", Message: "internal error"}
	}
}

func rejectionOf(err error) *Rejection {
	_, r := statusOf(err)
	return &r
}

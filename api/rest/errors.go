package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ventwave/ventboard/vent/account"
	"github.com/ventwave/ventboard/vent/cosmetics"
	"github.com/ventwave/ventboard/vent/identity"
	"github.com/ventwave/ventboard/vent/ledger"
	"github.com/ventwave/ventboard/vent/rant"
	"github.com/ventwave/ventboard/vent/reaction"
)

// errStatus maps domain errors to HTTP statuses. Their messages are short and
// safe to show to clients; anything unlisted is a 500.
var errStatus = []struct {
	err    error
	status int
}{
	// validation
	{rant.ErrTooShort, http.StatusBadRequest},
	{rant.ErrTooLong, http.StatusBadRequest},
	{rant.ErrReplyRequired, http.StatusBadRequest},
	{rant.ErrReplyTooLong, http.StatusBadRequest},
	{rant.ErrRejected, http.StatusBadRequest},
	{reaction.ErrInvalidKind, http.StatusBadRequest},
	{identity.ErrMissingIdentity, http.StatusBadRequest},
	{identity.ErrGuestIDTooLong, http.StatusBadRequest},
	{account.ErrMissingFields, http.StatusBadRequest},
	{account.ErrUsernameLength, http.StatusBadRequest},
	{account.ErrInvalidEmail, http.StatusBadRequest},
	{account.ErrPasswordTooShort, http.StatusBadRequest},
	{account.ErrPasswordTooLong, http.StatusBadRequest},
	{cosmetics.ErrKeyRequired, http.StatusBadRequest},
	{cosmetics.ErrInvalidSlot, http.StatusBadRequest},
	{ledger.ErrNegative, http.StatusBadRequest},

	// store rules answer 400 like the rest of the store
	{cosmetics.ErrAlreadyOwned, http.StatusBadRequest},
	{cosmetics.ErrNotEnoughVE, http.StatusBadRequest},
	{cosmetics.ErrNotOwned, http.StatusBadRequest},
	{cosmetics.ErrWrongType, http.StatusBadRequest},

	// auth
	{account.ErrInvalidCredentials, http.StatusUnauthorized},
	{account.ErrBanned, http.StatusForbidden},
	{account.ErrGoogleDisabled, http.StatusNotFound},

	// not found
	{rant.ErrNotFound, http.StatusNotFound},
	{rant.ErrParentNotFound, http.StatusNotFound},
	{reaction.ErrRantNotFound, http.StatusNotFound},
	{cosmetics.ErrItemNotFound, http.StatusNotFound},
	{cosmetics.ErrUserNotFound, http.StatusNotFound},
	{account.ErrUserNotFound, http.StatusNotFound},
	{ledger.ErrUserNotFound, http.StatusNotFound},

	// conflicts, retryable
	{account.ErrEmailTaken, http.StatusConflict},
	{reaction.ErrReactionConflict, http.StatusConflict},
	{rant.ErrContention, http.StatusConflict},
	{ledger.ErrContention, http.StatusConflict},
}

// statusOf returns the HTTP status for err and whether err is a known
// domain error.
func statusOf(err error) (int, bool) {
	for _, e := range errStatus {
		if errors.Is(err, e.err) {
			return e.status, true
		}
	}
	return http.StatusInternalServerError, false
}

// respondError writes {"error": msg}. Unknown errors are attached to the gin
// context for the request logger and hidden behind a generic message.
func respondError(c *gin.Context, err error) {
	status, known := statusOf(err)
	if !known {
		_ = c.Error(err)
		c.JSON(status, gin.H{"error": "Server error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// badRequest answers a malformed request body.
func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

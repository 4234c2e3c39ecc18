package httpapi

import (
	"errors"

	apperrors "github.com/louisbranch/rebazzar/internal/platform/errors"
	"github.com/louisbranch/rebazzar/internal/services/assistant"
	authdomain "github.com/louisbranch/rebazzar/internal/services/auth/domain"
	"github.com/louisbranch/rebazzar/internal/services/auth/token"
	chatdomain "github.com/louisbranch/rebazzar/internal/services/chat/domain"
	listingdomain "github.com/louisbranch/rebazzar/internal/services/listing/domain"
	notificationsdomain "github.com/louisbranch/rebazzar/internal/services/notifications/domain"
)

type errorKind struct {
	err  error
	kind apperrors.Kind
}

// errorKinds maps domain sentinels to transport kinds. First match wins.
var errorKinds = []errorKind{
	{authdomain.ErrStoreNotConfigured, apperrors.KindUnavailable},
	{listingdomain.ErrStoreNotConfigured, apperrors.KindUnavailable},
	{chatdomain.ErrStoreNotConfigured, apperrors.KindUnavailable},
	{notificationsdomain.ErrStoreNotConfigured, apperrors.KindUnavailable},

	{authdomain.ErrInvalidCredentials, apperrors.KindUnauthorized},
	{authdomain.ErrUnauthenticated, apperrors.KindUnauthorized},
	{token.ErrInvalid, apperrors.KindUnauthorized},
	{token.ErrExpired, apperrors.KindUnauthorized},

	{listingdomain.ErrForbidden, apperrors.KindForbidden},
	{listingdomain.ErrOwnListing, apperrors.KindForbidden},

	{authdomain.ErrNotFound, apperrors.KindNotFound},
	{authdomain.ErrSessionNotFound, apperrors.KindNotFound},
	{listingdomain.ErrNotFound, apperrors.KindNotFound},
	{listingdomain.ErrSellerNotFound, apperrors.KindNotFound},
	{chatdomain.ErrNotFound, apperrors.KindNotFound},
	{notificationsdomain.ErrNotFound, apperrors.KindNotFound},

	{authdomain.ErrEmailTaken, apperrors.KindConflict},
	{listingdomain.ErrNotActive, apperrors.KindConflict},
	{notificationsdomain.ErrConflict, apperrors.KindConflict},

	{authdomain.ErrUserIDRequired, apperrors.KindInvalidInput},
	{authdomain.ErrNameRequired, apperrors.KindInvalidInput},
	{authdomain.ErrNameTooLong, apperrors.KindInvalidInput},
	{authdomain.ErrEmailRequired, apperrors.KindInvalidInput},
	{authdomain.ErrEmailInvalid, apperrors.KindInvalidInput},
	{authdomain.ErrPasswordTooShort, apperrors.KindInvalidInput},
	{authdomain.ErrPasswordTooLong, apperrors.KindInvalidInput},
	{listingdomain.ErrListingIDRequired, apperrors.KindInvalidInput},
	{listingdomain.ErrActorRequired, apperrors.KindInvalidInput},
	{listingdomain.ErrTitleRequired, apperrors.KindInvalidInput},
	{listingdomain.ErrTitleTooLong, apperrors.KindInvalidInput},
	{listingdomain.ErrDescriptionTooLong, apperrors.KindInvalidInput},
	{listingdomain.ErrCategoryRequired, apperrors.KindInvalidInput},
	{listingdomain.ErrFieldTooLong, apperrors.KindInvalidInput},
	{listingdomain.ErrPriceInvalid, apperrors.KindInvalidInput},
	{listingdomain.ErrStatusInvalid, apperrors.KindInvalidInput},
	{listingdomain.ErrInvalidQuery, apperrors.KindInvalidInput},
	{listingdomain.ErrNotBiddable, apperrors.KindInvalidInput},
	{listingdomain.ErrBidTooLow, apperrors.KindInvalidInput},
	{listingdomain.ErrBidAmountInvalid, apperrors.KindInvalidInput},
	{chatdomain.ErrUserIDRequired, apperrors.KindInvalidInput},
	{chatdomain.ErrParticipantRequired, apperrors.KindInvalidInput},
	{chatdomain.ErrSelfConversation, apperrors.KindInvalidInput},
	{chatdomain.ErrConversationIDRequired, apperrors.KindInvalidInput},
	{chatdomain.ErrContentRequired, apperrors.KindInvalidInput},
	{chatdomain.ErrContentTooLong, apperrors.KindInvalidInput},
	{notificationsdomain.ErrRecipientUserIDRequired, apperrors.KindInvalidInput},
	{notificationsdomain.ErrTypeInvalid, apperrors.KindInvalidInput},
	{notificationsdomain.ErrTitleRequired, apperrors.KindInvalidInput},
	{notificationsdomain.ErrNotificationIDRequired, apperrors.KindInvalidInput},
	{notificationsdomain.ErrInvalidPageToken, apperrors.KindInvalidInput},
	{assistant.ErrEmptyInput, apperrors.KindInvalidInput},
}

// toAppError classifies err for the HTTP layer. Already typed errors pass
// through unchanged.
func toAppError(err error) error {
	if err == nil {
		return nil
	}
	if apperrors.KindOf(err) != apperrors.KindUnknown {
		return err
	}
	for _, entry := range errorKinds {
		if errors.Is(err, entry.err) {
			return apperrors.Wrap(entry.kind, err)
		}
	}
	return err
}

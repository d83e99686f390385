package settlement

import (
	"context"

	"github.com/google/uuid"
)

// ApplicationGateway is the capability the settlement core needs from the
// service application lifecycle it does not own. Both calls only see an
// application owned by customerID; any other application is not found.
type ApplicationGateway interface {
	// IsReadyForCollection reports whether payments may be accepted for the application
	IsReadyForCollection(ctx context.Context, customerID, applicationID uuid.UUID) (bool, error)

	// AdvanceAfterSettlement moves the application to its next lifecycle status
	// once every collectable receivable of the customer is paid.
	AdvanceAfterSettlement(ctx context.Context, customerID, applicationID uuid.UUID) error
}

package contract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/01moynul/basegigs-golang/internal/apperr"
	"github.com/01moynul/basegigs-golang/internal/models"
	"github.com/01moynul/basegigs-golang/internal/store"
)

// Notifier tells a user something happened. Failures are logged, never
// returned to the caller whose transition already succeeded.
type Notifier interface {
	Notify(ctx context.Context, userID int64, message, link string) error
}

// maxAttempts bounds the re-fetch loop when a concurrent write wins.
const maxAttempts = 2

// Engine persists lifecycle transitions with optimistic concurrency.
type Engine struct {
	contracts    store.Contracts
	applications store.Applications
	notifier     Notifier
	logger       *slog.Logger
	now          func() time.Time
}

func NewEngine(contracts store.Contracts, applications store.Applications, notifier Notifier, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		contracts:    contracts,
		applications: applications,
		notifier:     notifier,
		logger:       logger,
		now:          time.Now,
	}
}

// WithClock replaces the time source.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// GetOrCreate returns the contract for an accepted application, creating
// version 1 on first access. callerID must be the application's client or
// applicant.
func (e *Engine) GetOrCreate(ctx context.Context, applicationID, callerID int64) (*models.Contract, error) {
	// 1. --- Resolve the application and authorize ---
	app, err := e.applications.GetApplication(ctx, applicationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("Application %d does not exist", applicationID)
		}
		return nil, apperr.Storage(err, "load application")
	}
	if !app.HasParty(callerID) {
		return nil, apperr.Unauthorized("You are not a party to this application")
	}
	if app.Status != models.ApplicationAccepted {
		return nil, apperr.Validation("A contract is only available once the application is accepted")
	}

	// 2. --- Fetch existing ---
	c, err := e.contracts.GetContractByApplication(ctx, applicationID)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, apperr.Storage(err, "load contract")
	}

	// 3. --- Create; a concurrent first visit may beat us to it ---
	c = New(app, e.now())
	if err := e.contracts.CreateContract(ctx, c); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			existing, getErr := e.contracts.GetContractByApplication(ctx, applicationID)
			if getErr != nil {
				return nil, apperr.Storage(getErr, "load contract")
			}
			return existing, nil
		}
		return nil, apperr.Storage(err, "create contract")
	}

	e.logger.Info("contract created",
		"contract_id", c.ID, "application_id", applicationID, "client_id", c.ClientID, "seeker_id", c.SeekerID)
	return c, nil
}

// Get returns a contract visible to callerID.
func (e *Engine) Get(ctx context.Context, contractID, callerID int64) (*models.Contract, error) {
	c, err := e.load(ctx, contractID)
	if err != nil {
		return nil, err
	}
	if _, ok := PartyRole(c, callerID); !ok {
		return nil, ErrNotParty
	}
	return c, nil
}

// ListForUser returns every contract userID is a party to.
func (e *Engine) ListForUser(ctx context.Context, userID int64) ([]*models.Contract, error) {
	contracts, err := e.contracts.ListContractsForUser(ctx, userID)
	if err != nil {
		return nil, apperr.Storage(err, "list contracts")
	}
	return contracts, nil
}

// Sign records callerID's signature. The returned contract tells the caller
// whether it is now fully executed or still waiting on the other party.
func (e *Engine) Sign(ctx context.Context, contractID, callerID int64) (*models.Contract, error) {
	var role Role
	c, err := e.mutate(ctx, contractID, callerID, func(c *models.Contract, r Role) error {
		role = r
		return Sign(c, r, e.now())
	})
	if err != nil {
		return nil, err
	}

	link := contractLink(c)
	if c.FullyExecutedAt != nil {
		e.logger.Info("contract fully executed", "contract_id", c.ID, "version", c.Version)
		e.notify(ctx, c.ClientID, fmt.Sprintf("Contract #%d (version %d) is fully executed.", c.ID, c.Version), link)
		e.notify(ctx, c.SeekerID, fmt.Sprintf("Contract #%d (version %d) is fully executed.", c.ID, c.Version), link)
	} else {
		e.logger.Info("contract signed", "contract_id", c.ID, "version", c.Version, "role", role.String())
		e.notify(ctx, Counterparty(c, role),
			fmt.Sprintf("The %s signed contract #%d. Your signature is needed.", role, c.ID), link)
	}
	return c, nil
}

// RequestChange proposes an amendment on behalf of callerID.
func (e *Engine) RequestChange(ctx context.Context, contractID, callerID int64, description string) (*models.Contract, error) {
	var role Role
	c, err := e.mutate(ctx, contractID, callerID, func(c *models.Contract, r Role) error {
		role = r
		return RequestChange(c, callerID, description, e.now())
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("contract change requested", "contract_id", c.ID, "requested_by", callerID)
	e.notify(ctx, Counterparty(c, role),
		fmt.Sprintf("The %s requested a change to contract #%d.", role, c.ID), contractLink(c))
	return c, nil
}

// ApproveChange accepts the pending amendment. Only the party that did not
// request it may approve.
func (e *Engine) ApproveChange(ctx context.Context, contractID, callerID int64) (*models.Contract, error) {
	var requester int64
	c, err := e.mutate(ctx, contractID, callerID, func(c *models.Contract, _ Role) error {
		if c.PendingChangesBy != nil {
			requester = *c.PendingChangesBy
		}
		return ApproveChange(c, callerID, e.now())
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("contract change approved", "contract_id", c.ID, "version", c.Version, "approved_by", callerID)
	if requester != 0 {
		e.notify(ctx, requester,
			fmt.Sprintf("Your change to contract #%d was approved. Version %d needs both signatures.", c.ID, c.Version),
			contractLink(c))
	}
	return c, nil
}

// RejectChange drops the pending amendment.
func (e *Engine) RejectChange(ctx context.Context, contractID, callerID int64) (*models.Contract, error) {
	var requester int64
	c, err := e.mutate(ctx, contractID, callerID, func(c *models.Contract, _ Role) error {
		if c.PendingChangesBy != nil {
			requester = *c.PendingChangesBy
		}
		return RejectChange(c, e.now())
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("contract change rejected", "contract_id", c.ID, "rejected_by", callerID)
	if requester != 0 && requester != callerID {
		e.notify(ctx, requester, fmt.Sprintf("Your change to contract #%d was rejected.", c.ID), contractLink(c))
	}
	return c, nil
}

// mutate loads the contract, authorizes callerID, applies fn and writes the
// result guarded by the revision token. A lost race is retried once from a
// fresh read, so fn sees the latest state (a signature racing a change
// request comes back as ErrBlocked, not a silent overwrite).
func (e *Engine) mutate(ctx context.Context, contractID, callerID int64, fn func(*models.Contract, Role) error) (*models.Contract, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		c, err := e.load(ctx, contractID)
		if err != nil {
			return nil, err
		}
		role, ok := PartyRole(c, callerID)
		if !ok {
			return nil, ErrNotParty
		}
		if err := fn(c, role); err != nil {
			return nil, err
		}

		err = e.contracts.UpdateContract(ctx, c)
		if err == nil {
			return c, nil
		}
		if errors.Is(err, store.ErrConflict) {
			e.logger.Warn("contract write conflict, retrying", "contract_id", contractID, "attempt", attempt+1)
			continue
		}
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("Contract %d no longer exists", contractID)
		}
		return nil, apperr.Storage(err, "save contract")
	}
	return nil, apperr.Conflict("Contract %d was changed by someone else. Reload and try again", contractID)
}

func (e *Engine) load(ctx context.Context, contractID int64) (*models.Contract, error) {
	c, err := e.contracts.GetContract(ctx, contractID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("Contract %d does not exist", contractID)
		}
		return nil, apperr.Storage(err, "load contract")
	}
	return c, nil
}

func (e *Engine) notify(ctx context.Context, userID int64, message, link string) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Notify(ctx, userID, message, link); err != nil {
		e.logger.Warn("contract notification failed", "user_id", userID, "error", err)
	}
}

func contractLink(c *models.Contract) string {
	return fmt.Sprintf("/contracts/%d", c.ID)
}

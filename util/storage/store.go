package storage

import (
	"time"

	"github.com/sfu-dhil/lockssomatic"
	"github.com/sfu-dhil/lockssomatic/constants"
	"github.com/sfu-dhil/lockssomatic/models"
	"github.com/warpfork/go-errcat"
)

// Store is the persistence layer the status sweeps read from and write
// to. Networks, boxes, AUs and deposits are read; status records are
// appended. Status records are never updated once saved.
type Store interface {
	// FindPlns returns the Plns with the specified ids, or all Plns
	// if ids is empty. A missing id is an error.
	FindPlns(ids []int64) ([]*models.Pln, error)

	// FindActiveBoxes returns the active boxes in pln, ordered by id,
	// with each box's Pln set.
	FindActiveBoxes(pln *models.Pln) ([]*models.Box, error)

	// FindAus returns all AUs in pln, ordered by id.
	FindAus(pln *models.Pln) ([]*models.Au, error)

	// FindAu returns the AU with the specified id, or nil if there
	// is no such AU.
	FindAu(id int64) (*models.Au, error)

	// FindDepositsForCheck returns one page of the deposits described
	// by query, ordered by id.
	FindDepositsForCheck(query *DepositQuery) ([]*models.Deposit, error)

	// FindDeposit returns the deposit with the specified uuid, or nil
	// if there is no such deposit.
	FindDeposit(uuid string) (*models.Deposit, error)

	// SaveAuStatus appends status.
	SaveAuStatus(status *models.AuStatus) error

	// SaveDepositStatus appends status and saves the deposit's cached
	// Agreement and Checked values, in a single transaction.
	SaveDepositStatus(status *models.DepositStatus, deposit *models.Deposit) error

	// SaveBoxStatus appends status.
	SaveBoxStatus(status *models.BoxStatus) error

	// FindAuStatuses returns all status records for the AU, oldest first.
	FindAuStatuses(auId int64) ([]*models.AuStatus, error)

	// FindDepositStatuses returns all status records for the deposit,
	// oldest first.
	FindDepositStatuses(depositId int64) ([]*models.DepositStatus, error)

	// FindBoxStatuses returns all status records for the box, oldest first.
	FindBoxStatuses(boxId int64) ([]*models.BoxStatus, error)

	Close() error
}

// Importer writes the reference records that the status sweeps read.
// In production these come from the LOCKSSOMatic web application. The
// lom_import app and the tests use Importer to load them.
type Importer interface {
	SavePln(pln *models.Pln) error
	SaveBox(box *models.Box) error
	SaveContentProvider(provider *models.ContentProvider) error
	SaveAu(au *models.Au) error
	SaveDeposit(deposit *models.Deposit) error
}

// DepositQuery describes which deposits a deposit status sweep should
// check. Unless All is true, only deposits that have not reached full
// agreement and were not checked within RecheckInterval of Now are
// returned.
type DepositQuery struct {
	// PlnIds restricts the query to deposits in these networks.
	// Empty means every network.
	PlnIds []int64

	// Uuids restricts the query to these deposits. Empty means
	// every deposit.
	Uuids []string

	// All skips the agreement and recheck filters.
	All bool

	// After is the id of the last deposit on the previous page.
	// Only deposits with a greater id are returned.
	After int64

	// Limit is the maximum number of deposits to return. Zero means
	// no limit.
	Limit int

	Now             time.Time
	RecheckInterval time.Duration
}

// NewDepositQuery returns a query that selects the deposits due for
// a check right now.
func NewDepositQuery(recheckInterval time.Duration) *DepositQuery {
	return &DepositQuery{
		PlnIds:          make([]int64, 0),
		Uuids:           make([]string, 0),
		Now:             time.Now().UTC(),
		RecheckInterval: recheckInterval,
	}
}

// Open returns the Store for config.StorageDriver.
func Open(config *models.Config) (Store, error) {
	switch config.StorageDriver {
	case constants.StorageBolt:
		return NewBoltStore(config.BoltDBPath)
	case constants.StoragePostgres:
		return NewPostgresStore(config.GetPostgresURL())
	}
	return nil, errcat.Errorf(lockssomatic.ErrConfig,
		"Unknown storage driver '%s'", config.StorageDriver)
}

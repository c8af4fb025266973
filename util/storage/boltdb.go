package storage

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/boltdb/bolt"
	"github.com/sfu-dhil/lockssomatic"
	"github.com/sfu-dhil/lockssomatic/models"
	"github.com/warpfork/go-errcat"
)

const (
	PLN_BUCKET              = "plns"
	BOX_BUCKET              = "boxes"
	CONTENT_PROVIDER_BUCKET = "content_providers"
	AU_BUCKET               = "aus"
	DEPOSIT_BUCKET          = "deposits"
	DEPOSIT_UUID_BUCKET     = "deposit_uuids"
	AU_STATUS_BUCKET        = "au_status"
	DEPOSIT_STATUS_BUCKET   = "deposit_status"
	BOX_STATUS_BUCKET       = "box_status"
)

var allBuckets = []string{
	PLN_BUCKET,
	BOX_BUCKET,
	CONTENT_PROVIDER_BUCKET,
	AU_BUCKET,
	DEPOSIT_BUCKET,
	DEPOSIT_UUID_BUCKET,
	AU_STATUS_BUCKET,
	DEPOSIT_STATUS_BUCKET,
	BOX_STATUS_BUCKET,
}

// BoltStore keeps LOCKSSOMatic records in a bolt database, which is
// a single-file key-value store. This is useful for small networks
// and for testing, where running Postgres would be overkill.
//
// Records are stored as JSON, keyed by their id as a big-endian
// uint64, so cursors return them in id order. Status records are
// keyed by the id of the record they describe, followed by their
// creation time and their own id, so all statuses for one deposit
// (or AU, or box) sit together in creation order.
type BoltStore struct {
	db       *bolt.DB
	filePath string
}

// NewBoltStore opens a bolt database, creating the DB file if it doesn't
// already exist.
func NewBoltStore(filePath string) (*BoltStore, error) {
	db, err := bolt.Open(filePath, 0644, nil)
	if err != nil {
		return nil, errcat.Errorf(lockssomatic.ErrStorage,
			"Cannot open bolt database '%s': %v", filePath, err)
	}
	boltStore := &BoltStore{
		db:       db,
		filePath: filePath,
	}
	err = boltStore.initBuckets()
	if err != nil {
		db.Close()
		return nil, err
	}
	return boltStore, nil
}

func (boltStore *BoltStore) initBuckets() error {
	return boltStore.db.Update(func(tx *bolt.Tx) error {
		for _, name := range allBuckets {
			_, err := tx.CreateBucketIfNotExists([]byte(name))
			if err != nil {
				return errcat.Errorf(lockssomatic.ErrStorage,
					"Error creating bucket %s: %v", name, err)
			}
		}
		return nil
	})
}

// FilePath returns the path to the bolt DB file.
func (boltStore *BoltStore) FilePath() string {
	return boltStore.filePath
}

// Close closes the bolt database.
func (boltStore *BoltStore) Close() error {
	return boltStore.db.Close()
}

func itob(id int64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(id))
	return key
}

func btoi(key []byte) int64 {
	return int64(binary.BigEndian.Uint64(key[:8]))
}

func statusKey(ownerId int64, createdNanos int64, id string) []byte {
	key := make([]byte, 0, 16+len(id))
	key = append(key, itob(ownerId)...)
	key = append(key, itob(createdNanos)...)
	return append(key, []byte(id)...)
}

// put encodes value as JSON and stores it under key.
func put(tx *bolt.Tx, bucketName string, key []byte, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return errcat.Errorf(lockssomatic.ErrStorage,
			"Cannot encode %T for bucket %s: %v", value, bucketName, err)
	}
	err = tx.Bucket([]byte(bucketName)).Put(key, data)
	if err != nil {
		return errcat.Errorf(lockssomatic.ErrStorage,
			"Cannot save %T to bucket %s: %v", value, bucketName, err)
	}
	return nil
}

// get decodes the value stored under key into obj. Returns false
// if there is no such key.
func get(tx *bolt.Tx, bucketName string, key []byte, obj interface{}) (bool, error) {
	data := tx.Bucket([]byte(bucketName)).Get(key)
	if len(data) == 0 {
		return false, nil
	}
	err := json.Unmarshal(data, obj)
	if err != nil {
		return false, errcat.Errorf(lockssomatic.ErrStorage,
			"Cannot decode %T from bucket %s: %v", obj, bucketName, err)
	}
	return true, nil
}

// nextId assigns the next sequence number in bucketName if *id is zero.
// Explicit ids push the sequence forward so later records don't
// collide with them.
func nextId(tx *bolt.Tx, bucketName string, id *int64) error {
	bucket := tx.Bucket([]byte(bucketName))
	if *id == 0 {
		seq, err := bucket.NextSequence()
		if err != nil {
			return errcat.Errorf(lockssomatic.ErrStorage,
				"Cannot get next id for bucket %s: %v", bucketName, err)
		}
		*id = int64(seq)
		return nil
	}
	if uint64(*id) > bucket.Sequence() {
		return bucket.SetSequence(uint64(*id))
	}
	return nil
}

func (boltStore *BoltStore) saveRecord(bucketName string, id *int64, value interface{}) error {
	return boltStore.db.Update(func(tx *bolt.Tx) error {
		if err := nextId(tx, bucketName, id); err != nil {
			return err
		}
		return put(tx, bucketName, itob(*id), value)
	})
}

// SavePln saves pln, assigning an id if it doesn't have one.
func (boltStore *BoltStore) SavePln(pln *models.Pln) error {
	return boltStore.saveRecord(PLN_BUCKET, &pln.Id, pln)
}

// SaveBox saves box, assigning an id if it doesn't have one.
func (boltStore *BoltStore) SaveBox(box *models.Box) error {
	return boltStore.saveRecord(BOX_BUCKET, &box.Id, box)
}

func (boltStore *BoltStore) SaveContentProvider(provider *models.ContentProvider) error {
	return boltStore.saveRecord(CONTENT_PROVIDER_BUCKET, &provider.Id, provider)
}

func (boltStore *BoltStore) SaveAu(au *models.Au) error {
	return boltStore.saveRecord(AU_BUCKET, &au.Id, au)
}

// SaveDeposit saves deposit and indexes it by uuid.
func (boltStore *BoltStore) SaveDeposit(deposit *models.Deposit) error {
	if deposit.Uuid == "" {
		return errcat.Errorf(lockssomatic.ErrStorage, "Cannot save deposit without a uuid")
	}
	return boltStore.db.Update(func(tx *bolt.Tx) error {
		if err := nextId(tx, DEPOSIT_BUCKET, &deposit.Id); err != nil {
			return err
		}
		return putDeposit(tx, deposit)
	})
}

func putDeposit(tx *bolt.Tx, deposit *models.Deposit) error {
	err := put(tx, DEPOSIT_BUCKET, itob(deposit.Id), deposit)
	if err != nil {
		return err
	}
	return tx.Bucket([]byte(DEPOSIT_UUID_BUCKET)).Put(
		[]byte(strings.ToLower(deposit.Uuid)), itob(deposit.Id))
}

func (boltStore *BoltStore) FindPlns(ids []int64) ([]*models.Pln, error) {
	plns := make([]*models.Pln, 0)
	err := boltStore.db.View(func(tx *bolt.Tx) error {
		if len(ids) == 0 {
			return tx.Bucket([]byte(PLN_BUCKET)).ForEach(func(k, v []byte) error {
				pln := &models.Pln{}
				if err := json.Unmarshal(v, pln); err != nil {
					return errcat.Errorf(lockssomatic.ErrStorage, "Cannot decode pln: %v", err)
				}
				plns = append(plns, pln)
				return nil
			})
		}
		for _, id := range ids {
			pln := &models.Pln{}
			found, err := get(tx, PLN_BUCKET, itob(id), pln)
			if err != nil {
				return err
			}
			if !found {
				return errcat.Errorf(lockssomatic.ErrStorage, "Pln %d does not exist", id)
			}
			plns = append(plns, pln)
		}
		return nil
	})
	return plns, err
}

func (boltStore *BoltStore) FindActiveBoxes(pln *models.Pln) ([]*models.Box, error) {
	boxes := make([]*models.Box, 0)
	err := boltStore.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(BOX_BUCKET)).ForEach(func(k, v []byte) error {
			box := &models.Box{}
			if err := json.Unmarshal(v, box); err != nil {
				return errcat.Errorf(lockssomatic.ErrStorage, "Cannot decode box: %v", err)
			}
			if box.PlnId == pln.Id && box.Active {
				box.Pln = pln
				boxes = append(boxes, box)
			}
			return nil
		})
	})
	return boxes, err
}

func (boltStore *BoltStore) FindAus(pln *models.Pln) ([]*models.Au, error) {
	aus := make([]*models.Au, 0)
	err := boltStore.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(AU_BUCKET)).ForEach(func(k, v []byte) error {
			au := &models.Au{}
			if err := json.Unmarshal(v, au); err != nil {
				return errcat.Errorf(lockssomatic.ErrStorage, "Cannot decode au: %v", err)
			}
			if au.PlnId == pln.Id {
				aus = append(aus, au)
			}
			return nil
		})
	})
	return aus, err
}

func (boltStore *BoltStore) FindAu(id int64) (*models.Au, error) {
	au := &models.Au{}
	var found bool
	err := boltStore.db.View(func(tx *bolt.Tx) error {
		var err error
		found, err = get(tx, AU_BUCKET, itob(id), au)
		return err
	})
	if err != nil || !found {
		return nil, err
	}
	return au, nil
}

func (boltStore *BoltStore) FindDepositsForCheck(query *DepositQuery) ([]*models.Deposit, error) {
	deposits := make([]*models.Deposit, 0)
	uuids := make(map[string]bool, len(query.Uuids))
	for _, uuid := range query.Uuids {
		uuids[strings.ToLower(uuid)] = true
	}
	plnIds := make(map[int64]bool, len(query.PlnIds))
	for _, id := range query.PlnIds {
		plnIds[id] = true
	}
	err := boltStore.db.View(func(tx *bolt.Tx) error {
		auPlns := make(map[int64]int64)
		if len(plnIds) > 0 {
			err := tx.Bucket([]byte(AU_BUCKET)).ForEach(func(k, v []byte) error {
				au := &models.Au{}
				if err := json.Unmarshal(v, au); err != nil {
					return errcat.Errorf(lockssomatic.ErrStorage, "Cannot decode au: %v", err)
				}
				auPlns[au.Id] = au.PlnId
				return nil
			})
			if err != nil {
				return err
			}
		}
		cursor := tx.Bucket([]byte(DEPOSIT_BUCKET)).Cursor()
		for k, v := cursor.Seek(itob(query.After + 1)); k != nil; k, v = cursor.Next() {
			deposit := &models.Deposit{}
			if err := json.Unmarshal(v, deposit); err != nil {
				return errcat.Errorf(lockssomatic.ErrStorage,
					"Cannot decode deposit %d: %v", btoi(k), err)
			}
			if len(uuids) > 0 && !uuids[strings.ToLower(deposit.Uuid)] {
				continue
			}
			if len(plnIds) > 0 && !plnIds[auPlns[deposit.AuId]] {
				continue
			}
			if !query.All && !deposit.NeedsCheck(query.Now, query.RecheckInterval) {
				continue
			}
			deposits = append(deposits, deposit)
			if query.Limit > 0 && len(deposits) >= query.Limit {
				break
			}
		}
		return nil
	})
	return deposits, err
}

func (boltStore *BoltStore) FindDeposit(uuid string) (*models.Deposit, error) {
	deposit := &models.Deposit{}
	var found bool
	err := boltStore.db.View(func(tx *bolt.Tx) error {
		id := tx.Bucket([]byte(DEPOSIT_UUID_BUCKET)).Get([]byte(strings.ToLower(uuid)))
		if id == nil {
			return nil
		}
		var err error
		found, err = get(tx, DEPOSIT_BUCKET, id, deposit)
		return err
	})
	if err != nil || !found {
		return nil, err
	}
	return deposit, nil
}

func (boltStore *BoltStore) SaveAuStatus(status *models.AuStatus) error {
	return boltStore.db.Update(func(tx *bolt.Tx) error {
		key := statusKey(status.AuId, status.Created.UnixNano(), status.Id)
		return put(tx, AU_STATUS_BUCKET, key, status)
	})
}

func (boltStore *BoltStore) SaveDepositStatus(status *models.DepositStatus, deposit *models.Deposit) error {
	return boltStore.db.Update(func(tx *bolt.Tx) error {
		key := statusKey(status.DepositId, status.Created.UnixNano(), status.Id)
		if err := put(tx, DEPOSIT_STATUS_BUCKET, key, status); err != nil {
			return err
		}
		return putDeposit(tx, deposit)
	})
}

func (boltStore *BoltStore) SaveBoxStatus(status *models.BoxStatus) error {
	return boltStore.db.Update(func(tx *bolt.Tx) error {
		key := statusKey(status.BoxId, status.Created.UnixNano(), status.Id)
		return put(tx, BOX_STATUS_BUCKET, key, status)
	})
}

// forEachStatus calls fn with each status record whose key starts
// with ownerId.
func (boltStore *BoltStore) forEachStatus(bucketName string, ownerId int64, fn func(v []byte) error) error {
	prefix := itob(ownerId)
	return boltStore.db.View(func(tx *bolt.Tx) error {
		cursor := tx.Bucket([]byte(bucketName)).Cursor()
		for k, v := cursor.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = cursor.Next() {
			if err := fn(v); err != nil {
				return errcat.Errorf(lockssomatic.ErrStorage,
					"Cannot decode record from bucket %s: %v", bucketName, err)
			}
		}
		return nil
	})
}

func (boltStore *BoltStore) FindAuStatuses(auId int64) ([]*models.AuStatus, error) {
	statuses := make([]*models.AuStatus, 0)
	err := boltStore.forEachStatus(AU_STATUS_BUCKET, auId, func(v []byte) error {
		status := &models.AuStatus{}
		err := json.Unmarshal(v, status)
		statuses = append(statuses, status)
		return err
	})
	return statuses, err
}

func (boltStore *BoltStore) FindDepositStatuses(depositId int64) ([]*models.DepositStatus, error) {
	statuses := make([]*models.DepositStatus, 0)
	err := boltStore.forEachStatus(DEPOSIT_STATUS_BUCKET, depositId, func(v []byte) error {
		status := &models.DepositStatus{}
		err := json.Unmarshal(v, status)
		statuses = append(statuses, status)
		return err
	})
	return statuses, err
}

func (boltStore *BoltStore) FindBoxStatuses(boxId int64) ([]*models.BoxStatus, error) {
	statuses := make([]*models.BoxStatus, 0)
	err := boltStore.forEachStatus(BOX_STATUS_BUCKET, boxId, func(v []byte) error {
		status := &models.BoxStatus{}
		err := json.Unmarshal(v, status)
		statuses = append(statuses, status)
		return err
	})
	return statuses, err
}

// Count returns the number of records in the named bucket.
// lom_import uses this to report what was loaded.
func (boltStore *BoltStore) Count(bucketName string) (int, error) {
	count := 0
	err := boltStore.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		if bucket == nil {
			return fmt.Errorf("No such bucket: %s", bucketName)
		}
		count = bucket.Stats().KeyN
		return nil
	})
	return count, err
}

// BucketNames returns the names of all buckets in the store, sorted.
func (boltStore *BoltStore) BucketNames() []string {
	names := make([]string, len(allBuckets))
	copy(names, allBuckets)
	sort.Strings(names)
	return names
}

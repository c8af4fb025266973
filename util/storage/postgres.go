package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/sfu-dhil/lockssomatic"
	"github.com/sfu-dhil/lockssomatic/models"
	"github.com/warpfork/go-errcat"
)

// PostgresStore reads and writes LOCKSSOMatic records in a Postgres
// database, through the pgx driver.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore connects to the database at dbUrl and makes sure
// the tables we need exist.
func NewPostgresStore(dbUrl string) (*PostgresStore, error) {
	if dbUrl == "" {
		return nil, errcat.Errorf(lockssomatic.ErrConfig, "Postgres connection string is empty")
	}
	db, err := sql.Open("pgx", dbUrl)
	if err != nil {
		return nil, errcat.Errorf(lockssomatic.ErrStorage, "open postgres: %v", err)
	}
	store := &PostgresStore{db: db}
	if err := store.EnsureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// EnsureSchema creates any missing tables and indexes.
func (store *PostgresStore) EnsureSchema() error {
	if _, err := store.db.Exec(schemaPostgres); err != nil {
		return errcat.Errorf(lockssomatic.ErrStorage, "migrate postgres: %v", err)
	}
	return nil
}

func (store *PostgresStore) Close() error {
	return store.db.Close()
}

func storageError(action string, err error) error {
	return errcat.Errorf(lockssomatic.ErrStorage, "%s: %v", action, err)
}

// placeholders returns "$start, $start+1, ..." for count parameters.
func placeholders(start, count int) string {
	marks := make([]string, count)
	for i := range marks {
		marks[i] = fmt.Sprintf("$%d", start+i)
	}
	return strings.Join(marks, ", ")
}

const plnSelectCols = `id, name, email, username, password`

func scanPln(row interface{ Scan(...any) error }) (*models.Pln, error) {
	pln := &models.Pln{}
	err := row.Scan(&pln.Id, &pln.Name, &pln.Email, &pln.Username, &pln.Password)
	return pln, err
}

func (store *PostgresStore) FindPlns(ids []int64) ([]*models.Pln, error) {
	query := fmt.Sprintf(`SELECT %s FROM pln`, plnSelectCols)
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	if len(ids) > 0 {
		query += fmt.Sprintf(` WHERE id IN (%s)`, placeholders(1, len(ids)))
	}
	rows, err := store.db.Query(query+` ORDER BY id`, args...)
	if err != nil {
		return nil, storageError("find plns", err)
	}
	defer rows.Close()
	plns := make([]*models.Pln, 0)
	for rows.Next() {
		pln, err := scanPln(rows)
		if err != nil {
			return nil, storageError("scan pln", err)
		}
		plns = append(plns, pln)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("find plns", err)
	}
	if len(ids) > 0 && len(plns) != len(ids) {
		return nil, errcat.Errorf(lockssomatic.ErrStorage,
			"Requested %d plns but found %d", len(ids), len(plns))
	}
	return plns, nil
}

const boxSelectCols = `id, pln_id, hostname, ip_address, protocol, port, web_service_port,
	web_service_protocol, contact_name, contact_email, send_notifications, active`

func (store *PostgresStore) FindActiveBoxes(pln *models.Pln) ([]*models.Box, error) {
	rows, err := store.db.Query(fmt.Sprintf(
		`SELECT %s FROM box WHERE pln_id = $1 AND active ORDER BY id`, boxSelectCols), pln.Id)
	if err != nil {
		return nil, storageError("find boxes", err)
	}
	defer rows.Close()
	boxes := make([]*models.Box, 0)
	for rows.Next() {
		box := &models.Box{Pln: pln}
		err := rows.Scan(&box.Id, &box.PlnId, &box.Hostname, &box.IpAddress, &box.Protocol,
			&box.Port, &box.WebServicePort, &box.WebServiceProtocol, &box.ContactName,
			&box.ContactEmail, &box.SendNotifications, &box.Active)
		if err != nil {
			return nil, storageError("scan box", err)
		}
		boxes = append(boxes, box)
	}
	return boxes, rows.Err()
}

const auSelectCols = `id, pln_id, COALESCE(content_provider_id, 0), plugin_identifier, params, comment, auid`

func scanAu(row interface{ Scan(...any) error }) (*models.Au, error) {
	au := &models.Au{}
	var params []byte
	err := row.Scan(&au.Id, &au.PlnId, &au.ContentProviderId, &au.PluginIdentifier,
		&params, &au.Comment, &au.Auid)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(params, &au.Params); err != nil {
		return nil, fmt.Errorf("au %d has invalid params: %v", au.Id, err)
	}
	return au, nil
}

func (store *PostgresStore) FindAus(pln *models.Pln) ([]*models.Au, error) {
	rows, err := store.db.Query(fmt.Sprintf(
		`SELECT %s FROM au WHERE pln_id = $1 ORDER BY id`, auSelectCols), pln.Id)
	if err != nil {
		return nil, storageError("find aus", err)
	}
	defer rows.Close()
	aus := make([]*models.Au, 0)
	for rows.Next() {
		au, err := scanAu(rows)
		if err != nil {
			return nil, storageError("scan au", err)
		}
		aus = append(aus, au)
	}
	return aus, rows.Err()
}

func (store *PostgresStore) FindAu(id int64) (*models.Au, error) {
	row := store.db.QueryRow(fmt.Sprintf(`SELECT %s FROM au WHERE id = $1`, auSelectCols), id)
	au, err := scanAu(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storageError("find au", err)
	}
	return au, nil
}

const depositSelectCols = `d.id, d.uuid, d.au_id, COALESCE(d.content_provider_id, 0), d.title, d.url,
	d.checksum_type, d.checksum_value, d.size, d.agreement, d.checked`

func scanDeposit(row interface{ Scan(...any) error }) (*models.Deposit, error) {
	deposit := &models.Deposit{}
	var agreement sql.NullFloat64
	var checked sql.NullTime
	err := row.Scan(&deposit.Id, &deposit.Uuid, &deposit.AuId, &deposit.ContentProviderId,
		&deposit.Title, &deposit.Url, &deposit.ChecksumType, &deposit.ChecksumValue,
		&deposit.Size, &agreement, &checked)
	if err != nil {
		return nil, err
	}
	if agreement.Valid {
		deposit.Agreement = &agreement.Float64
	}
	if checked.Valid {
		checkedAt := checked.Time.UTC()
		deposit.Checked = &checkedAt
	}
	return deposit, nil
}

// depositCheckQuery builds the SQL and arguments for query.
func depositCheckQuery(query *DepositQuery) (string, []any) {
	args := []any{query.After}
	where := []string{`d.id > $1`}
	if len(query.PlnIds) > 0 {
		where = append(where, fmt.Sprintf(`a.pln_id IN (%s)`, placeholders(len(args)+1, len(query.PlnIds))))
		for _, id := range query.PlnIds {
			args = append(args, id)
		}
	}
	if len(query.Uuids) > 0 {
		where = append(where, fmt.Sprintf(`LOWER(d.uuid) IN (%s)`, placeholders(len(args)+1, len(query.Uuids))))
		for _, uuid := range query.Uuids {
			args = append(args, strings.ToLower(uuid))
		}
	}
	if !query.All {
		where = append(where, `(d.agreement IS NULL OR d.agreement < 1.0)`)
		args = append(args, query.Now.Add(-query.RecheckInterval))
		where = append(where, fmt.Sprintf(`(d.checked IS NULL OR d.checked < $%d)`, len(args)))
	}
	sqlQuery := fmt.Sprintf(`SELECT %s FROM deposit d JOIN au a ON a.id = d.au_id WHERE %s ORDER BY d.id`,
		depositSelectCols, strings.Join(where, " AND "))
	if query.Limit > 0 {
		args = append(args, query.Limit)
		sqlQuery += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	return sqlQuery, args
}

func (store *PostgresStore) FindDepositsForCheck(query *DepositQuery) ([]*models.Deposit, error) {
	sqlQuery, args := depositCheckQuery(query)
	rows, err := store.db.Query(sqlQuery, args...)
	if err != nil {
		return nil, storageError("find deposits", err)
	}
	defer rows.Close()
	deposits := make([]*models.Deposit, 0)
	for rows.Next() {
		deposit, err := scanDeposit(rows)
		if err != nil {
			return nil, storageError("scan deposit", err)
		}
		deposits = append(deposits, deposit)
	}
	return deposits, rows.Err()
}

func (store *PostgresStore) FindDeposit(uuid string) (*models.Deposit, error) {
	row := store.db.QueryRow(fmt.Sprintf(
		`SELECT %s FROM deposit d WHERE LOWER(d.uuid) = $1`, depositSelectCols), strings.ToLower(uuid))
	deposit, err := scanDeposit(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storageError("find deposit", err)
	}
	return deposit, nil
}

func jsonParam(value interface{}) (string, error) {
	data, err := json.Marshal(value)
	return string(data), err
}

func (store *PostgresStore) SaveAuStatus(status *models.AuStatus) error {
	statusJson, err := jsonParam(status.Status)
	if err != nil {
		return storageError("encode au status", err)
	}
	errorsJson, err := jsonParam(status.Errors)
	if err != nil {
		return storageError("encode au status errors", err)
	}
	_, err = store.db.Exec(`INSERT INTO au_status (id, au_id, created, status, errors)
		VALUES ($1, $2, $3, $4::jsonb, $5::jsonb)`,
		status.Id, status.AuId, status.Created, statusJson, errorsJson)
	if err != nil {
		return storageError("save au status", err)
	}
	return nil
}

func (store *PostgresStore) SaveDepositStatus(status *models.DepositStatus, deposit *models.Deposit) error {
	statusJson, err := jsonParam(status.Status)
	if err != nil {
		return storageError("encode deposit status", err)
	}
	errorsJson, err := jsonParam(status.Errors)
	if err != nil {
		return storageError("encode deposit status errors", err)
	}
	tx, err := store.db.Begin()
	if err != nil {
		return storageError("begin transaction", err)
	}
	_, err = tx.Exec(`INSERT INTO deposit_status (id, deposit_id, created, agreement, status, errors)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6::jsonb)`,
		status.Id, status.DepositId, status.Created, status.Agreement, statusJson, errorsJson)
	if err != nil {
		tx.Rollback()
		return storageError("save deposit status", err)
	}
	_, err = tx.Exec(`UPDATE deposit SET agreement = $1, checked = $2 WHERE id = $3`,
		deposit.Agreement, deposit.Checked, deposit.Id)
	if err != nil {
		tx.Rollback()
		return storageError("update deposit", err)
	}
	if err := tx.Commit(); err != nil {
		return storageError("commit deposit status", err)
	}
	return nil
}

func (store *PostgresStore) SaveBoxStatus(status *models.BoxStatus) error {
	dataJson, err := jsonParam(status.Data)
	if err != nil {
		return storageError("encode box status", err)
	}
	_, err = store.db.Exec(`INSERT INTO box_status (id, box_id, created, success, errors, data)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb)`,
		status.Id, status.BoxId, status.Created, status.Success, status.Errors, dataJson)
	if err != nil {
		return storageError("save box status", err)
	}
	return nil
}

func (store *PostgresStore) FindAuStatuses(auId int64) ([]*models.AuStatus, error) {
	rows, err := store.db.Query(`SELECT id, au_id, created, status, errors FROM au_status
		WHERE au_id = $1 ORDER BY created`, auId)
	if err != nil {
		return nil, storageError("find au statuses", err)
	}
	defer rows.Close()
	statuses := make([]*models.AuStatus, 0)
	for rows.Next() {
		status := &models.AuStatus{}
		var statusJson, errorsJson []byte
		if err := rows.Scan(&status.Id, &status.AuId, &status.Created, &statusJson, &errorsJson); err != nil {
			return nil, storageError("scan au status", err)
		}
		if err := decodeJsonColumns(statusJson, &status.Status, errorsJson, &status.Errors); err != nil {
			return nil, err
		}
		statuses = append(statuses, status)
	}
	return statuses, rows.Err()
}

func (store *PostgresStore) FindDepositStatuses(depositId int64) ([]*models.DepositStatus, error) {
	rows, err := store.db.Query(`SELECT id, deposit_id, created, agreement, status, errors
		FROM deposit_status WHERE deposit_id = $1 ORDER BY created`, depositId)
	if err != nil {
		return nil, storageError("find deposit statuses", err)
	}
	defer rows.Close()
	statuses := make([]*models.DepositStatus, 0)
	for rows.Next() {
		status := &models.DepositStatus{}
		var statusJson, errorsJson []byte
		err := rows.Scan(&status.Id, &status.DepositId, &status.Created, &status.Agreement,
			&statusJson, &errorsJson)
		if err != nil {
			return nil, storageError("scan deposit status", err)
		}
		if err := decodeJsonColumns(statusJson, &status.Status, errorsJson, &status.Errors); err != nil {
			return nil, err
		}
		statuses = append(statuses, status)
	}
	return statuses, rows.Err()
}

func (store *PostgresStore) FindBoxStatuses(boxId int64) ([]*models.BoxStatus, error) {
	rows, err := store.db.Query(`SELECT id, box_id, created, success, errors, data
		FROM box_status WHERE box_id = $1 ORDER BY created`, boxId)
	if err != nil {
		return nil, storageError("find box statuses", err)
	}
	defer rows.Close()
	statuses := make([]*models.BoxStatus, 0)
	for rows.Next() {
		status := &models.BoxStatus{}
		var dataJson []byte
		err := rows.Scan(&status.Id, &status.BoxId, &status.Created, &status.Success,
			&status.Errors, &dataJson)
		if err != nil {
			return nil, storageError("scan box status", err)
		}
		if err := json.Unmarshal(dataJson, &status.Data); err != nil {
			return nil, storageError("decode box status", err)
		}
		statuses = append(statuses, status)
	}
	return statuses, rows.Err()
}

func decodeJsonColumns(statusJson []byte, status interface{}, errorsJson []byte, errs interface{}) error {
	if err := json.Unmarshal(statusJson, status); err != nil {
		return storageError("decode status column", err)
	}
	if err := json.Unmarshal(errorsJson, errs); err != nil {
		return storageError("decode errors column", err)
	}
	return nil
}

// nullableId maps the zero id to NULL for optional foreign keys.
func nullableId(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id != 0}
}

// upsert inserts a row, or updates it if id is already taken. With a
// zero id, the database assigns one and it's written back to *id.
func (store *PostgresStore) upsert(table string, id *int64, cols []string, values ...any) error {
	setCols := make([]string, len(cols))
	for i, col := range cols {
		setCols[i] = fmt.Sprintf("%s = EXCLUDED.%s", col, col)
	}
	if *id == 0 {
		query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s) RETURNING id`,
			table, strings.Join(cols, ", "), placeholders(1, len(cols)))
		if err := store.db.QueryRow(query, values...).Scan(id); err != nil {
			return storageError("insert "+table, err)
		}
		return nil
	}
	query := fmt.Sprintf(`INSERT INTO %s (id, %s) VALUES ($1, %s) ON CONFLICT (id) DO UPDATE SET %s`,
		table, strings.Join(cols, ", "), placeholders(2, len(cols)), strings.Join(setCols, ", "))
	args := append([]any{*id}, values...)
	if _, err := store.db.Exec(query, args...); err != nil {
		return storageError("upsert "+table, err)
	}
	// Keep the sequence ahead of explicit ids.
	_, err := store.db.Exec(fmt.Sprintf(
		`SELECT setval(pg_get_serial_sequence('%s', 'id'), GREATEST((SELECT MAX(id) FROM %s), 1))`,
		table, table))
	if err != nil {
		return storageError("update sequence for "+table, err)
	}
	return nil
}

func (store *PostgresStore) SavePln(pln *models.Pln) error {
	return store.upsert("pln", &pln.Id, []string{"name", "email", "username", "password"},
		pln.Name, pln.Email, pln.Username, pln.Password)
}

func (store *PostgresStore) SaveBox(box *models.Box) error {
	return store.upsert("box", &box.Id,
		[]string{"pln_id", "hostname", "ip_address", "protocol", "port", "web_service_port",
			"web_service_protocol", "contact_name", "contact_email", "send_notifications", "active"},
		box.PlnId, box.Hostname, box.IpAddress, box.Protocol, box.Port, box.WebServicePort,
		box.WebServiceProtocol, box.ContactName, box.ContactEmail, box.SendNotifications, box.Active)
}

func (store *PostgresStore) SaveContentProvider(provider *models.ContentProvider) error {
	return store.upsert("content_provider", &provider.Id,
		[]string{"uuid", "pln_id", "name", "plugin_identifier", "permission_url",
			"max_file_size", "max_au_size"},
		provider.Uuid, provider.PlnId, provider.Name, provider.PluginIdentifier,
		provider.PermissionUrl, provider.MaxFileSize, provider.MaxAuSize)
}

func (store *PostgresStore) SaveAu(au *models.Au) error {
	params := au.Params
	if params == nil {
		params = make([]models.AuParam, 0)
	}
	paramsJson, err := jsonParam(params)
	if err != nil {
		return storageError("encode au params", err)
	}
	return store.upsert("au", &au.Id,
		[]string{"pln_id", "content_provider_id", "plugin_identifier", "params", "comment", "auid"},
		au.PlnId, nullableId(au.ContentProviderId), au.PluginIdentifier, paramsJson,
		au.Comment, au.Auid)
}

func (store *PostgresStore) SaveDeposit(deposit *models.Deposit) error {
	return store.upsert("deposit", &deposit.Id,
		[]string{"uuid", "au_id", "content_provider_id", "title", "url", "checksum_type",
			"checksum_value", "size", "agreement", "checked"},
		deposit.Uuid, deposit.AuId, nullableId(deposit.ContentProviderId), deposit.Title,
		deposit.Url, deposit.ChecksumType, deposit.ChecksumValue, deposit.Size,
		deposit.Agreement, deposit.Checked)
}

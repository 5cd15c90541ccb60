// Package postgres implements store.Store on PostgreSQL via the Grove ORM.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/migrate"

	"github.com/hookline/hookline"
	"github.com/hookline/hookline/connection"
	"github.com/hookline/hookline/crypt"
	"github.com/hookline/hookline/delivery"
	"github.com/hookline/hookline/destination"
	"github.com/hookline/hookline/event"
	"github.com/hookline/hookline/id"
	"github.com/hookline/hookline/source"
	hookstore "github.com/hookline/hookline/store"
)

// compile-time interface check
var _ hookstore.Store = (*Store)(nil)

// Store implements store.Store using PostgreSQL via Grove ORM.
// Confidential columns (verification secrets, destination credentials,
// raw event bodies) pass through the configured cipher.
type Store struct {
	db     *grove.DB
	pg     *pgdriver.PgDB
	cipher crypt.Cipher
}

// New creates a new PostgreSQL store. A nil cipher stores confidential
// fields in the clear; pass crypt.Noop explicitly to make that choice
// visible at the call site.
func New(db *grove.DB, cipher crypt.Cipher) *Store {
	if cipher == nil {
		cipher = crypt.Noop{}
	}
	return &Store{
		db:     db,
		pg:     pgdriver.Unwrap(db),
		cipher: cipher,
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("hookline/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("hookline/postgres: %w: %v", hookline.ErrMigrationFailed, err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Source Store ====================

func (s *Store) CreateSource(ctx context.Context, src *source.Source) error {
	m, err := toSourceModel(src, s.cipher)
	if err != nil {
		return err
	}
	_, err = s.pg.NewInsert(m).Exec(ctx)
	if err != nil && isUniqueViolation(err) {
		return hookline.ErrDuplicateIngestToken
	}
	return err
}

func (s *Store) GetSource(ctx context.Context, srcID id.ID) (*source.Source, error) {
	m := new(sourceModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", srcID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, hookline.ErrSourceNotFound
		}
		return nil, err
	}
	return fromSourceModel(m, s.cipher)
}

func (s *Store) GetSourceByToken(ctx context.Context, token string) (*source.Source, error) {
	m := new(sourceModel)
	err := s.pg.NewSelect(m).
		Where("ingest_token = $1", token).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, hookline.ErrSourceNotFound
		}
		return nil, err
	}
	return fromSourceModel(m, s.cipher)
}

// UpdateSource modifies a source. The ingest token column is deliberately
// excluded: tokens are immutable once issued.
func (s *Store) UpdateSource(ctx context.Context, src *source.Source) error {
	secret, err := sealString(s.cipher, src.VerificationSecret)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	res, err := s.pg.NewUpdate((*sourceModel)(nil)).
		Set("name = $1", src.Name).
		Set("provider = $2", src.Provider).
		Set("status = $3", string(src.Status)).
		Set("verification_scheme = $4", string(src.VerificationScheme)).
		Set("verification_secret = $5", secret).
		Set("success_status = $6", src.SuccessStatus).
		Set("default_forward_headers = $7", src.DefaultForwardHeaders).
		Set("updated_at = $8", now).
		Where("id = $9", src.ID.String()).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return hookline.ErrSourceNotFound
	}
	return nil
}

func (s *Store) DeleteSource(ctx context.Context, srcID id.ID) error {
	res, err := s.pg.NewDelete((*sourceModel)(nil)).
		Where("id = $1", srcID.String()).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return hookline.ErrSourceNotFound
	}
	return nil
}

func (s *Store) ListSources(ctx context.Context, opts source.ListOpts) ([]*source.Source, error) {
	var models []sourceModel
	q := s.pg.NewSelect(&models)
	if opts.Status != nil {
		q = q.Where("status = $1", string(*opts.Status))
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*source.Source, len(models))
	for i := range models {
		src, err := fromSourceModel(&models[i], s.cipher)
		if err != nil {
			return nil, err
		}
		result[i] = src
	}
	return result, nil
}

// ==================== Destination Store ====================

func (s *Store) CreateDestination(ctx context.Context, dst *destination.Destination) error {
	m, err := toDestinationModel(dst, s.cipher)
	if err != nil {
		return err
	}
	_, err = s.pg.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetDestination(ctx context.Context, dstID id.ID) (*destination.Destination, error) {
	m := new(destinationModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", dstID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, hookline.ErrDestinationNotFound
		}
		return nil, err
	}
	return fromDestinationModel(m, s.cipher)
}

func (s *Store) UpdateDestination(ctx context.Context, dst *destination.Destination) error {
	m, err := toDestinationModel(dst, s.cipher)
	if err != nil {
		return err
	}
	m.UpdatedAt = time.Now().UTC()
	res, err := s.pg.NewUpdate(m).
		WherePK().
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return hookline.ErrDestinationNotFound
	}
	return nil
}

func (s *Store) DeleteDestination(ctx context.Context, dstID id.ID) error {
	res, err := s.pg.NewDelete((*destinationModel)(nil)).
		Where("id = $1", dstID.String()).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return hookline.ErrDestinationNotFound
	}
	return nil
}

func (s *Store) ListDestinations(ctx context.Context, opts destination.ListOpts) ([]*destination.Destination, error) {
	var models []destinationModel
	q := s.pg.NewSelect(&models)
	if opts.Status != nil {
		q = q.Where("status = $1", string(*opts.Status))
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*destination.Destination, len(models))
	for i := range models {
		dst, err := fromDestinationModel(&models[i], s.cipher)
		if err != nil {
			return nil, err
		}
		result[i] = dst
	}
	return result, nil
}

// ==================== Connection Store ====================

func (s *Store) CreateConnection(ctx context.Context, conn *connection.Connection) error {
	m, err := toConnectionModel(conn)
	if err != nil {
		return err
	}
	_, err = s.pg.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetConnection(ctx context.Context, connID id.ID) (*connection.Connection, error) {
	m := new(connectionModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", connID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, hookline.ErrConnectionNotFound
		}
		return nil, err
	}
	return fromConnectionModel(m)
}

func (s *Store) UpdateConnection(ctx context.Context, conn *connection.Connection) error {
	m, err := toConnectionModel(conn)
	if err != nil {
		return err
	}
	m.UpdatedAt = time.Now().UTC()
	res, err := s.pg.NewUpdate(m).
		WherePK().
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return hookline.ErrConnectionNotFound
	}
	return nil
}

func (s *Store) DeleteConnection(ctx context.Context, connID id.ID) error {
	res, err := s.pg.NewDelete((*connectionModel)(nil)).
		Where("id = $1", connID.String()).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return hookline.ErrConnectionNotFound
	}
	return nil
}

func (s *Store) ListBySource(ctx context.Context, srcID id.ID, opts connection.ListOpts) ([]*connection.Connection, error) {
	var models []connectionModel
	q := s.pg.NewSelect(&models).Where("source_id = $1", srcID.String())
	if opts.Status != nil {
		q = q.Where("status = $2", string(*opts.Status))
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("priority ASC, created_at ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*connection.Connection, len(models))
	for i := range models {
		conn, err := fromConnectionModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = conn
	}
	return result, nil
}

// ==================== Event Store ====================

func (s *Store) CreateEvent(ctx context.Context, evt *event.Event) error {
	m, err := toEventModel(evt, s.cipher)
	if err != nil {
		return err
	}
	_, err = s.pg.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetEvent(ctx context.Context, evtID id.ID) (*event.Event, error) {
	m := new(eventModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", evtID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, hookline.ErrEventNotFound
		}
		return nil, err
	}
	return fromEventModel(m, s.cipher)
}

func (s *Store) UpdateEventStatus(ctx context.Context, evtID id.ID, status event.Status) error {
	now := time.Now().UTC()
	res, err := s.pg.NewUpdate((*eventModel)(nil)).
		Set("status = $1", string(status)).
		Set("updated_at = $2", now).
		Where("id = $3", evtID.String()).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return hookline.ErrEventNotFound
	}
	return nil
}

func (s *Store) ListEvents(ctx context.Context, opts event.ListOpts) ([]*event.Event, error) {
	var models []eventModel
	q := s.pg.NewSelect(&models)

	argIdx := 0
	if opts.SourceID != nil {
		argIdx++
		q = q.Where(fmt.Sprintf("source_id = $%d", argIdx), opts.SourceID.String())
	}
	if opts.Status != nil {
		argIdx++
		q = q.Where(fmt.Sprintf("status = $%d", argIdx), string(*opts.Status))
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("received_at DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*event.Event, len(models))
	for i := range models {
		evt, err := fromEventModel(&models[i], s.cipher)
		if err != nil {
			return nil, err
		}
		result[i] = evt
	}
	return result, nil
}

// ==================== Delivery Store ====================

func (s *Store) CreateDelivery(ctx context.Context, d *delivery.Delivery) error {
	m := toDeliveryModel(d)
	_, err := s.pg.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetDelivery(ctx context.Context, delID id.ID) (*delivery.Delivery, error) {
	m := new(deliveryModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", delID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, hookline.ErrDeliveryNotFound
		}
		return nil, err
	}
	return fromDeliveryModel(m)
}

func (s *Store) UpdateDelivery(ctx context.Context, d *delivery.Delivery) error {
	m := toDeliveryModel(d)
	m.UpdatedAt = time.Now().UTC()
	res, err := s.pg.NewUpdate(m).WherePK().Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return hookline.ErrDeliveryNotFound
	}
	return nil
}

func (s *Store) ListDeliveries(ctx context.Context, opts delivery.ListOpts) ([]*delivery.Delivery, error) {
	var models []deliveryModel
	q := s.pg.NewSelect(&models)

	argIdx := 0
	if opts.EventID != nil {
		argIdx++
		q = q.Where(fmt.Sprintf("event_id = $%d", argIdx), opts.EventID.String())
	}
	if opts.DestinationID != nil {
		argIdx++
		q = q.Where(fmt.Sprintf("destination_id = $%d", argIdx), opts.DestinationID.String())
	}
	if opts.Status != nil {
		argIdx++
		q = q.Where(fmt.Sprintf("status = $%d", argIdx), string(*opts.Status))
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*delivery.Delivery, len(models))
	for i := range models {
		d, err := fromDeliveryModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = d
	}
	return result, nil
}

// DueDeliveries claims due deliveries with FOR UPDATE SKIP LOCKED so
// concurrent sweepers never hand the same delivery to two workers. The
// claim defers next_attempt_at by two minutes; the executor overwrites it
// when it resolves the attempt, so a crashed worker only delays the
// delivery, never loses it.
func (s *Store) DueDeliveries(ctx context.Context, now time.Time, limit int) ([]*delivery.Delivery, error) {
	var models []deliveryModel
	err := s.pg.NewRaw(`
		UPDATE hookline_deliveries
		SET next_attempt_at = $1::timestamptz + INTERVAL '2 minutes', updated_at = $1
		WHERE id IN (
			SELECT id FROM hookline_deliveries
			WHERE next_attempt_at IS NOT NULL
			  AND next_attempt_at <= $1
			  AND status IN ('pending', 'queued', 'failed')
			ORDER BY next_attempt_at ASC
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING *
	`, now.UTC(), limit).Scan(ctx, &models)
	if err != nil {
		return nil, err
	}

	result := make([]*delivery.Delivery, len(models))
	for i := range models {
		d, err := fromDeliveryModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = d
	}
	return result, nil
}

func (s *Store) CountPending(ctx context.Context) (int, error) {
	count, err := s.pg.NewSelect((*deliveryModel)(nil)).
		Where("status IN ('pending', 'queued', 'delivering') OR (status = 'failed' AND attempt_count < max_attempts)").
		Count(ctx)
	return int(count), err
}

// ==================== Attempt Store ====================

func (s *Store) CreateAttempt(ctx context.Context, a *delivery.Attempt) error {
	m := toAttemptModel(a)
	_, err := s.pg.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) ListAttempts(ctx context.Context, delID id.ID) ([]*delivery.Attempt, error) {
	var models []attemptModel
	if err := s.pg.NewSelect(&models).
		Where("delivery_id = $1", delID.String()).
		OrderExpr("number ASC").
		Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*delivery.Attempt, len(models))
	for i := range models {
		a, err := fromAttemptModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = a
	}
	return result, nil
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// isUniqueViolation matches the postgres unique constraint error without
// binding to a specific driver error type.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "23505")
}

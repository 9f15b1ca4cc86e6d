package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/yourusername/carpool-bot/internal/domain/entity"
	"github.com/yourusername/carpool-bot/internal/domain/repository"
)

// SQLiteRideRepository ride repository on SQLite; Close releases the database
type SQLiteRideRepository struct {
	db *sql.DB
}

var _ repository.RideRepository = (*SQLiteRideRepository)(nil)

// NewSQLiteRideRepository opens (and creates when needed) the ride database
func NewSQLiteRideRepository(dbPath string) (*SQLiteRideRepository, error) {
	if dbPath == "" {
		return nil, errors.New("db path must not be empty")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	// both schedulers and the chat handler write; one connection avoids SQLITE_BUSY
	db.SetMaxOpenConns(1)

	if err := createRideSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteRideRepository{db: db}, nil
}

func createRideSchema(db *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS ride_requests (
	id TEXT PRIMARY KEY,
	role TEXT NOT NULL,
	telegram_id TEXT NOT NULL,
	departure_lat REAL NOT NULL,
	departure_lon REAL NOT NULL,
	destination_lat REAL NOT NULL,
	destination_lon REAL NOT NULL,
	ride_start TIMESTAMP NOT NULL,
	ride_end TIMESTAMP NOT NULL,
	status TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_ride_requests_open ON ride_requests (status, role, created_at);
CREATE INDEX IF NOT EXISTS idx_ride_requests_user ON ride_requests (telegram_id, created_at);

CREATE TABLE IF NOT EXISTS rides (
	id TEXT PRIMARY KEY,
	driver_request_id TEXT NOT NULL,
	passenger_request_id TEXT NOT NULL,
	driver_telegram_id TEXT NOT NULL,
	passenger_telegram_id TEXT NOT NULL,
	start_lat REAL NOT NULL,
	start_lon REAL NOT NULL,
	ride_date_time TIMESTAMP NOT NULL,
	driver_reminded INTEGER NOT NULL DEFAULT 0,
	passenger_reminded INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMP NOT NULL,
	UNIQUE (driver_request_id, passenger_request_id)
);
CREATE INDEX IF NOT EXISTS idx_rides_time ON rides (ride_date_time);
`
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the database
func (s *SQLiteRideRepository) Close() error {
	return s.db.Close()
}

const requestColumns = `id, role, telegram_id, departure_lat, departure_lon, destination_lat, destination_lon, ride_start, ride_end, status, created_at`

// SaveRequest stores a new ride request
func (s *SQLiteRideRepository) SaveRequest(ctx context.Context, r entity.RideRequest) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO ride_requests (`+requestColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, string(r.Role), r.TelegramID,
		r.DeparturePoint.Latitude, r.DeparturePoint.Longitude,
		r.DestinationPoint.Latitude, r.DestinationPoint.Longitude,
		r.RideDate.Start.UTC(), r.RideDate.End.UTC(), string(r.Status), r.CreatedAt.UTC())
	return err
}

// GetRequest request by id
func (s *SQLiteRideRepository) GetRequest(ctx context.Context, id string) (*entity.RideRequest, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM ride_requests WHERE id = ?`, id)
	r, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrRequestNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ListRequestsByTelegramID requests of one user, newest first
func (s *SQLiteRideRepository) ListRequestsByTelegramID(ctx context.Context, telegramID string) ([]entity.RideRequest, error) {
	return s.queryRequests(ctx, `SELECT `+requestColumns+` FROM ride_requests WHERE telegram_id = ? ORDER BY created_at DESC, id DESC`, telegramID)
}

// LoadOpenDriverRequests open driver requests, oldest first
func (s *SQLiteRideRepository) LoadOpenDriverRequests(ctx context.Context) ([]entity.RideRequest, error) {
	return s.loadOpen(ctx, entity.RoleDriver)
}

// LoadOpenPassengerRequests open passenger requests, oldest first
func (s *SQLiteRideRepository) LoadOpenPassengerRequests(ctx context.Context) ([]entity.RideRequest, error) {
	return s.loadOpen(ctx, entity.RolePassenger)
}

func (s *SQLiteRideRepository) loadOpen(ctx context.Context, role entity.Role) ([]entity.RideRequest, error) {
	return s.queryRequests(ctx, `SELECT `+requestColumns+` FROM ride_requests WHERE status = ? AND role = ? ORDER BY created_at, id`,
		string(entity.RequestOpen), string(role))
}

// MarkRequestMatched open -> matched
func (s *SQLiteRideRepository) MarkRequestMatched(ctx context.Context, id string) error {
	return s.transition(ctx, id, entity.RequestMatched)
}

// CancelRequest open -> canceled
func (s *SQLiteRideRepository) CancelRequest(ctx context.Context, id string) error {
	return s.transition(ctx, id, entity.RequestCanceled)
}

func (s *SQLiteRideRepository) transition(ctx context.Context, id string, to entity.RequestStatus) error {
	res, err := s.db.ExecContext(ctx, `UPDATE ride_requests SET status = ? WHERE id = ? AND status IN (?, ?)`,
		string(to), id, string(entity.RequestOpen), string(to))
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil || n > 0 {
		return err
	}

	// nothing changed: either unknown or in another state
	var status string
	err = s.db.QueryRowContext(ctx, `SELECT status FROM ride_requests WHERE id = ?`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return repository.ErrRequestNotFound
	}
	if err != nil {
		return err
	}
	return repository.ErrRequestNotOpen
}

// ExpireRequests open requests whose window ended before the given instant become expired
func (s *SQLiteRideRepository) ExpireRequests(ctx context.Context, before time.Time) ([]entity.RideRequest, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}

	rows, err := tx.QueryContext(ctx, `SELECT `+requestColumns+` FROM ride_requests WHERE status = ? AND ride_end < ? ORDER BY created_at, id`,
		string(entity.RequestOpen), before.UTC())
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	expired, err := collectRequests(rows)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	for i := range expired {
		if _, err := tx.ExecContext(ctx, `UPDATE ride_requests SET status = ? WHERE id = ?`,
			string(entity.RequestExpired), expired[i].ID); err != nil {
			tx.Rollback()
			return nil, err
		}
		expired[i].Status = entity.RequestExpired
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return expired, nil
}

const insertRide = `
INSERT OR IGNORE INTO rides (id, driver_request_id, passenger_request_id, driver_telegram_id, passenger_telegram_id,
	start_lat, start_lon, ride_date_time, driver_reminded, passenger_reminded, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func rideArgs(ride entity.Ride) []any {
	return []any{
		ride.ID, ride.DriverRequestID, ride.PassengerRequestID, ride.DriverTelegramID, ride.PassengerTelegramID,
		ride.StartingPosition.Latitude, ride.StartingPosition.Longitude, ride.RideDateTime.UTC(),
		ride.DriverReminded, ride.PassengerReminded, ride.CreatedAt.UTC(),
	}
}

// CommitRide marks both requests matched and inserts the ride in one transaction
func (s *SQLiteRideRepository) CommitRide(ctx context.Context, ride entity.Ride) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var existing string
	err = tx.QueryRowContext(ctx, `SELECT id FROM rides WHERE driver_request_id = ? AND passenger_request_id = ?`,
		ride.DriverRequestID, ride.PassengerRequestID).Scan(&existing)
	if err == nil {
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	res, err := tx.ExecContext(ctx, `UPDATE ride_requests SET status = ? WHERE id IN (?, ?) AND status = ?`,
		string(entity.RequestMatched), ride.DriverRequestID, ride.PassengerRequestID, string(entity.RequestOpen))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 2 {
		var found int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM ride_requests WHERE id IN (?, ?)`,
			ride.DriverRequestID, ride.PassengerRequestID).Scan(&found); err != nil {
			return err
		}
		if found < 2 {
			return repository.ErrRequestNotFound
		}
		return repository.ErrRequestNotOpen
	}

	if _, err := tx.ExecContext(ctx, insertRide, rideArgs(ride)...); err != nil {
		return err
	}
	return tx.Commit()
}

// SaveRide stores the ride once per driver/passenger pair
func (s *SQLiteRideRepository) SaveRide(ctx context.Context, ride entity.Ride) error {
	_, err := s.db.ExecContext(ctx, insertRide, rideArgs(ride)...)
	return err
}

// LoadConfirmedRides rides with ride time in [from, to], earliest first
func (s *SQLiteRideRepository) LoadConfirmedRides(ctx context.Context, from, to time.Time) ([]entity.Ride, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, driver_request_id, passenger_request_id, driver_telegram_id, passenger_telegram_id,
	start_lat, start_lon, ride_date_time, driver_reminded, passenger_reminded, created_at
FROM rides
WHERE ride_date_time >= ? AND ride_date_time <= ?
ORDER BY ride_date_time, id`, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rides []entity.Ride
	for rows.Next() {
		var ride entity.Ride
		if err := rows.Scan(&ride.ID, &ride.DriverRequestID, &ride.PassengerRequestID,
			&ride.DriverTelegramID, &ride.PassengerTelegramID,
			&ride.StartingPosition.Latitude, &ride.StartingPosition.Longitude, &ride.RideDateTime,
			&ride.DriverReminded, &ride.PassengerReminded, &ride.CreatedAt); err != nil {
			return nil, err
		}
		rides = append(rides, ride)
	}
	return rides, rows.Err()
}

// MarkRideReminded records the reminder of one participant
func (s *SQLiteRideRepository) MarkRideReminded(ctx context.Context, rideID string, participant entity.Role) error {
	query := `UPDATE rides SET passenger_reminded = 1 WHERE id = ?`
	if participant == entity.RoleDriver {
		query = `UPDATE rides SET driver_reminded = 1 WHERE id = ?`
	}

	res, err := s.db.ExecContext(ctx, query, rideID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrRideNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (entity.RideRequest, error) {
	var r entity.RideRequest
	var role, status string
	err := row.Scan(&r.ID, &role, &r.TelegramID,
		&r.DeparturePoint.Latitude, &r.DeparturePoint.Longitude,
		&r.DestinationPoint.Latitude, &r.DestinationPoint.Longitude,
		&r.RideDate.Start, &r.RideDate.End, &status, &r.CreatedAt)
	r.Role = entity.Role(role)
	r.Status = entity.RequestStatus(status)
	return r, err
}

func (s *SQLiteRideRepository) queryRequests(ctx context.Context, query string, args ...any) ([]entity.RideRequest, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectRequests(rows)
}

func collectRequests(rows *sql.Rows) ([]entity.RideRequest, error) {
	defer rows.Close()

	var out []entity.RideRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Package history persists fetched grid series for later analysis. The
// planner itself never reads these records; they feed offline tuning of the
// scheduling weights. Recording is best-effort and off unless configured.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"k8s.io/klog/v2"

	"github.com/elevated-systems/caco-planner/pkg/caco/domain"
)

// Recorder persists grid series snapshots.
type Recorder interface {
	RecordSeries(region string, carbon []domain.CarbonPoint, price []domain.PricePoint) error
	GetCarbonHistory(region string, start, end time.Time) ([]domain.CarbonPoint, error)
	Close() error
}

// SQLiteRecorder implements Recorder on a local SQLite database.
type SQLiteRecorder struct {
	db    *sql.DB
	mutex sync.Mutex
}

// NewSQLiteRecorder opens (creating if needed) the database at dbPath.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %v", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal=WAL&_sync=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database schema: %v", err)
	}
	return r, nil
}

func (r *SQLiteRecorder) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS carbon_points (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME NOT NULL,
		region TEXT NOT NULL,
		forecast_g_per_kwh REAL NOT NULL,
		intensity_index TEXT,
		recorded_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS price_points (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME NOT NULL,
		region TEXT NOT NULL,
		system_buy_price REAL NOT NULL,
		system_sell_price REAL NOT NULL,
		recorded_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_carbon_region_ts ON carbon_points(region, timestamp);
	CREATE INDEX IF NOT EXISTS idx_price_region_ts ON price_points(region, timestamp);
	`
	_, err := r.db.Exec(schema)
	return err
}

// RecordSeries appends one fetched series snapshot.
func (r *SQLiteRecorder) RecordSeries(region string, carbon []domain.CarbonPoint, price []domain.PricePoint) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback()

	carbonStmt, err := tx.Prepare(`INSERT INTO carbon_points (timestamp, region, forecast_g_per_kwh, intensity_index) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer carbonStmt.Close()
	for _, point := range carbon {
		if _, err := carbonStmt.Exec(point.Timestamp.UTC(), region, point.ForecastGPerKWh, point.Index); err != nil {
			return fmt.Errorf("failed to insert carbon point: %v", err)
		}
	}

	priceStmt, err := tx.Prepare(`INSERT INTO price_points (timestamp, region, system_buy_price, system_sell_price) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer priceStmt.Close()
	for _, point := range price {
		if _, err := priceStmt.Exec(point.Timestamp.UTC(), region, point.SystemBuyPriceGBPMWh, point.SystemSellPriceGBPMWh); err != nil {
			return fmt.Errorf("failed to insert price point: %v", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %v", err)
	}

	klog.V(3).InfoS("Recorded grid series",
		"region", region,
		"carbonPoints", len(carbon),
		"pricePoints", len(price))
	return nil
}

// GetCarbonHistory returns recorded carbon points for a region and window.
func (r *SQLiteRecorder) GetCarbonHistory(region string, start, end time.Time) ([]domain.CarbonPoint, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	rows, err := r.db.Query(
		`SELECT timestamp, forecast_g_per_kwh, intensity_index
		 FROM carbon_points
		 WHERE region = ? AND timestamp >= ? AND timestamp <= ?
		 ORDER BY timestamp`,
		region, start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("query failed: %v", err)
	}
	defer rows.Close()

	var points []domain.CarbonPoint
	for rows.Next() {
		var point domain.CarbonPoint
		if err := rows.Scan(&point.Timestamp, &point.ForecastGPerKWh, &point.Index); err != nil {
			return nil, fmt.Errorf("scan failed: %v", err)
		}
		point.Timestamp = point.Timestamp.UTC()
		points = append(points, point)
	}
	return points, rows.Err()
}

// Close releases the database handle.
func (r *SQLiteRecorder) Close() error {
	return r.db.Close()
}

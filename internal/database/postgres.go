package database

import (
	"database/sql"
)

type PgSpatialMeetRepository struct {
	conn *sql.DB
}

func NewPgSpatialMeetRepository(dsn string) (*PgSpatialMeetRepository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	if err := runMigrations(db); err != nil {
		return nil, err
	}

	return &PgSpatialMeetRepository{conn: db}, nil
}

func (db *PgSpatialMeetRepository) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

package database

import (
	"time"
)

const (
	participantCols = "p.id, p.account_id, p.room_id, a.username, p.position_x, p.position_y, p.position_z, " +
		"p.microphone_enabled, p.speaker_enabled, p.volume, p.is_connected, p.joined_at, p.last_position_update"
)

func (db *PgSpatialMeetRepository) CreateAccount(accountParams CreateAccountParams) (User, error) {
	res := db.conn.QueryRow(
		"INSERT INTO accounts (username, email, password_hash, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $4) RETURNING id, username, email, created_at, updated_at",
		accountParams.Username,
		accountParams.EmailAddress,
		accountParams.PasswordHash,
		time.Now().UTC(),
	)

	var u User
	err := res.Scan(
		&u.Id,
		&u.Username,
		&u.EmailAddress,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	return u, err
}

func (db *PgSpatialMeetRepository) GetAccountById(id int) (User, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, email, created_at, updated_at FROM accounts "+
			"WHERE id = $1 LIMIT 1",
		id,
	)

	var user User
	err := row.Scan(
		&user.Id,
		&user.Username,
		&user.EmailAddress,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	return user, err
}

func (db *PgSpatialMeetRepository) GetAccountByEmail(email string) (User, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, email, password_hash, created_at, updated_at FROM accounts "+
			"WHERE email = $1 LIMIT 1",
		email,
	)

	var user User
	err := row.Scan(
		&user.Id,
		&user.Username,
		&user.EmailAddress,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	return user, err
}

// CreateRoom inserts the room and a presence record for its creator in a
// single transaction.
func (db *PgSpatialMeetRepository) CreateRoom(params CreateRoomParams) (Room, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return Room{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	res := tx.QueryRow(
		"INSERT INTO rooms (room_code, name, description, is_private, max_participants, owner_id, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7, $7) "+
			"RETURNING id, room_code, name, description, is_private, max_participants, owner_id, created_at, updated_at",
		params.RoomCode,
		params.Name,
		params.Description,
		params.IsPrivate,
		params.MaxParticipants,
		params.OwnerId,
		time.Now().UTC(),
	)

	var room Room
	err = res.Scan(
		&room.Id,
		&room.RoomCode,
		&room.Name,
		&room.Description,
		&room.IsPrivate,
		&room.MaxParticipants,
		&room.OwnerId,
		&room.CreatedAt,
		&room.UpdatedAt,
	)
	if err != nil {
		return Room{}, err
	}

	_, err = tx.Exec(
		"INSERT INTO user_rooms (account_id, room_id, joined_at, last_position_update) VALUES ($1, $2, $3, $3)",
		params.OwnerId,
		room.Id,
		time.Now().UTC(),
	)
	if err != nil {
		return Room{}, err
	}

	if err = tx.Commit(); err != nil {
		return Room{}, err
	}

	return room, err
}

func (db *PgSpatialMeetRepository) GetRoomByCode(roomCode string) (Room, error) {
	row := db.conn.QueryRow(
		"SELECT id, room_code, name, description, is_private, max_participants, owner_id, created_at, updated_at "+
			"FROM rooms WHERE room_code = $1 LIMIT 1",
		roomCode,
	)

	var room Room
	err := row.Scan(
		&room.Id,
		&room.RoomCode,
		&room.Name,
		&room.Description,
		&room.IsPrivate,
		&room.MaxParticipants,
		&room.OwnerId,
		&room.CreatedAt,
		&room.UpdatedAt,
	)

	return room, err
}

func (db *PgSpatialMeetRepository) RoomCodeExists(roomCode string) bool {
	var id int
	err := db.conn.QueryRow(
		"SELECT id FROM rooms WHERE room_code = $1 LIMIT 1",
		roomCode,
	).Scan(&id)

	return err == nil
}

func (db *PgSpatialMeetRepository) ListPublicRooms() ([]Room, error) {
	return db.listRooms("SELECT id, room_code, name, description, is_private, max_participants, owner_id, created_at, updated_at "+
		"FROM rooms WHERE is_private = FALSE", nil)
}

func (db *PgSpatialMeetRepository) ListRoomsByOwner(ownerId int) ([]Room, error) {
	return db.listRooms("SELECT id, room_code, name, description, is_private, max_participants, owner_id, created_at, updated_at "+
		"FROM rooms WHERE owner_id = $1", []any{ownerId})
}

func (db *PgSpatialMeetRepository) listRooms(query string, args []any) ([]Room, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rooms = make([]Room, 0)
	for rows.Next() {
		var room Room
		if err = rows.Scan(
			&room.Id,
			&room.RoomCode,
			&room.Name,
			&room.Description,
			&room.IsPrivate,
			&room.MaxParticipants,
			&room.OwnerId,
			&room.CreatedAt,
			&room.UpdatedAt,
		); err != nil {
			break
		}

		rooms = append(rooms, room)
	}
	return rooms, err
}

func (db *PgSpatialMeetRepository) GetParticipant(accountId, roomId int) (Participant, error) {
	row := db.conn.QueryRow(
		"SELECT "+participantCols+" FROM user_rooms p JOIN accounts a ON p.account_id = a.id "+
			"WHERE p.account_id = $1 AND p.room_id = $2 LIMIT 1",
		accountId,
		roomId,
	)

	return scanParticipant(row)
}

// CreateParticipant inserts a fresh presence record with default position
// and audio settings, already connected.
func (db *PgSpatialMeetRepository) CreateParticipant(accountId, roomId int) (Participant, error) {
	_, err := db.conn.Exec(
		"INSERT INTO user_rooms (account_id, room_id, is_connected, joined_at, last_position_update) "+
			"VALUES ($1, $2, TRUE, $3, $3) ON CONFLICT (account_id, room_id) DO UPDATE SET is_connected = TRUE",
		accountId,
		roomId,
		time.Now().UTC(),
	)
	if err != nil {
		return Participant{}, err
	}

	return db.GetParticipant(accountId, roomId)
}

func (db *PgSpatialMeetRepository) SetParticipantConnected(accountId, roomId int, connected bool) error {
	_, err := db.conn.Exec(
		"UPDATE user_rooms SET is_connected = $3 WHERE account_id = $1 AND room_id = $2",
		accountId,
		roomId,
		connected,
	)

	return err
}

func (db *PgSpatialMeetRepository) UpdateParticipantPosition(accountId, roomId int, x, y, z float64) error {
	_, err := db.conn.Exec(
		"UPDATE user_rooms SET position_x = $3, position_y = $4, position_z = $5, last_position_update = $6 "+
			"WHERE account_id = $1 AND room_id = $2",
		accountId,
		roomId,
		x,
		y,
		z,
		time.Now().UTC(),
	)

	return err
}

func (db *PgSpatialMeetRepository) UpdateParticipantAudio(accountId, roomId int, micEnabled, speakerEnabled bool, volume float64) error {
	_, err := db.conn.Exec(
		"UPDATE user_rooms SET microphone_enabled = $3, speaker_enabled = $4, volume = $5 "+
			"WHERE account_id = $1 AND room_id = $2",
		accountId,
		roomId,
		micEnabled,
		speakerEnabled,
		volume,
	)

	return err
}

func (db *PgSpatialMeetRepository) ListParticipants(roomId int) ([]Participant, error) {
	return db.listParticipants(
		"SELECT "+participantCols+" FROM user_rooms p JOIN accounts a ON p.account_id = a.id WHERE p.room_id = $1",
		roomId,
	)
}

func (db *PgSpatialMeetRepository) ListConnectedParticipants(roomId int) ([]Participant, error) {
	return db.listParticipants(
		"SELECT "+participantCols+" FROM user_rooms p JOIN accounts a ON p.account_id = a.id "+
			"WHERE p.room_id = $1 AND p.is_connected",
		roomId,
	)
}

func (db *PgSpatialMeetRepository) listParticipants(query string, roomId int) ([]Participant, error) {
	rows, err := db.conn.Query(query, roomId)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var participants = make([]Participant, 0)
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, err
		}

		participants = append(participants, p)
	}
	return participants, rows.Err()
}

func (db *PgSpatialMeetRepository) CountConnectedParticipants(roomId int) (int, error) {
	var count int
	err := db.conn.QueryRow(
		"SELECT COUNT(*) FROM user_rooms WHERE room_id = $1 AND is_connected",
		roomId,
	).Scan(&count)

	return count, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanParticipant(row rowScanner) (Participant, error) {
	var p Participant
	err := row.Scan(
		&p.Id,
		&p.AccountId,
		&p.RoomId,
		&p.Username,
		&p.PositionX,
		&p.PositionY,
		&p.PositionZ,
		&p.MicrophoneEnabled,
		&p.SpeakerEnabled,
		&p.Volume,
		&p.Connected,
		&p.JoinedAt,
		&p.LastPositionUpdate,
	)

	return p, err
}

package database

import (
	"encoding/json"
	"fmt"

	"github.com/npezzotti/tactics-board/internal/types"
)

func (db *PgTacticsRepository) CreateAccount(params CreateAccountParams) (Account, error) {
	now := db.now()
	res := db.conn.QueryRow(
		"INSERT INTO accounts (username, email, role, password_hash, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $5, $5) RETURNING id, username, email, role, created_at, updated_at",
		params.Username,
		params.EmailAddress,
		string(params.Role),
		params.PasswordHash,
		now,
	)

	var a Account
	err := res.Scan(
		&a.Id,
		&a.Username,
		&a.EmailAddress,
		&a.Role,
		&a.CreatedAt,
		&a.UpdatedAt,
	)

	return a, translateError(err, "account")
}

func (db *PgTacticsRepository) GetAccountById(id int) (Account, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, email, role, created_at, updated_at FROM accounts "+
			"WHERE id = $1 LIMIT 1",
		id,
	)

	var a Account
	err := row.Scan(
		&a.Id,
		&a.Username,
		&a.EmailAddress,
		&a.Role,
		&a.CreatedAt,
		&a.UpdatedAt,
	)

	return a, translateError(err, "account")
}

func (db *PgTacticsRepository) GetAccountByEmail(email string) (Account, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, email, role, password_hash, created_at, updated_at FROM accounts "+
			"WHERE email = $1 LIMIT 1",
		email,
	)

	var a Account
	err := row.Scan(
		&a.Id,
		&a.Username,
		&a.EmailAddress,
		&a.Role,
		&a.PasswordHash,
		&a.CreatedAt,
		&a.UpdatedAt,
	)

	return a, translateError(err, "account")
}

func (db *PgTacticsRepository) CreateFormation(ownerId int, f types.Formation) (types.SavedFormation, error) {
	f.Version = 0
	body, err := json.Marshal(f)
	if err != nil {
		return types.SavedFormation{}, fmt.Errorf("encode formation: %w", err)
	}

	now := db.now()
	res := db.conn.QueryRow(
		"INSERT INTO formations (owner_id, name, body, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $4) RETURNING id, created_at, updated_at",
		ownerId,
		f.Name,
		body,
		now,
	)

	sf := types.SavedFormation{OwnerId: ownerId, Formation: f}
	err = res.Scan(&sf.Id, &sf.CreatedAt, &sf.UpdatedAt)

	return sf, translateError(err, "formation")
}

func (db *PgTacticsRepository) GetFormation(id int) (types.SavedFormation, error) {
	row := db.conn.QueryRow(
		"SELECT id, owner_id, body, created_at, updated_at FROM formations WHERE id = $1 LIMIT 1",
		id,
	)

	sf, err := scanFormation(row.Scan)
	return sf, translateError(err, "formation")
}

func (db *PgTacticsRepository) ListFormations(ownerId int) ([]types.SavedFormation, error) {
	rows, err := db.conn.Query(
		"SELECT id, owner_id, body, created_at, updated_at FROM formations "+
			"WHERE owner_id = $1 ORDER BY updated_at DESC",
		ownerId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	formations := make([]types.SavedFormation, 0)
	for rows.Next() {
		sf, err := scanFormation(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan formation: %w", err)
		}

		formations = append(formations, sf)
	}

	return formations, rows.Err()
}

func scanFormation(scan func(dest ...any) error) (types.SavedFormation, error) {
	var (
		sf   types.SavedFormation
		body []byte
	)

	if err := scan(&sf.Id, &sf.OwnerId, &body, &sf.CreatedAt, &sf.UpdatedAt); err != nil {
		return types.SavedFormation{}, err
	}

	if err := json.Unmarshal(body, &sf.Formation); err != nil {
		return types.SavedFormation{}, fmt.Errorf("decode formation %d: %w", sf.Id, err)
	}

	return sf, nil
}

func (db *PgTacticsRepository) DeleteFormation(id, ownerId int) error {
	res, err := db.conn.Exec(
		"DELETE FROM formations WHERE id = $1 AND owner_id = $2",
		id,
		ownerId,
	)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("formation %w", types.ErrNotFound)
	}

	return nil
}

func (db *PgTacticsRepository) ArchiveRoom(state types.RoomState) error {
	body, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode room state: %w", err)
	}

	_, err = db.conn.Exec(
		"INSERT INTO room_archives (room_id, state, archived_at) VALUES ($1, $2, $3)",
		state.Id,
		body,
		db.now(),
	)

	return err
}

func (db *PgTacticsRepository) ListRoomArchives(roomId string) ([]types.RoomArchive, error) {
	rows, err := db.conn.Query(
		"SELECT id, room_id, state, archived_at FROM room_archives "+
			"WHERE room_id = $1 ORDER BY archived_at DESC",
		roomId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	archives := make([]types.RoomArchive, 0)
	for rows.Next() {
		var (
			a    types.RoomArchive
			body []byte
		)
		if err := rows.Scan(&a.Id, &a.RoomId, &body, &a.ArchivedAt); err != nil {
			return nil, fmt.Errorf("scan room archive: %w", err)
		}

		if err := json.Unmarshal(body, &a.State); err != nil {
			return nil, fmt.Errorf("decode room archive %d: %w", a.Id, err)
		}

		archives = append(archives, a)
	}

	return archives, rows.Err()
}

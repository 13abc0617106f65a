package database

import "github.com/npezzotti/tactics-board/internal/types"

type TacticsRepository interface {
	Ping() error
	CreateAccount(params CreateAccountParams) (Account, error)
	GetAccountById(accountId int) (Account, error)
	GetAccountByEmail(email string) (Account, error)
	CreateFormation(ownerId int, f types.Formation) (types.SavedFormation, error)
	GetFormation(id int) (types.SavedFormation, error)
	ListFormations(ownerId int) ([]types.SavedFormation, error)
	DeleteFormation(id, ownerId int) error
	ArchiveRoom(state types.RoomState) error
	ListRoomArchives(roomId string) ([]types.RoomArchive, error)
}

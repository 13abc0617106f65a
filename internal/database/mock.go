package database

import (
	"github.com/npezzotti/tactics-board/internal/types"
	"github.com/stretchr/testify/mock"
)

type MockTacticsRepository struct {
	mock.Mock
}

func (m *MockTacticsRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockTacticsRepository) CreateAccount(params CreateAccountParams) (Account, error) {
	args := m.Called(params)
	return args.Get(0).(Account), args.Error(1)
}
func (m *MockTacticsRepository) GetAccountById(accountId int) (Account, error) {
	args := m.Called(accountId)
	return args.Get(0).(Account), args.Error(1)
}
func (m *MockTacticsRepository) GetAccountByEmail(email string) (Account, error) {
	args := m.Called(email)
	return args.Get(0).(Account), args.Error(1)
}
func (m *MockTacticsRepository) CreateFormation(ownerId int, f types.Formation) (types.SavedFormation, error) {
	args := m.Called(ownerId, f)
	return args.Get(0).(types.SavedFormation), args.Error(1)
}
func (m *MockTacticsRepository) GetFormation(id int) (types.SavedFormation, error) {
	args := m.Called(id)
	return args.Get(0).(types.SavedFormation), args.Error(1)
}
func (m *MockTacticsRepository) ListFormations(ownerId int) ([]types.SavedFormation, error) {
	args := m.Called(ownerId)
	return args.Get(0).([]types.SavedFormation), args.Error(1)
}
func (m *MockTacticsRepository) DeleteFormation(id, ownerId int) error {
	args := m.Called(id, ownerId)
	return args.Error(0)
}
func (m *MockTacticsRepository) ArchiveRoom(state types.RoomState) error {
	args := m.Called(state)
	return args.Error(0)
}
func (m *MockTacticsRepository) ListRoomArchives(roomId string) ([]types.RoomArchive, error) {
	args := m.Called(roomId)
	return args.Get(0).([]types.RoomArchive), args.Error(1)
}

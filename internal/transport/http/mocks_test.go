package http

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/iamasit07/4-in-a-row-steroids/internal/domain"
	"github.com/iamasit07/4-in-a-row-steroids/internal/powerup"
)

type MockRooms struct {
	mock.Mock
}

func (m *MockRooms) CreateRoom(ctx context.Context, name string, maxPlayers int, randomEvents bool) (*domain.Room, error) {
	args := m.Called(ctx, name, maxPlayers, randomEvents)
	room, _ := args.Get(0).(*domain.Room)
	return room, args.Error(1)
}

func (m *MockRooms) ListRooms() []*domain.Room {
	args := m.Called()
	return args.Get(0).([]*domain.Room)
}

func (m *MockRooms) GetRoom(roomID string) (*domain.Room, error) {
	args := m.Called(roomID)
	room, _ := args.Get(0).(*domain.Room)
	return room, args.Error(1)
}

func (m *MockRooms) Snapshot(ctx context.Context, roomID string) (*domain.Snapshot, error) {
	args := m.Called(ctx, roomID)
	snap, _ := args.Get(0).(*domain.Snapshot)
	return snap, args.Error(1)
}

func (m *MockRooms) JoinRoom(ctx context.Context, roomID, name, color string) (*domain.Player, error) {
	args := m.Called(ctx, roomID, name, color)
	p, _ := args.Get(0).(*domain.Player)
	return p, args.Error(1)
}

func (m *MockRooms) StartGame(ctx context.Context, roomID string) (*domain.Room, error) {
	args := m.Called(ctx, roomID)
	room, _ := args.Get(0).(*domain.Room)
	return room, args.Error(1)
}

func (m *MockRooms) LeaveRoom(ctx context.Context, roomID, playerID string) error {
	return m.Called(ctx, roomID, playerID).Error(0)
}

func (m *MockRooms) Teardown(ctx context.Context, roomID string) error {
	return m.Called(ctx, roomID).Error(0)
}

func (m *MockRooms) PowerUps(roomID, playerID string) ([]powerup.Entry, error) {
	args := m.Called(roomID, playerID)
	inv, _ := args.Get(0).([]powerup.Entry)
	return inv, args.Error(1)
}

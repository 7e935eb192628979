package service_test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"chatd/internal/domain"
)

type MockAccountRepo struct {
	mock.Mock
}

func (m *MockAccountRepo) FindByUsername(username string) (domain.Account, bool) {
	args := m.Called(username)
	return args.Get(0).(domain.Account), args.Bool(1)
}

func (m *MockAccountRepo) FindByID(id int64) (domain.Account, bool) {
	args := m.Called(id)
	return args.Get(0).(domain.Account), args.Bool(1)
}

func (m *MockAccountRepo) NextID() int64 {
	args := m.Called()
	return args.Get(0).(int64)
}

func (m *MockAccountRepo) Create(ctx context.Context, a domain.Account) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

func (m *MockAccountRepo) All() []domain.Account {
	return nil // not used by services
}

func (m *MockAccountRepo) Save(ctx context.Context) error {
	return nil
}

type MockGroupRepo struct {
	mock.Mock
}

func (m *MockGroupRepo) CheckPermission(groupID int64, username string, min domain.Role) bool {
	args := m.Called(groupID, username, min)
	return args.Bool(0)
}

func (m *MockGroupRepo) CreateGroup(name, owner string) (int64, error) {
	args := m.Called(name, owner)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockGroupRepo) JoinGroup(groupID int64, username string) error {
	args := m.Called(groupID, username)
	return args.Error(0)
}

func (m *MockGroupRepo) LeaveGroup(groupID int64, username string) error {
	args := m.Called(groupID, username)
	return args.Error(0)
}

func (m *MockGroupRepo) SetRole(groupID int64, username string, role domain.Role) error {
	args := m.Called(groupID, username, role)
	return args.Error(0)
}

func (m *MockGroupRepo) Role(groupID int64, username string) domain.Role {
	args := m.Called(groupID, username)
	return args.Get(0).(domain.Role)
}

func (m *MockGroupRepo) IsMember(groupID int64, username string) bool {
	args := m.Called(groupID, username)
	return args.Bool(0)
}

func (m *MockGroupRepo) Members(groupID int64) []string {
	args := m.Called(groupID)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]string)
}

func (m *MockGroupRepo) Name(groupID int64) (string, bool) {
	args := m.Called(groupID)
	return args.String(0), args.Bool(1)
}

func (m *MockGroupRepo) IDByName(name string) (int64, bool) {
	args := m.Called(name)
	return args.Get(0).(int64), args.Bool(1)
}

func (m *MockGroupRepo) ListAll() []domain.GroupRef {
	return nil
}

func (m *MockGroupRepo) ListForUser(username string) []domain.GroupRef {
	args := m.Called(username)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]domain.GroupRef)
}

func (m *MockGroupRepo) Save(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type MockArchive struct {
	mock.Mock
}

func (m *MockArchive) Append(ctx context.Context, key domain.ConversationKey, rec domain.ChatRecord) (domain.ChatRecord, error) {
	args := m.Called(ctx, key, rec)
	return args.Get(0).(domain.ChatRecord), args.Error(1)
}

func (m *MockArchive) Query(ctx context.Context, key domain.ConversationKey, requesterID int64) ([]domain.ChatRecord, error) {
	args := m.Called(ctx, key, requesterID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ChatRecord), args.Error(1)
}

func (m *MockArchive) MarkDeleted(ctx context.Context, key domain.ConversationKey, uuid string, requesterID int64) error {
	args := m.Called(ctx, key, uuid, requesterID)
	return args.Error(0)
}

func (m *MockArchive) DirectPeers(ctx context.Context, userID int64) ([]int64, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}

func (m *MockArchive) Exists(key domain.ConversationKey) bool {
	return m.Called(key).Bool(0)
}

type MockRequestRepo struct {
	mock.Mock
}

func (m *MockRequestRepo) Enqueue(ctx context.Context, r domain.Request) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

func (m *MockRequestRepo) ListFor(ctx context.Context, userID int64, username string) ([]domain.Request, error) {
	args := m.Called(ctx, userID, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Request), args.Error(1)
}

func (m *MockRequestRepo) Remove(ctx context.Context, typ domain.RequestType, fromID, targetID int64) error {
	args := m.Called(ctx, typ, fromID, targetID)
	return args.Error(0)
}

type onlineSet map[string]bool

func (o onlineSet) IsOnline(username string) bool { return o[username] }

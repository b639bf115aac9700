package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"speakapp/internal/config"
	"speakapp/internal/observability"
	contextutils "speakapp/internal/utils"
)

var userTestColumns = []string{
	"id", "username", "email", "password_hash", "last_active", "created_at", "updated_at",
}

func newTestUserService(t *testing.T) (*UserService, sqlmock.Sqlmock, func()) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	cleanup := func() {
		require.NoError(t, mock.ExpectationsWereMet())
		mock.ExpectClose()
		require.NoError(t, db.Close())
	}

	logger := observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})

	return NewUserService(db, logger), mock, cleanup
}

func TestUserService_CreateUserWithPassword(t *testing.T) {
	service, mock, cleanup := newTestUserService(t)
	defer cleanup()

	now := time.Now()
	rows := sqlmock.NewRows(userTestColumns).
		AddRow(1, "tester", "tester@example.com", "$2a$10$hash", nil, now, now)

	mock.ExpectQuery(`INSERT INTO users \(username, email, password_hash\)`).
		WithArgs("tester", "tester@example.com", sqlmock.AnyArg()).
		WillReturnRows(rows)

	user, err := service.CreateUserWithPassword(context.Background(), "tester", "tester@example.com", "hunter2secret")
	require.NoError(t, err)
	assert.Equal(t, 1, user.ID)
	assert.Equal(t, "tester", user.Username)
}

func TestUserService_CreateUserMissingFields(t *testing.T) {
	service, _, cleanup := newTestUserService(t)
	defer cleanup()

	_, err := service.CreateUserWithPassword(context.Background(), "  ", "a@b.c", "pw")
	require.Error(t, err)
	assert.Equal(t, contextutils.ErrorCodeMissingRequired, contextutils.GetErrorCode(err))
}

func TestUserService_CreateUserDuplicate(t *testing.T) {
	service, mock, cleanup := newTestUserService(t)
	defer cleanup()

	mock.ExpectQuery(`INSERT INTO users`).
		WillReturnError(errors.New(`pq: duplicate key value violates unique constraint "users_username_key"`))

	_, err := service.CreateUserWithPassword(context.Background(), "tester", "tester@example.com", "hunter2secret")
	require.Error(t, err)
	assert.True(t, contextutils.IsError(err, contextutils.ErrRecordExists))
}

func TestUserService_AuthenticateUser(t *testing.T) {
	service, mock, cleanup := newTestUserService(t)
	defer cleanup()

	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2secret"), bcrypt.MinCost)
	require.NoError(t, err)

	now := time.Now()
	rows := sqlmock.NewRows(userTestColumns).
		AddRow(7, "tester", "tester@example.com", string(hash), nil, now, now)
	mock.ExpectQuery(`SELECT (.+) FROM users WHERE username = \$1`).
		WithArgs("tester").
		WillReturnRows(rows)
	mock.ExpectExec(`UPDATE users SET last_active = CURRENT_TIMESTAMP`).
		WithArgs(7).
		WillReturnResult(sqlmock.NewResult(0, 1))

	user, err := service.AuthenticateUser(context.Background(), "tester", "hunter2secret")
	require.NoError(t, err)
	assert.Equal(t, 7, user.ID)
}

func TestUserService_AuthenticateUserWrongPassword(t *testing.T) {
	service, mock, cleanup := newTestUserService(t)
	defer cleanup()

	hash, err := bcrypt.GenerateFromPassword([]byte("correct-password"), bcrypt.MinCost)
	require.NoError(t, err)

	now := time.Now()
	rows := sqlmock.NewRows(userTestColumns).
		AddRow(7, "tester", "tester@example.com", string(hash), nil, now, now)
	mock.ExpectQuery(`SELECT (.+) FROM users WHERE username = \$1`).
		WithArgs("tester").
		WillReturnRows(rows)

	_, err = service.AuthenticateUser(context.Background(), "tester", "wrong-password")
	require.Error(t, err)
	assert.True(t, contextutils.IsError(err, contextutils.ErrInvalidCredentials))
}

func TestUserService_AuthenticateUnknownUser(t *testing.T) {
	service, mock, cleanup := newTestUserService(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT (.+) FROM users WHERE username = \$1`).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows(userTestColumns))

	_, err := service.AuthenticateUser(context.Background(), "ghost", "whatever")
	require.Error(t, err)
	// Unknown user and wrong password look identical to the caller
	assert.True(t, contextutils.IsError(err, contextutils.ErrInvalidCredentials))
}

func TestUserService_GetUserByIDNotFound(t *testing.T) {
	service, mock, cleanup := newTestUserService(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT (.+) FROM users WHERE id = \$1`).
		WithArgs(99).
		WillReturnRows(sqlmock.NewRows(userTestColumns))

	_, err := service.GetUserByID(context.Background(), 99)
	require.Error(t, err)
	assert.True(t, contextutils.IsError(err, contextutils.ErrRecordNotFound))
}

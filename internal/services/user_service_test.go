package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/pasindubuddhika1999/findmyphone/internal/apperrors"
	"github.com/pasindubuddhika1999/findmyphone/internal/models"
	"github.com/pasindubuddhika1999/findmyphone/internal/policy"
)

// memoryBanList mirrors cache.IBanList in memory.
type memoryBanList map[string]bool

func (m memoryBanList) Ban(_ context.Context, userID string) error   { m[userID] = true; return nil }
func (m memoryBanList) Unban(_ context.Context, userID string) error { delete(m, userID); return nil }
func (m memoryBanList) IsBanned(_ context.Context, userID string) (bool, error) {
	return m[userID], nil
}

func TestEffectiveRole(t *testing.T) {
	admin := &models.User{Role: models.RoleAdmin, AccountType: models.AccountTypeShop}
	individual := &models.User{Role: models.RoleUser, AccountType: models.AccountTypeIndividual}
	shopUser := &models.User{Role: models.RoleUser, AccountType: models.AccountTypeShop}

	tests := []struct {
		name     string
		user     *models.User
		shop     *models.Shop
		wantRole models.Role
		wantKind apperrors.Kind
	}{
		{"admin", admin, nil, models.RoleAdmin, ""},
		{"individual", individual, nil, models.RoleUser, ""},
		{"approved shop", shopUser, &models.Shop{ModerationStatus: models.ModerationApproved}, models.RoleShop, ""},
		{"pending shop", shopUser, &models.Shop{ModerationStatus: models.ModerationPending}, "", apperrors.KindPendingApproval},
		{"rejected shop", shopUser, &models.Shop{ModerationStatus: models.ModerationRejected}, models.RoleUser, ""},
		{"revoked shop", shopUser, &models.Shop{ModerationStatus: models.ModerationRevoked}, models.RoleUser, ""},
		{"deleted shop", shopUser, nil, models.RoleUser, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			role, err := EffectiveRole(tt.user, tt.shop)
			if tt.wantKind != "" {
				assertKind(t, err, tt.wantKind)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantRole, role)
		})
	}
}

func TestUserService_RegisterAndLogin(t *testing.T) {
	database := setupServiceTestDB(t, "testdb_user_login")
	ctx := context.Background()
	users := NewUserService(database, nil, nil)

	user, err := users.Register(ctx, RegisterInput{
		Username:    "kasun_99",
		Email:       " Kasun@Example.com ",
		Password:    "secret123",
		PhoneNumber: "0779876543",
	})
	require.NoError(t, err)
	assert.Equal(t, "kasun@example.com", user.EmailAddress())
	assert.NotEqual(t, "secret123", user.PasswordHash)

	_, err = users.Register(ctx, RegisterInput{Username: "kasun_99", Password: "secret123", PhoneNumber: "0771111111"})
	assertKind(t, err, apperrors.KindConflict)
	_, err = users.Register(ctx, RegisterInput{Username: "other", Email: "kasun@example.com", Password: "secret123", PhoneNumber: "0771111111"})
	assertKind(t, err, apperrors.KindConflict)
	_, err = users.Register(ctx, RegisterInput{Username: "no spaces!", Password: "123", PhoneNumber: "x"})
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Len(t, appErr.Fields, 3)

	byEmail, err := users.Login(ctx, LoginInput{Identifier: "KASUN@example.com", Password: "secret123"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, byEmail.EffectiveRole)

	byPhone, err := users.Login(ctx, LoginInput{Identifier: "0779876543", Password: "secret123"})
	require.NoError(t, err)
	assert.Equal(t, user.ID, byPhone.User.ID)

	_, err = users.Login(ctx, LoginInput{Identifier: "kasun@example.com", Password: "wrong-password"})
	assertKind(t, err, apperrors.KindUnauthenticated)
	_, err = users.Login(ctx, LoginInput{Identifier: "nobody@example.com", Password: "secret123"})
	assertKind(t, err, apperrors.KindUnauthenticated)
}

func TestUserService_ProfileAndPassword(t *testing.T) {
	database := setupServiceTestDB(t, "testdb_user_profile")
	ctx := context.Background()
	users := NewUserService(database, nil, nil)

	user := createTestUser(t, database, "chamari", models.AccountTypeIndividual, models.RoleUser)
	createTestUser(t, database, "taken", models.AccountTypeIndividual, models.RoleUser)
	p := principalOf(user)

	profile, err := users.GetProfile(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, profile.EffectiveRole)
	assert.Nil(t, profile.Shop)

	email := "chamari@example.com"
	updated, err := users.UpdateProfile(ctx, p, ProfilePatch{Email: &email})
	require.NoError(t, err)
	assert.Equal(t, email, updated.EmailAddress())

	empty := ""
	updated, err = users.UpdateProfile(ctx, p, ProfilePatch{Email: &empty})
	require.NoError(t, err)
	assert.Nil(t, updated.Email)

	taken := "taken"
	_, err = users.UpdateProfile(ctx, p, ProfilePatch{Username: &taken})
	assertKind(t, err, apperrors.KindConflict)

	_, err = users.UpdateProfile(ctx, p, ProfilePatch{Email: &email})
	require.NoError(t, err)

	err = users.ChangePassword(ctx, p, ChangePasswordInput{CurrentPassword: "nope", NewPassword: "newsecret"})
	assertKind(t, err, apperrors.KindValidation)
	require.NoError(t, users.ChangePassword(ctx, p, ChangePasswordInput{CurrentPassword: "secret123", NewPassword: "newsecret"}))
	_, err = users.Login(ctx, LoginInput{Identifier: email, Password: "newsecret"})
	require.NoError(t, err)
}

func TestUserService_BanProtectsAdmins(t *testing.T) {
	database := setupServiceTestDB(t, "testdb_user_ban")
	ctx := context.Background()
	bans := memoryBanList{}
	users := NewUserService(database, NewListingService(database, testConfig(), nil, nil), bans)

	admin := createTestUser(t, database, "admin", models.AccountTypeIndividual, models.RoleAdmin)
	other := createTestUser(t, database, "admin2", models.AccountTypeIndividual, models.RoleAdmin)
	target := createTestUser(t, database, "spammer", models.AccountTypeIndividual, models.RoleUser)

	banned, err := users.ToggleBan(ctx, principalOf(admin), target.ID)
	require.NoError(t, err)
	assert.True(t, banned.IsBanned)
	assert.True(t, bans[target.ID.Hex()])

	stored, err := users.FindByID(ctx, target.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsBanned)

	unbanned, err := users.ToggleBan(ctx, principalOf(admin), target.ID)
	require.NoError(t, err)
	assert.False(t, unbanned.IsBanned)
	assert.False(t, bans[target.ID.Hex()])

	_, err = users.ToggleBan(ctx, principalOf(admin), other.ID)
	assertKind(t, err, apperrors.KindForbidden)
	_, err = users.ToggleBan(ctx, principalOf(admin), admin.ID)
	assertKind(t, err, apperrors.KindForbidden)
	_, err = users.ToggleBan(ctx, principalOf(target), admin.ID)
	assertKind(t, err, apperrors.KindForbidden)
	_, err = users.ToggleBan(ctx, principalOf(admin), primitive.NewObjectID())
	assertKind(t, err, apperrors.KindNotFound)

	_, err = users.ChangeRole(ctx, principalOf(admin), other.ID, models.RoleUser)
	assertKind(t, err, apperrors.KindForbidden)
	_, err = users.ChangeRole(ctx, principalOf(admin), target.ID, models.RoleShop)
	assertKind(t, err, apperrors.KindValidation)
	promoted, err := users.ChangeRole(ctx, principalOf(admin), target.ID, models.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, promoted.Role)
}

func TestUserService_BannedLoginRefused(t *testing.T) {
	database := setupServiceTestDB(t, "testdb_user_banned_login")
	ctx := context.Background()
	users := NewUserService(database, nil, nil)
	admin := createTestUser(t, database, "admin", models.AccountTypeIndividual, models.RoleAdmin)

	target, err := users.Register(ctx, RegisterInput{Username: "troll", Email: "troll@example.com", Password: "secret123", PhoneNumber: "0770000000"})
	require.NoError(t, err)
	_, err = users.ToggleBan(ctx, principalOf(admin), target.ID)
	require.NoError(t, err)

	_, err = users.Login(ctx, LoginInput{Identifier: "troll@example.com", Password: "secret123"})
	assertKind(t, err, apperrors.KindUnauthenticated)
}

func TestUserService_DeleteAndBulkActions(t *testing.T) {
	database := setupServiceTestDB(t, "testdb_user_bulk")
	ctx := context.Background()
	listings := NewListingService(database, testConfig(), nil, nil)
	users := NewUserService(database, listings, memoryBanList{})

	admin := createTestUser(t, database, "admin", models.AccountTypeIndividual, models.RoleAdmin)
	a := createTestUser(t, database, "alpha", models.AccountTypeIndividual, models.RoleUser)
	b := createTestUser(t, database, "bravo", models.AccountTypeIndividual, models.RoleUser)
	c := createTestUser(t, database, "charlie", models.AccountTypeIndividual, models.RoleUser)

	for _, u := range []*models.User{a, b, c} {
		_, err := listings.CreateListing(ctx, principalOf(u), validListingInput(), nil)
		require.NoError(t, err)
	}

	result, err := users.BulkAction(ctx, principalOf(admin), BulkActionInput{
		Action: BulkBan,
		IDs:    []string{a.ID.Hex(), b.ID.Hex(), admin.ID.Hex()},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.Affected)
	assert.Equal(t, []string{admin.ID.Hex()}, result.Skipped)

	banned := true
	page, err := users.ListUsers(ctx, principalOf(admin), UserSearchParams{Banned: &banned})
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)

	page, err = users.ListUsers(ctx, principalOf(admin), UserSearchParams{Search: "char"})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "charlie", page.Items[0].Username)

	_, err = users.ListUsers(ctx, principalOf(a), UserSearchParams{})
	assertKind(t, err, apperrors.KindForbidden)

	result, err = users.BulkAction(ctx, principalOf(admin), BulkActionInput{Action: BulkDeletePosts, IDs: []string{a.ID.Hex()}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.Affected)

	require.NoError(t, users.DeleteUser(ctx, principalOf(admin), c.ID))
	_, err = users.FindByID(ctx, c.ID)
	assertKind(t, err, apperrors.KindNotFound)

	stats, err := listings.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalPosts, "only bravo's listing is left")

	_, err = users.BulkAction(ctx, principalOf(admin), BulkActionInput{Action: "explode", IDs: []string{b.ID.Hex()}})
	assertKind(t, err, apperrors.KindValidation)
	_, err = users.BulkAction(ctx, principalOf(admin), BulkActionInput{Action: BulkBan, IDs: []string{"not-an-id"}})
	assertKind(t, err, apperrors.KindValidation)
}

func TestUserService_ListingBulkActionsNeedListingService(t *testing.T) {
	users := NewUserService(nil, nil, nil)
	admin := policy.Principal{UserID: primitive.NewObjectID(), Role: models.RoleAdmin}

	for _, action := range []string{BulkResolve, BulkDeletePosts} {
		_, err := users.BulkAction(context.Background(), admin, BulkActionInput{
			Action: action,
			IDs:    []string{primitive.NewObjectID().Hex()},
		})
		assert.ErrorIs(t, err, errListingsUnavailable, action)
	}
}

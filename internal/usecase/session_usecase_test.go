package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	repoimpl "rentalportal/internal/adapter/repository"
	"rentalportal/internal/domain/entity"
	"rentalportal/internal/domain/repository"
	"rentalportal/pkg/errors"
)

const testToken = "token-1234567890"

func profileJSON(id int64) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{"id":%d,"nickname":"n%d"}`, id, id))
}

func newSessionFixture() (*SessionUseCase, repository.IdentityRepository, repository.KeyValueStore) {
	store := repoimpl.NewMemoryKeyValueStore()
	identities := repoimpl.NewKVIdentityRepository(store, "")
	return NewSessionUseCase(identities, 10), identities, store
}

func TestSession_LoginEvictsOtherRoles(t *testing.T) {
	ctx := context.Background()
	for _, a := range entity.AllRoles {
		for _, b := range entity.AllRoles {
			if a == b {
				continue
			}
			t.Run(fmt.Sprintf("%s_then_%s", a, b), func(t *testing.T) {
				session, identities, _ := newSessionFixture()

				_, err := session.Login(ctx, testToken, profileJSON(7), a)
				require.NoError(t, err)
				_, err = session.Login(ctx, testToken, profileJSON(8), b)
				require.NoError(t, err)

				stored, err := identities.Load(ctx, a)
				require.NoError(t, err)
				assert.True(t, stored.Empty(), "identity for %s must be evicted", a)

				current := session.Current()
				assert.True(t, current.IsAuthenticated)
				assert.Equal(t, b, current.Role)
				assert.Equal(t, int64(8), current.ParticipantID())
			})
		}
	}
}

func TestSession_LoginRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	session, _, _ := newSessionFixture()

	_, err := session.Login(ctx, "short", profileJSON(1), entity.RoleCustomer)
	assert.True(t, errors.Is(err, errors.CodeAuthInvalid))

	_, err = session.Login(ctx, testToken, json.RawMessage(`{"name":"x"}`), entity.RoleCustomer)
	assert.True(t, errors.Is(err, errors.CodeBadRequest))

	_, err = session.Login(ctx, testToken, profileJSON(1), entity.Role("guest"))
	assert.True(t, errors.Is(err, errors.CodeBadRequest))

	assert.False(t, session.Current().IsAuthenticated)
}

func TestSession_InitializeProbesInPriorityOrder(t *testing.T) {
	ctx := context.Background()
	_, identities, _ := newSessionFixture()

	// two slots written behind the session's back, e.g. by another process
	require.NoError(t, identities.Save(ctx, &entity.Identity{Role: entity.RoleMerchant, ID: 1000001, Token: testToken, Profile: profileJSON(1000001)}))
	require.NoError(t, identities.Save(ctx, &entity.Identity{Role: entity.RoleAdmin, ID: 1, Token: testToken, Profile: profileJSON(1)}))

	session := NewSessionUseCase(identities, 10)
	assert.True(t, session.Initialize(ctx, ""))
	assert.Equal(t, entity.RoleMerchant, session.Current().Role)
	assert.True(t, session.Initialized())
}

func TestSession_InitializeExplicitContextChecksOnlyThatRole(t *testing.T) {
	ctx := context.Background()
	_, identities, _ := newSessionFixture()
	require.NoError(t, identities.Save(ctx, &entity.Identity{Role: entity.RoleMerchant, ID: 1000001, Token: testToken, Profile: profileJSON(1000001)}))

	session := NewSessionUseCase(identities, 10)
	session.Navigate("/admin/users")
	assert.False(t, session.Initialize(ctx, ""))
	assert.False(t, session.Current().IsAuthenticated)

	other := NewSessionUseCase(identities, 10)
	other.Navigate("/merchant/orders")
	assert.True(t, other.Initialize(ctx, ""))
	assert.Equal(t, entity.RoleMerchant, other.Current().Role)
}

func TestSession_InitializeOnlyOnce(t *testing.T) {
	ctx := context.Background()
	session, identities, _ := newSessionFixture()

	assert.False(t, session.Initialize(ctx, ""))

	// a later write is not picked up by re-initialization
	require.NoError(t, identities.Save(ctx, &entity.Identity{Role: entity.RoleCustomer, ID: 42, Token: testToken, Profile: profileJSON(42)}))
	assert.False(t, session.Initialize(ctx, ""))

	_, err := session.Login(ctx, testToken, profileJSON(42), entity.RoleCustomer)
	require.NoError(t, err)
	assert.True(t, session.Initialize(ctx, ""))

	// re-validation notices the slot disappearing
	require.NoError(t, identities.Delete(ctx, entity.RoleCustomer))
	assert.False(t, session.Initialize(ctx, ""))
	assert.False(t, session.Current().IsAuthenticated)
}

func TestSession_CorruptSlotsFailClosedAndArePurged(t *testing.T) {
	ctx := context.Background()
	cases := map[string]map[string]string{
		"short token":     {"customer_token": "abc", "customer_userInfo": `{"id":42}`, "customer_userType": "customer"},
		"bad profile":     {"customer_token": testToken, "customer_userInfo": `{not json`, "customer_userType": "customer"},
		"missing profile": {"customer_token": testToken, "customer_userType": "customer"},
		"role mismatch":   {"customer_token": testToken, "customer_userInfo": `{"id":42}`, "customer_userType": "merchant"},
		"missing tag":     {"customer_token": testToken, "customer_userInfo": `{"id":42}`},
		"zero id":         {"customer_token": testToken, "customer_userInfo": `{"id":0}`, "customer_userType": "customer"},
	}

	for name, slot := range cases {
		t.Run(name, func(t *testing.T) {
			session, identities, store := newSessionFixture()
			for k, v := range slot {
				require.NoError(t, store.Set(ctx, k, v))
			}

			session.Navigate("/user")
			assert.False(t, session.Initialize(ctx, ""))
			assert.False(t, session.Current().IsAuthenticated)

			stored, err := identities.Load(ctx, entity.RoleCustomer)
			require.NoError(t, err)
			assert.True(t, stored.Empty())
		})
	}
}

func TestSession_ExpiredJWTIsImplausible(t *testing.T) {
	ctx := context.Background()
	session, _, _ := newSessionFixture()
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	session.now = func() time.Time { return now }

	sign := func(exp time.Time) string {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "42", "exp": exp.Unix()})
		s, err := token.SignedString([]byte("test-secret"))
		require.NoError(t, err)
		return s
	}

	_, err := session.Login(ctx, sign(now.Add(time.Hour)), profileJSON(42), entity.RoleCustomer)
	require.NoError(t, err)
	assert.True(t, session.CheckAuthStatus(ctx, entity.RoleCustomer))

	now = now.Add(2 * time.Hour)
	assert.False(t, session.CheckAuthStatus(ctx, entity.RoleCustomer))
	assert.False(t, session.Current().IsAuthenticated)

	_, err = session.Login(ctx, "not.a.jwt-token", profileJSON(42), entity.RoleCustomer)
	assert.True(t, errors.Is(err, errors.CodeAuthInvalid))
}

func TestSession_LogoutClearsOnlyActiveRole(t *testing.T) {
	ctx := context.Background()
	session, identities, _ := newSessionFixture()

	_, err := session.Login(ctx, testToken, profileJSON(42), entity.RoleCustomer)
	require.NoError(t, err)
	// admin slot written afterwards by another context
	require.NoError(t, identities.Save(ctx, &entity.Identity{Role: entity.RoleAdmin, ID: 1, Token: testToken, Profile: profileJSON(1)}))

	require.NoError(t, session.Logout(ctx))
	assert.False(t, session.Current().IsAuthenticated)
	assert.Empty(t, session.Token())

	customer, err := identities.Load(ctx, entity.RoleCustomer)
	require.NoError(t, err)
	assert.True(t, customer.Empty())

	admin, err := identities.Load(ctx, entity.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, testToken, admin.Token)

	// logging out twice is harmless
	require.NoError(t, session.Logout(ctx))
}

func TestSession_UpdateIdentityKeepsToken(t *testing.T) {
	ctx := context.Background()
	session, identities, _ := newSessionFixture()

	// no-op while unauthenticated
	require.NoError(t, session.UpdateIdentity(ctx, profileJSON(42)))
	stored, err := identities.Load(ctx, entity.RoleCustomer)
	require.NoError(t, err)
	assert.True(t, stored.Empty())

	_, err = session.Login(ctx, testToken, profileJSON(42), entity.RoleCustomer)
	require.NoError(t, err)

	updated := json.RawMessage(`{"id":42,"nickname":"renamed"}`)
	require.NoError(t, session.UpdateIdentity(ctx, updated))

	stored, err = identities.Load(ctx, entity.RoleCustomer)
	require.NoError(t, err)
	assert.Equal(t, testToken, stored.Token)
	assert.JSONEq(t, string(updated), stored.Profile)
	assert.Equal(t, "renamed", session.Current().Identity.DisplayName())

	err = session.UpdateIdentity(ctx, profileJSON(43))
	assert.True(t, errors.Is(err, errors.CodeBadRequest))
}

func TestSession_CheckAuthStatusTargets(t *testing.T) {
	ctx := context.Background()
	session, identities, _ := newSessionFixture()
	require.NoError(t, identities.Save(ctx, &entity.Identity{Role: entity.RoleMerchant, ID: 1000001, Token: testToken, Profile: profileJSON(1000001)}))

	// root context recovered a merchant by probing and keeps it
	require.True(t, session.Initialize(ctx, ""))
	assert.True(t, session.CheckAuthStatus(ctx, ""))
	assert.Equal(t, entity.RoleMerchant, session.Current().Role)

	// the customer portal has no identity
	session.Navigate("/user/messages")
	assert.False(t, session.CheckAuthStatus(ctx, ""))
	assert.False(t, session.Current().IsAuthenticated)

	// an ambiguous non-root context is unauthenticated without purging
	session.Navigate("/login")
	assert.False(t, session.CheckAuthStatus(ctx, ""))
	stored, err := identities.Load(ctx, entity.RoleMerchant)
	require.NoError(t, err)
	assert.False(t, stored.Empty())

	// the merchant portal adopts the stored identity
	session.Navigate("/merchant")
	assert.True(t, session.CheckAuthStatus(ctx, ""))
	assert.Equal(t, int64(1000001), session.Current().ParticipantID())
}

func TestSession_ClearInvalidAuthPurgesActiveRole(t *testing.T) {
	ctx := context.Background()
	session, identities, _ := newSessionFixture()

	_, err := session.Login(ctx, testToken, profileJSON(1), entity.RoleAdmin)
	require.NoError(t, err)

	session.ClearInvalidAuth(ctx)

	assert.False(t, session.Current().IsAuthenticated)
	stored, err := identities.Load(ctx, entity.RoleAdmin)
	require.NoError(t, err)
	assert.True(t, stored.Empty())
}

func TestSession_ClearInvalidTokenIgnoresReplacedToken(t *testing.T) {
	ctx := context.Background()
	session, identities, _ := newSessionFixture()
	const oldToken, newToken = "token-old-1234567890", "token-new-1234567890"

	_, err := session.Login(ctx, oldToken, profileJSON(42), entity.RoleCustomer)
	require.NoError(t, err)
	_, err = session.Login(ctx, newToken, profileJSON(43), entity.RoleCustomer)
	require.NoError(t, err)

	session.ClearInvalidToken(ctx, oldToken)

	current := session.Current()
	assert.True(t, current.IsAuthenticated)
	assert.Equal(t, int64(43), current.ParticipantID())
	stored, err := identities.Load(ctx, entity.RoleCustomer)
	require.NoError(t, err)
	assert.Equal(t, newToken, stored.Token)

	session.ClearInvalidToken(ctx, newToken)

	assert.False(t, session.Current().IsAuthenticated)
	stored, err = identities.Load(ctx, entity.RoleCustomer)
	require.NoError(t, err)
	assert.True(t, stored.Empty())
}

func TestSession_ClearInvalidTokenChecksStoredSlot(t *testing.T) {
	ctx := context.Background()
	writer, identities, _ := newSessionFixture()
	_, err := writer.Login(ctx, testToken, profileJSON(42), entity.RoleCustomer)
	require.NoError(t, err)

	session := NewSessionUseCase(identities, 10)
	session.Navigate("/user/messages")
	session.ClearInvalidToken(ctx, "token-stale-1234567890")

	stored, err := identities.Load(ctx, entity.RoleCustomer)
	require.NoError(t, err)
	assert.Equal(t, testToken, stored.Token)
}

type failingIdentities struct {
	repository.IdentityRepository
	saveErr error
}

func (f *failingIdentities) Save(ctx context.Context, identity *entity.Identity) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	return f.IdentityRepository.Save(ctx, identity)
}

func TestSession_FailedLoginLeavesNoGhostSession(t *testing.T) {
	ctx := context.Background()
	store := repoimpl.NewMemoryKeyValueStore()
	identities := &failingIdentities{IdentityRepository: repoimpl.NewKVIdentityRepository(store, "")}
	session := NewSessionUseCase(identities, 10)

	_, err := session.Login(ctx, testToken, profileJSON(42), entity.RoleCustomer)
	require.NoError(t, err)

	identities.saveErr = fmt.Errorf("disk full")
	_, err = session.Login(ctx, testToken, profileJSON(5000000), entity.RoleMerchant)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.CodeInternal))

	assert.False(t, session.Current().IsAuthenticated)
	assert.Empty(t, session.Token())
	stored, err := identities.Load(ctx, entity.RoleCustomer)
	require.NoError(t, err)
	assert.True(t, stored.Empty())
}

func TestSession_SubscribersSeeChanges(t *testing.T) {
	ctx := context.Background()
	session, _, _ := newSessionFixture()

	var seen []entity.Session
	unsubscribe := session.Subscribe(func(s entity.Session) { seen = append(seen, s) })

	_, err := session.Login(ctx, testToken, profileJSON(42), entity.RoleCustomer)
	require.NoError(t, err)
	// same identity again is not a change
	assert.True(t, session.CheckAuthStatus(ctx, entity.RoleCustomer))
	require.NoError(t, session.Logout(ctx))

	require.Len(t, seen, 2)
	assert.True(t, seen[0].IsAuthenticated)
	assert.False(t, seen[1].IsAuthenticated)

	unsubscribe()
	_, err = session.Login(ctx, testToken, profileJSON(42), entity.RoleCustomer)
	require.NoError(t, err)
	assert.Len(t, seen, 2)
}

func TestSession_IndependentSessionsShareStorage(t *testing.T) {
	ctx := context.Background()
	store := repoimpl.NewMemoryKeyValueStore()
	identities := repoimpl.NewKVIdentityRepository(store, "")

	customerTab := NewSessionUseCase(identities, 10)
	customerTab.Navigate("/user")
	merchantTab := NewSessionUseCase(identities, 10)
	merchantTab.Navigate("/merchant")

	_, err := customerTab.Login(ctx, testToken, profileJSON(42), entity.RoleCustomer)
	require.NoError(t, err)
	assert.False(t, merchantTab.Initialize(ctx, ""))

	_, err = merchantTab.Login(ctx, testToken, profileJSON(1000001), entity.RoleMerchant)
	require.NoError(t, err)

	// the customer tab still holds its in-memory session until it re-checks
	assert.True(t, customerTab.Current().IsAuthenticated)
	assert.False(t, customerTab.CheckAuthStatus(ctx, ""))
}

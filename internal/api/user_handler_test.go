package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/task-api/internal/domain"
	"github.com/phrazzld/task-api/internal/service/auth"
	"github.com/phrazzld/task-api/internal/store"
)

type userHandlerFixture struct {
	handler  *UserHandler
	users    *memUserStore
	tasks    *memTaskStore
	sessions auth.SessionService
	codec    *auth.BcryptCodec
	mailer   *stubMailer
}

func newUserHandlerFixture(t *testing.T) *userHandlerFixture {
	t.Helper()

	tasks := newMemTaskStore()
	users := newMemUserStore()
	users.tasks = tasks

	codec := auth.NewBcryptCodec(4) // minimum cost keeps the tests fast
	sessions, err := auth.NewSessionService(
		"0123456789abcdef0123456789abcdef", users, codec)
	require.NoError(t, err)

	mailer := &stubMailer{}
	return &userHandlerFixture{
		handler:  NewUserHandler(users, sessions, codec, mailer),
		users:    users,
		tasks:    tasks,
		sessions: sessions,
		codec:    codec,
		mailer:   mailer,
	}
}

// register creates an account through the handler and returns the issued
// identity, mirroring what a real client would hold after signing up.
func (f *userHandlerFixture) register(t *testing.T, name, email, password string, age int) (*domain.User, string) {
	t.Helper()

	rec := httptest.NewRecorder()
	req := jsonRequest(t, http.MethodPost, "/users", RegisterRequest{
		Name: name, Email: email, Password: password, Age: age,
	})
	f.handler.Register(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp AuthResponse
	decodeBody(t, rec, &resp)

	user, err := f.users.GetByID(req.Context(), resp.User.ID)
	require.NoError(t, err)
	return user, resp.Token
}

func TestRegister(t *testing.T) {
	t.Run("creates user and issues session", func(t *testing.T) {
		f := newUserHandlerFixture(t)

		rec := httptest.NewRecorder()
		f.handler.Register(rec, jsonRequest(t, http.MethodPost, "/users", RegisterRequest{
			Name: "Alice", Email: "Alice@Example.COM", Password: "sufficiently-long", Age: 30,
		}))

		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var resp AuthResponse
		decodeBody(t, rec, &resp)
		assert.Equal(t, "Alice", resp.User.Name)
		assert.Equal(t, "alice@example.com", resp.User.Email, "email is stored canonical lowercase")
		assert.NotEmpty(t, resp.Token)

		// The raw password never survives registration.
		stored, err := f.users.GetByEmail(context.Background(), "alice@example.com")
		require.NoError(t, err)
		assert.Empty(t, stored.Password)
		assert.NoError(t, f.codec.Compare(stored.HashedPassword, "sufficiently-long"))

		assert.Equal(t, []string{"alice@example.com"}, f.mailer.welcomes)
		assert.NotContains(t, rec.Body.String(), "sufficiently-long")
	})

	t.Run("rejects duplicate email", func(t *testing.T) {
		f := newUserHandlerFixture(t)
		f.register(t, "Alice", "alice@example.com", "sufficiently-long", 30)

		rec := httptest.NewRecorder()
		f.handler.Register(rec, jsonRequest(t, http.MethodPost, "/users", RegisterRequest{
			Name: "Imposter", Email: "ALICE@example.com", Password: "another-secret", Age: 20,
		}))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "Email is already in use")
	})

	t.Run("rejects weak passwords", func(t *testing.T) {
		f := newUserHandlerFixture(t)

		tests := []struct {
			name     string
			password string
		}{
			{"too short", "short"},
			{"contains password", "myPASSword123"},
		}
		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				rec := httptest.NewRecorder()
				f.handler.Register(rec, jsonRequest(t, http.MethodPost, "/users", RegisterRequest{
					Name: "Bob", Email: "bob@example.com", Password: tc.password, Age: 20,
				}))
				assert.Equal(t, http.StatusBadRequest, rec.Code)
			})
		}
	})

	t.Run("rejects negative age", func(t *testing.T) {
		f := newUserHandlerFixture(t)

		rec := httptest.NewRecorder()
		f.handler.Register(rec, jsonRequest(t, http.MethodPost, "/users", RegisterRequest{
			Name: "Bob", Email: "bob@example.com", Password: "sufficiently-long", Age: -1,
		}))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects malformed body", func(t *testing.T) {
		f := newUserHandlerFixture(t)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/users", strings.NewReader("{not json"))
		f.handler.Register(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestLogin(t *testing.T) {
	t.Run("succeeds with correct credentials", func(t *testing.T) {
		f := newUserHandlerFixture(t)
		user, _ := f.register(t, "Alice", "alice@example.com", "sufficiently-long", 30)

		rec := httptest.NewRecorder()
		f.handler.Login(rec, jsonRequest(t, http.MethodPost, "/users/login", LoginRequest{
			Email: "alice@example.com", Password: "sufficiently-long",
		}))

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp AuthResponse
		decodeBody(t, rec, &resp)
		assert.Equal(t, user.ID, resp.User.ID)
		assert.NotEmpty(t, resp.Token)

		// Each login adds a session on top of the registration one.
		assert.Len(t, f.users.tokensOf(user.ID), 2)
	})

	t.Run("unknown email and wrong password are indistinguishable", func(t *testing.T) {
		f := newUserHandlerFixture(t)
		f.register(t, "Alice", "alice@example.com", "sufficiently-long", 30)

		wrongPassword := httptest.NewRecorder()
		f.handler.Login(wrongPassword, jsonRequest(t, http.MethodPost, "/users/login", LoginRequest{
			Email: "alice@example.com", Password: "not-the-password",
		}))

		unknownEmail := httptest.NewRecorder()
		f.handler.Login(unknownEmail, jsonRequest(t, http.MethodPost, "/users/login", LoginRequest{
			Email: "nobody@example.com", Password: "sufficiently-long",
		}))

		assert.Equal(t, http.StatusUnauthorized, wrongPassword.Code)
		assert.Equal(t, http.StatusUnauthorized, unknownEmail.Code)
		assert.Equal(t, wrongPassword.Body.String(), unknownEmail.Body.String(),
			"login failures must not reveal whether the email exists")
	})
}

func TestLogout(t *testing.T) {
	t.Run("revokes only the calling session", func(t *testing.T) {
		f := newUserHandlerFixture(t)
		user, first := f.register(t, "Alice", "alice@example.com", "sufficiently-long", 30)

		second, err := f.sessions.Issue(context.Background(), user.ID)
		require.NoError(t, err)

		rec := httptest.NewRecorder()
		req := asUser(jsonRequest(t, http.MethodPost, "/users/logout", nil), user, first)
		f.handler.Logout(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, []string{second}, f.users.tokensOf(user.ID),
			"the other device's session must survive")
	})

	t.Run("logout all ends every session", func(t *testing.T) {
		f := newUserHandlerFixture(t)
		user, token := f.register(t, "Alice", "alice@example.com", "sufficiently-long", 30)
		_, err := f.sessions.Issue(context.Background(), user.ID)
		require.NoError(t, err)

		rec := httptest.NewRecorder()
		req := asUser(jsonRequest(t, http.MethodPost, "/users/logoutall", nil), user, token)
		f.handler.LogoutAll(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, f.users.tokensOf(user.ID))
	})
}

func TestMe(t *testing.T) {
	f := newUserHandlerFixture(t)
	user, token := f.register(t, "Alice", "alice@example.com", "sufficiently-long", 30)

	rec := httptest.NewRecorder()
	req := asUser(httptest.NewRequest(http.MethodGet, "/users/me", nil), user, token)
	f.handler.Me(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp UserResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, user.ID, resp.ID)
	assert.Equal(t, "alice@example.com", resp.Email)
}

func TestUpdateMe(t *testing.T) {
	t.Run("applies allowed fields", func(t *testing.T) {
		f := newUserHandlerFixture(t)
		user, token := f.register(t, "Alice", "alice@example.com", "sufficiently-long", 30)

		rec := httptest.NewRecorder()
		req := asUser(jsonRequest(t, http.MethodPatch, "/users/me", map[string]interface{}{
			"name": "Alicia", "age": 31,
		}), user, token)
		f.handler.UpdateMe(rec, req)

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		stored, err := f.users.GetByID(req.Context(), user.ID)
		require.NoError(t, err)
		assert.Equal(t, "Alicia", stored.Name)
		assert.Equal(t, 31, stored.Age)
	})

	t.Run("rehashes an updated password", func(t *testing.T) {
		f := newUserHandlerFixture(t)
		user, token := f.register(t, "Alice", "alice@example.com", "sufficiently-long", 30)

		rec := httptest.NewRecorder()
		req := asUser(jsonRequest(t, http.MethodPatch, "/users/me", map[string]interface{}{
			"password": "brand-new-secret",
		}), user, token)
		f.handler.UpdateMe(rec, req)

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		stored, err := f.users.GetByID(req.Context(), user.ID)
		require.NoError(t, err)
		assert.NoError(t, f.codec.Compare(stored.HashedPassword, "brand-new-secret"))
		assert.Error(t, f.codec.Compare(stored.HashedPassword, "sufficiently-long"))
	})

	t.Run("rejects the whole patch on a disallowed field", func(t *testing.T) {
		f := newUserHandlerFixture(t)
		user, token := f.register(t, "Alice", "alice@example.com", "sufficiently-long", 30)

		rec := httptest.NewRecorder()
		req := asUser(jsonRequest(t, http.MethodPatch, "/users/me", map[string]interface{}{
			"name": "Mallory", "tokens": []string{},
		}), user, token)
		f.handler.UpdateMe(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)

		stored, err := f.users.GetByID(req.Context(), user.ID)
		require.NoError(t, err)
		assert.Equal(t, "Alice", stored.Name, "no field of a rejected patch may be applied")
	})

	t.Run("rejects a weak replacement password", func(t *testing.T) {
		f := newUserHandlerFixture(t)
		user, token := f.register(t, "Alice", "alice@example.com", "sufficiently-long", 30)

		rec := httptest.NewRecorder()
		req := asUser(jsonRequest(t, http.MethodPatch, "/users/me", map[string]interface{}{
			"password": "short",
		}), user, token)
		f.handler.UpdateMe(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)

		stored, err := f.users.GetByID(req.Context(), user.ID)
		require.NoError(t, err)
		assert.NoError(t, f.codec.Compare(stored.HashedPassword, "sufficiently-long"))
	})

	t.Run("rejects an empty patch", func(t *testing.T) {
		f := newUserHandlerFixture(t)
		user, token := f.register(t, "Alice", "alice@example.com", "sufficiently-long", 30)

		rec := httptest.NewRecorder()
		req := asUser(jsonRequest(t, http.MethodPatch, "/users/me", map[string]interface{}{}), user, token)
		f.handler.UpdateMe(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestDeleteMe(t *testing.T) {
	f := newUserHandlerFixture(t)
	user, token := f.register(t, "Alice", "alice@example.com", "sufficiently-long", 30)
	bystander, _ := f.register(t, "Bob", "bob@example.com", "sufficiently-long", 40)

	seedTask := func(ownerID uuid.UUID, title string) *domain.Task {
		task, err := domain.NewTask(ownerID, title, "")
		require.NoError(t, err)
		require.NoError(t, f.tasks.Create(context.Background(), task))
		return task
	}
	owned := seedTask(user.ID, "Buy milk")
	ownedToo := seedTask(user.ID, "Walk the dog")
	foreign := seedTask(bystander.ID, "File taxes")

	rec := httptest.NewRecorder()
	req := asUser(jsonRequest(t, http.MethodDelete, "/users/me", nil), user, token)
	f.handler.DeleteMe(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp UserResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, user.ID, resp.ID, "the deleted profile is returned")

	_, err := f.users.GetByID(req.Context(), user.ID)
	assert.Error(t, err)
	assert.Equal(t, []string{"alice@example.com"}, f.mailer.goodbyes)

	// The account's tasks went with it; the other owner's survived.
	_, err = f.tasks.GetByOwner(context.Background(), user.ID, owned.ID)
	assert.ErrorIs(t, err, store.ErrTaskNotFound)
	_, err = f.tasks.GetByOwner(context.Background(), user.ID, ownedToo.ID)
	assert.ErrorIs(t, err, store.ErrTaskNotFound)
	kept, err := f.tasks.GetByOwner(context.Background(), bystander.ID, foreign.ID)
	require.NoError(t, err)
	assert.Equal(t, "File taxes", kept.Title)
}

func TestAvatar(t *testing.T) {
	newRouter := func(f *userHandlerFixture) chi.Router {
		r := chi.NewRouter()
		r.Get("/users/{id}/avatar", f.handler.GetAvatar)
		return r
	}

	t.Run("upload, fetch and delete round trip", func(t *testing.T) {
		f := newUserHandlerFixture(t)
		user, token := f.register(t, "Alice", "alice@example.com", "sufficiently-long", 30)
		avatar := []byte{0x89, 'P', 'N', 'G'}

		rec := httptest.NewRecorder()
		req := asUser(httptest.NewRequest(http.MethodPost, "/users/me/avatar", bytes.NewReader(avatar)), user, token)
		f.handler.UploadAvatar(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		// Fetching is public, no identity on the request.
		rec = httptest.NewRecorder()
		newRouter(f).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users/"+user.ID.String()+"/avatar", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
		assert.Equal(t, avatar, rec.Body.Bytes())

		rec = httptest.NewRecorder()
		req = asUser(httptest.NewRequest(http.MethodDelete, "/users/me/avatar", nil), user, token)
		f.handler.DeleteAvatar(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		rec = httptest.NewRecorder()
		newRouter(f).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users/"+user.ID.String()+"/avatar", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("rejects an oversized upload", func(t *testing.T) {
		f := newUserHandlerFixture(t)
		user, token := f.register(t, "Alice", "alice@example.com", "sufficiently-long", 30)

		rec := httptest.NewRecorder()
		big := bytes.NewReader(make([]byte, maxAvatarBytes+1))
		req := asUser(httptest.NewRequest(http.MethodPost, "/users/me/avatar", big), user, token)
		f.handler.UploadAvatar(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)

		stored, err := f.users.GetByID(req.Context(), user.ID)
		require.NoError(t, err)
		assert.Empty(t, stored.Avatar)
	})

	t.Run("missing user and missing avatar both 404", func(t *testing.T) {
		f := newUserHandlerFixture(t)
		user, _ := f.register(t, "Alice", "alice@example.com", "sufficiently-long", 30)

		noAvatar := httptest.NewRecorder()
		newRouter(f).ServeHTTP(noAvatar, httptest.NewRequest(http.MethodGet, "/users/"+user.ID.String()+"/avatar", nil))

		noUser := httptest.NewRecorder()
		newRouter(f).ServeHTTP(noUser, httptest.NewRequest(http.MethodGet, "/users/"+uuid.NewString()+"/avatar", nil))

		assert.Equal(t, http.StatusNotFound, noAvatar.Code)
		assert.Equal(t, http.StatusNotFound, noUser.Code)
		assert.Equal(t, noAvatar.Body.String(), noUser.Body.String())
	})
}

package api

import (
	"context"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/phrazzld/task-api/internal/api/shared"
	"github.com/phrazzld/task-api/internal/domain"
	"github.com/phrazzld/task-api/internal/platform/logger"
	"github.com/phrazzld/task-api/internal/service/auth"
	"github.com/phrazzld/task-api/internal/store"
)

// maxAvatarBytes caps uploaded avatar blobs at 1MB.
const maxAvatarBytes = 1_000_000

// AccountMailer sends the account lifecycle mails. Sends are fire-and-forget
// from the handlers' perspective: failures are logged by the implementation
// and never turn into request failures.
type AccountMailer interface {
	SendWelcome(ctx context.Context, email, name string)
	SendGoodbye(ctx context.Context, email, name string)
}

// UserHandler handles registration, login, session and profile requests.
type UserHandler struct {
	userStore store.UserStore
	sessions  auth.SessionService
	hasher    auth.PasswordHasher
	mailer    AccountMailer
	validator *validator.Validate
}

// NewUserHandler creates a new UserHandler with the given dependencies.
func NewUserHandler(
	userStore store.UserStore,
	sessions auth.SessionService,
	hasher auth.PasswordHasher,
	mailer AccountMailer,
) *UserHandler {
	return &UserHandler{
		userStore: userStore,
		sessions:  sessions,
		hasher:    hasher,
		mailer:    mailer,
		validator: validator.New(),
	}
}

// Register handles POST /users.
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	user, err := domain.NewUser(req.Name, req.Email, req.Password, req.Age)
	if err != nil {
		respondWithMappedError(w, r, err)
		return
	}

	hashed, err := h.hasher.Hash(user.Password)
	if err != nil {
		respondWithMappedError(w, r, err)
		return
	}
	user.HashedPassword = hashed
	user.Password = ""

	if err := h.userStore.Create(r.Context(), user); err != nil {
		respondWithMappedError(w, r, err)
		return
	}

	h.mailer.SendWelcome(r.Context(), user.Email, user.Name)

	token, err := h.sessions.Issue(r.Context(), user.ID)
	if err != nil {
		respondWithMappedError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusCreated, AuthResponse{
		User:  NewUserResponse(user),
		Token: token,
	})
}

// Login handles POST /users/login.
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	user, err := h.sessions.FindByCredentials(r.Context(), req.Email, req.Password)
	if err != nil {
		respondWithMappedError(w, r, err)
		return
	}

	token, err := h.sessions.Issue(r.Context(), user.ID)
	if err != nil {
		respondWithMappedError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, AuthResponse{
		User:  NewUserResponse(user),
		Token: token,
	})
}

// Logout handles POST /users/logout. Only the session that made the call is
// revoked; other devices stay signed in.
func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	user, token, ok := identityFromContext(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Please authenticate")
		return
	}

	if err := h.sessions.Revoke(r.Context(), user.ID, token); err != nil {
		respondWithMappedError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, nil)
}

// LogoutAll handles POST /users/logoutall, ending every session at once.
func (h *UserHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	user, _, ok := identityFromContext(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Please authenticate")
		return
	}

	if err := h.sessions.RevokeAll(r.Context(), user.ID); err != nil {
		respondWithMappedError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, nil)
}

// Me handles GET /users/me.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, _, ok := identityFromContext(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Please authenticate")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, NewUserResponse(user))
}

// userPatchFields is the allow-list for PATCH /users/me.
var userPatchFields = []string{"name", "email", "password", "age"}

// UpdateMe handles PATCH /users/me. The whole patch is validated against the
// allow-list before any field is applied.
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	user, _, ok := identityFromContext(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Please authenticate")
		return
	}

	patch, err := DecodePatch(r, userPatchFields...)
	if err != nil {
		respondWithMappedError(w, r, err)
		return
	}

	if raw, ok := patch["name"]; ok {
		if err := unmarshalField(raw, "name", &user.Name); err != nil {
			respondWithMappedError(w, r, err)
			return
		}
	}
	if raw, ok := patch["email"]; ok {
		var email string
		if err := unmarshalField(raw, "email", &email); err != nil {
			respondWithMappedError(w, r, err)
			return
		}
		user.Email = domain.NormalizeEmail(email)
	}
	if raw, ok := patch["age"]; ok {
		if err := unmarshalField(raw, "age", &user.Age); err != nil {
			respondWithMappedError(w, r, err)
			return
		}
	}
	if raw, ok := patch["password"]; ok {
		var password string
		if err := unmarshalField(raw, "password", &password); err != nil {
			respondWithMappedError(w, r, err)
			return
		}
		if err := domain.ValidatePassword(password); err != nil {
			respondWithMappedError(w, r, err)
			return
		}
		hashed, err := h.hasher.Hash(password)
		if err != nil {
			respondWithMappedError(w, r, err)
			return
		}
		user.HashedPassword = hashed
	}

	if err := h.userStore.Update(r.Context(), user); err != nil {
		respondWithMappedError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, NewUserResponse(user))
}

// DeleteMe handles DELETE /users/me. The store removes the user's tasks and
// the account atomically.
func (h *UserHandler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	user, _, ok := identityFromContext(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Please authenticate")
		return
	}

	if err := h.userStore.Delete(r.Context(), user.ID); err != nil {
		respondWithMappedError(w, r, err)
		return
	}

	h.mailer.SendGoodbye(r.Context(), user.Email, user.Name)

	shared.RespondWithJSON(w, r, http.StatusOK, NewUserResponse(user))
}

// UploadAvatar handles POST /users/me/avatar. The raw body is stored as-is;
// no transcoding happens server-side.
func (h *UserHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	user, _, ok := identityFromContext(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Please authenticate")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxAvatarBytes))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Avatar must be at most 1MB")
		return
	}
	if len(body) == 0 {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Avatar data is required")
		return
	}

	if err := h.userStore.UpdateAvatar(r.Context(), user.ID, body); err != nil {
		respondWithMappedError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, nil)
}

// DeleteAvatar handles DELETE /users/me/avatar.
func (h *UserHandler) DeleteAvatar(w http.ResponseWriter, r *http.Request) {
	user, _, ok := identityFromContext(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Please authenticate")
		return
	}

	if err := h.userStore.UpdateAvatar(r.Context(), user.ID, nil); err != nil {
		respondWithMappedError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, nil)
}

// GetAvatar handles GET /users/{id}/avatar. Public; a missing user and a
// user without an avatar look the same.
func (h *UserHandler) GetAvatar(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusNotFound, "Not found")
		return
	}

	user, err := h.userStore.GetByID(r.Context(), id)
	if err != nil || len(user.Avatar) == 0 {
		shared.RespondWithError(w, r, http.StatusNotFound, "Not found")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(user.Avatar); err != nil {
		logger.FromContext(r.Context()).Warn("failed to write avatar response", "error", err)
	}
}

// identityFromContext pulls the authenticated user and raw token deposited
// by the auth middleware.
func identityFromContext(r *http.Request) (*domain.User, string, bool) {
	user, ok := shared.UserFromContext(r.Context())
	if !ok {
		return nil, "", false
	}
	token, ok := shared.TokenFromContext(r.Context())
	if !ok {
		return nil, "", false
	}
	return user, token, true
}

package conduit_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"golang.org/x/crypto/bcrypt"

	"github.com/realworld-apps/conduit"
)

type testServer struct {
	app *fiber.App
	db  *bun.DB
}

type testConfig struct{}

func (testConfig) GetSigningKey() string      { return "test-signing-key" }
func (testConfig) GetTokenTTL() time.Duration { return time.Hour }
func (testConfig) GetIssuer() string          { return "" }
func (testConfig) GetAuthScheme() string      { return "Token" }
func (testConfig) GetContextKey() string      { return "user" }
func (testConfig) GetTokenLookup() string     { return "header:Authorization" }
func (testConfig) GetBcryptCost() int         { return bcrypt.MinCost }

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cfg := testConfig{}

	db := setupTestDB(t)
	repo := conduit.NewRepositoryManager(db)

	hasher := conduit.NewHasher(cfg.GetBcryptCost())
	tokens := conduit.NewTokenService(
		[]byte(cfg.GetSigningKey()),
		cfg.GetTokenTTL(),
		cfg.GetIssuer(),
		testLogger{},
	)

	accounts := conduit.NewAccounts(repo, hasher, tokens).WithLogger(testLogger{})
	profiles := conduit.NewProfiles(repo).WithLogger(testLogger{})

	controller := conduit.NewController(
		conduit.WithAccounts(accounts),
		conduit.WithProfiles(profiles),
		conduit.WithTags(repo.Tags()),
		conduit.WithControllerLogger(testLogger{}),
		conduit.WithContextKey(cfg.GetContextKey()),
	)

	app := fiber.New()
	conduit.RegisterRoutes(app, controller,
		conduit.ProtectedRoute(cfg, tokens),
		conduit.OptionalRoute(cfg, tokens),
	)

	return &testServer{app: app, db: db}
}

func (s *testServer) request(t *testing.T, method, target, token string, payload any) *http.Response {
	t.Helper()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, target, body)
	if payload != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Token "+token)
	}

	res, err := s.app.Test(req, -1)
	require.NoError(t, err)
	return res
}

func decodeBody(t *testing.T, res *http.Response, out any) {
	t.Helper()
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, out), "body: %s", raw)
}

type userEnvelope struct {
	User struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Bio      string `json:"bio"`
		Image    string `json:"image"`
		Token    string `json:"token"`
	} `json:"user"`
}

type profileEnvelope struct {
	Profile struct {
		Username  string `json:"username"`
		Bio       string `json:"bio"`
		Image     string `json:"image"`
		Following bool   `json:"following"`
	} `json:"profile"`
}

type messageEnvelope struct {
	Message string `json:"message"`
}

func (s *testServer) register(t *testing.T, username, email, password string) userEnvelope {
	t.Helper()

	res := s.request(t, http.MethodPost, "/users", "", fiber.Map{
		"username": username,
		"email":    email,
		"password": password,
	})
	require.Equal(t, http.StatusCreated, res.StatusCode)

	var out userEnvelope
	decodeBody(t, res, &out)
	return out
}

func TestHTTP_Register(t *testing.T) {
	t.Run("returns the created account with a token", func(t *testing.T) {
		srv := newTestServer(t)

		out := srv.register(t, "jake", "jake@jake.jake", "jakejake")
		assert.Equal(t, "jake", out.User.Username)
		assert.Equal(t, "jake@jake.jake", out.User.Email)
		assert.Equal(t, "", out.User.Bio)
		assert.Equal(t, "", out.User.Image)
		assert.NotEmpty(t, out.User.Token)
	})

	t.Run("rejects a duplicate username", func(t *testing.T) {
		srv := newTestServer(t)
		srv.register(t, "jake", "jake@jake.jake", "jakejake")

		res := srv.request(t, http.MethodPost, "/users", "", fiber.Map{
			"username": "jake",
			"email":    "other@jake.jake",
			"password": "jakejake",
		})
		assert.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)

		var out messageEnvelope
		decodeBody(t, res, &out)
		assert.Equal(t, "Username is already used", out.Message)
	})

	t.Run("rejects a duplicate email", func(t *testing.T) {
		srv := newTestServer(t)
		srv.register(t, "jake", "jake@jake.jake", "jakejake")

		res := srv.request(t, http.MethodPost, "/users", "", fiber.Map{
			"username": "other",
			"email":    "jake@jake.jake",
			"password": "jakejake",
		})
		assert.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)

		var out messageEnvelope
		decodeBody(t, res, &out)
		assert.Equal(t, "Email is already used", out.Message)
	})

	t.Run("rejects an incomplete payload", func(t *testing.T) {
		srv := newTestServer(t)

		res := srv.request(t, http.MethodPost, "/users", "", fiber.Map{
			"username": "jake",
		})
		assert.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)
	})

	t.Run("rejects a body that does not parse", func(t *testing.T) {
		srv := newTestServer(t)

		req := httptest.NewRequest(http.MethodPost, "/users", bytes.NewReader([]byte("{not json")))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

		res, err := srv.app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)

		var out messageEnvelope
		decodeBody(t, res, &out)
		assert.Equal(t, "Parse error occurred", out.Message)
	})
}

func TestHTTP_Login(t *testing.T) {
	t.Run("issues a token for valid credentials", func(t *testing.T) {
		srv := newTestServer(t)
		srv.register(t, "jake", "jake@jake.jake", "jakejake")

		res := srv.request(t, http.MethodPost, "/users/login", "", fiber.Map{
			"user": fiber.Map{"email": "jake@jake.jake", "password": "jakejake"},
		})
		assert.Equal(t, http.StatusOK, res.StatusCode)

		var out userEnvelope
		decodeBody(t, res, &out)
		assert.Equal(t, "jake", out.User.Username)
		assert.NotEmpty(t, out.User.Token)
	})

	t.Run("wrong password and unknown email fail identically", func(t *testing.T) {
		srv := newTestServer(t)
		srv.register(t, "jake", "jake@jake.jake", "jakejake")

		for _, payload := range []fiber.Map{
			{"user": fiber.Map{"email": "jake@jake.jake", "password": "wrong"}},
			{"user": fiber.Map{"email": "nobody@jake.jake", "password": "jakejake"}},
			{"user": fiber.Map{"email": "", "password": ""}},
		} {
			res := srv.request(t, http.MethodPost, "/users/login", "", payload)
			assert.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)

			var out messageEnvelope
			decodeBody(t, res, &out)
			assert.Equal(t, "email or password is invalid", out.Message)
		}
	})
}

func TestHTTP_CurrentUser(t *testing.T) {
	t.Run("requires a token", func(t *testing.T) {
		srv := newTestServer(t)

		res := srv.request(t, http.MethodGet, "/user", "", nil)
		assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

		raw, err := io.ReadAll(res.Body)
		require.NoError(t, err)
		res.Body.Close()
		assert.JSONEq(t, `{"_tag":"Unauthorized"}`, string(raw))
	})

	t.Run("rejects a Bearer scheme", func(t *testing.T) {
		srv := newTestServer(t)
		registered := srv.register(t, "jake", "jake@jake.jake", "jakejake")

		req := httptest.NewRequest(http.MethodGet, "/user", nil)
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+registered.User.Token)

		res, err := srv.app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	})

	t.Run("returns the account behind the token", func(t *testing.T) {
		srv := newTestServer(t)
		registered := srv.register(t, "jake", "jake@jake.jake", "jakejake")

		res := srv.request(t, http.MethodGet, "/user", registered.User.Token, nil)
		assert.Equal(t, http.StatusOK, res.StatusCode)

		var out userEnvelope
		decodeBody(t, res, &out)
		assert.Equal(t, "jake", out.User.Username)
		assert.Equal(t, "jake@jake.jake", out.User.Email)
		assert.NotEmpty(t, out.User.Token)
	})

	t.Run("updates the profile in place", func(t *testing.T) {
		srv := newTestServer(t)
		registered := srv.register(t, "jake", "jake@jake.jake", "jakejake")

		res := srv.request(t, http.MethodPut, "/user", registered.User.Token, fiber.Map{
			"bio":   "I work at statefarm",
			"image": "https://i.stack.imgur.com/xHWG8.jpg",
		})
		assert.Equal(t, http.StatusOK, res.StatusCode)

		var out userEnvelope
		decodeBody(t, res, &out)
		assert.Equal(t, "I work at statefarm", out.User.Bio)
		assert.Equal(t, "https://i.stack.imgur.com/xHWG8.jpg", out.User.Image)

		res = srv.request(t, http.MethodGet, "/user", out.User.Token, nil)
		assert.Equal(t, http.StatusOK, res.StatusCode)

		decodeBody(t, res, &out)
		assert.Equal(t, "I work at statefarm", out.User.Bio)
	})

	t.Run("rejects renaming onto a taken username", func(t *testing.T) {
		srv := newTestServer(t)
		srv.register(t, "jake", "jake@jake.jake", "jakejake")
		rick := srv.register(t, "rick", "rick@rick.rick", "jakejake")

		// no pre-check on update: the store constraint is the only guard
		res := srv.request(t, http.MethodPut, "/user", rick.User.Token, fiber.Map{
			"username": "jake",
		})
		assert.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)

		var out messageEnvelope
		decodeBody(t, res, &out)
		assert.Equal(t, "Username is already used", out.Message)
	})

	t.Run("rejects moving onto a taken email", func(t *testing.T) {
		srv := newTestServer(t)
		srv.register(t, "jake", "jake@jake.jake", "jakejake")
		rick := srv.register(t, "rick", "rick@rick.rick", "jakejake")

		res := srv.request(t, http.MethodPut, "/user", rick.User.Token, fiber.Map{
			"email": "jake@jake.jake",
		})
		assert.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)

		var out messageEnvelope
		decodeBody(t, res, &out)
		assert.Equal(t, "Email is already used", out.Message)
	})

	t.Run("rejects an explicit empty password patch", func(t *testing.T) {
		srv := newTestServer(t)
		registered := srv.register(t, "jake", "jake@jake.jake", "jakejake")

		res := srv.request(t, http.MethodPut, "/user", registered.User.Token, fiber.Map{
			"password": "",
		})
		assert.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)
	})
}

func TestHTTP_Tags(t *testing.T) {
	t.Run("lists the seeded tags", func(t *testing.T) {
		srv := newTestServer(t)
		seedTags(t, srv.db, "reactjs", "angularjs")

		res := srv.request(t, http.MethodGet, "/tags", "", nil)
		assert.Equal(t, http.StatusOK, res.StatusCode)

		var out struct {
			Tags []string `json:"tags"`
		}
		decodeBody(t, res, &out)
		assert.Equal(t, []string{"reactjs", "angularjs"}, out.Tags)
	})

	t.Run("store failures keep the structured error shape", func(t *testing.T) {
		srv := newTestServer(t)

		_, err := srv.db.ExecContext(context.Background(), `DROP TABLE "Tag"`)
		require.NoError(t, err)

		res := srv.request(t, http.MethodGet, "/tags", "", nil)
		assert.Equal(t, http.StatusInternalServerError, res.StatusCode)

		var out messageEnvelope
		decodeBody(t, res, &out)
		assert.Equal(t, "internal server error", out.Message)
	})
}

func TestHTTP_Profiles(t *testing.T) {
	t.Run("anonymous profile lookup", func(t *testing.T) {
		srv := newTestServer(t)
		srv.register(t, "celeb_jake", "celeb@jake.jake", "jakejake")

		res := srv.request(t, http.MethodGet, "/profiles/celeb_jake", "", nil)
		assert.Equal(t, http.StatusOK, res.StatusCode)

		var out profileEnvelope
		decodeBody(t, res, &out)
		assert.Equal(t, "celeb_jake", out.Profile.Username)
		assert.False(t, out.Profile.Following)
	})

	t.Run("authenticated lookup reflects the viewer", func(t *testing.T) {
		srv := newTestServer(t)
		viewer := srv.register(t, "jake", "jake@jake.jake", "jakejake")
		srv.register(t, "celeb_jake", "celeb@jake.jake", "jakejake")

		res := srv.request(t, http.MethodPost, "/profiles/celeb_jake/follow", viewer.User.Token, nil)
		require.Equal(t, http.StatusOK, res.StatusCode)
		res.Body.Close()

		res = srv.request(t, http.MethodGet, "/profiles/celeb_jake", viewer.User.Token, nil)
		assert.Equal(t, http.StatusOK, res.StatusCode)

		var out profileEnvelope
		decodeBody(t, res, &out)
		assert.True(t, out.Profile.Following)

		// the same read without a token stays anonymous
		res = srv.request(t, http.MethodGet, "/profiles/celeb_jake", "", nil)
		assert.Equal(t, http.StatusOK, res.StatusCode)
		decodeBody(t, res, &out)
		assert.False(t, out.Profile.Following)
	})

	t.Run("invalid token on a profile read falls back to anonymous", func(t *testing.T) {
		srv := newTestServer(t)
		srv.register(t, "celeb_jake", "celeb@jake.jake", "jakejake")

		res := srv.request(t, http.MethodGet, "/profiles/celeb_jake", "tampered-token", nil)
		assert.Equal(t, http.StatusOK, res.StatusCode)

		var out profileEnvelope
		decodeBody(t, res, &out)
		assert.False(t, out.Profile.Following)
	})

	t.Run("unknown profile lookup", func(t *testing.T) {
		srv := newTestServer(t)

		res := srv.request(t, http.MethodGet, "/profiles/nobody", "", nil)
		assert.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)

		var out messageEnvelope
		decodeBody(t, res, &out)
		assert.Equal(t, "User not found", out.Message)
	})

	t.Run("follow and unfollow round trip", func(t *testing.T) {
		srv := newTestServer(t)
		viewer := srv.register(t, "jake", "jake@jake.jake", "jakejake")
		srv.register(t, "celeb_jake", "celeb@jake.jake", "jakejake")

		res := srv.request(t, http.MethodPost, "/profiles/celeb_jake/follow", viewer.User.Token, nil)
		assert.Equal(t, http.StatusOK, res.StatusCode)

		var out profileEnvelope
		decodeBody(t, res, &out)
		assert.True(t, out.Profile.Following)

		res = srv.request(t, http.MethodGet, "/profiles/celeb_jake", viewer.User.Token, nil)
		assert.Equal(t, http.StatusOK, res.StatusCode)
		decodeBody(t, res, &out)
		assert.True(t, out.Profile.Following)

		res = srv.request(t, http.MethodDelete, "/profiles/celeb_jake", viewer.User.Token, nil)
		assert.Equal(t, http.StatusOK, res.StatusCode)
		decodeBody(t, res, &out)
		assert.False(t, out.Profile.Following)
	})

	t.Run("follow requires a token", func(t *testing.T) {
		srv := newTestServer(t)
		srv.register(t, "celeb_jake", "celeb@jake.jake", "jakejake")

		res := srv.request(t, http.MethodPost, "/profiles/celeb_jake/follow", "", nil)
		assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	})
}

package conduit

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"

	"github.com/realworld-apps/conduit/middleware/tokenware"
)

// Controller binds the account, tag, and profile services to the HTTP
// surface. All handler failures funnel through renderError, the single
// boundary that maps rich errors to the response taxonomy.
type Controller struct {
	Debug      bool
	Logger     Logger
	Accounts   *Accounts
	Profiles   *Profiles
	Tags       Tags
	ContextKey string
}

type ControllerOption func(*Controller) *Controller

func NewController(opts ...ControllerOption) *Controller {
	c := &Controller{
		Logger:     defLogger{},
		ContextKey: "user",
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Accounts == nil {
		panic("Missing Accounts service in conduit controller...")
	}

	if c.Profiles == nil {
		panic("Missing Profiles service in conduit controller...")
	}

	if c.Tags == nil {
		panic("Missing Tags repository in conduit controller...")
	}

	return c
}

func WithAccounts(accounts *Accounts) ControllerOption {
	return func(c *Controller) *Controller {
		c.Accounts = accounts
		return c
	}
}

func WithProfiles(profiles *Profiles) ControllerOption {
	return func(c *Controller) *Controller {
		c.Profiles = profiles
		return c
	}
}

func WithTags(tags Tags) ControllerOption {
	return func(c *Controller) *Controller {
		c.Tags = tags
		return c
	}
}

func WithControllerLogger(logger Logger) ControllerOption {
	return func(c *Controller) *Controller {
		c.Logger = logger
		return c
	}
}

func WithContextKey(key string) ControllerOption {
	return func(c *Controller) *Controller {
		c.ContextKey = key
		return c
	}
}

// RegisterRoutes mounts the API. The protected middleware runs before every
// handler that requires a current user; the optional middleware resolves the
// viewer on profile reads without rejecting anonymous requests.
func RegisterRoutes(app *fiber.App, controller *Controller, protected, optional fiber.Handler) {
	app.Post("/users", controller.CreateUser)
	app.Post("/users/login", controller.Login)
	app.Get("/user", protected, controller.GetCurrentUser)
	app.Put("/user", protected, controller.UpdateCurrentUser)

	app.Get("/tags", controller.GetTags)

	app.Get("/profiles/:username", optional, controller.GetProfile)
	app.Post("/profiles/:username/follow", protected, controller.FollowUser)
	app.Delete("/profiles/:username", protected, controller.UnfollowUser)
}

// NewUserRequest is the registration payload
type NewUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate will run validation rules
func (r NewUserRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required),
		validation.Field(&r.Email, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

func (a *Controller) CreateUser(c *fiber.Ctx) error {
	payload := new(NewUserRequest)

	if err := c.BodyParser(payload); err != nil {
		a.Logger.Error("create user parse payload", "error", err)
		return a.renderError(c, ErrParse)
	}

	if err := payload.Validate(); err != nil {
		a.Logger.Error("create user validate payload", "error", err)
		return a.renderError(c, validationError(err))
	}

	if a.Debug {
		fmt.Println("======= REGISTER ======")
		fmt.Println(print.MaybePrettyJSON(payload))
		fmt.Println("=======================")
	}

	view, err := a.Accounts.Register(c.Context(), payload.Username, payload.Email, payload.Password)
	if err != nil {
		return a.renderError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(userResponse{User: view})
}

// LoginUserRequest is the login payload; the original API nests the
// credentials under a user envelope.
type LoginUserRequest struct {
	User struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	} `json:"user"`
}

// Validate will run validation rules
func (r LoginUserRequest) Validate() error {
	return validation.ValidateStruct(&r.User,
		validation.Field(&r.User.Email, validation.Required),
		validation.Field(&r.User.Password, validation.Required),
	)
}

func (a *Controller) Login(c *fiber.Ctx) error {
	payload := new(LoginUserRequest)

	if err := c.BodyParser(payload); err != nil {
		a.Logger.Error("login parse payload", "error", err)
		return a.renderError(c, ErrParse)
	}

	if err := payload.Validate(); err != nil {
		return a.renderError(c, ErrInvalidCredentials)
	}

	view, err := a.Accounts.Login(c.Context(), payload.User.Email, payload.User.Password)
	if err != nil {
		return a.renderError(c, err)
	}

	return c.JSON(userResponse{User: view})
}

func (a *Controller) GetCurrentUser(c *fiber.Ctx) error {
	current, err := a.currentUser(c)
	if err != nil {
		return a.renderError(c, err)
	}

	view, err := a.Accounts.CurrentAccount(c.Context(), current)
	if err != nil {
		return a.renderError(c, err)
	}

	return c.JSON(userResponse{User: view})
}

// UpdateUserRequest is the partial profile update payload.
type UpdateUserRequest struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
	Bio      *string `json:"bio"`
	Image    *string `json:"image"`
}

// Validate will run validation rules
func (r UpdateUserRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.NilOrNotEmpty),
		validation.Field(&r.Password, validation.NilOrNotEmpty),
	)
}

func (a *Controller) UpdateCurrentUser(c *fiber.Ctx) error {
	current, err := a.currentUser(c)
	if err != nil {
		return a.renderError(c, err)
	}

	payload := new(UpdateUserRequest)
	if err := c.BodyParser(payload); err != nil {
		a.Logger.Error("update user parse payload", "error", err)
		return a.renderError(c, ErrParse)
	}

	if err := payload.Validate(); err != nil {
		a.Logger.Error("update user validate payload", "error", err)
		return a.renderError(c, validationError(err))
	}

	view, err := a.Accounts.UpdateAccount(c.Context(), current, UpdateAccountRequest{
		Username: payload.Username,
		Email:    payload.Email,
		Password: payload.Password,
		Bio:      payload.Bio,
		Image:    payload.Image,
	})
	if err != nil {
		return a.renderError(c, err)
	}

	return c.JSON(userResponse{User: view})
}

func (a *Controller) GetTags(c *fiber.Ctx) error {
	names, err := a.Tags.List(c.Context())
	if err != nil {
		return a.renderError(c, errors.Wrap(err, errors.CategoryInternal, "internal server error"))
	}

	return c.JSON(tagsResponse{Tags: names})
}

func (a *Controller) GetProfile(c *fiber.Ctx) error {
	// pre-auth endpoint: the viewer is optional and only shapes `following`
	viewer, _ := a.optionalUser(c)

	view, err := a.Profiles.GetProfile(c.Context(), viewer, c.Params("username"))
	if err != nil {
		return a.renderError(c, err)
	}

	return c.JSON(profileResponse{Profile: view})
}

func (a *Controller) FollowUser(c *fiber.Ctx) error {
	current, err := a.currentUser(c)
	if err != nil {
		return a.renderError(c, err)
	}

	view, err := a.Profiles.Follow(c.Context(), current, c.Params("username"))
	if err != nil {
		return a.renderError(c, err)
	}

	return c.JSON(profileResponse{Profile: view})
}

func (a *Controller) UnfollowUser(c *fiber.Ctx) error {
	current, err := a.currentUser(c)
	if err != nil {
		return a.renderError(c, err)
	}

	view, err := a.Profiles.Unfollow(c.Context(), current, c.Params("username"))
	if err != nil {
		return a.renderError(c, err)
	}

	return c.JSON(profileResponse{Profile: view})
}

// currentUser resolves the identity the authorization middleware stored for
// this request and threads it to services as an explicit value. The resolved
// user is cached in the request context for the rest of the request.
func (a *Controller) currentUser(c *fiber.Ctx) (*CurrentUser, error) {
	if current, ok := CurrentUserFromContext(c.UserContext()); ok {
		return current, nil
	}

	claims, ok := tokenware.ClaimsFromLocals(c, a.ContextKey)
	if !ok {
		return nil, ErrTokenMalformed
	}

	authClaims, ok := claims.(AuthClaims)
	if !ok {
		return nil, ErrTokenMalformed
	}

	current, err := CurrentUserFromClaims(authClaims)
	if err != nil {
		return nil, err
	}

	c.SetUserContext(WithCurrentUser(c.UserContext(), current))

	return current, nil
}

func (a *Controller) optionalUser(c *fiber.Ctx) (*CurrentUser, bool) {
	current, err := a.currentUser(c)
	if err != nil {
		return nil, false
	}
	return current, true
}

type userResponse struct {
	User *AccountView `json:"user"`
}

type profileResponse struct {
	Profile *ProfileView `json:"profile"`
}

type tagsResponse struct {
	Tags []string `json:"tags"`
}

type messageBody struct {
	Message string `json:"message"`
}

func (a *Controller) renderError(c *fiber.Ctx, err error) error {
	status := HTTPStatus(err)

	if status == fiber.StatusUnauthorized {
		return c.Status(status).JSON(tokenware.Unauthorized{Tag: "Unauthorized"})
	}

	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		a.Logger.Error("unclassified handler error", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(messageBody{Message: "internal server error"})
	}

	if status == fiber.StatusInternalServerError {
		a.Logger.Error("internal handler error", "error", err, "text_code", richErr.TextCode)
	}

	return c.Status(status).JSON(messageBody{Message: richErr.Message})
}

// validationError converts an ozzo validation result into the 422 taxonomy.
func validationError(err error) error {
	return errors.Wrap(err, errors.CategoryValidation, err.Error())
}

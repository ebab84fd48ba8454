package auth

import (
	"bytes"
	"io"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-router"
)

// ProfileControllerRoutes holds the route paths for the account API.
type ProfileControllerRoutes struct {
	Me       string
	MeAvatar string
	Avatar   string
	List     string
}

// ProfileController exposes account management as a JSON API. All routes
// expect the auth gate to have run; handlers resolve the caller from the
// verified claims stored on the request.
type ProfileController struct {
	Logger     Logger
	Profiles   *ProfileService
	Routes     *ProfileControllerRoutes
	ContextKey string
}

type ProfileControllerOption func(*ProfileController) *ProfileController

// WithProfileLogger sets the controller logger.
func WithProfileLogger(logger Logger) ProfileControllerOption {
	return func(c *ProfileController) *ProfileController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

// WithProfileService sets the profile service.
func WithProfileService(profiles *ProfileService) ProfileControllerOption {
	return func(c *ProfileController) *ProfileController {
		c.Profiles = profiles
		return c
	}
}

// WithProfileContextKey sets the locals key the auth gate stores claims under.
func WithProfileContextKey(key string) ProfileControllerOption {
	return func(c *ProfileController) *ProfileController {
		if key != "" {
			c.ContextKey = key
		}
		return c
	}
}

func NewProfileController(opts ...ProfileControllerOption) *ProfileController {
	c := &ProfileController{
		Logger:     defLogger{},
		ContextKey: "user",
		Routes: &ProfileControllerRoutes{
			Me:       "/users/me",
			MeAvatar: "/users/me/avatar",
			Avatar:   "/users/:username/avatar",
			List:     "/users",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Profiles == nil {
		panic("Missing ProfileService in profile controller...")
	}

	return c
}

// RegisterProfileRoutes mounts the account API on the given router.
func RegisterProfileRoutes[T any](app router.Router[T], opts ...ProfileControllerOption) *ProfileController {
	controller := NewProfileController(opts...)

	app.Get(controller.Routes.Me, controller.Me).SetName("users.me.get")
	app.Put(controller.Routes.Me, controller.UpdateMe).SetName("users.me.put")
	app.Delete(controller.Routes.Me, controller.DeleteMe).SetName("users.me.delete")
	app.Post(controller.Routes.MeAvatar, controller.UploadAvatar).SetName("users.me.avatar.post")
	app.Get(controller.Routes.Avatar, controller.GetAvatar).SetName("users.avatar.get")
	app.Get(controller.Routes.List, controller.List).SetName("users.list")

	return controller
}

func (a *ProfileController) caller(ctx router.Context) (AuthClaims, bool) {
	return GetRouterClaims(ctx, a.ContextKey)
}

func (a *ProfileController) unauthorized(ctx router.Context) error {
	return ctx.JSON(router.StatusUnauthorized, router.ViewContext{
		"error": "authentication required",
	})
}

func (a *ProfileController) Me(ctx router.Context) error {
	claims, ok := a.caller(ctx)
	if !ok {
		return a.unauthorized(ctx)
	}

	user, err := a.Profiles.GetByUsername(ctx.Context(), claims.Subject())
	if err != nil {
		return a.renderError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, user)
}

// UpdateMePayload carries the mutable profile fields.
type UpdateMePayload struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
}

// Validate will run validation rules
func (r UpdateMePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Length(3, 50)),
		validation.Field(&r.Email, validation.Length(6, 100), is.Email),
		validation.Field(&r.Phone, validation.By(ValidatePhoneNumber)),
	)
}

func (a *ProfileController) UpdateMe(ctx router.Context) error {
	claims, ok := a.caller(ctx)
	if !ok {
		return a.unauthorized(ctx)
	}

	payload := new(UpdateMePayload)
	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("profile update parse payload: ", "error", err)
		return ctx.JSON(router.StatusBadRequest, router.ViewContext{
			"error": "Error parsing body",
		})
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(router.StatusBadRequest, router.ViewContext{
			"error":      "Error validating payload",
			"validation": FormatValidationErrorToMap(err),
		})
	}

	user, err := a.Profiles.Update(ctx.Context(), claims.Subject(), UpdateProfileMessage{
		Username: payload.Username,
		Email:    payload.Email,
		Phone:    payload.Phone,
	})
	if err != nil {
		return a.renderError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, user)
}

func (a *ProfileController) DeleteMe(ctx router.Context) error {
	claims, ok := a.caller(ctx)
	if !ok {
		return a.unauthorized(ctx)
	}

	if err := a.Profiles.Delete(ctx.Context(), claims.Subject()); err != nil {
		return a.renderError(ctx, err)
	}

	return ctx.NoContent(router.StatusNoContent)
}

// UploadAvatar stores the raw request body as the caller's avatar. The
// filename query parameter preserves the extension; Content-Type is taken
// from the request header.
func (a *ProfileController) UploadAvatar(ctx router.Context) error {
	claims, ok := a.caller(ctx)
	if !ok {
		return a.unauthorized(ctx)
	}

	body := ctx.Body()
	if len(body) == 0 {
		return ctx.JSON(router.StatusBadRequest, router.ViewContext{
			"error": "empty avatar payload",
		})
	}

	contentType := ctx.Header("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	key, err := a.Profiles.UploadAvatar(
		ctx.Context(),
		claims.Subject(),
		ctx.Query("filename", ""),
		contentType,
		bytes.NewReader(body),
	)
	if err != nil {
		return a.renderError(ctx, err)
	}

	return ctx.JSON(router.StatusCreated, router.ViewContext{
		"avatar_url": key,
	})
}

func (a *ProfileController) GetAvatar(ctx router.Context) error {
	if _, ok := a.caller(ctx); !ok {
		return a.unauthorized(ctx)
	}

	username := ctx.Param("username")
	rc, err := a.Profiles.FetchAvatar(ctx.Context(), username)
	if err != nil {
		return a.renderError(ctx, err)
	}
	defer rc.Close()

	blob, err := io.ReadAll(rc)
	if err != nil {
		return a.renderError(ctx, err)
	}

	return ctx.Send(blob)
}

// List returns every account. Admin only.
func (a *ProfileController) List(ctx router.Context) error {
	claims, ok := a.caller(ctx)
	if !ok {
		return a.unauthorized(ctx)
	}

	if !RoleIsAtLeast(claims.Role(), RoleAdmin) {
		return ctx.JSON(router.StatusForbidden, router.ViewContext{
			"error": "admin role required",
		})
	}

	users, err := a.Profiles.List(ctx.Context())
	if err != nil {
		return a.renderError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, users)
}

func (a *ProfileController) renderError(ctx router.Context, err error) error {
	richErr := normalizeError(err)

	a.Logger.Warn(
		"profile request failed",
		"error", richErr.Message,
		"text_code", richErr.TextCode,
	)

	return ctx.JSON(richErr.Code, router.ViewContext{
		"error":     richErr.Message,
		"text_code": richErr.TextCode,
	})
}

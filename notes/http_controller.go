package notes

import (
	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
)

// principal mirrors the claims interface the trust gate stores on the
// request. Only the owner ID matters here.
type principal interface {
	Subject() string
	UserID() string
	Role() string
}

// ControllerRoutes holds the route paths for the notes API.
type ControllerRoutes struct {
	Collection string
	Item       string
}

// Controller exposes the notes API. Every route requires a verified
// principal; the gate leaves unauthenticated requests with no claims and the
// controller rejects them.
type Controller struct {
	Logger     Logger
	Service    *Service
	Routes     *ControllerRoutes
	ContextKey string
}

type ControllerOption func(*Controller) *Controller

// WithControllerLogger sets the controller logger.
func WithControllerLogger(logger Logger) ControllerOption {
	return func(c *Controller) *Controller {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

// WithControllerService sets the notes service.
func WithControllerService(service *Service) ControllerOption {
	return func(c *Controller) *Controller {
		c.Service = service
		return c
	}
}

// WithControllerContextKey sets the locals key the auth gate stores claims
// under.
func WithControllerContextKey(key string) ControllerOption {
	return func(c *Controller) *Controller {
		if key != "" {
			c.ContextKey = key
		}
		return c
	}
}

func NewController(opts ...ControllerOption) *Controller {
	c := &Controller{
		Logger:     nopLogger{},
		ContextKey: "user",
		Routes: &ControllerRoutes{
			Collection: "/notes",
			Item:       "/notes/:id",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Service == nil {
		panic("Missing Service in notes controller...")
	}

	return c
}

// RegisterNotesRoutes mounts the notes API on the given router.
func RegisterNotesRoutes[T any](app router.Router[T], opts ...ControllerOption) *Controller {
	controller := NewController(opts...)

	app.Get(controller.Routes.Collection, controller.List).SetName("notes.list")
	app.Post(controller.Routes.Collection, controller.Create).SetName("notes.create")
	app.Get(controller.Routes.Item, controller.Get).SetName("notes.get")
	app.Put(controller.Routes.Item, controller.Update).SetName("notes.update")
	app.Delete(controller.Routes.Item, controller.Delete).SetName("notes.delete")

	return controller
}

func (a *Controller) owner(ctx router.Context) (uuid.UUID, bool) {
	raw := ctx.Locals(a.ContextKey)
	if raw == nil {
		return uuid.Nil, false
	}

	claims, ok := raw.(principal)
	if !ok {
		return uuid.Nil, false
	}

	id, err := uuid.Parse(claims.UserID())
	if err != nil {
		a.Logger.Warn("principal carries unparseable user id", "user_id", claims.UserID())
		return uuid.Nil, false
	}

	return id, true
}

func (a *Controller) unauthorized(ctx router.Context) error {
	return ctx.JSON(router.StatusUnauthorized, router.ViewContext{
		"error": "authentication required",
	})
}

func (a *Controller) noteID(ctx router.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return uuid.Nil, ErrInvalidID
	}
	return id, nil
}

// NotePayload is the create/update body.
type NotePayload struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Validate will run validation rules
func (r NotePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Required, validation.Length(1, 255)),
		validation.Field(&r.Content, validation.Length(0, 65535)),
	)
}

func (a *Controller) List(ctx router.Context) error {
	owner, ok := a.owner(ctx)
	if !ok {
		return a.unauthorized(ctx)
	}

	records, err := a.Service.Search(ctx.Context(), owner, ctx.Query("q", ""))
	if err != nil {
		return a.renderError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, records)
}

func (a *Controller) Create(ctx router.Context) error {
	owner, ok := a.owner(ctx)
	if !ok {
		return a.unauthorized(ctx)
	}

	payload := new(NotePayload)
	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("note create parse payload: ", "error", err)
		return ctx.JSON(router.StatusBadRequest, router.ViewContext{
			"error": "Error parsing body",
		})
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(router.StatusBadRequest, router.ViewContext{
			"error":      "Error validating payload",
			"validation": err.Error(),
		})
	}

	note, err := a.Service.Create(ctx.Context(), owner, CreateNoteMessage{
		Title:   payload.Title,
		Content: payload.Content,
	})
	if err != nil {
		return a.renderError(ctx, err)
	}

	return ctx.JSON(router.StatusCreated, note)
}

func (a *Controller) Get(ctx router.Context) error {
	owner, ok := a.owner(ctx)
	if !ok {
		return a.unauthorized(ctx)
	}

	id, err := a.noteID(ctx)
	if err != nil {
		return a.renderError(ctx, err)
	}

	note, err := a.Service.Get(ctx.Context(), owner, id)
	if err != nil {
		return a.renderError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, note)
}

func (a *Controller) Update(ctx router.Context) error {
	owner, ok := a.owner(ctx)
	if !ok {
		return a.unauthorized(ctx)
	}

	id, err := a.noteID(ctx)
	if err != nil {
		return a.renderError(ctx, err)
	}

	payload := new(NotePayload)
	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("note update parse payload: ", "error", err)
		return ctx.JSON(router.StatusBadRequest, router.ViewContext{
			"error": "Error parsing body",
		})
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(router.StatusBadRequest, router.ViewContext{
			"error":      "Error validating payload",
			"validation": err.Error(),
		})
	}

	note, err := a.Service.Update(ctx.Context(), owner, id, UpdateNoteMessage{
		Title:   payload.Title,
		Content: payload.Content,
	})
	if err != nil {
		return a.renderError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, note)
}

func (a *Controller) Delete(ctx router.Context) error {
	owner, ok := a.owner(ctx)
	if !ok {
		return a.unauthorized(ctx)
	}

	id, err := a.noteID(ctx)
	if err != nil {
		return a.renderError(ctx, err)
	}

	if err := a.Service.Delete(ctx.Context(), owner, id); err != nil {
		return a.renderError(ctx, err)
	}

	return ctx.NoContent(router.StatusNoContent)
}

func (a *Controller) renderError(ctx router.Context, err error) error {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		richErr = goerrors.Wrap(err, goerrors.CategoryInternal, "An unexpected server error occurred").
			WithCode(goerrors.CodeInternal)
	}
	if richErr.Code == 0 {
		richErr = richErr.Clone().WithCode(goerrors.CodeInternal)
	}

	a.Logger.Warn(
		"notes request failed",
		"error", richErr.Message,
		"text_code", richErr.TextCode,
	)

	return ctx.JSON(richErr.Code, router.ViewContext{
		"error":     richErr.Message,
		"text_code": richErr.TextCode,
	})
}

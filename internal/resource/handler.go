package resource

import (
	"strings"

	"github.com/Kyz7/vanilla/internal/apperr"
	"github.com/Kyz7/vanilla/internal/response"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

// Binder is the route-registration side of a resource.
type Binder interface {
	Name() string
	Register(r fiber.Router, mw ...fiber.Handler)
	Reference(baseURL string) Reference
}

// Handler maps a Service onto REST routes under /<name>.
type Handler[T any] struct {
	svc *Service[T]
	log zerolog.Logger
}

func NewHandler[T any](svc *Service[T], log zerolog.Logger) *Handler[T] {
	return &Handler[T]{svc: svc, log: log}
}

func (h *Handler[T]) Name() string {
	return h.svc.Name()
}

func (h *Handler[T]) Reference(baseURL string) Reference {
	return h.svc.Reference(baseURL)
}

// Register mounts every enabled method. mw runs before each route.
func (h *Handler[T]) Register(r fiber.Router, mw ...fiber.Handler) {
	g := r.Group("/"+h.svc.Name(), mw...)

	if h.svc.Allows(MethodIsUnique) {
		g.Get("/:field/is-unique/:value", h.IsUnique)
	}
	if h.svc.Allows(MethodDeleteAll) {
		g.Delete("/delete-all", h.DeleteAll)
	}
	if h.svc.Allows(MethodList) {
		g.Get("/", h.List)
	}
	if h.svc.Allows(MethodCreate) {
		g.Post("/", h.Create)
	}
	if h.svc.Allows(MethodGet) {
		g.Get("/:id", h.Get)
	}
	if h.svc.Allows(MethodUpdate) {
		g.Put("/:id", h.Update)
	}
	if h.svc.Allows(MethodSoftDelete) {
		g.Delete("/:id", h.SoftDelete)
	}
	if h.svc.Allows(MethodHardDelete) {
		g.Delete("/:id/hard-delete", h.HardDelete)
	}
	if h.svc.Allows(MethodRestore) {
		g.Post("/:id/restore", h.Restore)
	}
}

func (h *Handler[T]) fail(c *fiber.Ctx, err error) error {
	return response.FromError(c, h.log, err, "Entity")
}

func include(c *fiber.Ctx) []string {
	var names []string
	for _, name := range strings.Split(c.Query("include"), ",") {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	return names
}

func (h *Handler[T]) body(c *fiber.Ctx) (map[string]any, error) {
	data := map[string]any{}
	if len(c.Body()) == 0 {
		return data, nil
	}
	if err := c.BodyParser(&data); err != nil {
		return nil, err
	}
	return data, nil
}

func (h *Handler[T]) Get(c *fiber.Ctx) error {
	data, err := h.svc.Get(c.UserContext(), c.Params("id"), include(c)...)
	if err != nil {
		return h.fail(c, err)
	}
	return response.Success(c, data, "")
}

func (h *Handler[T]) List(c *fiber.Ctx) error {
	page, err := h.svc.List(c.UserContext(), c.Queries())
	if err != nil {
		return h.fail(c, err)
	}
	if page.Paged {
		return response.SuccessWithMeta(c, page.Items, response.NewMeta(page.Page, page.Limit, page.Total), "")
	}
	return response.Success(c, page.Items, "")
}

func (h *Handler[T]) Create(c *fiber.Ctx) error {
	body, err := h.body(c)
	if err != nil {
		return h.fail(c, apperr.BadRequest("Invalid request body: %v", err))
	}
	data, err := h.svc.Create(c.UserContext(), body)
	if err != nil {
		return h.fail(c, err)
	}
	return response.Created(c, data, "Created successfully")
}

func (h *Handler[T]) Update(c *fiber.Ctx) error {
	body, err := h.body(c)
	if err != nil {
		return h.fail(c, apperr.BadRequest("Invalid request body: %v", err))
	}
	data, err := h.svc.Update(c.UserContext(), c.Params("id"), body)
	if err != nil {
		return h.fail(c, err)
	}
	return response.Success(c, data, "Updated successfully")
}

func (h *Handler[T]) SoftDelete(c *fiber.Ctx) error {
	if err := h.svc.SoftDelete(c.UserContext(), c.Params("id")); err != nil {
		return h.fail(c, err)
	}
	return response.Success(c, nil, "DELETED")
}

func (h *Handler[T]) HardDelete(c *fiber.Ctx) error {
	if err := h.svc.HardDelete(c.UserContext(), c.Params("id")); err != nil {
		return h.fail(c, err)
	}
	return response.Success(c, nil, "DELETED")
}

func (h *Handler[T]) DeleteAll(c *fiber.Ctx) error {
	var body struct {
		IDList []any `json:"id_list"`
	}
	if err := c.BodyParser(&body); err != nil {
		return h.fail(c, apperr.BadRequest("Invalid request body: %v", err))
	}
	deleted, err := h.svc.DeleteAll(c.UserContext(), body.IDList)
	if err != nil {
		return h.fail(c, err)
	}
	return response.Success(c, deleted, "DELETED")
}

func (h *Handler[T]) Restore(c *fiber.Ctx) error {
	data, err := h.svc.Restore(c.UserContext(), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return response.Success(c, data, "Restored successfully")
}

func (h *Handler[T]) IsUnique(c *fiber.Ctx) error {
	ok, err := h.svc.IsUnique(c.UserContext(), c.Params("field"), c.Params("value"))
	if err != nil {
		return h.fail(c, err)
	}
	return response.Success(c, fiber.Map{"result": ok}, "")
}

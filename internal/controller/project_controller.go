package controller

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"instrument-advisor-be/internal/dto"
	"instrument-advisor-be/internal/pkg/serverutils"
	"instrument-advisor-be/internal/service"
)

type IProjectController interface {
	RegisterRoutes(r fiber.Router)
	Save(ctx *fiber.Ctx) error
	GetAll(ctx *fiber.Ctx) error
	Show(ctx *fiber.Ctx) error
	Delete(ctx *fiber.Ctx) error
	Restore(ctx *fiber.Ctx) error
}

type projectController struct {
	service service.IProjectService
}

func NewProjectController(service service.IProjectService) IProjectController {
	return &projectController{service: service}
}

func (c *projectController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/project/v1")
	h.Get("", c.GetAll)
	h.Post("", c.Save)
	h.Get(":id", c.Show)
	h.Delete(":id", c.Delete)
	h.Post(":id/restore", c.Restore)
}

func (c *projectController) Save(ctx *fiber.Ctx) error {
	var req dto.SaveProjectRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Save(ctx.Context(), req)
	if err != nil {
		return mapProjectError(err)
	}

	return ctx.JSON(serverutils.SuccessResponse("Success save project", res))
}

func (c *projectController) GetAll(ctx *fiber.Ctx) error {
	page := ctx.QueryInt("page", 1)
	limit := ctx.QueryInt("limit", 20)

	res, err := c.service.GetAll(ctx.Context(), page, limit)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get all project", res))
}

func (c *projectController) Show(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid project id")
	}

	res, err := c.service.Get(ctx.Context(), id)
	if err != nil {
		return mapProjectError(err)
	}

	return ctx.JSON(serverutils.SuccessResponse("Success show project", res))
}

func (c *projectController) Delete(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid project id")
	}

	if err := c.service.Delete(ctx.Context(), id); err != nil {
		return mapProjectError(err)
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Success delete project", nil))
}

func (c *projectController) Restore(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid project id")
	}

	res, err := c.service.Restore(ctx.Context(), id)
	if err != nil {
		return mapProjectError(err)
	}

	return ctx.JSON(serverutils.SuccessResponse("Success restore project", res))
}

func mapProjectError(err error) error {
	switch {
	case errors.Is(err, service.ErrProjectNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrSessionNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	default:
		return err
	}
}

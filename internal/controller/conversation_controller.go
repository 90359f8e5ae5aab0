package controller

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"instrument-advisor-be/internal/dto"
	"instrument-advisor-be/internal/pkg/serverutils"
	"instrument-advisor-be/internal/service"
)

type IConversationController interface {
	RegisterRoutes(r fiber.Router)
	Start(ctx *fiber.Ctx) error
	SendMessage(ctx *fiber.Ctx) error
	SubmitFeedback(ctx *fiber.Ctx) error
	Show(ctx *fiber.Ctx) error
	End(ctx *fiber.Ctx) error
}

type conversationController struct {
	service service.IConversationService
}

func NewConversationController(service service.IConversationService) IConversationController {
	return &conversationController{service: service}
}

func (c *conversationController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/conversation/v1")
	h.Post("", c.Start)
	h.Post(":id/message", c.SendMessage)
	h.Post(":id/feedback", c.SubmitFeedback)
	h.Get(":id", c.Show)
	h.Delete(":id", c.End)
}

func (c *conversationController) Start(ctx *fiber.Ctx) error {
	res, err := c.service.StartSession(ctx.Context())
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success start conversation", res))
}

func (c *conversationController) SendMessage(ctx *fiber.Ctx) error {
	sessionID := ctx.Params("id")

	var req dto.SendMessageRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.SendMessage(ctx.Context(), sessionID, req.Message)
	if err != nil {
		return mapConversationError(err)
	}

	return ctx.JSON(serverutils.SuccessResponse("Success process message", res))
}

func (c *conversationController) SubmitFeedback(ctx *fiber.Ctx) error {
	sessionID := ctx.Params("id")

	var req dto.FeedbackRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.SubmitFeedback(ctx.Context(), sessionID, req)
	if err != nil {
		return mapConversationError(err)
	}

	return ctx.JSON(serverutils.SuccessResponse("Success submit feedback", res))
}

func (c *conversationController) Show(ctx *fiber.Ctx) error {
	sessionID := ctx.Params("id")

	res, err := c.service.GetConversation(ctx.Context(), sessionID)
	if err != nil {
		return mapConversationError(err)
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get conversation", res))
}

func (c *conversationController) End(ctx *fiber.Ctx) error {
	sessionID := ctx.Params("id")

	if err := c.service.EndSession(ctx.Context(), sessionID); err != nil {
		return mapConversationError(err)
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Success end conversation", nil))
}

func mapConversationError(err error) error {
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrEmptyMessage):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	default:
		return err
	}
}

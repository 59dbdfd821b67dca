package handlers

import (
	"bookstore/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

// OrderHandler handles HTTP requests for orders.
type OrderHandler struct {
	service *services.OrderService
	log     zerolog.Logger
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(service *services.OrderService, log zerolog.Logger) *OrderHandler {
	return &OrderHandler{
		service: service,
		log:     log,
	}
}

// RegisterRoutes registers the order routes with the Fiber app.
func (h *OrderHandler) RegisterRoutes(router fiber.Router) {
	router.Post("/orders", h.HandlePlaceOrder)
}

// HandlePlaceOrder takes one unit of stock for the posted productId.
func (h *OrderHandler) HandlePlaceOrder(c *fiber.Ctx) error {
	var req ProductIDRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}
	if req.ProductID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Missing productId parameter",
		})
	}

	result, err := h.service.PlaceOrder(c.UserContext(), req.ProductID.String())
	if err != nil {
		return errorResponse(c, "Could not place order", err)
	}

	if result.Status == services.OrderOutOfStock {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"message": "Product out of stock or does not exist",
			"order":   result,
		})
	}
	return c.JSON(fiber.Map{
		"message": "Order placed successfully",
		"order":   result,
	})
}

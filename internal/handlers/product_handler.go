package handlers

import (
	"encoding/json"
	"fmt"

	"bookstore/internal/middleware"
	"bookstore/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

// ProductHandler handles HTTP requests for the catalogue.
type ProductHandler struct {
	service  *services.ProductService
	validate *validator.Validate
	log      zerolog.Logger
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(service *services.ProductService, log zerolog.Logger) *ProductHandler {
	return &ProductHandler{
		service:  service,
		validate: validator.New(),
		log:      log,
	}
}

// AddProductRequest is the body of POST /products, as JSON or form fields.
type AddProductRequest struct {
	Name  string  `json:"name" form:"name" validate:"required,max=255"`
	Price float64 `json:"price" form:"price" validate:"gte=0"`
	Stock int     `json:"stock" form:"stock" validate:"gte=0"`
}

// ProductIDRequest carries the id of the product an action targets.
// JSON clients may send the id as a number or a string.
type ProductIDRequest struct {
	ProductID json.Number `json:"productId" form:"productId"`
}

// RegisterRoutes registers the public product routes.
func (h *ProductHandler) RegisterRoutes(router fiber.Router) {
	productRoutes := router.Group("/products")
	productRoutes.Get("/", h.HandleListProducts)
	productRoutes.Get("/:id", h.HandleGetProduct)
}

// RegisterAdminRoutes registers the routes that change the catalogue, each
// behind guard.
func (h *ProductHandler) RegisterAdminRoutes(router fiber.Router, guard fiber.Handler) {
	productRoutes := router.Group("/products")
	productRoutes.Post("/", guard, h.HandleAddProduct)
	productRoutes.Post("/delete", guard, h.HandleDeleteProductForm)
	productRoutes.Delete("/:id", guard, h.HandleDeleteProduct)
}

// HandleListProducts returns every product ordered by id. The optional
// action query parameter only accepts "list".
func (h *ProductHandler) HandleListProducts(c *fiber.Ctx) error {
	if action := c.Query("action", "list"); action != "list" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": fmt.Sprintf("Unknown action: %s", action),
		})
	}

	products, err := h.service.ListProducts(c.UserContext())
	if err != nil {
		h.log.Error().Err(err).Msg("error listing products")
		return errorResponse(c, "Could not retrieve products", err)
	}
	return c.JSON(products)
}

// HandleGetProduct returns a single product.
func (h *ProductHandler) HandleGetProduct(c *fiber.Ctx) error {
	product, err := h.service.GetProduct(c.UserContext(), c.Params("id"))
	if err != nil {
		return errorResponse(c, "Could not retrieve product", err)
	}
	return c.JSON(product)
}

// HandleAddProduct creates a product and returns it with its new id.
func (h *ProductHandler) HandleAddProduct(c *fiber.Ctx) error {
	var req AddProductRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}
	if err := h.validate.Struct(req); err != nil {
		return validationResponse(c, err)
	}

	product, err := h.service.AddProduct(c.UserContext(), services.AddProductInput{
		Name:  req.Name,
		Price: req.Price,
		Stock: req.Stock,
	})
	if err != nil {
		h.log.Error().Err(err).Str("name", req.Name).Msg("error adding product")
		return errorResponse(c, "Could not add product", err)
	}
	h.log.Info().Str("admin", actor(c)).Int64("product_id", product.ID).Msg("product added")
	return c.Status(fiber.StatusCreated).JSON(product)
}

// HandleDeleteProduct deletes the product named in the path.
func (h *ProductHandler) HandleDeleteProduct(c *fiber.Ctx) error {
	return h.deleteProduct(c, c.Params("id"))
}

// HandleDeleteProductForm deletes the product named by the productId field.
func (h *ProductHandler) HandleDeleteProductForm(c *fiber.Ctx) error {
	var req ProductIDRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}
	return h.deleteProduct(c, req.ProductID.String())
}

func (h *ProductHandler) deleteProduct(c *fiber.Ctx, rawID string) error {
	if err := h.service.DeleteProduct(c.UserContext(), rawID); err != nil {
		h.log.Error().Err(err).Str("product_id", rawID).Msg("error deleting product")
		return errorResponse(c, "Could not delete product", err)
	}
	h.log.Info().Str("admin", actor(c)).Str("product_id", rawID).Msg("product deleted")
	return c.JSON(fiber.Map{
		"message": fmt.Sprintf("Product %s deleted successfully", rawID),
	})
}

func actor(c *fiber.Ctx) string {
	if user := middleware.CurrentUser(c); user != nil {
		return user.Username
	}
	return "unknown"
}

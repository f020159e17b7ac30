package handlers

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"

	"sweetshop/internal/domain"
	applog "sweetshop/internal/log"
	"sweetshop/internal/services"
	"sweetshop/internal/validate"
)

type SweetHandler struct {
	Inv *services.InventoryService
}

// sweetResponse is the wire shape of a Sweet. _id mirrors id for older
// clients.
type sweetResponse struct {
	ID        string    `json:"id"`
	LegacyID  string    `json:"_id"`
	Name      string    `json:"name"`
	Category  string    `json:"category"`
	Price     float64   `json:"price"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"createdAt"`
}

func toResponse(s domain.Sweet) sweetResponse {
	return sweetResponse{
		ID:        s.ID,
		LegacyID:  s.ID,
		Name:      s.Name,
		Category:  s.Category,
		Price:     s.Price,
		Quantity:  s.Quantity,
		CreatedAt: s.CreatedAt,
	}
}

func toResponses(list []domain.Sweet) []sweetResponse {
	out := make([]sweetResponse, 0, len(list))
	for _, s := range list {
		out = append(out, toResponse(s))
	}
	return out
}

type sweetBody struct {
	Name     *string    `json:"name"`
	Category *string    `json:"category"`
	Price    *flexFloat `json:"price"`
	Quantity *flexInt   `json:"quantity"`
}

// POST /api/sweets
func (h *SweetHandler) Create(c *fiber.Ctx) error {
	var b sweetBody
	if err := decodeJSON(c, &b); err != nil {
		return fail(c, "sweet.create.fail", err)
	}
	if b.Price == nil {
		return fail(c, "sweet.create.fail", fmt.Errorf("%w: price is required", services.ErrInvalidSweet))
	}
	in := services.CreateSweetInput{Price: float64(*b.Price)}
	if b.Name != nil {
		in.Name = *b.Name
	}
	if b.Category != nil {
		in.Category = *b.Category
	}
	if b.Quantity != nil {
		in.Quantity = int(*b.Quantity)
	}

	sw, err := h.Inv.Create(c.UserContext(), in)
	if err != nil {
		return fail(c, "sweet.create.fail", err)
	}
	c.Status(fiber.StatusCreated)
	applog.Info(c, "sweet.create", map[string]any{"sweet_id": sw.ID, "name": sw.Name, "quantity": sw.Quantity})
	return c.JSON(toResponse(sw))
}

// GET /api/sweets
func (h *SweetHandler) List(c *fiber.Ctx) error {
	list, err := h.Inv.List(c.UserContext())
	if err != nil {
		return fail(c, "sweet.list.fail", err)
	}
	return c.JSON(toResponses(list))
}

// GET /api/sweets/search?name=&category=&minPrice=&maxPrice=
func (h *SweetHandler) Search(c *fiber.Ctx) error {
	minP, ok := validate.Price(c.Query("minPrice"))
	if !ok {
		return fail(c, "sweet.search.fail", services.ErrInvalidFilter)
	}
	maxP, ok := validate.Price(c.Query("maxPrice"))
	if !ok {
		return fail(c, "sweet.search.fail", services.ErrInvalidFilter)
	}
	list, err := h.Inv.Search(c.UserContext(), domain.SearchFilter{
		Name:     c.Query("name"),
		Category: c.Query("category"),
		MinPrice: minP,
		MaxPrice: maxP,
	})
	if err != nil {
		return fail(c, "sweet.search.fail", err)
	}
	return c.JSON(toResponses(list))
}

// PUT /api/sweets/:id
func (h *SweetHandler) Update(c *fiber.Ctx) error {
	var b sweetBody
	if err := decodeJSON(c, &b); err != nil {
		return fail(c, "sweet.update.fail", err)
	}
	p := domain.SweetPatch{Name: b.Name, Category: b.Category}
	if b.Price != nil {
		v := float64(*b.Price)
		p.Price = &v
	}
	if b.Quantity != nil {
		v := int(*b.Quantity)
		p.Quantity = &v
	}

	sw, err := h.Inv.Update(c.UserContext(), c.Params("id"), p)
	if err != nil {
		return fail(c, "sweet.update.fail", err)
	}
	applog.Info(c, "sweet.update", map[string]any{"sweet_id": sw.ID})
	return c.JSON(toResponse(sw))
}

// DELETE /api/sweets/:id
func (h *SweetHandler) Delete(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := h.Inv.Delete(c.UserContext(), id); err != nil {
		return fail(c, "sweet.delete.fail", err)
	}
	applog.Info(c, "sweet.delete", map[string]any{"sweet_id": id})
	return c.JSON(fiber.Map{"message": "Sweet deleted"})
}

// POST /api/sweets/:id/purchase
func (h *SweetHandler) Purchase(c *fiber.Ctx) error {
	sw, err := h.Inv.Purchase(c.UserContext(), c.Params("id"))
	if err != nil {
		return fail(c, "sweet.purchase.fail", err)
	}
	applog.Info(c, "sweet.purchase", map[string]any{"sweet_id": sw.ID, "remaining": sw.Quantity, "sold_out": !sw.InStock()})
	return c.JSON(toResponse(sw))
}

// POST /api/sweets/:id/restock  {"quantity": n}
func (h *SweetHandler) Restock(c *fiber.Ctx) error {
	var b struct {
		Quantity *flexInt `json:"quantity"`
	}
	if err := decodeJSON(c, &b); err != nil {
		return fail(c, "sweet.restock.fail", services.ErrInvalidQuantity)
	}
	var amount *int
	if b.Quantity != nil {
		v := int(*b.Quantity)
		amount = &v
	}

	sw, err := h.Inv.Restock(c.UserContext(), c.Params("id"), amount)
	if err != nil {
		return fail(c, "sweet.restock.fail", err)
	}
	applog.Info(c, "sweet.restock", map[string]any{"sweet_id": sw.ID, "added": *amount, "quantity": sw.Quantity})
	return c.JSON(toResponse(sw))
}

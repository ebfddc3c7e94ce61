package handlers

import (
	"context"
	"math"
	"strconv"
	"strings"

	"github.com/ggorockee/shopfinder/internal/models"
	"github.com/ggorockee/shopfinder/internal/services"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const (
	photoCacheControl = "public, max-age=3600"
	photoNotFound     = "photo not found"
)

// PlacesQuerier is what the places routes need from the query service
type PlacesQuerier interface {
	SearchPlaces(ctx context.Context, query string, lat, lng float64, radius int) ([]models.PlaceResult, error)
	GetPhotoBytes(ctx context.Context, photoReference string, maxWidth int) ([]byte, error)
}

type PlacesHandler struct {
	service PlacesQuerier
	log     *zap.SugaredLogger
}

func NewPlacesHandler(service PlacesQuerier, log *zap.SugaredLogger) *PlacesHandler {
	return &PlacesHandler{
		service: service,
		log:     log,
	}
}

func SetupPlacesRoutes(router fiber.Router, service PlacesQuerier, log *zap.SugaredLogger) {
	h := NewPlacesHandler(service, log)

	router.Get("/search", h.Search)
	router.Get("/photo", h.Photo)
}

// Search godoc
// @Summary Search shops near a location
// @Description Text search around (lat, lng), capped at 10 results enriched with opening hours and phone number
// @Tags places
// @Produce json
// @Param query query string true "Search text, e.g. clothes"
// @Param lat query number true "Latitude"
// @Param lng query number true "Longitude"
// @Param radius query int false "Radius in meters" default(5000)
// @Success 200 {array} models.PlaceResult
// @Failure 400 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /places/search [get]
func (h *PlacesHandler) Search(c *fiber.Ctx) error {
	// c.Query aliases the request buffer; the query outlives the request in span attributes
	query := strings.Clone(strings.TrimSpace(c.Query("query")))
	if query == "" {
		return fiber.NewError(fiber.StatusBadRequest, "query is required")
	}

	lat, err := requiredFloat(c, "lat")
	if err != nil {
		return err
	}
	lng, err := requiredFloat(c, "lng")
	if err != nil {
		return err
	}
	radius, err := optionalPositiveInt(c, "radius", services.DefaultRadius)
	if err != nil {
		return err
	}

	results, err := h.service.SearchPlaces(c.UserContext(), query, lat, lng, radius)
	if err != nil {
		h.log.Errorw("place search failed", "query", query, "error", err)
		return fiber.NewError(fiber.StatusBadGateway, "failed to search places")
	}

	return c.JSON(results)
}

// Photo godoc
// @Summary Proxy a place photo
// @Description Returns JPEG bytes for a photo reference. Any failure is reported as 404.
// @Tags places
// @Produce jpeg
// @Param photoreference query string true "Photo reference from a search result"
// @Param maxwidth query int false "Maximum width in pixels" default(400)
// @Success 200 {file} binary
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /places/photo [get]
func (h *PlacesHandler) Photo(c *fiber.Ctx) error {
	ref := strings.Clone(strings.TrimSpace(c.Query("photoreference")))
	if ref == "" {
		return fiber.NewError(fiber.StatusBadRequest, "photoreference is required")
	}

	maxWidth, err := optionalPositiveInt(c, "maxwidth", services.DefaultPhotoMaxWidth)
	if err != nil {
		return err
	}

	data, err := h.service.GetPhotoBytes(c.UserContext(), ref, maxWidth)
	if err != nil {
		h.log.Warnw("photo lookup failed", "photoreference", ref, "maxwidth", maxWidth, "error", err)
		return fiber.NewError(fiber.StatusNotFound, photoNotFound)
	}

	c.Set(fiber.HeaderContentType, "image/jpeg")
	c.Set(fiber.HeaderCacheControl, photoCacheControl)
	return c.Send(data)
}

func requiredFloat(c *fiber.Ctx, name string) (float64, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return 0, fiber.NewError(fiber.StatusBadRequest, name+" is required")
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fiber.NewError(fiber.StatusBadRequest, name+" must be a number")
	}
	return v, nil
}

func optionalPositiveInt(c *fiber.Ctx, name string, def int) (int, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, name+" must be a positive integer")
	}
	return v, nil
}

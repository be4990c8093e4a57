package server

import (
	"errors"
	"strconv"
	"strings"

	"poststream/internal/middleware"
	"poststream/internal/models"
	"poststream/internal/service"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper. Handlers return nil when they see it.
var errResponseWritten = errors.New("response already written")

// Pagination holds parsed limit/skip query parameters.
type Pagination struct {
	Limit  int
	Offset int
}

// parsePagination reads limit and skip (offset is accepted as an alias).
// Values are clamped by the services.
func parsePagination(c *fiber.Ctx) Pagination {
	offset := c.QueryInt("skip", -1)
	if offset < 0 {
		offset = c.QueryInt("offset", 0)
	}
	limit := c.QueryInt("limit", service.DefaultPageSize)
	if limit > service.MaxPageSize {
		limit = service.MaxPageSize
	}
	return Pagination{Limit: limit, Offset: offset}
}

// parseID extracts a route parameter by name as a positive uint.
// On failure it writes a 400 JSON response and returns errResponseWritten.
func parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := strconv.ParseUint(c.Params(param), 10, 32)
	if err != nil || id == 0 {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid "+humanizeParam(param)))
		return 0, errResponseWritten
	}
	return uint(id), nil
}

func humanizeParam(param string) string {
	if param == "id" {
		return "ID"
	}
	return strings.TrimSuffix(param, "Id") + " ID"
}

// respondError maps err onto its HTTP status. Untyped errors are logged
// and answered as internal errors without details.
func respondError(c *fiber.Ctx, err error) error {
	var appErr *models.AppError
	if !errors.As(err, &appErr) {
		middleware.Logger.ErrorContext(c.UserContext(), "request error", "path", c.Path(), "error", err)
		err = models.NewInternalError(err)
	}
	return models.RespondWithError(c, models.StatusFor(err), err)
}

// viewerKey identifies the caller for typeahead superseding.
func viewerKey(c *fiber.Ctx) string {
	if id := middleware.ViewerID(c); id != 0 {
		return "profile:" + strconv.FormatUint(uint64(id), 10)
	}
	return "ip:" + c.IP()
}

func bindJSON(c *fiber.Ctx, dest any) error {
	if err := c.BodyParser(dest); err != nil {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
		return errResponseWritten
	}
	return nil
}

package relay

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/medhya/medhya/internal/platform/auth"
	"github.com/medhya/medhya/internal/platform/eventbus"
)

// publishEvent lets a backend without a bus push an envelope straight into
// the hub.
func (s *Server) publishEvent(c echo.Context) error {
	var env eventbus.Envelope
	if err := c.Bind(&env); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid event envelope").SetInternal(err)
	}
	if err := env.Validate(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	n := s.hub.Route(env)
	s.metrics.EventRouted("http", env.Event, n)
	s.logger.Info().
		Str("event", env.Event).
		Str("publisher", auth.UserIDFromContext(c.Request().Context())).
		Int("sessions", n).
		Msg("event published over http")

	return c.JSON(http.StatusAccepted, map[string]interface{}{
		"data": map[string]int{"delivered": n},
	})
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"source":   s.sourceName(),
		"sessions": s.hub.ClientCount(),
	})
}

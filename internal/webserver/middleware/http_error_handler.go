package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/mdouchement/logger"
	"github.com/mdouchement/x402vault/internal/webserver/weberror"
)

// NewHTTPErrorHandler is a middleware that formats rendered errors.
func NewHTTPErrorHandler(log logger.Logger) func(err error, c echo.Context) {
	return func(err error, c echo.Context) {
		if !c.Response().Committed {
			var err2 error

			switch terr := err.(type) {
			case *echo.HTTPError:
				rendered := weberror.New(terr.Code, http.StatusText(terr.Code))
				err2 = c.JSON(weberror.StatusCode(rendered), rendered)
			case *weberror.Error:
				err2 = c.JSON(weberror.StatusCode(terr), terr)
			default:
				// Generic message for the caller, the detail stays in the log.
				rendered := weberror.New(http.StatusInternalServerError, "internal server error")
				err2 = c.JSON(weberror.StatusCode(rendered), rendered)
			}

			log.Error(err)
			if err2 != nil {
				log.Errorf("HTTPErrorHandler: %s", err2)
			}
		}
	}
}

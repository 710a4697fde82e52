package routes

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/samber/do"
	"github.com/yz4230/shipit-poc/internal/entity"
	"github.com/yz4230/shipit-poc/internal/usecase"
)

func RegisterRestAPI(injector *do.Injector, e *echo.Echo) {
	g := e.Group("/api")

	g.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})
	g.GET("/deployments", func(c echo.Context) error {
		limit, _ := strconv.Atoi(c.QueryParam("limit"))

		usecase := do.MustInvoke[usecase.ListDeploymentsUsecase](injector)
		deployments, err := usecase.Execute(c.Request().Context(), limit)
		if err != nil {
			return c.NoContent(http.StatusInternalServerError)
		}

		type response struct {
			Deployments []*entity.Deployment `json:"deployments"`
		}

		result := &response{Deployments: make([]*entity.Deployment, len(deployments))}
		copy(result.Deployments, deployments)

		return c.JSON(http.StatusOK, result)
	})
	g.GET("/deployments/:run_id", func(c echo.Context) error {
		usecase := do.MustInvoke[usecase.GetDeploymentUsecase](injector)
		deployment, err := usecase.Execute(c.Request().Context(), c.Param("run_id"))
		if err != nil {
			if errors.Is(err, entity.ErrNotFound) {
				return c.NoContent(http.StatusNotFound)
			}
			if errors.Is(err, entity.ErrInvalid) {
				return c.NoContent(http.StatusBadRequest)
			}
			return c.NoContent(http.StatusInternalServerError)
		}
		return c.JSON(http.StatusOK, deployment)
	})
}

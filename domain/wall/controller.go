package wall

import (
	"github.com/akeren/launch-waitlist/config/router"
)

func NewWallController(service WallService) *router.RESTController {
	return router.NewRESTController(
		"WallController",
		"/api/wall",
		func(rs *router.RouterService, c *router.RESTController) {
			rs.AddGetHandler(c, nil, "", membersHandler(service))
		},
	)
}

func membersHandler(service WallService) router.HandlerFunction {
	return func(ctx *router.RequestContext) *router.ServiceResult {
		response, err := service.Members(ctx.Request.Context())
		if err != nil {
			return router.ErrorResultFrom(err)
		}
		return router.OKResult(response, "Wall members retrieved successfully")
	}
}

package filter

import (
	"net/http"

	"backoffice/bizerror"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

var PathFilters = "/api/v1/filters"

func RegisterFiltersRestAPI(r *gin.Engine, middleWares ...gin.HandlerFunc) {
	g := r.Group(PathFilters, middleWares...)
	g.POST("", handleCreateFilter)
	g.GET("", handleQueryFilters)
	g.GET(":id", handleDetailFilter)
}

func handleCreateFilter(c *gin.Context) {
	creation := FilterCreation{}
	if err := c.ShouldBindBodyWith(&creation, binding.JSON); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	f, err := CreateFilterFunc(c.Request.Context(), &creation)
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusCreated, f)
}

func handleQueryFilters(c *gin.Context) {
	q := FilterQuery{}
	if err := c.ShouldBindQuery(&q); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	filters, err := QueryFiltersFunc(c.Request.Context(), &q)
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, filters)
}

func handleDetailFilter(c *gin.Context) {
	id, err := types.ParseID(c.Param("id"))
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	f, err := DetailFilterFunc(c.Request.Context(), id)
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, f)
}

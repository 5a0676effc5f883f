package entity

import (
	"net/http"

	"backoffice/bizerror"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

var (
	PathEndUsers   = "/api/v1/end-users"
	PathBusinesses = "/api/v1/businesses"
	PathUsers      = "/api/v1/users"
)

func RegisterEntitiesRestAPI(r *gin.Engine, middleWares ...gin.HandlerFunc) {
	g := r.Group(PathEndUsers, middleWares...)
	g.POST("", handleCreateEndUser)
	g.GET("", handleQueryEndUsers)
	g.GET(":id", handleDetailEndUser)

	g = r.Group(PathBusinesses, middleWares...)
	g.POST("", handleCreateBusiness)
	g.GET("", handleQueryBusinesses)
	g.GET(":id", handleDetailBusiness)

	g = r.Group(PathUsers, middleWares...)
	g.POST("", handleCreateUser)
	g.GET("", handleQueryUsers)
	g.GET(":id", handleDetailUser)
}

func pathID(c *gin.Context) types.ID {
	id, err := types.ParseID(c.Param("id"))
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	return id
}

func handleCreateEndUser(c *gin.Context) {
	creation := EndUserCreation{}
	if err := c.ShouldBindBodyWith(&creation, binding.JSON); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	record, err := CreateEndUserFunc(c.Request.Context(), &creation)
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusCreated, record)
}

func handleQueryEndUsers(c *gin.Context) {
	records, err := QueryEndUsersFunc(c.Request.Context())
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, records)
}

func handleDetailEndUser(c *gin.Context) {
	record, err := DetailEndUserFunc(c.Request.Context(), pathID(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, record)
}

func handleCreateBusiness(c *gin.Context) {
	creation := BusinessCreation{}
	if err := c.ShouldBindBodyWith(&creation, binding.JSON); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	record, err := CreateBusinessFunc(c.Request.Context(), &creation)
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusCreated, record)
}

func handleQueryBusinesses(c *gin.Context) {
	records, err := QueryBusinessFunc(c.Request.Context())
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, records)
}

func handleDetailBusiness(c *gin.Context) {
	record, err := DetailBusinessFunc(c.Request.Context(), pathID(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, record)
}

func handleCreateUser(c *gin.Context) {
	creation := UserCreation{}
	if err := c.ShouldBindBodyWith(&creation, binding.JSON); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	record, err := CreateUserFunc(c.Request.Context(), &creation)
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusCreated, record)
}

func handleQueryUsers(c *gin.Context) {
	records, err := QueryUsersFunc(c.Request.Context())
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, records)
}

func handleDetailUser(c *gin.Context) {
	record, err := DetailUserFunc(c.Request.Context(), pathID(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, record)
}

package indices

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

var (
	PathIndexRequests = "/api/v1/index-requests"
)

func RegisterIndicesRestAPI(r *gin.Engine, middleWares ...gin.HandlerFunc) {
	g := r.Group(PathIndexRequests, middleWares...)
	g.POST("", handleIndexRequest)
}

func handleIndexRequest(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"result": ScheduleNewSyncRunFunc()})
}

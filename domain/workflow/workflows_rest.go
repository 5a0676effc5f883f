package workflow

import (
	"net/http"
	"strconv"

	"backoffice/bizerror"
	"backoffice/domain"
	"backoffice/domain/filter"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

var (
	PathExternalWorkflows   = "/api/v1/external/workflows"
	PathInternalWorkflows   = "/api/v1/internal/workflows"
	PathWorkflowDefinitions = "/api/v1/workflow-definitions"
	PathEndUsers            = "/api/v1/end-users"
	PathBusinesses          = "/api/v1/businesses"
)

type EventSending struct {
	Name string `json:"name" binding:"required"`
}

type Assignment struct {
	AssigneeID *types.ID `json:"assigneeId"`
}

func RegisterWorkflowsRestAPI(r *gin.Engine, m RuntimeManagerTraits, middleWares ...gin.HandlerFunc) {
	h := &workflowsHandler{manager: m}

	g := r.Group(PathExternalWorkflows, middleWares...)
	g.POST("run", h.handleRun)
	g.POST("intent", h.handleIntent)
	g.GET("", h.handleQuery)
	g.GET(":id", h.handleDetail)
	g.GET(":id/context", h.handleContext)
	g.POST(":id/event", h.handleSendEvent)
	g.PATCH(":id", h.handleUpdate)

	g = r.Group(PathInternalWorkflows, middleWares...)
	g.GET("", h.handleQueryByFilter)
	g.GET(":id", h.handleDetail)
	g.POST(":id/send-event", h.handleSendEvent)
	g.PATCH(":id", h.handleUpdate)
	g.PATCH(":id/context", h.handleUpdateContext)
	g.PATCH("assign/:id", h.handleAssign)

	g = r.Group(PathWorkflowDefinitions, middleWares...)
	g.POST("", h.handleCreateDefinition)
	g.GET("", h.handleQueryDefinitions)
	g.GET(":id", h.handleDetailDefinition)
	g.DELETE(":id", h.handleDeleteDefinition)

	handlers := append(append([]gin.HandlerFunc{}, middleWares...), h.handleQueryByEntity)
	r.GET(PathEndUsers+"/:id/workflows", handlers...)
	r.GET(PathBusinesses+"/:id/workflows", handlers...)
}

type workflowsHandler struct {
	manager RuntimeManagerTraits
}

func pathID(c *gin.Context) types.ID {
	id, err := types.ParseID(c.Param("id"))
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	return id
}

func bindJSON(c *gin.Context, obj interface{}) {
	if err := c.ShouldBindBodyWith(obj, binding.JSON); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
}

func (h *workflowsHandler) handleRun(c *gin.Context) {
	run := RuntimeRun{}
	bindJSON(c, &run)
	result, err := h.manager.CreateOrUpdateWorkflowRuntime(c.Request.Context(), &run)
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, result)
}

func (h *workflowsHandler) handleIntent(c *gin.Context) {
	intent := IntentResolution{}
	bindJSON(c, &intent)
	result, err := h.manager.ResolveIntent(c.Request.Context(), &intent)
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusCreated, result)
}

func (h *workflowsHandler) handleQuery(c *gin.Context) {
	q := RuntimeQuery{}
	if err := c.ShouldBindQuery(&q); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	for _, s := range c.QueryArray("status[]") {
		q.Statuses = append(q.Statuses, domain.RuntimeStatus(s))
	}
	list, err := h.manager.QueryWorkflowRuntimes(c.Request.Context(), &q)
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, list)
}

func queryInt(c *gin.Context, key string) int {
	v := c.Query(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	return n
}

func (h *workflowsHandler) handleQueryByFilter(c *gin.Context) {
	filterID, err := types.ParseID(c.Query("filterId"))
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	q := FilteredRuntimeQuery{
		FilterID: filterID,
		OrderBy:  c.Query("orderBy"),
		Page:     filter.Page{Number: queryInt(c, "page[number]"), Size: queryInt(c, "page[size]")},
		Statuses: c.QueryArray("filter[status][]"),
	}
	for _, v := range c.QueryArray("filter[assigneeId][]") {
		if v == "null" {
			q.Unassigned = true
			continue
		}
		id, err := types.ParseID(v)
		if err != nil {
			panic(&bizerror.ErrBadParam{Cause: err})
		}
		q.AssigneeIDs = append(q.AssigneeIDs, id)
	}
	result, err := h.manager.QueryWorkflowRuntimesByFilter(c.Request.Context(), &q)
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, result)
}

func (h *workflowsHandler) handleQueryByEntity(c *gin.Context) {
	runtimes, err := h.manager.QueryWorkflowRuntimesByEntity(c.Request.Context(), pathID(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, runtimes)
}

func (h *workflowsHandler) handleDetail(c *gin.Context) {
	detail, err := h.manager.DetailWorkflowRuntime(c.Request.Context(), pathID(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, detail)
}

func (h *workflowsHandler) handleContext(c *gin.Context) {
	rc, err := h.manager.GetWorkflowRuntimeContext(c.Request.Context(), pathID(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, rc)
}

func (h *workflowsHandler) handleSendEvent(c *gin.Context) {
	id := pathID(c)
	e := EventSending{}
	bindJSON(c, &e)
	detail, err := h.manager.SendEvent(c.Request.Context(), id, e.Name)
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, detail)
}

func (h *workflowsHandler) handleUpdate(c *gin.Context) {
	id := pathID(c)
	patch := RuntimeUpdating{}
	bindJSON(c, &patch)
	detail, err := h.manager.UpdateWorkflowRuntime(c.Request.Context(), id, &patch)
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, detail)
}

func (h *workflowsHandler) handleUpdateContext(c *gin.Context) {
	id := pathID(c)
	patch := ContextPatch{}
	bindJSON(c, &patch)
	detail, err := h.manager.UpdateWorkflowRuntimeContext(c.Request.Context(), id, &patch)
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, detail)
}

func (h *workflowsHandler) handleAssign(c *gin.Context) {
	id := pathID(c)
	a := Assignment{}
	bindJSON(c, &a)
	detail, err := h.manager.AssignWorkflow(c.Request.Context(), id, a.AssigneeID)
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, detail)
}

func (h *workflowsHandler) handleCreateDefinition(c *gin.Context) {
	creation := domain.DefinitionCreation{}
	bindJSON(c, &creation)
	d, err := h.manager.CreateWorkflowDefinition(c.Request.Context(), &creation)
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusCreated, d)
}

func (h *workflowsHandler) handleQueryDefinitions(c *gin.Context) {
	defs, err := h.manager.QueryWorkflowDefinitions(c.Request.Context())
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, defs)
}

func (h *workflowsHandler) handleDetailDefinition(c *gin.Context) {
	d, err := h.manager.DetailWorkflowDefinition(c.Request.Context(), pathID(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, d)
}

func (h *workflowsHandler) handleDeleteDefinition(c *gin.Context) {
	if err := h.manager.DeleteWorkflowDefinition(c.Request.Context(), pathID(c)); err != nil {
		panic(err)
	}
	c.Status(http.StatusNoContent)
}

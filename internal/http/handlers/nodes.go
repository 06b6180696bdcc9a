package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/docugraph/docugraph/internal/data/graph"
	"github.com/docugraph/docugraph/internal/http/response"
	"github.com/docugraph/docugraph/internal/platform/logger"
)

type NodeHandler struct {
	log   *logger.Logger
	store *graph.Store
}

func NewNodeHandler(log *logger.Logger, store *graph.Store) *NodeHandler {
	return &NodeHandler{
		log:   log.With("handler", "NodeHandler"),
		store: store,
	}
}

// GET /api/nodes
func (h *NodeHandler) List(c *gin.Context) {
	nodes, err := h.store.ListNodes(c.Request.Context())
	if err != nil {
		h.log.Error("ListNodes failed", "error", err)
		response.RespondError(c, http.StatusInternalServerError, "list_nodes_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"nodes": nodes})
}

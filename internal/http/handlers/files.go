package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/docugraph/docugraph/internal/chat"
	"github.com/docugraph/docugraph/internal/data/graph"
	"github.com/docugraph/docugraph/internal/http/response"
	"github.com/docugraph/docugraph/internal/ingestion"
	"github.com/docugraph/docugraph/internal/platform/gcp"
	"github.com/docugraph/docugraph/internal/platform/logger"
)

type FileHandler struct {
	log    *logger.Logger
	ingest *ingestion.Service
	store  *graph.Store
	bucket gcp.BucketService
}

func NewFileHandler(log *logger.Logger, ingest *ingestion.Service, store *graph.Store, bucket gcp.BucketService) *FileHandler {
	return &FileHandler{
		log:    log.With("handler", "FileHandler"),
		ingest: ingest,
		store:  store,
		bucket: bucket,
	}
}

// POST /api/files
// Multipart upload; every file lands in a fresh upload-session folder and is
// ingested synchronously. Returns the folder and the document chunk names.
func (h *FileHandler) Upload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_multipart_form", err)
		return
	}
	files := form.File["files"]
	if len(files) == 0 {
		response.RespondError(c, http.StatusBadRequest, "no_files", nil)
		return
	}

	folder := fmt.Sprintf("docs_%s_%s",
		time.Now().UTC().Format("20060102150405"),
		strings.Split(uuid.NewString(), "-")[0])

	ctx := c.Request.Context()
	documents := make([]string, 0, len(files))
	for _, fh := range files {
		fileName := strings.TrimSpace(strings.ToLower(fh.Filename))
		src, err := fh.Open()
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "unreadable_file", err)
			return
		}
		err = h.bucket.UploadObject(ctx, folder+"/"+fileName, src)
		_ = src.Close()
		if err != nil {
			h.log.Error("Upload failed (store object)", "error", err, "file", fileName)
			response.RespondError(c, http.StatusInternalServerError, "store_object_failed", err)
			return
		}

		chunkName, err := h.ingest.IngestDocument(ctx, folder, fileName)
		if err != nil {
			h.log.Error("Upload failed (ingest)", "error", err, "file", fileName)
			response.RespondError(c, http.StatusInternalServerError, "ingest_failed", err)
			return
		}
		documents = append(documents, chunkName)
	}

	response.RespondOK(c, gin.H{"folder": folder, "documents": documents})
}

type linkRequest struct {
	Documents []string `json:"documents" binding:"required"`
	Node      string   `json:"node" binding:"required"`
}

// POST /api/files/link
// Attaches uploaded documents to a logical node. The node name may arrive as
// a rendered listing label; the parent suffix is stripped.
func (h *FileHandler) Link(c *gin.Context) {
	var req linkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	node := chat.StripParentSuffix(req.Node)
	if node == "" {
		response.RespondError(c, http.StatusBadRequest, "invalid_node_name", nil)
		return
	}

	ctx := c.Request.Context()
	for _, doc := range req.Documents {
		if err := h.store.LinkToNode(ctx, doc, node); err != nil {
			h.log.Error("Link failed", "error", err, "document", doc, "node", node)
			response.RespondError(c, http.StatusInternalServerError, "link_failed", err)
			return
		}
	}
	response.RespondOK(c, gin.H{"node": node, "documents": req.Documents})
}

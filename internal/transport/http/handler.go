package httptransport

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"document-analyzer-service/internal/entity"
	"document-analyzer-service/internal/repository/postgresql"
	"document-analyzer-service/internal/service"
)

// 32 MiB in-memory cap for multipart parsing; larger parts spill to disk.
const maxUploadMemory = 32 << 20

type Handler struct {
	docSvc *service.DocumentService
}

func NewHandler(docSvc *service.DocumentService) *Handler {
	return &Handler{docSvc: docSvc}
}

type uploadResp struct {
	DocumentID string `json:"document_id"`
	JobID      string `json:"job_id"`
}

type parsedResp struct {
	Vendor    *string `json:"vendor"`
	InvoiceNo *string `json:"invoice_no"`
	Date      *string `json:"date"`
	Total     *string `json:"total"`
}

type documentResp struct {
	ID        string     `json:"id"`
	Filename  *string    `json:"filename,omitempty"`
	RawText   string     `json:"raw_text"`
	Parsed    parsedResp `json:"parsed"`
	JobID     *string    `json:"job_id,omitempty"`
	Status    string     `json:"status"`
	CreatedAt string     `json:"created_at"`
	UpdatedAt string     `json:"updated_at"`
}

type jobResp struct {
	JobID  string          `json:"job_id"`
	State  entity.JobState `json:"state"`
	Result any             `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

func toDocumentResp(d *entity.Document) documentResp {
	resp := documentResp{
		ID:       d.ID.String(),
		Filename: d.Filename,
		RawText:  d.RawText,
		Parsed: parsedResp{
			Vendor:    d.Parsed.Vendor,
			InvoiceNo: d.Parsed.InvoiceNo,
			Date:      d.Parsed.Date,
			Total:     d.Parsed.Total,
		},
		Status:    string(d.Status),
		CreatedAt: d.CreatedAt.Format(time.RFC3339),
		UpdatedAt: d.UpdatedAt.Format(time.RFC3339),
	}
	if d.JobID != nil {
		s := d.JobID.String()
		resp.JobID = &s
	}
	return resp
}

// Upload godoc
// @Summary Upload a financial document
// @Description Saves the file, creates a PENDING document record and enqueues background extraction.
// @Tags documents
// @Accept mpfd
// @Produce json
// @Param file formData file true "document file (plain text)"
// @Param metadata formData string false "opaque client metadata (ignored)"
// @Success 201 {object} uploadResp
// @Failure 400 {object} apiError
// @Failure 500 {object} apiError
// @Router /documents [post]
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeErr(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	res, err := h.docSvc.Upload(r.Context(), header.Filename, file)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "upload failed")
		return
	}

	writeJSON(w, http.StatusCreated, uploadResp{
		DocumentID: res.DocumentID.String(),
		JobID:      res.JobID.String(),
	})
}

// GetDocument godoc
// @Summary Get document by id
// @Tags documents
// @Produce json
// @Param id path string true "document id (uuid)"
// @Success 200 {object} documentResp
// @Failure 400 {object} apiError
// @Failure 404 {object} apiError
// @Router /documents/{id} [get]
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid id")
		return
	}

	doc, err := h.docSvc.GetDocument(r.Context(), id)
	if err != nil {
		if errors.Is(err, postgresql.ErrNotFound) {
			writeErr(w, http.StatusNotFound, "document not found")
			return
		}
		writeErr(w, http.StatusInternalServerError, "lookup failed")
		return
	}

	writeJSON(w, http.StatusOK, toDocumentResp(doc))
}

// ListDocuments godoc
// @Summary List documents
// @Tags documents
// @Produce json
// @Param offset query int false "list offset (default 0)"
// @Param limit query int false "page size (default 50, max 200)"
// @Success 200 {array} documentResp
// @Failure 500 {object} apiError
// @Router /documents [get]
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	docs, err := h.docSvc.ListDocuments(r.Context(), offset, limit)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "list failed")
		return
	}

	out := make([]documentResp, 0, len(docs))
	for _, d := range docs {
		out = append(out, toDocumentResp(d))
	}
	writeJSON(w, http.StatusOK, out)
}

// GetJobStatus godoc
// @Summary Get background job status
// @Description Job state is the source of truth for failure: a FAILURE job is distinct from a SUCCESS job whose extraction found no fields.
// @Tags jobs
// @Produce json
// @Param id path string true "job id (uuid)"
// @Success 200 {object} jobResp
// @Failure 400 {object} apiError
// @Failure 404 {object} apiError
// @Router /jobs/{id} [get]
func (h *Handler) GetJobStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid id")
		return
	}

	job, err := h.docSvc.GetJobStatus(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			writeErr(w, http.StatusNotFound, "job not found")
			return
		}
		writeErr(w, http.StatusInternalServerError, "status lookup failed")
		return
	}

	resp := jobResp{JobID: job.ID.String(), State: job.State, Error: job.Error}
	if job.State == entity.JobSuccess && len(job.Result) > 0 {
		resp.Result = job.Result
	}
	writeJSON(w, http.StatusOK, resp)
}

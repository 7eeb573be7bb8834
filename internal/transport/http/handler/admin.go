package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"mathtutor/internal/app"
	"mathtutor/internal/transport/http/response"
)

type AdminHandler struct {
	authService   *app.AuthService
	adminService  *app.AdminService
	corpusService *app.CorpusService
	maxUploadSize int64
}

type AdminLoginRequest struct {
	Password string `json:"password" binding:"required"`
}

func NewAdminHandler(authService *app.AuthService, adminService *app.AdminService, corpusService *app.CorpusService, maxUploadSize int64) *AdminHandler {
	return &AdminHandler{
		authService:   authService,
		adminService:  adminService,
		corpusService: corpusService,
		maxUploadSize: maxUploadSize,
	}
}

func (h *AdminHandler) Login(c *gin.Context) {
	var req AdminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	result, err := h.authService.AdminLogin(req.Password)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput), errors.Is(err, app.ErrInvalidCredential):
			response.Error(c, http.StatusUnauthorized, response.CodeInvalidCredentials, "invalid admin credentials")
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "admin login failed")
		}
		return
	}

	response.OK(c, gin.H{"token": result.Token})
}

func (h *AdminHandler) ListPDFs(c *gin.Context) {
	files, err := h.corpusService.List()
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list pdfs failed")
		return
	}
	response.OK(c, gin.H{
		"files":       files,
		"index_ready": h.corpusService.IndexReady(),
	})
}

// UploadPDF accepts a multipart "file" field, stores it in the corpus and
// synchronously rebuilds the index. Validation failures leave the corpus
// untouched and trigger no rebuild.
func (h *AdminHandler) UploadPDF(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadSize+4096)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "no file in request")
		return
	}

	src, err := fileHeader.Open()
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "cannot read uploaded file")
		return
	}
	defer src.Close()

	if err := h.corpusService.Add(c.Request.Context(), fileHeader.Filename, src, fileHeader.Size); err != nil {
		switch {
		case errors.Is(err, app.ErrBadFilename), errors.Is(err, app.ErrBadExtension):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, app.ErrFileTooLarge):
			response.Error(c, http.StatusRequestEntityTooLarge, response.CodeBadRequest, err.Error())
		default:
			// The file was stored; only the rebuild failed. Previous
			// index generation is still serving.
			response.Error(c, http.StatusBadGateway, response.CodeInternalServer, "pdf stored but index rebuild failed")
		}
		return
	}

	response.OK(c, gin.H{"uploaded": fileHeader.Filename})
}

func (h *AdminHandler) DeletePDF(c *gin.Context) {
	filename := c.Param("filename")
	if err := h.corpusService.Delete(c.Request.Context(), filename); err != nil {
		switch {
		case errors.Is(err, app.ErrBadFilename), errors.Is(err, app.ErrBadExtension):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, app.ErrFileNotFound):
			response.Error(c, http.StatusNotFound, response.CodeNotFound, err.Error())
		default:
			response.Error(c, http.StatusBadGateway, response.CodeInternalServer, "pdf deleted but index rebuild failed")
		}
		return
	}

	response.OK(c, gin.H{"deleted": filename})
}

func (h *AdminHandler) ListStudents(c *gin.Context) {
	students, err := h.adminService.ListStudents()
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list students failed")
		return
	}
	response.OK(c, students)
}

func (h *AdminHandler) ExportCSV(c *gin.Context) {
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", `attachment; filename="ket_qua_hoc_tap.csv"`)
	if err := h.adminService.ExportCSV(c.Writer); err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "export failed")
	}
}

package handlers

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rohan/securevault-backend/auth/middleware"
)

func readFormFile(c *gin.Context, field string) ([]byte, string, error) {
	header, err := c.FormFile(field)
	if err != nil {
		return nil, "", err
	}
	f, err := header.Open()
	if err != nil {
		return nil, "", err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, "", err
	}
	return data, header.Filename, nil
}

func UploadFile(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	data, filename, err := readFormFile(c, "file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return
	}

	file, err := Engine.Upload(c.Request.Context(), user, filename, data, c.ClientIP())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"file": file})
}

func UploadChunk(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	uploadID := c.PostForm("upload_id")
	index, errIdx := strconv.Atoi(c.PostForm("chunk_number"))
	total, errTot := strconv.Atoi(c.PostForm("total_chunks"))
	if uploadID == "" || errIdx != nil || errTot != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "upload_id, chunk_number and total_chunks are required"})
		return
	}

	data, _, err := readFormFile(c, "chunk")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No chunk provided"})
		return
	}

	if err := Engine.UploadChunk(user, uploadID, index, total, data); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":  "Chunk uploaded successfully",
		"complete": Engine.UploadComplete(user, uploadID),
	})
}

func FinalizeUpload(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	var body struct {
		UploadID string `json:"upload_id"`
		Filename string `json:"filename"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.UploadID == "" || body.Filename == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "upload_id and filename are required"})
		return
	}

	file, err := Engine.FinalizeUpload(c.Request.Context(), user, body.UploadID, body.Filename, c.ClientIP())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"file": file})
}

func AbortUpload(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	if err := Engine.AbortUpload(user, c.Param("uploadId")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func ListFiles(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	files, err := Engine.ListFiles(user)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"files": files})
}

func RenameFile(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	fileID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid file id"})
		return
	}
	var body struct {
		NewName string `json:"newName"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.NewName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	if err := Engine.Rename(user, fileID, body.NewName); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func DeleteFile(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	fileID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid file id"})
		return
	}

	if err := Engine.Delete(c.Request.Context(), user, fileID, c.ClientIP()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func DownloadFile(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	fileID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid file id"})
		return
	}

	file, plaintext, err := Engine.Download(c.Request.Context(), user, fileID, c.ClientIP())
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Name))
	c.Data(http.StatusOK, file.ContentType, plaintext)
}

func PreviewFile(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	fileID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid file id"})
		return
	}

	file, plaintext, err := Engine.Preview(c.Request.Context(), user, fileID, c.ClientIP())
	if err != nil {
		respondError(c, err)
		return
	}
	c.Data(http.StatusOK, file.ContentType, plaintext)
}

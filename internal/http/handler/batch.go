package handler

import (
	"context"
	"errors"
	"io"
	"path"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"certgrouper/internal/archive"
	"certgrouper/internal/model"
	"certgrouper/internal/service"
)

// uploadField is the repeatable multipart field carrying employee ZIPs.
const uploadField = "files"

const (
	headerBatchID       = "X-Batch-ID"
	headerDocumentCount = "X-Document-Count"
	headerGroupCount    = "X-Group-Count"
)

var (
	errNotMultipart = errors.New("request is not multipart/form-data")
	errFileOpen     = errors.New("cannot open uploaded file")
)

// readUploads loads every file under uploadField into memory, in upload order.
func readUploads(c *fiber.Ctx) ([]model.InputArchive, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, errNotMultipart
	}

	files := form.File[uploadField]
	archives := make([]model.InputArchive, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			return nil, errFileOpen
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, errFileOpen
		}
		archives = append(archives, model.InputArchive{Name: fh.Filename, Data: data})
	}
	return archives, nil
}

func writeUploadError(c *fiber.Ctx, err error) error {
	if errors.Is(err, errFileOpen) {
		return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
	}
	return writeError(c, fiber.StatusBadRequest, "FILES_REQUIRED", "upload ZIP files in the \"files\" field")
}

// GroupBatch returns the grouped archive for the uploaded employee ZIPs.
//
//	@Summary	Group certificates by course
//	@Tags		batches
//	@Accept		multipart/form-data
//	@Produce	application/zip
//	@Param		files	formData	file	true	"Employee certificate ZIPs"
//	@Success	200		{file}		binary
//	@Success	204
//	@Failure	400	{object}	errorPayload
//	@Failure	422	{object}	errorPayload
//	@Router		/batches [post]
func GroupBatch(svc service.BatchService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		archives, err := readUploads(c)
		if err != nil {
			return writeUploadError(c, err)
		}

		res, err := svc.Process(c.UserContext(), archives)
		if err != nil {
			return writeServiceError(c, err)
		}
		if res.Archive == nil {
			return c.SendStatus(fiber.StatusNoContent)
		}

		c.Set(headerBatchID, res.ID)
		c.Set(headerDocumentCount, strconv.Itoa(res.Summary.TotalDocuments))
		c.Set(headerGroupCount, strconv.Itoa(res.Summary.GroupCount))
		c.Attachment(res.Filename)
		c.Set(fiber.HeaderContentType, archive.ContentType)
		return c.Status(fiber.StatusOK).Send(res.Archive)
	}
}

// PreviewBatch reports the course folders the upload would produce.
//
//	@Summary	Preview grouping
//	@Tags		batches
//	@Accept		multipart/form-data
//	@Produce	json
//	@Param		files	formData	file	true	"Employee certificate ZIPs"
//	@Success	200		{object}	model.Summary
//	@Failure	400		{object}	errorPayload
//	@Failure	422		{object}	errorPayload
//	@Router		/batches/preview [post]
func PreviewBatch(svc service.BatchService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		archives, err := readUploads(c)
		if err != nil {
			return writeUploadError(c, err)
		}

		sum, err := svc.Preview(c.UserContext(), archives)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(sum)
	}
}

// PublishBatch uploads the grouped archive to object storage and returns a download link.
//
//	@Summary	Publish grouped archive
//	@Tags		batches
//	@Accept		multipart/form-data
//	@Produce	json
//	@Param		files	formData	file	true	"Employee certificate ZIPs"
//	@Success	201		{object}	model.PublishedBatch
//	@Failure	400		{object}	errorPayload
//	@Failure	422		{object}	errorPayload
//	@Failure	503		{object}	errorPayload
//	@Router		/batches/publish [post]
func PublishBatch(svc service.BatchService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		archives, err := readUploads(c)
		if err != nil {
			return writeUploadError(c, err)
		}

		pub, err := svc.Publish(c.UserContext(), archives)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(pub)
	}
}

// ListBatches returns recorded batches with limit & offset.
//
//	@Summary	List batch history
//	@Tags		batches
//	@Produce	json
//	@Param		limit	query		int	false	"page size"	default(10)
//	@Param		offset	query		int	false	"offset"	default(0)
//	@Success	200		{object}	service.BatchListResult
//	@Failure	503		{object}	errorPayload
//	@Router		/batches [get]
func ListBatches(svc service.BatchService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit, err := strconv.Atoi(c.Query("limit", "10"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_LIMIT", "invalid limit")
		}
		offset, err := strconv.Atoi(c.Query("offset", "0"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_OFFSET", "invalid offset")
		}

		res, err := svc.List(c.UserContext(), limit, offset)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(res)
	}
}

// GetBatch returns one recorded batch with its per-course counts.
//
//	@Summary	Get batch
//	@Tags		batches
//	@Produce	json
//	@Param		id	path		string	true	"batch id"
//	@Success	200	{object}	model.Batch
//	@Failure	400	{object}	errorPayload
//	@Failure	404	{object}	errorPayload
//	@Router		/batches/{id} [get]
func GetBatch(svc service.BatchService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		b, err := svc.Get(c.UserContext(), id)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(b)
	}
}

// DownloadBatch streams a previously published archive.
//
//	@Summary	Download published archive
//	@Tags		batches
//	@Produce	application/zip
//	@Param		id	path		string	true	"batch id"
//	@Success	200	{file}		binary
//	@Failure	404	{object}	errorPayload
//	@Failure	503	{object}	errorPayload
//	@Router		/batches/{id}/download [get]
func DownloadBatch(svc service.BatchService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}

		// the body is streamed after the handler returns, past any request deadline
		rc, info, err := svc.Download(context.WithoutCancel(c.UserContext()), id)
		if err != nil {
			return writeServiceError(c, err)
		}

		c.Attachment(path.Base(info.Key))
		c.Set(fiber.HeaderContentType, archive.ContentType)
		size := int(info.Size)
		if size <= 0 {
			size = -1
		}
		// fasthttp closes rc once the body has been written
		return c.SendStream(rc, size)
	}
}

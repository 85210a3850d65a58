package httpapi

import (
	"context"
	"fmt"
	"io"
	"mime"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	apperrors "github.com/spigell/insight/internal/errors"
	"github.com/spigell/insight/internal/resume"
)

const resumeFormField = "resume"

func (s *Server) health(c *fiber.Ctx) error {
	checks := make(fiber.Map, len(s.checks))
	for _, check := range s.checks {
		status := "ok"
		if err := check.Ping(c.UserContext()); err != nil {
			status = "unavailable: " + err.Error()
		}
		checks[check.Name] = status
	}

	return c.JSON(fiber.Map{"status": "ok", "checks": checks})
}

func (s *Server) listJobs(c *fiber.Ctx) error {
	listings, err := s.recommender.ListJobs(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(listings)
}

func (s *Server) recommendations(c *fiber.Ctx) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}

	result, err := s.recommender.GetRecommendations(c.UserContext(), userID)
	if err != nil {
		return err
	}
	return c.JSON(result)
}

func (s *Server) uploadResume(c *fiber.Ctx) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}

	header, err := c.FormFile(resumeFormField)
	if err != nil {
		return apperrors.InvalidInput(fmt.Sprintf("multipart field %q with the resume file is required", resumeFormField), err)
	}
	if header.Size > s.resumes.MaxSize() {
		return apperrors.InvalidInput("file too large", resume.ErrFileTooLarge)
	}

	file, err := header.Open()
	if err != nil {
		return apperrors.InvalidInput("reading uploaded file failed", err)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, s.resumes.MaxSize()+1))
	if err != nil {
		return apperrors.InvalidInput("reading uploaded file failed", err)
	}

	id, err := s.resumes.Upload(c.UserContext(), resume.UploadInput{
		UserID:   userID,
		FileName: header.Filename,
		MimeType: header.Header.Get(fiber.HeaderContentType),
		Data:     data,
	})
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": id})
}

func (s *Server) listResumes(c *fiber.Ctx) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}

	uploads, err := s.resumes.List(c.UserContext(), userID)
	if err != nil {
		return err
	}
	return c.JSON(uploads)
}

func (s *Server) resumeAnalysis(c *fiber.Ctx) error {
	userID, uploadID, err := ownedUpload(c)
	if err != nil {
		return err
	}

	// Analysis outlives a dropped connection so the claim is always settled.
	analysis, err := s.resumes.Analyse(context.WithoutCancel(c.UserContext()), userID, uploadID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"analysis":  analysis.Content,
		"timestamp": analysis.Timestamp,
	})
}

func (s *Server) resumeFile(c *fiber.Ctx) error {
	userID, uploadID, err := ownedUpload(c)
	if err != nil {
		return err
	}

	file, err := s.resumes.RetrieveFile(c.UserContext(), userID, uploadID)
	if err != nil {
		return err
	}

	if file.URL != "" {
		return c.Redirect(file.URL, fiber.StatusFound)
	}

	c.Set(fiber.HeaderContentType, file.MimeType)
	c.Set(fiber.HeaderContentDisposition, mime.FormatMediaType("inline", map[string]string{"filename": file.Name}))
	return c.Send(file.Data)
}

func requireUserID(c *fiber.Ctx) (uuid.UUID, error) {
	userID, ok := UserID(c)
	if !ok {
		return uuid.Nil, apperrors.Unauthorized("missing user", nil)
	}
	return userID, nil
}

// ownedUpload resolves the caller and the upload id path parameter. A malformed
// id cannot belong to the caller and is reported as not found.
func ownedUpload(c *fiber.Ctx) (uuid.UUID, uuid.UUID, error) {
	userID, err := requireUserID(c)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}

	uploadID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, uuid.Nil, apperrors.NotFound("upload not found", err)
	}

	return userID, uploadID, nil
}

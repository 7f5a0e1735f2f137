// internal/server/handlers.go
package server

import (
	stderrors "errors"
	"io"
	"sort"
	"strconv"

	"loan-wizard/internal/common/errors"
	"loan-wizard/internal/common/metrics"
	"loan-wizard/internal/wizard"

	"github.com/gofiber/fiber/v2"
)

func (s *Server) create(c *fiber.Ctx) error {
	ctrl := s.registry.Create(sessionFrom(c))
	return c.Status(fiber.StatusCreated).JSON(WizardResponse{Wizard: ctrl.Snapshot()})
}

func (s *Server) get(c *fiber.Ctx) error {
	ctrl, err := s.controller(c)
	if err != nil {
		return err
	}
	return c.JSON(WizardResponse{Wizard: ctrl.Snapshot()})
}

// discard is sent when the user navigates away from the wizard.
func (s *Server) discard(c *fiber.Ctx) error {
	ctrl, err := s.controller(c)
	if err != nil {
		return err
	}
	if err := ctrl.Discard(); err != nil {
		return s.respond(c, ctrl, s.translate(ctrl, err))
	}
	s.registry.Remove(ctrl.ID())
	metrics.WizardDraftsDiscarded.WithLabelValues("navigation").Inc()
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) setFields(c *fiber.Ctx) error {
	ctrl, err := s.controller(c)
	if err != nil {
		return err
	}

	var req FieldsRequest
	if err := c.BodyParser(&req); err != nil {
		return errors.NewInvalidRequestError(err.Error())
	}
	if len(req.Fields) == 0 {
		return errors.NewInvalidRequestError("fields must not be empty")
	}

	names := make([]string, 0, len(req.Fields))
	for name := range req.Fields {
		if !wizard.KnownField(name) {
			return errors.NewInvalidRequestError("unknown field: " + name)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := ctrl.SetField(name, req.Fields[name]); err != nil {
			return s.respond(c, ctrl, s.translate(ctrl, err))
		}
	}
	return c.JSON(WizardResponse{Wizard: ctrl.Snapshot()})
}

func (s *Server) putDocument(c *fiber.Ctx) error {
	ctrl, err := s.controller(c)
	if err != nil {
		return err
	}
	slot, err := wizard.ParseSlot(c.Params("slot"))
	if err != nil {
		return errors.NewInvalidRequestError(err.Error())
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return errors.NewInvalidRequestError("multipart field \"file\" is required")
	}

	doc := &wizard.Document{
		Name:        fh.Filename,
		ContentType: fh.Header.Get(fiber.HeaderContentType),
		Size:        fh.Size,
	}
	// Oversized files are rejected on their declared size without reading.
	if fh.Size > 0 && fh.Size <= wizard.MaxDocumentBytes {
		f, err := fh.Open()
		if err != nil {
			return errors.NewInvalidRequestError(err.Error())
		}
		defer f.Close()
		if doc.Data, err = io.ReadAll(f); err != nil {
			return errors.NewInvalidRequestError(err.Error())
		}
	}

	if err := ctrl.SetDocument(slot, doc); err != nil {
		if stderrors.Is(err, wizard.ErrLocked) {
			return s.respond(c, ctrl, s.translate(ctrl, err))
		}
		return s.respond(c, ctrl, errors.NewDocumentRejectedError(string(slot), err.Error()))
	}
	return c.JSON(WizardResponse{Wizard: ctrl.Snapshot()})
}

func (s *Server) removeDocument(c *fiber.Ctx) error {
	ctrl, err := s.controller(c)
	if err != nil {
		return err
	}
	slot, err := wizard.ParseSlot(c.Params("slot"))
	if err != nil {
		return errors.NewInvalidRequestError(err.Error())
	}
	if err := ctrl.RemoveDocument(slot); err != nil {
		return s.respond(c, ctrl, s.translate(ctrl, err))
	}
	return c.JSON(WizardResponse{Wizard: ctrl.Snapshot()})
}

func (s *Server) next(c *fiber.Ctx) error {
	return s.move(c, (*wizard.Controller).Next)
}

func (s *Server) back(c *fiber.Ctx) error {
	return s.move(c, (*wizard.Controller).Back)
}

func (s *Server) goTo(c *fiber.Ctx) error {
	n, err := strconv.Atoi(c.Params("step"))
	if err != nil {
		return errors.NewInvalidRequestError("step must be a number")
	}
	return s.move(c, func(ctrl *wizard.Controller) (wizard.Step, error) {
		step, err := ctrl.GoTo(wizard.Step(n))
		if stderrors.Is(err, wizard.ErrStepLocked) {
			return step, errors.NewWizardStepLockedError(n)
		}
		return step, err
	})
}

func (s *Server) move(c *fiber.Ctx, fn func(*wizard.Controller) (wizard.Step, error)) error {
	ctrl, err := s.controller(c)
	if err != nil {
		return err
	}
	if _, err := fn(ctrl); err != nil {
		return s.respond(c, ctrl, s.translate(ctrl, err))
	}
	return c.JSON(WizardResponse{Wizard: ctrl.Snapshot()})
}

// submit blocks until the lender answers or the submit timeout passes. A
// repeat call after success returns the stored receipt.
func (s *Server) submit(c *fiber.Ctx) error {
	ctrl, err := s.controller(c)
	if err != nil {
		return err
	}

	receipt, err := ctrl.Submit(c.UserContext())
	if err != nil && !stderrors.Is(err, wizard.ErrAlreadySubmitted) {
		return s.respond(c, ctrl, s.translate(ctrl, err))
	}
	return c.JSON(SubmitResponse{Receipt: receipt, Wizard: ctrl.Snapshot()})
}

func (s *Server) affordability(c *fiber.Ctx) error {
	ctrl, err := s.controller(c)
	if err != nil {
		return err
	}

	rate := s.defaultRate
	if raw := c.Query("annual_rate"); raw != "" {
		if rate, err = strconv.ParseFloat(raw, 64); err != nil || rate < 0 {
			return errors.NewInvalidRequestError("annual_rate must be a non-negative number")
		}
	}

	est, err := wizard.Affordability(ctrl.Draft(), rate)
	if err != nil {
		return s.respond(c, ctrl, errors.NewWizardValidationFailedError(err.Error()))
	}
	return c.JSON(AffordabilityResponse{Estimate: est})
}

func (s *Server) controller(c *fiber.Ctx) (*wizard.Controller, error) {
	id := c.Params("id")
	ctrl, ok := s.registry.Get(id, sessionFrom(c))
	if !ok {
		return nil, errors.NewWizardNotFoundError(id)
	}
	return ctrl, nil
}

// respond renders err together with the draft so the console can show the
// inline messages the controller recorded.
func (s *Server) respond(c *fiber.Ctx, ctrl *wizard.Controller, stdErr *errors.StandardError) error {
	return c.Status(errors.HTTPStatus(stdErr.Code)).JSON(WizardResponse{
		Wizard: ctrl.Snapshot(),
		Error:  stdErr,
	})
}

// translate maps controller errors onto API error codes.
func (s *Server) translate(ctrl *wizard.Controller, err error) *errors.StandardError {
	var stdErr *errors.StandardError
	var se *wizard.SubmissionError

	switch {
	case stderrors.As(err, &stdErr):
		return stdErr
	case stderrors.Is(err, wizard.ErrValidationFailed):
		return errors.NewWizardValidationFailedError(err.Error())
	case stderrors.Is(err, wizard.ErrLocked):
		return errors.NewWizardLockedError(string(ctrl.State()))
	case stderrors.Is(err, wizard.ErrSubmitInFlight):
		return errors.NewSubmitInFlightError()
	case stderrors.Is(err, wizard.ErrInvalidStep), stderrors.Is(err, wizard.ErrNotOnLastStep):
		return errors.NewInvalidRequestError(err.Error())
	case stderrors.Is(err, wizard.ErrNoGateway):
		return errors.NewSubmissionFailedError("Submission is not configured", false)
	case stderrors.As(err, &se):
		switch {
		case se.Kind == wizard.SubmissionErrorFieldMap:
			return errors.NewSubmissionRejectedError(se.Fields.String()).
				WithMetadata("fields", se.Fields).
				WithMetadata("statusCode", se.StatusCode)
		case se.TimedOut:
			return errors.NewSubmissionTimeoutError(se)
		default:
			return errors.NewSubmissionFailedError(se.Message, se.Retryable).
				WithMetadata("statusCode", se.StatusCode)
		}
	}

	s.logger.Error("unhandled wizard error", map[string]interface{}{
		"draftId": ctrl.ID(),
		"error":   err.Error(),
	})
	return errors.Normalize(err)
}

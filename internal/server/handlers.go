package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"premarket-bias/internal/credentials"
	"premarket-bias/internal/service"
)

// briefingRequest carries the optional per-run credentials.
type briefingRequest struct {
	LLMKey  string `json:"llm_key" form:"llm_key" validate:"omitempty,max=512"`
	NewsKey string `json:"news_key" form:"news_key" validate:"omitempty,max=512"`
	Model   string `json:"model" form:"model" validate:"omitempty,max=128"`
}

type briefingResponse struct {
	service.Result
	Context string `json:"context"`
}

type errorResponse struct {
	Error  string   `json:"error"`
	Fields []string `json:"fields,omitempty"`
}

func (s *Server) index(c echo.Context) error {
	return s.render(c, http.StatusOK, pageData{
		Idle:         true,
		Message:      service.IdleMessage,
		DefaultModel: s.opts.DefaultModel,
	})
}

func (s *Server) run(c echo.Context) error {
	req, err := s.bind(c)
	if err != nil {
		return s.render(c, http.StatusBadRequest, pageData{
			Idle:         true,
			Message:      err.Error(),
			DefaultModel: s.opts.DefaultModel,
		})
	}

	res := s.generate(c, "http", req)
	narrative, err := s.pages.markdown(res.Narrative.Text)
	if err != nil {
		s.logger.Warn().Err(err).Str("run_id", res.RunID).Msg("render narrative markdown")
	}

	return s.render(c, http.StatusOK, pageData{
		DefaultModel: s.opts.DefaultModel,
		Result:       &res,
		Narrative:    narrative,
		RawContext:   res.Context.String(),
		Failed:       res.Narrative.Failed(),
	})
}

func (s *Server) apiBriefing(c echo.Context) error {
	req, err := s.bind(c)
	if err != nil {
		var fields []string
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag()))
			}
		}
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request", Fields: fields})
	}

	res := s.generate(c, "api", req)
	return c.JSON(http.StatusOK, briefingResponse{Result: res, Context: res.Context.String()})
}

func (s *Server) bind(c echo.Context) (briefingRequest, error) {
	var req briefingRequest
	if err := c.Bind(&req); err != nil {
		return req, fmt.Errorf("read request: %w", err)
	}
	if err := s.validate.StructCtx(c.Request().Context(), &req); err != nil {
		return req, err
	}
	return req, nil
}

func (s *Server) generate(c echo.Context, trigger string, req briefingRequest) service.Result {
	return s.gen.Generate(c.Request().Context(), trigger, credentials.Input{
		LLMKey:  req.LLMKey,
		NewsKey: req.NewsKey,
	}, strings.TrimSpace(req.Model))
}

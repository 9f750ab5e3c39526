package echoapi

import (
	"net/http"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/session"
	"github.com/trezcool/admissions/core/wizard"
)

const uploadFormKey = "file"

type (
	FieldResponse struct {
		Name    string      `json:"name"`
		Label   string      `json:"label"`
		Kind    wizard.Kind `json:"kind"`
		Choices []string    `json:"choices,omitempty"`
	}

	StepResponse struct {
		Order  int             `json:"order"`
		Title  string          `json:"title"`
		Fields []FieldResponse `json:"fields"`
	}

	FormResponse struct {
		Name  string         `json:"name"`
		Title string         `json:"title"`
		Steps []StepResponse `json:"steps"`
	}

	SessionResponse struct {
		ID    string       `json:"id"`
		State wizard.State `json:"state"`
	}

	sessionParams struct {
		ID string `param:"id" json:"id" validate:"required,uuid"`
	}

	fileParams struct {
		ID    string `param:"id" json:"id" validate:"required,uuid"`
		Field string `param:"field" json:"field" validate:"fieldname"`
	}
)

func newFormResponse(f wizard.Form) FormResponse {
	resp := FormResponse{Name: f.Name, Title: f.Title, Steps: make([]StepResponse, 0, len(f.Steps))}
	for _, s := range f.Steps {
		step := StepResponse{Order: s.Order, Title: s.Title, Fields: make([]FieldResponse, 0, len(s.Fields))}
		for _, fld := range s.Fields {
			kind := fld.Kind
			if kind == "" {
				kind = wizard.KindText
			}
			step.Fields = append(step.Fields, FieldResponse{Name: fld.Name, Label: fld.Label, Kind: kind, Choices: fld.Choices})
		}
		resp.Steps = append(resp.Steps, step)
	}
	return resp
}

func newSessionResponse(sess *session.Session) SessionResponse {
	return SessionResponse{ID: sess.ID, State: sess.Wizard.State()}
}

type formsApi struct {
	svc            *session.Service
	validate       *validator.Validate
	originPatterns []string
}

func registerFormsAPI(g *echo.Group, svc *session.Service, validate *validator.Validate, allowOrigins []string) {
	api := formsApi{
		svc:            svc,
		validate:       validate,
		originPatterns: originPatterns(allowOrigins),
	}

	g.GET("/forms", api.listForms)
	g.POST("/forms/:form/sessions", api.openSession)

	sg := g.Group("/sessions/:id")
	sg.GET("", api.retrieve)
	sg.DELETE("", api.destroy)
	sg.PATCH("/fields", api.setFields)
	sg.POST("/files/:field", api.attachFile)
	sg.POST("/next", api.next)
	sg.POST("/prev", api.prev)
	sg.POST("/submit", api.submit)
	sg.POST("/retry", api.retry)
	sg.POST("/reset", api.reset)
	sg.GET("/events", api.events)
}

// Handlers

func (api *formsApi) listForms(ctx echo.Context) error {
	forms := api.svc.Forms()
	resp := make([]FormResponse, 0, len(forms))
	for _, f := range forms {
		resp = append(resp, newFormResponse(f))
	}
	return ctx.JSON(http.StatusOK, resp)
}

func (api *formsApi) openSession(ctx echo.Context) error {
	sess, err := api.svc.Open(ctx.Param("form"))
	if err != nil {
		return errors.Wrap(err, "opening session")
	}
	return ctx.JSON(http.StatusCreated, newSessionResponse(sess))
}

func (api *formsApi) retrieve(ctx echo.Context) error {
	sess, err := api.getSession(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, newSessionResponse(sess))
}

func (api *formsApi) destroy(ctx echo.Context) error {
	sess, err := api.getSession(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Close(sess.ID); err != nil {
		return errors.Wrap(err, "closing session")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// setFields upserts the draft values of a JSON object.
// Every value is parsed before any is set: a bad value leaves the draft untouched.
func (api *formsApi) setFields(ctx echo.Context) error {
	sess, err := api.getSession(ctx)
	if err != nil {
		return err
	}

	data := make(map[string]interface{})
	if err = new(echo.DefaultBinder).BindBody(ctx, &data); err != nil {
		return err
	}

	names := make([]string, 0, len(data))
	for name := range data {
		names = append(names, name)
	}
	sort.Strings(names)

	values := make(wizard.Values, len(data))
	var fldErrs []core.FieldError
	for _, name := range names {
		fld, ok := sess.Wizard.Field(name)
		if !ok {
			fldErrs = append(fldErrs, core.FieldError{Field: name, Error: wizard.ErrUnknownField.Error()})
			continue
		}
		val, pErr := fld.Parse(data[name])
		if pErr != nil {
			fldErrs = append(fldErrs, core.FieldError{Field: name, Error: parseErrorText(name, pErr)})
			continue
		}
		values[name] = val
	}
	if len(fldErrs) > 0 {
		return core.NewValidationError(errors.New("invalid field values"), fldErrs...)
	}

	for _, name := range names {
		if err = sess.Wizard.SetField(name, values[name]); err != nil {
			return errors.Wrap(err, "setting field")
		}
	}
	return ctx.JSON(http.StatusOK, newSessionResponse(sess))
}

func (api *formsApi) attachFile(ctx echo.Context) error {
	var params fileParams
	if err := new(echo.DefaultBinder).BindPathParams(ctx, &params); err != nil {
		return err
	}
	if err := api.validate.Struct(params); err != nil {
		return err
	}
	sess, err := api.svc.Get(params.ID)
	if err != nil {
		return err
	}

	file, err := ctx.FormFile(uploadFormKey)
	if err != nil {
		return core.NewValidationError(nil, core.FieldError{Field: uploadFormKey, Error: "no file was uploaded"})
	}
	fh := wizard.FileHandle{
		ID:          uuid.New().String(),
		Name:        file.Filename,
		Size:        file.Size,
		ContentType: file.Header.Get(echo.HeaderContentType),
	}
	if err = sess.Wizard.AttachFile(params.Field, fh); err != nil {
		return errors.Wrap(err, "attaching file")
	}
	return ctx.JSON(http.StatusAccepted, newSessionResponse(sess))
}

// next answers 200 even when the step does not validate: the state carries the errors.
func (api *formsApi) next(ctx echo.Context) error {
	sess, err := api.getSession(ctx)
	if err != nil {
		return err
	}
	if _, err = sess.Wizard.Next(ctx.Request().Context()); err != nil {
		return errors.Wrap(err, "moving forward")
	}
	return ctx.JSON(http.StatusOK, newSessionResponse(sess))
}

func (api *formsApi) prev(ctx echo.Context) error {
	sess, err := api.getSession(ctx)
	if err != nil {
		return err
	}
	if _, err = sess.Wizard.Prev(); err != nil {
		return errors.Wrap(err, "moving back")
	}
	return ctx.JSON(http.StatusOK, newSessionResponse(sess))
}

// submit blocks until the gateway answers; the outcome is in the state's status.
func (api *formsApi) submit(ctx echo.Context) error {
	sess, err := api.getSession(ctx)
	if err != nil {
		return err
	}
	if _, err = sess.Wizard.Submit(ctx.Request().Context()); err != nil {
		return errors.Wrap(err, "submitting")
	}
	return ctx.JSON(http.StatusOK, newSessionResponse(sess))
}

func (api *formsApi) retry(ctx echo.Context) error {
	sess, err := api.getSession(ctx)
	if err != nil {
		return err
	}
	if err = sess.Wizard.Retry(); err != nil {
		return errors.Wrap(err, "retrying")
	}
	return ctx.JSON(http.StatusOK, newSessionResponse(sess))
}

func (api *formsApi) reset(ctx echo.Context) error {
	sess, err := api.getSession(ctx)
	if err != nil {
		return err
	}
	if err = sess.Wizard.Reset(); err != nil {
		return errors.Wrap(err, "resetting")
	}
	return ctx.JSON(http.StatusOK, newSessionResponse(sess))
}

// Helpers

func (api *formsApi) getSession(ctx echo.Context) (*session.Session, error) {
	var params sessionParams
	if err := new(echo.DefaultBinder).BindPathParams(ctx, &params); err != nil {
		return nil, err
	}
	if err := api.validate.Struct(params); err != nil {
		return nil, errHttpNotFound
	}
	return api.svc.Get(params.ID)
}

// parseErrorText strips the field name and the sentinel from a Field.Parse error.
func parseErrorText(name string, err error) string {
	msg := strings.TrimPrefix(err.Error(), name+": ")
	return strings.TrimSuffix(msg, ": "+wizard.ErrBadValue.Error())
}

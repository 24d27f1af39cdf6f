package main

import (
	"embed"
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/mmdatafocus/mpms/config"
	"github.com/mmdatafocus/mpms/middlewares"
	"github.com/mmdatafocus/mpms/models"
	"github.com/mmdatafocus/mpms/utils"
)

//go:embed templates/*.html
var templateFS embed.FS

var templateFuncs = template.FuncMap{
	"date": func(t time.Time) string {
		return t.Format(models.DateLayout)
	},
	"dateptr": func(t *time.Time) string {
		if t == nil {
			return ""
		}
		return t.Format(models.DateLayout)
	},
	"money": func(d decimal.Decimal) string {
		return d.StringFixed(2)
	},
}

func loadTemplates() (*template.Template, error) {
	return template.New("").Funcs(templateFuncs).ParseFS(templateFS, "templates/*.html")
}

// render adds the layout data every page needs. Errors is always present so
// templates can index it.
func (app *App) render(c *gin.Context, status int, name string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	if _, ok := data["Errors"]; !ok {
		data["Errors"] = models.ValidationErrors{}
	}
	data["CurrentUser"] = middlewares.CurrentUser(c)
	data["Flashes"] = popFlashes(c)
	c.HTML(status, name, data)
}

// renderForm re-renders a form page when err is a form error and reports
// whether it did.
func (app *App) renderForm(c *gin.Context, name string, data gin.H, err error) bool {
	verrs, ok := models.AsValidationErrors(err)
	if !ok {
		if !errors.Is(err, models.ErrDuplicate) {
			return false
		}
		verrs = models.ValidationErrors{"form": "信息已存在"}
	}
	if data == nil {
		data = gin.H{}
	}
	data["Errors"] = verrs
	app.render(c, http.StatusUnprocessableEntity, name, data)
	return true
}

// handleError maps domain errors to error pages.
func (app *App) handleError(c *gin.Context, funcName string, err error) {
	switch {
	case errors.Is(err, utils.ErrorRecordNotFound), errors.Is(err, models.ErrPageOutOfRange):
		app.render(c, http.StatusNotFound, "404.html", nil)
	case errors.Is(err, models.ErrForbidden):
		app.render(c, http.StatusForbidden, "403.html", nil)
	default:
		config.LogError(app.logger, "main", funcName, c.Request.Method+" "+c.Request.URL.Path, nil, err)
		_ = c.Error(err)
		app.render(c, http.StatusInternalServerError, "500.html", nil)
	}
}

func (app *App) notFound(c *gin.Context) {
	app.render(c, http.StatusNotFound, "404.html", nil)
}

func (app *App) recovered(c *gin.Context, recovered any) {
	app.logger.WithField("panic", recovered).Error("recovered from panic")
	app.render(c, http.StatusInternalServerError, "500.html", nil)
	c.Abort()
}

// authenticated sends anonymous visitors to the login page and back.
func (app *App) authenticated(h func(c *gin.Context, user *models.User)) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := middlewares.CurrentUser(c)
		if user == nil {
			addFlash(c, flashInfo, "请先登录")
			c.Redirect(http.StatusFound, "/login?next="+url.QueryEscape(c.Request.URL.RequestURI()))
			return
		}
		h(c, user)
	}
}

func (app *App) anonymousOnly(h gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if middlewares.CurrentUser(c) != nil {
			c.Redirect(http.StatusFound, "/")
			return
		}
		h(c)
	}
}

// idParam reads a positive integer path parameter.
func idParam(c *gin.Context, name string) (int, error) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id < 1 {
		return 0, utils.ErrorRecordNotFound
	}
	return id, nil
}

func pageQuery(c *gin.Context) int {
	page, err := strconv.Atoi(c.Query("page"))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

// pageBase is the link prefix pagination appends a page number to.
func pageBase(path string, query url.Values) string {
	query.Del("page")
	if encoded := query.Encode(); encoded != "" {
		return path + "?" + encoded + "&page="
	}
	return path + "?page="
}

func firstError(errs []error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func redirectTo(c *gin.Context, location string) {
	c.Redirect(http.StatusFound, location)
}

func isPost(c *gin.Context) bool {
	return c.Request.Method == http.MethodPost
}

package main

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mmdatafocus/mpms/config"
	"github.com/mmdatafocus/mpms/models"
	"github.com/mmdatafocus/mpms/utils"
	"github.com/mmdatafocus/mpms/workflow"
)

// guestsHandler lists guests; a POSTed search is redirected to the GET
// listing so that pagination links keep the query.
func (app *App) guestsHandler(c *gin.Context, _ *models.User) {
	if isPost(c) {
		query := strings.TrimSpace(c.PostForm("guest_name"))
		redirectTo(c, "/guests?"+url.Values{"guest_name": {query}}.Encode())
		return
	}

	query := strings.TrimSpace(c.Query("guest_name"))
	page, err := models.ListGuests(c.Request.Context(), app.db, query, pageQuery(c), config.PerPage, app.cfg.SearchCaseSensitive)
	if err != nil {
		app.handleError(c, "guestsHandler", err)
		return
	}
	app.render(c, http.StatusOK, "guests.html", gin.H{
		"Page":     page,
		"PageBase": pageBase("/guests", c.Request.URL.Query()),
		"Query":    query,
	})
}

func (app *App) newGuestHandler(c *gin.Context, _ *models.User) {
	var input models.NewGuest
	data := gin.H{"Form": &input, "Action": "/guests/new"}
	if !isPost(c) {
		app.render(c, http.StatusOK, "guest_form.html", data)
		return
	}
	_ = c.ShouldBind(&input)

	ctx := c.Request.Context()
	guest, err := models.CreateGuest(ctx, app.db, &input)
	if err != nil {
		if app.renderForm(c, "guest_form.html", data, err) {
			return
		}
		app.handleError(c, "newGuestHandler", err)
		return
	}
	app.emit(ctx, workflow.ReferenceGuest, workflow.ActionCreate, guest.ID, guest)
	addFlash(c, flashSuccess, "客户信息创建成功")
	redirectTo(c, "/guests")
}

// queryGuestHandler finds the first guest matching a name so a case can be
// opened for it.
func (app *App) queryGuestHandler(c *gin.Context, _ *models.User) {
	if !isPost(c) {
		app.render(c, http.StatusOK, "guest_query.html", nil)
		return
	}
	query := strings.TrimSpace(c.PostForm("guest_name"))
	data := gin.H{"Query": query}

	guest, err := models.FindFirstGuest(c.Request.Context(), app.db, query, app.cfg.SearchCaseSensitive)
	if err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			addFlash(c, flashWarning, "未查询到客户"+query)
			app.render(c, http.StatusOK, "guest_query.html", data)
			return
		}
		if app.renderForm(c, "guest_query.html", data, err) {
			return
		}
		app.handleError(c, "queryGuestHandler", err)
		return
	}
	addFlash(c, flashSuccess, "查询到客户"+guest.GuestName)
	redirectTo(c, "/guests/"+strconv.Itoa(guest.ID)+"/cases/new")
}

func (app *App) guestHandler(c *gin.Context, _ *models.User) {
	ctx := c.Request.Context()
	id, err := idParam(c, "guest_id")
	if err != nil {
		app.handleError(c, "guestHandler", err)
		return
	}
	guest, err := models.GetGuest(ctx, app.db, id)
	if err != nil {
		app.handleError(c, "guestHandler", err)
		return
	}
	contacts, err := models.ListGuestContacts(ctx, app.db, guest.ID)
	if err != nil {
		app.handleError(c, "guestHandler", err)
		return
	}
	cases, err := models.ListCasesByGuest(ctx, app.db, guest.ID)
	if err != nil {
		app.handleError(c, "guestHandler", err)
		return
	}
	app.render(c, http.StatusOK, "guest.html", gin.H{
		"Guest":    guest,
		"Contacts": contacts,
		"Cases":    cases,
	})
}

func (app *App) editGuestHandler(c *gin.Context, _ *models.User) {
	ctx := c.Request.Context()
	id, err := idParam(c, "guest_id")
	if err != nil {
		app.handleError(c, "editGuestHandler", err)
		return
	}
	guest, err := models.GetGuest(ctx, app.db, id)
	if err != nil {
		app.handleError(c, "editGuestHandler", err)
		return
	}

	input := models.NewGuest{
		GuestName: guest.GuestName,
		GuestCode: guest.GuestCode,
		Address:   guest.Address,
	}
	data := gin.H{"Form": &input, "Guest": guest, "Action": c.Request.URL.Path}
	if !isPost(c) {
		app.render(c, http.StatusOK, "guest_form.html", data)
		return
	}
	_ = c.ShouldBind(&input)

	updated, err := models.UpdateGuest(ctx, app.db, guest.ID, &input)
	if err != nil {
		if app.renderForm(c, "guest_form.html", data, err) {
			return
		}
		app.handleError(c, "editGuestHandler", err)
		return
	}
	app.emit(ctx, workflow.ReferenceGuest, workflow.ActionUpdate, updated.ID, updated)
	addFlash(c, flashSuccess, "客户信息更新成功")
	redirectTo(c, "/guests/"+strconv.Itoa(updated.ID))
}

func (app *App) newContactHandler(c *gin.Context, _ *models.User) {
	ctx := c.Request.Context()
	guestId, err := idParam(c, "guest_id")
	if err != nil {
		app.handleError(c, "newContactHandler", err)
		return
	}
	guest, err := models.GetGuest(ctx, app.db, guestId)
	if err != nil {
		app.handleError(c, "newContactHandler", err)
		return
	}

	var input models.NewGuestContact
	data := gin.H{"Form": &input, "Guest": guest, "Action": c.Request.URL.Path}
	if !isPost(c) {
		app.render(c, http.StatusOK, "contact_form.html", data)
		return
	}
	_ = c.ShouldBind(&input)

	contact, err := models.CreateGuestContact(ctx, app.db, guest.ID, &input, app.cfg.PhoneRegion)
	if err != nil {
		if app.renderForm(c, "contact_form.html", data, err) {
			return
		}
		app.handleError(c, "newContactHandler", err)
		return
	}
	app.emit(ctx, workflow.ReferenceGuestContact, workflow.ActionCreate, contact.ID, contact)
	addFlash(c, flashSuccess, "联系人添加成功")
	redirectTo(c, "/guests")
}

func (app *App) editContactHandler(c *gin.Context, _ *models.User) {
	ctx := c.Request.Context()
	id, err := idParam(c, "contact_id")
	if err != nil {
		app.handleError(c, "editContactHandler", err)
		return
	}
	contact, err := models.GetGuestContact(ctx, app.db, id)
	if err != nil {
		app.handleError(c, "editContactHandler", err)
		return
	}
	guest, err := models.GetGuest(ctx, app.db, contact.GuestId)
	if err != nil {
		app.handleError(c, "editContactHandler", err)
		return
	}

	input := models.NewGuestContact{
		Name:        contact.Name,
		Email:       contact.Email,
		MobilePhone: contact.MobilePhone,
		Wechat:      contact.Wechat,
	}
	data := gin.H{"Form": &input, "Guest": guest, "Action": c.Request.URL.Path}
	if !isPost(c) {
		app.render(c, http.StatusOK, "contact_form.html", data)
		return
	}
	_ = c.ShouldBind(&input)

	updated, err := models.UpdateGuestContact(ctx, app.db, contact.ID, &input, app.cfg.PhoneRegion)
	if err != nil {
		if app.renderForm(c, "contact_form.html", data, err) {
			return
		}
		app.handleError(c, "editContactHandler", err)
		return
	}
	app.emit(ctx, workflow.ReferenceGuestContact, workflow.ActionUpdate, updated.ID, updated)
	addFlash(c, flashSuccess, "联系人信息更新成功")
	redirectTo(c, "/guests/"+strconv.Itoa(guest.ID))
}

func (app *App) newCaseHandler(c *gin.Context, user *models.User) {
	ctx := c.Request.Context()
	guestId, err := idParam(c, "guest_id")
	if err != nil {
		app.handleError(c, "newCaseHandler", err)
		return
	}
	guest, err := models.GetGuest(ctx, app.db, guestId)
	if err != nil {
		app.handleError(c, "newCaseHandler", err)
		return
	}

	input := models.NewCase{StartDate: app.now().UTC().Format(models.DateLayout)}
	data := gin.H{"Form": &input, "Guest": guest}
	if !isPost(c) {
		app.render(c, http.StatusOK, "case_form.html", data)
		return
	}
	input.StartDate = ""
	_ = c.ShouldBind(&input)

	created, err := models.CreateCase(ctx, app.db, user, guest.ID, &input, app.now())
	if err != nil {
		if app.renderForm(c, "case_form.html", data, err) {
			return
		}
		app.handleError(c, "newCaseHandler", err)
		return
	}
	app.emit(ctx, workflow.ReferenceCase, workflow.ActionCreate, created.ID, created)
	addFlash(c, flashSuccess, "专案创建成功")
	redirectTo(c, "/cases/"+strconv.Itoa(created.ID))
}

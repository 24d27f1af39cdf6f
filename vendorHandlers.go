package main

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mmdatafocus/mpms/config"
	"github.com/mmdatafocus/mpms/models"
	"github.com/mmdatafocus/mpms/workflow"
)

func (app *App) vendorsHandler(c *gin.Context, _ *models.User) {
	query := strings.TrimSpace(c.Query("name"))
	page, err := models.ListVendors(c.Request.Context(), app.db, query, pageQuery(c), config.PerPage, app.cfg.SearchCaseSensitive)
	if err != nil {
		app.handleError(c, "vendorsHandler", err)
		return
	}
	app.render(c, http.StatusOK, "vendors.html", gin.H{
		"Page":     page,
		"PageBase": pageBase("/vendors", c.Request.URL.Query()),
		"Query":    query,
	})
}

func (app *App) newVendorHandler(c *gin.Context, user *models.User) {
	var input models.NewVendor
	data := gin.H{"Form": &input, "Action": "/vendors/new"}
	if !isPost(c) {
		app.render(c, http.StatusOK, "vendor_form.html", data)
		return
	}
	_ = c.ShouldBind(&input)

	ctx := c.Request.Context()
	vendor, err := models.CreateVendor(ctx, app.db, user, &input)
	if err != nil {
		if app.renderForm(c, "vendor_form.html", data, err) {
			return
		}
		app.handleError(c, "newVendorHandler", err)
		return
	}
	app.emit(ctx, workflow.ReferenceVendor, workflow.ActionCreate, vendor.ID, vendor)
	addFlash(c, flashSuccess, "供应商信息创建成功")
	redirectTo(c, "/vendors")
}

func (app *App) editVendorHandler(c *gin.Context, _ *models.User) {
	ctx := c.Request.Context()
	id, err := idParam(c, "vendor_id")
	if err != nil {
		app.handleError(c, "editVendorHandler", err)
		return
	}
	vendor, err := models.GetVendor(ctx, app.db, id)
	if err != nil {
		app.handleError(c, "editVendorHandler", err)
		return
	}

	input := models.NewVendor{
		Name:       vendor.Name,
		VendorCode: vendor.VendorCode,
		Address:    vendor.Address,
	}
	data := gin.H{"Form": &input, "Vendor": vendor, "Action": c.Request.URL.Path}
	if !isPost(c) {
		app.render(c, http.StatusOK, "vendor_form.html", data)
		return
	}
	_ = c.ShouldBind(&input)

	updated, err := models.UpdateVendor(ctx, app.db, vendor.ID, &input)
	if err != nil {
		if app.renderForm(c, "vendor_form.html", data, err) {
			return
		}
		app.handleError(c, "editVendorHandler", err)
		return
	}
	app.emit(ctx, workflow.ReferenceVendor, workflow.ActionUpdate, updated.ID, updated)
	addFlash(c, flashSuccess, "供应商信息更新成功")
	redirectTo(c, "/vendors")
}

// deleteVendorHandler refuses while a case detail still references the
// vendor.
func (app *App) deleteVendorHandler(c *gin.Context, _ *models.User) {
	ctx := c.Request.Context()
	id, err := idParam(c, "vendor_id")
	if err != nil {
		app.handleError(c, "deleteVendorHandler", err)
		return
	}
	vendor, err := models.GetVendor(ctx, app.db, id)
	if err != nil {
		app.handleError(c, "deleteVendorHandler", err)
		return
	}

	if _, err := models.DeleteVendor(ctx, app.db, vendor.ID); err != nil {
		if errors.Is(err, models.ErrVendorInUse) {
			addFlash(c, flashWarning, "供应商"+vendor.Name+"有关联信息")
			redirectTo(c, "/vendors")
			return
		}
		app.handleError(c, "deleteVendorHandler", err)
		return
	}
	app.emit(ctx, workflow.ReferenceVendor, workflow.ActionDelete, vendor.ID, vendor)
	addFlash(c, flashSuccess, "供应商"+vendor.Name+"删除成功")
	redirectTo(c, "/vendors")
}

package main

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mmdatafocus/mpms/config"
	"github.com/mmdatafocus/mpms/middlewares"
	"github.com/mmdatafocus/mpms/models"
	"github.com/mmdatafocus/mpms/workflow"
)

type caseRow struct {
	Case   *models.Case
	Guest  *models.Guest
	Author *models.User
}

type caseDetailRow struct {
	Detail    *models.CaseDetail
	Vendor    *models.Vendor
	Author    *models.User
	CanDelete bool
}

// homeHandler lists all cases by start date.
func (app *App) homeHandler(c *gin.Context) {
	ctx := c.Request.Context()
	page, err := models.ListCases(ctx, app.db, pageQuery(c), config.PerPage)
	if err != nil {
		app.handleError(c, "homeHandler", err)
		return
	}

	guestIds := make([]int, len(page.Items))
	userIds := make([]int, len(page.Items))
	for i, item := range page.Items {
		guestIds[i] = item.GuestId
		userIds[i] = item.UserId
	}
	guests, errs := middlewares.GetGuests(ctx, guestIds)
	if err := firstError(errs); err != nil {
		app.handleError(c, "homeHandler", err)
		return
	}
	users, errs := middlewares.GetUsers(ctx, userIds)
	if err := firstError(errs); err != nil {
		app.handleError(c, "homeHandler", err)
		return
	}

	rows := make([]caseRow, len(page.Items))
	for i := range page.Items {
		rows[i] = caseRow{Case: &page.Items[i], Guest: guests[i], Author: users[i]}
	}
	app.render(c, http.StatusOK, "home.html", gin.H{
		"Page":     page,
		"PageBase": pageBase("/", c.Request.URL.Query()),
		"Rows":     rows,
	})
}

func (app *App) caseHandler(c *gin.Context, user *models.User) {
	ctx := c.Request.Context()
	id, err := idParam(c, "case_id")
	if err != nil {
		app.handleError(c, "caseHandler", err)
		return
	}
	cs, err := models.GetCase(ctx, app.db, id)
	if err != nil {
		app.handleError(c, "caseHandler", err)
		return
	}
	guest, err := middlewares.GetGuest(ctx, cs.GuestId)
	if err != nil {
		app.handleError(c, "caseHandler", err)
		return
	}
	page, err := models.ListCaseDetails(ctx, app.db, cs.ID, pageQuery(c), config.PerPage)
	if err != nil {
		app.handleError(c, "caseHandler", err)
		return
	}

	vendorIds := make([]int, len(page.Items))
	userIds := make([]int, len(page.Items))
	for i, item := range page.Items {
		vendorIds[i] = item.VendorId
		userIds[i] = item.UserId
	}
	vendors, errs := middlewares.GetVendors(ctx, vendorIds)
	if err := firstError(errs); err != nil {
		app.handleError(c, "caseHandler", err)
		return
	}
	users, errs := middlewares.GetUsers(ctx, userIds)
	if err := firstError(errs); err != nil {
		app.handleError(c, "caseHandler", err)
		return
	}

	rows := make([]caseDetailRow, len(page.Items))
	for i := range page.Items {
		rows[i] = caseDetailRow{
			Detail:    &page.Items[i],
			Vendor:    vendors[i],
			Author:    users[i],
			CanDelete: page.Items[i].UserId == user.ID,
		}
	}
	app.render(c, http.StatusOK, "case.html", gin.H{
		"Case":     cs,
		"Guest":    guest,
		"Page":     page,
		"PageBase": pageBase(c.Request.URL.Path, c.Request.URL.Query()),
		"Rows":     rows,
	})
}

// caseVendorsHandler is the vendor picker used before adding a detail.
func (app *App) caseVendorsHandler(c *gin.Context, _ *models.User) {
	ctx := c.Request.Context()
	id, err := idParam(c, "case_id")
	if err != nil {
		app.handleError(c, "caseVendorsHandler", err)
		return
	}
	cs, err := models.GetCase(ctx, app.db, id)
	if err != nil {
		app.handleError(c, "caseVendorsHandler", err)
		return
	}

	query := strings.TrimSpace(c.PostForm("name"))
	vendors, err := models.SearchVendors(ctx, app.db, query, app.cfg.SearchCaseSensitive)
	if err != nil {
		app.handleError(c, "caseVendorsHandler", err)
		return
	}
	if isPost(c) {
		if len(vendors) > 0 {
			addFlash(c, flashSuccess, "查询到供应商信息")
		} else {
			addFlash(c, flashWarning, "未查询到供应商信息")
		}
	}
	app.render(c, http.StatusOK, "case_vendors.html", gin.H{
		"Case":    cs,
		"Vendors": vendors,
		"Query":   query,
	})
}

func (app *App) newCaseDetailHandler(c *gin.Context, user *models.User) {
	ctx := c.Request.Context()
	caseId, err := idParam(c, "case_id")
	if err != nil {
		app.handleError(c, "newCaseDetailHandler", err)
		return
	}
	vendorId, err := idParam(c, "vendor_id")
	if err != nil {
		app.handleError(c, "newCaseDetailHandler", err)
		return
	}
	cs, err := models.GetCase(ctx, app.db, caseId)
	if err != nil {
		app.handleError(c, "newCaseDetailHandler", err)
		return
	}
	vendor, err := models.GetVendor(ctx, app.db, vendorId)
	if err != nil {
		app.handleError(c, "newCaseDetailHandler", err)
		return
	}

	input := models.NewCaseDetail{
		ProcessSection:      string(models.ProcessSections[0]),
		ContractCode:        cs.ContractCode,
		Quantity:            "1",
		PayAfterContract:    "0",
		PayBeforeDeliver:    "0",
		PayAfterSetup:       "0",
		PayAfterReceive:     "0",
		PayDaysAfterReceive: "0",
	}
	data := gin.H{
		"Form":     &input,
		"Case":     cs,
		"Vendor":   vendor,
		"Sections": models.ProcessSections,
	}
	if !isPost(c) {
		app.render(c, http.StatusOK, "case_detail_form.html", data)
		return
	}
	input = models.NewCaseDetail{}
	_ = c.ShouldBind(&input)

	detail, err := models.CreateCaseDetail(ctx, app.db, user, cs.ID, vendor.ID, &input)
	if err != nil {
		if app.renderForm(c, "case_detail_form.html", data, err) {
			return
		}
		app.handleError(c, "newCaseDetailHandler", err)
		return
	}
	app.emit(ctx, workflow.ReferenceCaseDetail, workflow.ActionCreate, detail.ID, detail)
	addFlash(c, flashSuccess, "明细添加成功")
	redirectTo(c, "/cases/"+strconv.Itoa(cs.ID))
}

func (app *App) deleteCaseDetailHandler(c *gin.Context, user *models.User) {
	ctx := c.Request.Context()
	caseId, err := idParam(c, "case_id")
	if err != nil {
		app.handleError(c, "deleteCaseDetailHandler", err)
		return
	}
	detailId, err := idParam(c, "detail_id")
	if err != nil {
		app.handleError(c, "deleteCaseDetailHandler", err)
		return
	}

	detail, err := models.DeleteCaseDetail(ctx, app.db, user, caseId, detailId)
	if err != nil {
		app.handleError(c, "deleteCaseDetailHandler", err)
		return
	}
	app.emit(ctx, workflow.ReferenceCaseDetail, workflow.ActionDelete, detail.ID, detail)
	addFlash(c, flashSuccess, fmt.Sprintf("专案项目%s删除成功", detail.EqName))
	redirectTo(c, "/cases/"+strconv.Itoa(caseId))
}

func (app *App) exportCaseHandler(c *gin.Context, _ *models.User) {
	ctx := c.Request.Context()
	id, err := idParam(c, "case_id")
	if err != nil {
		app.handleError(c, "exportCaseHandler", err)
		return
	}
	cs, err := models.GetCase(ctx, app.db, id)
	if err != nil {
		app.handleError(c, "exportCaseHandler", err)
		return
	}
	details, err := models.AllCaseDetails(ctx, app.db, cs.ID)
	if err != nil {
		app.handleError(c, "exportCaseHandler", err)
		return
	}
	vendorIds := make([]int, len(details))
	for i, d := range details {
		vendorIds[i] = d.VendorId
	}
	vendors, errs := middlewares.GetVendors(ctx, vendorIds)
	if err := firstError(errs); err != nil {
		app.handleError(c, "exportCaseHandler", err)
		return
	}

	f, err := caseDetailWorkbook(cs, details, vendors)
	if err != nil {
		app.handleError(c, "exportCaseHandler", err)
		return
	}
	defer f.Close()

	c.Header("Content-Type", xlsxContentType)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=case-%d.xlsx", cs.ID))
	c.Status(http.StatusOK)
	if err := f.Write(c.Writer); err != nil {
		config.LogError(app.logger, "main", "exportCaseHandler", "write workbook", cs.ID, err)
	}
}

package main

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mmdatafocus/mpms/config"
	"github.com/mmdatafocus/mpms/middlewares"
	"github.com/mmdatafocus/mpms/models"
	"github.com/mmdatafocus/mpms/utils"
	"github.com/mmdatafocus/mpms/workflow"
)

const resetMailInterval = time.Minute

func resetMailKey(email string) string {
	return "ResetMail:" + strings.ToLower(strings.TrimSpace(email))
}

// public user fields for change events
func userPayload(user *models.User) gin.H {
	return gin.H{
		"id":       user.ID,
		"username": user.Username,
		"email":    user.Email,
		"group":    user.Group,
	}
}

func (app *App) registerHandler(c *gin.Context) {
	input := models.NewUser{Group: models.DefaultGroup}
	if !isPost(c) {
		app.render(c, http.StatusOK, "register.html", gin.H{"Form": input})
		return
	}
	_ = c.ShouldBind(&input)

	ctx := c.Request.Context()
	user, err := models.Register(ctx, app.db, &input)
	if err != nil {
		input.Password, input.ConfirmPassword = "", ""
		if app.renderForm(c, "register.html", gin.H{"Form": input}, err) {
			return
		}
		app.handleError(c, "registerHandler", err)
		return
	}
	app.emit(ctx, workflow.ReferenceUser, workflow.ActionCreate, user.ID, userPayload(user))
	addFlash(c, flashSuccess, "注册成功")
	redirectTo(c, "/login")
}

func (app *App) loginHandler(c *gin.Context) {
	var input models.LoginInput
	if !isPost(c) {
		app.render(c, http.StatusOK, "login.html", gin.H{"Form": input})
		return
	}
	_ = c.ShouldBind(&input)

	ctx := c.Request.Context()
	user, err := models.Authenticate(ctx, app.db, &input)
	if err != nil {
		input.Password = ""
		if errors.Is(err, models.ErrInvalidCredentials) {
			addFlash(c, flashDanger, "账号或密码错误")
			app.render(c, http.StatusUnprocessableEntity, "login.html", gin.H{"Form": input})
			return
		}
		if app.renderForm(c, "login.html", gin.H{"Form": input}, err) {
			return
		}
		app.handleError(c, "loginHandler", err)
		return
	}

	lifetime := app.cfg.SessionLifetime
	if input.Remember {
		lifetime = app.cfg.RememberLifetime
	}
	token, _, err := utils.NewSessionToken(app.cfg.SecretKey, user.ID, lifetime, app.now())
	if err != nil {
		app.handleError(c, "loginHandler", err)
		return
	}
	middlewares.SetSessionCookie(c, app.sessionOptions(), token, lifetime, input.Remember)
	addFlash(c, flashSuccess, "【"+user.Email+"】登录成功！")

	next := c.Query("next")
	if !utils.IsLocalPath(next) {
		next = "/"
	}
	redirectTo(c, next)
}

// logoutHandler revokes the session id until the token would have expired
// anyway, so a copied cookie stops working too.
func (app *App) logoutHandler(c *gin.Context) {
	if session := middlewares.CurrentSession(c); session != nil && session.Claim != nil {
		ttl := time.Until(time.Unix(session.Claim.ExpiresAt, 0))
		if ttl > 0 {
			if err := app.cache.SetValue(c.Request.Context(), middlewares.RevokedSessionKey(session.Claim.Id), "1", ttl); err != nil {
				config.LogError(app.logger, "main", "logoutHandler", "revoke session", session.Claim.Id, err)
			}
		}
	}
	middlewares.ClearSessionCookie(c, app.sessionOptions())
	redirectTo(c, "/login")
}

func (app *App) accountHandler(c *gin.Context, user *models.User) {
	ctx := c.Request.Context()
	vendors, err := models.ListVendorsByAuthor(ctx, app.db, user.ID)
	if err != nil {
		app.handleError(c, "accountHandler", err)
		return
	}
	postCount, err := models.CountPostsByUser(ctx, app.db, user.ID)
	if err != nil {
		app.handleError(c, "accountHandler", err)
		return
	}
	app.render(c, http.StatusOK, "account.html", gin.H{
		"User":      user,
		"AvatarURL": app.images.URL(utils.AvatarDir, user.AccountImage),
		"Vendors":   vendors,
		"PostCount": postCount,
	})
}

func (app *App) updateAccountHandler(c *gin.Context, user *models.User) {
	input := models.UpdateAccountInput{
		Username: user.Username,
		Email:    user.Email,
		Group:    user.Group,
	}
	data := gin.H{
		"Form":      &input,
		"AvatarURL": app.images.URL(utils.AvatarDir, user.AccountImage),
	}
	if !isPost(c) {
		app.render(c, http.StatusOK, "account_update.html", data)
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, utils.MaxUploadSizeBytes+(1<<20))
	_ = c.ShouldBind(&input)

	ctx := c.Request.Context()
	// form errors are reported before any picture is stored
	if err := input.Validate(ctx, app.db, user); err != nil {
		if app.renderForm(c, "account_update.html", data, err) {
			return
		}
		app.handleError(c, "updateAccountHandler", err)
		return
	}
	image, err := app.saveAvatar(c)
	if err != nil {
		if app.renderForm(c, "account_update.html", data, err) {
			return
		}
		app.handleError(c, "updateAccountHandler", err)
		return
	}
	input.AccountImage = image

	updated, err := models.UpdateAccount(ctx, app.db, user, &input)
	if err != nil {
		if app.renderForm(c, "account_update.html", data, err) {
			return
		}
		app.handleError(c, "updateAccountHandler", err)
		return
	}
	if err := updated.RemoveInstanceRedis(ctx, app.cache); err != nil {
		config.LogError(app.logger, "main", "updateAccountHandler", "evict user cache", updated.ID, err)
	}
	app.emit(ctx, workflow.ReferenceUser, workflow.ActionUpdate, updated.ID, userPayload(updated))
	addFlash(c, flashSuccess, "账户信息更新成功")
	redirectTo(c, "/account")
}

func (app *App) changePasswordHandler(c *gin.Context, user *models.User) {
	var input models.ChangePasswordInput
	if !isPost(c) {
		app.render(c, http.StatusOK, "change_password.html", nil)
		return
	}
	_ = c.ShouldBind(&input)

	ctx := c.Request.Context()
	if err := models.ChangePassword(ctx, app.db, user, &input); err != nil {
		if app.renderForm(c, "change_password.html", nil, err) {
			return
		}
		app.handleError(c, "changePasswordHandler", err)
		return
	}
	if err := user.RemoveInstanceRedis(ctx, app.cache); err != nil {
		config.LogError(app.logger, "main", "changePasswordHandler", "evict user cache", user.ID, err)
	}
	addFlash(c, flashSuccess, "密码更改成功")
	redirectTo(c, "/account")
}

// resetRequestHandler mails a reset link. Requests for the same address
// are throttled when redis is available.
func (app *App) resetRequestHandler(c *gin.Context) {
	var input models.RequestResetInput
	if !isPost(c) {
		app.render(c, http.StatusOK, "reset_request.html", gin.H{"Form": input})
		return
	}
	_ = c.ShouldBind(&input)

	ctx := c.Request.Context()
	user, token, err := models.IssueResetToken(ctx, app.db, app.cfg.SecretKey, &input, app.cfg.ResetTokenLifetime, app.now())
	if err != nil {
		if app.renderForm(c, "reset_request.html", gin.H{"Form": input}, err) {
			return
		}
		app.handleError(c, "resetRequestHandler", err)
		return
	}

	if err := app.cache.Throttle(ctx, resetMailKey(user.Email), resetMailInterval); err != nil {
		if errors.Is(err, config.ErrLocked) {
			addFlash(c, flashInfo, "重置邮件已发送，请稍后再试")
			redirectTo(c, "/")
			return
		}
		config.LogError(app.logger, "main", "resetRequestHandler", "throttle reset mail", user.ID, err)
	}

	msg := utils.ResetPasswordMail(user.Email, app.externalURL(c, "/reset_password/"+token))
	if err := app.mailer.Send(ctx, msg); err != nil {
		config.LogError(app.logger, "main", "resetRequestHandler", "send reset mail", user.ID, err)
		addFlash(c, flashDanger, "邮件发送失败，请稍后再试")
		redirectTo(c, "/reset_password")
		return
	}
	addFlash(c, flashInfo, "重置邮件已发送，请查收")
	redirectTo(c, "/")
}

func (app *App) resetTokenHandler(c *gin.Context) {
	ctx := c.Request.Context()
	user, err := models.VerifyResetToken(ctx, app.db, app.cfg.SecretKey, c.Param("token"), app.now())
	if err != nil {
		if errors.Is(err, utils.ErrTokenExpired) || errors.Is(err, utils.ErrTokenInvalid) {
			app.render(c, http.StatusOK, "reset_expired.html", nil)
			return
		}
		app.handleError(c, "resetTokenHandler", err)
		return
	}

	var input models.ResetPasswordInput
	if !isPost(c) {
		app.render(c, http.StatusOK, "reset_password.html", nil)
		return
	}
	_ = c.ShouldBind(&input)

	if err := models.ResetPassword(ctx, app.db, user, &input); err != nil {
		if app.renderForm(c, "reset_password.html", nil, err) {
			return
		}
		app.handleError(c, "resetTokenHandler", err)
		return
	}
	if err := user.RemoveInstanceRedis(ctx, app.cache); err != nil {
		config.LogError(app.logger, "main", "resetTokenHandler", "evict user cache", user.ID, err)
	}
	addFlash(c, flashSuccess, "密码修改成功")
	redirectTo(c, "/login")
}

// externalURL prefers BASE_URL so links in mails survive proxies.
func (app *App) externalURL(c *gin.Context, path string) string {
	if base := strings.TrimRight(app.cfg.BaseURL, "/"); base != "" {
		return base + path
	}
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + c.Request.Host + path
}

package main

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmdatafocus/mpms/config"
	"github.com/mmdatafocus/mpms/middlewares"
	"github.com/mmdatafocus/mpms/models"
	"github.com/mmdatafocus/mpms/utils"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	utils.HashCost = bcrypt.MinCost
	os.Exit(m.Run())
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []utils.MailMessage
}

func (m *recordingMailer) Send(_ context.Context, msg utils.MailMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

type testServer struct {
	app    *App
	router *gin.Engine
	mailer *recordingMailer
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		Env:                "test",
		SecretKey:          "server-test-secret",
		BaseURL:            "http://mpms.test",
		Database:           config.DatabaseConfig{Driver: config.DriverSQLite, Path: filepath.Join(dir, "mpms_test.db")},
		Storage:            config.StorageConfig{Provider: config.StorageProviderLocal, StaticDir: filepath.Join(dir, "static")},
		ResetTokenLifetime: 10 * time.Minute,
		SessionLifetime:    time.Hour,
		RememberLifetime:   24 * time.Hour,
		PhoneRegion:        "CN",
	}
	db, err := config.OpenDatabase(cfg.Database)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := models.MigrateTable(context.Background(), db, nil); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	mailer := &recordingMailer{}
	app := &App{
		cfg:    cfg,
		db:     db,
		logger: logger,
		mailer: mailer,
		images: &utils.LocalImageStore{Root: cfg.Storage.StaticDir, URLPrefix: "/static"},
		now:    time.Now,
	}
	r, err := app.router()
	if err != nil {
		t.Fatalf("router: %v", err)
	}
	return &testServer{app: app, router: r, mailer: mailer}
}

func (s *testServer) register(t *testing.T, username string, email string) *models.User {
	t.Helper()
	user, err := models.Register(context.Background(), s.app.db, &models.NewUser{
		Username:        username,
		Email:           email,
		Password:        "secret1",
		ConfirmPassword: "secret1",
		Group:           models.DefaultGroup,
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return user
}

func (s *testServer) sessionCookie(t *testing.T, user *models.User) *http.Cookie {
	t.Helper()
	token, _, err := utils.NewSessionToken(s.app.cfg.SecretKey, user.ID, time.Hour, time.Now())
	if err != nil {
		t.Fatalf("session token: %v", err)
	}
	return &http.Cookie{Name: middlewares.SessionCookieName, Value: token}
}

func (s *testServer) do(method string, target string, form url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func responseCookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestAnonymousRequestRedirectsToLogin(t *testing.T) {
	s := newTestServer(t)
	w := s.do(http.MethodGet, "/guests?page=2", nil)
	if w.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/login?next="+url.QueryEscape("/guests?page=2") {
		t.Fatalf("unexpected redirect %q", loc)
	}
	flash := responseCookie(w, flashCookieName)
	if flash == nil {
		t.Fatalf("expected a flash cookie")
	}
	if msgs := decodeFlashes(flash.Value); len(msgs) != 1 || msgs[0].Message != "请先登录" {
		t.Fatalf("unexpected flashes %+v", msgs)
	}
}

func TestLoginRedirectsToNext(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "alice01", "alice@example.com")

	form := url.Values{"email": {"alice@example.com"}, "password": {"secret1"}}
	w := s.do(http.MethodPost, "/login?next=%2Fvendors", form)
	if w.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d: %s", w.Code, w.Body.String())
	}
	if loc := w.Header().Get("Location"); loc != "/vendors" {
		t.Fatalf("expected redirect to /vendors, got %q", loc)
	}
	session := responseCookie(w, middlewares.SessionCookieName)
	if session == nil || session.Value == "" {
		t.Fatalf("expected a session cookie")
	}
	if session.MaxAge != 0 {
		t.Fatalf("expected a browser-session cookie without remember, got max-age %d", session.MaxAge)
	}

	w = s.do(http.MethodGet, "/vendors", nil, session)
	if w.Code != http.StatusOK {
		t.Fatalf("expected the vendors page with the session, got %d", w.Code)
	}

	w = s.do(http.MethodPost, "/login?next=https%3A%2F%2Fevil.example", form)
	if loc := w.Header().Get("Location"); loc != "/" {
		t.Fatalf("expected external next to be ignored, got %q", loc)
	}
}

func TestLoginRemember(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "bobby01", "bob@example.com")

	form := url.Values{"email": {"bob@example.com"}, "password": {"secret1"}, "remember": {"true"}}
	w := s.do(http.MethodPost, "/login", form)
	session := responseCookie(w, middlewares.SessionCookieName)
	if session == nil || session.MaxAge != int((24*time.Hour).Seconds()) {
		t.Fatalf("expected a persistent session cookie, got %+v", session)
	}
}

func TestLoginFailures(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "carol01", "carol@example.com")

	w := s.do(http.MethodPost, "/login", url.Values{"email": {"carol@example.com"}, "password": {"wrong-pass"}})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for a wrong password, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "账号或密码错误") {
		t.Fatalf("expected the failure flash on the page")
	}

	w = s.do(http.MethodPost, "/login", url.Values{"email": {"nobody@example.com"}, "password": {"secret1"}})
	if w.Code != http.StatusUnprocessableEntity || !strings.Contains(w.Body.String(), "无此用户") {
		t.Fatalf("expected the unknown email error, got %d", w.Code)
	}
}

func TestRegisterValidation(t *testing.T) {
	s := newTestServer(t)
	form := url.Values{
		"username":         {"dave001"},
		"email":            {"dave@example.com"},
		"password":         {"secret1"},
		"confirm_password": {"secret2"},
		"group":            {"CH"},
	}
	w := s.do(http.MethodPost, "/register", form)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", w.Code)
	}

	form.Set("confirm_password", "secret1")
	w = s.do(http.MethodPost, "/register", form)
	if w.Code != http.StatusFound || w.Header().Get("Location") != "/login" {
		t.Fatalf("expected redirect to /login, got %d %q", w.Code, w.Header().Get("Location"))
	}
}

func TestSignedInUserSkipsLoginPage(t *testing.T) {
	s := newTestServer(t)
	user := s.register(t, "erin001", "erin@example.com")
	w := s.do(http.MethodGet, "/login", nil, s.sessionCookie(t, user))
	if w.Code != http.StatusFound || w.Header().Get("Location") != "/" {
		t.Fatalf("expected redirect home, got %d %q", w.Code, w.Header().Get("Location"))
	}
}

func TestUnknownRoute(t *testing.T) {
	s := newTestServer(t)
	w := s.do(http.MethodGet, "/no/such/page", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}

	user := s.register(t, "frank01", "frank@example.com")
	w = s.do(http.MethodGet, "/guests/999", nil, s.sessionCookie(t, user))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for a missing guest, got %d", w.Code)
	}
	w = s.do(http.MethodGet, "/guests/abc", nil, s.sessionCookie(t, user))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for a malformed id, got %d", w.Code)
	}
}

func TestDeleteCaseDetailOfAnotherUser(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	owner := s.register(t, "grace01", "grace@example.com")
	other := s.register(t, "henry01", "henry@example.com")

	guest, err := models.CreateGuest(ctx, s.app.db, &models.NewGuest{GuestName: "华星光电", GuestCode: "HX00000001", Address: "深圳"})
	if err != nil {
		t.Fatalf("create guest: %v", err)
	}
	cs, err := models.CreateCase(ctx, s.app.db, owner, guest.ID, &models.NewCase{CaseName: "二期", Address: "深圳"}, time.Now())
	if err != nil {
		t.Fatalf("create case: %v", err)
	}
	vendor, err := models.CreateVendor(ctx, s.app.db, owner, &models.NewVendor{Name: "东丽", VendorCode: "TR01", Address: "南通"})
	if err != nil {
		t.Fatalf("create vendor: %v", err)
	}
	detail, err := models.CreateCaseDetail(ctx, s.app.db, owner, cs.ID, vendor.ID, &models.NewCaseDetail{
		ProcessSection: "PA", EqName: "涂布机", EqType: "CT-1", ContractCode: "HT-9",
		Price: "100", CurrencyUnit: "RMB", Quantity: "1",
		PayAfterContract: "30", PayBeforeDeliver: "30", PayAfterSetup: "30", PayAfterReceive: "10",
		PayDaysAfterReceive: "30",
	})
	if err != nil {
		t.Fatalf("create detail: %v", err)
	}

	target := "/cases/" + strconv.Itoa(cs.ID) + "/details/" + strconv.Itoa(detail.ID) + "/delete"
	w := s.do(http.MethodPost, target, url.Values{}, s.sessionCookie(t, other))
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}

	w = s.do(http.MethodPost, "/vendors/"+strconv.Itoa(vendor.ID)+"/delete", url.Values{}, s.sessionCookie(t, owner))
	if w.Code != http.StatusFound {
		t.Fatalf("expected a redirect for a vendor in use, got %d", w.Code)
	}
	if _, err := models.GetVendor(ctx, s.app.db, vendor.ID); err != nil {
		t.Fatalf("vendor in use should remain: %v", err)
	}

	w = s.do(http.MethodPost, target, url.Values{}, s.sessionCookie(t, owner))
	if w.Code != http.StatusFound || w.Header().Get("Location") != "/cases/"+strconv.Itoa(cs.ID) {
		t.Fatalf("expected redirect to the case, got %d %q", w.Code, w.Header().Get("Location"))
	}

	w = s.do(http.MethodGet, "/cases/"+strconv.Itoa(cs.ID)+"/export", nil, s.sessionCookie(t, owner))
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != xlsxContentType {
		t.Fatalf("expected a workbook, got %d %q", w.Code, w.Header().Get("Content-Type"))
	}
}

func TestResetPasswordFlow(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "irene01", "irene@example.com")

	w := s.do(http.MethodPost, "/reset_password", url.Values{"email": {"irene@example.com"}})
	if w.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", w.Code)
	}
	if len(s.mailer.sent) != 1 {
		t.Fatalf("expected one reset mail, got %d", len(s.mailer.sent))
	}
	mail := s.mailer.sent[0]
	if len(mail.To) != 1 || mail.To[0] != "irene@example.com" {
		t.Fatalf("unexpected recipients %v", mail.To)
	}
	const prefix = "http://mpms.test/reset_password/"
	idx := strings.Index(mail.Body, prefix)
	if idx < 0 {
		t.Fatalf("expected a reset link in %q", mail.Body)
	}
	link := strings.TrimPrefix(mail.Body[idx:], "http://mpms.test")

	w = s.do(http.MethodPost, link, url.Values{"password": {"secret9"}, "confirm_password": {"secret9"}})
	if w.Code != http.StatusFound || w.Header().Get("Location") != "/login" {
		t.Fatalf("expected redirect to /login, got %d %q", w.Code, w.Header().Get("Location"))
	}

	w = s.do(http.MethodGet, link, nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "链接已失效") {
		t.Fatalf("expected the expired page, got %d", w.Code)
	}

	w = s.do(http.MethodPost, "/reset_password", url.Values{"email": {"nobody@example.com"}})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for an unknown email, got %d", w.Code)
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	w := s.do(http.MethodGet, "/healthz", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if w.Header().Get(correlationIdHeader) == "" {
		t.Fatalf("expected a correlation id header")
	}
}

func TestFlashCookieRoundTrip(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	addFlash(c, flashSuccess, "保存成功")
	addFlash(c, flashWarning, "供应商有关联信息")

	cookie := responseCookie(w, flashCookieName)
	if cookie == nil {
		t.Fatalf("expected a flash cookie")
	}
	msgs := decodeFlashes(cookie.Value)
	if len(msgs) != 2 || msgs[1].Category != flashWarning {
		t.Fatalf("unexpected flashes %+v", msgs)
	}

	next := httptest.NewRecorder()
	c2, _ := gin.CreateTestContext(next)
	c2.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c2.Request.AddCookie(&http.Cookie{Name: flashCookieName, Value: cookie.Value})
	popped := popFlashes(c2)
	if len(popped) != 2 || popped[0].Message != "保存成功" {
		t.Fatalf("unexpected popped flashes %+v", popped)
	}
	if cleared := responseCookie(next, flashCookieName); cleared == nil || cleared.MaxAge >= 0 {
		t.Fatalf("expected the flash cookie to be cleared")
	}
	if decodeFlashes("%%%") != nil {
		t.Fatalf("expected garbage to decode to nothing")
	}
}

func TestCaseDetailWorkbook(t *testing.T) {
	cs := &models.Case{ID: 1, CaseName: "模组线"}
	details := []*models.CaseDetail{{
		ProcessSection:      "LCM",
		EqName:              "贴片机",
		EqType:              "SMT-2",
		ContractCode:        "HT-1",
		Price:               decimal.RequireFromString("12.5"),
		CurrencyUnit:        "USD",
		Quantity:            4,
		PayAfterContract:    decimal.NewFromInt(30),
		PayBeforeDeliver:    decimal.NewFromInt(30),
		PayAfterSetup:       decimal.NewFromInt(30),
		PayAfterReceive:     decimal.NewFromInt(10),
		PayDaysAfterReceive: 60,
	}}
	f, err := caseDetailWorkbook(cs, details, []*models.Vendor{{Name: "佳能"}})
	if err != nil {
		t.Fatalf("workbook: %v", err)
	}
	defer f.Close()

	checks := map[string]string{
		"A1": "模组线",
		"A2": "制程段别",
		"A3": "LCM",
		"D3": "佳能",
		"I3": "50",
		"N3": "60",
	}
	for cell, want := range checks {
		got, err := f.GetCellValue(exportSheet, cell)
		if err != nil {
			t.Fatalf("read %s: %v", cell, err)
		}
		if got != want {
			t.Fatalf("cell %s = %q, want %q", cell, got, want)
		}
	}
}

func TestHomeListsCases(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	author := s.register(t, "jacky01", "jack@example.com")
	guest, err := models.CreateGuest(ctx, s.app.db, &models.NewGuest{GuestName: "Tianma", GuestCode: "TM00000001", Address: "Xiamen"})
	if err != nil {
		t.Fatalf("create guest: %v", err)
	}
	if _, err := models.CreateCase(ctx, s.app.db, author, guest.ID, &models.NewCase{CaseName: "Module Line", Address: "Xiamen", StartDate: "2024-03-05"}, time.Now()); err != nil {
		t.Fatalf("create case: %v", err)
	}

	w := s.do(http.MethodGet, "/", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{"Module Line", "Tianma", "jacky01", "2024-03-05"} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q on the home page", want)
		}
	}

	if w := s.do(http.MethodGet, "/?page=2", nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 past the last page, got %d", w.Code)
	}
}

func (s *testServer) upload(t *testing.T, target string, form url.Values, fileName string, data []byte, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for key, values := range form {
		for _, v := range values {
			if err := mw.WriteField(key, v); err != nil {
				t.Fatalf("write field %s: %v", key, err)
			}
		}
	}
	if fileName != "" {
		fw, err := mw.CreateFormFile(avatarField, fileName)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := fw.Write(data); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func pngBytes(t *testing.T, width int, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func storedFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		t.Fatalf("read %s: %v", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

var avatarName = regexp.MustCompile(`^[0-9a-f]{16}\.png$`)

func TestUpdateAccountAvatar(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	user := s.register(t, "karen01", "karen@example.com")
	cookie := s.sessionCookie(t, user)
	form := url.Values{"username": {"karen02"}, "email": {"karen@example.com"}, "group": {models.DefaultGroup}}

	w := s.upload(t, "/account/update", form, "me.png", pngBytes(t, 400, 300), cookie)
	if w.Code != http.StatusFound || w.Header().Get("Location") != "/account" {
		t.Fatalf("expected redirect to /account, got %d %q", w.Code, w.Header().Get("Location"))
	}
	updated, err := models.GetUser(ctx, s.app.db, user.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if updated.Username != "karen02" {
		t.Fatalf("expected the new username, got %q", updated.Username)
	}
	if !avatarName.MatchString(updated.AccountImage) {
		t.Fatalf("unexpected account image %q", updated.AccountImage)
	}
	root := s.app.cfg.Storage.StaticDir
	for _, dir := range []string{utils.AvatarDir, utils.PreviewDir} {
		if _, err := os.Stat(filepath.Join(root, dir, updated.AccountImage)); err != nil {
			t.Fatalf("expected %s in %s: %v", updated.AccountImage, dir, err)
		}
	}

	w = s.upload(t, "/account/update", form, "me.gif", []byte("GIF89a"), cookie)
	if w.Code != http.StatusUnprocessableEntity || !strings.Contains(w.Body.String(), "仅支持jpg、jpeg、png格式") {
		t.Fatalf("expected 422 for a gif, got %d", w.Code)
	}

	oversized := make([]byte, utils.MaxUploadSizeBytes+100)
	w = s.upload(t, "/account/update", form, "big.png", oversized, cookie)
	if w.Code != http.StatusUnprocessableEntity || !strings.Contains(w.Body.String(), "图片大小请控制在5MB以内") {
		t.Fatalf("expected 422 for a 5MB+ picture, got %d", w.Code)
	}

	w = s.upload(t, "/account/update", form, "huge.png", make([]byte, utils.MaxUploadSizeBytes+(2<<20)), cookie)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for a body past the limit, got %d", w.Code)
	}

	after, err := models.GetUser(ctx, s.app.db, user.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if after.AccountImage != updated.AccountImage {
		t.Fatalf("rejected uploads changed the account image to %q", after.AccountImage)
	}
}

func TestUpdateAccountInvalidFormStoresNoPicture(t *testing.T) {
	s := newTestServer(t)
	user := s.register(t, "leona01", "leona@example.com")
	form := url.Values{"username": {"leona01"}, "email": {"not-an-email"}, "group": {models.DefaultGroup}}

	w := s.upload(t, "/account/update", form, "me.png", pngBytes(t, 64, 64), s.sessionCookie(t, user))
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", w.Code)
	}
	root := s.app.cfg.Storage.StaticDir
	for _, dir := range []string{utils.AvatarDir, utils.PreviewDir} {
		if files := storedFiles(t, filepath.Join(root, dir)); len(files) != 0 {
			t.Fatalf("expected no stored pictures in %s, got %v", dir, files)
		}
	}
}

func TestExpiredResetLink(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "mason01", "mason@example.com")

	w := s.do(http.MethodPost, "/reset_password", url.Values{"email": {"mason@example.com"}})
	if w.Code != http.StatusFound || len(s.mailer.sent) != 1 {
		t.Fatalf("expected a reset mail, got %d with %d mails", w.Code, len(s.mailer.sent))
	}
	body := s.mailer.sent[0].Body
	idx := strings.Index(body, "http://mpms.test/reset_password/")
	if idx < 0 {
		t.Fatalf("expected a reset link in %q", body)
	}
	link := strings.TrimPrefix(body[idx:], "http://mpms.test")

	s.app.now = func() time.Time { return time.Now().Add(s.app.cfg.ResetTokenLifetime + time.Minute) }
	w = s.do(http.MethodPost, link, url.Values{"password": {"secret9"}, "confirm_password": {"secret9"}})
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "链接已失效") {
		t.Fatalf("expected the expired page, got %d", w.Code)
	}
	ctx := context.Background()
	if _, err := models.Authenticate(ctx, s.app.db, &models.LoginInput{Email: "mason@example.com", Password: "secret1"}); err != nil {
		t.Fatalf("old password should still work: %v", err)
	}
	if _, err := models.Authenticate(ctx, s.app.db, &models.LoginInput{Email: "mason@example.com", Password: "secret9"}); err == nil {
		t.Fatalf("expired link must not change the password")
	}
}

func TestCasePageFlagsIncompleteSchedule(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	owner := s.register(t, "nancy01", "nancy@example.com")
	guest, err := models.CreateGuest(ctx, s.app.db, &models.NewGuest{GuestName: "惠科", GuestCode: "HK00000001", Address: "重庆"})
	if err != nil {
		t.Fatalf("create guest: %v", err)
	}
	cs, err := models.CreateCase(ctx, s.app.db, owner, guest.ID, &models.NewCase{CaseName: "三期", Address: "重庆"}, time.Now())
	if err != nil {
		t.Fatalf("create case: %v", err)
	}
	vendor, err := models.CreateVendor(ctx, s.app.db, owner, &models.NewVendor{Name: "尼康", VendorCode: "NK01", Address: "东京"})
	if err != nil {
		t.Fatalf("create vendor: %v", err)
	}
	detail := func(contract string, setup string) *models.NewCaseDetail {
		return &models.NewCaseDetail{
			ProcessSection: "Array", EqName: "曝光机", EqType: "FX-1", ContractCode: contract,
			Price: "100", CurrencyUnit: "JPY", Quantity: "1",
			PayAfterContract: "30", PayBeforeDeliver: "30", PayAfterSetup: setup, PayAfterReceive: "10",
			PayDaysAfterReceive: "30",
		}
	}
	target := "/cases/" + strconv.Itoa(cs.ID)

	if _, err := models.CreateCaseDetail(ctx, s.app.db, owner, cs.ID, vendor.ID, detail("HT-10", "30")); err != nil {
		t.Fatalf("create detail: %v", err)
	}
	w := s.do(http.MethodGet, target, nil, s.sessionCookie(t, owner))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "合计") {
		t.Fatalf("a complete schedule should not be flagged")
	}

	if _, err := models.CreateCaseDetail(ctx, s.app.db, owner, cs.ID, vendor.ID, detail("HT-11", "10")); err != nil {
		t.Fatalf("create detail: %v", err)
	}
	w = s.do(http.MethodGet, target, nil, s.sessionCookie(t, owner))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "合计80%") {
		t.Fatalf("expected the 80%% schedule to be flagged, got %d", w.Code)
	}
}

type closingStore struct {
	utils.LocalImageStore
	closed int
}

func (s *closingStore) Close() error {
	s.closed++
	return nil
}

func TestCloseImageStore(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	store := &closingStore{}
	closeImageStore(store, logger)
	if store.closed != 1 {
		t.Fatalf("expected the store to be closed once, got %d", store.closed)
	}
	closeImageStore(&utils.LocalImageStore{}, logger)
}

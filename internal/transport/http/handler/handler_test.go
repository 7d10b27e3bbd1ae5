package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-pregnancy-family/internal/domain"
	"github.com/go-pregnancy-family/internal/transport/http/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var principal = &domain.Principal{UserID: "u1", SessionID: "s1", ExpiresAt: time.Now().Add(time.Hour)}

// signedIn builds a request that already carries the principal the auth guard would add.
func signedIn(method, target, body string) *http.Request {
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		r = httptest.NewRequest(method, target, nil)
	}
	return r.WithContext(middleware.WithPrincipal(r.Context(), principal))
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func readEnvelope(t *testing.T, rr *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	return env
}

func serve(h http.Handler, r *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, r)
	return rr
}

func TestSendCode_Success(t *testing.T) {
	svc := &mockAuthSvc{}
	svc.On("SendCode", mock.Anything, "13800138000", "register").Return(nil)

	req := httptest.NewRequest(http.MethodPost, "/auth/send-code", strings.NewReader(`{"phone":"13800138000","type":"register"}`))
	rr := serve(http.HandlerFunc(NewAuthHandler(svc).SendCode), req)

	assert.Equal(t, http.StatusOK, rr.Code)
	env := readEnvelope(t, rr)
	assert.Equal(t, 200, env.Code)
	assert.Equal(t, "验证码发送成功", env.Message)
	assert.Equal(t, "null", string(env.Data))
}

func TestSendCode_ValidationErrors(t *testing.T) {
	svc := &mockAuthSvc{}
	req := httptest.NewRequest(http.MethodPost, "/auth/send-code", strings.NewReader(`{"phone":"12345","type":"signup"}`))
	rr := serve(http.HandlerFunc(NewAuthHandler(svc).SendCode), req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	env := readEnvelope(t, rr)
	assert.Equal(t, 400, env.Code)
	var fields []map[string]string
	require.NoError(t, json.Unmarshal(env.Data, &fields))
	require.Len(t, fields, 2)
	assert.Equal(t, "phone", fields[0]["field"])
	assert.Equal(t, "手机号格式不正确", fields[0]["message"])
	assert.Equal(t, "type", fields[1]["field"])
	svc.AssertNotCalled(t, "SendCode", mock.Anything, mock.Anything, mock.Anything)
}

func TestSendCode_MalformedBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/auth/send-code", strings.NewReader(`{`))
	rr := serve(http.HandlerFunc(NewAuthHandler(&mockAuthSvc{}).SendCode), req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "请求体格式错误", readEnvelope(t, rr).Message)
}

func TestSendCode_Cooldown(t *testing.T) {
	svc := &mockAuthSvc{}
	svc.On("SendCode", mock.Anything, mock.Anything, mock.Anything).
		Return(domain.ErrTooManyRequests.WithMessage("验证码发送过于频繁，请稍后再试"))

	req := httptest.NewRequest(http.MethodPost, "/auth/send-code", strings.NewReader(`{"phone":"13800138000","type":"login"}`))
	rr := serve(http.HandlerFunc(NewAuthHandler(svc).SendCode), req)

	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	env := readEnvelope(t, rr)
	assert.Equal(t, 429, env.Code)
	assert.Equal(t, "验证码发送过于频繁，请稍后再试", env.Message)
}

func TestRegister_Success(t *testing.T) {
	svc := &mockAuthSvc{}
	gender := 2
	want := domain.RegisterRequest{Phone: "13800138000", VerifyCode: "123456", Nickname: "小雨妈妈", RoleType: "pregnant", Gender: &gender}
	exp := time.Date(2026, 10, 24, 9, 0, 0, 0, time.UTC)
	svc.On("Register", mock.Anything, want).Return(&domain.LoginResponse{
		UserID: "u1", RoleType: domain.RolePregnant, RoleTypeName: "孕妇",
		AccessToken: "tok", TokenType: "Bearer", ExpiresAt: &exp,
	}, nil)

	body := `{"phone":"13800138000","verifyCode":"123456","nickname":"小雨妈妈","roleType":"pregnant","gender":2}`
	req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(body))
	rr := serve(http.HandlerFunc(NewAuthHandler(svc).Register), req)

	require.Equal(t, http.StatusOK, rr.Code)
	env := readEnvelope(t, rr)
	assert.Equal(t, "注册成功", env.Message)
	var data map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "孕妇", data["roleTypeName"])
	assert.Equal(t, "Bearer", data["tokenType"])
	assert.Equal(t, "2026-10-24T09:00:00Z", data["expiresAt"])
}

func TestRegister_DuplicatePhone(t *testing.T) {
	svc := &mockAuthSvc{}
	svc.On("Register", mock.Anything, mock.Anything).Return(nil, domain.ErrPhoneAlreadyExists)

	body := `{"phone":"13800138000","verifyCode":"123456","nickname":"小雨妈妈","roleType":"pregnant"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(body))
	rr := serve(http.HandlerFunc(NewAuthHandler(svc).Register), req)

	assert.Equal(t, http.StatusConflict, rr.Code)
	env := readEnvelope(t, rr)
	assert.Equal(t, 1004, env.Code)
	assert.Equal(t, "null", string(env.Data))
}

func TestLogin_DisabledUser(t *testing.T) {
	svc := &mockAuthSvc{}
	svc.On("Login", mock.Anything, "13800138000", "654321").Return(nil, domain.ErrUserDisabled)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"phone":"13800138000","verifyCode":"654321","type":"login"}`))
	rr := serve(http.HandlerFunc(NewAuthHandler(svc).Login), req)

	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, 1003, readEnvelope(t, rr).Code)
}

func TestLogout(t *testing.T) {
	svc := &mockAuthSvc{}
	svc.On("Logout", mock.Anything, "u1").Return(nil)

	rr := serve(http.HandlerFunc(NewAuthHandler(svc).Logout), signedIn(http.MethodPost, "/auth/logout", ""))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "退出成功", readEnvelope(t, rr).Message)
}

func TestRefresh_PassesPrincipal(t *testing.T) {
	svc := &mockAuthSvc{}
	svc.On("RefreshToken", mock.Anything, principal).Return(&domain.LoginResponse{UserID: "u1", AccessToken: "new"}, nil)

	rr := serve(http.HandlerFunc(NewAuthHandler(svc).Refresh), signedIn(http.MethodPost, "/auth/refresh", ""))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Token刷新成功", readEnvelope(t, rr).Message)
}

func TestInfo_UnexpectedErrorHidesCause(t *testing.T) {
	svc := &mockAuthSvc{}
	svc.On("GetUserInfo", mock.Anything, "u1").Return(nil, errors.New("dynamo: secret table name"))

	rr := serve(http.HandlerFunc(NewAuthHandler(svc).Info), signedIn(http.MethodGet, "/auth/info", ""))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	env := readEnvelope(t, rr)
	assert.Equal(t, 11001, env.Code)
	assert.NotContains(t, rr.Body.String(), "secret")
}

func TestUpdateMe(t *testing.T) {
	svc := &mockUserSvc{}
	nick := "豆豆妈"
	svc.On("UpdateProfile", mock.Anything, "u1", domain.UpdateProfileRequest{Nickname: &nick}).
		Return(&domain.User{UserID: "u1", Nickname: nick}, nil)

	rr := serve(http.HandlerFunc(NewUserHandler(svc, 1024).UpdateMe), signedIn(http.MethodPut, "/users/me", `{"nickname":"豆豆妈"}`))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestUpdateMe_InvalidGender(t *testing.T) {
	rr := serve(http.HandlerFunc(NewUserHandler(&mockUserSvc{}, 1024).UpdateMe), signedIn(http.MethodPut, "/users/me", `{"gender":5}`))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func avatarRequest(t *testing.T, contentType string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="a.png"`)
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	return multipartRequest(&buf, mw.FormDataContentType())
}

func multipartRequest(body *bytes.Buffer, contentType string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/users/me/avatar", body)
	r.Header.Set("Content-Type", contentType)
	return r.WithContext(middleware.WithPrincipal(r.Context(), principal))
}

func TestUploadAvatar(t *testing.T) {
	svc := &mockUserSvc{}
	svc.On("UploadAvatar", mock.Anything, "u1", "png-bytes", int64(9), "image/png").
		Return(&domain.User{UserID: "u1", AvatarURL: "https://cdn/a.png"}, nil)

	rr := serve(http.HandlerFunc(NewUserHandler(svc, 1024).UploadAvatar), avatarRequest(t, "image/png", []byte("png-bytes")))
	require.Equal(t, http.StatusOK, rr.Code)
	svc.AssertExpectations(t)
}

func TestUploadAvatar_MissingFile(t *testing.T) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("other", "x"))
	require.NoError(t, mw.Close())

	rr := serve(http.HandlerFunc(NewUserHandler(&mockUserSvc{}, 1024).UploadAvatar), multipartRequest(&buf, mw.FormDataContentType()))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestUploadAvatar_UnsupportedType(t *testing.T) {
	svc := &mockUserSvc{}
	svc.On("UploadAvatar", mock.Anything, "u1", mock.Anything, mock.Anything, "image/gif").Return(nil, domain.ErrFileTypeNotSupported)

	rr := serve(http.HandlerFunc(NewUserHandler(svc, 1024).UploadAvatar), avatarRequest(t, "image/gif", []byte("gif")))
	assert.Equal(t, http.StatusUnsupportedMediaType, rr.Code)
	assert.Equal(t, 10003, readEnvelope(t, rr).Code)
}

func familyRouter(svc *mockFamilySvc) http.Handler {
	h := NewFamilyHandler(svc)
	r := chi.NewRouter()
	r.Post("/families", h.Create)
	r.Get("/families/me", h.Mine)
	r.Post("/families/join", h.Join)
	r.Get("/families/{id}/members", h.Members)
	r.Post("/families/{id}/leave", h.Leave)
	r.Post("/families/{id}/invite-code", h.RegenerateInviteCode)
	r.Put("/families/{id}/pregnancy", h.UpdatePregnancy)
	return r
}

func TestFamilies_Join(t *testing.T) {
	svc := &mockFamilySvc{}
	svc.On("JoinByInviteCode", mock.Anything, "u1", "ABCD2345").Return(&domain.FamilyView{
		Family:     &domain.Family{FamilyID: "f1"},
		Membership: &domain.FamilyMembership{UserID: "u1", FamilyID: "f1", FamilyRole: domain.FamilyMember},
	}, nil)

	rr := serve(familyRouter(svc), signedIn(http.MethodPost, "/families/join", `{"inviteCode":"ABCD2345"}`))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestFamilies_JoinErrors(t *testing.T) {
	tests := []struct {
		err      error
		wantHTTP int
		wantCode int
	}{
		{domain.ErrInvalidInviteCode, http.StatusBadRequest, 3005},
		{domain.ErrInviteCodeExpired, http.StatusBadRequest, 3006},
		{domain.ErrFamilyMemberLimitExceeded, http.StatusConflict, 3004},
		{domain.ErrAlreadyInOtherFamily, http.StatusConflict, 409},
	}
	for _, tt := range tests {
		svc := &mockFamilySvc{}
		svc.On("JoinByInviteCode", mock.Anything, "u1", "ABCD2345").Return(nil, tt.err)

		rr := serve(familyRouter(svc), signedIn(http.MethodPost, "/families/join", `{"inviteCode":"ABCD2345"}`))
		assert.Equal(t, tt.wantHTTP, rr.Code)
		assert.Equal(t, tt.wantCode, readEnvelope(t, rr).Code)
	}
}

func TestFamilies_LeaveUsesPathID(t *testing.T) {
	svc := &mockFamilySvc{}
	svc.On("Leave", mock.Anything, "u1", "f1").Return(domain.ErrCannotLeaveFamily)

	rr := serve(familyRouter(svc), signedIn(http.MethodPost, "/families/f1/leave", ""))
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, 3008, readEnvelope(t, rr).Code)
}

func TestFamilies_Members(t *testing.T) {
	svc := &mockFamilySvc{}
	svc.On("Members", mock.Anything, "u1", "f1").Return([]domain.FamilyMembership{
		{UserID: "u1", FamilyID: "f1", FamilyRole: domain.FamilyOwner},
		{UserID: "u2", FamilyID: "f1", FamilyRole: domain.FamilyMember},
	}, nil)

	rr := serve(familyRouter(svc), signedIn(http.MethodGet, "/families/f1/members", ""))
	require.Equal(t, http.StatusOK, rr.Code)
	var list []domain.FamilyMembership
	require.NoError(t, json.Unmarshal(readEnvelope(t, rr).Data, &list))
	require.Len(t, list, 2)
	assert.Equal(t, "u2", list[1].UserID)
}

func TestFamilies_MembersOfOtherFamily(t *testing.T) {
	svc := &mockFamilySvc{}
	svc.On("Members", mock.Anything, "u1", "f9").Return(nil, domain.ErrFamilyMemberNotFound)

	rr := serve(familyRouter(svc), signedIn(http.MethodGet, "/families/f9/members", ""))
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, 3002, readEnvelope(t, rr).Code)
}

func TestFamilies_RegenerateNotOwner(t *testing.T) {
	svc := &mockFamilySvc{}
	svc.On("RegenerateInviteCode", mock.Anything, "u1", "f1").Return(nil, domain.ErrPermissionDenied)

	rr := serve(familyRouter(svc), signedIn(http.MethodPost, "/families/f1/invite-code", ""))
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, 3007, readEnvelope(t, rr).Code)
}

func TestFamilies_UpdatePregnancyValidatesDate(t *testing.T) {
	svc := &mockFamilySvc{}
	rr := serve(familyRouter(svc), signedIn(http.MethodPut, "/families/f1/pregnancy", `{"dueDate":"01/02/2027"}`))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	svc.AssertNotCalled(t, "UpdatePregnancy", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestFamilies_CreateRequiresName(t *testing.T) {
	rr := serve(familyRouter(&mockFamilySvc{}), signedIn(http.MethodPost, "/families", `{}`))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestNotifications_MarkReadNotFound(t *testing.T) {
	svc := &mockNotificationSvc{}
	svc.On("MarkRead", mock.Anything, "u1", "n9").Return(nil, domain.ErrNotificationNotFound)
	h := NewNotificationHandler(svc)
	r := chi.NewRouter()
	r.Put("/notifications/{id}", h.MarkRead)

	rr := serve(r, signedIn(http.MethodPut, "/notifications/n9", ""))
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, 8001, readEnvelope(t, rr).Code)
}

func TestNotifications_ListUnread(t *testing.T) {
	svc := &mockNotificationSvc{}
	svc.On("ListUnread", mock.Anything, "u1").Return([]domain.Notification{{NotificationID: "n1"}}, nil)

	rr := serve(http.HandlerFunc(NewNotificationHandler(svc).ListUnread), signedIn(http.MethodGet, "/notifications", ""))
	assert.Equal(t, http.StatusOK, rr.Code)
	var list []domain.Notification
	require.NoError(t, json.Unmarshal(readEnvelope(t, rr).Data, &list))
	assert.Len(t, list, 1)
}

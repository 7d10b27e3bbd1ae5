package domain

import (
	"fmt"
	"net/http"
)

// Code is a numeric result code returned in the response envelope.
// Values are part of the public API contract and must never be renumbered.
type Code struct {
	Value   int
	HTTP    int
	Message string
}

var registry = map[int]*Code{}

func register(value, status int, message string) *Code {
	if _, dup := registry[value]; dup {
		panic(fmt.Sprintf("domain: duplicate result code %d", value))
	}
	c := &Code{Value: value, HTTP: status, Message: message}
	registry[value] = c
	return c
}

// LookupCode returns the registered code for value.
func LookupCode(value int) (*Code, bool) {
	c, ok := registry[value]
	return c, ok
}

// Err returns a new coded error carrying the default message.
func (c *Code) Err() *Error { return &Error{Code: c} }

// General.
var (
	CodeSuccess          = register(200, http.StatusOK, "操作成功")
	CodeError            = register(500, http.StatusInternalServerError, "操作失败")
	CodeParamError       = register(400, http.StatusBadRequest, "参数错误")
	CodeUnauthorized     = register(401, http.StatusUnauthorized, "未授权")
	CodeForbidden        = register(403, http.StatusForbidden, "禁止访问")
	CodeNotFound         = register(404, http.StatusNotFound, "资源不存在")
	CodeMethodNotAllowed = register(405, http.StatusMethodNotAllowed, "请求方法不允许")
	CodeConflict         = register(409, http.StatusConflict, "资源冲突")
	CodeTooManyRequests  = register(429, http.StatusTooManyRequests, "请求过于频繁")
)

// Users (1000-1999).
var (
	CodeUserNotFound       = register(1001, http.StatusNotFound, "用户不存在")
	CodeUserAlreadyExists  = register(1002, http.StatusConflict, "用户已存在")
	CodeUserDisabled       = register(1003, http.StatusForbidden, "用户已被禁用")
	CodePhoneAlreadyExists = register(1004, http.StatusConflict, "手机号已存在")
	CodeInvalidPhone       = register(1005, http.StatusBadRequest, "手机号格式不正确")
	CodeInvalidPassword    = register(1006, http.StatusBadRequest, "密码格式不正确")
	CodePasswordError      = register(1007, http.StatusBadRequest, "密码错误")
	CodeOldPasswordError   = register(1008, http.StatusBadRequest, "原密码错误")
)

// Authentication (2000-2999).
var (
	CodeLoginRequired        = register(2001, http.StatusUnauthorized, "请先登录")
	CodeLoginExpired         = register(2002, http.StatusUnauthorized, "登录已过期")
	CodeTokenInvalid         = register(2003, http.StatusUnauthorized, "Token无效")
	CodeVerifyCodeError      = register(2004, http.StatusBadRequest, "验证码错误")
	CodeVerifyCodeExpired    = register(2005, http.StatusBadRequest, "验证码已过期")
	CodeVerifyCodeSendFailed = register(2006, http.StatusBadGateway, "验证码发送失败")
	CodeLoginFailed          = register(2007, http.StatusUnauthorized, "登录失败")
	CodeLogoutFailed         = register(2008, http.StatusInternalServerError, "退出登录失败")
)

// Families (3000-3999).
var (
	CodeFamilyNotFound            = register(3001, http.StatusNotFound, "家庭不存在")
	CodeFamilyMemberNotFound      = register(3002, http.StatusNotFound, "家庭成员不存在")
	CodeFamilyMemberExists        = register(3003, http.StatusConflict, "用户已是家庭成员")
	CodeFamilyMemberLimitExceeded = register(3004, http.StatusConflict, "家庭成员数量已达上限")
	CodeInvalidInviteCode         = register(3005, http.StatusBadRequest, "邀请码无效")
	CodeInviteCodeExpired         = register(3006, http.StatusBadRequest, "邀请码已过期")
	CodePermissionDenied          = register(3007, http.StatusForbidden, "权限不足")
	CodeCannotLeaveFamily         = register(3008, http.StatusConflict, "无法退出家庭")
)

// Pregnancy (4000-4999).
var (
	CodePregnancyInfoNotFound = register(4001, http.StatusNotFound, "孕期信息不存在")
	CodePregnancyInfoExists   = register(4002, http.StatusConflict, "孕期信息已存在")
	CodeInvalidDueDate        = register(4003, http.StatusBadRequest, "预产期无效")
	CodeInvalidPregnancyWeek  = register(4004, http.StatusBadRequest, "孕周无效")
	CodePregnancyStatusError  = register(4005, http.StatusBadRequest, "孕期状态错误")
)

// Health data (5000-5999).
var (
	CodeHealthDataNotFound    = register(5001, http.StatusNotFound, "健康数据不存在")
	CodeCheckupRecordNotFound = register(5002, http.StatusNotFound, "产检记录不存在")
	CodeInvalidHealthData     = register(5003, http.StatusBadRequest, "健康数据无效")
	CodeHealthDataDuplicate   = register(5004, http.StatusConflict, "健康数据重复")
)

// Nutrition (6000-6999).
var (
	CodeFoodNotFound            = register(6001, http.StatusNotFound, "食物不存在")
	CodeDietRecordNotFound      = register(6002, http.StatusNotFound, "饮食记录不存在")
	CodeNutritionTargetNotFound = register(6003, http.StatusNotFound, "营养目标不存在")
	CodeInvalidNutritionData    = register(6004, http.StatusBadRequest, "营养数据无效")
)

// Tasks (7000-7999).
var (
	CodeTaskNotFound         = register(7001, http.StatusNotFound, "任务不存在")
	CodeTaskAlreadyAssigned  = register(7002, http.StatusConflict, "任务已被分配")
	CodeTaskAlreadyCompleted = register(7003, http.StatusConflict, "任务已完成")
	CodeTaskCannotAssign     = register(7004, http.StatusConflict, "无法分配任务")
	CodeTaskCannotComplete   = register(7005, http.StatusConflict, "无法完成任务")
)

// Notifications (8000-8999).
var (
	CodeNotificationNotFound    = register(8001, http.StatusNotFound, "通知不存在")
	CodeNotificationSendFailed  = register(8002, http.StatusInternalServerError, "通知发送失败")
	CodeNotificationAlreadyRead = register(8003, http.StatusConflict, "通知已读")
)

// Content (9000-9999).
var (
	CodeContentNotFound      = register(9001, http.StatusNotFound, "内容不存在")
	CodeContentAccessDenied  = register(9002, http.StatusForbidden, "内容访问被拒绝")
	CodeContentAlreadyExists = register(9003, http.StatusConflict, "内容已存在")
)

// Files (10000-10999).
var (
	CodeFileUploadFailed     = register(10001, http.StatusInternalServerError, "文件上传失败")
	CodeFileNotFound         = register(10002, http.StatusNotFound, "文件不存在")
	CodeFileTypeNotSupported = register(10003, http.StatusUnsupportedMediaType, "文件类型不支持")
	CodeFileSizeExceeded     = register(10004, http.StatusRequestEntityTooLarge, "文件大小超出限制")
	CodeFileDeleteFailed     = register(10005, http.StatusInternalServerError, "文件删除失败")
)

// System (11000-11999).
var (
	CodeSystemError        = register(11001, http.StatusInternalServerError, "系统错误")
	CodeDatabaseError      = register(11002, http.StatusInternalServerError, "数据库错误")
	CodeNetworkError       = register(11003, http.StatusInternalServerError, "网络错误")
	CodeServiceUnavailable = register(11004, http.StatusServiceUnavailable, "服务不可用")
	CodeMaintenanceMode    = register(11005, http.StatusServiceUnavailable, "系统维护中")
)

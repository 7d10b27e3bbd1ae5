package validate

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	phoneRe = regexp.MustCompile(`^1[3-9]\d{9}$`)
	codeRe  = regexp.MustCompile(`^\d{6}$`)
)

// v is the package-level singleton validator. Custom tags are registered
// during init() before the first call to Struct.
var v = validator.New()

func init() {
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("cnphone", func(fl validator.FieldLevel) bool {
		return phoneRe.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("vcode", func(fl validator.FieldLevel) bool {
		return codeRe.MatchString(fl.Field().String())
	})
}

// FieldError describes one rejected request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Errors is returned by Struct when one or more fields fail validation.
type Errors []FieldError

func (e Errors) Error() string {
	msgs := make([]string, len(e))
	for i, fe := range e {
		msgs[i] = fe.Field + ": " + fe.Message
	}
	return strings.Join(msgs, "; ")
}

// Struct validates s using its validate tags. Field failures are returned as Errors.
func Struct(s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}
	out := make(Errors, 0, len(ve))
	for _, fe := range ve {
		out = append(out, FieldError{Field: fe.Field(), Message: message(fe)})
	}
	return out
}

// Phone reports whether s is a mainland mobile number.
func Phone(s string) bool { return phoneRe.MatchString(s) }

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "不能为空"
	case "cnphone":
		return "手机号格式不正确"
	case "vcode":
		return "验证码格式不正确"
	case "oneof":
		return "取值必须是 " + fe.Param() + " 之一"
	case "min":
		return "长度不能小于 " + fe.Param()
	case "max":
		return "长度不能大于 " + fe.Param()
	case "len":
		return "长度必须为 " + fe.Param()
	case "datetime":
		return "日期格式必须为 " + fe.Param()
	}
	return "校验失败: " + fe.Tag()
}

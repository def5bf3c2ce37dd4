package util

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("expo_token", validateExpoToken)
}

// ValidateDTO 校验结构体，只返回第一条错误
func ValidateDTO(dto any) error {
	if err := validate.Struct(dto); err != nil {
		var vErrs validator.ValidationErrors
		if errors.As(err, &vErrs) {
			firstError := vErrs[0]
			msg := fmt.Sprintf("字段 [%s] 校验失败，规则 [%s]",
				firstError.Field(),
				firstError.Tag())
			return errors.New(msg)
		}
		return err
	}
	return nil
}

// RegisterBindingValidators 在 gin 的校验器上注册自定义规则
func RegisterBindingValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("unexpected gin validator engine")
	}
	return v.RegisterValidation("expo_token", validateExpoToken)
}

// IsExpoPushToken 是否为 Expo 推送 token
func IsExpoPushToken(token string) bool {
	if !strings.HasPrefix(token, "ExponentPushToken[") && !strings.HasPrefix(token, "ExpoPushToken[") {
		return false
	}
	return strings.HasSuffix(token, "]")
}

func validateExpoToken(fl validator.FieldLevel) bool {
	return IsExpoPushToken(strings.TrimSpace(fl.Field().String()))
}

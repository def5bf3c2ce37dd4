package service

import (
	"errors"
)

const (
	BadRequest          = 400
	Unauthorized        = 401
	Forbidden           = 403
	NotFound            = 404
	Conflict            = 409
	InternalServerError = 500
)

var (
	ErrParamInvalid      = errors.New("参数错误")
	ErrTargetUserInvalid = errors.New("目标用户无效")
	ErrUnknownEmoji      = errors.New("未知的表情分类")
	ErrContentTooLong    = errors.New("消息内容过长")
	ErrMessageNotFound   = errors.New("消息不存在")
	ErrNotMessageOwner   = errors.New("只能修改自己发送的消息")
	ErrEmojiImmutable    = errors.New("表情消息不可修改")
	ErrNotAppend         = errors.New("只能在原有内容后追加")
	ErrStaleAmend        = errors.New("消息已不可追加")
	ErrPushTokenInvalid  = errors.New("推送 token 无效")
	UnauthorizedError    = errors.New("权限不足")
	UnExpectedError      = errors.New("系统异常，请稍后重试")
)

var ErrorMap = map[error]int{
	ErrParamInvalid:      BadRequest,
	ErrTargetUserInvalid: BadRequest,
	ErrUnknownEmoji:      BadRequest,
	ErrContentTooLong:    BadRequest,
	ErrMessageNotFound:   NotFound,
	ErrNotMessageOwner:   Forbidden,
	ErrEmojiImmutable:    BadRequest,
	ErrNotAppend:         BadRequest,
	ErrStaleAmend:        Conflict,
	ErrPushTokenInvalid:  BadRequest,
	UnauthorizedError:    Unauthorized,
	UnExpectedError:      InternalServerError,
}

// CodeOf 错误对应的业务码，未登记的错误返回 InternalServerError
func CodeOf(err error) (int, bool) {
	if code, ok := ErrorMap[err]; ok {
		return code, true
	}
	for known, code := range ErrorMap {
		if errors.Is(err, known) {
			return code, true
		}
	}
	return InternalServerError, false
}

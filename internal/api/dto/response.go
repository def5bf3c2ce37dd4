package dto

// Response 统一响应体，HTTP 状态码固定为 200，业务结果看 Code
type Response struct {
	Code    int         `json:"Code"`
	Message string      `json:"Message"`
	Data    interface{} `json:"Data"`
}

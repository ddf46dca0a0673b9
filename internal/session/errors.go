// Copyright (c) 2026 BASMS. All rights reserved.
// Author: platform@basms.vn

package session

import (
	"net/http"

	"github.com/basms/sessiond/internal/platform/apperr"
)

// # Failure Taxonomy
//
// The admin UI renders these messages directly, so they are Vietnamese.
// Codes stay stable for programmatic handling; unrecognized backend codes fall
// back to the generic upstream failure.

// Machine-readable session failure codes.
const (
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeAccountNotFound    = "ACCOUNT_NOT_FOUND"
	CodeAccountInactive    = "ACCOUNT_INACTIVE"
	CodeRoleDenied         = "ROLE_DENIED"
	CodeFirstLogin         = "FIRST_LOGIN"
	CodeRefreshFailed      = "REFRESH_FAILED"
	CodeSessionExpired     = "SESSION_EXPIRED"
	CodePasswordResetHint  = "PASSWORD_RESET_SUGGESTED"
)

// errInvalidCredentials signals a wrong password for an existing account.
func errInvalidCredentials() *apperr.AppError {
	return apperr.New(http.StatusUnauthorized, CodeInvalidCredentials,
		"Email hoặc mật khẩu không chính xác")
}

// errAccountNotFound signals that no account exists for the given email.
func errAccountNotFound() *apperr.AppError {
	return apperr.New(http.StatusNotFound, CodeAccountNotFound,
		"Tài khoản không tồn tại")
}

// errAccountInactive signals a disabled account. Distinct user-facing message
// so support can tell "wrong password" apart from "locked out".
func errAccountInactive() *apperr.AppError {
	return apperr.New(http.StatusForbidden, CodeAccountInactive,
		"Tài khoản đã bị vô hiệu hóa. Vui lòng liên hệ quản trị viên")
}

// errRoleDenied signals a role on the login denylist. The credentials were
// valid; the surface is simply off-limits for this role.
func errRoleDenied() *apperr.AppError {
	return apperr.New(http.StatusForbidden, CodeRoleDenied,
		"Tài khoản của bạn không được phép truy cập trang quản trị")
}

// errFirstLogin signals that the account must set a password before its first
// real login completes.
func errFirstLogin() *apperr.AppError {
	return apperr.New(http.StatusConflict, CodeFirstLogin,
		"Vui lòng cập nhật mật khẩu trước khi đăng nhập lần đầu")
}

// errRefreshFailed wraps a failed silent-renewal attempt.
func errRefreshFailed(cause error) *apperr.AppError {
	appError := apperr.New(http.StatusUnauthorized, CodeRefreshFailed,
		"Phiên làm việc đã hết hạn. Vui lòng đăng nhập lại")
	appError.Cause = cause
	return appError
}

// errSessionExpired signals an unrecoverable session (refresh token expired or
// absent) detected without any network call.
func errSessionExpired() *apperr.AppError {
	return apperr.New(http.StatusUnauthorized, CodeSessionExpired,
		"Phiên làm việc đã hết hạn. Vui lòng đăng nhập lại")
}

// errSessionPersist wraps a credential-store write failure during login.
func errSessionPersist(cause error) *apperr.AppError {
	appError := apperr.New(http.StatusInternalServerError, "SESSION_PERSIST_FAILED",
		"Không thể lưu phiên đăng nhập. Vui lòng thử lại")
	appError.Cause = cause
	return appError
}

// errPasswordResetSuggested is surfaced after repeated credential failures.
func errPasswordResetSuggested() *apperr.AppError {
	return apperr.New(http.StatusUnauthorized, CodePasswordResetHint,
		"Bạn đã nhập sai mật khẩu nhiều lần. Vui lòng đặt lại mật khẩu")
}

// # Backend Code Mapping

// mapLoginFailure translates a backend error response (HTTP status + error
// code) into the session taxonomy. Unrecognized combinations become a generic
// upstream error so new backend codes never crash the login flow. The raw
// backend failure is kept as the cause for log context.
func mapLoginFailure(httpStatus int, backendCode string, cause error) *apperr.AppError {
	var appError *apperr.AppError

	switch backendCode {
	case "INVALID_CREDENTIALS", "WRONG_PASSWORD":
		appError = errInvalidCredentials()
	case "USER_NOT_FOUND", "INVALID_EMAIL":
		appError = errAccountNotFound()
	case "ACCOUNT_INACTIVE", "ACCOUNT_DISABLED":
		appError = errAccountInactive()
	}

	if appError == nil {
		switch httpStatus {
		case http.StatusUnauthorized:
			appError = errInvalidCredentials()
		case http.StatusNotFound:
			appError = errAccountNotFound()
		case http.StatusForbidden:
			appError = errAccountInactive()
		case http.StatusBadRequest:
			appError = apperr.ValidationError("Thông tin đăng nhập không hợp lệ")
		}
	}

	if appError == nil {
		return apperr.Upstream(cause)
	}

	appError.Cause = cause
	return appError
}

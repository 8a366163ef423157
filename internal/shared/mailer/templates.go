package mailer

import "fmt"

// Welcome 注册成功邮件
func Welcome(to, name string) Message {
	return Message{
		To:      to,
		Subject: "Welcome to MindCare",
		Body: fmt.Sprintf("Hi %s,\n\nYour MindCare account has been created with email %s.\n"+
			"You can now join the community rooms, read blogs and talk to our experts.\n", name, to),
	}
}

// VerifyOTP 邮箱验证码邮件
func VerifyOTP(to, otp string) Message {
	return Message{
		To:      to,
		Subject: "Account Verification OTP",
		Body:    fmt.Sprintf("Your OTP is %s. Verify your account using this OTP. It expires in 24 hours.\n", otp),
	}
}

// ResetOTP 重置密码验证码邮件
func ResetOTP(to, otp string) Message {
	return Message{
		To:      to,
		Subject: "Password Reset OTP",
		Body:    fmt.Sprintf("Your OTP for resetting your password is %s. It expires in 15 minutes.\n", otp),
	}
}

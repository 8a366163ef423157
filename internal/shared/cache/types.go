package cache

import "time"

// Key 前缀
const (
	KeyVerifyOTPCooldown = "mindcare:otp_cooldown:verify:"
	KeyResetOTPCooldown  = "mindcare:otp_cooldown:reset:"
)

// TTL 常量
const (
	TTLOTPCooldown = 60 * time.Second
)

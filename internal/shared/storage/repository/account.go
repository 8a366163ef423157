package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"mindcare/internal/shared/model"
	"mindcare/internal/shared/storage"
	"mindcare/internal/shared/storage/dbutil"
)

const accountColumns = `id, name, email, password_hash, role, is_account_verified,
	verify_otp, verify_otp_expire_at, reset_otp, reset_otp_expire_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*model.Account, error) {
	a := &model.Account{}
	err := row.Scan(&a.ID, &a.Name, &a.Email, &a.PasswordHash, &a.Role, &a.IsAccountVerified,
		&a.VerifyOTP, &a.VerifyOTPExpireAt, &a.ResetOTP, &a.ResetOTPExpireAt, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// CreateAccount 创建账号
func (s *Store) CreateAccount(ctx context.Context, a *model.Account) error {
	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO accounts (`+accountColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`),
		a.ID, a.Name, a.Email, a.PasswordHash, a.Role, a.IsAccountVerified,
		a.VerifyOTP, a.VerifyOTPExpireAt, a.ResetOTP, a.ResetOTPExpireAt, a.CreatedAt, a.UpdatedAt,
	)
	return s.wrapError(err)
}

// GetAccount 通过 ID 查找账号
func (s *Store) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	a, err := scanAccount(s.db.QueryRowContext(ctx, s.rebind(
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`), id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return a, err
}

// GetAccountByEmail 通过邮箱查找账号
func (s *Store) GetAccountByEmail(ctx context.Context, email string) (*model.Account, error) {
	a, err := scanAccount(s.db.QueryRowContext(ctx, s.rebind(
		`SELECT `+accountColumns+` FROM accounts WHERE email = $1`), email))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return a, err
}

// ListAccounts 列出账号，最新注册在前
func (s *Store) ListAccounts(ctx context.Context, filter model.AccountFilter) ([]*model.Account, error) {
	var (
		conds []string
		args  []any
	)
	if filter.Role != "" {
		args = append(args, filter.Role)
		conds = append(conds, "role = $"+itoa(len(args)))
	}
	if filter.ExcludeRole != "" {
		args = append(args, filter.ExcludeRole)
		conds = append(conds, "role <> $"+itoa(len(args)))
	}
	query := `SELECT ` + accountColumns + ` FROM accounts`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	accounts := []*model.Account{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// GetParticipants 批量获取账号摘要
func (s *Store) GetParticipants(ctx context.Context, ids []string) (map[string]*model.Participant, error) {
	result := make(map[string]*model.Participant, len(ids))
	ids = uniqueStrings(ids)
	if len(ids) == 0 {
		return result, nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT id, name, email FROM accounts WHERE id IN (`+dbutil.Placeholders(1, len(ids))+`)`), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		p := &model.Participant{}
		if err := rows.Scan(&p.ID, &p.Name, &p.Email); err != nil {
			return nil, err
		}
		result[p.ID] = p
	}
	return result, rows.Err()
}

// UpdateAccount 修改账号资料
func (s *Store) UpdateAccount(ctx context.Context, id string, u model.AccountUpdate) error {
	var (
		sets []string
		args []any
	)
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, col+" = $"+itoa(len(args)))
	}
	if u.Name != nil {
		add("name", *u.Name)
	}
	if u.Email != nil {
		add("email", *u.Email)
	}
	if u.Role != nil {
		add("role", *u.Role)
	}
	if u.IsAccountVerified != nil {
		add("is_account_verified", *u.IsAccountVerified)
	}
	add("updated_at", time.Now())
	args = append(args, id)

	return s.exec(ctx, `UPDATE accounts SET `+strings.Join(sets, ", ")+` WHERE id = $`+itoa(len(args)), args...)
}

// DeleteAccount 删除账号
func (s *Store) DeleteAccount(ctx context.Context, id string) error {
	return s.exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
}

// CountAccounts 按角色统计账号数
func (s *Store) CountAccounts(ctx context.Context, role model.Role) (int64, error) {
	if role == "" {
		return s.count(ctx, `SELECT COUNT(*) FROM accounts`)
	}
	return s.count(ctx, `SELECT COUNT(*) FROM accounts WHERE role = $1`, role)
}

// SetVerifyOTP 写入邮箱验证 OTP
func (s *Store) SetVerifyOTP(ctx context.Context, id, otp string, expireAt int64) error {
	return s.exec(ctx,
		`UPDATE accounts SET verify_otp = $1, verify_otp_expire_at = $2, updated_at = $3 WHERE id = $4`,
		otp, expireAt, time.Now(), id)
}

// ConsumeVerifyOTP 校验并消费邮箱验证 OTP
func (s *Store) ConsumeVerifyOTP(ctx context.Context, id, otp string, nowMs int64) error {
	err := s.exec(ctx,
		`UPDATE accounts SET is_account_verified = $1, verify_otp = '', verify_otp_expire_at = 0, updated_at = $2
		 WHERE id = $3 AND verify_otp = $4 AND verify_otp <> '' AND verify_otp_expire_at > $5`,
		true, time.Now(), id, otp, nowMs)
	if err == storage.ErrNotFound {
		return storage.ErrConflict
	}
	return err
}

// SetResetOTP 写入重置密码 OTP
func (s *Store) SetResetOTP(ctx context.Context, email, otp string, expireAt int64) error {
	return s.exec(ctx,
		`UPDATE accounts SET reset_otp = $1, reset_otp_expire_at = $2, updated_at = $3 WHERE email = $4`,
		otp, expireAt, time.Now(), email)
}

// ConsumeResetOTP 校验并消费重置密码 OTP，同时写入新密码
func (s *Store) ConsumeResetOTP(ctx context.Context, email, otp string, nowMs int64, passwordHash string) error {
	err := s.exec(ctx,
		`UPDATE accounts SET password_hash = $1, reset_otp = '', reset_otp_expire_at = 0, updated_at = $2
		 WHERE email = $3 AND reset_otp = $4 AND reset_otp <> '' AND reset_otp_expire_at > $5`,
		passwordHash, time.Now(), email, otp, nowMs)
	if err == storage.ErrNotFound {
		return storage.ErrConflict
	}
	return err
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

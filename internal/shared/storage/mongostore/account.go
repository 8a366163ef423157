package mongostore

import (
	"context"
	"time"

	"mindcare/internal/shared/model"
	"mindcare/internal/shared/storage"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ============================================================================
// AccountStore
// ============================================================================

func (s *Store) CreateAccount(ctx context.Context, account *model.Account) error {
	return insertOne(ctx, s.col(ColAccounts), account)
}

func (s *Store) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	return findOne[model.Account](ctx, s.col(ColAccounts), bson.D{{Key: "_id", Value: id}})
}

func (s *Store) GetAccountByEmail(ctx context.Context, email string) (*model.Account, error) {
	return findOne[model.Account](ctx, s.col(ColAccounts), bson.D{{Key: "email", Value: email}})
}

func (s *Store) ListAccounts(ctx context.Context, filter model.AccountFilter) ([]*model.Account, error) {
	var role bson.D
	if filter.Role != "" {
		role = append(role, bson.E{Key: "$eq", Value: filter.Role})
	}
	if filter.ExcludeRole != "" {
		role = append(role, bson.E{Key: "$ne", Value: filter.ExcludeRole})
	}
	q := bson.D{}
	if len(role) > 0 {
		q = append(q, bson.E{Key: "role", Value: role})
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	return findMany[model.Account](ctx, s.col(ColAccounts), q, opts)
}

func (s *Store) GetParticipants(ctx context.Context, ids []string) (map[string]*model.Participant, error) {
	result := make(map[string]*model.Participant, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	opts := options.Find().SetProjection(bson.D{{Key: "name", Value: 1}, {Key: "email", Value: 1}})
	list, err := findMany[model.Participant](ctx, s.col(ColAccounts),
		bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: ids}}}}, opts)
	if err != nil {
		return nil, err
	}
	for _, p := range list {
		result[p.ID] = p
	}
	return result, nil
}

func (s *Store) UpdateAccount(ctx context.Context, id string, u model.AccountUpdate) error {
	set := bson.D{{Key: "updated_at", Value: time.Now()}}
	if u.Name != nil {
		set = append(set, bson.E{Key: "name", Value: *u.Name})
	}
	if u.Email != nil {
		set = append(set, bson.E{Key: "email", Value: *u.Email})
	}
	if u.Role != nil {
		set = append(set, bson.E{Key: "role", Value: *u.Role})
	}
	if u.IsAccountVerified != nil {
		set = append(set, bson.E{Key: "is_account_verified", Value: *u.IsAccountVerified})
	}
	return updateFields(ctx, s.col(ColAccounts), id, set)
}

func (s *Store) DeleteAccount(ctx context.Context, id string) error {
	return deleteByID(ctx, s.col(ColAccounts), id)
}

func (s *Store) CountAccounts(ctx context.Context, role model.Role) (int64, error) {
	filter := bson.D{}
	if role != "" {
		filter = bson.D{{Key: "role", Value: role}}
	}
	return countDocs(ctx, s.col(ColAccounts), filter)
}

func (s *Store) SetVerifyOTP(ctx context.Context, id, otp string, expireAt int64) error {
	return updateFields(ctx, s.col(ColAccounts), id, bson.D{
		{Key: "verify_otp", Value: otp},
		{Key: "verify_otp_expire_at", Value: expireAt},
		{Key: "updated_at", Value: time.Now()},
	})
}

func (s *Store) ConsumeVerifyOTP(ctx context.Context, id, otp string, nowMs int64) error {
	filter := bson.D{
		{Key: "_id", Value: id},
		{Key: "verify_otp", Value: bson.D{{Key: "$eq", Value: otp}, {Key: "$ne", Value: ""}}},
		{Key: "verify_otp_expire_at", Value: bson.D{{Key: "$gt", Value: nowMs}}},
	}
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "is_account_verified", Value: true},
		{Key: "verify_otp", Value: ""},
		{Key: "verify_otp_expire_at", Value: int64(0)},
		{Key: "updated_at", Value: time.Now()},
	}}}
	return s.conditionalUpdate(ctx, filter, update)
}

func (s *Store) SetResetOTP(ctx context.Context, email, otp string, expireAt int64) error {
	res, err := s.col(ColAccounts).UpdateOne(ctx, bson.D{{Key: "email", Value: email}}, bson.D{{Key: "$set", Value: bson.D{
		{Key: "reset_otp", Value: otp},
		{Key: "reset_otp_expire_at", Value: expireAt},
		{Key: "updated_at", Value: time.Now()},
	}}})
	if err != nil {
		return wrapError(err)
	}
	if res.MatchedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) ConsumeResetOTP(ctx context.Context, email, otp string, nowMs int64, passwordHash string) error {
	filter := bson.D{
		{Key: "email", Value: email},
		{Key: "reset_otp", Value: bson.D{{Key: "$eq", Value: otp}, {Key: "$ne", Value: ""}}},
		{Key: "reset_otp_expire_at", Value: bson.D{{Key: "$gt", Value: nowMs}}},
	}
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "password_hash", Value: passwordHash},
		{Key: "reset_otp", Value: ""},
		{Key: "reset_otp_expire_at", Value: int64(0)},
		{Key: "updated_at", Value: time.Now()},
	}}}
	return s.conditionalUpdate(ctx, filter, update)
}

// conditionalUpdate 单文档条件更新，未命中返回 ErrConflict
func (s *Store) conditionalUpdate(ctx context.Context, filter, update bson.D) error {
	res, err := s.col(ColAccounts).UpdateOne(ctx, filter, update)
	if err != nil {
		return wrapError(err)
	}
	if res.MatchedCount == 0 {
		return storage.ErrConflict
	}
	return nil
}

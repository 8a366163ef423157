package storage

import (
	"context"

	"mindcare/internal/shared/model"
)

// ParticipantReader 批量读取账号摘要
type ParticipantReader interface {
	GetParticipants(ctx context.Context, ids []string) (map[string]*model.Participant, error)
}

// LookupParticipants 一次查询所有 ID，返回的查找函数对已删除账号给出占位摘要
func LookupParticipants(ctx context.Context, r ParticipantReader, ids []string) (func(id string) *model.Participant, error) {
	found, err := r.GetParticipants(ctx, ids)
	if err != nil {
		return nil, err
	}
	return func(id string) *model.Participant {
		if p, ok := found[id]; ok {
			return p
		}
		return model.DeletedParticipant(id)
	}, nil
}

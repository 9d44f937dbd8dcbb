package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/quantclass/stocksim/internal/simulation/domain"
	"github.com/wyfcoding/pkg/logging"
)

// runStateStore Run 状态的权威读写口。状态放 Redis 供监控循环高频轮询，
// 键缺失或 Redis 故障时回落 MySQL 仓储并尽力回填。
type runStateStore struct {
	client redis.UniversalClient
	runs   domain.RunRepository
	prefix string
}

func NewRunStateStore(client redis.UniversalClient, runs domain.RunRepository) domain.RunStateStore {
	return &runStateStore{
		client: client,
		runs:   runs,
		prefix: "sim:run:state:",
	}
}

func (s *runStateStore) key(runID string) string {
	return fmt.Sprintf("%s%s", s.prefix, runID)
}

func (s *runStateStore) ReadState(ctx context.Context, runID string) (domain.RunState, error) {
	val, err := s.client.Get(ctx, s.key(runID)).Result()
	if err == nil {
		return domain.RunState(val), nil
	}
	if !errors.Is(err, redis.Nil) {
		logging.Warn(ctx, "state store: redis read failed, falling back to repository",
			"run_id", runID, "error", err)
	}

	run, repoErr := s.runs.Get(ctx, runID)
	if repoErr != nil {
		return "", repoErr
	}
	if run == nil {
		return "", domain.ErrRunNotFound
	}

	// 回填，失败不影响本次读取
	state := run.CurrentState()
	if err := s.client.Set(ctx, s.key(runID), string(state), 0).Err(); err != nil {
		logging.Warn(ctx, "state store: redis backfill failed", "run_id", runID, "error", err)
	}
	return state, nil
}

func (s *runStateStore) WriteState(ctx context.Context, runID string, state domain.RunState) error {
	return s.client.Set(ctx, s.key(runID), string(state), 0).Err()
}

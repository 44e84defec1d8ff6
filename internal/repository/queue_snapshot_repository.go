package repository

import (
    "context"
    "encoding/json"
    "errors"

    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/seat-admission/internal/model"
)

// QueueSnapshotRepo keeps a copy of the waiting room in Redis: a sorted
// set of subjects scored by their position and a hash of their entries.
// Both keys are rewritten together in a MULTI/EXEC block.
type QueueSnapshotRepo struct {
    rdb    *redis.Client
    prefix string
}

// NewQueueSnapshotRepo returns a repo writing under prefix.
func NewQueueSnapshotRepo(rdb *redis.Client, prefix string) *QueueSnapshotRepo {
    if prefix == "" {
        prefix = "admission:queue"
    }
    return &QueueSnapshotRepo{rdb: rdb, prefix: prefix}
}

func (r *QueueSnapshotRepo) orderKey() string   { return r.prefix + ":order" }
func (r *QueueSnapshotRepo) entriesKey() string { return r.prefix + ":entries" }

// SaveQueueSnapshot replaces the stored queue with entries, in order.
func (r *QueueSnapshotRepo) SaveQueueSnapshot(ctx context.Context, entries []model.QueueEntry) error {
    members := make([]redis.Z, 0, len(entries))
    fields := make(map[string]interface{}, len(entries))
    for i, e := range entries {
        bs, err := json.Marshal(e)
        if err != nil {
            return err
        }
        members = append(members, redis.Z{Score: float64(i), Member: e.SubjectID})
        fields[e.SubjectID] = bs
    }
    _, err := r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
        p.Del(ctx, r.orderKey(), r.entriesKey())
        if len(members) > 0 {
            p.ZAdd(ctx, r.orderKey(), members...)
            p.HSet(ctx, r.entriesKey(), fields)
        }
        return nil
    })
    return err
}

// FindQueueSnapshot returns the stored queue in order.  Subjects whose
// entry is missing or unreadable are skipped.
func (r *QueueSnapshotRepo) FindQueueSnapshot(ctx context.Context) ([]model.QueueEntry, error) {
    ids, err := r.rdb.ZRange(ctx, r.orderKey(), 0, -1).Result()
    if err != nil {
        if errors.Is(err, redis.Nil) {
            return nil, nil
        }
        return nil, err
    }
    if len(ids) == 0 {
        return nil, nil
    }
    raw, err := r.rdb.HMGet(ctx, r.entriesKey(), ids...).Result()
    if err != nil {
        return nil, err
    }
    out := make([]model.QueueEntry, 0, len(ids))
    for _, v := range raw {
        s, ok := v.(string)
        if !ok {
            continue
        }
        var e model.QueueEntry
        if json.Unmarshal([]byte(s), &e) != nil || e.SubjectID == "" {
            continue
        }
        out = append(out, e)
    }
    return out, nil
}

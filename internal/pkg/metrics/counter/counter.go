package counter

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
)

const outcomesKey = "billing:counters:outcomes"

// Outcomes counts finalization results in a Redis hash keyed "source:outcome",
// so every instance contributes to the same totals.
type Outcomes struct {
	rdb redis.Cmdable
	key string
}

func NewOutcomes(rdb redis.Cmdable) *Outcomes {
	return &Outcomes{rdb: rdb, key: outcomesKey}
}

// Add increments the counter for one finalization attempt.
func (o *Outcomes) Add(ctx context.Context, source, outcome string) error {
	return o.rdb.HIncrBy(ctx, o.key, source+":"+outcome, 1).Err()
}

// Entry is one counter row.
type Entry struct {
	Source  string `json:"source"`
	Outcome string `json:"outcome"`
	Count   int64  `json:"count"`
}

// Snapshot returns all counters sorted by source and outcome.
func (o *Outcomes) Snapshot(ctx context.Context) ([]Entry, error) {
	data, err := o.rdb.HGetAll(ctx, o.key).Result()
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(data))
	for k, v := range data {
		n, perr := strconv.ParseInt(v, 10, 64)
		if perr != nil {
			continue
		}
		source, outcome, ok := strings.Cut(k, ":")
		if !ok {
			continue
		}
		entries = append(entries, Entry{Source: source, Outcome: outcome, Count: n})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Source != entries[j].Source {
			return entries[i].Source < entries[j].Source
		}
		return entries[i].Outcome < entries[j].Outcome
	})
	return entries, nil
}

// Reset drops all counters.
func (o *Outcomes) Reset(ctx context.Context) error {
	return o.rdb.Del(ctx, o.key).Err()
}

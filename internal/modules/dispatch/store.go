// README: Dispatch store backed by a Redis list (P0) and sorted sets (P1/P2).
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
)

const (
	defaultKeyPrefix = "dispatch"
	seqKeySuffix     = "seq"
)

type Store struct {
	redis  *redis.Client
	prefix string
}

func NewStore(client *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &Store{redis: client, prefix: prefix}
}

func (s *Store) key(t Tier) string {
	return fmt.Sprintf("%s:%s", s.prefix, strings.ToLower(string(t)))
}

// NextSeq hands out the insertion sequence used to break score ties.
func (s *Store) NextSeq(ctx context.Context) (int64, error) {
	seq, err := s.redis.Incr(ctx, s.prefix+":"+seqKeySuffix).Result()
	if err != nil {
		return 0, unavailable("incr seq", err)
	}
	return seq, nil
}

func (s *Store) Push(ctx context.Context, e Entry) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return eris.Wrap(err, "dispatch: encode entry")
	}
	if e.Tier.Ranked() {
		err = s.redis.ZAdd(ctx, s.key(e.Tier), redis.Z{Score: e.RankingScore, Member: member(e.Seq, raw)}).Err()
	} else {
		err = s.redis.RPush(ctx, s.key(e.Tier), raw).Err()
	}
	if err != nil {
		return unavailable("push", err)
	}
	return nil
}

// Pop removes the head of the tier. Returns nil, nil when the tier is empty.
func (s *Store) Pop(ctx context.Context, t Tier) (*Entry, error) {
	var raw string
	if t.Ranked() {
		zs, err := s.redis.ZPopMax(ctx, s.key(t), 1).Result()
		if err != nil {
			return nil, unavailable("zpopmax", err)
		}
		if len(zs) == 0 {
			return nil, nil
		}
		raw = payloadOf(zs[0].Member.(string))
	} else {
		v, err := s.redis.LPop(ctx, s.key(t)).Result()
		if err == redis.Nil {
			return nil, nil
		}
		if err != nil {
			return nil, unavailable("lpop", err)
		}
		raw = v
	}
	var e Entry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return nil, eris.Wrap(err, "dispatch: decode entry")
	}
	return &e, nil
}

func (s *Store) Range(ctx context.Context, t Tier, limit int64) ([]Entry, error) {
	var raws []string
	var err error
	if t.Ranked() {
		raws, err = s.redis.ZRevRange(ctx, s.key(t), 0, limit-1).Result()
	} else {
		raws, err = s.redis.LRange(ctx, s.key(t), 0, limit-1).Result()
	}
	if err != nil {
		return nil, unavailable("range", err)
	}
	out := make([]Entry, 0, len(raws))
	for _, r := range raws {
		if t.Ranked() {
			r = payloadOf(r)
		}
		var e Entry
		if err := json.Unmarshal([]byte(r), &e); err != nil {
			return nil, eris.Wrap(err, "dispatch: decode entry")
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *Store) Counts(ctx context.Context) (map[Tier]int64, error) {
	pipe := s.redis.Pipeline()
	cmds := make(map[Tier]*redis.IntCmd, len(Tiers))
	for _, t := range Tiers {
		if t.Ranked() {
			cmds[t] = pipe.ZCard(ctx, s.key(t))
		} else {
			cmds[t] = pipe.LLen(ctx, s.key(t))
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, unavailable("counts", err)
	}
	out := make(map[Tier]int64, len(cmds))
	for t, c := range cmds {
		out[t] = c.Val()
	}
	return out, nil
}

func (s *Store) Clear(ctx context.Context, t Tier) error {
	if err := s.redis.Del(ctx, s.key(t)).Err(); err != nil {
		return unavailable("del", err)
	}
	return nil
}

// member prefixes the entry with an inverted sequence so that, among equal scores,
// the lexicographically largest member (popped first by ZPOPMAX) is the oldest.
func member(seq int64, raw []byte) string {
	return fmt.Sprintf("%019d|%s", math.MaxInt64-seq, raw)
}

func payloadOf(m string) string {
	if i := strings.IndexByte(m, '|'); i >= 0 {
		return m[i+1:]
	}
	return m
}

func unavailable(op string, err error) error {
	return eris.Wrapf(ErrUnavailable, "%s: %v", op, err)
}

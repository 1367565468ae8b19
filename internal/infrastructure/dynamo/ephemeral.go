package dynamo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/lab-access-api/internal/domain"
	"github.com/lab-access-api/internal/store"
)

// EphemeralStore is the DynamoDB-backed store.Store. Atomicity of the
// check-then-act sequences (single-use consume, attempt increment, collision
// check) is delegated to conditional writes, so concurrent callers across
// processes serialize on the storage engine rather than on an app lock.
type EphemeralStore[P any] struct {
	client    *dynamodb.Client
	tableName string
}

func NewEphemeralStore[P any](client *dynamodb.Client, tableName string) *EphemeralStore[P] {
	return &EphemeralStore[P]{client: client, tableName: tableName}
}

var _ store.Store[struct{}] = (*EphemeralStore[struct{}])(nil)

func (s *EphemeralStore[P]) Issue(ctx context.Context, opts store.IssueOptions, payload P) (string, error) {
	if opts.TTL <= 0 {
		return "", fmt.Errorf("ttl required: %w", domain.ErrValidation)
	}
	key := opts.Key
	if key == "" {
		key = store.NewKey()
	}
	now := time.Now().UTC()
	rec := &store.Record[P]{
		Key:         key,
		Payload:     payload,
		IssuedAt:    now,
		ExpiresAt:   now.Add(opts.TTL),
		SingleUse:   opts.SingleUse,
		MaxAttempts: opts.MaxAttempts,
		LastUsedAt:  now,
	}
	item, err := marshalRecord(rec)
	if err != nil {
		return "", err
	}

	input := &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	}
	switch {
	case opts.Key != "" && !opts.Replace:
		// An expired leftover under the same key does not count as a collision.
		input.ConditionExpression = aws.String("attribute_not_exists(record_key) OR expires_at < :now")
		input.ExpressionAttributeValues = nowAttr(now)
	case opts.Key != "" && opts.ReissueAfter > 0:
		// The overwrite only lands when the live record is old enough; the
		// condition runs server-side, so racing issuers cannot both pass.
		input.ConditionExpression = aws.String("attribute_not_exists(record_key) OR expires_at < :now OR issued_at <= :cutoff")
		values := nowAttr(now)
		values[":cutoff"] = &types.AttributeValueMemberN{
			Value: strconv.FormatInt(now.Add(-opts.ReissueAfter).Unix(), 10),
		}
		input.ExpressionAttributeValues = values
	}
	if _, err := s.client.PutItem(ctx, input); err != nil {
		if isConditionalCheckFailed(err) {
			if opts.ReissueAfter > 0 && opts.Replace {
				return "", fmt.Errorf("issue %q: %w", key, s.reissueDelay(ctx, key, opts.ReissueAfter, now))
			}
			return "", fmt.Errorf("issue %q: %w", key, domain.ErrCollision)
		}
		return "", fmt.Errorf("put record: %w", err)
	}
	return key, nil
}

// reissueDelay re-reads the blocking record to compute the Retry-After hint.
// When the record raced away between the failed put and the read, the full
// window is reported; the client's retry will then succeed.
func (s *EphemeralStore[P]) reissueDelay(ctx context.Context, key string, window time.Duration, now time.Time) error {
	if rec, err := s.Get(ctx, key); err == nil {
		if remaining := rec.IssuedAt.Add(window).Sub(now); remaining > 0 {
			return &domain.RateLimitError{RetryAfter: remaining}
		}
	}
	return &domain.RateLimitError{RetryAfter: window}
}

func (s *EphemeralStore[P]) Get(ctx context.Context, key string) (*store.Record[P], error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            strKey(fieldRecordKey, key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}
	if out.Item == nil {
		return nil, domain.ErrNotFoundOrExpired
	}
	rec, err := unmarshalRecord[P](out.Item)
	if err != nil {
		return nil, err
	}
	if expiredOrLocked(rec, time.Now()) {
		s.deleteExpired(ctx, key)
		return nil, domain.ErrNotFoundOrExpired
	}
	return rec, nil
}

func (s *EphemeralStore[P]) Touch(ctx context.Context, key string) error {
	now := time.Now().UTC()
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(s.tableName),
		Key:              strKey(fieldRecordKey, key),
		UpdateExpression: aws.String("SET last_used_at = :now"),
		// The last_used_at guard keeps the timestamp monotonic under
		// concurrent validations.
		ConditionExpression:       aws.String("attribute_exists(record_key) AND expires_at >= :now AND last_used_at <= :now"),
		ExpressionAttributeValues: nowAttr(now),
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			// Either gone/expired, or a concurrent Touch already advanced the
			// timestamp past ours. The latter is not an error for callers.
			if _, gerr := s.Get(ctx, key); gerr != nil {
				return gerr
			}
			return nil
		}
		return fmt.Errorf("touch record: %w", err)
	}
	return nil
}

func (s *EphemeralStore[P]) Consume(ctx context.Context, key string) (*store.Record[P], error) {
	now := time.Now().UTC()
	out, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                 aws.String(s.tableName),
		Key:                       strKey(fieldRecordKey, key),
		ConditionExpression:       aws.String("attribute_exists(record_key) AND expires_at >= :now"),
		ExpressionAttributeValues: nowAttr(now),
		ReturnValues:              types.ReturnValueAllOld,
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			// A live record was not there; clear a possible expired relic so
			// the key frees up.
			s.deleteExpired(ctx, key)
			return nil, domain.ErrNotFoundOrExpired
		}
		return nil, fmt.Errorf("consume record: %w", err)
	}
	rec, err := unmarshalRecord[P](out.Attributes)
	if err != nil {
		return nil, err
	}
	if expiredOrLocked(rec, now) {
		return nil, domain.ErrNotFoundOrExpired
	}
	return rec, nil
}

func (s *EphemeralStore[P]) Fail(ctx context.Context, key string) (int, error) {
	now := time.Now().UTC()
	out, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.tableName),
		Key:                       strKey(fieldRecordKey, key),
		UpdateExpression:          aws.String("ADD attempts :one"),
		ConditionExpression:       aws.String("attribute_exists(record_key) AND expires_at >= :now"),
		ExpressionAttributeValues: withOne(nowAttr(now)),
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			s.deleteExpired(ctx, key)
			return 0, domain.ErrNotFoundOrExpired
		}
		return 0, fmt.Errorf("record failed attempt: %w", err)
	}
	attempts := intAttr(out.Attributes, fieldAttempts)
	maxAttempts := intAttr(out.Attributes, fieldMaxAttempts)
	if maxAttempts > 0 && attempts >= maxAttempts {
		if _, derr := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(s.tableName),
			Key:       strKey(fieldRecordKey, key),
		}); derr != nil {
			slog.Warn("failed to delete exhausted record", "table", s.tableName, "key", key, "err", derr)
		}
		return 0, domain.ErrAttemptsExhausted
	}
	if maxAttempts == 0 {
		return 0, nil
	}
	return maxAttempts - attempts, nil
}

func (s *EphemeralStore[P]) Sweep(ctx context.Context) (int, error) {
	now := time.Now().UTC()
	dropped := 0
	var startKey map[string]types.AttributeValue
	for {
		out, err := s.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:                 aws.String(s.tableName),
			FilterExpression:          aws.String("expires_at < :now"),
			ProjectionExpression:      aws.String(fieldRecordKey),
			ExpressionAttributeValues: nowAttr(now),
			ExclusiveStartKey:         startKey,
		})
		if err != nil {
			return dropped, fmt.Errorf("sweep scan: %w", err)
		}
		for _, item := range out.Items {
			keyAttr, ok := item[fieldRecordKey].(*types.AttributeValueMemberS)
			if !ok {
				continue
			}
			// Conditional so a record re-issued under the same key since the
			// scan is left alone.
			_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
				TableName:                 aws.String(s.tableName),
				Key:                       strKey(fieldRecordKey, keyAttr.Value),
				ConditionExpression:       aws.String("expires_at < :now"),
				ExpressionAttributeValues: nowAttr(now),
			})
			if err != nil {
				if !isConditionalCheckFailed(err) {
					slog.Warn("sweep delete failed", "table", s.tableName, "key", keyAttr.Value, "err", err)
				}
				continue
			}
			dropped++
		}
		if out.LastEvaluatedKey == nil {
			return dropped, nil
		}
		startKey = out.LastEvaluatedKey
	}
}

// deleteExpired clears an expired record best-effort; failures only get logged.
func (s *EphemeralStore[P]) deleteExpired(ctx context.Context, key string) {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                 aws.String(s.tableName),
		Key:                       strKey(fieldRecordKey, key),
		ConditionExpression:       aws.String("expires_at < :now"),
		ExpressionAttributeValues: nowAttr(time.Now().UTC()),
	})
	if err != nil && !isConditionalCheckFailed(err) {
		slog.Warn("failed to delete expired record", "table", s.tableName, "key", key, "err", err)
	}
}

func expiredOrLocked[P any](rec *store.Record[P], now time.Time) bool {
	if now.After(rec.ExpiresAt) {
		return true
	}
	return rec.MaxAttempts > 0 && rec.Attempts >= rec.MaxAttempts
}

func marshalRecord[P any](rec *store.Record[P]) (map[string]types.AttributeValue, error) {
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return nil, fmt.Errorf("marshal record: %w", err)
	}
	// expires_at is kept as a top-level unix-seconds attribute: condition
	// expressions compare it and the table's native TTL reaps it.
	item[fieldExpiresAt] = &types.AttributeValueMemberN{Value: strconv.FormatInt(rec.ExpiresAt.Unix(), 10)}
	return item, nil
}

func unmarshalRecord[P any](item map[string]types.AttributeValue) (*store.Record[P], error) {
	var rec store.Record[P]
	if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal record: %w", err)
	}
	rec.ExpiresAt = time.Unix(int64(intAttr(item, fieldExpiresAt)), 0).UTC()
	return &rec, nil
}

func nowAttr(now time.Time) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		":now": &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Unix(), 10)},
	}
}

func withOne(values map[string]types.AttributeValue) map[string]types.AttributeValue {
	values[":one"] = &types.AttributeValueMemberN{Value: "1"}
	return values
}

func intAttr(item map[string]types.AttributeValue, name string) int {
	n, ok := item[name].(*types.AttributeValueMemberN)
	if !ok {
		return 0
	}
	v, err := strconv.Atoi(n.Value)
	if err != nil {
		return 0
	}
	return v
}

func isConditionalCheckFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/erinfolamirukayat/theweddingplace/internal/config"
	redis "github.com/redis/go-redis/v9"
)

const (
	keyPaymentInitiate = "payment:initiate:%s"
	keyPaymentVerify   = "payment:verify:%s"
)

// PaymentLimiter throttles the unauthenticated payment endpoints per
// client address. A nil limiter (rate limiting disabled) allows everything.
type PaymentLimiter struct {
	enabled bool

	bucket *TokenBucket

	initiateRate  float64
	initiateBurst int
	verifyRate    float64
	verifyBurst   int
}

func NewPaymentLimiter(cfg config.Config) (*PaymentLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}

	addr := strings.TrimSpace(limitCfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit redis addr is required")
	}
	if limitCfg.InitiateRate <= 0 || limitCfg.InitiateBurst <= 0 {
		return nil, errors.New("initiate rate limit must be positive")
	}
	if limitCfg.VerifyRate <= 0 || limitCfg.VerifyBurst <= 0 {
		return nil, errors.New("verify rate limit must be positive")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(limitCfg.RedisPassword),
		DB:       limitCfg.RedisDB,
	})

	return &PaymentLimiter{
		enabled:       true,
		bucket:        NewTokenBucket(client),
		initiateRate:  limitCfg.InitiateRate,
		initiateBurst: limitCfg.InitiateBurst,
		verifyRate:    limitCfg.VerifyRate,
		verifyBurst:   limitCfg.VerifyBurst,
	}, nil
}

func (l *PaymentLimiter) Enabled() bool {
	return l != nil && l.enabled
}

func (l *PaymentLimiter) AllowInitiate(ctx context.Context, clientIP string) (bool, error) {
	if !l.Enabled() {
		return true, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyPaymentInitiate, strings.TrimSpace(clientIP)), l.initiateRate, l.initiateBurst)
}

func (l *PaymentLimiter) AllowVerify(ctx context.Context, clientIP string) (bool, error) {
	if !l.Enabled() {
		return true, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyPaymentVerify, strings.TrimSpace(clientIP)), l.verifyRate, l.verifyBurst)
}
